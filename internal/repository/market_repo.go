package repository

import (
	"context"
	"time"

	"github.com/kwhite/polytrack/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketQuery holds list filters and paging for market queries.
type MarketQuery struct {
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// MarketRepository handles market data operations.
type MarketRepository struct {
	db *gorm.DB
}

// NewMarketRepository creates a new MarketRepository bound to db.
func NewMarketRepository(db *gorm.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market record.
func (r *MarketRepository) Create(ctx context.Context, market *domain.Market) error {
	return r.db.WithContext(ctx).Create(market).Error
}

// Upsert creates or updates a market record keyed by its Polymarket ID and
// refreshes the last_scraped_at timestamp. Returns true if a new row was
// inserted.
func (r *MarketRepository) Upsert(ctx context.Context, market *domain.Market) (bool, error) {
	now := time.Now().UTC()
	market.LastScrapedAt = &now

	var existing int64
	if err := r.db.WithContext(ctx).Model(&domain.Market{}).
		Where("polymarket_id = ?", market.PolymarketID).
		Count(&existing).Error; err != nil {
		return false, err
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "polymarket_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"question", "description", "outcomes", "outcome_prices",
			"end_date", "volume", "is_active", "last_scraped_at", "updated_at",
		}),
	}).Create(market).Error
	if err != nil {
		return false, err
	}
	return existing == 0, nil
}

// Update saves an existing market record.
func (r *MarketRepository) Update(ctx context.Context, market *domain.Market) error {
	return r.db.WithContext(ctx).Save(market).Error
}

// GetByID retrieves a market by its database ID.
func (r *MarketRepository) GetByID(ctx context.Context, id int64) (*domain.Market, error) {
	var market domain.Market
	if err := r.db.WithContext(ctx).First(&market, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

// GetByPolymarketID retrieves a market by its Polymarket identifier.
func (r *MarketRepository) GetByPolymarketID(ctx context.Context, polymarketID string) (*domain.Market, error) {
	var market domain.Market
	if err := r.db.WithContext(ctx).First(&market, "polymarket_id = ?", polymarketID).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

// List retrieves markets matching the query and the total match count.
func (r *MarketRepository) List(ctx context.Context, q MarketQuery) ([]domain.Market, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Market{})

	if q.ActiveOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if q.Search != "" {
		tx = tx.Where("question LIKE ?", "%"+q.Search+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var markets []domain.Market
	if err := tx.Order("volume DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&markets).Error; err != nil {
		return nil, 0, err
	}

	return markets, total, nil
}

// Delete removes a market by its database ID. Returns gorm.ErrRecordNotFound
// if no row matched.
func (r *MarketRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Market{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count returns the total number of tracked markets.
func (r *MarketRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Market{}).Count(&count).Error
	return count, err
}
