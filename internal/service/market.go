package service

import (
	"context"
	"errors"
	"time"

	"github.com/kwhite/polytrack/internal/domain"
	"github.com/kwhite/polytrack/internal/repository"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested market does not exist.
var ErrNotFound = errors.New("market not found")

// MarketStore is the persistence surface the market service needs.
// *repository.MarketRepository satisfies it; tests substitute fakes.
type MarketStore interface {
	Create(ctx context.Context, market *domain.Market) error
	Update(ctx context.Context, market *domain.Market) error
	GetByID(ctx context.Context, id int64) (*domain.Market, error)
	List(ctx context.Context, q repository.MarketQuery) ([]domain.Market, int64, error)
	Delete(ctx context.Context, id int64) error
}

// MarketInput is the request payload for creating a market.
type MarketInput struct {
	PolymarketID  string     `json:"polymarket_id" binding:"required"`
	Question      string     `json:"question" binding:"required"`
	Description   string     `json:"description"`
	Outcomes      []string   `json:"outcomes"`
	OutcomePrices []string   `json:"outcome_prices"`
	EndDate       *time.Time `json:"end_date"`
	Volume        float64    `json:"volume"`
	IsActive      *bool      `json:"is_active"`
}

// MarketUpdate is the request payload for partially updating a market.
// Nil fields are left unchanged.
type MarketUpdate struct {
	Question      *string    `json:"question"`
	Description   *string    `json:"description"`
	Outcomes      []string   `json:"outcomes"`
	OutcomePrices []string   `json:"outcome_prices"`
	EndDate       *time.Time `json:"end_date"`
	Volume        *float64   `json:"volume"`
	IsActive      *bool      `json:"is_active"`
}

// MarketService implements the market CRUD operations behind the API.
type MarketService struct {
	store MarketStore
}

// NewMarketService creates a new market service.
func NewMarketService(store MarketStore) *MarketService {
	return &MarketService{store: store}
}

// List returns markets matching the query and the total match count.
func (s *MarketService) List(ctx context.Context, q repository.MarketQuery) ([]domain.Market, int64, error) {
	return s.store.List(ctx, q)
}

// Get returns a single market by id.
func (s *MarketService) Get(ctx context.Context, id int64) (*domain.Market, error) {
	market, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return market, nil
}

// Create stores a new market.
func (s *MarketService) Create(ctx context.Context, input MarketInput) (*domain.Market, error) {
	market := &domain.Market{
		PolymarketID:  input.PolymarketID,
		Question:      input.Question,
		Description:   input.Description,
		Outcomes:      input.Outcomes,
		OutcomePrices: input.OutcomePrices,
		EndDate:       input.EndDate,
		Volume:        input.Volume,
		IsActive:      true,
	}
	if input.IsActive != nil {
		market.IsActive = *input.IsActive
	}
	if err := s.store.Create(ctx, market); err != nil {
		return nil, err
	}
	return market, nil
}

// Update applies a partial update to an existing market.
func (s *MarketService) Update(ctx context.Context, id int64, update MarketUpdate) (*domain.Market, error) {
	market, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Question != nil {
		market.Question = *update.Question
	}
	if update.Description != nil {
		market.Description = *update.Description
	}
	if update.Outcomes != nil {
		market.Outcomes = update.Outcomes
	}
	if update.OutcomePrices != nil {
		market.OutcomePrices = update.OutcomePrices
	}
	if update.EndDate != nil {
		market.EndDate = update.EndDate
	}
	if update.Volume != nil {
		market.Volume = *update.Volume
	}
	if update.IsActive != nil {
		market.IsActive = *update.IsActive
	}

	if err := s.store.Update(ctx, market); err != nil {
		return nil, err
	}
	return market, nil
}

// Delete removes a market by id.
func (s *MarketService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
