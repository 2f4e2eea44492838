package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kwhite/polytrack/internal/domain"
	"github.com/kwhite/polytrack/internal/logger"
)

// MarketWriter is the repository surface the scraper needs.
type MarketWriter interface {
	Upsert(ctx context.Context, market *domain.Market) (added bool, err error)
}

// ProgressReporter receives periodic counter snapshots during a scrape run.
// The tracker coordinator implements it.
type ProgressReporter interface {
	UpdateProgress(ctx context.Context, fetched, added, updated, failed int)
}

// ScrapeConfig holds configuration for the scrape service.
type ScrapeConfig struct {
	BaseURL       string
	PageSize      int
	MaxMarkets    int
	Timeout       time.Duration
	ProgressEvery int
}

// ScrapeResult holds the counters of one scrape run.
type ScrapeResult struct {
	Fetched int
	Added   int
	Updated int
	Failed  int
}

// ScrapeService pages through the Polymarket Gamma API and upserts markets
// into the local database.
type ScrapeService struct {
	markets       MarketWriter
	client        *resty.Client
	log           *logger.Logger
	pageSize      int
	maxMarkets    int
	progressEvery int
}

// NewScrapeService creates a new scrape service.
func NewScrapeService(markets MarketWriter, log *logger.Logger, cfg *ScrapeConfig) *ScrapeService {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(30 * time.Second)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxMarkets := cfg.MaxMarkets
	if maxMarkets <= 0 {
		maxMarkets = 1000
	}
	progressEvery := cfg.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 50
	}

	if log == nil {
		log = logger.GetDefault()
	}

	return &ScrapeService{
		markets:       markets,
		client:        client,
		log:           log.WithField(logger.FieldComponent, "scraper"),
		pageSize:      pageSize,
		maxMarkets:    maxMarkets,
		progressEvery: progressEvery,
	}
}

// gammaMarket mirrors one market object from the Gamma API. Outcome lists
// and volume arrive as JSON-encoded strings inside the JSON document.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	EndDate       string `json:"endDate"`
	Volume        string `json:"volume"`
	Active        bool   `json:"active"`
}

// Run fetches markets page by page and upserts them, reporting counter
// snapshots through progress. A fetch failure aborts the run with the
// counters gathered so far; individual market failures only increment the
// failed counter.
func (s *ScrapeService) Run(ctx context.Context, progress ProgressReporter) (*ScrapeResult, error) {
	result := &ScrapeResult{}

	offset := 0
	for result.Fetched < s.maxMarkets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		limit := s.pageSize
		if remaining := s.maxMarkets - result.Fetched; remaining < limit {
			limit = remaining
		}

		page, err := s.fetchPage(ctx, limit, offset)
		if err != nil {
			return result, fmt.Errorf("fetch markets page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		if len(page) > limit {
			page = page[:limit]
		}

		for _, gm := range page {
			result.Fetched++

			market, err := gm.toDomain()
			if err != nil {
				result.Failed++
				s.log.WithField("polymarket_id", gm.ID).WithError(err).Warn("Skipping malformed market")
				continue
			}

			added, err := s.markets.Upsert(ctx, market)
			if err != nil {
				result.Failed++
				s.log.WithField("polymarket_id", gm.ID).WithError(err).Error("Failed to store market")
				continue
			}
			if added {
				result.Added++
			} else {
				result.Updated++
			}

			if progress != nil && result.Fetched%s.progressEvery == 0 {
				progress.UpdateProgress(ctx, result.Fetched, result.Added, result.Updated, result.Failed)
			}
		}

		offset += len(page)
		if len(page) < limit {
			break
		}
	}

	if progress != nil {
		progress.UpdateProgress(ctx, result.Fetched, result.Added, result.Updated, result.Failed)
	}

	s.log.WithFields(logger.Fields{
		"fetched": result.Fetched,
		"added":   result.Added,
		"updated": result.Updated,
		"failed":  result.Failed,
	}).Info("Market scrape pass finished")

	return result, nil
}

// fetchPage retrieves one page of markets from the Gamma API.
func (s *ScrapeService) fetchPage(ctx context.Context, limit, offset int) ([]gammaMarket, error) {
	var page []gammaMarket
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":     strconv.Itoa(limit),
			"offset":    strconv.Itoa(offset),
			"order":     "volume",
			"ascending": "false",
		}).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gamma api returned status %d", resp.StatusCode())
	}
	return page, nil
}

// toDomain converts a Gamma API market into the local model.
func (gm *gammaMarket) toDomain() (*domain.Market, error) {
	if gm.ID == "" {
		return nil, errors.New("market has no id")
	}
	if gm.Question == "" {
		return nil, errors.New("market has no question")
	}

	market := &domain.Market{
		PolymarketID:  gm.ID,
		Question:      gm.Question,
		Description:   gm.Description,
		Outcomes:      decodeStringList(gm.Outcomes),
		OutcomePrices: decodeStringList(gm.OutcomePrices),
		IsActive:      gm.Active,
	}

	if gm.Volume != "" {
		if v, err := strconv.ParseFloat(gm.Volume, 64); err == nil {
			market.Volume = v
		}
	}
	if gm.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
			market.EndDate = &t
		}
	}

	return market, nil
}

// decodeStringList parses a JSON-encoded string array; malformed input
// yields an empty list rather than failing the whole market.
func decodeStringList(encoded string) domain.StringArray {
	if encoded == "" {
		return domain.StringArray{}
	}
	var out domain.StringArray
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return domain.StringArray{}
	}
	return out
}
