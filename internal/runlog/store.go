package runlog

import (
	"context"
	"time"

	"github.com/kwhite/polytrack/internal/domain"
)

// Store is the run log store surface consumed by the scrape coordinator and
// the API handlers. The production implementation is Client, which talks to
// a Supabase project over PostgREST; tests substitute fakes.
type Store interface {
	// ShouldRunScrape asks the store-side decision function whether a new
	// scrape may start given the minimum inter-run interval.
	ShouldRunScrape(ctx context.Context, minIntervalMinutes int) (*domain.ShouldRunResult, error)

	// InsertRun records a new scrape run and returns its assigned id.
	InsertRun(ctx context.Context, run *domain.ScrapeRun) (int64, error)

	// UpdateRun applies a partial update to the run with the given id.
	UpdateRun(ctx context.Context, id int64, patch RunPatch) error

	// ListRuns returns recent runs ordered newest first, plus the total count.
	ListRuns(ctx context.Context, limit, offset int) ([]domain.ScrapeRun, int, error)

	// CleanupStaleScrapes force-closes abandoned running rows past the
	// store's staleness threshold and returns how many were closed.
	CleanupStaleScrapes(ctx context.Context) (int, error)

	// GetStatistics returns the store-side run history aggregation.
	GetStatistics(ctx context.Context) (*domain.ScrapeStatistics, error)
}

// RunPatch is a partial update against a scrape_history row. Nil fields are
// left untouched by the store.
type RunPatch struct {
	Status          *domain.RunStatus `json:"status,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	MarketsFetched  *int              `json:"markets_fetched,omitempty"`
	MarketsAdded    *int              `json:"markets_added,omitempty"`
	MarketsUpdated  *int              `json:"markets_updated,omitempty"`
	MarketsFailed   *int              `json:"markets_failed,omitempty"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	DurationSeconds *float64          `json:"duration_seconds,omitempty"`
}
