package domain

import "time"

// RunStatus represents the lifecycle status of a scrape run.
// A run starts as RunStatusRunning and transitions exactly once to either
// RunStatusCompleted or RunStatusFailed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one execution attempt of the periodic market scrape,
// as stored in the shared scrape_history table.
type ScrapeRun struct {
	ID              int64      `json:"id"`
	InstanceID      string     `json:"instance_id,omitempty"`
	Status          RunStatus  `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	MarketsFetched  int        `json:"markets_fetched"`
	MarketsAdded    int        `json:"markets_added"`
	MarketsUpdated  int        `json:"markets_updated"`
	MarketsFailed   int        `json:"markets_failed"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ShouldRunResult is the run log store's answer to the admission check.
type ShouldRunResult struct {
	ShouldRun              bool     `json:"should_run"`
	LastScrapeStatus       *string  `json:"last_scrape_status,omitempty"`
	MinutesSinceLastScrape *float64 `json:"minutes_since_last_scrape,omitempty"`
}

// ScrapeStatistics aggregates run history for operators.
type ScrapeStatistics struct {
	TotalScrapes           int        `json:"total_scrapes"`
	SuccessfulScrapes      int        `json:"successful_scrapes"`
	FailedScrapes          int        `json:"failed_scrapes"`
	LastScrapeTime         *time.Time `json:"last_scrape_time,omitempty"`
	LastScrapeStatus       *string    `json:"last_scrape_status,omitempty"`
	AverageDurationSeconds *float64   `json:"average_duration_seconds,omitempty"`
	TotalMarketsTracked    int        `json:"total_markets_tracked"`
}
