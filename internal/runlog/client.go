package runlog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kwhite/polytrack/internal/config"
	"github.com/kwhite/polytrack/internal/domain"
)

const restPrefix = "/rest/v1"

// Client talks to the run log store over PostgREST. All methods return a
// *StoreError on failure so callers can apply their degrade-on-failure
// policy explicitly.
type Client struct {
	http *resty.Client
}

// NewClient creates a run log store client from configuration.
func NewClient(cfg *config.RunLogConfig) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.URL, "/"))
	client.SetHeader("apikey", cfg.APIKey)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Every store call gets its own network timeout so a slow store cannot
	// stall the scrape job.
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	} else {
		client.SetTimeout(15 * time.Second)
	}

	return &Client{http: client}
}

type shouldRunRequest struct {
	MinIntervalMinutes int `json:"min_interval_minutes"`
}

// ShouldRunScrape calls the store's should_run_scrape function. The function
// returns a single decision row; an empty result is reported as an error and
// left to the caller's fail-open policy.
func (c *Client) ShouldRunScrape(ctx context.Context, minIntervalMinutes int) (*domain.ShouldRunResult, error) {
	const op = "should_run_scrape"

	var rows []domain.ShouldRunResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(shouldRunRequest{MinIntervalMinutes: minIntervalMinutes}).
		SetResult(&rows).
		Post(restPrefix + "/rpc/should_run_scrape")
	if err != nil {
		return nil, storeErr(op, 0, err)
	}
	if resp.IsError() {
		return nil, storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}
	if len(rows) == 0 {
		return nil, storeErr(op, resp.StatusCode(), errors.New("empty decision result"))
	}
	return &rows[0], nil
}

// InsertRun inserts a scrape_history row and returns the assigned id.
func (c *Client) InsertRun(ctx context.Context, run *domain.ScrapeRun) (int64, error) {
	const op = "insert run"

	body := map[string]interface{}{
		"status":      run.Status,
		"instance_id": run.InstanceID,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339),
	}

	var rows []domain.ScrapeRun
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(body).
		SetResult(&rows).
		Post(restPrefix + "/scrape_history")
	if err != nil {
		return 0, storeErr(op, 0, err)
	}
	if resp.IsError() {
		return 0, storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}
	if len(rows) == 0 {
		return 0, storeErr(op, resp.StatusCode(), errors.New("insert returned no row"))
	}
	return rows[0].ID, nil
}

// UpdateRun applies a partial update to the run with the given id.
func (c *Client) UpdateRun(ctx context.Context, id int64, patch RunPatch) error {
	const op = "update run"

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+strconv.FormatInt(id, 10)).
		SetBody(patch).
		Patch(restPrefix + "/scrape_history")
	if err != nil {
		return storeErr(op, 0, err)
	}
	if resp.IsError() {
		return storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}
	return nil
}

// ListRuns returns recent runs ordered newest first. The total row count is
// read from the Content-Range header PostgREST sends for count=exact.
func (c *Client) ListRuns(ctx context.Context, limit, offset int) ([]domain.ScrapeRun, int, error) {
	const op = "list runs"

	var rows []domain.ScrapeRun
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "count=exact").
		SetQueryParams(map[string]string{
			"order":  "started_at.desc",
			"limit":  strconv.Itoa(limit),
			"offset": strconv.Itoa(offset),
		}).
		SetResult(&rows).
		Get(restPrefix + "/scrape_history")
	if err != nil {
		return nil, 0, storeErr(op, 0, err)
	}
	if resp.IsError() {
		return nil, 0, storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}

	total := len(rows)
	if n, ok := parseContentRangeTotal(resp.Header().Get("Content-Range")); ok {
		total = n
	}
	return rows, total, nil
}

// CleanupStaleScrapes invokes the store's staleness sweep and returns the
// number of force-closed rows.
func (c *Client) CleanupStaleScrapes(ctx context.Context) (int, error) {
	const op = "cleanup_stale_scrapes"

	var count int
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{}).
		SetResult(&count).
		Post(restPrefix + "/rpc/cleanup_stale_scrapes")
	if err != nil {
		return 0, storeErr(op, 0, err)
	}
	if resp.IsError() {
		return 0, storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}
	return count, nil
}

// GetStatistics fetches the store-side run history aggregation.
func (c *Client) GetStatistics(ctx context.Context) (*domain.ScrapeStatistics, error) {
	const op = "get_scrape_statistics"

	var rows []domain.ScrapeStatistics
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{}).
		SetResult(&rows).
		Post(restPrefix + "/rpc/get_scrape_statistics")
	if err != nil {
		return nil, storeErr(op, 0, err)
	}
	if resp.IsError() {
		return nil, storeErr(op, resp.StatusCode(), errors.New(resp.String()))
	}
	if len(rows) == 0 {
		return nil, storeErr(op, resp.StatusCode(), errors.New("empty statistics result"))
	}
	return &rows[0], nil
}

// parseContentRangeTotal extracts the total from a PostgREST Content-Range
// header such as "0-19/57". A "*" total means unknown.
func parseContentRangeTotal(header string) (int, bool) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return 0, false
	}
	totalPart := header[idx+1:]
	if totalPart == "" || totalPart == "*" {
		return 0, false
	}
	n, err := strconv.Atoi(totalPart)
	if err != nil {
		return 0, false
	}
	return n, true
}

var _ Store = (*Client)(nil)
