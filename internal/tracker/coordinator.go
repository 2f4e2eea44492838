package tracker

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/kwhite/polytrack/internal/domain"
	"github.com/kwhite/polytrack/internal/logger"
	"github.com/kwhite/polytrack/internal/runlog"
)

const (
	// DefaultMinIntervalMinutes is the minimum gap between scrape runs when
	// the caller does not override it.
	DefaultMinIntervalMinutes = 55

	// maxErrorMessageLen bounds the error message stored on a failed run.
	maxErrorMessageLen = 500
)

// Coordinator gates whether a periodic scrape may start and records the
// lifecycle of one run in the shared run log store. It is constructed per
// job execution and holds at most one run id.
//
// Admission control is best effort: the store's decision function is
// consulted before starting, but nothing closes the window between the
// check and the insert. Tracking failures never abort the scrape itself;
// every store error degrades to a logged warning and a safe default.
type Coordinator struct {
	store      runlog.Store
	log        *logger.Logger
	instanceID string
	runID      int64
	held       bool
}

// NewCoordinator creates a coordinator for one job execution.
func NewCoordinator(store runlog.Store, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Coordinator{
		store:      store,
		log:        log.WithField(logger.FieldComponent, "tracker"),
		instanceID: generateInstanceID(),
	}
}

// generateInstanceID derives an identifier for this process from host name
// and pid. It distinguishes concurrent runners in the run log; it is not a
// lock.
func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// InstanceID returns the identifier recorded on runs started by this
// coordinator.
func (c *Coordinator) InstanceID() string {
	return c.instanceID
}

// RunID returns the held run id, if any.
func (c *Coordinator) RunID() (int64, bool) {
	return c.runID, c.held
}

// ShouldRun asks the run log store whether a new scrape may start now.
// The store allows a run when no prior run exists, the most recent run is
// terminal and at least minIntervalMinutes old, and denies while a run is
// still marked running. If the check itself fails the policy fails open:
// a missed duplicate run is preferable to the periodic job never running.
func (c *Coordinator) ShouldRun(ctx context.Context, minIntervalMinutes int) (bool, string) {
	if minIntervalMinutes <= 0 {
		minIntervalMinutes = DefaultMinIntervalMinutes
	}

	c.log.Info("Checking if scrape should run...")

	result, err := c.store.ShouldRunScrape(ctx, minIntervalMinutes)
	if err != nil {
		c.log.WithError(err).Warn("Could not check scrape status, allowing scrape to proceed")
		return true, fmt.Sprintf("could not verify last scrape time: %v", err)
	}

	ok, reason := EvaluateDecision(result, minIntervalMinutes)
	if ok {
		c.log.WithField("reason", reason).Info("Scrape check passed")
	} else {
		c.log.WithField("reason", reason).Warn("Scrape check failed")
	}
	return ok, reason
}

// EvaluateDecision turns the store's decision row into an admission verdict
// with a human-readable reason. Shared by the coordinator and the API's
// should-run endpoint.
func EvaluateDecision(result *domain.ShouldRunResult, minIntervalMinutes int) (bool, string) {
	if result.ShouldRun {
		return true, "sufficient time has passed since last scrape"
	}

	minutesSince := 0.0
	if result.MinutesSinceLastScrape != nil {
		minutesSince = *result.MinutesSinceLastScrape
	}

	if result.LastScrapeStatus != nil && domain.RunStatus(*result.LastScrapeStatus) == domain.RunStatusRunning {
		return false, fmt.Sprintf("another scrape is running (started %.1fm ago)", minutesSince)
	}
	return false, fmt.Sprintf("too soon since last scrape (%.1fm ago, need %dm)", minutesSince, minIntervalMinutes)
}

// StartRun records the start of a scrape run and holds its id for later
// updates. On store failure the coordinator holds no id and returns ok
// false; the caller proceeds with the scrape untracked.
func (c *Coordinator) StartRun(ctx context.Context) (int64, bool) {
	run := &domain.ScrapeRun{
		Status:     domain.RunStatusRunning,
		InstanceID: c.instanceID,
		StartedAt:  time.Now().UTC(),
	}

	id, err := c.store.InsertRun(ctx, run)
	if err != nil {
		c.log.WithError(err).Error("Failed to record scrape start")
		return 0, false
	}

	c.runID = id
	c.held = true
	c.log.WithFields(logger.Fields{
		logger.FieldRunID:      id,
		logger.FieldInstanceID: c.instanceID,
	}).Info("Scrape run started")
	return id, true
}

// UpdateProgress overwrites the counters on the held run. Safe to call
// repeatedly; a no-op when no run is held.
func (c *Coordinator) UpdateProgress(ctx context.Context, fetched, added, updated, failed int) {
	if !c.held {
		return
	}

	patch := runlog.RunPatch{
		MarketsFetched: &fetched,
		MarketsAdded:   &added,
		MarketsUpdated: &updated,
		MarketsFailed:  &failed,
	}
	if err := c.store.UpdateRun(ctx, c.runID, patch); err != nil {
		c.log.WithError(err).Warn("Failed to update scrape progress")
	}
}

// CompleteRun marks the held run as completed with final counters and a
// duration rounded to two decimal places.
func (c *Coordinator) CompleteRun(ctx context.Context, fetched, added, updated, failed int, durationSeconds float64) {
	if !c.held {
		c.log.Warn("No scrape run held to complete")
		return
	}

	status := domain.RunStatusCompleted
	completedAt := time.Now().UTC()
	duration := roundSeconds(durationSeconds)

	patch := runlog.RunPatch{
		Status:          &status,
		CompletedAt:     &completedAt,
		MarketsFetched:  &fetched,
		MarketsAdded:    &added,
		MarketsUpdated:  &updated,
		MarketsFailed:   &failed,
		DurationSeconds: &duration,
	}
	if err := c.store.UpdateRun(ctx, c.runID, patch); err != nil {
		c.log.WithError(err).Error("Failed to mark scrape as completed")
		return
	}

	log := c.log.WithFields(logger.Fields{
		logger.FieldRunID: c.runID,
		"duration_s":      duration,
		"fetched":         fetched,
		"added":           added,
		"updated":         updated,
	})
	if failed > 0 {
		log = log.WithField("failed", failed)
	}
	log.Info("Scrape run completed")
}

// FailRun marks the held run as failed. The stored error message is
// truncated to protect the store; durationSeconds is optional.
func (c *Coordinator) FailRun(ctx context.Context, errorMessage string, durationSeconds *float64) {
	if !c.held {
		c.log.Warn("No scrape run held to mark as failed")
		return
	}

	status := domain.RunStatusFailed
	completedAt := time.Now().UTC()
	message := truncate(errorMessage, maxErrorMessageLen)

	patch := runlog.RunPatch{
		Status:       &status,
		CompletedAt:  &completedAt,
		ErrorMessage: &message,
	}
	if durationSeconds != nil {
		duration := roundSeconds(*durationSeconds)
		patch.DurationSeconds = &duration
	}
	if err := c.store.UpdateRun(ctx, c.runID, patch); err != nil {
		c.log.WithError(err).Error("Failed to mark scrape as failed")
		return
	}

	c.log.WithFields(logger.Fields{
		logger.FieldRunID: c.runID,
		"error":           truncate(errorMessage, 200),
	}).Error("Scrape run marked as failed")
}

// CleanupStale asks the store to force-close abandoned running rows. This
// is the sole recovery path for runs whose instance crashed.
func (c *Coordinator) CleanupStale(ctx context.Context) {
	count, err := c.store.CleanupStaleScrapes(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Failed to cleanup stale scrapes")
		return
	}
	if count > 0 {
		c.log.WithField(logger.FieldCount, count).Info("Cleaned up stale scrape runs")
	}
}

// Statistics returns the store-side run history aggregation, or an empty
// struct when the store cannot be reached.
func (c *Coordinator) Statistics(ctx context.Context) *domain.ScrapeStatistics {
	stats, err := c.store.GetStatistics(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Failed to get scrape statistics")
		return &domain.ScrapeStatistics{}
	}
	return stats
}

func roundSeconds(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
