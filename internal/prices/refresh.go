package prices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ramonehamilton/deckforge/internal/collection"
)

// RefreshConfig configures the scheduled price refresh.
type RefreshConfig struct {
	// Schedule is a standard five-field cron expression or descriptor.
	// Default: "0 6 * * *" (06:00 UTC daily)
	Schedule string

	Cache *Cache

	// Targets lists the printings to refresh, usually the owned collection.
	Targets func(ctx context.Context) ([]collection.CardRef, error)

	// Workers bounds concurrent upstream fetches.
	// Default: 4
	Workers int

	Logger *slog.Logger
}

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Requested int               `json:"requested"`
	Refreshed int               `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// RefreshScheduler runs price refreshes on a cron schedule. Fetched prices
// flow through the Cache, which records them in its Store.
type RefreshScheduler struct {
	config RefreshConfig
	logger *slog.Logger
	cron   *cron.Cron
	entry  cron.EntryID

	mu   sync.Mutex
	last *RefreshResult
}

// NewRefreshScheduler validates config and registers the refresh job.
func NewRefreshScheduler(config RefreshConfig) (*RefreshScheduler, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if config.Targets == nil {
		return nil, fmt.Errorf("targets is required")
	}
	if config.Schedule == "" {
		config.Schedule = "0 6 * * *"
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RefreshScheduler{
		config: config,
		logger: config.Logger,
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}, nil
}

// Start schedules the job and returns immediately. Runs use ctx, so
// cancelling it aborts an in-progress refresh.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.config.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Scheduled price refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.config.Schedule, err)
	}
	s.entry = id
	s.cron.Start()

	s.logger.Info("Price refresh scheduler started",
		"schedule", s.config.Schedule, "next_run", s.NextRun())
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Price refresh scheduler stopped")
}

// NextRun returns the next scheduled run, or the zero time before Start.
func (s *RefreshScheduler) NextRun() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// LastResult returns the most recent run summary, if any.
func (s *RefreshScheduler) LastResult() *RefreshResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunOnce refreshes every target now.
func (s *RefreshScheduler) RunOnce(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()

	targets, err := s.config.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh targets: %w", err)
	}

	fetched, err := s.config.Cache.GetMany(ctx, targets, s.config.Workers)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		StartedAt: start,
		Duration:  time.Since(start),
		Requested: len(targets),
		Refreshed: len(fetched.Prices),
	}
	if len(fetched.Errors) > 0 {
		result.Failed = make(map[string]string, len(fetched.Errors))
		for key, err := range fetched.Errors {
			result.Failed[key] = err.Error()
		}
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	s.logger.Info("Price refresh complete",
		"requested", result.Requested,
		"refreshed", result.Refreshed,
		"failed", len(result.Failed),
		"duration", result.Duration)
	return result, nil
}
