package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvasflow/internal/canvas"
)

// AggregateProvider hands the scheduler a consistent snapshot of the cached
// assignments at the start of each tick.
type AggregateProvider func() []canvas.Assignment

// Intervals for the two cycles. Overridable in tests.
type Intervals struct {
	DeadlineCheck time.Duration
	SummaryPeriod time.Duration
	// Local wall-clock hour the daily summary targets.
	SummaryHour int
}

// DefaultIntervals matches the product cadence: hourly checks, daily
// summary at 08:00.
var DefaultIntervals = Intervals{
	DeadlineCheck: time.Hour,
	SummaryPeriod: 24 * time.Hour,
	SummaryHour:   8,
}

// Scheduler owns the two notification timers. The cycles are independent:
// each reads its own snapshot and neither mutates shared state, so no
// cross-timer locking is needed. Reschedule always cancels both timers and
// recreates them from the new settings.
type Scheduler struct {
	provider  AggregateProvider
	sink      Sink
	logger    *zap.Logger
	intervals Intervals
	now       func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	settings Settings
}

// NewScheduler creates a stopped scheduler. Call Reschedule to arm it.
func NewScheduler(provider AggregateProvider, sink Sink, intervals Intervals, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if intervals.DeadlineCheck <= 0 {
		intervals.DeadlineCheck = DefaultIntervals.DeadlineCheck
	}
	if intervals.SummaryPeriod <= 0 {
		intervals.SummaryPeriod = DefaultIntervals.SummaryPeriod
	}
	return &Scheduler{
		provider:  provider,
		sink:      sink,
		logger:    logger,
		intervals: intervals,
		now:       time.Now,
	}
}

// Reschedule cancels any armed timers and recreates both cycles from the
// given settings. Disabled settings leave the scheduler stopped. Idempotent.
func (s *Scheduler) Reschedule(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.settings = settings

	if !settings.Enabled {
		s.logger.Info("notifications disabled, timers cleared")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	summaryDelay := NextSummaryDelay(s.now(), s.intervals.SummaryHour)
	s.logger.Info("notification timers armed",
		zap.String("frequency", settings.Frequency),
		zap.Duration("deadline_check", s.intervals.DeadlineCheck),
		zap.Duration("first_summary_in", summaryDelay))

	go s.run(ctx, s.done, settings, summaryDelay)
}

// Stop cancels both timers and waits for the run loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}, settings Settings, summaryDelay time.Duration) {
	defer close(done)

	deadlineTicker := time.NewTicker(s.intervals.DeadlineCheck)
	defer deadlineTicker.Stop()

	summaryTimer := time.NewTimer(summaryDelay)
	defer summaryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadlineTicker.C:
			now := s.now()
			CheckDeadlines(ctx, s.provider(), settings, s.sink, now, s.logger)
		case <-summaryTimer.C:
			now := s.now()
			DailySummary(ctx, s.provider(), settings, s.sink, now)
			summaryTimer.Reset(s.intervals.SummaryPeriod)
		}
	}
}

// NextSummaryDelay returns the wait until the next occurrence of hour:00
// at or after now. A 10:00 "now" with an 08:00 target schedules tomorrow.
func NextSummaryDelay(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
