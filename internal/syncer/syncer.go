// Package syncer coordinates one synchronization run: the five slice fetches
// issued concurrently against the external source, an all-settled join, and
// a monotonic per-slice merge into the durable aggregate.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvasflow/internal/canvas"
	"canvasflow/internal/source"
	"canvasflow/internal/store"
)

// ErrSyncInProgress is returned when Synchronize is called while another run
// is outstanding. Callers back off and retry; runs are never queued.
var ErrSyncInProgress = errors.New("synchronization already in progress")

// SliceFailure records one failed slice fetch inside an otherwise usable run.
type SliceFailure struct {
	Slice  canvas.Slice `json:"slice"`
	Reason string       `json:"reason"`
}

// Result is the outcome of one coordinator run.
type Result struct {
	RunID     string
	Aggregate *canvas.Aggregate
	Failures  []SliceFailure
	Partial   bool
	Elapsed   time.Duration
}

// Coordinator owns the cached aggregate. It is the single writer; readers
// get snapshots via Aggregate().
type Coordinator struct {
	src          source.Source
	store        *store.Store
	logger       *zap.Logger
	sliceTimeout time.Duration

	runMu sync.Mutex // guards the at-most-one-concurrent-sync policy

	stateMu   sync.RWMutex
	aggregate *canvas.Aggregate
}

// New creates a Coordinator seeded with the last persisted aggregate.
func New(src source.Source, st *store.Store, sliceTimeout time.Duration, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sliceTimeout <= 0 {
		sliceTimeout = 30 * time.Second
	}

	aggregate, err := st.LoadAggregate()
	if err != nil {
		return nil, fmt.Errorf("load cached aggregate: %w", err)
	}

	return &Coordinator{
		src:          src,
		store:        st,
		logger:       logger,
		sliceTimeout: sliceTimeout,
		aggregate:    aggregate,
	}, nil
}

// Aggregate returns a consistent snapshot of the cached aggregate.
func (c *Coordinator) Aggregate() *canvas.Aggregate {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.aggregate.Clone()
}

// sliceResult is the settled outcome of one slice fetch.
type sliceResult struct {
	slice canvas.Slice
	err   error

	courses        []canvas.Course
	assignments    []canvas.Assignment
	calendarEvents []canvas.Event
	upcomingEvents []canvas.Event
	profile        *canvas.UserProfile
}

// Synchronize runs one sync: inject the scraper, fetch all five slices
// concurrently, wait for every fetch to settle, merge successes into the
// cache, and persist when at least one slice succeeded.
//
// A second call while one is outstanding fails immediately with
// ErrSyncInProgress. A missing source surfaces as source.ErrNoSource before
// any slice is attempted.
func (c *Coordinator) Synchronize(ctx context.Context) (*Result, error) {
	if !c.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.runMu.Unlock()

	start := time.Now()
	runID := uuid.NewString()

	if err := c.src.EnsureScraper(ctx); err != nil {
		if errors.Is(err, source.ErrNoSource) {
			return nil, source.ErrNoSource
		}
		return nil, fmt.Errorf("prepare source: %w", err)
	}

	results := make([]sliceResult, len(canvas.Slices))
	var wg sync.WaitGroup
	for i, slice := range canvas.Slices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, c.sliceTimeout)
			defer cancel()
			results[i] = c.fetchSlice(fetchCtx, slice)
		}()
	}
	wg.Wait()

	c.stateMu.Lock()
	merged := c.aggregate.Clone()
	var failures []SliceFailure
	succeeded := 0
	for _, res := range results {
		if res.err != nil {
			failures = append(failures, SliceFailure{Slice: res.slice, Reason: res.err.Error()})
			c.logger.Warn("slice fetch failed",
				zap.String("run", runID),
				zap.String("slice", string(res.slice)),
				zap.Error(res.err))
			continue
		}
		if mergeSlice(merged, res) {
			succeeded++
		}
	}
	if succeeded > 0 {
		merged.LastUpdate = time.Now()
	}
	c.aggregate = merged
	c.stateMu.Unlock()

	if succeeded > 0 {
		if err := c.store.SaveAggregate(merged); err != nil {
			c.logger.Error("persist aggregate failed", zap.String("run", runID), zap.Error(err))
		}
	}

	result := &Result{
		RunID:     runID,
		Aggregate: merged.Clone(),
		Failures:  failures,
		Partial:   len(failures) > 0,
		Elapsed:   time.Since(start),
	}
	c.logger.Info("sync complete",
		zap.String("run", runID),
		zap.Int("slices_ok", succeeded),
		zap.Int("slices_failed", len(failures)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (c *Coordinator) fetchSlice(ctx context.Context, slice canvas.Slice) sliceResult {
	res := sliceResult{slice: slice}
	switch slice {
	case canvas.SliceCourses:
		res.courses, res.err = c.src.FetchCourses(ctx)
	case canvas.SliceAllAssignments:
		res.assignments, res.err = c.src.FetchAllAssignments(ctx)
	case canvas.SliceCalendarEvents:
		res.calendarEvents, res.err = c.src.FetchCalendarEvents(ctx)
	case canvas.SliceUpcomingEvents:
		res.upcomingEvents, res.err = c.src.FetchUpcomingEvents(ctx)
	case canvas.SliceUserProfile:
		res.profile, res.err = c.src.FetchUserProfile(ctx)
	default:
		res.err = fmt.Errorf("unknown slice %q", slice)
	}
	return res
}

// mergeSlice writes one successful slice into the aggregate. Empty results
// leave the prior cached value untouched and do not count as an update.
func mergeSlice(ag *canvas.Aggregate, res sliceResult) bool {
	switch res.slice {
	case canvas.SliceCourses:
		if len(res.courses) == 0 {
			return false
		}
		ag.Courses = res.courses
	case canvas.SliceAllAssignments:
		if len(res.assignments) == 0 {
			return false
		}
		ag.AllAssignments = res.assignments
		ag.Assignments = canvas.GroupByCourse(res.assignments)
	case canvas.SliceCalendarEvents:
		if len(res.calendarEvents) == 0 {
			return false
		}
		ag.CalendarEvents = res.calendarEvents
	case canvas.SliceUpcomingEvents:
		if len(res.upcomingEvents) == 0 {
			return false
		}
		ag.UpcomingEvents = res.upcomingEvents
	case canvas.SliceUserProfile:
		if res.profile == nil {
			return false
		}
		ag.UserProfile = res.profile
	default:
		return false
	}
	return true
}
