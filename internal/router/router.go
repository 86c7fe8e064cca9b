// Package router executes a unit of work against a priority-ordered list of
// model candidates, falling back through the list until one succeeds and
// recording a trace of every failed attempt.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrAllCandidatesFailed is wrapped by the error returned when the whole
// fallback chain is exhausted.
var ErrAllCandidatesFailed = errors.New("all model candidates failed")

// Candidate is one backend option. Lower Priority is tried first; ties keep
// their original list order.
type Candidate struct {
	ID       string
	Name     string
	Priority int
}

// Attempt records one failed candidate before the first success.
type Attempt struct {
	Candidate string
	Reason    string
}

// Result is the outcome of one router invocation. Failures holds the trace
// of candidates that failed before the success (or all of them, when
// Success is false).
type Result struct {
	Success  bool
	Data     string
	Model    Candidate
	Failures []Attempt
	Duration time.Duration
}

// ExhaustedError carries the full failure trace when every candidate failed.
type ExhaustedError struct {
	Failures []Attempt
}

func (e *ExhaustedError) Error() string {
	last := "no candidates"
	if n := len(e.Failures); n > 0 {
		last = fmt.Sprintf("last: %s (%s)", e.Failures[n-1].Candidate, e.Failures[n-1].Reason)
	}
	return fmt.Sprintf("all %d model candidates failed, %s", len(e.Failures), last)
}

func (e *ExhaustedError) Unwrap() error { return ErrAllCandidatesFailed }

// Work runs one candidate attempt. Streaming happens inside the work
// function; the router only observes whether the whole call succeeded.
type Work func(ctx context.Context, candidateID string) (string, error)

// ExecuteWithFallback tries candidates strictly in priority order until one
// succeeds. Every failure kind advances to the next candidate; availability
// wins over fast-failing. When all candidates fail the returned error is an
// *ExhaustedError and the Result carries the complete trace.
func ExecuteWithFallback(ctx context.Context, candidates []Candidate, work Work, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	start := time.Now()
	var failures []Attempt

	for _, candidate := range ordered {
		if err := ctx.Err(); err != nil {
			failures = append(failures, Attempt{Candidate: candidate.Name, Reason: err.Error()})
			break
		}

		logger.Debug("trying candidate",
			zap.String("model", candidate.ID),
			zap.Int("prior_failures", len(failures)))

		data, err := work(ctx, candidate.ID)
		if err != nil {
			logger.Warn("candidate failed",
				zap.String("model", candidate.ID),
				zap.Error(err))
			failures = append(failures, Attempt{Candidate: candidate.Name, Reason: err.Error()})
			continue
		}

		return &Result{
			Success:  true,
			Data:     data,
			Model:    candidate,
			Failures: failures,
			Duration: time.Since(start),
		}, nil
	}

	return &Result{
			Success:  false,
			Failures: failures,
			Duration: time.Since(start),
		}, &ExhaustedError{
			Failures: failures,
		}
}
