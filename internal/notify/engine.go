// Package notify implements the notification decision engine: urgency
// classification of cached assignments, quiet-hours suppression, frequency
// policy, and the two periodic cycles (hourly deadline check, daily summary).
package notify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"canvasflow/internal/canvas"
	"canvasflow/internal/config"
)

// Settings are the user-facing notification knobs. Changing them requires a
// Reschedule; stale timers must never fire with old parameters.
type Settings struct {
	Enabled    bool   `json:"enabled"`
	Frequency  string `json:"frequency"`
	QuietStart string `json:"quiet_start"`
	QuietEnd   string `json:"quiet_end"`
}

// Notification is one alert handed to the sink. Fire-and-forget; the engine
// assumes no delivery guarantee.
type Notification struct {
	Title    string
	Message  string
	Priority int
}

// Sink delivers notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) (id string, err error)
}

// LogSink writes notifications to the logger. The default sink when no
// desktop integration is wired.
type LogSink struct {
	Logger *zap.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(_ context.Context, n Notification) (string, error) {
	id := uuid.NewString()
	s.Logger.Info("notification",
		zap.String("id", id),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.Int("priority", n.Priority))
	return id, nil
}

// InQuietWindow reports whether now falls inside the [start, end) quiet
// window. A window with start > end wraps midnight.
func InQuietWindow(now time.Time, start, end config.Clock) bool {
	minutes := now.Hour()*60 + now.Minute()
	s, e := start.Minutes(), end.Minutes()
	if s > e {
		return minutes >= s || minutes < e
	}
	return minutes >= s && minutes < e
}

// CheckDeadlines is the hourly cycle: classify the cached assignments and
// emit per the frequency policy. No-ops when disabled or inside the quiet
// window. Returns the notifications emitted (useful for tests and tracing).
func CheckDeadlines(ctx context.Context, assignments []canvas.Assignment, settings Settings, sink Sink, now time.Time, logger *zap.Logger) []Notification {
	if !settings.Enabled {
		return nil
	}

	start, err := config.ParseClock(settings.QuietStart)
	if err != nil {
		start, _ = config.ParseClock("22:00")
	}
	end, err := config.ParseClock(settings.QuietEnd)
	if err != nil {
		end, _ = config.ParseClock("08:00")
	}
	if InQuietWindow(now, start, end) {
		logger.Debug("deadline check suppressed by quiet window")
		return nil
	}

	classified := canvas.Classify(assignments, now)
	var emitted []Notification

	emit := func(bucket canvas.Bucket) {
		subset := classified.Bucket(bucket)
		if len(subset) == 0 {
			return
		}
		n := buildNotification(bucket, subset, now)
		if _, err := sink.Notify(ctx, n); err != nil {
			logger.Warn("sink emit failed", zap.String("bucket", string(bucket)), zap.Error(err))
			return
		}
		emitted = append(emitted, n)
	}

	hour := now.Hour()
	switch settings.Frequency {
	case "minimal":
		emit(canvas.BucketOverdue)

	case "balanced":
		// Strict precedence: only the first non-empty bucket fires.
		switch {
		case len(classified.Overdue) > 0:
			emit(canvas.BucketOverdue)
		case len(classified.DueSoon) > 0:
			emit(canvas.BucketDueSoon)
		case len(classified.DueToday) > 0 && hour >= 8 && hour < 20:
			emit(canvas.BucketDueToday)
		}

	case "aggressive":
		// Fires once per non-empty bucket, not just the first.
		emit(canvas.BucketOverdue)
		emit(canvas.BucketDueSoon)
		emit(canvas.BucketDueToday)
		if hour >= 18 {
			emit(canvas.BucketDueTomorrow)
		}
	}
	return emitted
}

// buildNotification renders the bucket-specific message text: singular
// phrasing for one assignment, a capped inline list for several.
func buildNotification(bucket canvas.Bucket, assignments []canvas.Assignment, now time.Time) Notification {
	n := len(assignments)
	switch bucket {
	case canvas.BucketOverdue:
		if n == 1 {
			return Notification{
				Title:    "Assignment Overdue",
				Message:  assignments[0].Name + " is overdue",
				Priority: 2,
			}
		}
		return Notification{
			Title:    fmt.Sprintf("%d Assignments Overdue", n),
			Message:  nameList(assignments, 3),
			Priority: 2,
		}

	case canvas.BucketDueSoon:
		if n == 1 {
			hours := int(math.Ceil(assignments[0].DueDate.Sub(now).Hours()))
			return Notification{
				Title:    "Assignment Due Soon",
				Message:  fmt.Sprintf("%s is due in %d hour%s", assignments[0].Name, hours, plural(hours)),
				Priority: 2,
			}
		}
		return Notification{
			Title:    "Assignments Due Soon",
			Message:  fmt.Sprintf("%d assignments due in the next 3 hours", n),
			Priority: 2,
		}

	case canvas.BucketDueToday:
		if n == 1 {
			return Notification{
				Title:    "Assignment Due Today",
				Message:  assignments[0].Name,
				Priority: 1,
			}
		}
		return Notification{
			Title:    fmt.Sprintf("%d Assignments Due Today", n),
			Message:  nameList(assignments, 2),
			Priority: 1,
		}

	default: // dueTomorrow
		return Notification{
			Title:    fmt.Sprintf("%d Assignment%s Due Tomorrow", n, plural(n)),
			Message:  nameList(assignments, 2),
			Priority: 1,
		}
	}
}

// DailySummary builds the once-a-day aggregate message. Independent of
// frequency policy and quiet hours; only the enabled flag gates it.
func DailySummary(ctx context.Context, assignments []canvas.Assignment, settings Settings, sink Sink, now time.Time) (Notification, bool) {
	if !settings.Enabled {
		return Notification{}, false
	}

	classified := canvas.Classify(assignments, now)
	var parts []string
	if n := len(classified.Overdue); n > 0 {
		parts = append(parts, fmt.Sprintf("%d overdue", n))
	}
	if n := len(classified.DueToday); n > 0 {
		parts = append(parts, fmt.Sprintf("%d due today", n))
	}
	if n := len(classified.DueTomorrow); n > 0 {
		parts = append(parts, fmt.Sprintf("%d due tomorrow", n))
	}

	var n Notification
	if len(parts) == 0 {
		n = Notification{
			Title:    "Daily Summary",
			Message:  "No urgent assignments. Great job staying on top of your work!",
			Priority: 1,
		}
	} else {
		n = Notification{
			Title:    "Daily Summary",
			Message:  "You have: " + strings.Join(parts, ", "),
			Priority: 2,
		}
	}
	_, err := sink.Notify(ctx, n)
	return n, err == nil
}

func nameList(assignments []canvas.Assignment, limit int) string {
	names := make([]string, 0, limit)
	for i, a := range assignments {
		if i == limit {
			break
		}
		names = append(names, a.Name)
	}
	msg := strings.Join(names, ", ")
	if extra := len(assignments) - limit; extra > 0 {
		msg += fmt.Sprintf(" and %d more", extra)
	}
	return msg
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
