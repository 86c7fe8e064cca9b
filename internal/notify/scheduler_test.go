package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"canvasflow/internal/canvas"
)

// sinkFunc adapts a func to the Sink interface for tests.
type sinkFunc func(n Notification)

func (f sinkFunc) Notify(_ context.Context, n Notification) (string, error) {
	f(n)
	return "", nil
}

func TestNextSummaryDelay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Duration
	}{
		{
			name: "before target schedules today",
			now:  time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
			hour: 8,
			want: 2 * time.Hour,
		},
		{
			name: "after target schedules tomorrow",
			now:  time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			hour: 8,
			want: 22 * time.Hour,
		},
		{
			name: "exactly at target schedules tomorrow",
			now:  time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			hour: 8,
			want: 24 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSummaryDelay(tt.now, tt.hour))
		})
	}
}

func TestScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := func() []canvas.Assignment { return nil }
	fast := Intervals{
		DeadlineCheck: 10 * time.Millisecond,
		SummaryPeriod: time.Hour,
		SummaryHour:   8,
	}

	t.Run("disabled settings leave it stopped", func(t *testing.T) {
		sink := &recordingSink{}
		s := NewScheduler(provider, sink, fast, nil)

		s.Reschedule(Settings{Enabled: false})
		time.Sleep(50 * time.Millisecond)
		s.Stop()

		assert.Empty(t, sink.notifications)
	})

	t.Run("deadline ticks reach the sink", func(t *testing.T) {
		var mu sync.Mutex
		var count int
		sink := sinkFunc(func(Notification) {
			mu.Lock()
			count++
			mu.Unlock()
		})

		// Daytime fixed clock so quiet hours never interfere.
		fixedNow := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		dueAt := fixedNow.Add(-time.Hour)
		s := NewScheduler(func() []canvas.Assignment {
			return []canvas.Assignment{{Name: "Late Essay", DueDate: &dueAt}}
		}, sink, fast, nil)
		s.now = func() time.Time { return fixedNow }

		s.Reschedule(Settings{Enabled: true, Frequency: "minimal", QuietStart: "22:00", QuietEnd: "08:00"})
		time.Sleep(60 * time.Millisecond)
		s.Stop()

		mu.Lock()
		defer mu.Unlock()
		assert.Greater(t, count, 0)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		s := NewScheduler(provider, &recordingSink{}, fast, nil)
		s.Reschedule(Settings{Enabled: true, Frequency: "balanced", QuietStart: "22:00", QuietEnd: "08:00"})
		s.Stop()
		s.Stop()
	})

	t.Run("reschedule replaces the running timers", func(t *testing.T) {
		s := NewScheduler(provider, &recordingSink{}, fast, nil)

		for i := 0; i < 3; i++ {
			s.Reschedule(Settings{Enabled: true, Frequency: "balanced", QuietStart: "22:00", QuietEnd: "08:00"})
		}
		s.Reschedule(Settings{Enabled: false})

		s.mu.Lock()
		assert.Nil(t, s.cancel)
		s.mu.Unlock()
	})
}
