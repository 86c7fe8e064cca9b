package llm

import (
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasflow/internal/canvas"
)

func TestBuildPlanPrompt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	input := canvas.PlanInput{
		TotalAssignments: 4,
		Courses:          []string{"Biology", "English"},
		Completed:        1,
		Upcoming: []canvas.PlanAssignment{
			{Name: "Lab Report", Course: "Biology", DueDate: now.Add(48 * time.Hour), Points: 25},
		},
		Overdue: []canvas.PlanAssignment{
			{Name: "Essay Draft", Course: "English", DueDate: now.Add(-24 * time.Hour), Points: 50},
		},
	}

	prompt := BuildPlanPrompt(input, now)

	assert.Contains(t, prompt, "TODAY'S DATE: Tuesday, March 10, 2026")
	assert.Contains(t, prompt, "Total Assignments: 4")
	assert.Contains(t, prompt, "Courses: Biology, English")
	assert.Contains(t, prompt, "Due this week: 1")
	assert.Contains(t, prompt, "Overdue: 1")
	assert.Contains(t, prompt, "Completed: 1")
	assert.Contains(t, prompt, "Lab Report (Biology) - Due: 3/12/2026, 25 points")
	assert.Contains(t, prompt, "Essay Draft (English) - Was due: 3/9/2026, 50 points")
}

func TestBuildPlanPromptCaps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var input canvas.PlanInput
	for i := 0; i < 12; i++ {
		input.Upcoming = append(input.Upcoming, canvas.PlanAssignment{
			Name: "Upcoming", Course: "C", DueDate: now.Add(time.Hour),
		})
		input.Overdue = append(input.Overdue, canvas.PlanAssignment{
			Name: "Overdue", Course: "C", DueDate: now.Add(-time.Hour),
		})
	}

	prompt := BuildPlanPrompt(input, now)

	assert.Equal(t, 8, strings.Count(prompt, "Upcoming (C)"))
	assert.Equal(t, 5, strings.Count(prompt, "Overdue (C)"))
}

func TestPlannerGeneratePlan(t *testing.T) {
	ctx := t.Context()
	now := time.Now()
	dueAt := now.Add(48 * time.Hour)
	assignments := []canvas.Assignment{
		{ID: "a1", Name: "Lab Report", CourseName: "Biology", DueDate: &dueAt},
	}

	t.Run("falls back to the next model on failure", func(t *testing.T) {
		var calls atomic.Int32
		client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			writeSSE(w,
				`{"choices":[{"delta":{"content":"Study plan: start with the lab."}}]}`,
				"[DONE]",
			)
		})

		planner := NewPlanner(client, nil, 1500, nil)
		result, err := planner.GeneratePlan(ctx, assignments, canvas.DefaultTimeRange, nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "Study plan: start with the lab.", result.Data)
		require.Len(t, result.Failures, 1)
		assert.Contains(t, result.Failures[0].Reason, "429")
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("all candidates failing reports the trace", func(t *testing.T) {
		client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		})

		planner := NewPlanner(client, nil, 1500, nil)
		result, err := planner.GeneratePlan(ctx, assignments, canvas.DefaultTimeRange, nil)
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Len(t, result.Failures, len(DefaultCandidates()))
	})
}
