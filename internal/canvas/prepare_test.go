package canvas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparePlanInput(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assignments := []Assignment{
		{ID: "1", Name: "Lab Report", CourseName: "Chemistry", DueDate: due(now.Add(48 * time.Hour)), PointsPossible: pts(25)},
		{ID: "2", Name: "Essay Draft", CourseName: "English", DueDate: due(now.Add(-24 * time.Hour)), PointsPossible: pts(50)},
		{ID: "3", Name: "Quiz 4", CourseName: "Chemistry", DueDate: due(now.Add(12 * time.Hour))},
		{ID: "4", Name: "Done Already", CourseName: "English", DueDate: due(now.Add(24 * time.Hour)), Submission: &Submission{Submitted: true}},
		{ID: "5", Name: "Far Future", CourseName: "History", DueDate: due(now.AddDate(0, 2, 0))},
		{ID: "6", Name: "No Date", CourseName: "History"},
	}

	input := PreparePlanInput(assignments, DefaultTimeRange, now)

	t.Run("range filter excludes out-of-window but keeps undated", func(t *testing.T) {
		// Far Future is beyond two weeks; everything else is in range.
		assert.Equal(t, 5, input.TotalAssignments)
	})

	t.Run("courses are deduplicated", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"Chemistry", "English", "History"}, input.Courses)
	})

	t.Run("upcoming sorted by due date", func(t *testing.T) {
		require.Len(t, input.Upcoming, 2)
		assert.Equal(t, "Quiz 4", input.Upcoming[0].Name)
		assert.Equal(t, "Lab Report", input.Upcoming[1].Name)
		assert.Equal(t, 25.0, input.Upcoming[1].Points)
	})

	t.Run("overdue listed separately", func(t *testing.T) {
		require.Len(t, input.Overdue, 1)
		assert.Equal(t, "Essay Draft", input.Overdue[0].Name)
	})

	t.Run("completed counted, not listed", func(t *testing.T) {
		assert.Equal(t, 1, input.Completed)
		for _, a := range input.Upcoming {
			assert.NotEqual(t, "Done Already", a.Name)
		}
	})

	t.Run("undated never upcoming or overdue", func(t *testing.T) {
		for _, a := range append(input.Upcoming, input.Overdue...) {
			assert.NotEqual(t, "No Date", a.Name)
		}
	})
}

func TestFindAssignmentURL(t *testing.T) {
	assignments := []Assignment{
		{Name: "Weekly Lab Report 3", URL: "https://canvas.school.edu/a/1"},
		{Name: "Final Essay", URL: "https://canvas.school.edu/a/2"},
		{Name: "Midterm Review", URL: ""},
	}

	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, "https://canvas.school.edu/a/2", FindAssignmentURL("Final Essay", assignments))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, "https://canvas.school.edu/a/2", FindAssignmentURL("final essay", assignments))
	})

	t.Run("substring match", func(t *testing.T) {
		assert.Equal(t, "https://canvas.school.edu/a/1", FindAssignmentURL("Lab Report", assignments))
	})

	t.Run("word overlap alone never clears the threshold", func(t *testing.T) {
		// A perfect word-overlap ratio caps at 60, below the 70 acceptance
		// bar, so overlap only breaks ties when a substring match exists.
		assert.Empty(t, FindAssignmentURL("report weekly", assignments))
	})

	t.Run("weak overlap rejected", func(t *testing.T) {
		assert.Empty(t, FindAssignmentURL("chemistry homework problems", assignments))
	})

	t.Run("assignments without URLs are skipped", func(t *testing.T) {
		assert.Empty(t, FindAssignmentURL("Midterm Review", assignments))
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, FindAssignmentURL("  ", assignments))
	})
}
