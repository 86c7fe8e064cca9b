package canvas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func due(t time.Time) *time.Time { return &t }

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) // Tuesday 14:00

	t.Run("overdue assignments go to the overdue bucket only", func(t *testing.T) {
		c := Classify([]Assignment{
			{ID: "1", Name: "Late Essay", DueDate: due(now.Add(-2 * time.Hour))},
		}, now)

		require.Len(t, c.Overdue, 1)
		assert.Equal(t, "Late Essay", c.Overdue[0].Name)
		assert.Empty(t, c.DueSoon)
		assert.Empty(t, c.DueToday)
		assert.Empty(t, c.DueTomorrow)
	})

	t.Run("due in two hours lands in both dueSoon and dueToday", func(t *testing.T) {
		c := Classify([]Assignment{
			{ID: "1", DueDate: due(now.Add(2 * time.Hour))},
		}, now)

		assert.Len(t, c.DueSoon, 1)
		assert.Len(t, c.DueToday, 1)
		assert.Empty(t, c.Overdue)
	})

	t.Run("due later today but beyond three hours is dueToday only", func(t *testing.T) {
		c := Classify([]Assignment{
			{ID: "1", DueDate: due(now.Add(5 * time.Hour))},
		}, now)

		assert.Empty(t, c.DueSoon)
		assert.Len(t, c.DueToday, 1)
	})

	t.Run("due tomorrow", func(t *testing.T) {
		c := Classify([]Assignment{
			{ID: "1", DueDate: due(now.AddDate(0, 0, 1))},
		}, now)

		assert.Len(t, c.DueTomorrow, 1)
		assert.Empty(t, c.DueToday)
		assert.Empty(t, c.DueSoon)
	})

	t.Run("tomorrow shortly after midnight is dueSoon and dueTomorrow", func(t *testing.T) {
		lateNow := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
		c := Classify([]Assignment{
			{ID: "1", DueDate: due(lateNow.Add(2 * time.Hour))},
		}, lateNow)

		assert.Len(t, c.DueSoon, 1)
		assert.Len(t, c.DueTomorrow, 1)
		assert.Empty(t, c.DueToday)
	})

	t.Run("submitted assignments are skipped", func(t *testing.T) {
		c := Classify([]Assignment{
			{ID: "1", DueDate: due(now.Add(-time.Hour)), Submission: &Submission{Submitted: true}},
		}, now)

		assert.Empty(t, c.Overdue)
	})

	t.Run("undated assignments are skipped", func(t *testing.T) {
		c := Classify([]Assignment{{ID: "1", Name: "No Due Date"}}, now)

		assert.Empty(t, c.Overdue)
		assert.Empty(t, c.DueSoon)
		assert.Empty(t, c.DueToday)
		assert.Empty(t, c.DueTomorrow)
	})
}

func TestClassificationBucket(t *testing.T) {
	c := Classification{
		Overdue: []Assignment{{ID: "a"}},
		DueSoon: []Assignment{{ID: "b"}},
	}

	assert.Equal(t, "a", c.Bucket(BucketOverdue)[0].ID)
	assert.Equal(t, "b", c.Bucket(BucketDueSoon)[0].ID)
	assert.Nil(t, c.Bucket(Bucket("unknown")))
}

func TestVisibleCourseIDs(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ended := now.AddDate(0, -1, 0)
	active := now.AddDate(0, 2, 0)

	courses := []Course{
		{ID: "c1", Name: "Biology"},
		{ID: "c2", Name: "Old Chem", TermEndAt: &ended},
		{ID: "c3", Name: "Physics", TermEndAt: &active},
	}

	t.Run("hidden courses are excluded", func(t *testing.T) {
		ids := VisibleCourseIDs(courses, []string{"c1"}, false, now)
		assert.Equal(t, []string{"c2", "c3"}, ids)
	})

	t.Run("ended terms excluded only when requested", func(t *testing.T) {
		assert.Equal(t, []string{"c1", "c3"}, VisibleCourseIDs(courses, nil, true, now))
		assert.Equal(t, []string{"c1", "c2", "c3"}, VisibleCourseIDs(courses, nil, false, now))
	})
}

func TestFilterByCourses(t *testing.T) {
	assignments := []Assignment{
		{ID: "a1", CourseID: "c1"},
		{ID: "a2", CourseID: "c2"},
		{ID: "a3", CourseID: "c1"},
	}

	got := FilterByCourses(assignments, []string{"c1"})
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a3", got[1].ID)

	assert.Empty(t, FilterByCourses(assignments, nil))
}
