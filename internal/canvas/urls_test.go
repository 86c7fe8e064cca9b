package canvas

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCanvasURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"canvas subdomain on edu", "https://canvas.stanford.edu/courses/1", true},
		{"instructure hosted", "https://myschool.instructure.com/", true},
		{"canvaslms hosted", "https://ivy.canvaslms.com/login", true},
		{"canvas path on edu", "https://lms.school.edu/canvas/dashboard", true},
		{"case insensitive", "HTTPS://CANVAS.MIT.EDU", true},
		{"plain edu site", "https://www.school.edu/admissions", false},
		{"unrelated site", "https://example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCanvasURL(tt.url))
		})
	}
}

func TestBaseURL(t *testing.T) {
	t.Run("strips path and query", func(t *testing.T) {
		got, err := BaseURL("https://canvas.school.edu/courses/42?view=list")
		require.NoError(t, err)
		assert.Equal(t, "https://canvas.school.edu", got)
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		_, err := BaseURL("chrome://extensions")
		assert.Error(t, err)
	})

	t.Run("rejects missing host", func(t *testing.T) {
		_, err := BaseURL("https://")
		assert.Error(t, err)
	})
}

func TestRecordDetectedURL(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("new origin is prepended", func(t *testing.T) {
		list := RecordDetectedURL(nil, "https://a.instructure.com", now)
		list = RecordDetectedURL(list, "https://b.instructure.com", now.Add(time.Minute))

		require.Len(t, list, 2)
		assert.Equal(t, "https://b.instructure.com", list[0].URL)
	})

	t.Run("existing origin refreshes in place", func(t *testing.T) {
		list := RecordDetectedURL(nil, "https://a.instructure.com", now)
		list = RecordDetectedURL(list, "https://b.instructure.com", now)
		list = RecordDetectedURL(list, "https://a.instructure.com", now.Add(time.Hour))

		require.Len(t, list, 2)
		assert.Equal(t, now.Add(time.Hour), list[1].LastSeen)
	})

	t.Run("capped at ten most recent", func(t *testing.T) {
		var list []DetectedURL
		for i := 0; i < 15; i++ {
			list = RecordDetectedURL(list, fmt.Sprintf("https://s%d.instructure.com", i), now)
		}

		require.Len(t, list, 10)
		assert.Equal(t, "https://s14.instructure.com", list[0].URL)
	})
}
