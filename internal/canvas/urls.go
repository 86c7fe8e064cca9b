package canvas

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// canvasURLPatterns recognizes the common Canvas LMS hosting shapes.
var canvasURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://canvas\.[^/]*\.edu`),
	regexp.MustCompile(`(?i)^https?://[^/]*\.edu/.*canvas`),
	regexp.MustCompile(`(?i)^https?://[^/]*\.instructure\.com`),
	regexp.MustCompile(`(?i)^https?://[^/]*\.canvaslms\.com`),
}

// IsCanvasURL reports whether the URL looks like a Canvas LMS instance.
func IsCanvasURL(raw string) bool {
	if raw == "" {
		return false
	}
	for _, p := range canvasURLPatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}

// BaseURL reduces a page URL to its scheme://host origin.
func BaseURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// DetectedURL is one observed Canvas origin with its last-seen time.
type DetectedURL struct {
	URL      string    `json:"url"`
	LastSeen time.Time `json:"last_seen"`
}

const maxDetectedURLs = 10

// RecordDetectedURL prepends or refreshes an origin in the detected list,
// keeping the ten most recent.
func RecordDetectedURL(detected []DetectedURL, origin string, now time.Time) []DetectedURL {
	for i := range detected {
		if detected[i].URL == origin {
			detected[i].LastSeen = now
			return detected
		}
	}
	detected = append([]DetectedURL{{URL: origin, LastSeen: now}}, detected...)
	if len(detected) > maxDetectedURLs {
		detected = detected[:maxDetectedURLs]
	}
	return detected
}
