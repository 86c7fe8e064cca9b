// Package source drives a live Canvas LMS browser tab through Chrome
// DevTools. It locates (or opens) a Canvas tab, injects the scraping
// capability, and serves the five named data-slice fetches by evaluating
// JavaScript against the Canvas REST API in page context.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"canvasflow/internal/canvas"
)

// ErrNoSource indicates no Canvas tab is available to fetch from. The caller
// decides whether to open one or wait.
var ErrNoSource = errors.New("no Canvas tab open")

// Source is the external data source contract consumed by the sync
// coordinator. Each fetch may independently succeed or fail.
type Source interface {
	EnsureScraper(ctx context.Context) error
	FetchCourses(ctx context.Context) ([]canvas.Course, error)
	FetchAllAssignments(ctx context.Context) ([]canvas.Assignment, error)
	FetchCalendarEvents(ctx context.Context) ([]canvas.Event, error)
	FetchUpcomingEvents(ctx context.Context) ([]canvas.Event, error)
	FetchUserProfile(ctx context.Context) (*canvas.UserProfile, error)
}

// Config holds browser and tab discovery settings.
type Config struct {
	// DevTools websocket URL of a running Chrome. Empty launches a new one.
	DebuggerURL string
	Headless    bool
	// Canvas origin to prefer when several tabs match. Also the URL used by
	// OpenTab. Empty relies purely on pattern detection.
	CanvasURL string
	// Readiness bound for OpenTab.
	OpenTabTimeout time.Duration
	// Concurrency limit for the per-course assignment fan-out.
	CourseFetchLimit int
}

// TabSource implements Source against a real Chrome instance.
type TabSource struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	pageURL string
}

// New creates a TabSource. Call Start before fetching.
func New(cfg Config, logger *zap.Logger) *TabSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OpenTabTimeout <= 0 {
		cfg.OpenTabTimeout = 30 * time.Second
	}
	if cfg.CourseFetchLimit <= 0 {
		cfg.CourseFetchLimit = 4
	}
	return &TabSource{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one. Idempotent:
// a healthy connection is reused, a stale one replaced.
func (s *TabSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return nil
		}
		s.logger.Info("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
		s.page = nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(s.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	return nil
}

// Close shuts the browser connection down.
func (s *TabSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = nil
	s.pageURL = ""
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

// FindTab locates an already-open Canvas tab. Returns ErrNoSource when
// nothing matches; it never creates one.
func (s *TabSource) FindTab(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil, errors.New("browser not connected")
	}

	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}

	var fallback *rod.Page
	var fallbackURL string
	for _, page := range pages {
		info, err := page.Info()
		if err != nil || info.URL == "" {
			continue
		}
		if !canvas.IsCanvasURL(info.URL) {
			continue
		}
		if s.cfg.CanvasURL != "" && strings.HasPrefix(info.URL, s.cfg.CanvasURL) {
			s.page = page.Context(ctx)
			s.pageURL = info.URL
			return s.page, nil
		}
		if fallback == nil {
			fallback = page
			fallbackURL = info.URL
		}
	}
	if fallback == nil {
		return nil, ErrNoSource
	}
	s.page = fallback.Context(ctx)
	s.pageURL = fallbackURL
	return s.page, nil
}

// Origin reports the scheme://host origin of the tab in use, or "" before a
// tab has been acquired.
func (s *TabSource) Origin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pageURL == "" {
		return ""
	}
	origin, err := canvas.BaseURL(s.pageURL)
	if err != nil {
		return ""
	}
	return origin
}

// OpenTab opens the configured Canvas URL in a new tab and waits for it to
// finish loading, bounded by OpenTabTimeout. Timing out is a hard failure
// distinct from a mid-fetch failure.
func (s *TabSource) OpenTab(ctx context.Context) (*rod.Page, error) {
	if s.cfg.CanvasURL == "" {
		return nil, errors.New("no Canvas URL configured")
	}

	s.mu.Lock()
	browser := s.browser
	s.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: s.cfg.CanvasURL})
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}

	if err := page.Timeout(s.cfg.OpenTabTimeout).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("tab load timeout after %s: %w", s.cfg.OpenTabTimeout, err)
	}

	s.mu.Lock()
	s.page = page.Context(ctx)
	s.pageURL = s.cfg.CanvasURL
	s.mu.Unlock()
	return s.page, nil
}

func (s *TabSource) currentPage() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrNoSource
	}
	return s.page, nil
}

// eval runs fn in page context and unmarshals the resolved value into out.
func (s *TabSource) eval(ctx context.Context, js string, out any, args ...any) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return errors.New("empty result from page")
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal page result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode page result: %w", err)
	}
	return nil
}
