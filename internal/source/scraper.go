package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"canvasflow/internal/canvas"
)

// scraperJS installs the in-page fetch capability. Guarded so repeated
// injection is a no-op.
const scraperJS = `
() => {
	if (window.__canvasflowScraper) return true;
	window.__canvasflowScraper = {
		apiGet: async (path) => {
			const res = await fetch('/api/v1' + path, {
				headers: { 'Accept': 'application/json' },
				credentials: 'same-origin'
			});
			if (!res.ok) throw new Error('Canvas API ' + res.status + ' for ' + path);
			const text = await res.text();
			// Canvas prefixes JSON with while(1); on some endpoints.
			return JSON.parse(text.replace(/^while\(1\);/, ''));
		}
	};
	return true;
}
`

// EnsureScraper locates a Canvas tab and injects the scraping capability
// into it. An existing tab is preferred; a missing one is opened when a
// Canvas URL is configured. Idempotent.
func (s *TabSource) EnsureScraper(ctx context.Context) error {
	if _, err := s.currentPage(); err != nil {
		if _, err := s.FindTab(ctx); err != nil {
			if !errors.Is(err, ErrNoSource) || s.cfg.CanvasURL == "" {
				return err
			}
			if _, err := s.OpenTab(ctx); err != nil {
				return fmt.Errorf("open canvas tab: %w", err)
			}
		}
	}

	var ok bool
	if err := s.eval(ctx, scraperJS, &ok); err != nil {
		return fmt.Errorf("inject scraper: %w", err)
	}
	if !ok {
		return fmt.Errorf("scraper injection returned false")
	}
	return nil
}

// FetchCourses returns the user's active courses.
func (s *TabSource) FetchCourses(ctx context.Context) ([]canvas.Course, error) {
	const js = `
	async () => {
		const courses = await window.__canvasflowScraper.apiGet(
			'/courses?enrollment_state=active&include[]=term&per_page=50');
		return courses.map(c => ({
			id: String(c.id),
			name: c.name || c.course_code || ('Course ' + c.id),
			course_code: c.course_code || '',
			term_end_at: (c.term && c.term.end_at) || null
		}));
	}
	`
	var courses []canvas.Course
	if err := s.eval(ctx, js, &courses); err != nil {
		return nil, fmt.Errorf("fetch courses: %w", err)
	}
	return courses, nil
}

// fetchCourseAssignments returns the assignments of one course.
func (s *TabSource) fetchCourseAssignments(ctx context.Context, course canvas.Course) ([]canvas.Assignment, error) {
	const js = `
	async (courseId, courseName) => {
		const list = await window.__canvasflowScraper.apiGet(
			'/courses/' + courseId + '/assignments?include[]=submission&per_page=100');
		return list.map(a => ({
			id: String(a.id),
			name: a.name,
			course_id: courseId,
			course_name: courseName,
			due_date: a.due_at || null,
			points_possible: a.points_possible,
			url: a.html_url || '',
			submission: a.submission ? {
				submitted: !!a.submission.submitted_at,
				late: !!a.submission.late,
				missing: !!a.submission.missing,
				score: a.submission.score,
				workflow_state: a.submission.workflow_state || ''
			} : null
		}));
	}
	`
	var assignments []canvas.Assignment
	if err := s.eval(ctx, js, &assignments, course.ID, course.Name); err != nil {
		return nil, fmt.Errorf("fetch assignments for course %s: %w", course.ID, err)
	}
	return assignments, nil
}

// FetchAllAssignments flattens assignments across all active courses. The
// per-course fetches fan out with a bounded concurrency limit; any course
// failure fails the slice as a whole (the coordinator isolates it from the
// other slices).
func (s *TabSource) FetchAllAssignments(ctx context.Context) ([]canvas.Assignment, error) {
	courses, err := s.FetchCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch all assignments: %w", err)
	}

	var (
		mu  sync.Mutex
		all []canvas.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.CourseFetchLimit)
	for _, course := range courses {
		g.Go(func() error {
			assignments, err := s.fetchCourseAssignments(gctx, course)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, assignments...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		di, dj := all[i].DueDate, all[j].DueDate
		switch {
		case di == nil && dj == nil:
			return all[i].Name < all[j].Name
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	s.logger.Debug("fetched assignments",
		zap.Int("courses", len(courses)),
		zap.Int("assignments", len(all)))
	return all, nil
}

// FetchCalendarEvents returns calendar events for the next month.
func (s *TabSource) FetchCalendarEvents(ctx context.Context) ([]canvas.Event, error) {
	const js = `
	async () => {
		const start = new Date().toISOString().slice(0, 10);
		const end = new Date(Date.now() + 30 * 86400000).toISOString().slice(0, 10);
		const events = await window.__canvasflowScraper.apiGet(
			'/calendar_events?start_date=' + start + '&end_date=' + end + '&per_page=50');
		return events.map(e => ({
			id: String(e.id),
			title: e.title || '',
			start_at: e.start_at || null,
			type: e.type || 'event',
			url: e.html_url || '',
			context_code: e.context_code || ''
		}));
	}
	`
	var events []canvas.Event
	if err := s.eval(ctx, js, &events); err != nil {
		return nil, fmt.Errorf("fetch calendar events: %w", err)
	}
	return events, nil
}

// FetchUpcomingEvents returns the user's upcoming event feed.
func (s *TabSource) FetchUpcomingEvents(ctx context.Context) ([]canvas.Event, error) {
	const js = `
	async () => {
		const events = await window.__canvasflowScraper.apiGet('/users/self/upcoming_events');
		return events.map(e => ({
			id: String(e.id),
			title: e.title || '',
			start_at: e.start_at || null,
			type: e.type || 'event',
			url: e.html_url || '',
			context_code: e.context_code || ''
		}));
	}
	`
	var events []canvas.Event
	if err := s.eval(ctx, js, &events); err != nil {
		return nil, fmt.Errorf("fetch upcoming events: %w", err)
	}
	return events, nil
}

// FetchUserProfile returns the logged-in user's profile.
func (s *TabSource) FetchUserProfile(ctx context.Context) (*canvas.UserProfile, error) {
	const js = `
	async () => {
		const p = await window.__canvasflowScraper.apiGet('/users/self/profile');
		return {
			id: String(p.id),
			name: p.name || '',
			primary_email: p.primary_email || '',
			avatar_url: p.avatar_url || ''
		};
	}
	`
	var profile canvas.UserProfile
	if err := s.eval(ctx, js, &profile); err != nil {
		return nil, fmt.Errorf("fetch user profile: %w", err)
	}
	return &profile, nil
}
