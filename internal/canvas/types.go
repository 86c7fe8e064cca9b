// Package canvas defines the CanvasFlow domain model: the data slices pulled
// from a Canvas LMS tab, the merged aggregate snapshot, and the pure helpers
// (urgency classification, impact scoring, AI preparation) shared by the sync,
// notification, and planning layers.
package canvas

import "time"

// Slice names the five independently fetched data categories.
type Slice string

const (
	SliceCourses        Slice = "courses"
	SliceAllAssignments Slice = "allAssignments"
	SliceCalendarEvents Slice = "calendarEvents"
	SliceUpcomingEvents Slice = "upcomingEvents"
	SliceUserProfile    Slice = "userProfile"
)

// Slices lists all slices in fetch order.
var Slices = []Slice{
	SliceCourses,
	SliceAllAssignments,
	SliceCalendarEvents,
	SliceUpcomingEvents,
	SliceUserProfile,
}

// Course is one enrolled course.
type Course struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CourseCode string     `json:"course_code,omitempty"`
	TermEndAt  *time.Time `json:"term_end_at,omitempty"`
}

// Submission captures the completion state of an assignment.
type Submission struct {
	Submitted     bool     `json:"submitted"`
	Late          bool     `json:"late,omitempty"`
	Missing       bool     `json:"missing,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	WorkflowState string   `json:"workflow_state,omitempty"`
}

// Assignment is a single gradeable item. DueDate is optional; an assignment
// without one is excluded from urgency classification but still listed in
// unfiltered views.
type Assignment struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	CourseID       string      `json:"course_id,omitempty"`
	CourseName     string      `json:"course_name,omitempty"`
	DueDate        *time.Time  `json:"due_date,omitempty"`
	PointsPossible *float64    `json:"points_possible,omitempty"`
	URL            string      `json:"url,omitempty"`
	Submission     *Submission `json:"submission,omitempty"`
}

// Completed reports whether the assignment has been turned in or graded.
func (a Assignment) Completed() bool {
	if a.Submission == nil {
		return false
	}
	return a.Submission.Submitted || a.Submission.WorkflowState == "graded"
}

// Event is a calendar or upcoming event.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	Type        string     `json:"type,omitempty"`
	URL         string     `json:"url,omitempty"`
	ContextCode string     `json:"context_code,omitempty"`
}

// UserProfile is the logged-in Canvas user.
type UserProfile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PrimaryEmail string `json:"primary_email,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
}

// Aggregate is the merged snapshot of all data slices. It is updated
// monotonically per slice: a failed or empty fetch never clears the prior
// value for that slice.
type Aggregate struct {
	Courses        []Course                `json:"courses"`
	Assignments    map[string][]Assignment `json:"assignments"`
	AllAssignments []Assignment            `json:"all_assignments"`
	CalendarEvents []Event                 `json:"calendar_events"`
	UpcomingEvents []Event                 `json:"upcoming_events"`
	UserProfile    *UserProfile            `json:"user_profile,omitempty"`
	LastUpdate     time.Time               `json:"last_update"`
}

// NewAggregate returns an empty aggregate with initialized containers.
func NewAggregate() *Aggregate {
	return &Aggregate{
		Courses:        []Course{},
		Assignments:    map[string][]Assignment{},
		AllAssignments: []Assignment{},
		CalendarEvents: []Event{},
		UpcomingEvents: []Event{},
	}
}

// Clone returns a deep copy so readers can hold a consistent snapshot while
// the syncer prepares the next merge.
func (ag *Aggregate) Clone() *Aggregate {
	if ag == nil {
		return NewAggregate()
	}
	out := &Aggregate{
		Courses:        append([]Course(nil), ag.Courses...),
		AllAssignments: append([]Assignment(nil), ag.AllAssignments...),
		CalendarEvents: append([]Event(nil), ag.CalendarEvents...),
		UpcomingEvents: append([]Event(nil), ag.UpcomingEvents...),
		LastUpdate:     ag.LastUpdate,
	}
	out.Assignments = make(map[string][]Assignment, len(ag.Assignments))
	for courseID, list := range ag.Assignments {
		out.Assignments[courseID] = append([]Assignment(nil), list...)
	}
	if ag.UserProfile != nil {
		profile := *ag.UserProfile
		out.UserProfile = &profile
	}
	return out
}

// GroupByCourse rebuilds the per-course assignment index from AllAssignments.
func GroupByCourse(assignments []Assignment) map[string][]Assignment {
	grouped := make(map[string][]Assignment)
	for _, a := range assignments {
		if a.CourseID == "" {
			continue
		}
		grouped[a.CourseID] = append(grouped[a.CourseID], a)
	}
	return grouped
}
