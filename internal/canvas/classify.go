package canvas

import "time"

// Bucket is an urgency category for an unsubmitted, dated assignment.
type Bucket string

const (
	BucketOverdue     Bucket = "overdue"
	BucketDueSoon     Bucket = "dueSoon"
	BucketDueToday    Bucket = "dueToday"
	BucketDueTomorrow Bucket = "dueTomorrow"
)

// dueSoonWindow is the look-ahead for the dueSoon bucket.
const dueSoonWindow = 3 * time.Hour

// Classification holds the urgency buckets for one point in time. Buckets
// are not disjoint: an assignment due in two hours is both dueSoon and
// dueToday.
type Classification struct {
	Overdue     []Assignment
	DueSoon     []Assignment
	DueToday    []Assignment
	DueTomorrow []Assignment
}

// Bucket returns the assignments in the named bucket.
func (c Classification) Bucket(b Bucket) []Assignment {
	switch b {
	case BucketOverdue:
		return c.Overdue
	case BucketDueSoon:
		return c.DueSoon
	case BucketDueToday:
		return c.DueToday
	case BucketDueTomorrow:
		return c.DueTomorrow
	}
	return nil
}

// Classify sorts unsubmitted, dated assignments into urgency buckets
// relative to now. Assignments without a due date or already submitted are
// ignored entirely.
func Classify(assignments []Assignment, now time.Time) Classification {
	var c Classification
	tomorrow := now.AddDate(0, 0, 1)
	for _, a := range assignments {
		if a.DueDate == nil {
			continue
		}
		if a.Submission != nil && a.Submission.Submitted {
			continue
		}
		due := *a.DueDate
		if due.Before(now) {
			c.Overdue = append(c.Overdue, a)
			continue
		}
		if sameDay(due, now) {
			c.DueToday = append(c.DueToday, a)
		} else if sameDay(due, tomorrow) {
			c.DueTomorrow = append(c.DueTomorrow, a)
		}
		if until := due.Sub(now); until > 0 && until <= dueSoonWindow {
			c.DueSoon = append(c.DueSoon, a)
		}
	}
	return c
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// VisibleCourseIDs returns the IDs of courses that are neither hidden nor,
// when hideEndedTerms is set, past their term end.
func VisibleCourseIDs(courses []Course, hiddenIDs []string, hideEndedTerms bool, now time.Time) []string {
	hidden := make(map[string]bool, len(hiddenIDs))
	for _, id := range hiddenIDs {
		hidden[id] = true
	}
	ids := make([]string, 0, len(courses))
	for _, course := range courses {
		if hidden[course.ID] {
			continue
		}
		if hideEndedTerms && course.TermEndAt != nil && course.TermEndAt.Before(now) {
			continue
		}
		ids = append(ids, course.ID)
	}
	return ids
}

// FilterByCourses keeps only assignments belonging to the given course IDs.
func FilterByCourses(assignments []Assignment, courseIDs []string) []Assignment {
	visible := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		visible[id] = true
	}
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if visible[a.CourseID] {
			out = append(out, a)
		}
	}
	return out
}
