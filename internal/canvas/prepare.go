package canvas

import (
	"sort"
	"strings"
	"time"
)

// TimeRange bounds assignment preparation to a window around now.
type TimeRange struct {
	WeeksBefore int
	WeeksAfter  int
}

// DefaultTimeRange matches the product default of two weeks ahead.
var DefaultTimeRange = TimeRange{WeeksBefore: 0, WeeksAfter: 2}

// PlanInput is the projection of assignment data handed to the planner
// prompt: totals, course names, and the upcoming/overdue subsets.
type PlanInput struct {
	TotalAssignments int
	Courses          []string
	Upcoming         []PlanAssignment
	Overdue          []PlanAssignment
	Completed        int
}

// PlanAssignment is the trimmed view of one assignment inside a PlanInput.
type PlanAssignment struct {
	ID      string
	Name    string
	Course  string
	DueDate time.Time
	Points  float64
}

// PreparePlanInput filters assignments to the time range and projects them
// into the shape the study-plan prompt consumes. Undated assignments pass
// the range filter but are never upcoming or overdue.
func PreparePlanInput(assignments []Assignment, tr TimeRange, now time.Time) PlanInput {
	rangeStart := now.Add(-time.Duration(tr.WeeksBefore) * 7 * 24 * time.Hour)
	rangeEnd := now.Add(time.Duration(tr.WeeksAfter) * 7 * 24 * time.Hour)

	var inRange []Assignment
	for _, a := range assignments {
		if a.DueDate == nil {
			inRange = append(inRange, a)
			continue
		}
		if !a.DueDate.Before(rangeStart) && !a.DueDate.After(rangeEnd) {
			inRange = append(inRange, a)
		}
	}

	input := PlanInput{TotalAssignments: len(inRange)}

	seen := map[string]bool{}
	for _, a := range inRange {
		if a.CourseName != "" && !seen[a.CourseName] {
			seen[a.CourseName] = true
			input.Courses = append(input.Courses, a.CourseName)
		}
	}

	weekFromNow := now.Add(7 * 24 * time.Hour)
	for _, a := range inRange {
		if a.Completed() {
			input.Completed++
			continue
		}
		if a.DueDate == nil {
			continue
		}
		p := PlanAssignment{ID: a.ID, Name: a.Name, Course: a.CourseName, DueDate: *a.DueDate}
		if a.PointsPossible != nil {
			p.Points = *a.PointsPossible
		}
		switch {
		case a.DueDate.Before(now):
			input.Overdue = append(input.Overdue, p)
		case !a.DueDate.After(weekFromNow):
			input.Upcoming = append(input.Upcoming, p)
		}
	}

	sort.Slice(input.Upcoming, func(i, j int) bool {
		return input.Upcoming[i].DueDate.Before(input.Upcoming[j].DueDate)
	})
	sort.Slice(input.Overdue, func(i, j int) bool {
		return input.Overdue[i].DueDate.Before(input.Overdue[j].DueDate)
	})
	return input
}

// FindAssignmentURL fuzzy-matches a name against known assignments and
// returns the best candidate's URL. Exact match scores 100, substring 80,
// and a >=70% long-word overlap scores proportionally; anything under 70
// is rejected.
func FindAssignmentURL(name string, assignments []Assignment) string {
	clean := strings.ToLower(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}

	bestScore := 0.0
	bestURL := ""
	for _, a := range assignments {
		if a.Name == "" || a.URL == "" {
			continue
		}
		candidate := strings.ToLower(strings.TrimSpace(a.Name))

		var score float64
		switch {
		case candidate == clean:
			score = 100
		case strings.Contains(candidate, clean) || strings.Contains(clean, candidate):
			score = 80
		default:
			queryWords := longWords(clean)
			candidateWords := longWords(candidate)
			if len(queryWords) > 0 && len(candidateWords) > 0 {
				matched := 0
				for _, qw := range queryWords {
					for _, cw := range candidateWords {
						if strings.Contains(cw, qw) || strings.Contains(qw, cw) {
							matched++
							break
						}
					}
				}
				ratio := float64(matched) / float64(len(queryWords))
				if ratio >= 0.7 {
					score = ratio * 60
				}
			}
		}

		if score > bestScore {
			bestScore = score
			bestURL = a.URL
		}
	}

	if bestScore >= 70 {
		return bestURL
	}
	return ""
}

func longWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}
