package canvas

import (
	"math"
	"time"
)

const defaultPoints = 10

// ImpactScore rates an assignment's priority on a 0-100 scale from its due
// date and point value. Deterministic for a given (assignment, now) pair;
// assignments without a due date score 0.
//
// Hours until due are floored at 1, so truly overdue work shares the
// <=24h urgency multiplier with work due within the day; past-due items
// compete at the top of the queue instead of growing without bound.
func ImpactScore(a Assignment, now time.Time) float64 {
	if a.DueDate == nil {
		return 0
	}
	points := float64(defaultPoints)
	if a.PointsPossible != nil && *a.PointsPossible > 0 {
		points = *a.PointsPossible
	}

	hoursUntilDue := math.Max(1, a.DueDate.Sub(now).Hours())

	var multiplier float64
	switch {
	case hoursUntilDue <= 0:
		multiplier = 20
	case hoursUntilDue <= 24:
		multiplier = 10
	case hoursUntilDue <= 48:
		multiplier = 5
	case hoursUntilDue <= 168:
		multiplier = 2
	default:
		multiplier = 1
	}

	raw := (points * multiplier) / (hoursUntilDue / 24)
	return math.Min(100, math.Log10(raw+1)*30)
}
