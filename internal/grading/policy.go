package grading

import (
	"math"

	appErrors "github.com/campusrec/records-api/pkg/errors"
)

// Grade is a letter grade assigned from a percentage.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// DefaultDCutoff is the percentage floor for a D grade. One legacy deployment
// used 35; the policy is configurable so either behaviour is reachable.
const DefaultDCutoff = 33.0

// Boundary maps a minimum percentage to a letter grade.
type Boundary struct {
	Min   float64
	Grade Grade
}

// Policy holds an ordered grade boundary table. Boundaries are descending and
// the first match wins; percentages below every boundary grade F.
type Policy struct {
	boundaries []Boundary
}

// Computation is the derived outcome for one set of marks.
type Computation struct {
	Percentage float64
	Grade      Grade
	Passed     bool
}

// NewPolicy builds the standard boundary table with a configurable D cutoff.
func NewPolicy(dCutoff float64) Policy {
	// The D cutoff must sit in the open band between F and C.
	if dCutoff <= 0 || dCutoff >= 40 {
		dCutoff = DefaultDCutoff
	}
	return Policy{boundaries: []Boundary{
		{Min: 90, Grade: GradeAPlus},
		{Min: 80, Grade: GradeA},
		{Min: 70, Grade: GradeBPlus},
		{Min: 60, Grade: GradeB},
		{Min: 50, Grade: GradeCPlus},
		{Min: 40, Grade: GradeC},
		{Min: dCutoff, Grade: GradeD},
	}}
}

// DefaultPolicy returns the policy with the default D cutoff.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultDCutoff)
}

// GradeFor resolves the letter grade for a percentage.
func (p Policy) GradeFor(percentage float64) Grade {
	for _, b := range p.boundaries {
		if percentage >= b.Min {
			return b.Grade
		}
	}
	return GradeF
}

// Compute derives percentage, grade and pass flag from raw marks. It is pure:
// callers re-run it whenever marksObtained changes. Passing is judged on raw
// marks against passingMarks, never on a percentage threshold.
func (p Policy) Compute(marksObtained, maxMarks, passingMarks float64) (Computation, error) {
	if maxMarks <= 0 {
		return Computation{}, appErrors.Clone(appErrors.ErrDivisionInvalid, "")
	}
	if marksObtained < 0 {
		return Computation{}, appErrors.Validation("marks obtained must be non-negative", "marksObtained")
	}
	percentage := marksObtained / maxMarks * 100
	return Computation{
		Percentage: percentage,
		Grade:      p.GradeFor(percentage),
		Passed:     marksObtained >= passingMarks,
	}, nil
}

// RoundHalfUp rounds a percentage to the nearest integer for display
// aggregates. Stored per-result percentages keep full precision.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
