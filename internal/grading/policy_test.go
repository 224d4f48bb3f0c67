package grading

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campusrec/records-api/pkg/errors"
)

func TestComputeDerivesPercentageAndGrade(t *testing.T) {
	policy := DefaultPolicy()

	result, err := policy.Compute(85, 100, 40)
	require.NoError(t, err)
	assert.Equal(t, 85.0, result.Percentage)
	assert.Equal(t, GradeA, result.Grade)
	assert.True(t, result.Passed)
}

func TestComputePassBoundaryIsMarksBased(t *testing.T) {
	policy := DefaultPolicy()

	// Exactly at passing marks: passes, and 40% maps to C.
	result, err := policy.Compute(40, 100, 40)
	require.NoError(t, err)
	assert.Equal(t, GradeC, result.Grade)
	assert.True(t, result.Passed)

	result, err = policy.Compute(30, 100, 40)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result.Percentage)
	assert.Equal(t, GradeF, result.Grade)
	assert.False(t, result.Passed)

	// Low passing marks can pass with a failing letter grade.
	result, err = policy.Compute(20, 100, 15)
	require.NoError(t, err)
	assert.Equal(t, GradeF, result.Grade)
	assert.True(t, result.Passed)
}

func TestComputeRejectsInvalidMaxMarks(t *testing.T) {
	policy := DefaultPolicy()

	for _, max := range []float64{0, -10} {
		_, err := policy.Compute(50, max, 20)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrDivisionInvalid.Code, appErrors.FromError(err).Code)
	}
}

func TestComputeRejectsNegativeMarks(t *testing.T) {
	policy := DefaultPolicy()

	_, err := policy.Compute(-1, 100, 40)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeTable(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		percentage float64
		want       Grade
	}{
		{100, GradeAPlus},
		{90, GradeAPlus},
		{89.99, GradeA},
		{80, GradeA},
		{70, GradeBPlus},
		{60, GradeB},
		{50, GradeCPlus},
		{40, GradeC},
		{33, GradeD},
		{32.99, GradeF},
		{0, GradeF},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%.2f", tc.percentage), func(t *testing.T) {
			assert.Equal(t, tc.want, policy.GradeFor(tc.percentage))
		})
	}
}

func TestGradeTableIsTotalAndMonotonic(t *testing.T) {
	policy := DefaultPolicy()

	order := map[Grade]int{GradeF: 0, GradeD: 1, GradeC: 2, GradeCPlus: 3, GradeB: 4, GradeBPlus: 5, GradeA: 6, GradeAPlus: 7}
	previous := -1
	for p := 0.0; p <= 100.0; p += 0.25 {
		grade := policy.GradeFor(p)
		rank, known := order[grade]
		require.True(t, known, "unknown grade %q for %.2f", grade, p)
		require.GreaterOrEqual(t, rank, previous, "grade regressed at %.2f", p)
		previous = rank
	}
}

func TestConfigurableDCutoff(t *testing.T) {
	legacy := NewPolicy(35)

	assert.Equal(t, GradeD, legacy.GradeFor(35))
	assert.Equal(t, GradeF, legacy.GradeFor(34))

	// Out-of-band cutoffs fall back to the default.
	fallback := NewPolicy(90)
	assert.Equal(t, GradeD, fallback.GradeFor(33))
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 69, RoundHalfUp(69.0))
	assert.Equal(t, 70, RoundHalfUp(69.5))
	assert.Equal(t, 69, RoundHalfUp(69.49))
	assert.Equal(t, 0, RoundHalfUp(0))
}
