package failure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/engine/failure"
)

func TestZeroToleranceAbortsOnFirstFailure(t *testing.T) {
	p := failure.NewDefaultPolicyFactory().Create(0, 0)

	assert.True(t, p.RecordFailure())
	assert.Equal(t, int64(1), p.FailureCount())
}

func TestToleranceAbsorbsFailuresUpToLimit(t *testing.T) {
	p := failure.NewDefaultPolicyFactory().Create(3, 0)

	assert.False(t, p.RecordFailure())
	assert.False(t, p.RecordFailure())
	assert.False(t, p.RecordFailure())
	// The fourth failure exceeds the tolerance of 3.
	assert.True(t, p.RecordFailure())
	assert.Equal(t, int64(4), p.FailureCount())
}

func TestUnlimitedToleranceNeverAborts(t *testing.T) {
	p := failure.NewDefaultPolicyFactory().Create(config.UnlimitedFailures, 0)

	for i := 0; i < 1000; i++ {
		assert.False(t, p.RecordFailure())
	}
	assert.Equal(t, int64(1000), p.FailureCount())
	assert.Equal(t, config.UnlimitedFailures, p.Tolerance())
}

func TestSeedCountsAgainstTolerance(t *testing.T) {
	// Two failures from earlier steps, tolerance 3: the second new failure
	// pushes the job-wide count past the limit.
	p := failure.NewDefaultPolicyFactory().Create(3, 2)

	assert.False(t, p.RecordFailure())
	assert.True(t, p.RecordFailure())
	assert.Equal(t, int64(4), p.FailureCount())
}
