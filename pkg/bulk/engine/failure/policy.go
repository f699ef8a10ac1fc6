// Package failure implements the per-record failure accounting of the bulk
// engine: whether the job may continue after a handler failure.
package failure

import (
	"github.com/tigerroll/riptide/pkg/bulk/core/config"
)

// Policy decides, per handler failure, whether the job must abort.
// The count is seeded from the persisted status so the tolerance applies
// across the whole job, not per step.
type Policy interface {
	// RecordFailure increments the failure count and returns true when the job
	// must abort (the count exceeded the tolerance).
	RecordFailure() bool
	// FailureCount returns the total number of failures recorded so far.
	FailureCount() int64
	// Tolerance returns the configured tolerance. config.UnlimitedFailures
	// means aborting is disabled.
	Tolerance() int
}

// DefaultPolicyFactory creates tolerance-based policies.
type DefaultPolicyFactory struct{}

// NewDefaultPolicyFactory creates a new DefaultPolicyFactory.
func NewDefaultPolicyFactory() *DefaultPolicyFactory {
	return &DefaultPolicyFactory{}
}

// Create creates a Policy with the given tolerance, seeded with the failures
// already recorded by earlier steps of the same job.
// A tolerance of 0 aborts on the first failure; config.UnlimitedFailures (-1)
// never aborts regardless of count.
func (f *DefaultPolicyFactory) Create(tolerance int, seed int64) Policy {
	return &tolerancePolicy{
		tolerance: tolerance,
		count:     seed,
	}
}

// tolerancePolicy is the default Policy implementation.
type tolerancePolicy struct {
	tolerance int
	count     int64
}

// RecordFailure increments the failure count and evaluates the abort condition.
func (p *tolerancePolicy) RecordFailure() bool {
	p.count++
	if p.tolerance == config.UnlimitedFailures {
		return false
	}
	return p.count > int64(p.tolerance)
}

// FailureCount returns the total number of failures recorded so far.
func (p *tolerancePolicy) FailureCount() int64 {
	return p.count
}

// Tolerance returns the configured tolerance.
func (p *tolerancePolicy) Tolerance() int {
	return p.tolerance
}

var _ Policy = (*tolerancePolicy)(nil)
