package model

// StepOutcome classifies how a single time-boxed step ended.
type StepOutcome string

const (
	// StepOutcomeContinue means the time ceiling was reached before the sequence
	// was exhausted; another step must be scheduled at the returned token.
	StepOutcomeContinue StepOutcome = "CONTINUE"
	// StepOutcomeDone means the record sequence was exhausted with no abort.
	StepOutcomeDone StepOutcome = "DONE"
	// StepOutcomeAbort means the failure tolerance was exceeded; the job is
	// destined for FAILED and no further steps may be scheduled.
	StepOutcomeAbort StepOutcome = "ABORT"
)

// String returns the string representation of the StepOutcome.
func (o StepOutcome) String() string {
	return string(o)
}

// StepDelta is the counter and log increment produced by one step.
// A step never reports running totals; the controller folds deltas into
// the persisted Status.
type StepDelta struct {
	Processed int64
	Failed    int64
	Put       int64
	Deleted   int64
	Logs      []LogEntry
}

// StepResult is the outcome a step executor reports to the job controller.
type StepResult struct {
	Outcome StepOutcome
	// ResumeToken is the continuation point strictly after the last record whose
	// handling completed and whose buffered writes were flushed. Only meaningful
	// for StepOutcomeContinue.
	ResumeToken ResumeToken
	Delta       StepDelta
	// Reason describes why the step aborted. Only set for StepOutcomeAbort.
	Reason string
}
