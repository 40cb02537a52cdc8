package merge

import "github.com/tyemirov/treemerge/internal/conflicts"

// Failure describes a job that could not be merged.
type Failure struct {
	Description string
	Err         error
}

// Outcome is the result of processing one job: a success with runtime and analysis, or a failure.
type Outcome struct {
	Job                 Job
	RuntimeMilliseconds int64
	Analysis            conflicts.Result
	Nodes               *NodeCounts
	Failure             *Failure
}

// SuccessOutcome constructs a successful outcome.
func SuccessOutcome(job Job, runtimeMilliseconds int64, analysis conflicts.Result, nodes *NodeCounts) Outcome {
	return Outcome{Job: job, RuntimeMilliseconds: runtimeMilliseconds, Analysis: analysis, Nodes: nodes}
}

// FailureOutcome constructs a failed outcome carrying the error description.
func FailureOutcome(job Job, err error) Outcome {
	description := ""
	if err != nil {
		description = err.Error()
	}
	return Outcome{Job: job, Failure: &Failure{Description: description, Err: err}}
}

// Succeeded reports whether the outcome is a success.
func (outcome Outcome) Succeeded() bool {
	return outcome.Failure == nil
}

// HasConflicts reports whether a successful outcome contains at least one conflict.
func (outcome Outcome) HasConflicts() bool {
	return outcome.Succeeded() && outcome.Analysis.ConflictCount > 0
}
