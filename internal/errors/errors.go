package errors

import (
	stdErrors "errors"
	"fmt"
)

// Operation identifies the logical merge step producing a contextual error.
type Operation string

const (
	// OperationValidateJob denotes merge job validation before any engine work.
	OperationValidateJob Operation = "merge.job.validate"
	// OperationBuildMerge denotes the external merge engine invocation.
	OperationBuildMerge Operation = "merge.engine.build"
	// OperationWriteOutput denotes persisting the canonicalized merge text.
	OperationWriteOutput Operation = "merge.output.write"
	// OperationRecordStatistics denotes folding a job outcome into batch statistics.
	OperationRecordStatistics Operation = "merge.stats.record"
	// OperationResolveStatistics denotes checking requested statistics keys against the active strategy.
	OperationResolveStatistics Operation = "merge.stats.resolve"
	// OperationExpandDirectory denotes expanding a directory triple into file jobs.
	OperationExpandDirectory Operation = "merge.directory.expand"
	// OperationLoadBatch denotes reading a batch file of merge triples.
	OperationLoadBatch Operation = "merge.batch.load"
)

// Sentinel describes a stable error code shared across merge components.
type Sentinel string

// Error returns the sentinel code string.
func (sentinel Sentinel) Error() string {
	return string(sentinel)
}

// Code exposes the sentinel code string.
func (sentinel Sentinel) Code() string {
	return string(sentinel)
}

// OperationError annotates an error produced while processing a merge job with operation metadata.
type OperationError struct {
	operation Operation
	subject   string
	err       error
	message   string
}

// Error implements the error interface.
func (operationError OperationError) Error() string {
	if len(operationError.message) > 0 {
		if len(operationError.subject) == 0 {
			return fmt.Sprintf("%s: %s", operationError.operation, operationError.message)
		}
		return fmt.Sprintf("%s[%s]: %s", operationError.operation, operationError.subject, operationError.message)
	}
	if len(operationError.subject) == 0 {
		return fmt.Sprintf("%s: %v", operationError.operation, operationError.err)
	}
	return fmt.Sprintf("%s[%s]: %v", operationError.operation, operationError.subject, operationError.err)
}

// Unwrap exposes the underlying error chain.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the originating operation identifier.
func (operationError OperationError) Operation() Operation {
	return operationError.operation
}

// Subject returns the merge job identity related to the error.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code surfaces the sentinel code of the wrapped error when present.
func (operationError OperationError) Code() string {
	if coder, found := findSentinel(operationError.err); found {
		return coder.Code()
	}
	return ""
}

// Message exposes the formatted message when provided via WrapMessage.
func (operationError OperationError) Message() string {
	return operationError.message
}

// Wrap constructs an OperationError combining the provided metadata with the base sentinel.
func Wrap(operation Operation, subject string, sentinel Sentinel, detail error) error {
	if len(sentinel) == 0 {
		return OperationError{operation: operation, subject: subject, err: detail}
	}
	baseError := error(sentinel)
	if detail != nil {
		baseError = fmt.Errorf("%w: %w", sentinel, detail)
	}
	return OperationError{operation: operation, subject: subject, err: baseError}
}

// WrapMessage constructs an OperationError combining the provided metadata with a formatted message.
func WrapMessage(operation Operation, subject string, sentinel Sentinel, message string) error {
	if len(message) == 0 {
		return Wrap(operation, subject, sentinel, nil)
	}
	return OperationError{operation: operation, subject: subject, err: fmt.Errorf("%w: %s", sentinel, message), message: message}
}

// IsRecoverable reports whether keep-going mode may convert the error into a recorded job failure.
func IsRecoverable(err error) bool {
	return stdErrors.Is(err, ErrMergeEngine) || stdErrors.Is(err, ErrInvalidJob)
}

func findSentinel(err error) (Sentinel, bool) {
	if err == nil {
		return "", false
	}
	var sentinel Sentinel
	if stdErrors.As(err, &sentinel) {
		return sentinel, true
	}
	return "", false
}

var (
	// ErrMergeEngine indicates tree construction or tree-level merging failed inside a merge engine.
	ErrMergeEngine Sentinel = "merge_engine_failed"
	// ErrInvalidJob indicates a merge triple referenced missing or directory content.
	ErrInvalidJob Sentinel = "invalid_merge_job"
	// ErrOutputWrite indicates persisting merge output failed.
	ErrOutputWrite Sentinel = "output_write_failed"
	// ErrInvariantViolation indicates analyzer or aggregator counters became inconsistent.
	ErrInvariantViolation Sentinel = "invariant_violation"
	// ErrUnsupportedOperation indicates the active strategy cannot serve a requested statistics key.
	ErrUnsupportedOperation Sentinel = "unsupported_operation"
)
