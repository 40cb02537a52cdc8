package errors_test

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
)

func TestWrapPreservesSentinelAndDetail(testInstance *testing.T) {
	detail := stdErrors.New("syntax error at 3:1")
	wrapped := mergeerrors.Wrap(mergeerrors.OperationBuildMerge, "a.go b.go c.go", mergeerrors.ErrMergeEngine, detail)

	require.ErrorIs(testInstance, wrapped, mergeerrors.ErrMergeEngine)
	require.ErrorIs(testInstance, wrapped, detail)

	var operationError mergeerrors.OperationError
	require.True(testInstance, stdErrors.As(wrapped, &operationError))
	require.Equal(testInstance, mergeerrors.OperationBuildMerge, operationError.Operation())
	require.Equal(testInstance, "a.go b.go c.go", operationError.Subject())
	require.Equal(testInstance, "merge_engine_failed", operationError.Code())
	require.Equal(testInstance, "merge.engine.build[a.go b.go c.go]: merge_engine_failed: syntax error at 3:1", operationError.Error())
}

func TestWrapMessageFormatsWithoutSubject(testInstance *testing.T) {
	wrapped := mergeerrors.WrapMessage(mergeerrors.OperationResolveStatistics, "", mergeerrors.ErrUnsupportedOperation, "strategy linebased cannot report nodes")

	require.ErrorIs(testInstance, wrapped, mergeerrors.ErrUnsupportedOperation)
	require.Equal(testInstance, "merge.stats.resolve: strategy linebased cannot report nodes", wrapped.Error())
}

func TestIsRecoverable(testInstance *testing.T) {
	testCases := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{name: "engine", err: mergeerrors.Wrap(mergeerrors.OperationBuildMerge, "x", mergeerrors.ErrMergeEngine, nil), recoverable: true},
		{name: "invalid_job", err: mergeerrors.Wrap(mergeerrors.OperationValidateJob, "x", mergeerrors.ErrInvalidJob, nil), recoverable: true},
		{name: "output", err: mergeerrors.Wrap(mergeerrors.OperationWriteOutput, "x", mergeerrors.ErrOutputWrite, nil), recoverable: false},
		{name: "invariant", err: mergeerrors.ErrInvariantViolation, recoverable: false},
		{name: "unsupported", err: mergeerrors.ErrUnsupportedOperation, recoverable: false},
		{name: "plain", err: stdErrors.New("boom"), recoverable: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.recoverable, mergeerrors.IsRecoverable(testCase.err))
		})
	}
}
