// Package jobs processes one merge triple: it benchmarks the engine, analyzes the merged text,
// persists the canonical output, and applies the keep-going failure policy.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/benchmark"
	"github.com/tyemirov/treemerge/internal/conflicts"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
	"github.com/tyemirov/treemerge/internal/output"
	"github.com/tyemirov/treemerge/internal/reporting"
)

const (
	jobStartMessageConstant               = "merge job starting"
	jobCompletedMessageConstant           = "merge job completed"
	jobFailedMessageConstant              = "merge job failed"
	jobSkippedMessageConstant             = "continuing after job failure"
	leftFieldNameConstant                 = "left"
	baseFieldNameConstant                 = "base"
	rightFieldNameConstant                = "right"
	jobFieldNameConstant                  = "job"
	strategyFieldNameConstant             = "strategy"
	conflictsFieldNameConstant            = "conflicts"
	runtimeFieldNameConstant              = "runtime_ms"
	unsupportedStatsKeyTemplateConstant   = "strategy %s cannot report %s statistics"
	mergedEventMessageConstant            = "merged cleanly"
	conflictsEventMessageTemplateConstant = "%d conflicts in %d of %d lines"
	engineNotConfiguredMessageConstant    = "merge engine not configured"
	statisticsKeysSeparatorConstant       = ","
)

// ErrEngineNotConfigured indicates Process was invoked without an engine.
var ErrEngineNotConfigured = errors.New(engineNotConfiguredMessageConstant)

// Controller processes merge jobs one at a time.
type Controller struct {
	logger   *zap.Logger
	reporter reporting.Reporter
	sink     output.Sink
	harness  *benchmark.Harness
}

// NewController wires a controller; nil collaborators fall back to no-op logging, no reporting,
// the host filesystem, and a wall-clock harness.
func NewController(logger *zap.Logger, reporter reporting.Reporter, sink output.Sink, harness *benchmark.Harness) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = output.NewFileSink(nil)
	}
	if harness == nil {
		harness = benchmark.NewHarness(logger, nil)
	}
	return &Controller{logger: logger, reporter: reporter, sink: sink, harness: harness}
}

// Process merges one job. Failures are logged and reported before the failure policy applies:
// with KeepGoing, merge-engine and invalid-job failures become a Failure outcome and a nil error;
// every other failure is returned alongside the Failure outcome.
func (controller *Controller) Process(executionContext context.Context, job merge.Job, configuration merge.ExecutionConfig, engine merge.Engine) (merge.Outcome, error) {
	if engine == nil {
		return merge.FailureOutcome(job, ErrEngineNotConfigured), ErrEngineNotConfigured
	}

	configuration = configuration.ForJob(job)
	controller.logger.Debug(jobStartMessageConstant,
		zap.String(leftFieldNameConstant, job.Left().String()),
		zap.String(baseFieldNameConstant, job.Base().String()),
		zap.String(rightFieldNameConstant, job.Right().String()),
		zap.String(strategyFieldNameConstant, engine.Name()),
	)

	outcome, processError := controller.process(executionContext, job, configuration, engine)
	if processError == nil {
		controller.reportSuccess(outcome, engine)
		return outcome, nil
	}

	controller.logger.Error(jobFailedMessageConstant,
		zap.String(jobFieldNameConstant, job.Identity()),
		zap.String(strategyFieldNameConstant, engine.Name()),
		zap.Error(processError),
	)
	controller.report(reporting.Event{
		Level:         reporting.EventLevelError,
		Code:          reporting.EventCodeJobFailed,
		JobIdentifier: job.Identity(),
		Message:       processError.Error(),
		Details:       map[string]string{reporting.DetailStrategy: engine.Name()},
	})

	failure := merge.FailureOutcome(job, processError)
	if configuration.KeepGoing && mergeerrors.IsRecoverable(processError) {
		controller.logger.Info(jobSkippedMessageConstant, zap.String(jobFieldNameConstant, job.Identity()))
		return failure, nil
	}
	return failure, processError
}

func (controller *Controller) process(executionContext context.Context, job merge.Job, configuration merge.ExecutionConfig, engine merge.Engine) (merge.Outcome, error) {
	if configuration.CollectStats {
		if keyError := checkStatisticsKeys(job, configuration.StatsKeys, engine); keyError != nil {
			return merge.Outcome{}, keyError
		}
	}
	if validationError := job.Validate(); validationError != nil {
		return merge.Outcome{}, validationError
	}

	producer := func(runContext context.Context, _ merge.ExecutionConfig) (merge.MergeResult, error) {
		result, buildError := engine.BuildMerge(runContext, job)
		if buildError != nil {
			return merge.MergeResult{}, classifyEngineError(job, buildError)
		}
		return result, nil
	}

	measurement, runError := controller.harness.Run(executionContext, job, configuration, producer)
	if runError != nil {
		return merge.Outcome{}, runError
	}

	var analysis conflicts.Result
	if measurement.Analysis != nil {
		analysis = *measurement.Analysis
	} else {
		analysis = conflicts.Analyze(measurement.Result.Text)
	}

	if len(configuration.OutputTarget) > 0 {
		if writeError := controller.sink.Write(configuration.OutputTarget, analysis.CanonicalText); writeError != nil {
			return merge.Outcome{}, writeError
		}
	}

	return merge.SuccessOutcome(job, measurement.RuntimeMilliseconds, analysis, measurement.Result.Nodes), nil
}

func (controller *Controller) reportSuccess(outcome merge.Outcome, engine merge.Engine) {
	analysis := outcome.Analysis
	controller.logger.Debug(jobCompletedMessageConstant,
		zap.String(jobFieldNameConstant, outcome.Job.Identity()),
		zap.Int(conflictsFieldNameConstant, analysis.ConflictCount),
		zap.Int64(runtimeFieldNameConstant, outcome.RuntimeMilliseconds),
	)

	event := reporting.Event{
		Level:         reporting.EventLevelInfo,
		Code:          reporting.EventCodeJobMerged,
		JobIdentifier: outcome.Job.Identity(),
		Message:       mergedEventMessageConstant,
		Details: map[string]string{
			reporting.DetailStrategy:         engine.Name(),
			reporting.DetailConflicts:        strconv.Itoa(analysis.ConflictCount),
			reporting.DetailConflictingLines: strconv.Itoa(analysis.ConflictingLines),
			reporting.DetailTotalLines:       strconv.Itoa(analysis.TotalLines),
			reporting.DetailRuntime:          strconv.FormatInt(outcome.RuntimeMilliseconds, 10),
		},
	}
	if outcome.HasConflicts() {
		event.Level = reporting.EventLevelWarn
		event.Code = reporting.EventCodeJobConflicts
		event.Message = fmt.Sprintf(conflictsEventMessageTemplateConstant, analysis.ConflictCount, analysis.ConflictingLines, analysis.TotalLines)
	}
	controller.report(event)

	if summaryReporter, ok := controller.reporter.(reporting.SummaryReporter); ok {
		summaryReporter.RecordOperationDuration(engine.Name(), time.Duration(outcome.RuntimeMilliseconds)*time.Millisecond)
	}
}

func (controller *Controller) report(event reporting.Event) {
	if controller.reporter == nil {
		return
	}
	controller.reporter.Report(event)
}

func checkStatisticsKeys(job merge.Job, requestedKeys []string, engine merge.Engine) error {
	supported := make(map[string]struct{}, len(engine.StatsKeys())+1)
	supported[merge.StatsKeyDirectories] = struct{}{}
	for _, key := range engine.StatsKeys() {
		supported[key] = struct{}{}
	}

	unsupported := make([]string, 0)
	for _, key := range requestedKeys {
		if _, exists := supported[key]; !exists {
			unsupported = append(unsupported, key)
		}
	}
	if len(unsupported) == 0 {
		return nil
	}
	return mergeerrors.WrapMessage(
		mergeerrors.OperationResolveStatistics,
		job.Identity(),
		mergeerrors.ErrUnsupportedOperation,
		fmt.Sprintf(unsupportedStatsKeyTemplateConstant, engine.Name(), strings.Join(unsupported, statisticsKeysSeparatorConstant)),
	)
}

func classifyEngineError(job merge.Job, buildError error) error {
	if errors.Is(buildError, context.Canceled) || errors.Is(buildError, context.DeadlineExceeded) {
		return buildError
	}
	var operationError mergeerrors.OperationError
	if errors.As(buildError, &operationError) && len(operationError.Code()) > 0 {
		return buildError
	}
	return mergeerrors.Wrap(mergeerrors.OperationBuildMerge, job.Identity(), mergeerrors.ErrMergeEngine, buildError)
}
