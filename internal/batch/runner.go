// Package batch runs a list of merge triples through the job controller, expands directory triples,
// and folds outcomes into batch statistics in job order.
package batch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/treemerge/internal/merge"
	"github.com/tyemirov/treemerge/internal/output"
	"github.com/tyemirov/treemerge/internal/reporting"
	"github.com/tyemirov/treemerge/internal/stats"
)

const (
	batchStartMessageConstant        = "merge batch starting"
	batchCompletedMessageConstant    = "merge batch completed"
	directoryExpandedMessageConstant = "directory triple expanded"
	skippedEventMessageConstant      = "present on one side only"
	jobsFieldNameConstant            = "jobs"
	workersFieldNameConstant         = "workers"
	filesFieldNameConstant           = "files"
	skippedFieldNameConstant         = "skipped"
	directoryFieldNameConstant       = "directory"
	failedJobsFieldNameConstant      = "failed_jobs"
	processorNotConfiguredConstant   = "job processor not configured"
	noDirectoryIndexConstant         = -1
)

// ErrProcessorNotConfigured indicates the runner was built without a job processor.
var ErrProcessorNotConfigured = errors.New(processorNotConfiguredConstant)

// JobProcessor processes a single merge triple.
type JobProcessor interface {
	Process(executionContext context.Context, job merge.Job, configuration merge.ExecutionConfig, engine merge.Engine) (merge.Outcome, error)
}

// Options configures one batch run.
type Options struct {
	Configuration merge.ExecutionConfig
	// Workers bounds concurrent job processing; values below two process jobs sequentially.
	Workers int
}

// Runner drives a batch of merge jobs.
type Runner struct {
	logger    *zap.Logger
	processor JobProcessor
	reporter  reporting.Reporter
}

// NewRunner constructs a batch runner; a nil logger falls back to a no-op logger.
func NewRunner(logger *zap.Logger, processor JobProcessor, reporter reporting.Reporter) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, processor: processor, reporter: reporter}
}

type workItem struct {
	job            merge.Job
	configuration  merge.ExecutionConfig
	directoryIndex int
}

// Run processes every job and returns the batch statistics. The first fatal job error or inconsistent
// outcome stops the batch; outcomes recorded so far are still folded into the returned summary.
func (runner *Runner) Run(executionContext context.Context, jobs []merge.Job, engine merge.Engine, options Options) (stats.Summary, error) {
	aggregator := stats.NewAggregator()
	if runner.processor == nil {
		return aggregator.Summary(), ErrProcessorNotConfigured
	}

	items, directoryCount, expansionError := runner.plan(jobs, options.Configuration)
	if expansionError != nil {
		return aggregator.Summary(), expansionError
	}

	runner.logger.Info(batchStartMessageConstant,
		zap.Int(jobsFieldNameConstant, len(items)),
		zap.Int(workersFieldNameConstant, options.Workers),
	)

	recorder := newOrderedRecorder(aggregator, items, directoryCount)
	processingError := runner.process(executionContext, items, engine, options.Workers, recorder)
	recorder.flush()
	for _, conflicting := range recorder.directoryConflicts {
		aggregator.RecordDirectory(conflicting)
	}

	summary := aggregator.Summary(options.Configuration.StatsKeys...)
	runner.logger.Info(batchCompletedMessageConstant,
		zap.Int(jobsFieldNameConstant, len(summary.Jobs)),
		zap.Int(failedJobsFieldNameConstant, summary.FailedJobs()),
	)
	return summary, processingError
}

func (runner *Runner) plan(jobs []merge.Job, configuration merge.ExecutionConfig) ([]workItem, int, error) {
	items := make([]workItem, 0, len(jobs))
	directoryCount := 0
	for _, job := range jobs {
		isDirectory, inspectionError := job.IsDirectoryTriple()
		if inspectionError != nil || !isDirectory {
			// The controller validates the job and applies the failure policy.
			items = append(items, workItem{job: job, configuration: configuration, directoryIndex: noDirectoryIndexConstant})
			continue
		}

		outputRoot := job.Output()
		if len(outputRoot) == 0 {
			outputRoot = configuration.OutputTarget
		}
		if outputRoot == output.StandardOutputTarget {
			outputRoot = ""
		}
		expansion, expansionError := expandDirectory(job, outputRoot)
		if expansionError != nil {
			return nil, 0, expansionError
		}
		runner.logger.Debug(directoryExpandedMessageConstant,
			zap.String(directoryFieldNameConstant, job.Identity()),
			zap.Int(filesFieldNameConstant, len(expansion.jobs)),
			zap.Int(skippedFieldNameConstant, len(expansion.skipped)),
		)
		for _, skippedPath := range expansion.skipped {
			runner.report(reporting.Event{
				Level:         reporting.EventLevelWarn,
				Code:          reporting.EventCodeJobSkipped,
				JobIdentifier: job.Identity(),
				Message:       skippedEventMessageConstant,
				Details:       map[string]string{reporting.DetailPath: skippedPath},
			})
		}

		fileConfiguration := configuration
		fileConfiguration.OutputTarget = ""
		for _, fileJob := range expansion.jobs {
			items = append(items, workItem{job: fileJob, configuration: fileConfiguration, directoryIndex: directoryCount})
		}
		directoryCount++
	}
	return items, directoryCount, nil
}

func (runner *Runner) process(executionContext context.Context, items []workItem, engine merge.Engine, workers int, recorder *orderedRecorder) error {
	if workers < 2 {
		for itemIndex, item := range items {
			if contextError := executionContext.Err(); contextError != nil {
				return contextError
			}
			outcome, processError := runner.processor.Process(executionContext, item.job, item.configuration, engine)
			if jobError := joinJobErrors(processError, recorder.complete(itemIndex, outcome)); jobError != nil {
				return jobError
			}
		}
		return nil
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(workers)
	for itemIndex, item := range items {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			outcome, processError := runner.processor.Process(groupContext, item.job, item.configuration, engine)
			return joinJobErrors(processError, recorder.complete(itemIndex, outcome))
		})
	}
	return group.Wait()
}

func joinJobErrors(processError error, recordError error) error {
	if recordError == nil {
		return processError
	}
	if processError == nil {
		return recordError
	}
	return errors.Join(processError, recordError)
}

// orderedRecorder folds outcomes into the aggregator in job order as jobs complete.
type orderedRecorder struct {
	mutex              sync.Mutex
	aggregator         *stats.Aggregator
	items              []workItem
	outcomes           []merge.Outcome
	completed          []bool
	nextIndex          int
	failed             bool
	directoryConflicts []bool
}

func newOrderedRecorder(aggregator *stats.Aggregator, items []workItem, directoryCount int) *orderedRecorder {
	return &orderedRecorder{
		aggregator:         aggregator,
		items:              items,
		outcomes:           make([]merge.Outcome, len(items)),
		completed:          make([]bool, len(items)),
		directoryConflicts: make([]bool, directoryCount),
	}
}

func (recorder *orderedRecorder) complete(itemIndex int, outcome merge.Outcome) error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	recorder.outcomes[itemIndex] = outcome
	recorder.completed[itemIndex] = true
	if recorder.failed {
		return nil
	}
	for recorder.nextIndex < len(recorder.items) && recorder.completed[recorder.nextIndex] {
		if recordError := recorder.record(recorder.nextIndex); recordError != nil {
			recorder.failed = true
			return recordError
		}
		recorder.nextIndex++
	}
	return nil
}

// flush records completed outcomes left behind a job that never ran. Nothing more is recorded once
// an outcome has been rejected.
func (recorder *orderedRecorder) flush() {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	for ; recorder.nextIndex < len(recorder.items) && !recorder.failed; recorder.nextIndex++ {
		if !recorder.completed[recorder.nextIndex] {
			continue
		}
		if recordError := recorder.record(recorder.nextIndex); recordError != nil {
			recorder.failed = true
		}
	}
}

func (recorder *orderedRecorder) record(itemIndex int) error {
	outcome := recorder.outcomes[itemIndex]
	if recordError := recorder.aggregator.Record(outcome); recordError != nil {
		return recordError
	}
	directoryIndex := recorder.items[itemIndex].directoryIndex
	if directoryIndex != noDirectoryIndexConstant && outcome.HasConflicts() {
		recorder.directoryConflicts[directoryIndex] = true
	}
	return nil
}

func (runner *Runner) report(event reporting.Event) {
	if runner.reporter == nil {
		return
	}
	runner.reporter.Report(event)
}
