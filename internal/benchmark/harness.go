// Package benchmark repeats a merge operation and reduces its timings to a representative runtime.
package benchmark

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/conflicts"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	producerNotConfiguredMessageConstant = "benchmark producer not configured"
	initialRunMessageConstant            = "initial run"
	benchmarkRunMessageConstant          = "benchmark run"
	representativeRuntimeMessageConstant = "representative runtime"
	jobFieldNameConstant                 = "job"
	runIndexFieldNameConstant            = "run"
	runCountFieldNameConstant            = "runs"
	runtimeFieldNameConstant             = "runtime_ms"
	samplesFieldNameConstant             = "samples_ms"
)

// ErrProducerNotConfigured indicates the harness was invoked without a merge producer.
var ErrProducerNotConfigured = errors.New(producerNotConfiguredMessageConstant)

// Producer performs one merge execution under the provided configuration.
type Producer func(executionContext context.Context, configuration merge.ExecutionConfig) (merge.MergeResult, error)

// Clock returns the current time.
type Clock func() time.Time

// Measurement captures the representative runtime and the output of the first execution.
type Measurement struct {
	RuntimeMilliseconds int64
	Result              merge.MergeResult
	// Analysis is populated when the configuration collects statistics.
	Analysis *conflicts.Result
	Samples  []int64
}

// Harness executes producers sequentially and times each execution.
type Harness struct {
	logger *zap.Logger
	clock  Clock
}

// NewHarness constructs a harness; nil dependencies fall back to a no-op logger and the wall clock.
func NewHarness(logger *zap.Logger, clock Clock) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Harness{logger: logger, clock: clock}
}

// Run executes the producer once, or BenchmarkRuns+1 times when benchmarking. Only the first
// execution uses the full configuration; later executions use ForRepetition. Any producer
// error aborts the run.
func (harness *Harness) Run(executionContext context.Context, job merge.Job, configuration merge.ExecutionConfig, producer Producer) (Measurement, error) {
	if producer == nil {
		return Measurement{}, ErrProducerNotConfigured
	}

	runs := configuration.Runs()
	samples := make([]int64, 0, runs)
	measurement := Measurement{}

	for runIndex := 0; runIndex < runs; runIndex++ {
		runConfiguration := configuration
		if runIndex > 0 {
			runConfiguration = configuration.ForRepetition()
		}

		startTime := harness.clock()
		result, producerError := producer(executionContext, runConfiguration)
		elapsed := harness.clock().Sub(startTime)
		if producerError != nil {
			return Measurement{}, producerError
		}

		sample := elapsed.Milliseconds()
		samples = append(samples, sample)

		if runIndex == 0 {
			measurement.Result = result
			if runConfiguration.CollectStats {
				analysis := conflicts.Analyze(result.Text)
				measurement.Analysis = &analysis
			}
			if configuration.Benchmarking() {
				harness.logger.Info(initialRunMessageConstant,
					zap.String(jobFieldNameConstant, job.Identity()),
					zap.Int64(runtimeFieldNameConstant, sample),
				)
			}
			continue
		}

		harness.logger.Info(benchmarkRunMessageConstant,
			zap.String(jobFieldNameConstant, job.Identity()),
			zap.Int(runIndexFieldNameConstant, runIndex),
			zap.Int(runCountFieldNameConstant, configuration.BenchmarkRuns),
			zap.Int64(runtimeFieldNameConstant, sample),
		)
	}

	measurement.Samples = samples
	measurement.RuntimeMilliseconds = Representative(samples)

	if configuration.Benchmarking() {
		harness.logger.Info(representativeRuntimeMessageConstant,
			zap.String(jobFieldNameConstant, job.Identity()),
			zap.Int64(runtimeFieldNameConstant, measurement.RuntimeMilliseconds),
			zap.Int64s(samplesFieldNameConstant, samples),
		)
	}
	return measurement, nil
}

// Representative discards the warm-up sample when more than one sample exists and returns the median of the rest.
func Representative(samples []int64) int64 {
	if len(samples) > 1 {
		return Median(samples[1:])
	}
	return Median(samples)
}

// Median returns the median of the samples; for an even count it averages the two middle values, truncating.
func Median(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(leftIndex int, rightIndex int) bool {
		return sorted[leftIndex] < sorted[rightIndex]
	})
	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	return (sorted[middle-1] + sorted[middle]) / 2
}
