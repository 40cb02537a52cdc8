// Package stats accumulates per-job merge results into batch-wide statistics.
package stats

import (
	"fmt"
	"sync"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	inconsistentAnalysisTemplateConstant = "inconsistent analysis: %d conflicts, %d conflicting lines of %d"
	inconsistentNodesTemplateConstant    = "inconsistent node counts: %d conflicting of %d merged"
)

// Counter tracks merged and conflicting sub-counts of one statistics key.
type Counter struct {
	Merged      int `json:"merged" yaml:"merged"`
	Conflicting int `json:"conflicting" yaml:"conflicting"`
}

// JobRecord captures the outcome of one job in the batch summary.
type JobRecord struct {
	Left                string `json:"left" yaml:"left"`
	Base                string `json:"base" yaml:"base"`
	Right               string `json:"right" yaml:"right"`
	Conflicts           int    `json:"conflicts" yaml:"conflicts"`
	ConflictingLines    int    `json:"conflicting_lines" yaml:"conflicting_lines"`
	TotalLines          int    `json:"total_lines" yaml:"total_lines"`
	RuntimeMilliseconds int64  `json:"runtime_ms" yaml:"runtime_ms"`
	Error               string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the record describes a failed job.
func (record JobRecord) Failed() bool {
	return len(record.Error) > 0
}

// Aggregator folds job outcomes into batch totals. It is safe for concurrent use; records keep append order.
type Aggregator struct {
	mutex               sync.Mutex
	counters            map[string]*Counter
	conflicts           int
	runtimeMilliseconds int64
	records             []JobRecord
}

// NewAggregator constructs an empty aggregator tracking every statistics key.
func NewAggregator() *Aggregator {
	counters := make(map[string]*Counter, len(merge.StatsKeys))
	for _, key := range merge.StatsKeys {
		counters[key] = &Counter{}
	}
	return &Aggregator{counters: counters}
}

// Record appends one job outcome. Successful outcomes are checked for analysis consistency first;
// an inconsistent outcome is rejected with ErrInvariantViolation and leaves the totals untouched.
func (aggregator *Aggregator) Record(outcome merge.Outcome) error {
	job := outcome.Job
	record := JobRecord{
		Left:  job.Left().String(),
		Base:  job.Base().String(),
		Right: job.Right().String(),
	}

	if !outcome.Succeeded() {
		record.Error = outcome.Failure.Description
		aggregator.mutex.Lock()
		defer aggregator.mutex.Unlock()
		aggregator.counters[merge.StatsKeyFiles].Merged++
		aggregator.records = append(aggregator.records, record)
		return nil
	}

	analysis := outcome.Analysis
	if !analysis.Consistent() {
		return mergeerrors.WrapMessage(
			mergeerrors.OperationRecordStatistics,
			job.Identity(),
			mergeerrors.ErrInvariantViolation,
			fmt.Sprintf(inconsistentAnalysisTemplateConstant, analysis.ConflictCount, analysis.ConflictingLines, analysis.TotalLines),
		)
	}
	if outcome.Nodes != nil && (outcome.Nodes.Conflicting < 0 || outcome.Nodes.Conflicting > outcome.Nodes.Merged) {
		return mergeerrors.WrapMessage(
			mergeerrors.OperationRecordStatistics,
			job.Identity(),
			mergeerrors.ErrInvariantViolation,
			fmt.Sprintf(inconsistentNodesTemplateConstant, outcome.Nodes.Conflicting, outcome.Nodes.Merged),
		)
	}

	record.Conflicts = analysis.ConflictCount
	record.ConflictingLines = analysis.ConflictingLines
	record.TotalLines = analysis.TotalLines
	record.RuntimeMilliseconds = outcome.RuntimeMilliseconds

	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	aggregator.counters[merge.StatsKeyFiles].Merged++
	aggregator.counters[merge.StatsKeyLines].Merged += analysis.TotalLines
	aggregator.counters[merge.StatsKeyLines].Conflicting += analysis.ConflictingLines
	if analysis.ConflictCount > 0 {
		aggregator.conflicts += analysis.ConflictCount
		aggregator.counters[merge.StatsKeyFiles].Conflicting++
	}
	if outcome.Nodes != nil {
		aggregator.counters[merge.StatsKeyNodes].Merged += outcome.Nodes.Merged
		aggregator.counters[merge.StatsKeyNodes].Conflicting += outcome.Nodes.Conflicting
	}
	aggregator.runtimeMilliseconds += outcome.RuntimeMilliseconds
	aggregator.records = append(aggregator.records, record)
	return nil
}

// RecordDirectory counts one expanded directory triple.
func (aggregator *Aggregator) RecordDirectory(conflicting bool) {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	aggregator.counters[merge.StatsKeyDirectories].Merged++
	if conflicting {
		aggregator.counters[merge.StatsKeyDirectories].Conflicting++
	}
}

// Summary snapshots the totals. When keys are provided only those counters are included.
func (aggregator *Aggregator) Summary(keys ...string) Summary {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	if len(keys) == 0 {
		keys = merge.StatsKeys
	}
	counters := make(map[string]Counter, len(keys))
	for _, key := range keys {
		if counter, exists := aggregator.counters[key]; exists {
			counters[key] = *counter
		}
	}

	return Summary{
		Counters:            counters,
		Conflicts:           aggregator.conflicts,
		RuntimeMilliseconds: aggregator.runtimeMilliseconds,
		Jobs:                append([]JobRecord(nil), aggregator.records...),
	}
}
