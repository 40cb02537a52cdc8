// Package reporting emits operator-visible merge job events and summarizes them.
package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLevelFieldWidth   = 5
	defaultEventFieldWidth   = 14
	defaultJobFieldWidth     = 48
	defaultTimestampLayout   = "15:04:05"
	unknownEventCodeConstant = "UNKNOWN"
	emptySummaryConstant     = "Summary: total.jobs=0 duration_human=0s duration_ms=0"
)

// Job event codes.
const (
	EventCodeJobMerged    = "JOB_MERGED"
	EventCodeJobConflicts = "JOB_CONFLICTS"
	EventCodeJobFailed    = "JOB_FAILED"
	EventCodeJobSkipped   = "JOB_SKIPPED"
)

// Detail keys attached to job events.
const (
	DetailConflicts        = "conflicts"
	DetailConflictingLines = "conflicting_lines"
	DetailTotalLines       = "total_lines"
	DetailRuntime          = "runtime_ms"
	DetailStrategy         = "strategy"
	DetailPath             = "path"
)

// EventLevel describes the severity of a reported job event.
type EventLevel string

// Supported event levels.
const (
	EventLevelInfo  EventLevel = "INFO"
	EventLevelWarn  EventLevel = "WARN"
	EventLevelError EventLevel = "ERROR"
)

// Event captures the structured information associated with one merge job.
type Event struct {
	Timestamp     time.Time
	Level         EventLevel
	Code          string
	JobIdentifier string
	Message       string
	Details       map[string]string
}

// Reporter emits job events.
type Reporter interface {
	Report(event Event)
}

// SummaryReporter augments Reporter with summary emission support.
type SummaryReporter interface {
	Reporter
	Summary() string
	SummaryData() SummaryData
	PrintSummary()
	RecordOperationDuration(operationName string, duration time.Duration)
}

// SummaryData captures aggregated reporter metrics.
type SummaryData struct {
	TotalJobs            int                                 `json:"total_jobs"`
	EventCounts          map[string]int                      `json:"event_counts"`
	LevelCounts          map[EventLevel]int                  `json:"level_counts"`
	DurationHuman        string                              `json:"duration_human"`
	DurationMilliseconds int64                               `json:"duration_ms"`
	OperationDurations   map[string]OperationDurationSummary `json:"operation_durations"`
}

// OperationDurationSummary captures aggregated timing metrics for a merge operation.
type OperationDurationSummary struct {
	Count                       int   `json:"count"`
	TotalDurationMilliseconds   int64 `json:"total_duration_ms"`
	AverageDurationMilliseconds int64 `json:"average_duration_ms"`
}

// ReporterOption customises StructuredReporter behaviour.
type ReporterOption func(*StructuredReporter)

// WithMachineDetails appends key=value details to every rendered event.
func WithMachineDetails(enabled bool) ReporterOption {
	return func(reporter *StructuredReporter) {
		reporter.includeMachineDetails = enabled
	}
}

// WithNowProvider overrides the time source used for timestamps and duration calculations.
func WithNowProvider(provider func() time.Time) ReporterOption {
	return func(reporter *StructuredReporter) {
		if provider != nil {
			reporter.now = provider
			reporter.startTime = provider()
		}
	}
}

// StructuredReporter renders job events as aligned columns and tallies them for the batch summary.
type StructuredReporter struct {
	outputWriter          io.Writer
	errorWriter           io.Writer
	includeMachineDetails bool
	now                   func() time.Time

	mutex              sync.Mutex
	startTime          time.Time
	eventCounts        map[string]int
	levelCounts        map[EventLevel]int
	seenJobs           map[string]struct{}
	operationDurations map[string]*operationDurationAccumulator
}

type operationDurationAccumulator struct {
	count int
	total time.Duration
}

// NewStructuredReporter constructs a StructuredReporter that writes to the provided sinks.
func NewStructuredReporter(output io.Writer, errors io.Writer, options ...ReporterOption) *StructuredReporter {
	if output == nil {
		output = os.Stdout
	}
	if errors == nil {
		errors = output
	}

	reporter := &StructuredReporter{
		outputWriter:       output,
		errorWriter:        errors,
		now:                time.Now,
		startTime:          time.Now(),
		eventCounts:        make(map[string]int),
		levelCounts:        make(map[EventLevel]int),
		seenJobs:           make(map[string]struct{}),
		operationDurations: make(map[string]*operationDurationAccumulator),
	}

	for _, option := range options {
		option(reporter)
	}

	return reporter
}

// RecordOperationDuration aggregates timing information for the provided operation.
func (reporter *StructuredReporter) RecordOperationDuration(operationName string, duration time.Duration) {
	if reporter == nil {
		return
	}

	trimmedName := strings.TrimSpace(operationName)
	if len(trimmedName) == 0 {
		return
	}
	if duration < 0 {
		duration = 0
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	accumulator, exists := reporter.operationDurations[trimmedName]
	if !exists {
		accumulator = &operationDurationAccumulator{}
		reporter.operationDurations[trimmedName] = accumulator
	}
	accumulator.count++
	accumulator.total += duration
}

// Report renders the event; error events go to the error writer.
func (reporter *StructuredReporter) Report(event Event) {
	if reporter == nil {
		return
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = reporter.now()
	}

	level := normalizeLevel(event.Level)
	code := normalizeCode(event.Code)
	jobIdentifier := strings.TrimSpace(event.JobIdentifier)
	message := strings.TrimSpace(event.Message)

	writer := reporter.outputWriter
	if level == EventLevelError && reporter.errorWriter != nil {
		writer = reporter.errorWriter
	}

	if len(jobIdentifier) > 0 {
		reporter.seenJobs[jobIdentifier] = struct{}{}
	}
	reporter.eventCounts[code]++
	reporter.levelCounts[level]++

	humanPart := formatHumanPart(timestamp, level, code, jobIdentifier, message)
	if !reporter.includeMachineDetails || len(event.Details) == 0 {
		fmt.Fprintln(writer, strings.TrimRight(humanPart, " "))
		return
	}
	fmt.Fprintf(writer, "%s | %s\n", humanPart, formatMachinePart(code, event.Details))
}

// SummaryData produces a serializable snapshot of reporter metrics.
func (reporter *StructuredReporter) SummaryData() SummaryData {
	if reporter == nil {
		return SummaryData{
			EventCounts:        make(map[string]int),
			LevelCounts:        make(map[EventLevel]int),
			OperationDurations: make(map[string]OperationDurationSummary),
			DurationHuman:      "0s",
		}
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	duration := reporter.now().Sub(reporter.startTime)
	if duration < 0 {
		duration = 0
	}

	eventCounts := make(map[string]int, len(reporter.eventCounts))
	for code, count := range reporter.eventCounts {
		eventCounts[code] = count
	}
	levelCounts := make(map[EventLevel]int, len(reporter.levelCounts))
	for level, count := range reporter.levelCounts {
		levelCounts[level] = count
	}

	operationDurations := make(map[string]OperationDurationSummary, len(reporter.operationDurations))
	for name, accumulator := range reporter.operationDurations {
		if accumulator.count == 0 {
			continue
		}
		operationDurations[name] = OperationDurationSummary{
			Count:                       accumulator.count,
			TotalDurationMilliseconds:   durationMilliseconds(accumulator.total),
			AverageDurationMilliseconds: durationMilliseconds(accumulator.total / time.Duration(accumulator.count)),
		}
	}

	return SummaryData{
		TotalJobs:            len(reporter.seenJobs),
		EventCounts:          eventCounts,
		LevelCounts:          levelCounts,
		DurationHuman:        formatDuration(duration),
		DurationMilliseconds: durationMilliseconds(duration),
		OperationDurations:   operationDurations,
	}
}

// Summary renders the event and level tallies as one line.
func (reporter *StructuredReporter) Summary() string {
	data := reporter.SummaryData()
	if data.TotalJobs == 0 && len(data.EventCounts) == 0 {
		return emptySummaryConstant
	}

	codes := make([]string, 0, len(data.EventCounts))
	for code := range data.EventCounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes)+5)
	parts = append(parts, fmt.Sprintf("Summary: total.jobs=%d", data.TotalJobs))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s=%d", code, data.EventCounts[code]))
	}
	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelWarn, data.LevelCounts[EventLevelWarn]))
	parts = append(parts, fmt.Sprintf("%s=%d", EventLevelError, data.LevelCounts[EventLevelError]))
	parts = append(parts, fmt.Sprintf("duration_human=%s", data.DurationHuman))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", data.DurationMilliseconds))

	return strings.Join(parts, " ")
}

// PrintSummary writes the computed summary to the primary output writer.
func (reporter *StructuredReporter) PrintSummary() {
	if reporter == nil {
		return
	}
	summary := reporter.Summary()

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	fmt.Fprintln(reporter.outputWriter, summary)
}

func formatHumanPart(timestamp time.Time, level EventLevel, code string, jobIdentifier string, message string) string {
	levelField := fmt.Sprintf("%-*s", defaultLevelFieldWidth, string(level))
	codeField := fmt.Sprintf("%-*s", defaultEventFieldWidth, code)
	jobField := fmt.Sprintf("%-*s", defaultJobFieldWidth, jobIdentifier)
	return fmt.Sprintf("%s %s %s %s %s", timestamp.Format(defaultTimestampLayout), levelField, codeField, jobField, message)
}

func formatMachinePart(code string, details map[string]string) string {
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)+1)
	pairs = append(pairs, fmt.Sprintf("event=%s", code))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, details[key]))
	}
	return strings.Join(pairs, " ")
}

func formatDuration(value time.Duration) string {
	if value < 0 {
		value = 0
	}
	rounded := value.Round(time.Millisecond)
	if rounded == 0 && value > 0 {
		rounded = time.Millisecond
	}
	return rounded.String()
}

func durationMilliseconds(value time.Duration) int64 {
	if value < 0 {
		value = 0
	}
	rounded := value.Round(time.Millisecond)
	if rounded == 0 && value > 0 {
		rounded = time.Millisecond
	}
	return rounded.Milliseconds()
}

func normalizeLevel(level EventLevel) EventLevel {
	switch level {
	case EventLevelWarn:
		return EventLevelWarn
	case EventLevelError:
		return EventLevelError
	default:
		return EventLevelInfo
	}
}

func normalizeCode(code string) string {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) == 0 {
		return unknownEventCodeConstant
	}
	return strings.ReplaceAll(strings.ToUpper(trimmed), " ", "_")
}
