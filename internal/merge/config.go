package merge

// ExecutionConfig configures one batch run.
type ExecutionConfig struct {
	// BenchmarkRuns counts timed repetitions beyond the first; zero disables benchmarking.
	BenchmarkRuns int
	CollectStats  bool
	KeepGoing     bool
	// OutputTarget receives the canonicalized text of the representative run when non-empty.
	OutputTarget string
	// StatsKeys lists the statistics counters the active strategy must be able to feed.
	StatsKeys []string
}

// Benchmarking reports whether repeated timed runs are requested.
func (configuration ExecutionConfig) Benchmarking() bool {
	return configuration.BenchmarkRuns > 0
}

// Runs returns the total number of producer executions for one job.
func (configuration ExecutionConfig) Runs() int {
	if !configuration.Benchmarking() {
		return 1
	}
	return configuration.BenchmarkRuns + 1
}

// ForRepetition derives the configuration used by benchmark-only executions: statistics and output are disabled.
func (configuration ExecutionConfig) ForRepetition() ExecutionConfig {
	derived := configuration
	derived.CollectStats = false
	derived.OutputTarget = ""
	derived.StatsKeys = nil
	return derived
}

// ForJob derives the configuration for a job, preferring the job's own output target.
func (configuration ExecutionConfig) ForJob(job Job) ExecutionConfig {
	derived := configuration
	if len(job.Output()) > 0 {
		derived.OutputTarget = job.Output()
	}
	if len(configuration.StatsKeys) > 0 {
		derived.StatsKeys = append([]string(nil), configuration.StatsKeys...)
	}
	return derived
}
