package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/batch"
	"github.com/tyemirov/treemerge/internal/benchmark"
	"github.com/tyemirov/treemerge/internal/engines/linebased"
	"github.com/tyemirov/treemerge/internal/engines/structured"
	"github.com/tyemirov/treemerge/internal/execshell"
	"github.com/tyemirov/treemerge/internal/jobs"
	"github.com/tyemirov/treemerge/internal/merge"
	"github.com/tyemirov/treemerge/internal/output"
	"github.com/tyemirov/treemerge/internal/reporting"
	"github.com/tyemirov/treemerge/internal/stats"
	flagutils "github.com/tyemirov/treemerge/internal/utils/flags"
)

const (
	mergeOperationNameConstant                  = "merge"
	mergeCommandUseConstant                     = "merge [flags] LEFT [BASE] RIGHT"
	mergeCommandShortDescriptionConstant        = "Merge a triple of files or directories"
	mergeCommandLongDescriptionConstant         = "merge combines LEFT and RIGHT against BASE with the selected strategy. Two arguments merge without a common ancestor. Directory triples merge every file present on both sides."
	strategyFlagNameConstant                    = "strategy"
	strategyFlagUsageConstant                   = "Merge strategy"
	outputFlagNameConstant                      = "output"
	outputFlagShorthandConstant                 = "o"
	outputFlagUsageConstant                     = "Write the merged text to this file, or to this directory for directory triples"
	benchmarkRunsFlagNameConstant               = "benchmark-runs"
	benchmarkRunsFlagUsageConstant              = "Timed repetitions after the warm-up run; zero disables benchmarking"
	statsFlagNameConstant                       = "stats"
	statsFlagUsageConstant                      = "Collect conflict statistics and print the summary"
	keepGoingFlagNameConstant                   = "keep-going"
	keepGoingFlagUsageConstant                  = "Record failed jobs and continue with the rest of the batch"
	workersFlagNameConstant                     = "workers"
	workersFlagUsageConstant                    = "Number of jobs processed concurrently"
	statsFormatFlagNameConstant                 = "stats-format"
	statsFormatFlagUsageConstant                = "Statistics summary format"
	statsKeysFlagNameConstant                   = "stats-keys"
	statsKeysFlagUsageConstant                  = "Statistics counters the strategy must report"
	allStatsKeysLabelConstant                   = "all"
	batchFlagNameConstant                       = "batch"
	batchFlagUsageConstant                      = "YAML file listing merge jobs"
	twoWayArgumentCountConstant                 = 2
	threeWayArgumentCountConstant               = 3
	defaultWorkersConstant                      = 1
	mergeArgumentsErrorMessageConstant          = "merge requires LEFT [BASE] RIGHT or --batch"
	batchArgumentsErrorMessageConstant          = "--batch cannot be combined with positional arguments"
	unknownStrategyTemplateConstant             = "%w: %q (supported: %s)"
	strategyListSeparatorConstant               = ", "
	operationConfigurationErrorTemplateConstant = "unable to read %s configuration: %w"
	mergeStartedMessageConstant                 = "merge started"
	strategyFieldNameConstant                   = "strategy"
	jobCountFieldNameConstant                   = "jobs"
)

// ErrUnknownStrategy indicates a strategy name without a registered engine.
var ErrUnknownStrategy = errors.New("unknown merge strategy")

// ErrMergeArguments indicates positional arguments that do not form a merge triple.
var ErrMergeArguments = errors.New(mergeArgumentsErrorMessageConstant)

var supportedStrategies = []string{linebased.StrategyName, structured.StrategyName}

// MergeConfiguration holds the merge operation options decoded from configuration and flags.
type MergeConfiguration struct {
	Strategy      string   `mapstructure:"strategy"`
	BenchmarkRuns int      `mapstructure:"benchmark_runs"`
	Stats         bool     `mapstructure:"stats"`
	KeepGoing     bool     `mapstructure:"keep_going"`
	Workers       int      `mapstructure:"workers"`
	StatsFormat   string   `mapstructure:"stats_format"`
	StatsKeys     []string `mapstructure:"stats_keys"`
	Output        string   `mapstructure:"output"`
	Batch         string   `mapstructure:"batch"`
}

// ExecutionConfig converts the options into the per-batch merge configuration.
func (configuration MergeConfiguration) ExecutionConfig() merge.ExecutionConfig {
	statsKeys := lo.Uniq(lo.FilterMap(configuration.StatsKeys, func(key string, _ int) (string, bool) {
		normalized := strings.ToLower(strings.TrimSpace(key))
		return normalized, len(normalized) > 0
	}))
	return merge.ExecutionConfig{
		BenchmarkRuns: configuration.BenchmarkRuns,
		CollectStats:  configuration.Stats,
		KeepGoing:     configuration.KeepGoing,
		OutputTarget:  strings.TrimSpace(configuration.Output),
		StatsKeys:     statsKeys,
	}
}

func (application *Application) buildMergeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           mergeCommandUseConstant,
		Short:         mergeCommandShortDescriptionConstant,
		Long:          mergeCommandLongDescriptionConstant,
		Args:          cobra.MaximumNArgs(threeWayArgumentCountConstant),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          application.runMerge,
	}

	flagSet := command.Flags()
	flagSet.String(strategyFlagNameConstant, linebased.StrategyName, flagutils.FormatChoiceUsage(linebased.StrategyName, supportedStrategies, strategyFlagUsageConstant))
	flagSet.StringP(outputFlagNameConstant, outputFlagShorthandConstant, "", outputFlagUsageConstant)
	flagSet.Int(benchmarkRunsFlagNameConstant, 0, benchmarkRunsFlagUsageConstant)
	flagSet.Bool(statsFlagNameConstant, false, statsFlagUsageConstant)
	flagSet.Bool(keepGoingFlagNameConstant, false, keepGoingFlagUsageConstant)
	flagSet.Int(workersFlagNameConstant, defaultWorkersConstant, workersFlagUsageConstant)
	flagSet.String(statsFormatFlagNameConstant, string(stats.FormatConsole), flagutils.FormatChoiceUsage(string(stats.FormatConsole), []string{string(stats.FormatConsole), string(stats.FormatJSON), string(stats.FormatYAML)}, statsFormatFlagUsageConstant))
	flagSet.StringSlice(statsKeysFlagNameConstant, nil, flagutils.FormatChoiceUsage(allStatsKeysLabelConstant, merge.StatsKeys, statsKeysFlagUsageConstant))
	flagSet.String(batchFlagNameConstant, "", batchFlagUsageConstant)

	return command
}

func (application *Application) runMerge(command *cobra.Command, arguments []string) error {
	configuration, configurationError := application.resolveMergeConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	mergeJobs, jobsError := resolveMergeJobs(configuration, arguments)
	if jobsError != nil {
		return jobsError
	}

	summaryFormat, formatError := stats.ParseFormat(configuration.StatsFormat)
	if formatError != nil {
		return formatError
	}

	engine, engineError := application.resolveEngine(configuration.Strategy)
	if engineError != nil {
		return engineError
	}

	executionConfiguration := configuration.ExecutionConfig()
	if len(executionConfiguration.OutputTarget) == 0 && !executionConfiguration.CollectStats && len(strings.TrimSpace(configuration.Batch)) == 0 {
		executionConfiguration.OutputTarget = output.StandardOutputTarget
	}

	commandSettings, _ := application.commandContextAccessor.CommandSettings(command.Context())
	application.logger.Debug(mergeStartedMessageConstant,
		zap.String(strategyFieldNameConstant, engine.Name()),
		zap.Int(jobCountFieldNameConstant, len(mergeJobs)),
		zap.String(configurationFileFieldConstant, commandSettings.ConfigurationFilePath),
	)

	reporter := reporting.NewStructuredReporter(
		command.ErrOrStderr(),
		command.ErrOrStderr(),
		reporting.WithMachineDetails(commandSettings.DebugEnabled()),
	)
	sink := output.NewStreamSink(command.OutOrStdout(), output.NewFileSink(nil))
	controller := jobs.NewController(application.logger, reporter, sink, benchmark.NewHarness(application.logger, nil))
	runner := batch.NewRunner(application.logger, controller, reporter)

	summary, runError := runner.Run(command.Context(), mergeJobs, engine, batch.Options{
		Configuration: executionConfiguration,
		Workers:       configuration.Workers,
	})
	reporter.PrintSummary()
	if runError != nil {
		return runError
	}

	if executionConfiguration.CollectStats {
		return summary.Render(command.OutOrStdout(), summaryFormat)
	}
	return nil
}

func (application *Application) resolveMergeConfiguration(command *cobra.Command) (MergeConfiguration, error) {
	configuration := MergeConfiguration{Strategy: linebased.StrategyName, Workers: defaultWorkersConstant}
	if decodeError := application.operationConfigurations.decode(mergeOperationNameConstant, &configuration); decodeError != nil {
		var missingError MissingOperationConfigurationError
		if !errors.As(decodeError, &missingError) {
			return MergeConfiguration{}, fmt.Errorf(operationConfigurationErrorTemplateConstant, mergeOperationNameConstant, decodeError)
		}
	}

	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: strategyFlagNameConstant, target: &configuration.Strategy},
		{flagName: outputFlagNameConstant, target: &configuration.Output},
		{flagName: statsFormatFlagNameConstant, target: &configuration.StatsFormat},
		{flagName: batchFlagNameConstant, target: &configuration.Batch},
	}
	for _, override := range stringOverrides {
		value, changed, flagError := flagutils.StringFlag(command, override.flagName)
		if flagError != nil && !errors.Is(flagError, flagutils.ErrFlagNotDefined) {
			return MergeConfiguration{}, flagError
		}
		if changed {
			*override.target = value
		}
	}

	intOverrides := []struct {
		flagName string
		target   *int
	}{
		{flagName: benchmarkRunsFlagNameConstant, target: &configuration.BenchmarkRuns},
		{flagName: workersFlagNameConstant, target: &configuration.Workers},
	}
	for _, override := range intOverrides {
		value, changed, flagError := flagutils.IntFlag(command, override.flagName)
		if flagError != nil && !errors.Is(flagError, flagutils.ErrFlagNotDefined) {
			return MergeConfiguration{}, flagError
		}
		if changed {
			*override.target = value
		}
	}

	boolOverrides := []struct {
		flagName string
		target   *bool
	}{
		{flagName: statsFlagNameConstant, target: &configuration.Stats},
		{flagName: keepGoingFlagNameConstant, target: &configuration.KeepGoing},
	}
	for _, override := range boolOverrides {
		value, changed, flagError := flagutils.BoolFlag(command, override.flagName)
		if flagError != nil && !errors.Is(flagError, flagutils.ErrFlagNotDefined) {
			return MergeConfiguration{}, flagError
		}
		if changed {
			*override.target = value
		}
	}

	statsKeys, statsKeysChanged, statsKeysError := flagutils.StringSliceFlag(command, statsKeysFlagNameConstant)
	if statsKeysError != nil && !errors.Is(statsKeysError, flagutils.ErrFlagNotDefined) {
		return MergeConfiguration{}, statsKeysError
	}
	if statsKeysChanged {
		configuration.StatsKeys = statsKeys
	}

	if configuration.Workers < defaultWorkersConstant {
		configuration.Workers = defaultWorkersConstant
	}
	return configuration, nil
}

func resolveMergeJobs(configuration MergeConfiguration, arguments []string) ([]merge.Job, error) {
	batchFile := strings.TrimSpace(configuration.Batch)
	if len(batchFile) > 0 {
		if len(arguments) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrMergeArguments, batchArgumentsErrorMessageConstant)
		}
		return batch.LoadJobsFile(batchFile)
	}

	switch len(arguments) {
	case twoWayArgumentCountConstant:
		return []merge.Job{merge.NewJob(merge.FileArtifact(arguments[0]), merge.EmptyArtifact(), merge.FileArtifact(arguments[1]))}, nil
	case threeWayArgumentCountConstant:
		return []merge.Job{merge.NewJob(merge.FileArtifact(arguments[0]), merge.FileArtifact(arguments[1]), merge.FileArtifact(arguments[2]))}, nil
	default:
		return nil, ErrMergeArguments
	}
}

func (application *Application) resolveEngine(strategy string) (merge.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case linebased.StrategyName:
		executor, executorError := execshell.NewShellExecutor(application.logger, execshell.NewOSCommandRunner(), application.humanReadableLoggingEnabled())
		if executorError != nil {
			return nil, executorError
		}
		engine, engineError := linebased.NewEngine(executor)
		if engineError != nil {
			return nil, engineError
		}
		return engine, nil
	case structured.StrategyName:
		return structured.NewEngine(application.logger), nil
	default:
		return nil, fmt.Errorf(unknownStrategyTemplateConstant, ErrUnknownStrategy, strategy, strings.Join(supportedStrategies, strategyListSeparatorConstant))
	}
}
