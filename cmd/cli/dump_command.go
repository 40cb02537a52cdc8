package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/engines/structured"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
	flagutils "github.com/tyemirov/treemerge/internal/utils/flags"
)

const (
	dumpOperationNameConstant               = "dump"
	dumpCommandUseConstant                  = "dump [flags] FILE"
	dumpCommandShortDescriptionConstant     = "Print the syntax tree of a source file"
	dumpCommandArgumentCountConstant        = 1
	dumpUnsupportedStrategyTemplateConstant = "strategy %s cannot dump artifacts"
	dumpStrategyFlagUsageConstant           = "Strategy whose tree view is printed"
	dumpStartedMessageConstant              = "dump started"
)

// DumpConfiguration holds the dump operation options.
type DumpConfiguration struct {
	Strategy string `mapstructure:"strategy"`
}

func (application *Application) buildDumpCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           dumpCommandUseConstant,
		Short:         dumpCommandShortDescriptionConstant,
		Args:          cobra.ExactArgs(dumpCommandArgumentCountConstant),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          application.runDump,
	}
	command.Flags().String(strategyFlagNameConstant, structured.StrategyName, flagutils.FormatChoiceUsage(structured.StrategyName, supportedStrategies, dumpStrategyFlagUsageConstant))
	return command
}

func (application *Application) runDump(command *cobra.Command, arguments []string) error {
	configuration := DumpConfiguration{Strategy: structured.StrategyName}
	if decodeError := application.operationConfigurations.decode(dumpOperationNameConstant, &configuration); decodeError != nil {
		var missingError MissingOperationConfigurationError
		if !errors.As(decodeError, &missingError) {
			return fmt.Errorf(operationConfigurationErrorTemplateConstant, dumpOperationNameConstant, decodeError)
		}
	}
	strategy, changed, flagError := flagutils.StringFlag(command, strategyFlagNameConstant)
	if flagError != nil {
		return flagError
	}
	if changed {
		configuration.Strategy = strategy
	}

	engine, engineError := application.resolveEngine(configuration.Strategy)
	if engineError != nil {
		return engineError
	}
	dumper, supportsDump := engine.(merge.Dumper)
	if !supportsDump {
		return mergeerrors.WrapMessage(mergeerrors.OperationBuildMerge, arguments[0], mergeerrors.ErrUnsupportedOperation, fmt.Sprintf(dumpUnsupportedStrategyTemplateConstant, engine.Name()))
	}

	commandSettings, _ := application.commandContextAccessor.CommandSettings(command.Context())
	application.logger.Debug(dumpStartedMessageConstant,
		zap.String(strategyFieldNameConstant, engine.Name()),
		zap.String(configurationFileFieldConstant, commandSettings.ConfigurationFilePath),
	)
	return dumper.Dump(command.Context(), merge.FileArtifact(arguments[0]), command.OutOrStdout())
}
