package utils

import (
	"context"
	"strings"
)

const commandSettingsContextKeyConstant = commandContextKey("commandSettings")

type commandContextKey string

// CommandSettings carries the resolved root settings a subcommand consults while it runs.
type CommandSettings struct {
	ConfigurationFilePath string
	LogLevel              LogLevel
}

// DebugEnabled reports whether the effective log level is debug.
func (settings CommandSettings) DebugEnabled() bool {
	return strings.EqualFold(string(settings.LogLevel), string(LogLevelDebug))
}

// CommandContextAccessor stores and retrieves CommandSettings on command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithCommandSettings attaches settings to parentContext, trimming the log level.
func (accessor CommandContextAccessor) WithCommandSettings(parentContext context.Context, settings CommandSettings) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	settings.LogLevel = LogLevel(strings.ToLower(strings.TrimSpace(string(settings.LogLevel))))
	return context.WithValue(parentContext, commandSettingsContextKeyConstant, settings)
}

// CommandSettings returns the settings attached by WithCommandSettings. Missing settings yield the zero value and false.
func (accessor CommandContextAccessor) CommandSettings(executionContext context.Context) (CommandSettings, bool) {
	if executionContext == nil {
		return CommandSettings{}, false
	}
	settings, settingsAvailable := executionContext.Value(commandSettingsContextKeyConstant).(CommandSettings)
	return settings, settingsAvailable
}
