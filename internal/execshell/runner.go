package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
)

// OSCommandRunner executes commands on the host through os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a host command runner.
func NewOSCommandRunner() OSCommandRunner {
	return OSCommandRunner{}
}

// Run executes the command. A non-zero exit is reported through the result, not as an error.
func (OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandHandle := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	commandHandle.Dir = command.Details.WorkingDirectory
	if len(command.Details.EnvironmentVariables) > 0 {
		commandHandle.Env = append(os.Environ(), formatEnvironment(command.Details.EnvironmentVariables)...)
	}
	if len(command.Details.StandardInput) > 0 {
		commandHandle.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	commandHandle.Stdout = &standardOutput
	commandHandle.Stderr = &standardError

	runError := commandHandle.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) && executionContext.Err() == nil {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return ExecutionResult{}, runError
}

func formatEnvironment(environment map[string]string) []string {
	keys := make([]string, 0, len(environment))
	for key := range environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	formatted := make([]string, 0, len(keys))
	for _, key := range keys {
		formatted = append(formatted, key+"="+environment[key])
	}
	return formatted
}
