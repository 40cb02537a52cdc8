// Package version resolves the treemerge release string from linker flags, module build metadata, or git tags.
package version

import (
	"context"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/execshell"
)

const (
	unknownVersionConstant                    = "unknown"
	develBuildVersionConstant                 = "devel"
	gitRevParseSubcommandConstant             = "rev-parse"
	gitShowTopLevelFlagConstant               = "--show-toplevel"
	gitDescribeSubcommandConstant             = "describe"
	gitTagsFlagConstant                       = "--tags"
	gitExactMatchFlagConstant                 = "--exact-match"
	gitLongFlagConstant                       = "--long"
	gitDirtyFlagConstant                      = "--dirty"
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
)

// ReleaseVersion is stamped at link time with -ldflags "-X github.com/tyemirov/treemerge/internal/version.ReleaseVersion=v1.2.3".
var ReleaseVersion string

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Dependencies describes the collaborators used for version detection.
type Dependencies struct {
	ReleaseVersion    string
	BuildInfoProvider BuildInfoProvider
	GitExecutor       GitExecutor
	WorkingDirectory  string
}

// Detector resolves the release string, preferring the stamped version, then module metadata, then git tags.
type Detector struct {
	releaseVersion    string
	buildInfoProvider BuildInfoProvider
	gitExecutor       GitExecutor
	workingDirectory  string
}

// NewDetector constructs a Detector; missing collaborators fall back to the runtime build info and the host git.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}

	executor := dependencies.GitExecutor
	if executor == nil {
		shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner(), false)
		if creationError != nil {
			return nil, creationError
		}
		executor = shellExecutor
	}

	workingDirectory := strings.TrimSpace(dependencies.WorkingDirectory)
	if len(workingDirectory) == 0 {
		if currentDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
			workingDirectory = currentDirectory
		}
	}

	releaseVersion := strings.TrimSpace(dependencies.ReleaseVersion)
	if len(releaseVersion) == 0 {
		releaseVersion = strings.TrimSpace(ReleaseVersion)
	}

	return &Detector{
		releaseVersion:    releaseVersion,
		buildInfoProvider: provider,
		gitExecutor:       executor,
		workingDirectory:  workingDirectory,
	}, nil
}

// Detect resolves the version with a freshly built detector.
func Detect(executionContext context.Context, dependencies Dependencies) string {
	detector, detectorError := NewDetector(dependencies)
	if detectorError != nil {
		return unknownVersionConstant
	}
	return detector.Version(executionContext)
}

// Version returns the first available version source, or "unknown".
func (detector *Detector) Version(executionContext context.Context) string {
	if detector == nil {
		return unknownVersionConstant
	}
	if len(detector.releaseVersion) > 0 {
		return detector.releaseVersion
	}
	if moduleVersion := detector.moduleVersion(); len(moduleVersion) > 0 {
		return moduleVersion
	}

	repositoryRoot := detector.repositoryRoot(executionContext)
	describeVariants := [][]string{
		{gitDescribeSubcommandConstant, gitTagsFlagConstant, gitExactMatchFlagConstant},
		{gitDescribeSubcommandConstant, gitTagsFlagConstant, gitLongFlagConstant, gitDirtyFlagConstant},
	}
	for _, arguments := range describeVariants {
		if described := detector.gitOutput(executionContext, repositoryRoot, arguments); len(described) > 0 {
			return described
		}
	}
	return unknownVersionConstant
}

func (detector *Detector) moduleVersion() string {
	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return ""
	}
	moduleVersion := strings.TrimSpace(buildInfo.Main.Version)
	if strings.EqualFold(moduleVersion, develBuildVersionConstant) || strings.EqualFold(moduleVersion, "("+develBuildVersionConstant+")") {
		return ""
	}
	return moduleVersion
}

func (detector *Detector) repositoryRoot(executionContext context.Context) string {
	if len(detector.workingDirectory) == 0 {
		return ""
	}
	topLevel := detector.gitOutput(executionContext, detector.workingDirectory, []string{gitRevParseSubcommandConstant, gitShowTopLevelFlagConstant})
	if len(topLevel) == 0 {
		return detector.workingDirectory
	}
	return topLevel
}

func (detector *Detector) gitOutput(executionContext context.Context, workingDirectory string, arguments []string) string {
	executionResult, executionError := detector.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant},
	})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
