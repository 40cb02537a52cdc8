// Package structured merges source files declaration by declaration using tree-sitter syntax trees.
package structured

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	// StrategyName identifies the structured engine in configuration.
	StrategyName = "structured"

	unsupportedExtensionTemplateConstant = "no grammar registered for %s (supported: %s)"
	syntaxErrorTemplateConstant          = "syntax error in %s"
	nilTreeTemplateConstant              = "parser returned no tree for %s"
	readFailureTemplateConstant          = "unable to read %s: %w"
	extensionListSeparatorConstant       = ", "
	mergeBuiltMessageConstant            = "structured merge built"
	jobFieldNameConstant                 = "job"
	nodesFieldNameConstant               = "nodes"
	conflictingNodesFieldNameConstant    = "conflicting_nodes"
)

// ErrUnsupportedLanguage indicates no grammar is registered for an artifact's extension.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Engine performs tree-node-level merges.
type Engine struct {
	logger    *zap.Logger
	languages languageRegistry
}

// NewEngine constructs a structured engine; a nil logger falls back to a no-op logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, languages: newLanguageRegistry()}
}

// Name returns the strategy name.
func (engine *Engine) Name() string {
	return StrategyName
}

// StatsKeys lists the counters a structured merge can feed.
func (engine *Engine) StatsKeys() []string {
	return []string{merge.StatsKeyFiles, merge.StatsKeyLines, merge.StatsKeyNodes}
}

// Extensions lists the file extensions with a registered grammar.
func (engine *Engine) Extensions() []string {
	return engine.languages.extensions()
}

// BuildMerge parses the three revisions and merges their top-level declarations.
func (engine *Engine) BuildMerge(executionContext context.Context, job merge.Job) (merge.MergeResult, error) {
	language, resolveError := engine.resolveLanguage(job.Left())
	if resolveError != nil {
		return merge.MergeResult{}, mergeerrors.Wrap(mergeerrors.OperationBuildMerge, job.Identity(), mergeerrors.ErrMergeEngine, resolveError)
	}

	revisions := []merge.Artifact{job.Base(), job.Left(), job.Right()}
	parsed := make([][]declaration, 0, len(revisions))
	for _, artifact := range revisions {
		if contextError := executionContext.Err(); contextError != nil {
			return merge.MergeResult{}, contextError
		}
		declarations, parseError := engine.parseDeclarations(artifact, language)
		if parseError != nil {
			return merge.MergeResult{}, mergeerrors.Wrap(mergeerrors.OperationBuildMerge, job.Identity(), mergeerrors.ErrMergeEngine, parseError)
		}
		parsed = append(parsed, declarations)
	}

	blocks := mergeDeclarations(parsed[0], parsed[1], parsed[2])
	nodes := &merge.NodeCounts{Merged: len(blocks)}
	for _, block := range blocks {
		if block.conflicting {
			nodes.Conflicting++
		}
	}

	engine.logger.Debug(mergeBuiltMessageConstant,
		zap.String(jobFieldNameConstant, job.Identity()),
		zap.Int(nodesFieldNameConstant, nodes.Merged),
		zap.Int(conflictingNodesFieldNameConstant, nodes.Conflicting),
	)
	return merge.MergeResult{Text: renderBlocks(blocks), Nodes: nodes}, nil
}

// Dump writes the S-expression of the artifact's syntax tree.
func (engine *Engine) Dump(executionContext context.Context, artifact merge.Artifact, writer io.Writer) error {
	language, resolveError := engine.resolveLanguage(artifact)
	if resolveError != nil {
		return mergeerrors.Wrap(mergeerrors.OperationBuildMerge, artifact.String(), mergeerrors.ErrMergeEngine, resolveError)
	}

	source, readError := readArtifact(artifact)
	if readError != nil {
		return mergeerrors.Wrap(mergeerrors.OperationBuildMerge, artifact.String(), mergeerrors.ErrMergeEngine, readError)
	}

	var rendered string
	parseError := withTree(artifact, source, language, func(root *tree_sitter.Node) error {
		rendered = root.ToSexp()
		return nil
	})
	if parseError != nil {
		return mergeerrors.Wrap(mergeerrors.OperationBuildMerge, artifact.String(), mergeerrors.ErrMergeEngine, parseError)
	}

	_, writeError := fmt.Fprintln(writer, rendered)
	return writeError
}

func (engine *Engine) resolveLanguage(artifact merge.Artifact) (*tree_sitter.Language, error) {
	language, exists := engine.languages.resolve(artifact.Path)
	if !exists {
		return nil, fmt.Errorf("%w: "+unsupportedExtensionTemplateConstant, ErrUnsupportedLanguage, artifact.Path, strings.Join(engine.languages.extensions(), extensionListSeparatorConstant))
	}
	return language, nil
}

func (engine *Engine) parseDeclarations(artifact merge.Artifact, language *tree_sitter.Language) ([]declaration, error) {
	if artifact.Empty {
		return nil, nil
	}
	source, readError := readArtifact(artifact)
	if readError != nil {
		return nil, readError
	}

	var declarations []declaration
	parseError := withTree(artifact, source, language, func(root *tree_sitter.Node) error {
		if root.HasError() {
			return fmt.Errorf(syntaxErrorTemplateConstant, artifact.Path)
		}
		declarations = collectDeclarations(root, source)
		return nil
	})
	return declarations, parseError
}

func withTree(artifact merge.Artifact, source []byte, language *tree_sitter.Language, visit func(root *tree_sitter.Node) error) error {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if languageError := parser.SetLanguage(language); languageError != nil {
		return languageError
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return fmt.Errorf(nilTreeTemplateConstant, artifact.Path)
	}
	defer tree.Close()

	return visit(tree.RootNode())
}

func readArtifact(artifact merge.Artifact) ([]byte, error) {
	source, readError := os.ReadFile(artifact.Path)
	if readError != nil {
		return nil, fmt.Errorf(readFailureTemplateConstant, artifact.Path, readError)
	}
	return source, nil
}
