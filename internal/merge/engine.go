package merge

import (
	"context"
	"io"
)

// Statistics keys reported in the batch summary.
const (
	StatsKeyDirectories = "directories"
	StatsKeyFiles       = "files"
	StatsKeyLines       = "lines"
	StatsKeyNodes       = "nodes"
)

// StatsKeys lists every counter tracked by the batch summary in reporting order.
var StatsKeys = []string{StatsKeyDirectories, StatsKeyFiles, StatsKeyLines, StatsKeyNodes}

// NodeCounts captures tree-node statistics for one merge.
type NodeCounts struct {
	Merged      int
	Conflicting int
}

// MergeResult is the pretty-printed output of a merge engine, possibly containing conflict markers.
type MergeResult struct {
	Text  string
	Nodes *NodeCounts
}

// Engine builds a merged text from a merge triple.
type Engine interface {
	Name() string
	// StatsKeys lists the statistics counters this strategy can feed.
	StatsKeys() []string
	BuildMerge(executionContext context.Context, job Job) (MergeResult, error)
}

// Dumper renders a debug view of a single artifact.
type Dumper interface {
	Dump(executionContext context.Context, artifact Artifact, writer io.Writer) error
}
