// Package conflicts analyzes merged text containing conflict markers.
//
// Analyze walks the text once, counting non-blank lines, the lines inside conflict
// regions, and the number of conflicts, and re-emits the text with every conflict
// rewritten into a canonical marker triple. Conflicts separated only by blank lines
// are coalesced into a single conflict, and conflicts without any non-blank content
// are dropped.
package conflicts

import (
	"strings"
	"unicode"
)

const (
	startMarkerConstant              = "<<<<<<<"
	separatorMarkerConstant          = "======="
	endMarkerConstant                = ">>>>>>>"
	canonicalStartMarkerConstant     = "<<<<<<< "
	canonicalSeparatorMarkerConstant = "======= "
	canonicalEndMarkerConstant       = ">>>>>>> "
	lineTerminatorConstant           = "\n"
	carriageReturnConstant           = "\r"
)

type analyzerState int

const (
	stateNormal analyzerState = iota
	stateInConflictLeft
	stateInConflictRight
	stateAfterConflict
)

// Result summarizes one analyzed merge output.
type Result struct {
	TotalLines       int    `json:"total_lines" yaml:"total_lines"`
	ConflictingLines int    `json:"conflicting_lines" yaml:"conflicting_lines"`
	ConflictCount    int    `json:"conflicts" yaml:"conflicts"`
	CanonicalText    string `json:"-" yaml:"-"`
}

// Consistent reports whether the counters satisfy 0 <= conflicting <= total and conflicts > 0 exactly when conflicting lines > 0.
func (result Result) Consistent() bool {
	if result.ConflictingLines < 0 || result.ConflictCount < 0 {
		return false
	}
	if result.ConflictingLines > result.TotalLines {
		return false
	}
	return (result.ConflictCount > 0) == (result.ConflictingLines > 0)
}

type analyzer struct {
	state             analyzerState
	output            strings.Builder
	leftLines         strings.Builder
	rightLines        strings.Builder
	pendingBlankLines []string
	chainCounted      bool
	result            Result
}

// Analyze counts lines and conflicts in mergedText and returns its canonicalized form.
func Analyze(mergedText string) Result {
	state := &analyzer{}
	for _, line := range splitLines(mergedText) {
		state.consume(line)
	}
	state.finish()
	state.result.CanonicalText = state.output.String()
	return state.result
}

func (state *analyzer) consume(line string) {
	if isBlank(line) {
		switch state.state {
		case stateNormal:
			state.emitLine(line)
		case stateAfterConflict:
			state.pendingBlankLines = append(state.pendingBlankLines, line)
		}
		return
	}

	switch {
	case hasMarker(line, startMarkerConstant):
		state.openConflict()
	case hasMarker(line, separatorMarkerConstant):
		state.handleSeparator(line)
	case hasMarker(line, endMarkerConstant):
		state.handleEnd(line)
	default:
		state.handleContent(line)
	}
}

func (state *analyzer) openConflict() {
	switch state.state {
	case stateNormal:
		state.leftLines.Reset()
		state.rightLines.Reset()
		state.chainCounted = false
	case stateAfterConflict:
		// adjacent conflict: extend the buffered chain
		state.pendingBlankLines = nil
	}
	state.state = stateInConflictLeft
}

func (state *analyzer) handleSeparator(line string) {
	switch state.state {
	case stateInConflictLeft:
		state.state = stateInConflictRight
	case stateNormal, stateAfterConflict:
		state.handleContent(line)
	}
}

func (state *analyzer) handleEnd(line string) {
	switch state.state {
	case stateInConflictLeft, stateInConflictRight:
		state.state = stateAfterConflict
	case stateNormal, stateAfterConflict:
		state.handleContent(line)
	}
}

func (state *analyzer) handleContent(line string) {
	state.result.TotalLines++

	switch state.state {
	case stateInConflictLeft, stateInConflictRight:
		state.result.ConflictingLines++
		if !state.chainCounted {
			state.result.ConflictCount++
			state.chainCounted = true
		}
		if state.state == stateInConflictLeft {
			state.leftLines.WriteString(line)
			state.leftLines.WriteString(lineTerminatorConstant)
		} else {
			state.rightLines.WriteString(line)
			state.rightLines.WriteString(lineTerminatorConstant)
		}
		return
	case stateAfterConflict:
		state.flushConflict()
	}

	state.emitLine(line)
}

func (state *analyzer) flushConflict() {
	if state.chainCounted {
		state.emitLine(canonicalStartMarkerConstant)
		state.output.WriteString(state.leftLines.String())
		state.emitLine(canonicalSeparatorMarkerConstant)
		state.output.WriteString(state.rightLines.String())
		state.emitLine(canonicalEndMarkerConstant)
	}
	for _, blankLine := range state.pendingBlankLines {
		state.emitLine(blankLine)
	}

	state.pendingBlankLines = nil
	state.leftLines.Reset()
	state.rightLines.Reset()
	state.chainCounted = false
	state.state = stateNormal
}

func (state *analyzer) finish() {
	if state.state != stateNormal {
		state.flushConflict()
	}
}

func (state *analyzer) emitLine(line string) {
	state.output.WriteString(line)
	state.output.WriteString(lineTerminatorConstant)
}

func splitLines(text string) []string {
	if len(text) == 0 {
		return nil
	}
	lines := strings.Split(text, lineTerminatorConstant)
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for index := range lines {
		lines[index] = strings.TrimRight(lines[index], carriageReturnConstant)
	}
	return lines
}

func isBlank(line string) bool {
	return len(strings.TrimSpace(line)) == 0
}

func hasMarker(line string, marker string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), marker)
}
