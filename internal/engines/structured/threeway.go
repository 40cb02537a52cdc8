package structured

import "strings"

const (
	conflictStartLineConstant     = "<<<<<<< left"
	conflictSeparatorLineConstant = "======="
	conflictEndLineConstant       = ">>>>>>> right"
	blockSeparatorConstant        = "\n\n"
	lineBreakConstant             = "\n"
)

// mergedBlock is one emitted declaration or conflict.
type mergedBlock struct {
	text        string
	conflicting bool
}

// mergeDeclarations merges the three declaration sequences key by key. Output order follows left,
// with right-only keys inserted after their nearest preceding right key.
func mergeDeclarations(base []declaration, left []declaration, right []declaration) []mergedBlock {
	baseTexts := indexDeclarations(base)
	leftTexts := indexDeclarations(left)
	rightTexts := indexDeclarations(right)

	order := mergeOrder(left, right)
	blocks := make([]mergedBlock, 0, len(order))
	for _, key := range order {
		baseText, inBase := baseTexts[key]
		leftText, inLeft := leftTexts[key]
		rightText, inRight := rightTexts[key]

		block, keep := resolve(baseText, inBase, leftText, inLeft, rightText, inRight)
		if keep {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func resolve(baseText string, inBase bool, leftText string, inLeft bool, rightText string, inRight bool) (mergedBlock, bool) {
	switch {
	case inLeft && inRight:
		switch {
		case leftText == rightText:
			return mergedBlock{text: leftText}, true
		case inBase && leftText == baseText:
			return mergedBlock{text: rightText}, true
		case inBase && rightText == baseText:
			return mergedBlock{text: leftText}, true
		default:
			return conflictBlock(leftText, rightText), true
		}
	case inLeft:
		switch {
		case !inBase:
			return mergedBlock{text: leftText}, true
		case leftText == baseText:
			return mergedBlock{}, false
		default:
			return conflictBlock(leftText, ""), true
		}
	case inRight:
		switch {
		case !inBase:
			return mergedBlock{text: rightText}, true
		case rightText == baseText:
			return mergedBlock{}, false
		default:
			return conflictBlock("", rightText), true
		}
	default:
		return mergedBlock{}, false
	}
}

func conflictBlock(leftText string, rightText string) mergedBlock {
	lines := []string{conflictStartLineConstant}
	if len(leftText) > 0 {
		lines = append(lines, leftText)
	}
	lines = append(lines, conflictSeparatorLineConstant)
	if len(rightText) > 0 {
		lines = append(lines, rightText)
	}
	lines = append(lines, conflictEndLineConstant)
	return mergedBlock{text: strings.Join(lines, lineBreakConstant), conflicting: true}
}

func mergeOrder(left []declaration, right []declaration) []string {
	order := make([]string, 0, len(left)+len(right))
	positions := make(map[string]int, len(left)+len(right))
	for _, item := range left {
		positions[item.key] = len(order)
		order = append(order, item.key)
	}

	insertAfter := -1
	for _, item := range right {
		if position, exists := positions[item.key]; exists {
			insertAfter = position
			continue
		}
		insertAt := insertAfter + 1
		order = append(order, "")
		copy(order[insertAt+1:], order[insertAt:])
		order[insertAt] = item.key
		for key, position := range positions {
			if position >= insertAt {
				positions[key] = position + 1
			}
		}
		positions[item.key] = insertAt
		insertAfter = insertAt
	}
	return order
}

func indexDeclarations(declarations []declaration) map[string]string {
	index := make(map[string]string, len(declarations))
	for _, item := range declarations {
		index[item.key] = item.text
	}
	return index
}

func renderBlocks(blocks []mergedBlock) string {
	if len(blocks) == 0 {
		return ""
	}
	texts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		texts = append(texts, block.text)
	}
	return strings.Join(texts, blockSeparatorConstant) + lineBreakConstant
}
