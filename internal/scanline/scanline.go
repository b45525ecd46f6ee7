// Package scanline locates line-feed delimiters under a given text codec,
// expands tabs to compute displayed line width, and parses a single block
// of file bytes into line-start offsets (spec.md §4.1-4.3).
package scanline

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tobiaslane/tailindex/internal/errors"
	"github.com/tobiaslane/tailindex/internal/textcodec"
)

// NotFound is returned by FindDelimiter when no genuine delimiter exists
// in the given slice.
const NotFound = -1

// MaxLineLength is the displayed-column cap a single line's expanded
// length cannot exceed (spec.md §4.3 edge case 3).
const MaxLineLength = math.MaxInt32

const lineFeedByte = '\n'
const tabByte = '\t'

// FindDelimiter returns the index within data of the next genuine
// delimiterByte occurrence under params, or NotFound.
func FindDelimiter(params textcodec.EncodingParameters, data []byte, delimiterByte byte) int {
	if params.LineFeedWidth == 1 {
		return bytes.IndexByte(data, delimiterByte)
	}
	return findMultiByteDelimiter(params, data, delimiterByte)
}

// findMultiByteDelimiter validates that the width-1 neighboring bytes of a
// candidate occurrence are all zero, which rules out an LF byte that
// happens to land inside a non-LF code unit (spec.md §4.1).
func findMultiByteDelimiter(params textcodec.EncodingParameters, data []byte, delimiterByte byte) int {
	width := params.LineFeedWidth
	idx := params.LineFeedIndex
	searchFrom := 0

	for searchFrom < len(data) {
		rel := bytes.IndexByte(data[searchFrom:], delimiterByte)
		if rel < 0 {
			return NotFound
		}
		candidate := searchFrom + rel
		if isGenuineDelimiter(data, candidate, width, idx) {
			return candidate
		}
		searchFrom = candidate + 1
	}
	return NotFound
}

func isGenuineDelimiter(data []byte, candidate, width, lineFeedIndex int) bool {
	if lineFeedIndex == 0 {
		for i := 1; i < width; i++ {
			pos := candidate + i
			if pos >= len(data) || data[pos] != 0 {
				return false
			}
		}
		return true
	}
	for i := 1; i < width; i++ {
		pos := candidate - i
		if pos < 0 || data[pos] != 0 {
			return false
		}
	}
	return true
}

// ExpandTabs walks the tab characters within block[segmentStart:segmentEnd]
// and returns the updated additional-spaces count after expanding each to
// the next multiple of tabStop (spec.md §4.2).
func ExpandTabs(block []byte, segmentStart, segmentEnd int, params textcodec.EncodingParameters, additionalSpaces, tabStop int) int {
	width := params.LineFeedWidth
	pos := segmentStart

	for pos < segmentEnd {
		rel := FindDelimiter(params, block[pos:segmentEnd], tabByte)
		if rel < 0 {
			break
		}
		t := pos + rel
		column := (t-segmentStart)/width + additionalSpaces
		additionalSpaces += tabStop - (column % tabStop) - 1
		pos = t + width
	}
	return additionalSpaces
}

// IndexingState is the per-run, not-shared parsing cursor spec.md §3
// describes: current byte position, last confirmed line end, carried tab
// state, running max width, and the codec/encoding decision for the run.
type IndexingState struct {
	Pos              int64
	End              int64
	AdditionalSpaces int
	MaxLength        int64
	Codec            textcodec.Codec
	Params           textcodec.EncodingParameters
	EncodingGuess    textcodec.Codec
	FileSize         int64
}

// ParseBlock parses the block [blockBeginning, blockBeginning+len(block))
// against state, returning the absolute offsets of line starts found
// entirely within this block. overflow is set once a line's expanded
// length would exceed MaxLineLength; the caller must abort the run.
func ParseBlock(block []byte, blockBeginning int64, state *IndexingState, tabStop int) (positions []int64, overflow bool, err error) {
	width := int64(state.Params.LineFeedWidth)
	blockLen := int64(len(block))

	for {
		posWithinBlock := state.Pos - blockBeginning
		if posWithinBlock < 0 {
			posWithinBlock = 0
		}

		if posWithinBlock > blockLen {
			return positions, false, errors.NewIndexingError("parse_block",
				fmt.Errorf("parse cursor %d exceeds block bound %d", state.Pos, blockBeginning+blockLen)).
				WithBlock(blockBeginning)
		}
		if posWithinBlock == blockLen {
			break
		}

		idx := FindDelimiter(state.Params, block[posWithinBlock:], lineFeedByte)
		if idx < 0 {
			// End of block mid-line: additional_spaces carries the tab
			// expansion seen so far, but state.Pos stays anchored at the
			// line's real start so the eventual length calculation spans
			// every block the line crossed.
			state.AdditionalSpaces = ExpandTabs(block, int(posWithinBlock), len(block), state.Params, state.AdditionalSpaces, tabStop)
			break
		}

		lfPosWithinBlock := posWithinBlock + int64(idx)
		state.AdditionalSpaces = ExpandTabs(block, int(posWithinBlock), int(lfPosWithinBlock), state.Params, state.AdditionalSpaces, tabStop)

		lineStart := state.Pos
		lfAbsolute := blockBeginning + lfPosWithinBlock
		// lfAbsolute is the offset of the genuine LF byte, which for a
		// big-endian codec sits at the last byte of its code unit
		// (LineFeedIndex == width-1), not at the code unit's own start.
		// Step back to the code unit boundary before deriving the next
		// line's start and this line's length, or BE offsets land mid-unit.
		codeUnitStart := lfAbsolute - int64(state.Params.LineFeedIndex)
		newLineStart := codeUnitStart + width

		length := (codeUnitStart-lineStart)/width + int64(state.AdditionalSpaces)
		if length > MaxLineLength {
			length = MaxLineLength
			overflow = true
		}
		if length > state.MaxLength {
			state.MaxLength = length
		}

		state.End = codeUnitStart
		state.Pos = newLineStart
		state.AdditionalSpaces = 0
		positions = append(positions, newLineStart)

		if overflow {
			return positions, true, nil
		}
	}

	return positions, overflow, nil
}
