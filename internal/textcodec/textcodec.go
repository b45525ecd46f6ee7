// Package textcodec classifies a byte block into a text codec and derives
// the numeric parameters the line scanner needs to find genuine line-feed
// delimiters under that codec.
package textcodec

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// Codec identifies a text encoding by code-unit width and byte order.
type Codec int

const (
	UTF8 Codec = iota
	UTF16LE
	UTF16BE
	UTF32LE
	UTF32BE
)

func (c Codec) String() string {
	switch c {
	case UTF8:
		return "UTF-8"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	case UTF32LE:
		return "UTF-32LE"
	case UTF32BE:
		return "UTF-32BE"
	default:
		return "unknown"
	}
}

// Encoding returns the canonical golang.org/x/text encoding object backing
// this codec, or nil for UTF8 (which needs no byte-order transformation).
func (c Codec) Encoding() encoding.Encoding {
	switch c {
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	default:
		return nil
	}
}

// EncodingParameters are the numeric descriptors the scanner needs to
// locate a genuine line-feed delimiter for a codec (spec.md §3).
type EncodingParameters struct {
	// LineFeedWidth is the byte width of one code unit: 1, 2 or 4.
	LineFeedWidth int
	// LineFeedIndex is the position of the LF byte within its code unit:
	// 0 (low byte first, little-endian) or LineFeedWidth-1 (big-endian).
	LineFeedIndex int
	// BeforeCrOffset steps back one whole code unit from a located LF
	// byte, landing on the byte that would hold a preceding CR.
	BeforeCrOffset int
}

// ParamsForCodec derives the EncodingParameters for a codec.
func ParamsForCodec(c Codec) EncodingParameters {
	switch c {
	case UTF16LE:
		return EncodingParameters{LineFeedWidth: 2, LineFeedIndex: 0, BeforeCrOffset: -2}
	case UTF16BE:
		return EncodingParameters{LineFeedWidth: 2, LineFeedIndex: 1, BeforeCrOffset: -2}
	case UTF32LE:
		return EncodingParameters{LineFeedWidth: 4, LineFeedIndex: 0, BeforeCrOffset: -4}
	case UTF32BE:
		return EncodingParameters{LineFeedWidth: 4, LineFeedIndex: 3, BeforeCrOffset: -4}
	default:
		return EncodingParameters{LineFeedWidth: 1, LineFeedIndex: 0, BeforeCrOffset: -1}
	}
}

// Detector classifies an arbitrary byte slab into a Codec. Implementations
// are injectable so tests can force specific codecs without real BOM bytes.
type Detector interface {
	DetectEncoding(sample []byte) Codec
}

// BOMDetector is the default Detector: BOM-aware, with a heuristic
// null-byte-parity fallback when no BOM is present, defaulting to UTF8
// when the sample looks like ordinary single-byte text.
type BOMDetector struct{}

// NewDetector returns the default BOM-aware detector.
func NewDetector() Detector { return BOMDetector{} }

var (
	bomUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	bomUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// sampleSize bounds the heuristic scan, mirroring a fixed-prefix magic
// number check rather than scanning the whole block.
const sampleSize = 512

func (BOMDetector) DetectEncoding(sample []byte) Codec {
	if len(sample) == 0 {
		return UTF8
	}

	// UTF-32 BOMs must be checked before UTF-16 BOMs: a UTF-32LE BOM is a
	// UTF-16LE BOM followed by two more zero bytes. x/text's BOMOverride
	// only recognizes UTF-8/UTF-16 BOMs, so UTF-32 stays a direct check.
	if bytes.HasPrefix(sample, bomUTF32LE) {
		return UTF32LE
	}
	if bytes.HasPrefix(sample, bomUTF32BE) {
		return UTF32BE
	}

	if codec, ok := bomCodec(sample); ok {
		return codec
	}

	return heuristicGuess(sample)
}

// bomCodec checks for a UTF-8 or UTF-16 byte-order mark and decodes the
// sample through unicode.BOMOverride, falling back to the heuristic guess
// below only if that decode returns an error. x/text's UTF-8 and UTF-16
// decoders replace malformed input (an unpaired surrogate, an invalid UTF-8
// byte) with U+FFFD instead of failing, so a BOM followed by malformed code
// units is still reported as that BOM's codec.
func bomCodec(sample []byte) (Codec, bool) {
	var codec Codec
	switch {
	case bytes.HasPrefix(sample, bomUTF16BE):
		codec = UTF16BE
	case bytes.HasPrefix(sample, bomUTF16LE):
		codec = UTF16LE
	case bytes.HasPrefix(sample, bomUTF8):
		codec = UTF8
	default:
		return UTF8, false
	}

	probe := sample
	if codec != UTF8 {
		// Drop a trailing half code unit so a sample that simply got cut
		// off mid-block isn't mistaken for a malformed sequence.
		probe = sample[:len(sample)-len(sample)%2]
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if _, _, err := transform.Bytes(decoder, probe); err != nil {
		return UTF8, false
	}
	return codec, true
}

// heuristicGuess generalizes the binary detector's null-byte-ratio check:
// ordinary ASCII/UTF-8 text encoded as UTF-16 has a zero byte in every
// other position. No BOM means we have to guess the byte order from that
// parity instead of reading it directly.
func heuristicGuess(sample []byte) Codec {
	n := len(sample)
	if n > sampleSize {
		n = sampleSize
	}
	sample = sample[:n]

	if n < 4 {
		return UTF8
	}

	evenZero, oddZero := 0, 0
	pairs := n / 2
	for i := 0; i < pairs; i++ {
		if sample[2*i] == 0 {
			evenZero++
		}
		if sample[2*i+1] == 0 {
			oddZero++
		}
	}

	const threshold = 3 // at least 75% for pairs >= 4
	if pairs >= 4 {
		switch {
		case oddZero*4 >= pairs*threshold:
			// high byte (odd position) mostly zero => little-endian ASCII
			return UTF16LE
		case evenZero*4 >= pairs*threshold:
			return UTF16BE
		}
	}

	return UTF8
}

// Default is the codec assumed when the file cannot be opened at all
// (spec.md §6): Go has no locale codepage concept to fall back to, so
// UTF-8 plays that role.
func Default() Codec { return UTF8 }
