package textcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEncodingBOM(t *testing.T) {
	cases := []struct {
		name  string
		bytes []byte
		want  Codec
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, UTF8},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0}, UTF16LE},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'h'}, UTF16BE},
		{"utf32le bom", []byte{0xFF, 0xFE, 0x00, 0x00, 'h', 0, 0, 0}, UTF32LE},
		{"utf32be bom", []byte{0x00, 0x00, 0xFE, 0xFF, 0, 0, 0, 'h'}, UTF32BE},
		{"empty", nil, UTF8},
	}

	d := NewDetector()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, d.DetectEncoding(c.bytes))
		})
	}
}

func TestDetectEncodingBOMConfirmedByDecode(t *testing.T) {
	d := NewDetector()

	// A UTF-16LE BOM followed by several genuine code units: DetectEncoding
	// must still report UTF16LE once the BOM-confirming decode succeeds.
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0, '!', 0}
	assert.Equal(t, UTF16LE, d.DetectEncoding(data))
}

func TestDetectEncodingHeuristicNoBOM(t *testing.T) {
	d := NewDetector()

	ascii := []byte("the quick brown fox jumps over")
	assert.Equal(t, UTF8, d.DetectEncoding(ascii))

	// "ABCDEFGH" as UTF-16LE with no BOM: low byte set, high byte zero.
	le := []byte{'A', 0, 'B', 0, 'C', 0, 'D', 0, 'E', 0, 'F', 0, 'G', 0, 'H', 0}
	assert.Equal(t, UTF16LE, d.DetectEncoding(le))

	be := []byte{0, 'A', 0, 'B', 0, 'C', 0, 'D', 0, 'E', 0, 'F', 0, 'G', 0, 'H'}
	assert.Equal(t, UTF16BE, d.DetectEncoding(be))
}

func TestParamsForCodec(t *testing.T) {
	p := ParamsForCodec(UTF8)
	assert.Equal(t, 1, p.LineFeedWidth)
	assert.Equal(t, 0, p.LineFeedIndex)

	p = ParamsForCodec(UTF16LE)
	assert.Equal(t, 2, p.LineFeedWidth)
	assert.Equal(t, 0, p.LineFeedIndex)

	p = ParamsForCodec(UTF16BE)
	assert.Equal(t, 2, p.LineFeedWidth)
	assert.Equal(t, 1, p.LineFeedIndex)

	p = ParamsForCodec(UTF32LE)
	assert.Equal(t, 4, p.LineFeedWidth)
	assert.Equal(t, 0, p.LineFeedIndex)

	p = ParamsForCodec(UTF32BE)
	assert.Equal(t, 4, p.LineFeedWidth)
	assert.Equal(t, 3, p.LineFeedIndex)
}

func TestCodecEncodingNilForUTF8(t *testing.T) {
	assert.Nil(t, UTF8.Encoding())
	assert.NotNil(t, UTF16LE.Encoding())
	assert.NotNil(t, UTF32BE.Encoding())
}

func TestCodecString(t *testing.T) {
	assert.Equal(t, "UTF-8", UTF8.String())
	assert.Equal(t, "UTF-16LE", UTF16LE.String())
	assert.Equal(t, "UTF-32BE", UTF32BE.String())
}
