package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexingError(t *testing.T) {
	cause := errors.New("short read")
	err := NewIndexingError("parse_block", cause).WithBlock(4096).WithRecoverable(true)

	assert.Contains(t, err.Error(), "parse_block")
	assert.Contains(t, err.Error(), "4096")
	assert.True(t, err.IsRecoverable())
	assert.ErrorIs(t, err, cause)
}

func TestIndexingErrorNoBlock(t *testing.T) {
	err := NewIndexingError("read_block", errors.New("eof"))
	assert.NotContains(t, err.Error(), "block offset")
}

func TestEncodingError(t *testing.T) {
	cause := errors.New("unsupported BOM")
	err := NewEncodingError("detect", cause)
	assert.Contains(t, err.Error(), "detect")
	require.ErrorIs(t, err, cause)
}

func TestFileAccessError(t *testing.T) {
	err := NewFileAccessError("open", "/tmp/x.log", errors.New("permission denied"))
	assert.Contains(t, err.Error(), "/tmp/x.log")
	assert.Contains(t, err.Error(), "open")
}

func TestChangeCheckError(t *testing.T) {
	err := NewChangeCheckError("/tmp/x.log", errors.New("stat failed"))
	assert.Contains(t, err.Error(), "/tmp/x.log")
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("indexReadBufferSizeMb", "-1", errors.New("must be positive"))
	assert.Contains(t, err.Error(), "indexReadBufferSizeMb")
	assert.Contains(t, err.Error(), "-1")
}

func TestMultiError(t *testing.T) {
	err := NewMultiError([]error{nil, errors.New("a"), nil, errors.New("b")})
	assert.Len(t, err.Errors, 2)
	assert.Contains(t, err.Error(), "2 errors")

	single := NewMultiError([]error{errors.New("only")})
	assert.Equal(t, "only", single.Error())

	empty := NewMultiError(nil)
	assert.Equal(t, "no errors", empty.Error())
}
