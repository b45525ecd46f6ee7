package changecheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiaslane/tailindex/internal/lineindex"
)

func writeTemp(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fastHashFor(content string, headerSize int64) lineindex.IndexedHash {
	data := []byte(content)
	header := data
	if int64(len(header)) > headerSize {
		header = header[:headerSize]
	}
	return lineindex.IndexedHash{
		Size:         int64(len(data)),
		HeaderDigest: lineindex.Digest(header),
		HeaderSize:   int64(len(header)),
		TailDigest:   lineindex.Digest(header),
		TailOffset:   0,
		TailSize:     int64(len(header)),
	}
}

func fullHashFor(content string) lineindex.IndexedHash {
	data := []byte(content)
	return lineindex.IndexedHash{
		Size:       int64(len(data)),
		FullDigest: lineindex.Digest(data),
	}
}

func TestCheckUnchangedFastMode(t *testing.T) {
	content := "a\nbb\nccc\n"
	path := writeTemp(t, content)
	hash := fastHashFor(content, int64(len(content)))

	status, err := Check(path, hash, true)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, status)
}

func TestCheckUnchangedFullMode(t *testing.T) {
	content := "a\nbb\nccc\n"
	path := writeTemp(t, content)
	hash := fullHashFor(content)

	status, err := Check(path, hash, false)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, status)
}

func TestCheckDataAdded(t *testing.T) {
	content := "a\nbb\nccc\n"
	path := writeTemp(t, content)
	hash := fullHashFor(content)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	status, err := Check(path, hash, false)
	require.NoError(t, err)
	assert.Equal(t, DataAdded, status)
}

func TestCheckTruncated(t *testing.T) {
	content := "0123456789"
	path := writeTemp(t, content)
	hash := fullHashFor(content)

	require.NoError(t, os.Truncate(path, 5))

	status, err := Check(path, hash, false)
	require.NoError(t, err)
	assert.Equal(t, Truncated, status)
}

func TestCheckTruncatedToEmpty(t *testing.T) {
	content := "0123456789"
	path := writeTemp(t, content)
	hash := fullHashFor(content)

	require.NoError(t, os.Truncate(path, 0))

	status, err := Check(path, hash, false)
	require.NoError(t, err)
	assert.Equal(t, Truncated, status)
}

func TestCheckRewriteSameSizeDifferentContentFastMode(t *testing.T) {
	content := "aaaaaaaaaa"
	path := writeTemp(t, content)
	hash := fastHashFor(content, int64(len(content)))

	require.NoError(t, os.WriteFile(path, []byte("bbbbbbbbbb"), 0o644))

	status, err := Check(path, hash, true)
	require.NoError(t, err)
	assert.Equal(t, Truncated, status)
}

func TestCheckMissingFile(t *testing.T) {
	hash := fullHashFor("irrelevant")
	status, err := Check(filepath.Join(t.TempDir(), "gone.log"), hash, false)
	require.NoError(t, err)
	assert.Equal(t, Truncated, status)
}
