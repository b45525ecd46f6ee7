package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBinaryPath string

func TestMain(m *testing.M) {
	tempBinary := filepath.Join(os.TempDir(), "tailindex-test-"+fmt.Sprintf("%d", time.Now().UnixNano()))

	buildCmd := exec.Command("go", "build", "-o", tempBinary, ".")
	var buildOut bytes.Buffer
	buildCmd.Stdout = &buildOut
	buildCmd.Stderr = &buildOut

	if err := buildCmd.Run(); err != nil {
		fmt.Printf("failed to build tailindex for testing: %v\nbuild output: %s\n", err, buildOut.String())
		os.Exit(1)
	}

	testBinaryPath = tempBinary
	code := m.Run()
	os.Remove(testBinaryPath)
	os.Exit(code)
}

func writeSample(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	cmd := exec.Command(testBinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestIndexCommandPrintsSummary(t *testing.T) {
	path := writeSample(t, "a\nbb\nccc\n")

	stdout, stderr, err := run(t, "index", path)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "lines:       3")
	assert.Contains(t, stdout, "max length:  3")
}

func TestIndexCommandWritesFingerprint(t *testing.T) {
	path := writeSample(t, "a\nbb\nccc\n")
	fpPath := filepath.Join(filepath.Dir(path), "fp.json")

	_, stderr, err := run(t, "index", "--fingerprint", fpPath, path)
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(fpPath)
	require.NoError(t, err)

	var fp fingerprint
	require.NoError(t, json.Unmarshal(data, &fp))
	assert.EqualValues(t, len("a\nbb\nccc\n"), fp.Size)
}

func TestIndexCommandRejectsUnknownEncoding(t *testing.T) {
	path := writeSample(t, "a\n")

	_, _, err := run(t, "index", "--encoding", "latin1", path)
	assert.Error(t, err)
}

func TestCheckCommandUnchangedExitsZero(t *testing.T) {
	path := writeSample(t, "a\nbb\nccc\n")
	fpPath := filepath.Join(filepath.Dir(path), "fp.json")

	_, stderr, err := run(t, "index", "--fingerprint", fpPath, path)
	require.NoError(t, err, stderr)

	stdout, stderr, err := run(t, "check", path, fpPath)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Unchanged")
}

func TestCheckCommandDataAddedExitsOne(t *testing.T) {
	path := writeSample(t, "a\nbb\nccc\n")
	fpPath := filepath.Join(filepath.Dir(path), "fp.json")

	_, stderr, err := run(t, "index", "--fingerprint", fpPath, path)
	require.NoError(t, err, stderr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("dddd\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stdout, _, err := run(t, "check", path, fpPath)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, stdout, "DataAdded")
}

func TestCheckCommandTruncatedExitsTwo(t *testing.T) {
	path := writeSample(t, "0123456789")
	fpPath := filepath.Join(filepath.Dir(path), "fp.json")

	_, stderr, err := run(t, "index", "--fingerprint", fpPath, path)
	require.NoError(t, err, stderr)

	require.NoError(t, os.Truncate(path, 2))

	stdout, _, err := run(t, "check", path, fpPath)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Contains(t, stdout, "Truncated")
}

func TestCheckCommandMissingArgsFails(t *testing.T) {
	_, _, err := run(t, "check")
	assert.Error(t, err)
}
