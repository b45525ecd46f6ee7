// Package changecheck recomputes header/tail or full-file digests against
// a stored IndexedHash fingerprint and classifies the file's change state
// (spec.md §4.7).
package changecheck

import (
	"io"
	"os"

	"github.com/tobiaslane/tailindex/internal/debug"
	"github.com/tobiaslane/tailindex/internal/errors"
	"github.com/tobiaslane/tailindex/internal/lineindex"
)

// Status is the classification fileCheckFinished reports.
type Status int

const (
	Unchanged Status = iota
	DataAdded
	Truncated
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case DataAdded:
		return "DataAdded"
	default:
		return "Truncated"
	}
}

// Check classifies path against hash, using fast (header/tail digest) or
// full (whole-prefix digest) comparison as fastModeOn selects.
func Check(path string, hash lineindex.IndexedHash, fastModeOn bool) (Status, error) {
	info, err := os.Stat(path)
	if err != nil {
		debug.LogIndexing("%v", errors.NewChangeCheckError(path, err))
		return Truncated, nil
	}
	realSize := info.Size()

	if realSize == 0 || realSize < hash.Size {
		return Truncated, nil
	}

	file, err := os.Open(path)
	if err != nil {
		debug.LogIndexing("%v", errors.NewChangeCheckError(path, err))
		return Truncated, nil
	}
	defer file.Close()

	if fastModeOn {
		if hash.HeaderSize > 0 {
			header := make([]byte, hash.HeaderSize)
			if _, err := io.ReadFull(file, header); err != nil {
				return Truncated, nil
			}
			if lineindex.Digest(header) != hash.HeaderDigest {
				return Truncated, nil
			}
		}
		if hash.TailSize > 0 {
			tail := make([]byte, hash.TailSize)
			if _, err := file.ReadAt(tail, hash.TailOffset); err != nil {
				return Truncated, nil
			}
			if lineindex.Digest(tail) != hash.TailDigest {
				return Truncated, nil
			}
		}
	} else {
		prefix := make([]byte, hash.Size)
		if _, err := io.ReadFull(file, prefix); err != nil {
			return Truncated, nil
		}
		if lineindex.Digest(prefix) != hash.FullDigest {
			return Truncated, nil
		}
	}

	if realSize > hash.Size {
		return DataAdded, nil
	}
	return Unchanged, nil
}
