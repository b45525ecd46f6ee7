// Package config loads the indexing engine's tunables from an optional
// .tailindex.kdl file, falling back to defaults when the file is absent.
// It exposes exactly the Configuration interface spec.md §6 names, plus
// the two constants spec.md §6 fixes at compile time (exposed here as
// overridable defaults for testing).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/tobiaslane/tailindex/internal/errors"
)

// Default constants per spec.md §6.
const (
	DefaultIndexingBlockSize  = 1 << 20 // 1 MiB
	DefaultTabStop            = 8
	DefaultIndexReadBufferMB  = 5
	defaultFastModDetection   = true
)

// Config holds the engine's runtime tunables.
type Config struct {
	fastModificationDetection bool
	indexReadBufferSizeMB     int
	tabStop                   int
	indexingBlockSize         int64
}

// Default returns the configuration used when no .tailindex.kdl is present.
func Default() *Config {
	return &Config{
		fastModificationDetection: defaultFastModDetection,
		indexReadBufferSizeMB:     DefaultIndexReadBufferMB,
		tabStop:                   DefaultTabStop,
		indexingBlockSize:         DefaultIndexingBlockSize,
	}
}

// FastModificationDetection reports whether ChangeChecker should only
// digest header/tail slabs instead of the full file.
func (c *Config) FastModificationDetection() bool { return c.fastModificationDetection }

// IndexReadBufferSizeMB bounds the pipeline's prefetch depth, in blocks.
func (c *Config) IndexReadBufferSizeMB() int { return c.indexReadBufferSizeMB }

// TabStop is the column multiple tabs expand to.
func (c *Config) TabStop() int { return c.tabStop }

// IndexingBlockSize is the unit of IO, parsing and header/tail hashing.
func (c *Config) IndexingBlockSize() int64 { return c.indexingBlockSize }

// Load reads .tailindex.kdl from projectRoot. A missing file is not an
// error: it returns the default configuration, mirroring the teacher's
// LoadKDL returning (nil, nil) on a missing file.
func Load(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".tailindex.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return Default(), nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("read .tailindex.kdl: %w", err)
	}

	return parseKDL(string(content))
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, errors.NewConfigError("document", ".tailindex.kdl", err)
	}

	for _, n := range doc.Nodes {
		if nodeName(n) != "index" {
			continue
		}
		for _, cn := range n.Children {
			switch nodeName(cn) {
			case "fast_modification_detection":
				if b, ok := firstBoolArg(cn); ok {
					cfg.fastModificationDetection = b
				}
			case "index_read_buffer_size_mb":
				if v, ok := firstIntArg(cn); ok {
					cfg.indexReadBufferSizeMB = v
				}
			case "tab_stop":
				if v, ok := firstIntArg(cn); ok {
					cfg.tabStop = v
				}
			case "indexing_block_size":
				if v, ok := firstIntArg(cn); ok {
					cfg.indexingBlockSize = int64(v)
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
