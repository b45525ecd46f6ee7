package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tobiaslane/tailindex/internal/changecheck"
	"github.com/tobiaslane/tailindex/internal/config"
	"github.com/tobiaslane/tailindex/internal/debug"
	"github.com/tobiaslane/tailindex/internal/errors"
	"github.com/tobiaslane/tailindex/internal/lineindex"
	"github.com/tobiaslane/tailindex/internal/pipeline"
	"github.com/tobiaslane/tailindex/internal/textcodec"
	"github.com/tobiaslane/tailindex/internal/version"
	"github.com/tobiaslane/tailindex/internal/worker"
)

// fingerprint is the on-disk JSON form of a lineindex.IndexedHash, saved by
// "index --fingerprint" and consumed by "check".
type fingerprint struct {
	Size            int64  `json:"size"`
	FullDigest      uint64 `json:"full_digest"`
	FullDigestValid bool   `json:"full_digest_valid"`
	HeaderDigest    uint64 `json:"header_digest"`
	HeaderSize      int64  `json:"header_size"`
	TailDigest      uint64 `json:"tail_digest"`
	TailOffset      int64  `json:"tail_offset"`
	TailSize        int64  `json:"tail_size"`
	FastMode        bool   `json:"fast_mode"`
}

func fingerprintFrom(hash lineindex.IndexedHash, fastMode bool) fingerprint {
	return fingerprint{
		Size:            hash.Size,
		FullDigest:      hash.FullDigest,
		FullDigestValid: hash.FullDigestValid,
		HeaderDigest:    hash.HeaderDigest,
		HeaderSize:      hash.HeaderSize,
		TailDigest:      hash.TailDigest,
		TailOffset:      hash.TailOffset,
		TailSize:        hash.TailSize,
		FastMode:        fastMode,
	}
}

func (f fingerprint) toHash() lineindex.IndexedHash {
	return lineindex.IndexedHash{
		Size:            f.Size,
		FullDigest:      f.FullDigest,
		FullDigestValid: f.FullDigestValid,
		HeaderDigest:    f.HeaderDigest,
		HeaderSize:      f.HeaderSize,
		TailDigest:      f.TailDigest,
		TailOffset:      f.TailOffset,
		TailSize:        f.TailSize,
	}
}

func loadConfig(path string) (*config.Config, error) {
	root := filepath.Dir(path)
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", root, err)
	}
	return cfg, nil
}

func parseForcedCodec(name string) (*textcodec.Codec, error) {
	if name == "" {
		return nil, nil
	}
	var c textcodec.Codec
	switch strings.ToLower(name) {
	case "utf8", "utf-8":
		c = textcodec.UTF8
	case "utf16le", "utf-16le":
		c = textcodec.UTF16LE
	case "utf16be", "utf-16be":
		c = textcodec.UTF16BE
	case "utf32le", "utf-32le":
		c = textcodec.UTF32LE
	case "utf32be", "utf-32be":
		c = textcodec.UTF32BE
	default:
		return nil, errors.NewEncodingError("parse_forced_codec",
			fmt.Errorf("unknown encoding %q (want utf8, utf16le, utf16be, utf32le, utf32be)", name))
	}
	return &c, nil
}

func indexCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: tailindex index <file>", 1)
	}
	path := c.Args().First()

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	forced, err := parseForcedCodec(c.String("encoding"))
	if err != nil {
		return err
	}

	w := worker.New(path, cfg, textcodec.NewDetector())
	if c.Bool("verbose") {
		w.OnProgress(func(percent int) {
			fmt.Fprintf(os.Stderr, "indexing %s: %d%%\n", path, percent)
		})
	}

	status := w.IndexAll(forced)
	if status == pipeline.Interrupted {
		return cli.Exit("indexing interrupted", 130)
	}

	r, release := w.Store().AcquireRead()
	defer release()

	fmt.Printf("file:        %s\n", path)
	fmt.Printf("lines:       %d\n", r.NbLines())
	fmt.Printf("max length:  %d\n", r.MaxLength())
	fmt.Printf("size:        %d bytes\n", r.IndexedSize())
	fmt.Printf("encoding:    %s\n", r.EncodingGuess())
	fmt.Printf("final LF:    %t\n", !r.FakeFinalLF())

	if out := c.String("fingerprint"); out != "" {
		fp := fingerprintFrom(r.Hash(), cfg.FastModificationDetection())
		data, err := json.MarshalIndent(fp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fingerprint: %w", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write fingerprint: %w", err)
		}
		fmt.Printf("fingerprint: %s\n", out)
	}

	return nil
}

func checkCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: tailindex check <file> <fingerprint.json>", 1)
	}
	path := c.Args().Get(0)
	fingerprintPath := c.Args().Get(1)

	data, err := os.ReadFile(fingerprintPath)
	if err != nil {
		return fmt.Errorf("read fingerprint: %w", err)
	}
	var fp fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return fmt.Errorf("parse fingerprint: %w", err)
	}

	status, err := changecheck.Check(path, fp.toHash(), fp.FastMode)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	fmt.Println(status)

	switch status {
	case changecheck.Unchanged:
		return nil
	case changecheck.DataAdded:
		return cli.Exit("", 1)
	default:
		return cli.Exit("", 2)
	}
}

func main() {
	debug.SetOutput(os.Stderr)

	app := &cli.App{
		Name:    "tailindex",
		Usage:   "line-offset indexing and change detection for large log files",
		Version: version.Info(),
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "index a file, printing line count, max display width, and encoding",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "encoding",
						Usage: "force a codec instead of auto-detecting (utf8, utf16le, utf16be, utf32le, utf32be)",
					},
					&cli.StringFlag{
						Name:  "fingerprint",
						Usage: "write the resulting hash fingerprint to this JSON file",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "print progress to stderr while indexing",
					},
				},
				Action: indexCommand,
			},
			{
				Name:   "check",
				Usage:  "classify a file's change state against a saved fingerprint",
				Action: checkCommand,
			},
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		if ec, ok := err.(cli.ExitCoder); ok {
			if msg := ec.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "tailindex: %s\n", msg)
			}
			os.Exit(ec.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "tailindex: %v\n", err)
		os.Exit(1)
	}
}
