// Package pipeline runs the three-stage indexing dataflow of spec.md
// §4.5: an async block reader, a bounded prefetch buffer, and a strictly
// serial parser that feeds scanline.ParseBlock results into a
// lineindex.Store.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tobiaslane/tailindex/internal/debug"
	"github.com/tobiaslane/tailindex/internal/errors"
	"github.com/tobiaslane/tailindex/internal/lineindex"
	"github.com/tobiaslane/tailindex/internal/scanline"
	"github.com/tobiaslane/tailindex/internal/textcodec"
)

// Status is the terminal classification of a pipeline run (spec.md §6's
// indexingFinished event).
type Status int

const (
	Successful Status = iota
	Interrupted
)

func (s Status) String() string {
	if s == Interrupted {
		return "Interrupted"
	}
	return "Successful"
}

// block is one unit of IO, parsing and hashing.
type block struct {
	beginning int64
	data      []byte
}

// busyWaitInterval is the reader's backoff when the prefetch buffer is
// full, mirroring spec.md §5's "sleep 1 ms and retry".
const busyWaitInterval = time.Millisecond

// Options configures one pipeline run.
type Options struct {
	BlockSize      int64
	PrefetchBlocks int
	TabStop        int
	Detector       textcodec.Detector

	// ForcedCodec, if non-nil, always wins when choosing the effective
	// codec (spec.md §4.4).
	ForcedCodec *textcodec.Codec
	// StoredGuess is the previously published encodingGuess, consulted
	// only when ForcedCodec is nil.
	StoredGuess *textcodec.Codec

	// StartOffset is where reading begins: 0 for a full index, the
	// store's current indexed size for a partial index.
	StartOffset int64

	Interrupt *atomic.Bool

	// FastModeOn is re-supplied to Store.Clear when a run aborts
	// (interrupt or fatal error), mirroring clear() rereading the
	// modification-detection flag from configuration.
	FastModeOn bool

	// OnProgress is called whenever the rounded percentage advances, plus
	// once at 0 and once at the terminal value.
	OnProgress func(percent int)
}

// Run executes one indexing pass over path, appending results into store.
// It does not clear the store before reading: callers clear before a full
// index and leave it untouched before a partial index. Run clears the store
// itself when the run is interrupted or a line exceeds MaxLineLength.
func Run(path string, store *lineindex.Store, opts Options) (Status, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Open/stat failure degrades to an empty index at locale-default
		// encoding with a terminal 100% progress event (spec.md §6).
		debug.LogIndexing("%v", errors.NewFileAccessError("stat", path, err))
		emit(opts.OnProgress, 0)
		mut, release := store.AcquireMutate()
		mut.SetEncodingGuess(textcodec.Default())
		mut.SetProgress(100)
		release()
		emit(opts.OnProgress, 100)
		return Successful, nil
	}
	fileSize := info.Size()

	emit(opts.OnProgress, 0)

	if fileSize == 0 {
		mut, release := store.AcquireMutate()
		mut.SetEncodingGuess(textcodec.Default())
		mut.SetProgress(100)
		release()
		emit(opts.OnProgress, 100)
		return Successful, nil
	}

	file, err := os.Open(path)
	if err != nil {
		debug.LogIndexing("%v", errors.NewFileAccessError("open", path, err))
		mut, release := store.AcquireMutate()
		mut.SetEncodingGuess(textcodec.Default())
		mut.SetProgress(100)
		release()
		emit(opts.OnProgress, 100)
		return Successful, nil
	}
	defer file.Close()

	blocks := make(chan block, opts.PrefetchBlocks)
	var g errgroup.Group
	g.Go(func() error {
		return readBlocks(file, opts.StartOffset, fileSize, opts.BlockSize, opts.Interrupt, blocks)
	})

	state := &scanline.IndexingState{Pos: opts.StartOffset, FileSize: fileSize}
	codecResolved := false

	lastPercent := -1
	interrupted := false

	for b := range blocks {
		if !codecResolved && len(b.data) > 0 {
			codec := resolveCodec(opts.ForcedCodec, opts.StoredGuess, opts.Detector, b.data)
			state.Codec = codec
			state.Params = textcodec.ParamsForCodec(codec)
			codecResolved = true
		}

		positions, overflow, perr := scanline.ParseBlock(b.data, b.beginning, state, opts.TabStop)
		if perr != nil {
			debug.LogIndexing("parse_block failed at offset %d: %v", b.beginning, perr)
			continue
		}

		mut, release := store.AcquireMutate()
		mut.AddAll(b.data, state.MaxLength, positions, state.Codec)
		percent := clampPercent(state.Pos, fileSize)
		mut.SetProgress(percent)
		release()

		if percent != lastPercent {
			lastPercent = percent
			emit(opts.OnProgress, percent)
		}

		if overflow {
			_ = g.Wait()
			clearOnAbort(store, opts)
			return Successful, errors.NewIndexingError("parse_block", fmt.Errorf("line length exceeded maximum")).WithBlock(b.beginning).WithRecoverable(false)
		}

		if opts.Interrupt != nil && opts.Interrupt.Load() {
			interrupted = true
		}
	}

	if err := g.Wait(); err != nil {
		debug.LogIndexing("block reader stopped: %v", err)
	}

	if opts.Interrupt != nil && opts.Interrupt.Load() {
		interrupted = true
	}

	if interrupted {
		clearOnAbort(store, opts)
		emit(opts.OnProgress, 100)
		return Interrupted, nil
	}

	finalize(file, store, state, fileSize, opts)
	emit(opts.OnProgress, 100)
	return Successful, nil
}

func clearOnAbort(store *lineindex.Store, opts Options) {
	mut, release := store.AcquireMutate()
	mut.Clear(opts.FastModeOn)
	release()
}

// readBlocks is the dedicated IO-thread loop: sequential fixed-size reads,
// closing out on exhaustion or interrupt, and a busy-wait retry on a full
// prefetch buffer instead of a blocking channel send.
func readBlocks(file *os.File, startOffset, fileSize, blockSize int64, interrupt *atomic.Bool, out chan<- block) error {
	defer close(out)

	if _, err := file.Seek(startOffset, io.SeekStart); err != nil {
		return err
	}

	pos := startOffset
	buf := make([]byte, blockSize)

	for pos < fileSize {
		if interrupt != nil && interrupt.Load() {
			return nil
		}

		want := blockSize
		if remaining := fileSize - pos; remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(file, buf[:want])
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			send(block{beginning: pos, data: data}, out)
			pos += int64(n)
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}
		if n == 0 {
			break
		}
	}
	return nil
}

func send(b block, out chan<- block) {
	for {
		select {
		case out <- b:
			return
		default:
			time.Sleep(busyWaitInterval)
		}
	}
}

func resolveCodec(forced, stored *textcodec.Codec, detector textcodec.Detector, sample []byte) textcodec.Codec {
	if forced != nil {
		return *forced
	}
	if stored != nil {
		return *stored
	}
	if detector == nil {
		detector = textcodec.NewDetector()
	}
	return detector.DetectEncoding(sample)
}

func clampPercent(pos, fileSize int64) int {
	if fileSize <= 0 {
		return 100
	}
	p := pos * 100 / fileSize
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return int(p)
}

func emit(fn func(int), percent int) {
	if fn != nil {
		fn(percent)
	}
}

// finalize performs the post-parse steps of spec.md §4.5: fake-final-LF
// insertion for a file not ending in LF, and header/tail re-hashing. The
// file handle is safe to reuse here because the IO goroutine has already
// joined.
func finalize(file *os.File, store *lineindex.Store, state *scanline.IndexingState, fileSize int64, opts Options) {
	width := int64(1)
	if state.Params.LineFeedWidth > 0 {
		width = int64(state.Params.LineFeedWidth)
	}

	if state.Pos < fileSize {
		finalLength := (fileSize-state.Pos)/width + int64(state.AdditionalSpaces)
		mut, release := store.AcquireMutate()
		mut.AddAll(nil, finalLength, []int64{fileSize + 1}, state.Codec)
		mut.SetFakeFinalLF(true)
		release()
	}

	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = fileSize
	}

	header := make([]byte, minInt64(blockSize, fileSize))
	if _, err := file.ReadAt(header, 0); err != nil && err != io.EOF {
		debug.LogIndexing("header rehash failed: %v", err)
		return
	}
	headerDigest := lineindex.Digest(header)

	var tailDigest uint64
	var tailOffset int64
	var tailSize int64
	if fileSize <= blockSize {
		tailDigest = headerDigest
		tailOffset = 0
		tailSize = int64(len(header))
	} else {
		tailOffset = fileSize - blockSize
		tail := make([]byte, blockSize)
		if _, err := file.ReadAt(tail, tailOffset); err != nil && err != io.EOF {
			debug.LogIndexing("tail rehash failed: %v", err)
			return
		}
		tailDigest = lineindex.Digest(tail)
		tailSize = blockSize
	}

	mut, release := store.AcquireMutate()
	mut.SetHeaderHash(headerDigest, int64(len(header)))
	mut.SetTailHash(tailDigest, tailOffset, tailSize)
	release()
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
