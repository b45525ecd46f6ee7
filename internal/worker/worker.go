// Package worker serializes the three externally-requested operations —
// full index, partial index, and change check — behind a single-owner
// state machine, exposing progress and terminal events (spec.md §4.8).
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/tobiaslane/tailindex/internal/changecheck"
	"github.com/tobiaslane/tailindex/internal/config"
	"github.com/tobiaslane/tailindex/internal/debug"
	"github.com/tobiaslane/tailindex/internal/lineindex"
	"github.com/tobiaslane/tailindex/internal/pipeline"
	"github.com/tobiaslane/tailindex/internal/textcodec"
)

// State is one of the worker's lifecycle states.
type State int32

const (
	Idle State = iota
	Indexing
	Checking
	Destroyed
)

func (s State) String() string {
	switch s {
	case Indexing:
		return "Indexing"
	case Checking:
		return "Checking"
	case Destroyed:
		return "Destroyed"
	default:
		return "Idle"
	}
}

// Worker is the single-owner orchestrator of spec.md §4.8. At most one
// operation runs at a time; a new request blocks until the prior one
// completes.
type Worker struct {
	path     string
	cfg      *config.Config
	store    *lineindex.Store
	detector textcodec.Detector

	mu        sync.Mutex
	state     atomic.Int32
	interrupt atomic.Bool

	onProgress      func(percent int)
	onIndexFinished func(pipeline.Status)
	onCheckFinished func(changecheck.Status)
}

// New creates a Worker over path. cfg supplies the fast-modification-
// detection, tab stop, block size, and prefetch depth settings; detector
// resolves encodings when none is forced or previously stored.
func New(path string, cfg *config.Config, detector textcodec.Detector) *Worker {
	return &Worker{
		path:     path,
		cfg:      cfg,
		store:    lineindex.New(cfg.FastModificationDetection()),
		detector: detector,
	}
}

// Store returns the underlying IndexStore for read-only access by callers
// outside the worker (viewers, searchers).
func (w *Worker) Store() *lineindex.Store { return w.store }

// State reports the worker's current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// OnProgress registers the callback fired for indexingProgressed events.
func (w *Worker) OnProgress(fn func(percent int)) { w.onProgress = fn }

// OnIndexFinished registers the callback fired for indexingFinished events.
func (w *Worker) OnIndexFinished(fn func(pipeline.Status)) { w.onIndexFinished = fn }

// OnCheckFinished registers the callback fired for fileCheckFinished events.
func (w *Worker) OnCheckFinished(fn func(changecheck.Status)) { w.onCheckFinished = fn }

// RequestInterrupt asks the in-flight operation, if any, to stop early.
func (w *Worker) RequestInterrupt() { w.interrupt.Store(true) }

// Destroy requests interrupt and blocks until any in-flight operation has
// finished, then transitions to the terminal Destroyed state.
func (w *Worker) Destroy() {
	w.interrupt.Store(true)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Store(int32(Destroyed))
}

// IndexAll clears the store and indexes the file from offset 0 under
// forcedCodec (nil means let encoding detection run).
func (w *Worker) IndexAll(forcedCodec *textcodec.Codec) pipeline.Status {
	return w.runIndexing(func() (pipeline.Status, error) {
		mut, release := w.store.AcquireMutate()
		mut.Clear(w.cfg.FastModificationDetection())
		if forcedCodec != nil {
			mut.ForceEncoding(*forcedCodec)
		}
		release()

		opts := w.baseOptions()
		opts.ForcedCodec = forcedCodec
		opts.StartOffset = 0
		return pipeline.Run(w.path, w.store, opts)
	})
}

// IndexAdditionalLines appends to the existing index starting at its
// current indexed size, reusing the previously resolved codec.
func (w *Worker) IndexAdditionalLines() pipeline.Status {
	return w.runIndexing(func() (pipeline.Status, error) {
		r, release := w.store.AcquireRead()
		startOffset := r.IndexedSize()
		guess := r.EncodingGuess()
		forced, hasForced := r.ForcedEncoding()
		release()

		opts := w.baseOptions()
		opts.StartOffset = startOffset
		if hasForced {
			opts.ForcedCodec = &forced
		} else {
			opts.StoredGuess = &guess
		}
		return pipeline.Run(w.path, w.store, opts)
	})
}

// CheckFileChanges classifies the file's current state against the
// stored fingerprint. Interrupt is not observed here: the check is
// bounded by file size (spec.md §4.8).
func (w *Worker) CheckFileChanges() changecheck.Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == Destroyed {
		return changecheck.Truncated
	}

	w.state.Store(int32(Checking))
	defer w.state.Store(int32(Idle))

	r, release := w.store.AcquireRead()
	hash := r.Hash()
	release()

	var status changecheck.Status
	withPanicRecovery(func() {
		var err error
		status, err = changecheck.Check(w.path, hash, w.cfg.FastModificationDetection())
		if err != nil {
			debug.LogWorker("check_file_changes failed: %v", err)
			status = changecheck.Truncated
		}
	})

	if w.onCheckFinished != nil {
		w.onCheckFinished(status)
	}
	return status
}

func (w *Worker) baseOptions() pipeline.Options {
	blockSize := w.cfg.IndexingBlockSize()
	prefetchBlocks := int(int64(w.cfg.IndexReadBufferSizeMB())*(1<<20) / blockSize)
	if prefetchBlocks < 1 {
		prefetchBlocks = 1
	}

	w.interrupt.Store(false)

	return pipeline.Options{
		BlockSize:      blockSize,
		PrefetchBlocks: prefetchBlocks,
		TabStop:        w.cfg.TabStop(),
		Detector:       w.detector,
		Interrupt:      &w.interrupt,
		FastModeOn:     w.cfg.FastModificationDetection(),
		OnProgress:     w.onProgress,
	}
}

// runIndexing serializes one indexing operation under w.mu, recovers any
// panic raised while it runs (spec.md §7 item 5's "unexpected exception"
// path), and reports the terminal event exactly once.
func (w *Worker) runIndexing(fn func() (pipeline.Status, error)) pipeline.Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == Destroyed {
		return pipeline.Interrupted
	}

	w.state.Store(int32(Indexing))
	defer w.state.Store(int32(Idle))

	var status pipeline.Status
	var runErr error
	panicked := !withPanicRecovery(func() {
		status, runErr = fn()
	})

	if panicked {
		debug.LogWorker("unexpected panic during indexing, clearing store")
		mut, release := w.store.AcquireMutate()
		mut.Clear(w.cfg.FastModificationDetection())
		release()
		status = pipeline.Interrupted
	} else if runErr != nil {
		debug.LogWorker("indexing failed: %v", runErr)
		mut, release := w.store.AcquireMutate()
		mut.Clear(w.cfg.FastModificationDetection())
		release()
	}

	if w.onIndexFinished != nil {
		w.onIndexFinished(status)
	}
	return status
}

// withPanicRecovery runs fn on a conc.WaitGroup so a panic inside fn is
// caught and reported instead of crashing the process, standing in for
// the original's try/catch around IndexOperation::run(). It returns false
// if fn panicked.
func withPanicRecovery(fn func()) (ok bool) {
	wg := conc.NewWaitGroup()
	wg.Go(fn)

	defer func() {
		if r := recover(); r != nil {
			debug.LogWorker("recovered panic: %v", r)
			ok = false
		}
	}()
	wg.Wait()
	return true
}
