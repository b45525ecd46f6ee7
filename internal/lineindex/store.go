// Package lineindex holds the IndexStore: the shared, mutation-serialized
// structure that accumulates line offsets, a rolling content hash, the
// maximum displayed line width, and the encoding decision for one indexed
// file (spec.md §3, §4.6).
package lineindex

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/tobiaslane/tailindex/internal/textcodec"
)

// segmentCapacity bounds each chunk of the position array. Entries never
// move once written, so a reader mid-scan is never invalidated by a
// concurrent append landing in a later segment.
const segmentCapacity = 4096

// positionArray is a growable, append-only, chunked sequence of line-start
// offsets (spec.md §3's "line offset array").
type positionArray struct {
	segments [][]int64
	count    int
}

func (p *positionArray) append(v int64) {
	seg := p.count / segmentCapacity
	for seg >= len(p.segments) {
		p.segments = append(p.segments, make([]int64, 0, segmentCapacity))
	}
	p.segments[seg] = append(p.segments[seg], v)
	p.count++
}

func (p *positionArray) get(i int) (int64, bool) {
	if i < 0 || i >= p.count {
		return 0, false
	}
	return p.segments[i/segmentCapacity][i%segmentCapacity], true
}

func (p *positionArray) len() int { return p.count }

func (p *positionArray) allocatedSize() int64 {
	return int64(len(p.segments)) * int64(segmentCapacity) * 8
}

// IndexedHash is the fingerprint record spec.md §3 defines: total size
// covered, a full-content digest (populated only outside fast mode), and
// header/tail digests used by fast modification detection.
type IndexedHash struct {
	Size int64

	FullDigest      uint64
	FullDigestValid bool

	HeaderDigest uint64
	HeaderSize   int64

	TailDigest uint64
	TailOffset int64
	TailSize   int64
}

// Store is the IndexStore of spec.md §4.6: a single-writer, many-reader
// structure reached exclusively through ReadAccessor/MutateAccessor.
type Store struct {
	mu sync.RWMutex

	positions    positionArray
	fakeFinalLF  bool
	maxLength    int64
	progress     int

	hash         IndexedHash
	hasher       *xxhash.Digest
	fastModeOn   bool

	encodingGuess  textcodec.Codec
	forcedEncoding textcodec.Codec
	hasForced      bool
}

// New creates an empty store. fastModeOn mirrors the configuration's
// FastModificationDetection() setting at construction time; Clear
// re-reads it from the same source at every full reindex.
func New(fastModeOn bool) *Store {
	s := &Store{fastModeOn: fastModeOn}
	s.resetHasher()
	return s
}

func (s *Store) resetHasher() {
	if s.fastModeOn {
		s.hasher = nil
		return
	}
	s.hasher = xxhash.New()
}

// ReadAccessor exposes the read-only operations of spec.md §4.6. Any
// number of ReadAccessors may be held concurrently, but never alongside a
// MutateAccessor.
type ReadAccessor struct{ s *Store }

// MutateAccessor exposes the mutating operations of spec.md §4.6. At most
// one MutateAccessor may be held at a time, exclusive of all readers.
type MutateAccessor struct{ s *Store }

// AcquireRead blocks until a read lock is available and returns a
// ReadAccessor plus a release function that must be called exactly once,
// on every exit path.
func (s *Store) AcquireRead() (*ReadAccessor, func()) {
	s.mu.RLock()
	return &ReadAccessor{s: s}, s.mu.RUnlock
}

// AcquireMutate blocks until the exclusive write lock is available and
// returns a MutateAccessor plus a release function that must be called
// exactly once, on every exit path.
func (s *Store) AcquireMutate() (*MutateAccessor, func()) {
	s.mu.Lock()
	return &MutateAccessor{s: s}, s.mu.Unlock
}

// --- ReadAccessor ---

func (r *ReadAccessor) IndexedSize() int64 { return r.s.hash.Size }

func (r *ReadAccessor) Hash() IndexedHash { return r.s.hash }

func (r *ReadAccessor) MaxLength() int64 { return r.s.maxLength }

func (r *ReadAccessor) NbLines() int64 { return int64(r.s.positions.len()) }

// PosForLine returns the byte offset at which line (1-based) begins.
// Line 1 always begins at offset 0 implicitly; line n>1 begins at
// positions[n-2].
func (r *ReadAccessor) PosForLine(line int64) (int64, bool) {
	if line <= 0 {
		return 0, false
	}
	if line == 1 {
		return 0, true
	}
	return r.s.positions.get(int(line) - 2)
}

func (r *ReadAccessor) EncodingGuess() textcodec.Codec { return r.s.encodingGuess }

func (r *ReadAccessor) ForcedEncoding() (textcodec.Codec, bool) {
	return r.s.forcedEncoding, r.s.hasForced
}

func (r *ReadAccessor) Progress() int { return r.s.progress }

func (r *ReadAccessor) AllocatedSize() int64 { return r.s.positions.allocatedSize() }

func (r *ReadAccessor) FakeFinalLF() bool { return r.s.fakeFinalLF }

// --- MutateAccessor ---

// Clear resets the store to empty and re-reads fastModeOn, mirroring the
// original's clear() rereading the modification-detection flag from
// configuration on every full reindex.
func (m *MutateAccessor) Clear(fastModeOn bool) {
	s := m.s
	s.positions = positionArray{}
	s.fakeFinalLF = false
	s.maxLength = 0
	s.progress = 0
	s.hash = IndexedHash{}
	s.fastModeOn = fastModeOn
	s.resetHasher()
	s.encodingGuess = textcodec.Default()
	s.forcedEncoding = 0
	s.hasForced = false
}

// AddAll appends a parsed block's results: new line-start offsets, the
// updated running max display length, and (outside fast mode) the
// block's bytes fed into the rolling content digest.
func (m *MutateAccessor) AddAll(block []byte, length int64, positions []int64, encodingGuess textcodec.Codec) {
	s := m.s
	for _, p := range positions {
		s.positions.append(p)
	}
	if length > s.maxLength {
		s.maxLength = length
	}
	if !s.fastModeOn && len(block) > 0 {
		s.hasher.Write(block)
		s.hash.FullDigest = s.hasher.Sum64()
		s.hash.FullDigestValid = true
	}
	s.hash.Size += int64(len(block))
	s.encodingGuess = encodingGuess
}

func (m *MutateAccessor) SetHeaderHash(digest uint64, size int64) {
	m.s.hash.HeaderDigest = digest
	m.s.hash.HeaderSize = size
}

func (m *MutateAccessor) SetTailHash(digest uint64, offset, size int64) {
	m.s.hash.TailDigest = digest
	m.s.hash.TailOffset = offset
	m.s.hash.TailSize = size
}

func (m *MutateAccessor) SetEncodingGuess(c textcodec.Codec) { m.s.encodingGuess = c }

func (m *MutateAccessor) ForceEncoding(c textcodec.Codec) {
	m.s.forcedEncoding = c
	m.s.hasForced = true
}

func (m *MutateAccessor) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	m.s.progress = p
}

// SetFakeFinalLF marks that the store's last entry is a synthetic
// terminator for a file whose last line lacks a trailing LF.
func (m *MutateAccessor) SetFakeFinalLF(v bool) { m.s.fakeFinalLF = v }

// Digest returns a one-shot xxhash of data, used by the driver for
// header/tail re-hashing outside the incremental full-file digest.
func Digest(data []byte) uint64 { return xxhash.Sum64(data) }
