// Package logger implements the write path described in
// original_source/pinenut/src/logger.rs and src/lib.rs: it orchestrates
// record ingestion, the encode/compress/encrypt pipeline, time-based
// rotation, and handoff to an asynchronous IO worker, entirely in terms
// of the lower-level internal/buffer, internal/chunk, internal/compress
// and internal/crypto packages. The original LoggerInner's operation
// dispatch (on Input/Rotate/Writeback) is not present in the retrieved
// source — only the thin public wrapper is — so the dispatch logic here
// is built directly from the specification's per-operation description.
package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/kenneth/pinenut/internal/buffer"
	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/crypto"
	"github.com/kenneth/pinenut/internal/memory"
	"github.com/kenneth/pinenut/internal/record"
	"github.com/kenneth/pinenut/internal/runloop"
)

// BufferExtension is the file extension of a domain's double-buffer
// backing file.
const BufferExtension = "pinebuf"

// Domain names a logical log stream: an identifier shared by every file
// it produces, rooted at a directory.
type Domain struct {
	Identifier string
	Directory  string
}

// bufferPath returns the path of d's double-buffer backing file,
// "<directory>/<identifier>.pinebuf".
func (d Domain) bufferPath() string {
	return filepath.Join(d.Directory, d.Identifier+"."+BufferExtension)
}

// TimeDimension is a chunk or file rotation granularity.
type TimeDimension int

const (
	Minute TimeDimension = iota
	Hour
	Day
)

func (t TimeDimension) String() string {
	switch t {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// FileRotation derives the file rotation dimension from a chunk rotation
// dimension: a file always groups chunks of the coarser bucket
// containing them (Minute chunks are grouped into Hour files, Hour
// chunks into Day files, Day chunks into Day files).
func (t TimeDimension) FileRotation() TimeDimension {
	switch t {
	case Minute:
		return Hour
	case Hour:
		return Day
	default:
		return Day
	}
}

// CheckMatch reports whether a and b fall in the same bucket at
// dimension t: Day matches on the same date, Hour additionally on the
// same hour, Minute additionally on the same minute. Finer dimensions
// imply all coarser ones. Both times are compared in UTC rather than
// the process's OS locale, so a Logger's bucketing doesn't change if the
// host's timezone configuration does.
func CheckMatch(a, b time.Time, t TimeDimension) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by || am != bm || ad != bd {
		return false
	}
	if t == Day {
		return true
	}
	if a.Hour() != b.Hour() {
		return false
	}
	if t == Hour {
		return true
	}
	return a.Minute() == b.Minute()
}

// Tracker receives diagnostic errors from the write path. The write API
// is fire-and-forget: a Tracker is called at most once per error, from
// either the caller's goroutine or the IO worker's, and must be safe to
// call concurrently. Grounded on the teacher's internal/audit EventWriter
// contract, narrowed to this package's single-callback shape since there
// is no caller-facing return value to carry diagnostics on.
type Tracker interface {
	Track(err error, file string, line int)
}

// TrackerFunc adapts a function to a Tracker.
type TrackerFunc func(err error, file string, line int)

// Track calls f.
func (f TrackerFunc) Track(err error, file string, line int) { f(err, file, line) }

type nopTracker struct{}

func (nopTracker) Track(error, string, int) {}

// track reports err to t, attaching the file and line of its caller, and
// is a no-op if err is nil.
func track(t Tracker, err error) {
	if err == nil {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	t.Track(err, file, line)
}

// Context is the immutable state shared between a Logger and its IO
// worker once construction completes.
type Context struct {
	Domain          Domain
	EphemeralPubKey crypto.PublicKey
	RotationDim     TimeDimension
	Tracker         Tracker
}

// Config carries the tunables for a single Logger instance, defaulting
// to the specification's documented values.
type Config struct {
	// UseMmap selects a memory-mapped (crash-resilient) backing region
	// over a plain heap buffer.
	UseMmap bool
	// BufferLen is the total backing region size in bytes, split between
	// an 8-byte header and two equal chunk-sized halves.
	BufferLen int
	// Rotation is the chunk rotation dimension.
	Rotation TimeDimension
	// Key is the recipient's long-term public key. The zero value
	// disables encryption.
	Key crypto.PublicKey
	// CompressionLevel is the zstd level passed to the streaming
	// compressor; zero or negative disables compression entirely.
	CompressionLevel int
	// Tracker receives write-path diagnostics; nil discards them.
	Tracker Tracker
}

// DefaultConfig returns the specification's documented defaults:
// mmap-backed, 320 KiB buffer, minute rotation, no encryption, zstd
// level 10.
func DefaultConfig() Config {
	return Config{
		UseMmap:          true,
		BufferLen:        327680,
		Rotation:         Minute,
		CompressionLevel: 10,
	}
}

// Logger ingests records on the hot path and drains them, via an
// asynchronous IO worker, to a rotating set of files in its Domain's
// directory. All exported methods are safe for concurrent use.
type Logger struct {
	mu sync.Mutex

	ctx   *Context
	mem   memory.Memory
	buf   *buffer.Buffer
	input *buffer.Handle
	chunk *chunk.Chunk

	processor *processor
	worker    *ioWorker
	rl        *runloop.Runloop[ioEvent]
}

// New constructs a Logger for domain, opening or creating its
// double-buffer backing file under cfg and starting its IO worker.
func New(domain Domain, cfg Config) (*Logger, error) {
	if cfg.BufferLen <= 0 {
		cfg.BufferLen = DefaultConfig().BufferLen
	}

	var mem memory.Memory
	var err error
	if cfg.UseMmap {
		mem, err = memory.NewMmapMemory(domain.bufferPath(), cfg.BufferLen)
	} else {
		mem = memory.NewHeapMemory(cfg.BufferLen)
	}
	if err != nil {
		return nil, fmt.Errorf("logger: open backing memory: %w", err)
	}

	buf, err := buffer.New(mem)
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("logger: bind buffer: %w", err)
	}

	derived, err := crypto.NewEphemeralKeys(cfg.Key)
	if err != nil {
		_ = buf.Close()
		return nil, fmt.Errorf("logger: derive ephemeral keys: %w", err)
	}
	encrypted := cfg.Key != crypto.EmptyPublicKey

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = nopTracker{}
	}
	ctx := &Context{
		Domain:          domain,
		EphemeralPubKey: derived.PublicKey,
		RotationDim:     cfg.Rotation,
		Tracker:         tracker,
	}

	input := buffer.NewHandle(buf, buffer.Left)
	output := buffer.NewHandle(buf, buffer.Right)

	l := &Logger{
		ctx:       ctx,
		mem:       mem,
		buf:       buf,
		input:     input,
		chunk:     chunk.Bind(input.Bytes()),
		processor: newProcessor(derived.EncryptionKey, encrypted, cfg.CompressionLevel),
	}

	if _, err := l.chunk.Header(); err != nil {
		l.chunk.Initialize(ctx.EphemeralPubKey, time.Now())
	}
	if err := l.processor.reset(l.chunk); err != nil {
		_ = buf.Close()
		return nil, fmt.Errorf("logger: prime processor: %w", err)
	}

	worker, err := newIOWorker(ctx, output)
	if err != nil {
		_ = buf.Close()
		return nil, fmt.Errorf("logger: recover io worker: %w", err)
	}
	l.worker = worker
	l.rl = runloop.Run[ioEvent](worker, 256)

	// Startup is symmetric to steady-state: run Writeback once so any
	// payload recovered from a crashed prior process becomes the tail of
	// whatever file it logically belongs to.
	if err := l.on(operation{kind: opWriteback}); err != nil {
		return nil, fmt.Errorf("logger: startup writeback: %w", err)
	}
	return l, nil
}

// Log submits r for ingestion. It never fails the caller: problems are
// reported to the configured Tracker and otherwise swallowed, matching
// the specification's fire-and-forget write path.
func (l *Logger) Log(r record.Record) {
	if err := l.on(operation{kind: opInput, record: r}); err != nil {
		track(l.ctx.Tracker, err)
	}
}

// Rotate forces the current chunk to be sealed and handed to the IO
// worker even if it isn't almost full, without waiting for the next
// record.
func (l *Logger) Rotate() {
	if err := l.on(operation{kind: opRotate}); err != nil {
		track(l.ctx.Tracker, err)
	}
}

// Trim enqueues deletion of every logfile in the domain whose
// name-embedded timestamp is strictly older than lifetime.
func (l *Logger) Trim(lifetime time.Duration) error {
	return l.rl.On(ioEvent{kind: ioTrim, lifetime: lifetime})
}

// Shutdown synchronously rotates any outstanding data into the output
// side, enqueues a stop event, and waits for the IO worker to finish
// processing everything enqueued before it.
func (l *Logger) Shutdown() error {
	l.Rotate()
	if err := l.rl.On(ioEvent{kind: ioShutdown}); err != nil {
		return err
	}
	if err := l.rl.Join(); err != nil {
		return err
	}
	return l.buf.Close()
}

// operation kind.
type opKind int

const (
	opInput opKind = iota
	opRotate
	opWriteback
)

type operation struct {
	kind   opKind
	record record.Record
}

// dateTime returns the timestamp a reinitialized chunk should carry
// after this operation triggers a rotation: the record's own datetime
// for Input, or the current instant otherwise.
func (op operation) dateTime() time.Time {
	if op.kind == opInput {
		return op.record.Meta.DateTime
	}
	return time.Now().UTC()
}

// on executes the per-operation logic common to Input, Rotate and
// Writeback, under the Logger's own lock. See the specification's
// Logger-core component for the numbered steps this mirrors.
func (l *Logger) on(op operation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Bind the chunk to the input side.
	l.chunk = chunk.Bind(l.input.Bytes())

	// 2. Decide whether a write_op is needed.
	needsWrite := false
	writeOp := op
	switch op.kind {
	case opRotate:
		needsWrite = true
	case opWriteback:
		if err := l.chunk.SetWriteback(true); err != nil {
			return err
		}
		n, err := l.chunk.PayloadLen()
		if err != nil {
			return err
		}
		needsWrite = n > 0
	case opInput:
		almostFull, err := l.chunk.IsAlmostFull()
		if err != nil {
			return err
		}
		start, err := l.chunk.StartDateTime()
		if err != nil {
			return err
		}
		needsWrite = almostFull || !CheckMatch(start, op.record.Meta.DateTime, l.ctx.RotationDim)
		if needsWrite {
			writeOp = operation{kind: opRotate}
		}
	}

	// 3. If a write_op is needed, seal the current chunk and hand it off.
	if needsWrite {
		if err := l.processor.process(writeOp, l.chunk); err != nil {
			return err
		}
		n, err := l.chunk.PayloadLen()
		if err != nil {
			return err
		}
		if n > 0 {
			l.buf.Switch()
			l.chunk = chunk.Bind(l.input.Bytes())
			if err := l.rl.On(ioEvent{kind: ioWriteChunk}); err != nil && err != runloop.ErrStopped {
				return err
			}
		}
		l.chunk.Initialize(l.ctx.EphemeralPubKey, op.dateTime())
		if err := l.processor.reset(l.chunk); err != nil {
			return err
		}
	}

	// 4. If op is Input, encode the record into the (possibly freshly
	// reinitialized) current chunk.
	if op.kind == opInput {
		if err := l.processor.process(operation{kind: opInput, record: op.record}, l.chunk); err != nil {
			return err
		}
	}
	return nil
}
