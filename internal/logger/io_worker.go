package logger

import (
	"fmt"
	"time"

	"github.com/kenneth/pinenut/internal/buffer"
	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/logfile"
	"github.com/kenneth/pinenut/internal/runloop"
)

// ioKind distinguishes the events an ioWorker's runloop can receive.
type ioKind int

const (
	ioWriteChunk ioKind = iota
	ioTrim
	ioShutdown
)

// ioEvent is the single event type the IO worker's runloop processes,
// carrying only the fields relevant to its kind.
type ioEvent struct {
	kind     ioKind
	lifetime time.Duration
}

// ioWorker owns the buffer's output side and the currently-open logfile
// (if any), draining WriteChunk events handed off by the Logger onto
// disk. It implements runloop.Handler[ioEvent].
type ioWorker struct {
	ctx     *Context
	output  *buffer.Handle
	current *logfile.Logfile
}

// newIOWorker constructs the worker and, if the output side already
// holds an unwritten chunk (left over from a crashed prior process,
// independent of the Logger's own input-side Startup writeback), drains
// it to disk synchronously before the runloop starts.
func newIOWorker(ctx *Context, output *buffer.Handle) (*ioWorker, error) {
	w := &ioWorker{ctx: ctx, output: output}
	c := chunk.Bind(output.Bytes())
	n, err := c.PayloadLen()
	if err != nil {
		// An unreadable (never-initialized) header just means the output
		// side has never been written to; nothing to recover.
		return w, nil
	}
	if n > 0 {
		if err := w.writeChunk(); err != nil {
			return nil, fmt.Errorf("io worker: recover output side: %w", err)
		}
	}
	return w, nil
}

// Handle implements runloop.Handler[ioEvent].
func (w *ioWorker) Handle(ev ioEvent, rlCtx *runloop.Context) {
	var err error
	switch ev.kind {
	case ioWriteChunk:
		err = w.writeChunk()
	case ioTrim:
		err = w.trim(ev.lifetime)
	case ioShutdown:
		// The Rotate() that Logger.Shutdown performs before enqueuing this
		// event already handed off an ioWriteChunk ahead of it, which this
		// single-goroutine runloop processes first; there's nothing left
		// to drain here.
		rlCtx.Stop()
	}
	if err != nil {
		track(w.ctx.Tracker, err)
	}
}

// logfileFor returns the (possibly new) logfile that a chunk starting at
// start belongs to, rotating away from w.current if start falls into a
// different file-rotation bucket.
func (w *ioWorker) logfileFor(start time.Time) *logfile.Logfile {
	fileDim := w.ctx.RotationDim.FileRotation()
	if w.current != nil && CheckMatch(w.current.DateTime(), start, fileDim) {
		return w.current
	}
	if w.current != nil {
		_ = w.current.Flush()
		_ = w.current.Close()
	}
	w.current = logfile.New(w.ctx.Domain.Directory, w.ctx.Domain.Identifier, start, logfile.ModeWrite)
	return w.current
}

// writeChunk copies the output side's chunk header and payload verbatim
// to the logfile its start time belongs to, then clears the output side
// so a later crash doesn't replay it.
func (w *ioWorker) writeChunk() error {
	c := chunk.Bind(w.output.Bytes())
	n, err := c.PayloadLen()
	if err != nil {
		return fmt.Errorf("io worker: read output chunk: %w", err)
	}
	if n == 0 {
		return nil
	}
	start, err := c.StartDateTime()
	if err != nil {
		return fmt.Errorf("io worker: read output chunk: %w", err)
	}
	h, err := c.Header()
	if err != nil {
		return fmt.Errorf("io worker: read output chunk: %w", err)
	}
	payload, err := c.Payload()
	if err != nil {
		return fmt.Errorf("io worker: read output chunk: %w", err)
	}

	lf := w.logfileFor(start)
	if _, err := lf.Write(h.Marshal()); err != nil {
		return fmt.Errorf("io worker: write header: %w", err)
	}
	if _, err := lf.Write(payload); err != nil {
		return fmt.Errorf("io worker: write payload: %w", err)
	}
	if err := lf.Flush(); err != nil {
		return fmt.Errorf("io worker: flush logfile: %w", err)
	}

	if err := c.Clear(); err != nil {
		return fmt.Errorf("io worker: clear output chunk: %w", err)
	}
	return nil
}

// trim deletes every logfile in the domain whose name-embedded timestamp
// is strictly older than lifetime.
func (w *ioWorker) trim(lifetime time.Duration) error {
	files, err := logfile.List(w.ctx.Domain.Directory, w.ctx.Domain.Identifier, logfile.ModeRead)
	if err != nil {
		return fmt.Errorf("io worker: list logfiles: %w", err)
	}
	cutoff := time.Now().Add(-lifetime)
	var firstErr error
	for _, f := range files {
		if !f.DateTime().Before(cutoff) {
			continue
		}
		if err := f.Delete(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("io worker: delete %s: %w", f.Name(), err)
		}
	}
	return firstErr
}
