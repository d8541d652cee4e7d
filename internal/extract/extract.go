// Package extract copies whole chunks overlapping a requested time range
// out of a domain's rotated logfiles into a single destination file,
// without decrypting or decompressing anything. Grounded on
// original_source/pinenut/src/extractor.rs, wrapping the outer operation
// in a go.opentelemetry.io/otel span and using
// github.com/ryanuber/go-glob for identifier
// filtering when a caller wants every domain matching a pattern rather
// than one exact identifier.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ryanuber/go-glob"
	"go.opentelemetry.io/otel"

	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/codec"
	"github.com/kenneth/pinenut/internal/logfile"
	"github.com/kenneth/pinenut/internal/logger"
)

var tracer = otel.Tracer("github.com/kenneth/pinenut/internal/extract")

// ErrNotFound is returned when no chunk in any candidate file overlapped
// the requested range, so the destination was never written.
var ErrNotFound = errors.New("extract: no overlapping chunk found")

// Range is an inclusive datetime range to extract.
type Range struct {
	Start time.Time
	End   time.Time
}

// Domains returns every domain identifier under root whose name matches
// pattern (a shell glob, e.g. "checkout-*"), discovered by scanning for
// *.pine files and splitting off their embedded identifiers. A literal
// identifier with no glob metacharacters matches only itself.
func Domains(root, pattern string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("extract: list %s: %w", root, err)
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != "."+logfile.Extension {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx := strings.LastIndex(stem, "-")
		if idx < 0 {
			continue
		}
		id := stem[:idx]
		if id == "" || seen[id] || !glob.Glob(pattern, id) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// Extract copies every chunk of domain that overlaps r into dest,
// verbatim (header and payload bytes unchanged), creating dest lazily on
// the first write. It returns ErrNotFound if nothing overlapped.
func Extract(ctx context.Context, domain logger.Domain, r Range, dest string) error {
	_, span := tracer.Start(ctx, "extract.Extract")
	defer span.End()

	files, err := logfile.List(domain.Directory, domain.Identifier, logfile.ModeRead)
	if err != nil {
		return fmt.Errorf("extract: list logfiles: %w", err)
	}

	candidates := selectCandidates(files, r)
	if len(candidates) == 0 {
		return ErrNotFound
	}

	var out *os.File
	defer func() {
		if out != nil {
			out.Close()
		}
	}()
	openDest := func() (*os.File, error) {
		if out != nil {
			return out, nil
		}
		o, err := os.Create(dest)
		if err != nil {
			return nil, err
		}
		out = o
		return out, nil
	}

	for _, f := range candidates {
		if err := copyFile(f, r, openDest); err != nil {
			return fmt.Errorf("extract: copy %s: %w", f.Name(), err)
		}
	}

	if out == nil {
		return ErrNotFound
	}
	return nil
}

// selectCandidates implements the specification's candidate-selection
// walk: files are visited in ascending datetime order, stopping once a
// file's datetime reaches or passes the range end; any time a file's
// datetime falls at or before the range start, it supersedes every
// candidate collected so far, since only the latest such file can
// contain the start of the range.
func selectCandidates(files []*logfile.Logfile, r Range) []*logfile.Logfile {
	var out []*logfile.Logfile
	for _, f := range files {
		if !f.DateTime().Before(r.End) {
			break
		}
		if !f.DateTime().After(r.Start) && len(out) > 0 {
			out = out[:0]
		}
		out = append(out, f)
	}
	return out
}

// copyFile streams whole chunks from f into the lazily-opened destination
// returned by openDest, stopping early once a chunk starts after the
// range end and skipping (without opening the destination) any chunk
// that ends before the range start. It reuses internal/chunk's Reader,
// the same sequential chunk-at-a-time reader the parser uses. Only a
// partial trailing header — the shape a crash-truncated file actually
// leaves behind — is treated as end-of-usable-data; a bad-magic header or
// a chunk whose declared payload the file doesn't actually hold is
// genuine corruption and aborts the whole extraction fatally, per the
// specification's framing-errors-are-fatal policy.
func copyFile(f *logfile.Logfile, r Range, openDest func() (*os.File, error)) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	cr := chunk.NewReader(src)

	for {
		h, err := cr.ReadHeaderOrReachToEnd()
		if err != nil {
			if rerr, ok := err.(*chunk.ReadError); ok && rerr.Kind == chunk.ReadErrUnexpectedEnd {
				return nil // partial trailing header: end of usable data
			}
			return classifyFramingError(f.Path(), err)
		}
		if h == nil {
			return nil
		}

		if h.Start.After(r.End) {
			return nil
		}
		if h.End.Before(r.Start) {
			if err := cr.Skip(int(h.Length)); err != nil {
				return classifyPayloadError(f.Path(), err)
			}
			continue
		}

		dst, err := openDest()
		if err != nil {
			return err
		}
		if _, err := dst.Write(h.Marshal()); err != nil {
			return err
		}
		sink := codec.SinkFunc(func(p []byte) error {
			_, err := dst.Write(p)
			return err
		})
		if err := cr.ReadPayload(int(h.Length), sink); err != nil {
			return classifyPayloadError(f.Path(), err)
		}
	}
}

// classifyFramingError turns a failure to read a chunk header (other than
// a benign partial trailing header) into a fatal *Error: a bad-magic
// header is corruption (KindFileInvalid), anything else is KindIO.
func classifyFramingError(path string, err error) error {
	if rerr, ok := err.(*chunk.ReadError); ok && rerr.Kind == chunk.ReadErrInvalid {
		return &Error{Kind: KindFileInvalid, Path: path, Err: rerr}
	}
	return &Error{Kind: KindIO, Path: path, Err: err}
}

// classifyPayloadError turns a failure to read or skip a chunk's declared
// payload into a fatal *Error: the stream running out mid-payload means
// the file is shorter than its own framing promises (KindFileIncomplete);
// a bad-magic result can't occur here, so anything else is KindIO.
func classifyPayloadError(path string, err error) error {
	if rerr, ok := err.(*chunk.ReadError); ok && rerr.Kind == chunk.ReadErrUnexpectedEnd {
		return &Error{Kind: KindFileIncomplete, Path: path, Err: rerr}
	}
	return &Error{Kind: KindIO, Path: path, Err: err}
}
