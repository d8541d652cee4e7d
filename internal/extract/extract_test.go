package extract

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/logfile"
	"github.com/kenneth/pinenut/internal/logger"
)

// writeChunkFile creates a .pine logfile named for identifier and
// named datetime under dir, containing a single chunk whose header
// spans [start,end] and whose payload is an arbitrary byte sequence of
// the given length. Extract never decodes payload bytes, so any
// distinguishable content works for asserting a verbatim copy happened.
func writeChunkFile(t *testing.T, dir, identifier string, named, start, end time.Time, payload []byte) {
	t.Helper()
	f := logfile.New(dir, identifier, named, logfile.ModeWrite)
	h := chunk.Header{Version: chunk.FormatVersion, Length: uint32(len(payload)), Start: start, End: end}
	_, err := f.Write(h.Marshal())
	require.NoError(t, err)
	_, err = f.Write(payload)
	require.NoError(t, err)
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())
}

func TestExtractCopiesOverlappingChunkVerbatim(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	writeChunkFile(t, dir, "checkout", base, base, base.Add(time.Minute), []byte("hello-world-payload"))

	domain := logger.Domain{Identifier: "checkout", Directory: dir}
	dest := dir + "/out.pine"
	r := Range{Start: base.Add(-time.Hour), End: base.Add(time.Hour)}
	require.NoError(t, Extract(context.Background(), domain, r, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Contains(t, string(got), "hello-world-payload")
}

func TestExtractReturnsErrNotFoundWhenNothingOverlaps(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	writeChunkFile(t, dir, "checkout", base, base, base.Add(time.Minute), []byte("payload"))

	domain := logger.Domain{Identifier: "checkout", Directory: dir}
	r := Range{Start: base.Add(24 * time.Hour), End: base.Add(25 * time.Hour)}
	err := Extract(context.Background(), domain, r, dir+"/out.pine")
	require.ErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(dir + "/out.pine")
	require.True(t, os.IsNotExist(statErr), "destination must not be created when nothing overlaps")
}

func TestExtractSkipsChunksEndingBeforeRangeStart(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	// Two chunks in one file: the first ends well before the requested
	// range, the second overlaps it.
	f := logfile.New(dir, "checkout", base, logfile.ModeWrite)
	early := chunk.Header{Version: chunk.FormatVersion, Length: 5, Start: base, End: base.Add(time.Second)}
	_, err := f.Write(early.Marshal())
	require.NoError(t, err)
	_, err = f.Write([]byte("early"))
	require.NoError(t, err)

	laterStart := base.Add(10 * time.Minute)
	later := chunk.Header{Version: chunk.FormatVersion, Length: 6, Start: laterStart, End: laterStart.Add(time.Minute)}
	_, err = f.Write(later.Marshal())
	require.NoError(t, err)
	_, err = f.Write([]byte("inside"))
	require.NoError(t, err)
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	domain := logger.Domain{Identifier: "checkout", Directory: dir}
	dest := dir + "/out.pine"
	r := Range{Start: base.Add(5 * time.Minute), End: base.Add(20 * time.Minute)}
	require.NoError(t, Extract(context.Background(), domain, r, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotContains(t, string(got), "early")
	require.Contains(t, string(got), "inside")
}

func TestExtractFailsFatallyOnCorruptHeaderMidFile(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	f := logfile.New(dir, "checkout", base, logfile.ModeWrite)
	good := chunk.Header{Version: chunk.FormatVersion, Length: 5, Start: base, End: base.Add(time.Second)}
	_, err := f.Write(good.Marshal())
	require.NoError(t, err)
	_, err = f.Write([]byte("valid"))
	require.NoError(t, err)
	// A full-length header with a mangled magic: genuine corruption, not a
	// truncated tail.
	_, err = f.Write(make([]byte, chunk.HeaderLen))
	require.NoError(t, err)
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	domain := logger.Domain{Identifier: "checkout", Directory: dir}
	r := Range{Start: base.Add(-time.Hour), End: base.Add(time.Hour)}
	err = Extract(context.Background(), domain, r, dir+"/out.pine")
	require.Error(t, err)
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	require.Equal(t, KindFileInvalid, eerr.Kind)
}

func TestExtractFailsFatallyOnIncompletePayload(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	f := logfile.New(dir, "checkout", base, logfile.ModeWrite)
	// Header declares far more payload than the file actually holds.
	h := chunk.Header{Version: chunk.FormatVersion, Length: 4096, Start: base, End: base.Add(time.Second)}
	_, err := f.Write(h.Marshal())
	require.NoError(t, err)
	_, err = f.Write([]byte("only a few bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	domain := logger.Domain{Identifier: "checkout", Directory: dir}
	r := Range{Start: base.Add(-time.Hour), End: base.Add(time.Hour)}
	err = Extract(context.Background(), domain, r, dir+"/out.pine")
	require.Error(t, err)
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	require.Equal(t, KindFileIncomplete, eerr.Kind)
}

func TestDomainsGlobFiltering(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	writeChunkFile(t, dir, "checkout-eu", base, base, base.Add(time.Minute), []byte("a"))
	writeChunkFile(t, dir, "checkout-us", base, base, base.Add(time.Minute), []byte("b"))
	writeChunkFile(t, dir, "inventory", base, base, base.Add(time.Minute), []byte("c"))

	matches, err := Domains(dir, "checkout-*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"checkout-eu", "checkout-us"}, matches)

	exact, err := Domains(dir, "inventory")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"inventory"}, exact)
}
