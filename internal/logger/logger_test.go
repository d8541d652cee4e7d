package logger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/extract"
	"github.com/kenneth/pinenut/internal/logger"
	"github.com/kenneth/pinenut/internal/parse"
	"github.com/kenneth/pinenut/internal/record"
)

func TestCheckMatch(t *testing.T) {
	base := time.Date(2026, 7, 30, 12, 34, 56, 0, time.UTC)

	require.True(t, logger.CheckMatch(base, base, logger.Minute))
	require.True(t, logger.CheckMatch(base, base.Add(30*time.Second), logger.Minute))
	require.False(t, logger.CheckMatch(base, base.Add(time.Minute), logger.Minute))
	require.True(t, logger.CheckMatch(base, base.Add(time.Minute), logger.Hour))
	require.False(t, logger.CheckMatch(base, base.Add(time.Hour), logger.Hour))
	require.True(t, logger.CheckMatch(base, base.Add(time.Hour), logger.Day))
	require.False(t, logger.CheckMatch(base, base.Add(24*time.Hour), logger.Day))
}

func TestTimeDimensionFileRotation(t *testing.T) {
	require.Equal(t, logger.Hour, logger.Minute.FileRotation())
	require.Equal(t, logger.Day, logger.Hour.FileRotation())
	require.Equal(t, logger.Day, logger.Day.FileRotation())
}

// TestLoggerWriteRotateExtractParseRoundTrip exercises the full write
// path on heap-backed memory (no mmap file, so the test doesn't depend
// on filesystem mmap support), forces a rotation, shuts the logger down
// so the IO worker drains its pending chunk, then confirms the written
// logfile round-trips through both extract and parse.
func TestLoggerWriteRotateExtractParseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	domain := logger.Domain{Identifier: "checkout", Directory: dir}

	var tracked []error
	cfg := logger.Config{
		UseMmap:          false,
		BufferLen:        logger.DefaultConfig().BufferLen,
		Rotation:         logger.Minute,
		CompressionLevel: 3,
		Tracker:          logger.TrackerFunc(func(err error, file string, line int) { tracked = append(tracked, err) }),
	}

	l, err := logger.New(domain, cfg)
	require.NoError(t, err)

	now := time.Now().UTC()
	l.Log(record.NewRecord(record.NewMeta(record.LevelInfo, now, record.Location{}), "order placed"))
	l.Log(record.NewRecord(record.NewMeta(record.LevelWarn, now, record.Location{}), "inventory low"))

	l.Rotate()
	require.NoError(t, l.Shutdown())
	require.Empty(t, tracked)

	var decoded []record.Record
	err = parse.Parse(domainLogfile(t, dir), nil, func(r record.Record) {
		decoded = append(decoded, r)
	})
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, "order placed", decoded[0].Content)
	require.Equal(t, record.LevelInfo, decoded[0].Meta.Level)
	require.Equal(t, "inventory low", decoded[1].Content)
	require.Equal(t, record.LevelWarn, decoded[1].Meta.Level)

	dest := t.TempDir() + "/extracted.pine"
	r := extract.Range{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
	require.NoError(t, extract.Extract(context.Background(), domain, r, dest))

	var extracted []record.Record
	require.NoError(t, parse.Parse(dest, nil, func(r record.Record) {
		extracted = append(extracted, r)
	}))
	require.Len(t, extracted, 2)
}

// TestLoggerRotationAcrossMinuteBoundary confirms that logging two
// records whose datetimes fall in different minute buckets triggers an
// implicit rotation without an explicit Rotate call.
func TestLoggerRotationAcrossMinuteBoundary(t *testing.T) {
	dir := t.TempDir()
	domain := logger.Domain{Identifier: "sessions", Directory: dir}

	l, err := logger.New(domain, logger.Config{
		UseMmap:   false,
		BufferLen: logger.DefaultConfig().BufferLen,
		Rotation:  logger.Minute,
	})
	require.NoError(t, err)

	first := time.Date(2026, 7, 30, 10, 0, 30, 0, time.UTC)
	second := first.Add(45 * time.Second) // crosses into the next minute bucket

	l.Log(record.NewRecord(record.NewMeta(record.LevelInfo, first, record.Location{}), "a"))
	l.Log(record.NewRecord(record.NewMeta(record.LevelInfo, second, record.Location{}), "b"))
	require.NoError(t, l.Shutdown())

	var decoded []record.Record
	require.NoError(t, parse.Parse(domainLogfile(t, dir), nil, func(r record.Record) {
		decoded = append(decoded, r)
	}))
	require.Len(t, decoded, 2)
}

// domainLogfile returns the path of the single .pine file produced under
// dir, failing the test if there isn't exactly one.
func domainLogfile(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var matches []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".pine" {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}
	require.Len(t, matches, 1, "expected exactly one rotated logfile, got %v", matches)
	return matches[0]
}
