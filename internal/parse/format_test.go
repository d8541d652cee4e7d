package parse

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/record"
)

func TestDefaultFormatterFullRecord(t *testing.T) {
	dt := time.Date(2026, 7, 30, 9, 5, 3, 250_000_000, time.UTC)
	loc := record.NewLocation("main.go", "run", 42)
	meta := record.NewMeta(record.LevelError, dt, loc).WithTag("checkout").WithThreadID(7)
	r := record.NewRecord(meta, "payment failed")

	var buf bytes.Buffer
	require.NoError(t, DefaultFormatter{}.Format(&buf, r))

	got := buf.String()
	require.Contains(t, got, "[E] ")
	require.Contains(t, got, "|7|main.go:42|checkout|payment failed\n")
}

func TestDefaultFormatterAbsentFieldsLeftBlank(t *testing.T) {
	meta := record.NewMeta(record.LevelInfo, time.Now(), record.Location{})
	r := record.NewRecord(meta, "ok")

	var buf bytes.Buffer
	require.NoError(t, DefaultFormatter{}.Format(&buf, r))

	got := buf.String()
	require.Contains(t, got, "[I] ")
	require.Contains(t, got, "|||ok\n", "thread id, file:line and tag should all be blank")
}

func TestDefaultFormatterUnknownLevel(t *testing.T) {
	meta := record.Meta{Level: record.Level(99)}
	r := record.NewRecord(meta, "x")

	var buf bytes.Buffer
	require.NoError(t, DefaultFormatter{}.Format(&buf, r))
	require.Contains(t, buf.String(), "[?] ")
}
