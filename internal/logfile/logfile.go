// Package logfile implements the naming, lazy opening and directory
// enumeration of Pinenut's on-disk chunk files. Grounded on
// original_source/pinenut/src/logfile.rs, with one deliberate deviation:
// the original's Logfile::logfiles splits a file stem on the *first* '-'
// (Rust's split_once). The specification this module implements calls for
// splitting on the *last* '-' instead, so an identifier containing a
// hyphen (e.g. "checkout-service") round-trips correctly; List does this
// with strings.LastIndex.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Extension is the binary, compressed-and-encrypted logfile extension.
const Extension = "pine"

// PlainExtension is the extension used for human-readable parsed output.
const PlainExtension = "log"

// Mode selects whether a Logfile is opened for appending (the writer
// side) or for reading (the extractor/parser side).
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Logfile is a single rotated log file on disk: an identifier-prefixed,
// unix-timestamp-suffixed path within a domain's directory. Opening is
// lazy: the backing *os.File is created on first Write/Open call, not at
// construction, so enumerating a directory's logfiles doesn't touch the
// filesystem beyond the initial ReadDir.
type Logfile struct {
	directory  string
	identifier string
	datetime   time.Time
	mode       Mode
	file       *os.File
}

// New constructs a Logfile for identifier in directory, timestamped at
// datetime (truncated to whole seconds, matching the on-disk name).
func New(directory, identifier string, datetime time.Time, mode Mode) *Logfile {
	return &Logfile{directory: directory, identifier: identifier, datetime: datetime.Truncate(time.Second), mode: mode}
}

// Name returns the file's base name: "<identifier>-<unix_seconds>.pine".
func (l *Logfile) Name() string {
	return fmt.Sprintf("%s-%d.%s", l.identifier, l.datetime.Unix(), Extension)
}

// Path returns the file's full path.
func (l *Logfile) Path() string { return filepath.Join(l.directory, l.Name()) }

// DateTime returns the timestamp encoded in the file's name.
func (l *Logfile) DateTime() time.Time { return l.datetime }

// Open lazily opens the backing file, creating parent directories and the
// file itself as needed for ModeWrite, or failing if it doesn't exist for
// ModeRead. Subsequent calls return the already-open file.
func (l *Logfile) Open() (*os.File, error) {
	if l.file != nil {
		return l.file, nil
	}
	switch l.mode {
	case ModeWrite:
		if err := os.MkdirAll(l.directory, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(l.Path(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
	case ModeRead:
		f, err := os.Open(l.Path())
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l.file, nil
}

// Write appends p to the logfile, opening it first if necessary.
func (l *Logfile) Write(p []byte) (int, error) {
	f, err := l.Open()
	if err != nil {
		return 0, err
	}
	return f.Write(p)
}

// Flush fsyncs the backing file, matching the original's flush (which
// calls sync_all so a rotation or shutdown can't be reordered behind a
// dirty page by the OS).
func (l *Logfile) Flush() error {
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close closes the backing file if it was opened.
func (l *Logfile) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Delete closes and removes the backing file.
func (l *Logfile) Delete() error {
	_ = l.Close()
	return os.Remove(l.Path())
}

// List enumerates every logfile for identifier in directory, sorted by
// timestamp ascending. Files that don't match the naming convention (the
// extension, or a valid trailing "-<unix_seconds>" segment) are skipped.
func List(directory, identifier string, mode Mode) ([]*Logfile, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*Logfile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != "."+Extension {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		idx := strings.LastIndex(stem, "-")
		if idx < 0 {
			continue
		}
		fileIdentifier, secondsStr := stem[:idx], stem[idx+1:]
		if fileIdentifier != identifier {
			continue
		}
		seconds, err := strconv.ParseInt(secondsStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, New(directory, identifier, time.Unix(seconds, 0).UTC(), mode))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].datetime.Before(out[j].datetime) })
	return out, nil
}
