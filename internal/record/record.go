// Package record defines the Pinenut log record data model: the severity
// level, the optional source location, the per-record metadata, and the
// record itself.
package record

import "time"

// Level is the severity of a log record. The zero value is invalid; use
// LevelInfo as the default, matching the original implementation's
// Meta::default.
type Level uint8

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelVerbose
)

// levelNames indexes by Level-1, matching the original's 1-based enum.
var levelNames = [...]string{"error", "warn", "info", "debug", "verbose"}

// String returns the lower-case name of the level, or "unknown" if the
// value is out of range.
func (l Level) String() string {
	if l < LevelError || l > LevelVerbose {
		return "unknown"
	}
	return levelNames[l-1]
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelError && l <= LevelVerbose
}

// Location is the place in the caller's code where a record was produced.
// Every field is optional: callers that don't capture file/line/func info
// leave them unset.
type Location struct {
	File string
	Func string
	Line uint32

	hasFile bool
	hasFunc bool
	hasLine bool
}

// NewLocation builds a Location from possibly-empty strings/zero lines.
// An empty file or func and a zero line are recorded as absent; use the
// With* setters below to mark a field present even when it is empty.
func NewLocation(file, fn string, line uint32) Location {
	return Location{
		File: file, Func: fn, Line: line,
		hasFile: file != "", hasFunc: fn != "", hasLine: line != 0,
	}
}

// WithFile returns a copy of loc with File set and marked present, even if
// empty.
func (loc Location) WithFile(file string) Location {
	loc.File, loc.hasFile = file, true
	return loc
}

// WithFunc returns a copy of loc with Func set and marked present.
func (loc Location) WithFunc(fn string) Location {
	loc.Func, loc.hasFunc = fn, true
	return loc
}

// WithLine returns a copy of loc with Line set and marked present.
func (loc Location) WithLine(line uint32) Location {
	loc.Line, loc.hasLine = line, true
	return loc
}

// HasFile reports whether the file field is present.
func (loc Location) HasFile() bool { return loc.hasFile }

// HasFunc reports whether the func field is present.
func (loc Location) HasFunc() bool { return loc.hasFunc }

// HasLine reports whether the line field is present.
func (loc Location) HasLine() bool { return loc.hasLine }

// Meta carries the fields common to every record: level, timestamp,
// source location, an optional free-form tag, and an optional thread id.
type Meta struct {
	Level    Level
	DateTime time.Time
	Location Location
	Tag      string
	hasTag   bool
	ThreadID uint64
	hasTID   bool
}

// NewMeta constructs Meta with the given level, timestamp and location; tag
// and thread id default to absent and may be set with WithTag/WithThreadID.
func NewMeta(level Level, dt time.Time, loc Location) Meta {
	return Meta{Level: level, DateTime: dt.UTC(), Location: loc}
}

// DefaultMeta mirrors the original's Meta::default(): Info level, now(),
// empty location, no tag, no thread id.
func DefaultMeta(now time.Time) Meta {
	return NewMeta(LevelInfo, now, Location{})
}

// WithTag returns a copy of m with Tag set and marked present.
func (m Meta) WithTag(tag string) Meta {
	m.Tag, m.hasTag = tag, true
	return m
}

// HasTag reports whether a tag is present.
func (m Meta) HasTag() bool { return m.hasTag }

// WithThreadID returns a copy of m with ThreadID set and marked present.
func (m Meta) WithThreadID(id uint64) Meta {
	m.ThreadID, m.hasTID = id, true
	return m
}

// HasThreadID reports whether a thread id is present.
func (m Meta) HasThreadID() bool { return m.hasTID }

// Record is a single log entry: metadata plus its textual content.
type Record struct {
	Meta    Meta
	Content string
}

// NewRecord builds a Record.
func NewRecord(meta Meta, content string) Record {
	return Record{Meta: meta, Content: content}
}
