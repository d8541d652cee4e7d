package parse

import (
	"fmt"
	"io"
	"os"

	"github.com/kenneth/pinenut/internal/crypto"
	"github.com/kenneth/pinenut/internal/record"
)

// Formatter renders a single record as text.
type Formatter interface {
	Format(w io.Writer, r record.Record) error
}

// DefaultFormatter renders the specification's plain-text line format:
// "[L] YYYY-MM-DD HH:MM:SS.mmm|thread_id|file:line|tag|content\n", with
// the datetime rendered in the local timezone and any absent field (file,
// line, tag, thread id) left blank rather than omitted.
type DefaultFormatter struct{}

var levelChar = map[record.Level]byte{
	record.LevelError:   'E',
	record.LevelWarn:    'W',
	record.LevelInfo:    'I',
	record.LevelDebug:   'D',
	record.LevelVerbose: 'V',
}

// Format writes r to w in the default plain-text layout.
func (DefaultFormatter) Format(w io.Writer, r record.Record) error {
	lc := levelChar[r.Meta.Level]
	if lc == 0 {
		lc = '?'
	}
	local := r.Meta.DateTime.Local()

	var threadID string
	if r.Meta.HasThreadID() {
		threadID = fmt.Sprintf("%d", r.Meta.ThreadID)
	}

	var fileLine string
	if r.Meta.Location.HasFile() {
		fileLine = r.Meta.Location.File
		if r.Meta.Location.HasLine() {
			fileLine = fmt.Sprintf("%s:%d", fileLine, r.Meta.Location.Line)
		}
	}

	_, err := fmt.Fprintf(w, "[%c] %s|%s|%s|%s|%s\n",
		lc,
		local.Format("2006-01-02 15:04:05.000"),
		threadID,
		fileLine,
		r.Meta.Tag,
		r.Content,
	)
	return err
}

// ToFile parses path's chunks as Parse does, formatting every decoded
// record with fmtr and appending it to dest (created if necessary). It
// returns the same *ChunkErrors aggregate Parse would, after every record
// that could be decoded has been written.
func ToFile(path string, secretKey *crypto.SecretKey, dest string, fmtr Formatter) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("parse: create %s: %w", dest, err)
	}
	defer out.Close()

	var formatErr error
	parseErr := Parse(path, secretKey, func(r record.Record) {
		if formatErr != nil {
			return
		}
		formatErr = fmtr.Format(out, r)
	})
	if formatErr != nil {
		return fmt.Errorf("parse: format record: %w", formatErr)
	}
	return parseErr
}
