package record

import (
	"io"
	"time"

	"github.com/kenneth/pinenut/internal/codec"
)

// Encode writes loc's wire representation: three optional fields (file,
// func, line) in declaration order.
func (loc Location) Encode(w io.Writer) error {
	if err := codec.WriteOptionalString(w, loc.File, loc.hasFile); err != nil {
		return err
	}
	if err := codec.WriteOptionalString(w, loc.Func, loc.hasFunc); err != nil {
		return err
	}
	return codec.WriteOptionalUint32(w, loc.Line, loc.hasLine)
}

// DecodeLocation reads a Location previously written by Location.Encode.
func DecodeLocation(d *codec.Decoder) (Location, error) {
	file, hasFile, err := d.ReadOptionalString()
	if err != nil {
		return Location{}, err
	}
	fn, hasFunc, err := d.ReadOptionalString()
	if err != nil {
		return Location{}, err
	}
	line, hasLine, err := d.ReadOptionalUint32()
	if err != nil {
		return Location{}, err
	}
	return Location{File: file, Func: fn, Line: line, hasFile: hasFile, hasFunc: hasFunc, hasLine: hasLine}, nil
}

// Encode writes meta's wire representation: level tag byte, datetime as a
// pair of varints (whole seconds since the Unix epoch, clamped to zero if
// negative, followed by the nanosecond remainder), location, optional
// tag, optional thread id.
func (m Meta) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{byte(m.Level)}); err != nil {
		return err
	}
	secs := m.DateTime.Unix()
	if secs < 0 {
		secs = 0
	}
	if err := codec.WriteUvarint(w, uint64(secs)); err != nil {
		return err
	}
	if err := codec.WriteUvarint(w, uint64(m.DateTime.Nanosecond())); err != nil {
		return err
	}
	if err := m.Location.Encode(w); err != nil {
		return err
	}
	if err := codec.WriteOptionalString(w, m.Tag, m.hasTag); err != nil {
		return err
	}
	return codec.WriteOptionalUint64(w, m.ThreadID, m.hasTID)
}

// DecodeMeta reads a Meta previously written by Meta.Encode.
func DecodeMeta(d *codec.Decoder) (Meta, error) {
	levelByte, err := d.ReadByte()
	if err != nil {
		return Meta{}, err
	}
	level := Level(levelByte)
	if !level.Valid() {
		return Meta{}, &codec.DecodingError{Kind: codec.ErrInvalidVariant}
	}
	secs, err := d.ReadUvarint()
	if err != nil {
		return Meta{}, err
	}
	nanos, err := d.ReadUvarint()
	if err != nil {
		return Meta{}, err
	}
	if nanos > 999_999_999 {
		return Meta{}, &codec.DecodingError{Kind: codec.ErrDateTime}
	}
	loc, err := DecodeLocation(d)
	if err != nil {
		return Meta{}, err
	}
	tag, hasTag, err := d.ReadOptionalString()
	if err != nil {
		return Meta{}, err
	}
	tid, hasTID, err := d.ReadOptionalUint64()
	if err != nil {
		return Meta{}, err
	}
	return Meta{
		Level:    level,
		DateTime: time.Unix(int64(secs), int64(nanos)).UTC(),
		Location: loc,
		Tag:      tag,
		hasTag:   hasTag,
		ThreadID: tid,
		hasTID:   hasTID,
	}, nil
}

// Encode writes r's wire representation: its Meta followed by the
// length-prefixed content string.
func (r Record) Encode(w io.Writer) error {
	if err := r.Meta.Encode(w); err != nil {
		return err
	}
	return codec.WriteString(w, r.Content)
}

// DecodeRecord reads a Record previously written by Record.Encode.
func DecodeRecord(d *codec.Decoder) (Record, error) {
	meta, err := DecodeMeta(d)
	if err != nil {
		return Record{}, err
	}
	content, err := d.ReadString()
	if err != nil {
		return Record{}, err
	}
	return Record{Meta: meta, Content: content}, nil
}
