// Package parse inverts the logger's write pipeline (decrypt, then
// decompress, then decode) to turn a .pine logfile back into a sequence
// of records, tolerating the truncated final cipher block a
// crash-recovered writeback chunk can leave behind. Grounded on
// original_source/pinenut/src/parser.rs.
package parse

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/codec"
	"github.com/kenneth/pinenut/internal/compress"
	"github.com/kenneth/pinenut/internal/crypto"
	"github.com/kenneth/pinenut/internal/record"
)

// ChunkErrors aggregates the per-chunk decrypt/decompress/decode failures
// collected while parsing a file; any other I/O error aborts immediately
// instead of being collected here.
type ChunkErrors struct {
	Errors []error
}

func (e *ChunkErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("parse: %d chunk error(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ChunkErrors) add(err error) { e.Errors = append(e.Errors, err) }

// Parse reads every chunk in the file at path in order, decrypting (if
// secretKey is non-nil and a chunk carries a recipient key),
// decompressing and decoding each one, invoking callback for every
// successfully decoded record. Derived symmetric keys are cached by the
// chunk's embedded public key so a file encrypted once for many chunks
// only pays the ECDH cost once per distinct key. Decrypt/decompress/decode
// errors are confined to the chunk that produced them and collected into
// a returned *ChunkErrors; any other error aborts immediately.
func Parse(path string, secretKey *crypto.SecretKey, callback func(record.Record)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("parse: open %s: %w", path, err)
	}
	defer f.Close()

	keyCache := map[crypto.PublicKey]crypto.EncryptionKey{}
	chunkErrs := &ChunkErrors{}
	cr := chunk.NewReader(f)

	for {
		h, err := cr.ReadHeaderOrReachToEnd()
		if err != nil {
			if rerr, ok := err.(*chunk.ReadError); ok && rerr.Kind == chunk.ReadErrUnexpectedEnd {
				break // partial trailing header: end of usable data
			}
			return classifyFramingError(path, err)
		}
		if h == nil {
			break
		}

		if h.Version != chunk.FormatVersion {
			if err := cr.Skip(int(h.Length)); err != nil {
				return classifyPayloadError(path, err)
			}
			continue // unknown format version: skip its payload, not an error
		}

		if err := parseChunk(cr, *h, secretKey, keyCache, callback); err != nil {
			var rerr *chunk.ReadError
			if errors.As(err, &rerr) {
				// A framing error surfaced while reading this chunk's
				// payload (the header declared more bytes than the file
				// holds): this is corruption, not a chunk-confined
				// decrypt/decompress/decode failure, so it aborts the
				// whole parse rather than joining chunkErrs.
				return classifyPayloadError(path, rerr)
			}
			chunkErrs.add(fmt.Errorf("chunk starting %s: %w", h.Start, err))
		}
	}

	if len(chunkErrs.Errors) > 0 {
		return chunkErrs
	}
	return nil
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

func parseChunk(
	cr *chunk.Reader,
	h chunk.Header,
	secretKey *crypto.SecretKey,
	keyCache map[crypto.PublicKey]crypto.EncryptionKey,
	callback func(record.Record),
) error {
	rp := &recordParser{callback: callback}

	decomp, err := compress.NewZstdDecompressor(rp)
	if err != nil {
		return fmt.Errorf("decompress: new decompressor: %w", err)
	}

	var decryptClose func(writeback bool) error
	var decryptSink codec.Sink

	if h.PubKey == crypto.EmptyPublicKey {
		nd := &crypto.NullDecryptor{Sink: decomp}
		decryptClose = nd.Close
		decryptSink = codec.SinkFunc(func(p []byte) error { _, err := nd.Write(p); return err })
	} else {
		if secretKey == nil {
			return fmt.Errorf("decrypt: chunk is encrypted but no secret key was provided")
		}
		key, ok := keyCache[h.PubKey]
		if !ok {
			key, err = crypto.EncryptionKeyFor(*secretKey, h.PubKey)
			if err != nil {
				return fmt.Errorf("decrypt: derive key: %w", err)
			}
			keyCache[h.PubKey] = key
		}
		d, err := crypto.NewDecryptor(key, decomp)
		if err != nil {
			return fmt.Errorf("decrypt: new decryptor: %w", err)
		}
		decryptClose = d.Close
		decryptSink = codec.SinkFunc(func(p []byte) error { _, err := d.Write(p); return err })
	}

	if err := cr.ReadPayload(int(h.Length), decryptSink); err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	if err := decryptClose(h.Writeback); err != nil {
		return fmt.Errorf("decrypt: finalize: %w", err)
	}
	if err := decomp.Close(); err != nil {
		return fmt.Errorf("decompress: finalize: %w", err)
	}
	if rp.err != nil {
		return fmt.Errorf("decode: %w", rp.err)
	}
	return nil
}

// recordParser is the decompressor's sink: it buffers decoded-format
// bytes and repeatedly decodes records out of the buffer as they become
// available, since a single decompressed write may contain zero, one or
// many whole records but never a partial one spanning chunks (records
// never straddle chunk boundaries by construction).
type recordParser struct {
	buf      []byte
	callback func(record.Record)
	err      error
}

func (rp *recordParser) Write(p []byte) (int, error) {
	rp.buf = append(rp.buf, p...)
	for len(rp.buf) > 0 {
		d := codec.NewDecoder(rp.buf)
		rec, err := record.DecodeRecord(d)
		if err != nil {
			var de *codec.DecodingError
			if errors.As(err, &de) && de.Kind == codec.ErrUnexpectedEnd {
				break // wait for more bytes
			}
			rp.err = err
			return len(p), nil
		}
		consumed := len(rp.buf) - d.Remaining()
		rp.buf = rp.buf[consumed:]
		rp.callback(rec)
	}
	return len(p), nil
}
