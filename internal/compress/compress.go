// Package compress implements the streaming compression stage of the chunk
// pipeline. The original implementation (original_source/pinenut/src/compress.rs)
// wraps zstd_safe's push-based CCtx/DCtx behind a three-operation
// Input/Flush/End contract and a null passthrough for when compression is
// disabled; this package follows the same shape using
// github.com/klauspost/compress/zstd, the same library used for streaming
// compression in other_examples/n-backup and quay-claircore.
package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// DefaultLevel is the compression level used when a Logger's Config
// doesn't specify one, matching ZstdCompressor::DEFAULT_LEVEL in the
// original implementation.
const DefaultLevel = 10

// Compressor accepts plaintext via Write ("Input"), may push out whatever
// it has buffered via Flush without ending the stream, and finalizes the
// stream via Close ("End").
type Compressor interface {
	io.Writer
	Flush() error
	io.Closer
}

// Decompressor accepts compressed bytes via Write ("Input") and finalizes
// via Close ("End"), after which all decompressed bytes have been pushed
// to the sink given at construction.
type Decompressor interface {
	io.Writer
	io.Closer
}

// NewZstdCompressor returns a Compressor that streams zstd-compressed
// output to sink at the given level (clamped to zstd's supported range by
// the underlying library).
func NewZstdCompressor(sink io.Writer, level int) (Compressor, error) {
	enc, err := zstd.NewWriter(sink, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// NewZstdDecompressor returns a Decompressor that streams decompressed
// output to sink. Because klauspost/compress's zstd.Decoder is pull-based
// (it reads from an io.Reader) while the chunk pipeline is push-based (it
// feeds bytes in as they're decrypted), this pairs the decoder with an
// io.Pipe: Write feeds the pipe, and a background goroutine drains the
// decoder into sink. Close must be called exactly once, after the last
// Write, to unblock the goroutine and surface any decode error.
func NewZstdDecompressor(sink io.Writer) (Decompressor, error) {
	pr, pw := io.Pipe()
	dec, err := zstd.NewReader(pr)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(sink, dec)
		dec.Close()
		done <- err
	}()

	return &pipeDecompressor{pw: pw, done: done}, nil
}

type pipeDecompressor struct {
	pw   *io.PipeWriter
	done chan error
}

func (d *pipeDecompressor) Write(p []byte) (int, error) { return d.pw.Write(p) }

func (d *pipeDecompressor) Close() error {
	_ = d.pw.Close()
	return <-d.done
}

// NullCompressor is a passthrough Compressor used when a Logger's Config
// disables compression, mirroring the original's blanket
// impl<T> Compressor for Option<T> implementation for None.
type NullCompressor struct{ Sink io.Writer }

// Write copies p straight to Sink.
func (n NullCompressor) Write(p []byte) (int, error) { return n.Sink.Write(p) }

// Flush is a no-op: there is nothing buffered to push out early.
func (n NullCompressor) Flush() error { return nil }

// Close is a no-op: there is no stream trailer to finalize.
func (n NullCompressor) Close() error { return nil }

// NullDecompressor is the inverse passthrough.
type NullDecompressor struct{ Sink io.Writer }

// Write copies p straight to Sink.
func (n NullDecompressor) Write(p []byte) (int, error) { return n.Sink.Write(p) }

// Close is a no-op.
func (n NullDecompressor) Close() error { return nil }
