package chunk

import (
	"errors"
	"io"

	"github.com/kenneth/pinenut/internal/codec"
	"github.com/kenneth/pinenut/internal/crypto"
)

// ReadErrorKind classifies a Reader failure, mirroring the original
// implementation's reader::Error enum.
type ReadErrorKind int

const (
	// ReadErrInvalid means a header was read but failed validation
	// (bad magic), i.e. the stream contains garbage rather than a chunk.
	ReadErrInvalid ReadErrorKind = iota
	// ReadErrUnexpectedEnd means the stream ended mid-header or
	// mid-payload.
	ReadErrUnexpectedEnd
	// ReadErrIO means the underlying reader returned a non-EOF error.
	ReadErrIO
)

// ReadError is returned by Reader's methods.
type ReadError struct {
	Kind ReadErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	switch e.Kind {
	case ReadErrInvalid:
		return "chunk: invalid chunk header"
	case ReadErrUnexpectedEnd:
		return "chunk: unexpected end of stream"
	default:
		return "chunk: io error: " + e.Err.Error()
	}
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader reads a sequential stream of chunks (a logfile's contents, or the
// chunk region copied verbatim during extraction).
type Reader struct {
	r io.Reader
}

// NewReader wraps r for chunk-at-a-time reading.
func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// ReadHeaderOrReachToEnd reads the next chunk header. It returns (nil, nil)
// when the stream ends cleanly on a chunk boundary (no more chunks), or a
// *ReadError otherwise.
func (r *Reader) ReadHeaderOrReachToEnd() (*Header, error) {
	buf := make([]byte, HeaderLen)
	n, err := io.ReadFull(r.r, buf)
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return nil, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, &ReadError{Kind: ReadErrUnexpectedEnd, Err: err}
	case err != nil:
		return nil, &ReadError{Kind: ReadErrIO, Err: err}
	}
	h, uerr := UnmarshalHeader(buf)
	if uerr != nil {
		return nil, &ReadError{Kind: ReadErrInvalid, Err: uerr}
	}
	return &h, nil
}

// ReadPayload streams exactly n bytes of payload into sink in bounded
// chunks, so a single giant record never forces one huge allocation. The
// piece buffer comes from crypto's global buffer pool rather than a fresh
// allocation per chunk read.
func (r *Reader) ReadPayload(n int, sink codec.Sink) error {
	const pieceLen = 32 * 1024
	pool := crypto.GetGlobalBufferPool()
	piece := pool.Get(pieceLen)
	defer pool.Put(piece)
	remaining := n
	for remaining > 0 {
		want := pieceLen
		if remaining < want {
			want = remaining
		}
		read, err := io.ReadFull(r.r, piece[:want])
		if read > 0 {
			if serr := sink.Sink(piece[:read]); serr != nil {
				return &ReadError{Kind: ReadErrIO, Err: serr}
			}
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return &ReadError{Kind: ReadErrUnexpectedEnd, Err: err}
		case err != nil:
			return &ReadError{Kind: ReadErrIO, Err: err}
		}
		remaining -= read
	}
	return nil
}

// Skip discards n bytes of payload without decoding them, used by the
// extractor which copies whole chunks verbatim.
func (r *Reader) Skip(n int) error {
	_, err := io.CopyN(io.Discard, r.r, int64(n))
	if errors.Is(err, io.EOF) {
		return &ReadError{Kind: ReadErrUnexpectedEnd, Err: err}
	}
	if err != nil {
		return &ReadError{Kind: ReadErrIO, Err: err}
	}
	return nil
}
