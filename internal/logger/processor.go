package logger

import (
	"fmt"
	"io"

	"github.com/kenneth/pinenut/internal/chunk"
	"github.com/kenneth/pinenut/internal/codec"
	"github.com/kenneth/pinenut/internal/compress"
	"github.com/kenneth/pinenut/internal/crypto"
)

// accumulationScratchLen is the size of the AccumulationEncoder's scratch
// buffer: large enough to hold most records without a mid-record flush,
// small enough that a Reset between chunks is cheap.
const accumulationScratchLen = 256

// streamCipher is the shape common to crypto.Encryptor and
// crypto.NullEncryptor, letting the processor treat encryption and the
// no-encryption configuration identically.
type streamCipher interface {
	Write(p []byte) (int, error)
	Close() error
}

// chunkWriter adapts a *chunk.Chunk's error-returning Write to io.Writer,
// the sink at the bottom of every chunk's encode/compress/encrypt
// pipeline.
type chunkWriter struct{ c *chunk.Chunk }

func (w chunkWriter) Write(p []byte) (int, error) {
	if err := w.c.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// sinkAdapter adapts an io.Writer to codec.Sink for the AccumulationEncoder,
// which speaks in terms of Sink rather than io.Writer.
type sinkAdapter struct{ w io.Writer }

func (s sinkAdapter) Sink(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

// processor runs the per-chunk encode -> compress -> encrypt pipeline
// described in the specification's Logger-core component. It is rebuilt
// from scratch every time the logger starts a new chunk, since both the
// compressor and the cipher are one-shot streams that get finalized
// (End/Close) when the chunk rotates.
type processor struct {
	key              crypto.EncryptionKey
	encrypted        bool
	compressionLevel int

	accum      *codec.AccumulationEncoder
	compressor compress.Compressor
	cipher     streamCipher
}

// newProcessor builds a processor bound to key/encrypted/level, not yet
// attached to any chunk; call reset before the first Process call.
func newProcessor(key crypto.EncryptionKey, encrypted bool, level int) *processor {
	return &processor{key: key, encrypted: encrypted, compressionLevel: level}
}

// reset tears down any previous pipeline (without finalizing it — callers
// that need the previous chunk's stream properly ended must call process
// with an opRotate operation first) and builds a fresh one writing into c.
func (p *processor) reset(c *chunk.Chunk) error {
	sink := chunkWriter{c: c}

	var cph streamCipher
	if p.encrypted {
		enc, err := crypto.NewEncryptor(p.key, sink)
		if err != nil {
			return fmt.Errorf("logger: new encryptor: %w", err)
		}
		cph = enc
	} else {
		cph = &crypto.NullEncryptor{Sink: sink}
	}

	var cmp compress.Compressor
	if p.compressionLevel > 0 {
		zc, err := compress.NewZstdCompressor(cph, p.compressionLevel)
		if err != nil {
			return fmt.Errorf("logger: new compressor: %w", err)
		}
		cmp = zc
	} else {
		cmp = compress.NullCompressor{Sink: cph}
	}

	p.cipher = cph
	p.compressor = cmp
	p.accum = codec.NewAccumulationEncoder(sinkAdapter{w: cmp}, accumulationScratchLen)
	return nil
}

// process executes op's pipeline effect against c, matching the three
// cases the Logger's per-operation dispatch can request.
func (p *processor) process(op operation, c *chunk.Chunk) error {
	switch op.kind {
	case opInput:
		if err := op.record.Encode(p.accum); err != nil {
			return fmt.Errorf("logger: encode record: %w", err)
		}
		if err := p.accum.Flush(); err != nil {
			return fmt.Errorf("logger: flush accumulator: %w", err)
		}
		if err := p.compressor.Flush(); err != nil {
			return fmt.Errorf("logger: flush compressor: %w", err)
		}
		return c.SetEndDateTime(op.record.Meta.DateTime)

	case opRotate:
		if err := p.accum.Flush(); err != nil {
			return fmt.Errorf("logger: flush accumulator: %w", err)
		}
		if err := p.compressor.Close(); err != nil {
			return fmt.Errorf("logger: end compressor: %w", err)
		}
		if err := p.cipher.Close(); err != nil {
			return fmt.Errorf("logger: finalize cipher: %w", err)
		}
		return nil

	case opWriteback:
		// Writeback never touches the pipeline: the chunk's bytes already
		// on disk (or in the buffer) are left exactly as they are, only
		// its header's writeback flag changes, which the Logger itself
		// handles before process is ever called.
		return nil

	default:
		return fmt.Errorf("logger: unknown operation kind %d", op.kind)
	}
}
