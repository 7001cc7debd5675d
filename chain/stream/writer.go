package stream

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/valyala/bytebufferpool"
)

// Writer wraps an io.Writer. The first write error sticks and later writes are dropped.
type Writer struct {
	w   io.Writer
	n   int64
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) N() int64 { return w.n }

func (w *Writer) Err() error { return w.err }

func (w *Writer) WriteBytes(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		w.err = errors.WithStack(err)
	}
}

func (w *Writer) WriteUint8(v uint8) {
	w.WriteBytes([]byte{v})
}

func (w *Writer) WriteUint16LE(v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	w.WriteBytes(b)
}

func (w *Writer) WriteUint32LE(v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	w.WriteBytes(b)
}

func (w *Writer) WriteUint64LE(v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	w.WriteBytes(b)
}

func (w *Writer) WriteHash(h chainhash.Hash) {
	w.WriteBytes(h[:])
}

func (w *Writer) WriteCompactSize(v uint64) {
	switch {
	case v < 0xfd:
		w.WriteUint8(uint8(v))
	case v <= math.MaxUint16:
		w.WriteUint8(0xfd)
		w.WriteUint16LE(uint16(v))
	case v <= math.MaxUint32:
		w.WriteUint8(0xfe)
		w.WriteUint32LE(uint32(v))
	default:
		w.WriteUint8(0xff)
		w.WriteUint64LE(v)
	}
}

// CompactSizeLen is the encoded length of v as written by WriteCompactSize.
func CompactSizeLen(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= math.MaxUint16:
		return 3
	case v <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// Encode runs fn against a pooled buffer and returns a copy of what it wrote.
func Encode(fn func(w *Writer)) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fn(NewWriter(buf))

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
