package stream

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
)

// Reader is a cursor over an io.Reader that remembers the first failure.
// Once invalid, every read returns a zero value and the reader stays invalid,
// so a decoder can read a whole structure and check Valid once at the end.
type Reader struct {
	r      io.Reader
	offset int64
	err    error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func NewReaderFromBytes(b []byte) *Reader {
	return NewReader(bytes.NewReader(b))
}

// NewReaderFromSeeker starts the offset count at the seeker's current position.
// Pipes and sockets satisfy io.ReadSeeker but fail to seek; those count from 0.
func NewReaderFromSeeker(rs io.ReadSeeker) *Reader {
	reader := NewReader(rs)
	if offset, err := rs.Seek(0, io.SeekCurrent); err == nil {
		reader.offset = offset
	}
	return reader
}

func (r *Reader) Valid() bool { return r.err == nil }

func (r *Reader) Err() error { return r.err }

// Offset is the position of the next byte to be read.
func (r *Reader) Offset() int64 { return r.offset }

// Invalidate marks the reader failed. The first cause wins.
func (r *Reader) Invalidate(err error) {
	if r.err != nil {
		return
	}
	if err == nil {
		err = errors.New("stream invalidated")
	}
	r.err = err
}

func (r *Reader) ReadBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.Invalidate(errors.Newf("negative read length %d", n))
		return nil
	}

	b := make([]byte, n)
	read, err := io.ReadFull(r.r, b)
	r.offset += int64(read)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = errors.Wrapf(err, "expected to read %d bytes, only got %d", n, read)
		}
		r.Invalidate(errors.WithStack(err))
		return nil
	}
	return b
}

// ReadRemaining consumes the stream until EOF. An empty remainder is not a failure.
func (r *Reader) ReadRemaining() []byte {
	if r.err != nil {
		return nil
	}
	b, err := io.ReadAll(r.r)
	r.offset += int64(len(b))
	if err != nil {
		r.Invalidate(errors.Wrap(err, "read remaining"))
		return nil
	}
	return b
}

func (r *Reader) ReadUint8() uint8 {
	b := r.ReadBytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadUint16LE() uint16 {
	b := r.ReadBytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadUint32LE() uint32 {
	b := r.ReadBytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadUint64LE() uint64 {
	b := r.ReadBytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadHash() chainhash.Hash {
	var h chainhash.Hash
	b := r.ReadBytes(chainhash.HashSize)
	if b != nil {
		copy(h[:], b)
	}
	return h
}

// ReadCompactSize reads a bitcoin variable length integer. Non-canonical
// encodings are rejected so that a round trip reproduces the input bytes.
func (r *Reader) ReadCompactSize() uint64 {
	size := r.ReadUint8()
	if r.err != nil {
		return 0
	}

	var v, lowest uint64
	switch size {
	case 0xff:
		v, lowest = r.ReadUint64LE(), 0x100000000
	case 0xfe:
		v, lowest = uint64(r.ReadUint32LE()), 0x10000
	case 0xfd:
		v, lowest = uint64(r.ReadUint16LE()), 0xfd
	default:
		return uint64(size)
	}

	if r.err != nil {
		return 0
	}
	if v < lowest {
		r.Invalidate(errors.Newf("non-canonical compact size %d (prefix 0x%x)", v, size))
		return 0
	}
	return v
}
