package blockfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/wire"
)

const readBufferSize = 1 << 20

// File reads blocks in storage order from one blkNNNNN.dat file.
type File struct {
	filename    string
	firstHeight uint64
	magic       []byte

	file       *os.File
	r          *stream.Reader
	closed     bool
	currHeight uint64
}

func Open(filename string, firstHeight uint64, net wire.BitcoinNet) *File {
	return &File{
		filename:    filename,
		firstHeight: firstHeight,
		magic:       Magic(net),
	}
}

// Magic is the network's message start, which also prefixes every stored block.
func Magic(net wire.BitcoinNet) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(net))
	return b
}

func (bf File) Filename() string { return bf.filename }

func (bf File) FirstHeight() uint64 { return bf.firstHeight }

func (bf *File) Offset() int64 {
	if bf.r == nil {
		return 0
	}
	return bf.r.Offset()
}

func (bf *File) Close() error {
	if bf.closed {
		return nil
	}

	bf.closed = true
	if bf.file == nil {
		return nil
	}

	err := bf.file.Close()
	return errors.Wrap(err, "closing block file")
}

// NextBlock returns the next block in the file, or an error wrapping io.EOF
// once the file is exhausted.
func (bf *File) NextBlock() (*chain.Block, error) {
	var err error

	if bf.closed {
		return nil, errors.New("blockfile closed")
	}

	if bf.file == nil {
		bf.file, err = os.OpenFile(bf.filename, os.O_RDONLY, 0)
		if err != nil {
			return nil, errors.Wrap(err, "opening block file")
		}
		bf.r = stream.NewReader(bufio.NewReaderSize(bf.file, readBufferSize))
		bf.currHeight = bf.firstHeight
	}

	err = consumeUntilNextBlock(bf.r, bf.magic)
	if err != nil {
		return nil, errors.WithMessagef(err, "file %s, offset %d", bf.filename, bf.Offset())
	}

	blockSize := bf.r.ReadUint32LE()
	if !bf.r.Valid() {
		return nil, errors.Wrap(bf.r.Err(), "reading block size")
	}

	startOffset := bf.Offset()

	block := &chain.Block{}
	err = block.FromData(bf.r)
	if err != nil {
		return nil, errors.WithMessagef(err, "file %s, offset %d", bf.filename, startOffset)
	}

	bytesRead := bf.Offset() - startOffset
	if bytesRead != int64(blockSize) {
		return nil, errors.Newf("expected block size to be %d, but read %d bytes", blockSize, bytesRead)
	}

	block.Size = blockSize

	// blocks are not stored in height order. this is the storage position
	// counted from the file's first height, use the block index for real heights.
	block.Height = bf.currHeight
	bf.currHeight++

	return block, nil
}

// consumeUntilNextBlock consumes 0x00 bytes until it finds the next set of magic bytes
// looks like the .blk files sometimes just have stretches of 0s in them...
func consumeUntilNextBlock(r *stream.Reader, magic []byte) error {
	b := r.ReadBytes(len(magic))
	if !r.Valid() {
		return r.Err()
	} else if bytes.Equal(b, magic) {
		// exit fast for the most common case
		return nil
	}

	if !bytes.Equal(b, make([]byte, len(magic))) {
		return errors.Newf("expected magic bytes %s, got %s", hex.EncodeToString(magic), hex.EncodeToString(b))
	}

	// continue consuming the 0x00 bytes one by one
	var firstByte byte
	for {
		firstByte = r.ReadUint8()
		if !r.Valid() {
			return r.Err()
		}
		if firstByte != 0x00 {
			break
		}
	}

	// after getting through all of the 0x00 bytes, check again for magic bytes
	rest := r.ReadBytes(len(magic) - 1)
	if !r.Valid() {
		return r.Err()
	}

	if firstByte != magic[0] || !bytes.Equal(magic[1:], rest) {
		return errors.Newf("expected magic bytes %s, got %s", hex.EncodeToString(magic),
			hex.EncodeToString(append([]byte{firstByte}, rest...)))
	}

	return nil
}

// IsEOF reports whether err marks the clean end of a block file.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
