package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/wire"
	"golang.org/x/crypto/ripemd160"
)

// NullIndex is the output index of the coinbase sentinel point.
const NullIndex = wire.MaxPrevOutIndex

// pointSize is a 32 byte hash followed by a 4 byte index.
const pointSize = chainhash.HashSize + 4

// OutputPoint locates an output of a previous transaction.
type OutputPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

func NewOutputPoint(hash chainhash.Hash, index uint32) OutputPoint {
	return OutputPoint{Hash: hash, Index: index}
}

// NullOutputPoint returns the sentinel carried by coinbase inputs.
func NullOutputPoint() OutputPoint {
	return OutputPoint{Index: NullIndex}
}

func (p *OutputPoint) FromData(r *stream.Reader) bool {
	p.Reset()
	p.Hash = r.ReadHash()
	p.Index = r.ReadUint32LE()
	if !r.Valid() {
		p.Reset()
		return false
	}
	return true
}

func (p OutputPoint) ToData(w *stream.Writer) {
	w.WriteHash(p.Hash)
	w.WriteUint32LE(p.Index)
}

func (p OutputPoint) Bytes() []byte {
	return stream.Encode(p.ToData)
}

func (p OutputPoint) SerializedSize() uint64 { return pointSize }

// IsNull reports whether this is the coinbase sentinel: zero hash and max index.
func (p OutputPoint) IsNull() bool {
	return p.Index == NullIndex && p.Hash == chainhash.Hash{}
}

// IsValid reports whether the point references a real transaction. Neither the
// zero value nor the coinbase sentinel does.
func (p OutputPoint) IsValid() bool {
	return p.Hash != chainhash.Hash{}
}

func (p *OutputPoint) Reset() {
	*p = OutputPoint{}
}

func (p OutputPoint) Equal(other OutputPoint) bool {
	return p == other
}

func (p OutputPoint) String() string {
	return fmt.Sprintf("%s:%d", p.Hash, p.Index)
}

// ParseOutputPoint reads the "txid:index" form produced by String.
func ParseOutputPoint(s string) (OutputPoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return OutputPoint{}, errors.Newf("output point %q has no index", s)
	}

	hash, err := chainhash.NewHashFromStr(s[:i])
	if err != nil {
		return OutputPoint{}, errors.Wrapf(err, "output point %q", s)
	}
	index, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return OutputPoint{}, errors.Wrapf(err, "output point %q", s)
	}
	return NewOutputPoint(*hash, uint32(index)), nil
}

// ClaimID is the LBRY claim id of a claim created at this outpoint.
func (p OutputPoint) ClaimID() string {
	// the hash is already stored in wire (little-endian) order
	buf := make([]byte, 0, pointSize)
	buf = append(buf, p.Hash[:]...)
	index := make([]byte, 4)
	binary.BigEndian.PutUint32(index, p.Index)
	buf = append(buf, index...)

	s := sha256.Sum256(buf)
	r := ripemd160.New()
	r.Write(s[:])

	return hex.EncodeToString(ReverseBytes(r.Sum(nil)))
}

// ReverseBytes reverses a byte slice. useful for switching endian-ness
func ReverseBytes(b []byte) []byte {
	r := make([]byte, len(b))
	for left, right := 0, len(b)-1; left <= right; left, right = left+1, right-1 {
		r[left], r[right] = b[right], b[left]
	}
	return r
}
