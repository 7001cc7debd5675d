package blockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/txscript"
	"github.com/lbryio/lbcd/wire"
	"github.com/stretchr/testify/require"
)

func testBlock(nonce uint32) []byte {
	coinbase := chain.Transaction{
		Version: 1,
		Inputs: []chain.Input{
			chain.NewInput(chain.NullOutputPoint(), chain.NewRawScript([]byte{0x03, 0x01, 0x02, 0x03}), chain.MaxInputSequence),
		},
		Outputs: []chain.Output{
			{Value: 50, Script: chain.NewScript([]byte{txscript.OP_TRUE})},
		},
	}
	header := chain.Header{
		Version:    1,
		PrevBlock:  chainhash.DoubleHashH([]byte("prev")),
		MerkleRoot: coinbase.Hash(),
		Timestamp:  time.Unix(1466646588, 0),
		Nonce:      nonce,
	}
	return stream.Encode(func(w *stream.Writer) {
		header.ToData(w)
		w.WriteCompactSize(1)
		coinbase.ToData(w)
	})
}

func writeBlockFile(t *testing.T, blocks ...[]byte) string {
	t.Helper()
	magic := Magic(wire.MainNet)

	raw := stream.Encode(func(w *stream.Writer) {
		for i, b := range blocks {
			if i == 1 {
				// padding between blocks
				w.WriteBytes(make([]byte, 9))
			}
			w.WriteBytes(magic)
			w.WriteUint32LE(uint32(len(b)))
			w.WriteBytes(b)
		}
	})

	filename := filepath.Join(t.TempDir(), "blk00000.dat")
	require.NoError(t, os.WriteFile(filename, raw, 0644))
	return filename
}

func TestNextBlock(t *testing.T) {
	first, second := testBlock(1), testBlock(2)
	bf := Open(writeBlockFile(t, first, second), 100, wire.MainNet)
	defer bf.Close()

	block, err := bf.NextBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(100), block.Height)
	require.Equal(t, uint32(len(first)), block.Size)
	require.Equal(t, uint32(1), block.Header.Nonce)
	require.True(t, block.Transactions[0].IsCoinbase())
	require.True(t, block.Transactions[0].Inputs[0].Script().IsRaw())

	block, err = bf.NextBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(101), block.Height)
	require.Equal(t, uint32(2), block.Header.Nonce)

	_, err = bf.NextBlock()
	require.True(t, IsEOF(err), "%+v", err)
}

func TestNextBlockBadMagic(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "blk00001.dat")
	require.NoError(t, os.WriteFile(filename, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0644))

	bf := Open(filename, 0, wire.MainNet)
	defer bf.Close()

	_, err := bf.NextBlock()
	require.Error(t, err)
	require.False(t, IsEOF(err))
}

func TestNextBlockSizeMismatch(t *testing.T) {
	b := testBlock(1)
	raw := stream.Encode(func(w *stream.Writer) {
		w.WriteBytes(Magic(wire.MainNet))
		w.WriteUint32LE(uint32(len(b) + 1))
		w.WriteBytes(b)
	})
	filename := filepath.Join(t.TempDir(), "blk00002.dat")
	require.NoError(t, os.WriteFile(filename, raw, 0644))

	bf := Open(filename, 0, wire.MainNet)
	defer bf.Close()

	_, err := bf.NextBlock()
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected block size")
}

func TestClosedFile(t *testing.T) {
	bf := Open(writeBlockFile(t, testBlock(1)), 0, wire.MainNet)
	require.NoError(t, bf.Close())
	require.NoError(t, bf.Close())

	_, err := bf.NextBlock()
	require.Error(t, err)
}
