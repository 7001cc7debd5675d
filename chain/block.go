package chain

import (
	"time"

	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
)

// HeaderSize is the LBRY block header: the bitcoin header plus the claim trie root.
const HeaderSize = 112

// maxTxPerBlock bounds the transaction count by the smallest possible transaction.
const maxTxPerBlock = maxInputsPerTx

type Header struct {
	Version       uint32
	PrevBlock     chainhash.Hash
	MerkleRoot    chainhash.Hash
	ClaimTrieRoot chainhash.Hash
	Timestamp     time.Time
	Bits          uint32
	Nonce         uint32
}

func (h *Header) FromData(r *stream.Reader) error {
	h.Version = r.ReadUint32LE()
	h.PrevBlock = r.ReadHash()
	h.MerkleRoot = r.ReadHash()
	h.ClaimTrieRoot = r.ReadHash()
	h.Timestamp = time.Unix(int64(r.ReadUint32LE()), 0)
	h.Bits = r.ReadUint32LE()
	h.Nonce = r.ReadUint32LE()
	return errors.Wrap(r.Err(), "reading header")
}

func (h Header) ToData(w *stream.Writer) {
	w.WriteUint32LE(h.Version)
	w.WriteHash(h.PrevBlock)
	w.WriteHash(h.MerkleRoot)
	w.WriteHash(h.ClaimTrieRoot)
	w.WriteUint32LE(uint32(h.Timestamp.Unix()))
	w.WriteUint32LE(h.Bits)
	w.WriteUint32LE(h.Nonce)
}

func (h Header) BlockHash() chainhash.Hash {
	return chainhash.DoubleHashH(stream.Encode(h.ToData))
}

type Block struct {
	Height       uint64
	Size         uint32
	Header       Header
	Hash         chainhash.Hash
	Transactions []Transaction
}

func (b *Block) FromData(r *stream.Reader) error {
	err := b.Header.FromData(r)
	if err != nil {
		return err
	}
	b.Hash = b.Header.BlockHash()

	txCount := r.ReadCompactSize()
	if !r.Valid() {
		return errors.Wrap(r.Err(), "reading transaction count")
	}
	if txCount > maxTxPerBlock {
		return errors.Newf("too many transactions: %d", txCount)
	}

	b.Transactions = make([]Transaction, 0, prealloc(txCount))
	for i := uint64(0); i < txCount; i++ {
		var tx Transaction
		err = tx.FromData(r)
		if err != nil {
			return errors.WithMessagef(err, "block %s, tx %d", b.Hash, i)
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return nil
}

// SignatureOperations totals the sigops of every transaction in the block.
func (b Block) SignatureOperations(bip16 bool, prevouts PrevoutScripts) int {
	sigops := 0
	for _, tx := range b.Transactions {
		sigops += tx.SignatureOperations(bip16, prevouts)
	}
	return sigops
}
