package chain

import (
	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/wire"
)

const (
	// minInputSize is a point, an empty script and a sequence.
	minInputSize = pointSize + 1 + 4
	// minOutputSize is a value and an empty script.
	minOutputSize = 8 + 1

	maxInputsPerTx  = wire.MaxBlockPayload / minInputSize
	maxOutputsPerTx = wire.MaxBlockPayload / minOutputSize

	witnessMarker = 0x00
	witnessFlag   = 0x01

	// preallocLimit caps the capacity taken from a declared count, which costs
	// nothing to forge. Longer lists grow as their elements are actually read.
	preallocLimit = 1024
)

func prealloc(count uint64) int {
	if count > preallocLimit {
		return preallocLimit
	}
	return int(count)
}

// Witness holds the stack items of one input.
type Witness [][]byte

type Transaction struct {
	Version   uint32
	Inputs    []Input
	Outputs   []Output
	Witnesses []Witness // one per input when the transaction is segwit
	LockTime  uint32
}

// PrevoutScripts resolves the script of a previously created output.
type PrevoutScripts interface {
	Script(point OutputPoint) (*Script, bool)
}

func (tx Transaction) IsSegWit() bool { return len(tx.Witnesses) > 0 }

func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousOutput().IsNull()
}

// FromData decodes a transaction. Unlike Input it reports which part failed.
func (tx *Transaction) FromData(r *stream.Reader) error {
	*tx = Transaction{}

	tx.Version = r.ReadUint32LE()

	// txid:   doubleSHA([nVersion][txins][txouts][nLockTime])
	// wtxid:  doubleSHA([nVersion][marker][flag][txins][txouts][witness][nLockTime])
	// https://en.bitcoin.it/wiki/BIP_0141#Transaction_ID
	segwit := false
	inputCount := r.ReadCompactSize()
	if r.Valid() && inputCount == witnessMarker {
		if flag := r.ReadUint8(); r.Valid() && flag != witnessFlag {
			r.Invalidate(errors.Newf("marker (zero inputs) detected but flag is invalid: 0x%x", flag))
		}
		segwit = true
		inputCount = r.ReadCompactSize()
	}
	if !r.Valid() {
		return errors.Wrap(r.Err(), "reading input count")
	}
	if inputCount > maxInputsPerTx {
		return errors.Newf("too many inputs: %d", inputCount)
	}

	tx.Inputs = make([]Input, 0, prealloc(inputCount))
	for i := uint64(0); i < inputCount; i++ {
		var in Input
		if !in.FromData(r) {
			return errors.Wrapf(readErr(r), "reading input %d", i)
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	outputCount := r.ReadCompactSize()
	if !r.Valid() {
		return errors.Wrap(r.Err(), "reading output count")
	}
	if outputCount > maxOutputsPerTx {
		return errors.Newf("too many outputs: %d", outputCount)
	}

	tx.Outputs = make([]Output, 0, prealloc(outputCount))
	for i := uint64(0); i < outputCount; i++ {
		var out Output
		if !out.FromData(r) {
			return errors.Wrapf(readErr(r), "reading output %d", i)
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if segwit {
		tx.Witnesses = make([]Witness, len(tx.Inputs))
		for i := range tx.Witnesses {
			tx.Witnesses[i] = readWitness(r)
			if !r.Valid() {
				return errors.Wrapf(r.Err(), "reading witness %d", i)
			}
		}
	}

	tx.LockTime = r.ReadUint32LE()
	return errors.Wrap(r.Err(), "reading lock time")
}

func readWitness(r *stream.Reader) Witness {
	count := r.ReadCompactSize()
	if count > maxScriptSize {
		r.Invalidate(errors.Newf("too many witness items: %d", count))
	}
	if !r.Valid() {
		return nil
	}
	witness := make(Witness, 0, prealloc(count))
	for i := uint64(0); i < count && r.Valid(); i++ {
		size := r.ReadCompactSize()
		if size > maxScriptSize {
			r.Invalidate(errors.Wrapf(errScriptTooLarge, "witness item size %d", size))
		}
		witness = append(witness, r.ReadBytes(int(size)))
	}
	return witness
}

// readErr returns the reader's error, or a generic one when a component
// rejected the data without invalidating the stream.
func readErr(r *stream.Reader) error {
	if r.Err() != nil {
		return r.Err()
	}
	return errors.New("invalid data")
}

// ToData writes the witness-free encoding used for the transaction hash.
func (tx Transaction) ToData(w *stream.Writer) {
	w.WriteUint32LE(tx.Version)
	w.WriteCompactSize(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		in.ToData(w)
	}
	w.WriteCompactSize(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		out.ToData(w)
	}
	w.WriteUint32LE(tx.LockTime)
}

// WitnessToData writes the BIP144 encoding when the transaction carries witnesses.
func (tx Transaction) WitnessToData(w *stream.Writer) {
	if !tx.IsSegWit() {
		tx.ToData(w)
		return
	}

	w.WriteUint32LE(tx.Version)
	w.WriteUint8(witnessMarker)
	w.WriteUint8(witnessFlag)
	w.WriteCompactSize(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		in.ToData(w)
	}
	w.WriteCompactSize(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		out.ToData(w)
	}
	for _, witness := range tx.Witnesses {
		w.WriteCompactSize(uint64(len(witness)))
		for _, item := range witness {
			w.WriteCompactSize(uint64(len(item)))
			w.WriteBytes(item)
		}
	}
	w.WriteUint32LE(tx.LockTime)
}

func (tx Transaction) SerializedSize() uint64 {
	size := uint64(8)
	size += uint64(stream.CompactSizeLen(uint64(len(tx.Inputs))))
	for _, in := range tx.Inputs {
		size += in.SerializedSize()
	}
	size += uint64(stream.CompactSizeLen(uint64(len(tx.Outputs))))
	for _, out := range tx.Outputs {
		size += out.SerializedSize()
	}
	return size
}

func (tx Transaction) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(stream.Encode(tx.ToData))
}

// SignatureOperations totals the legacy sigops of every input and output, plus
// the BIP16 redeem script sigops of inputs whose prevout script is known.
func (tx Transaction) SignatureOperations(bip16 bool, prevouts PrevoutScripts) int {
	sigops := 0
	for i := range tx.Inputs {
		n, _ := tx.InputSignatureOperations(i, bip16, prevouts)
		sigops += n
	}
	for _, out := range tx.Outputs {
		sigops += out.Script.Sigops(false)
	}
	return sigops
}

// InputSignatureOperations counts input i, looking its prevout script up in
// prevouts when bip16 is set. resolved is false when the script was needed but
// not found; coinbase inputs spend nothing and never need one.
func (tx Transaction) InputSignatureOperations(i int, bip16 bool, prevouts PrevoutScripts) (sigops int, resolved bool) {
	in := tx.Inputs[i]

	resolved = true
	var prevout *Script
	if bip16 && !in.PreviousOutput().IsNull() {
		if prevouts != nil {
			prevout, resolved = prevouts.Script(in.PreviousOutput())
		} else {
			resolved = false
		}
	}
	return in.SignatureOperations(bip16, prevout), resolved
}
