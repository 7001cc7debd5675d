package chain

import (
	"fmt"
	"io"
	"strings"

	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/wire"
)

// MaxInputSequence marks an input as final.
const MaxInputSequence = wire.MaxTxInSequenceNum

// Input spends a previous output. The zero value is the unset sentinel, and a
// failed decode always leaves an Input in that state.
type Input struct {
	previousOutput OutputPoint
	script         Script
	sequence       uint32
}

func NewInput(previousOutput OutputPoint, script Script, sequence uint32) Input {
	return Input{
		previousOutput: previousOutput,
		script:         script,
		sequence:       sequence,
	}
}

// InputFromBytes decodes an input from an in-memory buffer.
func InputFromBytes(b []byte) (Input, bool) {
	var in Input
	ok := in.FromBytes(b)
	return in, ok
}

// InputFromReader decodes an input from any byte source, including seekable files.
func InputFromReader(r io.Reader) (Input, bool) {
	var in Input
	ok := in.FromReader(r)
	return in, ok
}

func (in *Input) FromBytes(b []byte) bool {
	return in.FromData(stream.NewReaderFromBytes(b))
}

func (in *Input) FromReader(r io.Reader) bool {
	if rs, ok := r.(io.ReadSeeker); ok {
		return in.FromData(stream.NewReaderFromSeeker(rs))
	}
	return in.FromData(stream.NewReader(r))
}

// FromData decodes the previous output, the script and the sequence. Coinbase
// inputs (null previous output) carry an opaque payload instead of a script, so
// their script is read as raw data. Every other script is tokenized with raw
// fallback.
func (in *Input) FromData(r *stream.Reader) bool {
	in.Reset()

	ok := in.previousOutput.FromData(r)

	if ok {
		mode := ParseRawDataFallback
		if in.previousOutput.IsNull() {
			mode = ParseRawData
		}
		ok = in.script.FromData(r, true, mode)
	}

	if ok {
		in.sequence = r.ReadUint32LE()
		ok = r.Valid()
	}

	if !ok {
		in.Reset()
	}
	return ok
}

func (in Input) ToData(w *stream.Writer) {
	in.previousOutput.ToData(w)
	in.script.ToData(w, true)
	w.WriteUint32LE(in.sequence)
}

// Bytes serializes the input. It panics if the encoding disagrees with SerializedSize.
func (in Input) Bytes() []byte {
	data := stream.Encode(in.ToData)
	if uint64(len(data)) != in.SerializedSize() {
		panic(fmt.Sprintf("input encoded to %d bytes, expected %d", len(data), in.SerializedSize()))
	}
	return data
}

func (in Input) WriteTo(w io.Writer) (int64, error) {
	sw := stream.NewWriter(w)
	in.ToData(sw)
	return sw.N(), errors.Wrap(sw.Err(), "writing input")
}

func (in Input) SerializedSize() uint64 {
	return 4 + in.previousOutput.SerializedSize() + in.script.SerializedSize(true)
}

// SignatureOperations counts the legacy sigops of the unlocking script and, once
// BIP16 is active, the sigops of the redeem script it provides for prevout.
//
// prevout is the script of the referenced output as cached by the validation
// stage; nil means it was not provided and contributes nothing. The sum cannot
// overflow: each term is bounded by the per-script operation limit.
func (in Input) SignatureOperations(bip16 bool, prevout *Script) int {
	sigops := in.script.Sigops(false)
	if bip16 {
		sigops += in.script.PayScriptHashSigops(prevout)
	}
	return sigops
}

// IsValid is false only for the unset sentinel. An empty script and a zero
// sequence are both legal, so any one populated field is enough.
func (in Input) IsValid() bool {
	return in.sequence != 0 || in.previousOutput.IsValid() || in.script.IsValid()
}

func (in Input) IsFinal() bool {
	return in.sequence == MaxInputSequence
}

func (in *Input) Reset() {
	in.previousOutput.Reset()
	in.script.Reset()
	in.sequence = 0
}

func (in Input) Equal(other Input) bool {
	return in.sequence == other.sequence &&
		in.previousOutput.Equal(other.previousOutput) &&
		in.script.Equal(other.script)
}

// Copy returns a deep copy that shares no memory with in.
func (in Input) Copy() Input {
	cp := in
	cp.script.data = normalize(in.script.data)
	return cp
}

// Move hands the contents over to the caller and resets in.
func (in *Input) Move() Input {
	moved := *in
	in.Reset()
	return moved
}

func (in Input) String(flags uint32) string {
	var sb strings.Builder
	sb.WriteString(in.previousOutput.String())
	sb.WriteString("\n\t")
	sb.WriteString(in.script.String(flags))
	sb.WriteString("\n\tsequence = ")
	fmt.Fprintf(&sb, "%d\n", in.sequence)
	return sb.String()
}

func (in Input) PreviousOutput() OutputPoint { return in.previousOutput }

func (in *Input) SetPreviousOutput(p OutputPoint) { in.previousOutput = p }

func (in Input) Script() Script { return in.script }

func (in *Input) SetScript(s Script) { in.script = s }

func (in Input) Sequence() uint32 { return in.sequence }

func (in *Input) SetSequence(sequence uint32) { in.sequence = sequence }
