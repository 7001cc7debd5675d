package chain

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/txscript"
	"github.com/lbryio/lbcd/wire"
)

// ParseMode selects how script bytes are interpreted while decoding.
type ParseMode int

const (
	// ParseStrict fails the decode when the bytes do not tokenize as a script.
	ParseStrict ParseMode = iota
	// ParseRawData keeps the bytes opaque. Used for coinbase payloads.
	ParseRawData
	// ParseRawDataFallback tokenizes and keeps the bytes opaque if that fails.
	ParseRawDataFallback
)

func (m ParseMode) String() string {
	switch m {
	case ParseStrict:
		return "strict"
	case ParseRawData:
		return "raw_data"
	case ParseRawDataFallback:
		return "raw_data_fallback"
	default:
		return "unknown"
	}
}

// Rule flags consumed by Script.String.
const (
	RuleBIP16 uint32 = 1 << iota
	RuleBIP65
	RuleBIP112

	RuleNone uint32 = 0
	RuleAll         = RuleBIP16 | RuleBIP65 | RuleBIP112
)

// maxScriptSize bounds the length prefix. It limits parsing, not evaluation.
const maxScriptSize = wire.MaxBlockPayload

var errScriptTooLarge = errors.New("script length exceeds max block payload")

type Script struct {
	data []byte
	raw  bool
}

// NewScript copies b and tokenizes it, falling back to raw bytes on failure.
func NewScript(b []byte) Script {
	s := Script{data: normalize(b)}
	s.raw = !tokenizes(s.data)
	return s
}

// NewRawScript copies b without tokenizing it.
func NewRawScript(b []byte) Script {
	return Script{data: normalize(b), raw: true}
}

func normalize(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func tokenizes(b []byte) bool {
	_, err := txscript.DisasmString(b)
	return err == nil
}

// FromData decodes a script. With prefix the length is read as a compact size,
// otherwise the script runs to the end of the stream.
func (s *Script) FromData(r *stream.Reader, prefix bool, mode ParseMode) bool {
	s.Reset()

	var data []byte
	if prefix {
		size := r.ReadCompactSize()
		if r.Valid() && size > maxScriptSize {
			r.Invalidate(errors.Wrapf(errScriptTooLarge, "size %d", size))
		}
		data = r.ReadBytes(int(size))
	} else {
		data = r.ReadRemaining()
	}

	if !r.Valid() {
		s.Reset()
		return false
	}

	s.data = normalize(data)
	switch mode {
	case ParseRawData:
		s.raw = true
	case ParseRawDataFallback:
		s.raw = !tokenizes(s.data)
	default:
		if !tokenizes(s.data) {
			r.Invalidate(errors.Newf("malformed script %s", hex.EncodeToString(s.data)))
			s.Reset()
			return false
		}
	}
	return true
}

func (s Script) ToData(w *stream.Writer, prefix bool) {
	if prefix {
		w.WriteCompactSize(uint64(len(s.data)))
	}
	w.WriteBytes(s.data)
}

func (s Script) SerializedSize(prefix bool) uint64 {
	size := uint64(len(s.data))
	if prefix {
		size += uint64(stream.CompactSizeLen(size))
	}
	return size
}

func (s Script) Bytes() []byte { return s.data }

// IsRaw reports whether the bytes are held opaque rather than as tokenized operations.
func (s Script) IsRaw() bool { return s.raw }

func (s Script) Class() txscript.ScriptClass {
	if s.raw {
		return txscript.NonStandardTy
	}
	return txscript.GetScriptClass(s.data)
}

// IsValid reports whether the script holds any bytes.
func (s Script) IsValid() bool { return len(s.data) > 0 }

func (s *Script) Reset() {
	s.data = nil
	s.raw = false
}

func (s Script) Equal(other Script) bool {
	return bytes.Equal(s.data, other.data)
}

// Sigops counts signature operations up to the first parse failure. When
// accurate, a multisig preceded by a small integer counts that many keys,
// otherwise it counts as the maximum of 20. Raw scripts are a single opaque
// payload and count zero, whatever bytes they hold.
func (s Script) Sigops(accurate bool) int {
	if s.raw {
		return 0
	}
	if accurate {
		return txscript.GetPreciseSigOpCount(nil, s.data, false)
	}
	return txscript.GetSigOpCount(s.data)
}

// PayScriptHashSigops counts the sigops of the redeem script carried by this
// unlocking script when prevout is pay-to-script-hash. A nil prevout counts zero.
func (s Script) PayScriptHashSigops(prevout *Script) int {
	if s.raw || prevout == nil || !txscript.IsPayToScriptHash(prevout.data) {
		return 0
	}
	return txscript.GetPreciseSigOpCount(s.data, prevout.data, true)
}

// String disassembles the script. Opcodes repurposed by soft forks are named by
// their fork only when the matching rule flag is set.
func (s Script) String(flags uint32) string {
	if s.raw {
		return "[" + hex.EncodeToString(s.data) + "]"
	}

	disasm, err := txscript.DisasmString(s.data)
	if err != nil {
		return "[" + hex.EncodeToString(s.data) + "]"
	}

	tokens := strings.Fields(disasm)
	for i, token := range tokens {
		switch {
		case token == "OP_CHECKLOCKTIMEVERIFY" && flags&RuleBIP65 == 0:
			tokens[i] = "OP_NOP2"
		case token == "OP_CHECKSEQUENCEVERIFY" && flags&RuleBIP112 == 0:
			tokens[i] = "OP_NOP3"
		}
	}
	return strings.Join(tokens, " ")
}
