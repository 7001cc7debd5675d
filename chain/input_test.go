package chain

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/lbryio/lbcd/txscript"
	"github.com/lbryio/lbcutil"
	"github.com/stretchr/testify/require"
)

const (
	// first input of the first bitcoin payment (block 170)
	spendInputHex = "169e1e83e930853391bc6f35f605c6754cfead57cf8387639d3b4096c54f18f4" +
		"00000000" +
		"48" + "47304402204e45e16932b8af514961a1d3a1a25fdf3f4f7732e9d624c6c61548ab5fb8cd41" +
		"0220181522ec8eca07de4860a4acdd12909d831cc56cbbac4622082221a8768d1d0901" +
		"ffffffff"

	// input of the genesis coinbase
	coinbaseInputHex = "0000000000000000000000000000000000000000000000000000000000000000" +
		"ffffffff" +
		"4d" + "04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368616e63656c6c6f72" +
		"206f6e206272696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73" +
		"ffffffff"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustScript(t *testing.T, b *txscript.ScriptBuilder) []byte {
	t.Helper()
	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func TestInputRoundTrip(t *testing.T) {
	for name, h := range map[string]string{
		"spend":    spendInputHex,
		"coinbase": coinbaseInputHex,
	} {
		t.Run(name, func(t *testing.T) {
			raw := mustHex(t, h)

			in, ok := InputFromBytes(raw)
			require.True(t, ok)
			require.True(t, in.IsValid())
			require.True(t, in.IsFinal())

			require.Equal(t, raw, in.Bytes())
			require.Equal(t, uint64(len(raw)), in.SerializedSize())

			var buf bytes.Buffer
			n, err := in.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, int64(len(raw)), n)
			require.Equal(t, raw, buf.Bytes())
		})
	}
}

func TestInputFields(t *testing.T) {
	in, ok := InputFromBytes(mustHex(t, spendInputHex))
	require.True(t, ok)

	require.Equal(t, "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16", in.PreviousOutput().Hash.String())
	require.Equal(t, uint32(0), in.PreviousOutput().Index)
	require.False(t, in.PreviousOutput().IsNull())
	require.Len(t, in.Script().Bytes(), 0x48)
	require.False(t, in.Script().IsRaw())
	require.Equal(t, uint32(0xffffffff), in.Sequence())
}

func TestInputEntryPointsAgree(t *testing.T) {
	raw := mustHex(t, spendInputHex)

	fromBytes, ok := InputFromBytes(raw)
	require.True(t, ok)

	fromSeeker, ok := InputFromReader(bytes.NewReader(raw))
	require.True(t, ok)

	// a plain reader, no seeking
	fromReader, ok := InputFromReader(io.MultiReader(bytes.NewReader(raw[:10]), bytes.NewReader(raw[10:])))
	require.True(t, ok)

	var fromCursor Input
	r := stream.NewReaderFromBytes(raw)
	require.True(t, fromCursor.FromData(r))
	require.Equal(t, int64(len(raw)), r.Offset())

	require.True(t, fromBytes.Equal(fromSeeker))
	require.True(t, fromBytes.Equal(fromReader))
	require.True(t, fromBytes.Equal(fromCursor))
}

func TestInputFromPipe(t *testing.T) {
	raw := mustHex(t, spendInputHex)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()

	go func() {
		pw.Write(raw)
		pw.Close()
	}()

	// *os.File is an io.ReadSeeker even when it cannot seek
	fromPipe, ok := InputFromReader(pr)
	require.True(t, ok)

	fromBytes, ok := InputFromBytes(raw)
	require.True(t, ok)
	require.True(t, fromBytes.Equal(fromPipe))
}

func TestInputDecodeLeavesTrailingBytes(t *testing.T) {
	raw := append(mustHex(t, spendInputHex), 0xde, 0xad)
	r := stream.NewReaderFromBytes(raw)

	var in Input
	require.True(t, in.FromData(r))
	require.Equal(t, in.SerializedSize(), uint64(r.Offset()))
	require.Equal(t, []byte{0xde, 0xad}, r.ReadRemaining())
}

func TestInputTruncatedResets(t *testing.T) {
	for _, h := range []string{spendInputHex, coinbaseInputHex} {
		raw := mustHex(t, h)
		for k := 0; k < len(raw); k++ {
			in := NewInput(NewOutputPoint(chainhash.DoubleHashH([]byte("x")), 7), NewScript([]byte{txscript.OP_TRUE}), 9)

			require.False(t, in.FromBytes(raw[:k]), "prefix of %d bytes", k)
			require.True(t, in.Equal(Input{}), "prefix of %d bytes", k)
			require.Equal(t, Input{}, in, "prefix of %d bytes", k)
			require.False(t, in.IsValid())
		}
	}
}

func TestInputOversizeScriptRejected(t *testing.T) {
	raw := mustHex(t, spendInputHex[:72]+"feffffff7f")

	in, ok := InputFromBytes(raw)
	require.False(t, ok)
	require.Equal(t, Input{}, in)
}

func TestInputValidity(t *testing.T) {
	var in Input
	require.False(t, in.IsValid())

	withSequence := in
	withSequence.SetSequence(1)
	require.True(t, withSequence.IsValid())

	withPoint := in
	withPoint.SetPreviousOutput(NewOutputPoint(chainhash.DoubleHashH([]byte("prev")), 0))
	require.True(t, withPoint.IsValid())

	withScript := in
	withScript.SetScript(NewScript([]byte{txscript.OP_TRUE}))
	require.True(t, withScript.IsValid())

	// the coinbase sentinel alone does not make an input valid
	withNull := in
	withNull.SetPreviousOutput(NullOutputPoint())
	require.False(t, withNull.IsValid())
}

func TestInputCoinbaseScriptMode(t *testing.T) {
	script := mustScript(t, txscript.NewScriptBuilder().AddOp(txscript.OP_DUP).AddOp(txscript.OP_CHECKSIG))
	spendPoint := NewOutputPoint(chainhash.DoubleHashH([]byte("prev")), 3)

	coinbase, ok := InputFromBytes(NewInput(NullOutputPoint(), NewRawScript(script), 0).Bytes())
	require.True(t, ok)
	require.True(t, coinbase.Script().IsRaw())
	require.Equal(t, txscript.NonStandardTy, coinbase.Script().Class())

	spend, ok := InputFromBytes(NewInput(spendPoint, NewScript(script), 0).Bytes())
	require.True(t, ok)
	require.False(t, spend.Script().IsRaw())

	// an unparseable script degrades to raw bytes instead of failing
	truncatedPush := []byte{txscript.OP_PUSHDATA1}
	fallback, ok := InputFromBytes(NewInput(spendPoint, NewRawScript(truncatedPush), 0).Bytes())
	require.True(t, ok)
	require.True(t, fallback.Script().IsRaw())
	require.Equal(t, truncatedPush, fallback.Script().Bytes())
}

func TestInputCoinbasePayloadHasNoSigops(t *testing.T) {
	payload := []byte{0x03, 0x01, 0x02, 0x03, txscript.OP_CHECKSIG, txscript.OP_CHECKMULTISIG}

	coinbase, ok := InputFromBytes(NewInput(NullOutputPoint(), NewRawScript(payload), MaxInputSequence).Bytes())
	require.True(t, ok)
	require.True(t, coinbase.Script().IsRaw())
	require.Equal(t, 0, coinbase.SignatureOperations(false, nil))
	require.Equal(t, 0, coinbase.Script().Sigops(true))

	// the same bytes behind a real point are tokenized and counted
	spend, ok := InputFromBytes(NewInput(NewOutputPoint(chainhash.DoubleHashH([]byte("prev")), 0), NewRawScript(payload), MaxInputSequence).Bytes())
	require.True(t, ok)
	require.False(t, spend.Script().IsRaw())
	require.Equal(t, 21, spend.SignatureOperations(false, nil))
}

func TestInputIsFinal(t *testing.T) {
	tests := []struct {
		sequence uint32
		final    bool
	}{
		{0, false},
		{1, false},
		{0xfffffffe, false},
		{0xffffffff, true},
	}
	for _, tt := range tests {
		in := NewInput(OutputPoint{}, Script{}, tt.sequence)
		require.Equal(t, tt.final, in.IsFinal(), "sequence %d", tt.sequence)
	}
}

func TestInputSignatureOperations(t *testing.T) {
	pk1 := bytes.Repeat([]byte{0x02}, 33)
	pk2 := bytes.Repeat([]byte{0x03}, 33)
	pk3 := append([]byte{0x02}, bytes.Repeat([]byte{0x11}, 32)...)
	sig := bytes.Repeat([]byte{0x30}, 71)

	redeem := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).AddData(pk1).AddData(pk2).AddData(pk3).AddOp(txscript.OP_3).
		AddOp(txscript.OP_CHECKMULTISIG))
	p2sh := NewScript(mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).AddData(lbcutil.Hash160(redeem)).AddOp(txscript.OP_EQUAL)))
	p2pkh := NewScript(mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).AddData(lbcutil.Hash160(pk1)).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)))

	point := NewOutputPoint(chainhash.DoubleHashH([]byte("prev")), 0)

	t.Run("pay to script hash", func(t *testing.T) {
		unlock := NewScript(mustScript(t, txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(sig).AddData(sig).AddData(redeem)))
		in := NewInput(point, unlock, MaxInputSequence)

		s := unlock.Sigops(false)
		p := unlock.PayScriptHashSigops(&p2sh)
		require.Equal(t, 0, s)
		require.Equal(t, 3, p)

		require.Equal(t, s, in.SignatureOperations(false, &p2sh))
		require.Equal(t, s+p, in.SignatureOperations(true, &p2sh))
	})

	t.Run("bare sigops", func(t *testing.T) {
		unlock := NewScript(mustScript(t, txscript.NewScriptBuilder().
			AddOp(txscript.OP_CHECKSIG).AddOp(txscript.OP_CHECKSIGVERIFY).AddOp(txscript.OP_CHECKMULTISIG)))
		in := NewInput(point, unlock, MaxInputSequence)

		// the legacy count charges an unprefixed multisig the maximum of 20
		require.Equal(t, 22, in.SignatureOperations(false, nil))
		require.Equal(t, 22, in.SignatureOperations(true, &p2pkh))
		require.Equal(t, 22, in.SignatureOperations(true, &p2sh))
		require.Equal(t, 22, in.SignatureOperations(true, nil))
	})

	t.Run("redeem script counts", func(t *testing.T) {
		script := NewScript(redeem)
		require.Equal(t, 20, script.Sigops(false))
		require.Equal(t, 3, script.Sigops(true))
	})
}

func TestInputCopyAndEquality(t *testing.T) {
	src, ok := InputFromBytes(mustHex(t, spendInputHex))
	require.True(t, ok)

	cp := src.Copy()
	require.True(t, cp.Equal(src))

	cp.SetSequence(0)
	require.False(t, cp.Equal(src))
	require.Equal(t, uint32(0xffffffff), src.Sequence())

	// the copy owns its script bytes
	cp = src.Copy()
	cp.Script().Bytes()[0] ^= 0xff
	require.False(t, cp.Equal(src))
	require.Equal(t, byte(0x47), src.Script().Bytes()[0])

	other := src.Copy()
	other.SetPreviousOutput(NewOutputPoint(src.PreviousOutput().Hash, 1))
	require.False(t, other.Equal(src))
}

func TestInputMoveResetsSource(t *testing.T) {
	src, ok := InputFromBytes(mustHex(t, spendInputHex))
	require.True(t, ok)
	expected := src.Copy()

	moved := src.Move()
	require.True(t, moved.Equal(expected))
	require.Equal(t, Input{}, src)
}

func TestInputResetIsIdempotent(t *testing.T) {
	in, ok := InputFromBytes(mustHex(t, spendInputHex))
	require.True(t, ok)

	in.Reset()
	require.Equal(t, Input{}, in)
	in.Reset()
	require.Equal(t, Input{}, in)
}

func TestInputNullPointDefaults(t *testing.T) {
	raw := NewInput(NullOutputPoint(), Script{}, 0).Bytes()
	require.Equal(t, strings.Repeat("00", 32)+"ffffffff"+"00"+"00000000", hex.EncodeToString(raw))

	in, ok := InputFromBytes(raw)
	require.True(t, ok)
	require.True(t, in.PreviousOutput().IsNull())
	require.False(t, in.IsValid())
	require.False(t, in.IsFinal())
}

func TestInputString(t *testing.T) {
	lock := mustScript(t, txscript.NewScriptBuilder().
		AddInt64(500000).AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).AddOp(txscript.OP_DROP))
	point := NewOutputPoint(chainhash.DoubleHashH([]byte("prev")), 2)
	in := NewInput(point, NewScript(lock), 42)

	lines := strings.Split(in.String(RuleNone), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, point.String(), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "\t"))
	require.Contains(t, lines[1], "OP_NOP2")
	require.Equal(t, "\tsequence = 42", lines[2])
	require.Equal(t, "", lines[3])

	require.Contains(t, in.String(RuleAll), "OP_CHECKLOCKTIMEVERIFY")

	coinbase, ok := InputFromBytes(mustHex(t, coinbaseInputHex))
	require.True(t, ok)
	require.Contains(t, coinbase.String(RuleAll), "\t[04ffff001d")
}
