package chain

import (
	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/cockroachdb/errors"
	"github.com/golang/protobuf/proto"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/lbryio/lbcd/txscript"
	"github.com/lbryio/lbcutil"
	pb "github.com/lbryio/types/v2/go"
)

type Output struct {
	Value  uint64
	Script Script
}

func (o *Output) FromData(r *stream.Reader) bool {
	*o = Output{}
	o.Value = r.ReadUint64LE()
	if !r.Valid() || !o.Script.FromData(r, true, ParseRawDataFallback) {
		*o = Output{}
		return false
	}
	return true
}

func (o Output) ToData(w *stream.Writer) {
	w.WriteUint64LE(o.Value)
	o.Script.ToData(w, true)
}

func (o Output) SerializedSize() uint64 {
	return 8 + o.Script.SerializedSize(true)
}

// OutputInfo is what the scanner derives from an output script.
type OutputInfo struct {
	Class       txscript.ScriptClass
	Address     lbcutil.Address
	ClaimScript *txscript.ClaimScript
	Purchase    *pb.Purchase
}

// Classify extracts the script class, the paid address and any LBRY claim or
// purchase carried by the output.
func (o Output) Classify(params *chaincfg.Params) (*OutputInfo, error) {
	script := o.Script.Bytes()

	class, addresses, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil, errors.Wrap(err, "extracting addresses")
	}

	info := &OutputInfo{Class: class}
	if class == txscript.NonStandardTy {
		return info, nil
	}

	if len(addresses) == 1 {
		info.Address = addresses[0]
	}

	claimScript, err := txscript.ExtractClaimScript(script)
	if err == nil && claimScript != nil {
		info.ClaimScript = claimScript
		return info, nil
	}

	if class == txscript.NullDataTy {
		// other data carriers are not an error, they just are not purchases
		if purchase, err := ParsePurchase(script); err == nil {
			info.Purchase = purchase
		}
	}
	return info, nil
}

// ClaimID is the id of the claim created by this output, given where the
// output sits. Only OP_CLAIMNAME outputs create claims.
func (i OutputInfo) ClaimID(point OutputPoint) string {
	if i.ClaimScript == nil || i.ClaimScript.Opcode != txscript.OP_CLAIMNAME {
		return ""
	}
	return point.ClaimID()
}

// purchaseMarker prefixes the protobuf payload of an LBRY purchase.
const purchaseMarker = 'P'

// ParsePurchase decodes an LBRY purchase: OP_RETURN followed by a single push of
// 'P' and a protobuf Purchase.
func ParsePurchase(script []byte) (*pb.Purchase, error) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, errors.New("purchase must start with OP_RETURN")
	}
	if !txscript.IsPushOnlyScript(script[1:]) {
		return nil, errors.New("purchase payload must be push only")
	}

	pushes, err := txscript.PushedData(script[1:])
	if err != nil {
		return nil, errors.Wrap(err, "reading purchase payload")
	}
	if len(pushes) != 1 || len(pushes[0]) == 0 || pushes[0][0] != purchaseMarker {
		return nil, errors.New("not a purchase")
	}

	p := &pb.Purchase{}
	err = proto.Unmarshal(pushes[0][1:], p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return p, nil
}
