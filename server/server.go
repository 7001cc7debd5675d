package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/OdyseeTeam/fast-txin/chain/stream"
	"github.com/OdyseeTeam/fast-txin/storage"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/lbryio/lbcd/txscript"
	"github.com/sirupsen/logrus"
)

// DecodedInput is the /decode response.
type DecodedInput struct {
	Point    string `json:"point"`
	Coinbase bool   `json:"coinbase"`
	Script   string `json:"script"`
	Class    string `json:"class"`
	Raw      bool   `json:"raw"`
	Sequence uint32 `json:"sequence"`
	Valid    bool   `json:"valid"`
	Final    bool   `json:"final"`
	Size     uint64 `json:"size"`
	Sigops   int    `json:"sigops"`
}

func NewDecodedInput(in chain.Input) DecodedInput {
	return DecodedInput{
		Point:    in.PreviousOutput().String(),
		Coinbase: in.PreviousOutput().IsNull(),
		Script:   in.Script().String(chain.RuleAll),
		Class:    in.Script().Class().String(),
		Raw:      in.Script().IsRaw(),
		Sequence: in.Sequence(),
		Valid:    in.IsValid(),
		Final:    in.IsFinal(),
		Size:     in.SerializedSize(),
		Sigops:   in.SignatureOperations(false, nil),
	}
}

// ClassifiedOutput is the /output response.
type ClassifiedOutput struct {
	Class           string `json:"class"`
	Address         string `json:"address,omitempty"`
	Claim           string `json:"claim,omitempty"`
	ClaimName       string `json:"claim_name,omitempty"`
	ClaimID         string `json:"claim_id,omitempty"`
	PurchaseClaimID string `json:"purchase_claim_id,omitempty"`
	Sigops          int    `json:"sigops"`
}

// NewClassifiedOutput renders info. point locates the output and may be nil,
// in which case no claim id is derived.
func NewClassifiedOutput(out chain.Output, info *chain.OutputInfo, point *chain.OutputPoint) ClassifiedOutput {
	c := ClassifiedOutput{Class: info.Class.String(), Sigops: out.Script.Sigops(false)}
	if point != nil {
		c.ClaimID = info.ClaimID(*point)
	}
	if info.Address != nil {
		c.Address = info.Address.EncodeAddress()
	}
	if cs := info.ClaimScript; cs != nil {
		c.ClaimName = string(cs.Name)
		switch cs.Opcode {
		case txscript.OP_CLAIMNAME:
			c.Claim = "claim"
		case txscript.OP_UPDATECLAIM:
			c.Claim = "update"
		case txscript.OP_SUPPORTCLAIM:
			c.Claim = "support"
		}
	}
	if info.Purchase != nil {
		c.PurchaseClaimID = hex.EncodeToString(chain.ReverseBytes(info.Purchase.GetClaimHash()))
	}
	return c
}

// DecodedTransaction is the /tx response.
type DecodedTransaction struct {
	Hash        string             `json:"hash"`
	Version     uint32             `json:"version"`
	Coinbase    bool               `json:"coinbase"`
	SegWit      bool               `json:"segwit"`
	Size        uint64             `json:"size"`
	WitnessSize int                `json:"witness_size"`
	LockTime    uint32             `json:"lock_time"`
	Sigops      int                `json:"sigops"`
	Inputs      []DecodedInput     `json:"inputs"`
	Outputs     []ClassifiedOutput `json:"outputs"`
}

func NewDecodedTransaction(tx chain.Transaction, params *chaincfg.Params) (DecodedTransaction, error) {
	hash := tx.Hash()
	d := DecodedTransaction{
		Hash:        hash.String(),
		Version:     tx.Version,
		Coinbase:    tx.IsCoinbase(),
		SegWit:      tx.IsSegWit(),
		Size:        tx.SerializedSize(),
		WitnessSize: len(stream.Encode(tx.WitnessToData)),
		LockTime:    tx.LockTime,
		Sigops:      tx.SignatureOperations(false, nil),
		Inputs:      make([]DecodedInput, 0, len(tx.Inputs)),
		Outputs:     make([]ClassifiedOutput, 0, len(tx.Outputs)),
	}

	for _, in := range tx.Inputs {
		d.Inputs = append(d.Inputs, NewDecodedInput(in))
	}
	for n, out := range tx.Outputs {
		info, err := out.Classify(params)
		if err != nil {
			return d, errors.WithMessagef(err, "output %d", n)
		}
		point := chain.NewOutputPoint(hash, uint32(n))
		d.Outputs = append(d.Outputs, NewClassifiedOutput(out, info, &point))
	}
	return d, nil
}

// NewMux serves /decode, /tx and /output, and /sql when store is not nil.
func NewMux(store *storage.Store, params *chaincfg.Params) *http.ServeMux {
	httpServeMux := http.NewServeMux()
	httpServeMux.Handle("/decode", decode())
	httpServeMux.Handle("/tx", decodeTx(params))
	httpServeMux.Handle("/output", classify(params))
	if store != nil {
		httpServeMux.Handle("/sql", query(store))
	}
	return httpServeMux
}

// Start serves on addr until the listener fails.
func Start(addr string, store *storage.Store, params *chaincfg.Params) error {
	logrus.Infof("listening on %s", addr)
	return errors.WithStack(http.ListenAndServe(addr, NewMux(store, params)))
}

func query(store *storage.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.FormValue("query")
		if q == "" {
			writeError(w, http.StatusBadRequest, errors.New("query is required"))
			return
		}

		results, err := store.Query(q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, results)
	})
}

func decode() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := hex.DecodeString(r.FormValue("hex"))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding hex"))
			return
		}

		in, ok := chain.InputFromBytes(raw)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, errors.New("not a transaction input"))
			return
		}
		writeJSON(w, NewDecodedInput(in))
	})
}

func decodeTx(params *chaincfg.Params) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := hex.DecodeString(r.FormValue("hex"))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding hex"))
			return
		}

		var tx chain.Transaction
		err = tx.FromData(stream.NewReaderFromBytes(raw))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}

		d, err := NewDecodedTransaction(tx, params)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, d)
	})
}

// classify takes a bare output script, without the length prefix, and
// optionally the output's txid:index to derive a claim id.
func classify(params *chaincfg.Params) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := hex.DecodeString(r.FormValue("script"))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding hex"))
			return
		}

		var point *chain.OutputPoint
		if p := r.FormValue("point"); p != "" {
			parsed, err := chain.ParseOutputPoint(p)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			point = &parsed
		}

		out := chain.Output{Script: chain.NewScript(raw)}
		info, err := out.Classify(params)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, NewClassifiedOutput(out, info, point))
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logrus.Errorf("%+v", err)
	}
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}
