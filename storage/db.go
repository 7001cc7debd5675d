package storage

import (
	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/OdyseeTeam/fast-txin/validation"

	"github.com/cockroachdb/errors"
	"github.com/genjidb/genji"
	"github.com/genjidb/genji/document"
	"github.com/genjidb/genji/types"
	"github.com/sirupsen/logrus"
)

// InputRecord is one accounted input as stored in the inputs table.
type InputRecord struct {
	Block    string `genji:"block"`
	Height   int64  `genji:"height"`
	Tx       string `genji:"tx"`
	Index    int64  `genji:"vin"`
	Point    string `genji:"point"`
	Coinbase bool   `genji:"coinbase"`
	Script   string `genji:"script"`
	Sequence int64  `genji:"nsequence"`
	Valid    bool   `genji:"valid"`
	Final    bool   `genji:"final"`
	Size     int64  `genji:"size"`
	Sigops   int64  `genji:"sigops"`
	Missing  bool   `genji:"missing"`
}

type BlockRecord struct {
	Hash            string `genji:"hash"`
	Height          int64  `genji:"height"`
	Transactions    int64  `genji:"transactions"`
	Inputs          int64  `genji:"inputs"`
	Sigops          int64  `genji:"sigops"`
	MissingPrevouts int64  `genji:"missing_prevouts"`
	OverLimit       bool   `genji:"over_limit"`
}

func NewInputRecord(t validation.InputTally) InputRecord {
	return InputRecord{
		Block:    t.Block.String(),
		Height:   int64(t.Height),
		Tx:       t.Tx.String(),
		Index:    int64(t.Index),
		Point:    t.Input.PreviousOutput().String(),
		Coinbase: t.Input.PreviousOutput().IsNull(),
		Script:   t.Input.Script().String(chain.RuleAll),
		Sequence: int64(t.Input.Sequence()),
		Valid:    t.Input.IsValid(),
		Final:    t.Input.IsFinal(),
		Size:     int64(t.Input.SerializedSize()),
		Sigops:   int64(t.Sigops),
		Missing:  t.Missing,
	}
}

func NewBlockRecord(t validation.BlockTally) BlockRecord {
	return BlockRecord{
		Hash:            t.Hash.String(),
		Height:          int64(t.Height),
		Transactions:    int64(t.Transactions),
		Inputs:          int64(t.Inputs),
		Sigops:          int64(t.Sigops),
		MissingPrevouts: int64(t.MissingPrevouts),
		OverLimit:       t.OverLimit,
	}
}

type Store struct {
	db *genji.DB
}

// Open opens or creates the store at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := genji.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening store %s", path)
	}

	for _, table := range []string{"blocks", "inputs"} {
		err = db.Exec("CREATE TABLE IF NOT EXISTS " + table)
		if err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "creating table %s", table)
		}
	}
	logrus.Debugf("store opened at %s", path)

	return &Store{db: db}, nil
}

func (s *Store) SaveInput(r InputRecord) error {
	return errors.Wrap(s.db.Exec("INSERT INTO inputs VALUES ?", &r), "saving input")
}

func (s *Store) SaveBlock(r BlockRecord) error {
	return errors.Wrap(s.db.Exec("INSERT INTO blocks VALUES ?", &r), "saving block")
}

// Query runs q and returns every resulting document as a map.
func (s *Store) Query(q string, args ...interface{}) ([]map[string]interface{}, error) {
	res, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer res.Close()

	results := make([]map[string]interface{}, 0)
	err = res.Iterate(func(d types.Document) error {
		var m map[string]interface{}
		err := document.MapScan(d, &m)
		if err != nil {
			return errors.WithStack(err)
		}
		results = append(results, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "closing store")
}
