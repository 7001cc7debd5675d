package validation

import (
	"sync"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

// PrevoutCache holds the scripts of previously seen outputs so that BIP16
// sigops can be counted for the inputs spending them. Entries are never
// removed: this is a lookup aid, not a UTXO set.
type PrevoutCache interface {
	Put(point chain.OutputPoint, script chain.Script) error
	Script(point chain.OutputPoint) (*chain.Script, bool)
}

type MemoryCache struct {
	mu      sync.RWMutex
	scripts map[chain.OutputPoint][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{scripts: make(map[chain.OutputPoint][]byte)}
}

func (m *MemoryCache) Put(point chain.OutputPoint, script chain.Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[point] = script.Bytes()
	return nil
}

func (m *MemoryCache) Script(point chain.OutputPoint) (*chain.Script, bool) {
	m.mu.RLock()
	b, ok := m.scripts[point]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s := chain.NewScript(b)
	return &s, true
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scripts)
}

// LevelCache keeps prevout scripts in a LevelDB keyed by the 36 byte serialized point.
type LevelCache struct {
	db *leveldb.DB
}

func OpenLevelCache(path string) (*LevelCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening prevout cache")
	}
	return &LevelCache{db: db}, nil
}

func (l *LevelCache) Put(point chain.OutputPoint, script chain.Script) error {
	return errors.Wrap(l.db.Put(point.Bytes(), script.Bytes(), nil), "caching prevout")
}

func (l *LevelCache) Script(point chain.OutputPoint) (*chain.Script, bool) {
	b, err := l.db.Get(point.Bytes(), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			logrus.Errorf("%+v", errors.Wrapf(err, "reading prevout %s", point))
		}
		return nil, false
	}
	s := chain.NewScript(b)
	return &s, true
}

func (l *LevelCache) Close() error {
	return errors.Wrap(l.db.Close(), "closing prevout cache")
}
