package validation

import (
	"sync"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg/chainhash"
	"github.com/sirupsen/logrus"
)

// MaxBlockSigops is the legacy per-block limit (max block size / 50).
const MaxBlockSigops = 1000000 / 50

type Config struct {
	BIP16          bool
	Workers        int // parallel sigop counters per block
	MaxBlockSigops int // 0 means MaxBlockSigops
}

// BlockTally is the accounting result for one block.
type BlockTally struct {
	Height          uint64
	Hash            chainhash.Hash
	Transactions    int
	Inputs          int
	Sigops          int
	MissingPrevouts int
	OverLimit       bool
}

// InputTally is the accounting result for one input.
type InputTally struct {
	Height  uint64
	Block   chainhash.Hash
	Tx      chainhash.Hash
	Index   int
	Input   chain.Input
	Sigops  int
	Missing bool // no cached prevout script was available
}

type Totals struct {
	Blocks          int
	Transactions    int
	Inputs          int
	Sigops          int
	MissingPrevouts int
	OverLimitBlocks int
}

// Accountant is the validation stage in front of Input.SignatureOperations: it
// fills the prevout cache from the outputs it sees and hands each input its
// cached prevout script.
type Accountant struct {
	cfg   Config
	cache PrevoutCache

	onBlockFn func(BlockTally)
	onInputFn func(InputTally)

	mu     sync.Mutex
	totals Totals

	blocks chan chain.Block
	done   chan struct{}
}

func NewAccountant(cfg Config, cache PrevoutCache) *Accountant {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxBlockSigops == 0 {
		cfg.MaxBlockSigops = MaxBlockSigops
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Accountant{cfg: cfg, cache: cache}
}

func (a *Accountant) OnBlock(fn func(BlockTally)) {
	a.onBlockFn = fn
}

// OnInput is called from the counting workers, possibly concurrently.
func (a *Accountant) OnInput(fn func(InputTally)) {
	a.onInputFn = fn
}

func (a *Accountant) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

// Account caches the block's outputs, then counts the sigops of every
// transaction. Outputs are cached first so that spends within the block
// resolve. Blocks from other files that have not been accounted yet show up
// as missing prevouts and contribute no BIP16 sigops.
func (a *Accountant) Account(block chain.Block) (BlockTally, error) {
	tally := BlockTally{Height: block.Height, Hash: block.Hash, Transactions: len(block.Transactions)}

	txHashes := make([]chainhash.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		txHashes[i] = tx.Hash()
		for n, out := range tx.Outputs {
			err := a.cache.Put(chain.NewOutputPoint(txHashes[i], uint32(n)), out.Script)
			if err != nil {
				return tally, errors.WithMessagef(err, "block %s", block.Hash)
			}
			tally.Sigops += out.Script.Sigops(false)
		}
	}

	type job struct {
		tx    int
		index int
	}
	jobs := make(chan job)
	results := make(chan InputTally)

	wg := &sync.WaitGroup{}
	wg.Add(a.cfg.Workers)
	for w := 0; w < a.cfg.Workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- a.countInput(block, txHashes, j.tx, j.index)
			}
		}()
	}

	go func() {
		for i, tx := range block.Transactions {
			for n := range tx.Inputs {
				jobs <- job{tx: i, index: n}
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		tally.Inputs++
		tally.Sigops += res.Sigops
		if res.Missing {
			tally.MissingPrevouts++
		}
	}

	tally.OverLimit = tally.Sigops > a.cfg.MaxBlockSigops
	if tally.OverLimit {
		logrus.Warnf("block %d (%s) has %d sigops, above the limit of %d", tally.Height, tally.Hash, tally.Sigops, a.cfg.MaxBlockSigops)
	}

	a.mu.Lock()
	a.totals.Blocks++
	a.totals.Transactions += tally.Transactions
	a.totals.Inputs += tally.Inputs
	a.totals.Sigops += tally.Sigops
	a.totals.MissingPrevouts += tally.MissingPrevouts
	if tally.OverLimit {
		a.totals.OverLimitBlocks++
	}
	a.mu.Unlock()

	if a.onBlockFn != nil {
		a.onBlockFn(tally)
	}
	return tally, nil
}

func (a *Accountant) countInput(block chain.Block, txHashes []chainhash.Hash, tx, index int) InputTally {
	t := block.Transactions[tx]
	res := InputTally{Height: block.Height, Block: block.Hash, Tx: txHashes[tx], Index: index, Input: t.Inputs[index]}

	sigops, resolved := t.InputSignatureOperations(index, a.cfg.BIP16, a.cache)
	res.Sigops = sigops
	res.Missing = !resolved

	if a.onInputFn != nil {
		a.onInputFn(res)
	}
	return res
}

// Start accounts blocks passed to Submit on a single goroutine, in submission order.
func (a *Accountant) Start() {
	a.blocks = make(chan chain.Block)
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		for block := range a.blocks {
			tally, err := a.Account(block)
			if err != nil {
				logrus.Errorf("%+v", err)
				continue
			}
			logrus.Debugf("BLOCK %d (%s): %d inputs, %d sigops", tally.Height, tally.Hash, tally.Inputs, tally.Sigops)
		}
	}()
}

// Submit queues a block. Safe to use as a blockchain.Chain OnBlock callback.
func (a *Accountant) Submit(block chain.Block) {
	a.blocks <- block
}

// Stop waits for queued blocks to be accounted.
func (a *Accountant) Stop() Totals {
	close(a.blocks)
	<-a.done
	return a.Totals()
}
