package blockchain

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/OdyseeTeam/fast-txin/blockchain/blockfile"
	"github.com/OdyseeTeam/fast-txin/chain"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type client struct {
	sync.Mutex
	net        wire.BitcoinNet
	blocksDir  string
	blockFile  string
	blockFiles []*blockfile.File

	onBlockFn       func(block chain.Block)
	onTransactionFn func(transaction chain.Transaction)
	onInputFn       func(input chain.Input)
	onOutputFn      func(output chain.Output)
}

type Chain interface {
	NextBlockFile() (*blockfile.File, error)
	OnBlock(func(block chain.Block))
	OnTransaction(func(transaction chain.Transaction))
	OnInput(func(input chain.Input))
	OnOutput(func(output chain.Output))
	Notify(block chain.Block)
}

type Config struct {
	BlocksDir string
	BlockFile string // only load this file, by base name
	Net       wire.BitcoinNet
}

func New(config Config) (Chain, error) {
	c := &client{net: config.Net, blocksDir: config.BlocksDir, blockFile: config.BlockFile}
	if c.net == 0 {
		c.net = wire.MainNet
	}
	err := c.loadBlockFiles()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NextBlockFile hands out block files in height order. It returns nil once all
// files have been handed out. Safe for concurrent use by loader workers.
func (c *client) NextBlockFile() (*blockfile.File, error) {
	c.Lock()
	defer c.Unlock()

	if len(c.blockFiles) == 0 {
		return nil, nil
	}

	next := c.blockFiles[0]
	c.blockFiles = c.blockFiles[1:]
	logrus.Info("Starting block file: ", next.Filename())
	return next, nil
}

func (c *client) loadBlockFiles() error {
	infos, err := blockFilesOrderedByHeight(filepath.Join(c.blocksDir, "index"))
	if err != nil {
		return err
	}

	for _, info := range infos {
		if c.blockFile != "" && info.filename != c.blockFile {
			continue
		}
		c.blockFiles = append(c.blockFiles, blockfile.Open(filepath.Join(c.blocksDir, info.filename), info.firstHeight, c.net))
	}

	if c.blockFile != "" && len(c.blockFiles) == 0 {
		return errors.Newf("block file %s is not in the block index", c.blockFile)
	}
	return nil
}

func (c *client) OnBlock(fn func(chain.Block)) {
	c.onBlockFn = fn
}

func (c *client) OnTransaction(fn func(chain.Transaction)) {
	c.onTransactionFn = fn
}

func (c *client) OnInput(fn func(chain.Input)) {
	c.onInputFn = fn
}

func (c *client) OnOutput(fn func(chain.Output)) {
	c.onOutputFn = fn
}

func (c *client) Notify(block chain.Block) {
	if c.onBlockFn != nil {
		c.onBlockFn(block)
	}

	for _, tx := range block.Transactions {
		if c.onTransactionFn != nil {
			c.onTransactionFn(tx)
		}
		if c.onOutputFn != nil {
			for _, out := range tx.Outputs {
				c.onOutputFn(out)
			}
		}
		if c.onInputFn != nil {
			for _, in := range tx.Inputs {
				c.onInputFn(in)
			}
		}
	}
}

// https://bitcoin.stackexchange.com/questions/67515/format-of-a-block-keys-contents-in-bitcoinds-leveldb
// binary.Uvarint is supposed to do this, except it doesn't.
// And it is not the same varint as in bitcoin serialized varints.
func base128(b []byte, offset int) (uint64, int, error) {
	var n uint64
	for {
		if offset >= len(b) {
			return 0, offset, errors.New("truncated varint in block index")
		}
		ch := b[offset]
		offset++
		n = (n << 7) | uint64(ch&0x7f)
		if ch&0x80 == 0 {
			return n, offset, nil
		}
		n++
	}
}

type blockFileInfo struct {
	filename    string
	firstHeight uint64
}

// blockFilesOrderedByHeight returns the block files listed in the index,
// ordered by the height of the first block in the file
func blockFilesOrderedByHeight(indexdbPath string) ([]blockFileInfo, error) {
	var blockInfos []blockFileInfo

	db, err := leveldb.OpenFile(indexdbPath, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		return nil, errors.Wrap(err, "opening block index")
	}
	defer db.Close()

	iter := db.NewIterator(util.BytesPrefix([]byte("f")), nil)
	defer iter.Release()

	for iter.Next() {
		// Remember that the contents of the returned slice should not be modified, and
		// only valid until the next call to Next.
		key := iter.Key()
		value := iter.Value()
		if len(key) != 5 {
			continue
		}

		blockFileNum := binary.LittleEndian.Uint32(key[1:])

		// CBlockFileInfo: blocks, size, undo size, first height, ...
		// https://github.com/bitcoin/bitcoin/blob/fcbc8bfa6d10cac4f16699d6e6e68fb6eb98acd0/src/main.h#L392
		var (
			offset      int
			firstHeight uint64
		)
		for i := 0; i < 4; i++ {
			firstHeight, offset, err = base128(value, offset)
			if err != nil {
				return nil, errors.WithMessagef(err, "block file %d", blockFileNum)
			}
		}

		blockInfos = append(blockInfos, blockFileInfo{
			filename:    fmt.Sprintf("blk%05d.dat", blockFileNum),
			firstHeight: firstHeight,
		})
	}

	err = iter.Error()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sort.Slice(blockInfos, func(i, j int) bool {
		return blockInfos[i].firstHeight < blockInfos[j].firstHeight
	})

	return blockInfos, nil
}
