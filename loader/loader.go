package loader

import (
	"path"
	"sync"

	"github.com/OdyseeTeam/fast-txin/blockchain"
	"github.com/OdyseeTeam/fast-txin/blockchain/blockfile"

	"github.com/sirupsen/logrus"
)

// LoadChain reads every block file handed out by c with the given number of
// parallel workers and passes each block to c.Notify. Blocks above maxHeight
// are skipped (0 = no limit). The first worker error is returned.
func LoadChain(c blockchain.Chain, maxHeight uint64, workers int) error {
	if workers < 1 {
		// could happen if you initialize an empty struct and forget to set this
		workers = 1
	}
	logrus.Infof("running %d workers", workers)

	results := make(chan error, workers)
	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results <- worker(i, c, maxHeight)
		}(i)
	}
	wg.Wait()
	close(results)

	var firstErr error
	for err := range results {
		if err == nil {
			continue
		}
		logrus.Errorf("%+v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func worker(workerNum int, c blockchain.Chain, maxHeight uint64) error {
	for {
		bf, err := c.NextBlockFile()
		if err != nil {
			return err
		}
		if bf == nil {
			logrus.Debugf("worker %d: no more block files", workerNum)
			return nil
		}

		if maxHeight > 0 && bf.FirstHeight() > maxHeight {
			continue
		}

		err = loadFile(workerNum, c, bf, maxHeight)
		closeErr := bf.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			logrus.Errorf("%+v", closeErr)
		}
	}
}

func loadFile(workerNum int, c blockchain.Chain, bf *blockfile.File, maxHeight uint64) error {
	for {
		block, err := bf.NextBlock()
		if err != nil {
			if blockfile.IsEOF(err) {
				return nil
			}
			return err
		}

		if maxHeight > 0 && block.Height > maxHeight {
			return nil
		}

		if block.Height%1000 == 0 {
			logrus.Infof("Worker %d: file %s, block %dk", workerNum, path.Base(bf.Filename()), block.Height/1000)
		}

		c.Notify(*block)
	}
}
