package cmd

import (
	"github.com/OdyseeTeam/fast-txin/blockchain"
	"github.com/OdyseeTeam/fast-txin/loader"
	"github.com/OdyseeTeam/fast-txin/storage"
	"github.com/OdyseeTeam/fast-txin/validation"

	"github.com/cockroachdb/errors"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	blocksDir    string
	blockFile    string
	fileWorkers  int
	sigopWorkers int
	maxHeight    uint64
	bip16        bool
	cacheDir     string
	dbPath       string
	profileMode  string
	saveInputs   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reads the node's block files and accounts the signature operations of every input",
	RunE: func(cmd *cobra.Command, args []string) error {
		if blocksDir == "" {
			return errors.New("--blocks-dir is required")
		}

		switch profileMode {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		default:
			return errors.Newf("unknown profile mode %q", profileMode)
		}

		totals, err := scan()
		if err != nil {
			return err
		}
		return printJSON(totals)
	},
}

func scan() (validation.Totals, error) {
	c, err := blockchain.New(blockchain.Config{BlocksDir: blocksDir, BlockFile: blockFile, Net: params.Net})
	if err != nil {
		return validation.Totals{}, err
	}

	var cache validation.PrevoutCache
	if cacheDir != "" {
		lc, err := validation.OpenLevelCache(cacheDir)
		if err != nil {
			return validation.Totals{}, err
		}
		defer lc.Close()
		cache = lc
	}

	acct := validation.NewAccountant(validation.Config{BIP16: bip16, Workers: sigopWorkers}, cache)

	if dbPath != "" {
		store, err := storage.Open(dbPath)
		if err != nil {
			return validation.Totals{}, err
		}
		defer store.Close()

		acct.OnBlock(func(tally validation.BlockTally) {
			if err := store.SaveBlock(storage.NewBlockRecord(tally)); err != nil {
				logrus.Errorf("%+v", err)
			}
		})
		if saveInputs {
			acct.OnInput(func(tally validation.InputTally) {
				if err := store.SaveInput(storage.NewInputRecord(tally)); err != nil {
					logrus.Errorf("%+v", err)
				}
			})
		}
	}

	acct.Start()
	c.OnBlock(acct.Submit)
	err = loader.LoadChain(c, maxHeight, fileWorkers)
	totals := acct.Stop()
	if err != nil {
		return totals, err
	}

	logrus.Infof("accounted %d blocks, %d inputs, %d sigops (%d missing prevouts, %d blocks over the limit)",
		totals.Blocks, totals.Inputs, totals.Sigops, totals.MissingPrevouts, totals.OverLimitBlocks)
	return totals, nil
}

func init() {
	scanCmd.Flags().StringVar(&blocksDir, "blocks-dir", "", "Path to the node's blocks directory")
	scanCmd.Flags().StringVar(&blockFile, "block-file", "", "Only read this block file (e.g. blk00000.dat)")
	scanCmd.Flags().IntVar(&fileWorkers, "workers", 1, "Block files read in parallel. Above 1, prevouts in other files may be missing")
	scanCmd.Flags().IntVar(&sigopWorkers, "sigop-workers", 4, "Inputs counted in parallel per block")
	scanCmd.Flags().Uint64Var(&maxHeight, "max-height", 0, "Stop after this height (0 = load it all)")
	scanCmd.Flags().BoolVar(&bip16, "bip16", true, "Count pay-to-script-hash redeem script sigops")
	scanCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Keep prevout scripts in a LevelDB here instead of in memory")
	scanCmd.Flags().StringVar(&dbPath, "db", "", "Save block tallies to this genji database")
	scanCmd.Flags().BoolVar(&saveInputs, "save-inputs", false, "Also save a record per input (needs --db)")
	scanCmd.Flags().StringVar(&profileMode, "profile", "", "Write a cpu or mem profile to the working directory")
	rootCmd.AddCommand(scanCmd)
}
