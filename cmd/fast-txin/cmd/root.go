package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/lbryio/lbcd/chaincfg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	network string
	verbose bool

	params *chaincfg.Params
)

var rootCmd = &cobra.Command{
	Use:          "fast-txin",
	Short:        "Decodes transaction inputs and accounts their signature operations",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		var err error
		params, err = networkParams(network)
		return err
	},
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "main", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "test", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, errors.Newf("unknown network %q", name)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&network, "network", "n", "main", "Sets the network (main, testnet, regtest)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enables debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
