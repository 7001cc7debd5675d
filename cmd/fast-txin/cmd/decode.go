package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/OdyseeTeam/fast-txin/chain"
	"github.com/OdyseeTeam/fast-txin/server"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	asJSON bool
	rules  []string
)

var ruleFlags = map[string]uint32{
	"bip16":  chain.RuleBIP16,
	"bip65":  chain.RuleBIP65,
	"bip112": chain.RuleBIP112,
	"all":    chain.RuleAll,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decodes a serialized transaction input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(args[0])
		if err != nil {
			return errors.Wrap(err, "invalid hex")
		}

		in, ok := chain.InputFromBytes(raw)
		if !ok {
			return errors.New("not a transaction input")
		}

		if asJSON {
			return printJSON(server.NewDecodedInput(in))
		}

		flags, err := parseRules(rules)
		if err != nil {
			return err
		}
		fmt.Print(in.String(flags))
		return nil
	},
}

func parseRules(names []string) (uint32, error) {
	flags := chain.RuleNone
	for _, name := range names {
		f, ok := ruleFlags[name]
		if !ok {
			return 0, errors.Newf("unknown rule %q", name)
		}
		flags |= f
	}
	return flags, nil
}

func printJSON(in interface{}) error {
	out, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	fmt.Println(string(out))
	return nil
}

func init() {
	decodeCmd.Flags().BoolVar(&asJSON, "json", false, "Prints the decoded input as JSON")
	decodeCmd.Flags().StringSliceVar(&rules, "rules", []string{"all"}, "Rules used to name opcodes (bip16, bip65, bip112, all)")
	rootCmd.AddCommand(decodeCmd)
}
