package cmd

import (
	"github.com/OdyseeTeam/fast-txin/server"
	"github.com/OdyseeTeam/fast-txin/storage"

	"github.com/spf13/cobra"
)

var (
	addr    string
	serveDB string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves /decode and /sql over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(serveDB)
		if err != nil {
			return err
		}
		defer store.Close()

		return server.Start(addr, store, params)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8855", "Listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", ":memory:", "Genji database written by scan --db")
	rootCmd.AddCommand(serveCmd)
}
