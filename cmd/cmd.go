package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tripvault",
		Short: "trip expense ledger",
		Long: `tripvault keeps the shared expenses of a trip, splits them between members
and works out who owes whom.`,
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand())
	root.AddCommand(migrateCommand())
	root.AddCommand(reportCommand())
	return root
}
