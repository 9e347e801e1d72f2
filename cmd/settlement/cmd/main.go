package cmd

import (
	"github.com/spf13/cobra"
)

const (
	FlagKey          = "key"
	FlagTrusted      = "trusted"
	FlagExpected     = "expected"
	FlagCurrency     = "currency"
	FlagSettlementID = "settlement-id"
	FlagExpires      = "expires"
	FlagEnvFile      = "env-file"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "settlement",
		Short:        "Escrow settlement operator CLI",
		SilenceUsage: true,
	}
	root.PersistentFlags().String(FlagEnvFile, ".env", "dotenv file loaded before the environment")

	root.AddCommand(newKeygenCmd())
	root.AddCommand(newSignCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newEscrowCmd())

	return root
}
