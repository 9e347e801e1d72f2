package cmd

import (
	"fmt"

	"github.com/trustvault/settlement/pkg/signing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generates a rail signing key",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			key, err := signing.GenerateKey()
			if err != nil {
				return errors.Wrap(err, "generate key")
			}

			pub := key.PublicKey()
			fmt.Fprintf(c.OutOrStdout(), "Key : %s\n", key.String())
			fmt.Fprintf(c.OutOrStdout(), "PubKey : %s\n", pub.String())
			fmt.Fprintf(c.OutOrStdout(), "KeyID : %s\n", pub.ID())
			return nil
		},
	}
}
