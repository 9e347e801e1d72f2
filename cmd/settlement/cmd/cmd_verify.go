package cmd

import (
	"context"
	"fmt"

	"github.com/trustvault/settlement/internal/platform/config"
	"github.com/trustvault/settlement/internal/platform/logger"
	"github.com/trustvault/settlement/internal/verifier"
	"github.com/trustvault/settlement/pkg/signing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "verify <payment> <signature>",
		Short: "Verifies a payment assertion against the trusted keys",
		Args:  cobra.ExactArgs(2),
		RunE:  verifyAssertion,
	}

	c.Flags().String(FlagTrusted, "", "comma separated trusted public keys, defaults to the configured keys")

	return c
}

func verifyAssertion(c *cobra.Command, args []string) error {
	trusted, _ := c.Flags().GetString(FlagTrusted)
	if len(trusted) == 0 {
		envFile, _ := c.Flags().GetString(FlagEnvFile)
		cfg, err := config.Environment(envFile)
		if err != nil {
			return err
		}
		trusted = cfg.Verifier.TrustedKeys
	}

	keys, err := signing.ParseKeySet(trusted)
	if err != nil {
		return errors.Wrap(err, "trusted keys")
	}

	ctx := logger.ContextWithLogger(context.Background(), zap.NewNop())
	a, err := verifier.New(keys, nil).Verify(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	b, err := sonic.ConfigStd.MarshalIndent(a, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal assertion")
	}

	fmt.Fprintf(c.OutOrStdout(), "Valid payment assertion\n%s\n", b)
	return nil
}
