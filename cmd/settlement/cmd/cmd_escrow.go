package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/trustvault/settlement/cmd/settlementd/bootstrap"
	"github.com/trustvault/settlement/internal/audit"
	"github.com/trustvault/settlement/internal/ledger"
	"github.com/trustvault/settlement/internal/platform/config"
	"github.com/trustvault/settlement/internal/platform/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEscrowCmd() *cobra.Command {
	escrow := &cobra.Command{
		Use:   "escrow",
		Short: "Administers escrows on the configured ledger",
	}

	create := &cobra.Command{
		Use:   "create <escrow id> <payer> <payee> <amount>",
		Short: "Opens an escrow",
		Args:  cobra.ExactArgs(4),
		RunE: func(c *cobra.Command, args []string) error {
			return withEscrows(c, func(ctx context.Context, escrows ledger.Escrows, sink audit.Sink) error {
				return createEscrow(ctx, c, escrows, args)
			})
		},
	}
	create.Flags().String(FlagCurrency, "USDC", "asset held in escrow")
	create.Flags().Duration(FlagExpires, 24*time.Hour, "time until the payer may refund")

	show := &cobra.Command{
		Use:   "show <escrow id>",
		Short: "Prints an escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withEscrows(c, func(ctx context.Context, escrows ledger.Escrows, sink audit.Sink) error {
				e, err := escrows.Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				return printEscrow(c.OutOrStdout(), e)
			})
		},
	}

	refund := &cobra.Command{
		Use:   "refund <escrow id>",
		Short: "Returns an expired, unreleased escrow to its payer",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withEscrows(c, func(ctx context.Context, escrows ledger.Escrows, sink audit.Sink) error {
				return refundEscrow(ctx, c.OutOrStdout(), escrows, sink, args[0])
			})
		},
	}

	escrow.AddCommand(create, show, refund)
	return escrow
}

// withEscrows runs fn against the ledger backend named by the configuration.
func withEscrows(c *cobra.Command, fn func(context.Context, ledger.Escrows, audit.Sink) error) error {
	envFile, _ := c.Flags().GetString(FlagEnvFile)
	cfg, err := config.Environment(envFile)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Format: "text", Level: "warn"})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := logger.ContextWithLogger(context.Background(), log)

	masterDB := bootstrap.NewMasterDB(log, cfg)
	defer masterDB.Close()

	sink, closeAudit := bootstrap.NewAuditSink(log, cfg)
	defer closeAudit()

	return fn(ctx, bootstrap.NewEscrows(log, cfg, masterDB), sink)
}

func createEscrow(ctx context.Context, c *cobra.Command, escrows ledger.Escrows, args []string) error {
	amount, err := decimal.NewFromString(args[3])
	if err != nil {
		return errors.Wrap(err, "amount")
	}

	currency, _ := c.Flags().GetString(FlagCurrency)
	expires, _ := c.Flags().GetDuration(FlagExpires)

	e := &ledger.Escrow{
		ID:       args[0],
		Payer:    args[1],
		Payee:    args[2],
		Amount:   amount,
		Currency: currency,
		Expiry:   time.Now().Add(expires).UTC(),
	}
	if err := escrows.Create(ctx, e); err != nil {
		return err
	}

	return printEscrow(c.OutOrStdout(), e)
}

func refundEscrow(ctx context.Context, w io.Writer, escrows ledger.Escrows, sink audit.Sink, id string) error {
	ctx = logger.ContextWithEscrowID(ctx, id)

	e, err := escrows.Refund(ctx, id)
	if err != nil {
		return err
	}

	audit.Emit(ctx, sink, audit.Event{
		Type:   audit.EventEscrowRefund,
		Amount: e.Amount.String(),
	})

	logger.NewLoggerFromContext(ctx).Info("escrow refunded", zap.String("payer", e.Payer))

	return printEscrow(w, e)
}

func printEscrow(w io.Writer, e *ledger.Escrow) error {
	b, err := sonic.ConfigStd.MarshalIndent(e, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal escrow")
	}

	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
