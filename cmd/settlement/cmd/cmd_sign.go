package cmd

import (
	"fmt"
	"time"

	"github.com/trustvault/settlement/internal/assertion"
	"github.com/trustvault/settlement/pkg/signing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "sign <escrow id> <amount> <recipient>",
		Short: "Builds and signs a payment assertion",
		Args:  cobra.ExactArgs(3),
		RunE:  signAssertion,
	}

	c.Flags().String(FlagKey, "", "rail signing key")
	c.Flags().String(FlagExpected, "", "expected amount, defaults to the amount")
	c.Flags().String(FlagCurrency, "USDC", "asset the amount is denominated in")
	c.Flags().String(FlagSettlementID, "", "settlement id the assertion pays")
	_ = c.MarkFlagRequired(FlagKey)

	return c
}

func signAssertion(c *cobra.Command, args []string) error {
	wif, _ := c.Flags().GetString(FlagKey)
	key, err := signing.DecodeKeyString(wif)
	if err != nil {
		return errors.Wrap(err, "signing key")
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return errors.Wrap(err, "amount")
	}

	expected := amount
	if s, _ := c.Flags().GetString(FlagExpected); len(s) > 0 {
		if expected, err = decimal.NewFromString(s); err != nil {
			return errors.Wrap(err, "expected amount")
		}
	}

	currency, _ := c.Flags().GetString(FlagCurrency)
	settlementID, _ := c.Flags().GetString(FlagSettlementID)

	token, signature, err := assertion.EncodeAndSign(key, assertion.PaymentAssertion{
		EscrowID:       args[0],
		Amount:         amount,
		ExpectedAmount: expected,
		Currency:       currency,
		Recipient:      args[2],
		SettlementID:   settlementID,
		Nonce:          uuid.NewString(),
		IssuedAt:       time.Now().Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "sign")
	}

	fmt.Fprintf(c.OutOrStdout(), "X-PAYMENT : %s\n", token)
	fmt.Fprintf(c.OutOrStdout(), "X-PAYMENT-SIGNATURE : %s\n", signature)
	return nil
}
