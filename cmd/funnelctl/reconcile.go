package main

import (
	"errors"
	"fmt"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check every wallet balance against the sum of its transactions",
	RunE:  runReconcile,
}

var reconcileEmail string

func init() {
	reconcileCmd.Flags().StringVar(&reconcileEmail, "email", "", "Filter by participant email")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withServices(cmd.Context(), func(services *common.Services, cfg *models.Config) error {
		participants, err := common.LoadParticipants(cmd.Context(), services.DbService, reconcileEmail)
		if err != nil {
			return err
		}

		common.PrintHeader("WALLET RECONCILIATION", common.DefaultWidth)
		var checked, mismatched, failed int
		for _, p := range participants {
			for _, currency := range []string{models.CurrencyCoins, models.CurrencyCredits} {
				checked++
				err := services.Ledger.Reconcile(cmd.Context(), p.Id, currency)
				switch {
				case err == nil:
				case errors.Is(err, store.ErrBalanceMismatch):
					mismatched++
					fmt.Printf("✗ %-36s %-4s %v\n", p.Id, currency, err)
				default:
					failed++
					fmt.Printf("? %-36s %-4s %v\n", p.Id, currency, err)
				}
			}
		}
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d wallets checked, %d mismatched, %d could not be read",
			checked, mismatched, failed), common.DefaultWidth)

		if mismatched+failed > 0 {
			return fmt.Errorf("%d wallets failed reconciliation", mismatched+failed)
		}
		return nil
	})
}
