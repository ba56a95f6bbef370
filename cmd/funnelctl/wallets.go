package main

import (
	"context"
	"fmt"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Print coin and credit balances per participant",
	RunE:  runWallets,
}

var walletsEmail string

func init() {
	walletsCmd.Flags().StringVar(&walletsEmail, "email", "", "Filter by participant email")
}

type walletStats struct {
	totalParticipants int
	withBalances      int
	totalCoins        int64
}

func printBalances(balances []models.CoinBalance) {
	for i, b := range balances {
		fmt.Printf("%s %-6s: %16s (v%d, last_tx: %s, updated: %s)\n",
			common.BoxPrefix(i == len(balances)-1),
			b.Currency,
			common.FormatAmount(b.Currency, b.Balance),
			b.Version,
			common.ShortId(b.LastTransactionId),
			b.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printParticipantHeader(p models.Participant, count int) {
	common.PrintBox(fmt.Sprintf("Participant: %s (%s)", p.Name, p.Email),
		fmt.Sprintf("ID: %s  Role: %s", p.Id, p.Role),
		fmt.Sprintf("Currencies: %d", count))
	common.PrintBoxSeparator(78)
}

func walletReport(ctx context.Context, participants []models.Participant, ledger store.CoinLedger) walletStats {
	var stats walletStats
	for _, p := range participants {
		stats.totalParticipants++

		balances, err := ledger.Balances(ctx, p.Id)
		if err != nil {
			zap.L().Error("Failed to get balances",
				zap.String("participant_id", p.Id), zap.Error(err))
			continue
		}
		if len(balances) == 0 {
			continue
		}

		stats.withBalances++
		for _, b := range balances {
			if b.Currency == models.CurrencyCoins {
				stats.totalCoins += b.Balance.IntPart()
			}
		}
		printParticipantHeader(p, len(balances))
		printBalances(balances)
	}
	return stats
}

func runWallets(cmd *cobra.Command, args []string) error {
	return withServices(cmd.Context(), func(services *common.Services, cfg *models.Config) error {
		participants, err := common.LoadParticipants(cmd.Context(), services.DbService, walletsEmail)
		if err != nil {
			return err
		}

		common.PrintHeader("PARTICIPANT WALLET REPORT", common.DefaultWidth)
		stats := walletReport(cmd.Context(), participants, services.Ledger)
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d of %d participants hold balances, %d coins outstanding",
			stats.withBalances, stats.totalParticipants, stats.totalCoins), common.DefaultWidth)
		return nil
	})
}
