package main

import (
	"context"
	"fmt"
	"os"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/config"
	"iamblessed-funnel-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var loggerCleanup = func() {}

// rootCmd is the funnel operator CLI
var rootCmd = &cobra.Command{
	Use:   "funnelctl",
	Short: "Operate the IamBlessedAF funnel",
	Long: `Operator tooling for the IamBlessedAF funnel backend.

Available commands:
  participants  - Add participants by hand
  wallets       - Coin and credit balance report
  links         - Short link report
  campaigns     - Validate campaign files and enroll participants
  import-leads  - Pull opt-in leads from Supabase into the funnel
  reconcile     - Verify wallet balances against their transactions`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_, loggerCleanup = common.InitializeLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		loggerCleanup()
	},
}

func init() {
	rootCmd.AddCommand(participantsCmd, walletsCmd, linksCmd, campaignsCmd, importLeadsCmd, reconcileCmd)
}

func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// withServices runs fn with every funnel service initialised.
func withServices(ctx context.Context, fn func(*common.Services, *models.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()
	return fn(services, cfg)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		zap.L().Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
