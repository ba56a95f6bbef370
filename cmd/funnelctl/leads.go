package main

import (
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"
	"iamblessed-funnel-go/internal/supabase"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importLeadsCmd = &cobra.Command{
	Use:   "import-leads",
	Short: "Import opt-in leads from Supabase and start their welcome campaign",
	Long: `Read leads captured by the landing page from the Supabase leads table and
sign each one up. Leads whose email is already a participant are skipped, so the
command is safe to re-run.`,
	RunE: runImportLeads,
}

var leadsFlags struct {
	since  time.Duration
	limit  int
	dryRun bool
}

func init() {
	f := importLeadsCmd.Flags()
	f.DurationVar(&leadsFlags.since, "since", 24*time.Hour, "Import leads created within this window")
	f.IntVar(&leadsFlags.limit, "limit", 500, "Maximum leads to fetch")
	f.BoolVar(&leadsFlags.dryRun, "dry-run", false, "Print the leads without importing")
}

type importStats struct {
	imported int
	skipped  int
	failed   int
}

func runImportLeads(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withServices(ctx, func(services *common.Services, cfg *models.Config) error {
		if services.Supabase == nil {
			return common.ErrMissingConfig("SUPABASE_URL")
		}

		since := time.Now().Add(-leadsFlags.since)
		leads, err := services.Supabase.FetchLeads(ctx, cfg.Supabase.LeadsTable, since, leadsFlags.limit)
		if err != nil {
			return fmt.Errorf("fetch leads: %w", err)
		}
		zap.L().Info("Fetched leads", zap.Int("count", len(leads)), zap.Time("since", since))

		common.PrintHeader("LEAD IMPORT", common.DefaultWidth)
		var stats importStats
		for i, lead := range leads {
			status := importLead(cmd, services, lead, &stats)
			fmt.Printf("%s %-28s %-16s %s\n", common.BoxPrefix(i == len(leads)-1), lead.Email, lead.Phone, status)
		}
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d imported, %d skipped, %d failed",
			stats.imported, stats.skipped, stats.failed), common.DefaultWidth)

		if stats.failed > 0 {
			return fmt.Errorf("%d leads failed to import", stats.failed)
		}
		return nil
	})
}

func importLead(cmd *cobra.Command, services *common.Services, lead supabase.Lead, stats *importStats) string {
	if lead.Email == "" {
		stats.skipped++
		return "skipped: no email"
	}
	_, err := services.DbService.GetParticipantByEmail(cmd.Context(), lead.Email)
	if err == nil {
		stats.skipped++
		return "skipped: already a participant"
	}
	if !errors.Is(err, store.ErrNotFound) {
		stats.failed++
		return "failed: " + err.Error()
	}
	if leadsFlags.dryRun {
		stats.skipped++
		return "would import"
	}

	name := lead.Name
	if name == "" {
		name = lead.Email
	}
	_, err = services.Funnel.Signup(cmd.Context(), "", models.SignupRequest{
		Name:         name,
		Email:        lead.Email,
		Phone:        lead.Phone,
		ReferralCode: lead.ReferralCode,
		Variant:      "lead-import",
	})
	if err != nil {
		zap.L().Error("Failed to import lead", zap.String("lead_id", lead.Id), zap.Error(err))
		stats.failed++
		return "failed: " + err.Error()
	}
	stats.imported++
	return "imported"
}
