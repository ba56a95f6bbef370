package main

import (
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/models"

	"github.com/spf13/cobra"
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Validate campaign definitions and enroll participants",
}

var campaignsValidateCmd = &cobra.Command{
	Use:   "validate [campaigns.yaml]",
	Short: "Parse a campaigns file and render every template against sample data",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCampaignsValidate,
}

var campaignsEnrollCmd = &cobra.Command{
	Use:   "enroll <campaign>",
	Short: "Enroll participants in a campaign",
	Long: `Enroll one participant (--email) or every participant (--all) in a campaign.
Participants already enrolled are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runCampaignsEnroll,
}

var enrollFlags struct {
	email string
	all   bool
	start string
}

func init() {
	f := campaignsEnrollCmd.Flags()
	f.StringVar(&enrollFlags.email, "email", "", "Participant email")
	f.BoolVar(&enrollFlags.all, "all", false, "Enroll every participant")
	f.StringVar(&enrollFlags.start, "start", "", "Campaign start time (RFC 3339, default now)")
	campaignsEnrollCmd.MarkFlagsMutuallyExclusive("email", "all")
	campaignsEnrollCmd.MarkFlagsOneRequired("email", "all")
	campaignsCmd.AddCommand(campaignsValidateCmd, campaignsEnrollCmd)
}

func runCampaignsValidate(cmd *cobra.Command, args []string) error {
	file := "campaigns.yaml"
	if len(args) == 1 {
		file = args[0]
	} else if cfg, err := loadConfig(); err == nil {
		file = cfg.CampaignsFile
	}

	catalog, err := drip.LoadCatalog(file)
	if err != nil {
		return err
	}

	common.PrintHeader("CAMPAIGNS: "+file, common.DefaultWidth)
	campaigns := catalog.Campaigns()
	for _, c := range campaigns {
		common.PrintBox(fmt.Sprintf("%s (%s)", c.Name, c.Key))
		common.PrintBoxSeparator(78)
		for i, step := range c.Steps {
			fmt.Printf("%s step %d  +%-10s %-9s %s\n",
				common.BoxPrefix(i == len(c.Steps)-1), i+1, step.Offset, step.Channel, step.Subject)
		}
	}
	common.PrintFooter(fmt.Sprintf("OK: %d campaigns valid", len(campaigns)), common.DefaultWidth)
	return nil
}

func runCampaignsEnroll(cmd *cobra.Command, args []string) error {
	var start time.Time
	if enrollFlags.start != "" {
		t, err := time.Parse(time.RFC3339, enrollFlags.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		start = t
	}

	return withServices(cmd.Context(), func(services *common.Services, cfg *models.Config) error {
		participants, err := common.LoadParticipants(cmd.Context(), services.DbService, enrollFlags.email)
		if err != nil {
			return err
		}
		ids := make([]string, len(participants))
		for i, p := range participants {
			ids[i] = p.Id
		}

		result, err := services.Funnel.EnrollParticipants(cmd.Context(), args[0], ids, start)
		if err != nil {
			return fmt.Errorf("enroll in %s: %w", args[0], err)
		}

		common.PrintFooter(fmt.Sprintf("%s: %d enrolled, %d skipped",
			result.Campaign, len(result.Enrolled), len(result.Skipped)), common.DefaultWidth)
		return nil
	})
}
