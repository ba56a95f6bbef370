package main

import (
	"fmt"

	"iamblessed-funnel-go/internal/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Print short links and click counts per participant",
	RunE:  runLinks,
}

var linksEmail string

func init() {
	linksCmd.Flags().StringVar(&linksEmail, "email", "", "Filter by participant email")
}

func runLinks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := common.InitializeDatabaseOnly(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	participants, err := common.LoadParticipants(cmd.Context(), db, linksEmail)
	if err != nil {
		return err
	}

	common.PrintHeader("SHORT LINK REPORT", common.WideWidth)
	var total, clicks int64
	for _, p := range participants {
		links, err := db.ListShortLinks(cmd.Context(), p.Id)
		if err != nil {
			zap.L().Error("Failed to list links", zap.String("participant_id", p.Id), zap.Error(err))
			continue
		}
		if len(links) == 0 {
			continue
		}

		common.PrintBox(fmt.Sprintf("%s (%s)", p.Name, p.Email))
		common.PrintBoxSeparator(98)
		for i, l := range links {
			status := "active"
			if l.ExpiresAt != nil {
				status = "expires " + l.ExpiresAt.Format("2006-01-02")
			}
			fmt.Printf("%s /r/%-32s %6d clicks  %-18s %s\n",
				common.BoxPrefix(i == len(links)-1), l.Slug, l.Clicks, status, l.TargetURL)
			total++
			clicks += l.Clicks
		}
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d links, %d clicks", total, clicks), common.WideWidth)
	return nil
}
