package main

import (
	"fmt"
	"net/mail"

	"iamblessed-funnel-go/internal/common"
	"iamblessed-funnel-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var participantsCmd = &cobra.Command{
	Use:   "participants",
	Short: "Manage participants",
}

var participantsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Sign up a participant as if through the landing page",
	Long: `Create a participant, issue a referral code, award the signup coins and
enroll the participant in the welcome campaign.`,
	RunE: runParticipantsAdd,
}

var addFlags struct {
	name     string
	email    string
	phone    string
	referral string
	variant  string
}

func init() {
	f := participantsAddCmd.Flags()
	f.StringVar(&addFlags.name, "name", "", "Participant name (required)")
	f.StringVar(&addFlags.email, "email", "", "Participant email (required)")
	f.StringVar(&addFlags.phone, "phone", "", "Phone number for SMS and WhatsApp")
	f.StringVar(&addFlags.referral, "referral-code", "", "Referral code of the referrer")
	f.StringVar(&addFlags.variant, "variant", "", "Landing page variant")
	_ = participantsAddCmd.MarkFlagRequired("name")
	_ = participantsAddCmd.MarkFlagRequired("email")
	participantsCmd.AddCommand(participantsAddCmd)
}

func validateName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func runParticipantsAdd(cmd *cobra.Command, args []string) error {
	if err := validateName(addFlags.name); err != nil {
		return err
	}
	if err := validateEmail(addFlags.email); err != nil {
		return err
	}

	return withServices(cmd.Context(), func(services *common.Services, cfg *models.Config) error {
		resp, err := services.Funnel.Signup(cmd.Context(), "", models.SignupRequest{
			Name:         addFlags.name,
			Email:        addFlags.email,
			Phone:        addFlags.phone,
			ReferralCode: addFlags.referral,
			Variant:      addFlags.variant,
		})
		if err != nil {
			return fmt.Errorf("signup failed: %w", err)
		}

		zap.L().Info("Participant created", zap.String("participant_id", resp.Participant.Id))

		common.PrintHeader("PARTICIPANT CREATED", common.DefaultWidth)
		fmt.Printf("Name:          %s\n", resp.Participant.Name)
		fmt.Printf("Email:         %s\n", resp.Participant.Email)
		fmt.Printf("ID:            %s\n", resp.Participant.Id)
		fmt.Printf("Referral code: %s\n", resp.ReferralCode)
		fmt.Printf("Referral link: %s\n", resp.ReferralLink)
		common.PrintFooter("Enrolled in the welcome campaign", common.DefaultWidth)
		return nil
	})
}
