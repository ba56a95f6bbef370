package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signup creates a participant from the landing page form. It creates the
// referral code, attributes the referrer, awards the signup coins and enrolls
// the participant in the welcome campaign. A non-empty id (the authenticated
// user) becomes the participant id.
func (s *FunnelService) Signup(ctx context.Context, id string, req models.SignupRequest) (*models.SignupResponse, error) {
	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		normalized, err := messaging.NormalizePhone(req.Phone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		phone = normalized
	}
	if id == "" {
		id = uuid.New().String()
	}

	// an unknown code does not block the signup
	code := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if code != "" {
		if _, err := s.funnel.GetReferralCode(ctx, code); err != nil {
			zap.L().Warn("Ignoring unknown referral code at signup", zap.String("code", code), zap.Error(err))
			code = ""
		}
	}

	ctx = models.WithAttribution(ctx, &models.Attribution{
		Campaign:     drip.WelcomeCampaign,
		Variant:      req.Variant,
		ReferralCode: code,
		Source:       "signup",
	})

	participant, err := s.funnel.CreateParticipant(ctx, store.CreateParticipantParams{
		Id:         id,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      phone,
		ReferredBy: code,
	})
	if err != nil {
		return nil, err
	}

	rc, err := s.referrals.EnsureCode(ctx, participant.Id)
	if err != nil {
		return nil, err
	}

	if code != "" {
		if _, err := s.referrals.Attribute(ctx, participant.Id, code); err != nil {
			zap.L().Warn("Referral attribution failed",
				zap.String("participant_id", participant.Id),
				zap.String("code", code),
				zap.Error(err))
		}
	}

	s.awards.Register(ctx, *participant)
	if _, err := s.awards.Award(ctx, participant.Id, gamification.EventSignup, participant.Id); err != nil {
		zap.L().Error("Failed to award signup coins", zap.String("participant_id", participant.Id), zap.Error(err))
	}

	// a joy keys row with nothing unlocked lets the nudge sweep find idle signups
	if err := s.funnel.SaveJoyKeys(ctx, models.JoyKeys{
		ParticipantId: participant.Id,
		UnlockedAt:    map[int]time.Time{},
		UpdatedAt:     s.now(),
	}); err != nil {
		zap.L().Warn("Failed to initialise joy keys", zap.String("participant_id", participant.Id), zap.Error(err))
	}

	if _, err := s.drips.Enroll(ctx, participant.Id, drip.WelcomeCampaign, s.now()); err != nil {
		zap.L().Warn("Welcome campaign enrollment failed",
			zap.String("participant_id", participant.Id),
			zap.Error(err))
	}

	zap.L().Info("Participant signed up",
		zap.String("participant_id", participant.Id),
		zap.String("referral_code", rc.Code),
		zap.String("referred_by", code),
		zap.String("variant", req.Variant))

	return &models.SignupResponse{
		Participant:  *participant,
		ReferralCode: rc.Code,
		ReferralLink: s.referrals.Link(rc.Code),
	}, nil
}

// ResolveParticipant finds the participant for an authenticated user, by id
// first and by email for accounts created before the user signed in.
func (s *FunnelService) ResolveParticipant(ctx context.Context, userId, email string) (*models.Participant, error) {
	p, err := s.funnel.GetParticipant(ctx, userId)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) || email == "" {
		return nil, err
	}
	return s.funnel.GetParticipantByEmail(ctx, email)
}

// OptOut stops all drip messages to the participant.
func (s *FunnelService) OptOut(ctx context.Context, participantId string, optedOut bool) error {
	return s.funnel.SetOptOut(ctx, participantId, optedOut)
}

// TemplateData supplies the fields drip templates render with.
func (s *FunnelService) TemplateData(ctx context.Context, p models.Participant) (messaging.TemplateData, error) {
	data := messaging.TemplateData{
		Name:         p.Name,
		FirstName:    p.FirstName(),
		Email:        p.Email,
		CheckoutLink: s.publicBaseURL + "/offer",
		Coins:        "0",
		Credits:      "0.00",
	}

	rc, err := s.referrals.EnsureCode(ctx, p.Id)
	if err != nil {
		return data, err
	}
	data.ReferralCode = rc.Code
	data.ReferralLink = s.referrals.Link(rc.Code)

	balances, err := s.ledger.Balances(ctx, p.Id)
	if err != nil {
		return data, err
	}
	for _, b := range balances {
		switch b.Currency {
		case models.CurrencyCoins:
			data.Coins = b.Balance.StringFixed(0)
		case models.CurrencyCredits:
			data.Credits = b.Balance.StringFixed(2)
		}
	}
	return data, nil
}
