package api

import (
	"context"
	"fmt"
	"strings"

	"iamblessed-funnel-go/internal/assistant"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/joykeys"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const nominationTemplate = "{{.FirstName}} nominated you for the IamBlessedAF 3-day gratitude challenge! " +
	"Start here: {{.ReferralLink}}"

// Share creates a short link to the participant's referral page (or target),
// awards the daily share coins and unlocks the share key.
func (s *FunnelService) Share(ctx context.Context, p models.Participant, targetURL string) (*models.ShareResponse, error) {
	if targetURL == "" {
		rc, err := s.referrals.EnsureCode(ctx, p.Id)
		if err != nil {
			return nil, err
		}
		targetURL = s.referrals.Link(rc.Code)
	}

	link, err := s.referrals.CreateLink(ctx, p.Id, targetURL, "", 0)
	if err != nil {
		return nil, err
	}

	// share coins are capped at one award per day
	ref := fmt.Sprintf("%s:%s", p.Id, s.now().UTC().Format("2006-01-02"))
	if _, err := s.awards.Award(ctx, p.Id, gamification.EventShare, ref); err != nil {
		zap.L().Error("Failed to award share coins", zap.String("participant_id", p.Id), zap.Error(err))
	}

	state := s.joyKeys.TryUnlock(ctx, p.Id, joykeys.KeyShare)
	if state == nil {
		if state, err = s.joyKeys.State(ctx, p.Id); err != nil {
			return nil, err
		}
	}

	return &models.ShareResponse{
		Link:     *link,
		ShortURL: s.referrals.ShortURL(link.Slug),
		JoyKeys:  *state,
	}, nil
}

// CreateLink stores a custom short link owned by the participant.
func (s *FunnelService) CreateLink(ctx context.Context, p models.Participant, req models.CreateLinkRequest) (*models.ShareResponse, error) {
	link, err := s.referrals.CreateLink(ctx, p.Id, req.TargetURL, req.Slug, hours(req.TTLHours))
	if err != nil {
		return nil, err
	}
	return &models.ShareResponse{Link: *link, ShortURL: s.referrals.ShortURL(link.Slug)}, nil
}

// SendBlessing stores a blessing, optionally writing it with the assistant, and
// delivers it when the recipient has a phone or email. Only a delivered
// blessing earns coins; the first one unlocks the gratitude key. Undelivered
// blessings are kept as drafts.
func (s *FunnelService) SendBlessing(ctx context.Context, p models.Participant, req models.BlessingRequest) (*models.Blessing, error) {
	phone, err := optionalPhone(req.RecipientPhone)
	if err != nil {
		return nil, err
	}

	message := strings.TrimSpace(req.Message)
	generated := false
	if req.Generate && s.assistant != nil {
		genCtx, cancel := context.WithTimeout(ctx, s.assistantTimeout)
		text, err := assistant.GenerateBlessing(genCtx, s.assistant, p.FirstName(), req.RecipientName)
		cancel()
		switch {
		case err == nil:
			message, generated = text, true
		case message == "":
			return nil, err
		default:
			zap.L().Warn("Blessing generation failed, using the written message", zap.Error(err))
		}
	}
	if message == "" {
		return nil, fmt.Errorf("%w: message is required unless generated", store.ErrInvalidInput)
	}

	blessing := models.Blessing{
		Id:             uuid.New().String(),
		SenderId:       p.Id,
		RecipientName:  req.RecipientName,
		RecipientPhone: phone,
		RecipientEmail: req.RecipientEmail,
		Message:        message,
		Generated:      generated,
		Status:         models.BlessingDraft,
	}
	if s.deliver(ctx, p, phone, req.RecipientEmail, "A blessing from "+p.FirstName(), message) {
		blessing.Status = models.BlessingSent
	}

	saved, err := s.funnel.CreateBlessing(ctx, blessing)
	if err != nil {
		return nil, err
	}

	if saved.Status != models.BlessingSent {
		return saved, nil
	}
	if _, err := s.awards.Award(ctx, p.Id, gamification.EventBlessingSent, saved.Id); err != nil {
		zap.L().Error("Failed to award blessing coins", zap.String("participant_id", p.Id), zap.Error(err))
	}
	s.joyKeys.TryUnlock(ctx, p.Id, joykeys.KeyGratitude)
	return saved, nil
}

// Nominate invites someone to the gratitude challenge with the nominator's
// referral link. The first delivered nomination unlocks the nominate key.
func (s *FunnelService) Nominate(ctx context.Context, p models.Participant, req models.NominationRequest) (*models.Nomination, error) {
	phone, err := optionalPhone(req.NomineePhone)
	if err != nil {
		return nil, err
	}

	data, err := s.TemplateData(ctx, p)
	if err != nil {
		return nil, err
	}
	body, err := messaging.Render(nominationTemplate, data)
	if err != nil {
		return nil, err
	}
	if note := strings.TrimSpace(req.Message); note != "" {
		body = note + "\n\n" + body
	}

	nomination := models.Nomination{
		Id:           uuid.New().String(),
		NominatorId:  p.Id,
		NomineeName:  req.NomineeName,
		NomineePhone: phone,
		NomineeEmail: req.NomineeEmail,
		Message:      req.Message,
		Status:       models.NominationPending,
	}
	if s.deliver(ctx, p, phone, req.NomineeEmail, p.FirstName()+" nominated you", body) {
		nomination.Status = models.NominationSent
	}

	saved, err := s.funnel.CreateNomination(ctx, nomination)
	if err != nil {
		return nil, err
	}

	if saved.Status != models.NominationSent {
		return saved, nil
	}
	if _, err := s.awards.Award(ctx, p.Id, gamification.EventNominationSent, saved.Id); err != nil {
		zap.L().Error("Failed to award nomination coins", zap.String("participant_id", p.Id), zap.Error(err))
	}
	s.joyKeys.TryUnlock(ctx, p.Id, joykeys.KeyNominate)
	return saved, nil
}

// deliver sends a one-off message to a third party, preferring SMS, and logs
// the attempt. It reports whether the message went out.
func (s *FunnelService) deliver(ctx context.Context, from models.Participant, phone, email, subject, body string) bool {
	if s.sender == nil {
		return false
	}
	msg := messaging.Message{Channel: models.ChannelSMS, To: phone, Body: body}
	switch {
	case phone != "":
	case email != "":
		msg = messaging.Message{Channel: models.ChannelEmail, To: email, Subject: subject, Body: body}
	default:
		return false
	}

	result, err := s.sender.Send(ctx, msg)
	entry := models.MessageLog{
		ParticipantId: from.Id,
		Channel:       msg.Channel,
		Recipient:     msg.To,
		Body:          body,
		Status:        models.MessageSent,
	}
	if err != nil {
		entry.Status = models.MessageFailed
		entry.Error = err.Error()
		zap.L().Warn("Failed to deliver message",
			zap.String("participant_id", from.Id),
			zap.String("channel", msg.Channel),
			zap.Error(err))
	} else {
		entry.Channel = result.Channel
		entry.ProviderId = result.ProviderId
	}
	if logErr := s.messages.InsertLog(ctx, entry); logErr != nil {
		zap.L().Error("Failed to write message log", zap.Error(logErr))
	}
	return err == nil
}

func optionalPhone(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	phone, err := messaging.NormalizePhone(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	return phone, nil
}
