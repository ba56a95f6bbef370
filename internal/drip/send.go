package drip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/metrics"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// StatusAdminNotified marks the log row written when the administrator was told about a failure.
const StatusAdminNotified = "admin_notified"

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// process handles one due message end to end
func (d *Dispatcher) process(ctx context.Context, msg models.ScheduledMessage) error {
	// A previous run may have sent the message and died before marking the row.
	sent, err := d.messages.HasLog(ctx, msg.Id, models.MessageSent)
	if err != nil {
		return err
	}
	if sent {
		d.mark(ctx, msg, models.MessageSent, "")
		return nil
	}

	participant, err := d.funnel.GetParticipant(ctx, msg.ParticipantId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.skip(ctx, msg, "participant not found")
			return nil
		}
		return err
	}

	if reason, err := d.skipReason(ctx, msg, participant); err != nil {
		return err
	} else if reason != "" {
		d.skip(ctx, msg, reason)
		return nil
	}

	now := d.now()
	if !d.window.Open(now) {
		next := d.window.NextOpen(now)
		if err := d.messages.Reschedule(ctx, msg.Id, next); err != nil {
			return err
		}
		fmt.Printf("  %s… %s step %d deferred to %s%s\n",
			colorGray, msg.CampaignKey, msg.Step, next.Format(time.RFC3339), colorReset)
		return nil
	}

	out, err := d.render(ctx, msg, participant)
	if err != nil {
		d.fail(ctx, msg, participant, out, err)
		return nil
	}

	result, sendErr := d.sender.Send(ctx, out)
	if sendErr != nil {
		d.fail(ctx, msg, participant, out, sendErr)
		return nil
	}

	if err := d.messages.InsertLog(ctx, models.MessageLog{
		ScheduledMessageId: msg.Id,
		ParticipantId:      msg.ParticipantId,
		Channel:            result.Channel,
		Recipient:          out.To,
		Body:               out.Body,
		ProviderId:         result.ProviderId,
		Status:             models.MessageSent,
	}); err != nil {
		// the provider already accepted it
		zap.L().Error("Failed to write message log", zap.String("message_id", msg.Id), zap.Error(err))
	}
	d.mark(ctx, msg, models.MessageSent, "")
	metrics.RecordMessage(result.Channel, models.MessageSent)

	fmt.Printf("  %s✓ %s step %d → %s via %s%s\n",
		colorGreen, msg.CampaignKey, msg.Step, participant.FirstName(), result.Channel, colorReset)

	d.completeEnrollment(ctx, msg)
	return nil
}

// skipReason returns why a message should not go out, or "" when it should.
func (d *Dispatcher) skipReason(ctx context.Context, msg models.ScheduledMessage, p *models.Participant) (string, error) {
	if p.OptedOut {
		return "participant opted out", nil
	}
	if msg.EnrollmentId != "" {
		enrollment, err := d.messages.GetEnrollment(ctx, msg.EnrollmentId)
		if err != nil {
			return "", err
		}
		if enrollment.Status != models.EnrollmentActive {
			return "enrollment " + enrollment.Status, nil
		}
	}
	for _, checker := range d.staleCheckers {
		stale, err := checker.Stale(ctx, msg)
		if err != nil {
			return "", err
		}
		if stale {
			return "no longer applicable", nil
		}
	}
	if recipient(msg.Channel, p) == "" {
		return "no " + msg.Channel + " address", nil
	}
	return "", nil
}

func recipient(channel string, p *models.Participant) string {
	if channel == models.ChannelEmail {
		return p.Email
	}
	return p.Phone
}

func (d *Dispatcher) render(ctx context.Context, msg models.ScheduledMessage, p *models.Participant) (messaging.Message, error) {
	out := messaging.Message{Channel: msg.Channel, To: recipient(msg.Channel, p)}

	data, err := d.data.TemplateData(ctx, *p)
	if err != nil {
		return out, fmt.Errorf("failed to load template data: %w", err)
	}
	data.Campaign = msg.CampaignKey

	if out.Body, err = messaging.Render(msg.Template, data); err != nil {
		return out, err
	}
	if msg.Subject != "" {
		if out.Subject, err = messaging.Render(msg.Subject, data); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (d *Dispatcher) skip(ctx context.Context, msg models.ScheduledMessage, reason string) {
	d.mark(ctx, msg, models.MessageSkipped, reason)
	metrics.RecordMessage(msg.Channel, models.MessageSkipped)
	fmt.Printf("  %s- %s step %d skipped: %s%s\n", colorYellow, msg.CampaignKey, msg.Step, reason, colorReset)
	d.completeEnrollment(ctx, msg)
}

func (d *Dispatcher) fail(ctx context.Context, msg models.ScheduledMessage, p *models.Participant, out messaging.Message, cause error) {
	d.failures.Add(1)

	if err := d.messages.InsertLog(ctx, models.MessageLog{
		ScheduledMessageId: msg.Id,
		ParticipantId:      msg.ParticipantId,
		Channel:            msg.Channel,
		Recipient:          out.To,
		Body:               out.Body,
		Status:             models.MessageFailed,
		Error:              cause.Error(),
	}); err != nil {
		zap.L().Error("Failed to write message log", zap.String("message_id", msg.Id), zap.Error(err))
	}
	d.mark(ctx, msg, models.MessageFailed, cause.Error())
	metrics.RecordMessage(msg.Channel, models.MessageFailed)

	fmt.Printf("  %s✗ %s step %d → %s: %s%s\n",
		colorRed, msg.CampaignKey, msg.Step, p.FirstName(), cause, colorReset)

	if msg.CampaignKey != "" {
		d.notifyAdmin(ctx, msg, p, cause)
	}
	d.completeEnrollment(ctx, msg)
}

// notifyAdmin emails the administrator about a failed campaign message, once per message.
func (d *Dispatcher) notifyAdmin(ctx context.Context, msg models.ScheduledMessage, p *models.Participant, cause error) {
	if d.adminEmail == "" {
		return
	}
	notified, err := d.messages.HasLog(ctx, msg.Id, StatusAdminNotified)
	if err != nil || notified {
		return
	}

	alert := messaging.Message{
		Channel: models.ChannelEmail,
		To:      d.adminEmail,
		Subject: fmt.Sprintf("Drip message failed: %s step %d", msg.CampaignKey, msg.Step),
		Body: fmt.Sprintf("Campaign: %s\nStep: %d\nChannel: %s\nParticipant: %s (%s)\nError: %s\n",
			msg.CampaignKey, msg.Step, msg.Channel, p.Name, p.Id, cause),
	}
	result, err := d.sender.Send(ctx, alert)
	if err != nil {
		zap.L().Error("Failed to notify administrator",
			zap.String("message_id", msg.Id),
			zap.Error(err))
		return
	}

	if err := d.messages.InsertLog(ctx, models.MessageLog{
		ScheduledMessageId: msg.Id,
		Channel:            models.ChannelEmail,
		Recipient:          d.adminEmail,
		Body:               alert.Body,
		ProviderId:         result.ProviderId,
		Status:             StatusAdminNotified,
	}); err != nil {
		zap.L().Error("Failed to write admin notification log", zap.String("message_id", msg.Id), zap.Error(err))
	}
}

// mark moves a pending message to its final status. Losing the race to another
// run is expected and only logged.
func (d *Dispatcher) mark(ctx context.Context, msg models.ScheduledMessage, to, lastError string) {
	d.markProcessed(msg.Id)
	err := d.messages.MarkMessage(ctx, msg.Id, models.MessagePending, to, lastError, d.now())
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrInvalidTransition) {
		zap.L().Debug("Message already handled", zap.String("message_id", msg.Id), zap.String("status", to))
		return
	}
	zap.L().Error("Failed to mark message",
		zap.String("message_id", msg.Id),
		zap.String("status", to),
		zap.Error(err))
}

func (d *Dispatcher) completeEnrollment(ctx context.Context, msg models.ScheduledMessage) {
	if msg.EnrollmentId == "" {
		return
	}
	done, err := d.messages.CompleteEnrollmentIfDone(ctx, msg.EnrollmentId)
	if err != nil {
		zap.L().Error("Failed to complete enrollment", zap.String("enrollment_id", msg.EnrollmentId), zap.Error(err))
		return
	}
	if done {
		zap.L().Info("Enrollment completed",
			zap.String("enrollment_id", msg.EnrollmentId),
			zap.String("campaign", msg.CampaignKey))
	}
}
