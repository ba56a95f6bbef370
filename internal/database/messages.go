package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enroll inserts the enrollment and one scheduled message per step atomically.
func (s *Service) Enroll(ctx context.Context, participantId, campaignKey string, startedAt time.Time, steps []store.ScheduleParams) (*models.Enrollment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		Id:            uuid.New().String(),
		ParticipantId: participantId,
		CampaignKey:   campaignKey,
		Status:        models.EnrollmentActive,
		StartedAt:     startedAt.UTC(),
		UpdatedAt:     now,
	}

	_, err = tx.ExecContext(ctx, queryInsertEnrollment,
		enrollment.Id, participantId, campaignKey, enrollment.Status, enrollment.StartedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s already enrolled in %s: %w", participantId, campaignKey, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert enrollment: %w", err)
	}

	for _, step := range steps {
		_, err := tx.ExecContext(ctx, queryInsertScheduledMessage,
			uuid.New().String(), enrollment.Id, participantId, campaignKey, step.Step,
			step.Channel, step.Subject, step.Template, step.ScheduledSendAt.UTC())
		if err != nil {
			return nil, fmt.Errorf("unable to schedule step %d: %w", step.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit enrollment: %w", err)
	}

	return enrollment, nil
}

func (s *Service) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.QueryRowContext(ctx, queryGetEnrollment, id).Scan(
		&e.Id, &e.ParticipantId, &e.CampaignKey, &e.Status, &e.StartedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("enrollment %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query enrollment: %w", err)
	}
	return &e, nil
}

// CancelEnrollment cancels an active enrollment and skips its pending messages.
func (s *Service) CancelEnrollment(ctx context.Context, participantId, campaignKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var enrollmentId string
	err = tx.QueryRowContext(ctx, queryCancelEnrollment, time.Now().UTC(), participantId, campaignKey).Scan(&enrollmentId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("active enrollment %s/%s: %w", participantId, campaignKey, store.ErrNotFound)
		}
		return fmt.Errorf("unable to cancel enrollment: %w", err)
	}

	result, err := tx.ExecContext(ctx, querySkipPendingMessages, enrollmentId)
	if err != nil {
		return fmt.Errorf("unable to skip pending messages: %w", err)
	}
	skipped, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	zap.L().Info("Enrollment cancelled",
		zap.String("participant_id", participantId),
		zap.String("campaign", campaignKey),
		zap.Int64("skipped_messages", skipped))
	return nil
}

// CompleteEnrollmentIfDone marks the enrollment completed once no pending messages remain.
func (s *Service) CompleteEnrollmentIfDone(ctx context.Context, enrollmentId string) (bool, error) {
	pending, err := s.count(ctx, queryCountPendingMessages, enrollmentId)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx, queryCompleteEnrollment, time.Now().UTC(), enrollmentId)
	if err != nil {
		return false, fmt.Errorf("unable to complete enrollment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unable to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ScheduleOneOff queues a message outside any campaign enrollment.
func (s *Service) ScheduleOneOff(ctx context.Context, participantId string, msg store.ScheduleParams) (*models.ScheduledMessage, error) {
	scheduled := &models.ScheduledMessage{
		Id:              uuid.New().String(),
		ParticipantId:   participantId,
		CampaignKey:     msg.CampaignKey,
		Step:            msg.Step,
		Channel:         msg.Channel,
		Subject:         msg.Subject,
		Template:        msg.Template,
		ScheduledSendAt: msg.ScheduledSendAt.UTC(),
		Status:          models.MessagePending,
	}
	_, err := s.db.ExecContext(ctx, queryInsertScheduledMessage,
		scheduled.Id, nil, participantId, msg.CampaignKey, msg.Step, msg.Channel, msg.Subject, msg.Template, scheduled.ScheduledSendAt)
	if err != nil {
		return nil, fmt.Errorf("unable to schedule message: %w", err)
	}
	return scheduled, nil
}

func scanScheduledMessage(row rowScanner) (*models.ScheduledMessage, error) {
	var m models.ScheduledMessage
	var enrollmentId sql.NullString
	var sentAt sql.NullTime
	err := row.Scan(&m.Id, &enrollmentId, &m.ParticipantId, &m.CampaignKey, &m.Step, &m.Channel, &m.Subject,
		&m.Template, &m.ScheduledSendAt, &m.Status, &sentAt, &m.Attempts, &m.LastError)
	if err != nil {
		return nil, err
	}
	m.EnrollmentId = enrollmentId.String
	m.SentAt = timePtr(sentAt)
	return &m, nil
}

func (s *Service) queryMessages(ctx context.Context, query string, args ...any) ([]models.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query scheduled messages: %w", err)
	}
	defer closeRows(rows)

	var messages []models.ScheduledMessage
	for rows.Next() {
		m, err := scanScheduledMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan scheduled message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled message rows: %w", err)
	}
	return messages, nil
}

// DueMessages returns pending messages whose send time has arrived, oldest first.
func (s *Service) DueMessages(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMessage, error) {
	return s.queryMessages(ctx, queryDueMessages, now.UTC(), limit)
}

// ListMessages returns the most recent messages, filtered by status when non-empty.
func (s *Service) ListMessages(ctx context.Context, status string, limit int) ([]models.ScheduledMessage, error) {
	return s.queryMessages(ctx, queryListMessages, status, status, limit)
}

// MarkMessage transitions a message from one status to another. A message not in
// the expected status yields ErrInvalidTransition, so concurrent dispatch runs
// cannot both claim it.
func (s *Service) MarkMessage(ctx context.Context, id, from, to, lastError string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryMarkMessage, to, lastError, to, at.UTC(), id, from)
	if err != nil {
		return fmt.Errorf("unable to mark message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s not %s: %w", id, from, store.ErrInvalidTransition)
	}
	return nil
}

func (s *Service) Reschedule(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryRescheduleMessage, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("unable to reschedule message: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("pending message %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Service) InsertLog(ctx context.Context, log models.MessageLog) error {
	if log.Id == "" {
		log.Id = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, queryInsertMessageLog,
		log.Id, log.ScheduledMessageId, log.ParticipantId, log.Channel, log.Recipient, log.Body,
		log.ProviderId, log.Status, log.Error, log.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("unable to insert message log: %w", err)
	}
	return nil
}

func (s *Service) HasLog(ctx context.Context, scheduledMessageId, status string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryHasMessageLog, scheduledMessageId, status).Scan(&exists); err != nil {
		return false, fmt.Errorf("unable to check message log: %w", err)
	}
	return exists, nil
}

func (s *Service) CountLogs(ctx context.Context, status string, since time.Time) (int64, error) {
	return s.count(ctx, queryCountMessageLogs, status, since.UTC())
}
