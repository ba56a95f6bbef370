package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
)

func welcomeSteps(start time.Time) []store.ScheduleParams {
	return []store.ScheduleParams{
		{Step: 0, Channel: models.ChannelSMS, Template: "Hi {{.FirstName}}", ScheduledSendAt: start},
		{Step: 1, Channel: models.ChannelEmail, Subject: "Day 1", Template: "Welcome", ScheduledSendAt: start.Add(24 * time.Hour)},
	}
}

func TestEnrollAndDueMessages(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	enrollment, err := service.Enroll(ctx, "p1", "welcome", start, welcomeSteps(start))
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if enrollment.Status != models.EnrollmentActive {
		t.Errorf("Expected active enrollment, got %s", enrollment.Status)
	}

	if _, err := service.Enroll(ctx, "p1", "welcome", start, welcomeSteps(start)); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected duplicate enrollment error, got %v", err)
	}

	due, err := service.DueMessages(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("DueMessages failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Expected 1 due message, got %d", len(due))
	}
	if due[0].EnrollmentId != enrollment.Id || due[0].Step != 0 {
		t.Errorf("Unexpected due message: %+v", due[0])
	}
}

func TestMarkMessageAndComplete(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now().Add(-48 * time.Hour)
	enrollment, err := service.Enroll(ctx, "p1", "welcome", start, welcomeSteps(start))
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	due, err := service.DueMessages(ctx, time.Now(), 10)
	if err != nil || len(due) != 2 {
		t.Fatalf("Expected 2 due messages, got %d (%v)", len(due), err)
	}

	if err := service.MarkMessage(ctx, due[0].Id, models.MessagePending, models.MessageSent, "", time.Now()); err != nil {
		t.Fatalf("MarkMessage failed: %v", err)
	}
	if err := service.MarkMessage(ctx, due[0].Id, models.MessagePending, models.MessageSent, "", time.Now()); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition, got %v", err)
	}

	done, err := service.CompleteEnrollmentIfDone(ctx, enrollment.Id)
	if err != nil || done {
		t.Fatalf("Expected enrollment still active, got %v (%v)", done, err)
	}

	if err := service.MarkMessage(ctx, due[1].Id, models.MessagePending, models.MessageFailed, "provider down", time.Now()); err != nil {
		t.Fatalf("MarkMessage failed: %v", err)
	}
	done, err = service.CompleteEnrollmentIfDone(ctx, enrollment.Id)
	if err != nil || !done {
		t.Fatalf("Expected enrollment completed, got %v (%v)", done, err)
	}

	sent, err := service.ListMessages(ctx, models.MessageSent, 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(sent) != 1 || sent[0].SentAt == nil || sent[0].Attempts != 1 {
		t.Errorf("Unexpected sent messages: %+v", sent)
	}
}

func TestCancelEnrollmentSkipsPending(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	start := time.Now()
	if _, err := service.Enroll(ctx, "p1", "welcome", start, welcomeSteps(start)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	if err := service.CancelEnrollment(ctx, "p1", "welcome"); err != nil {
		t.Fatalf("CancelEnrollment failed: %v", err)
	}
	if err := service.CancelEnrollment(ctx, "p1", "welcome"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found on second cancel, got %v", err)
	}

	skipped, err := service.ListMessages(ctx, models.MessageSkipped, 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(skipped) != 2 {
		t.Errorf("Expected 2 skipped messages, got %d", len(skipped))
	}
}

func TestScheduleOneOffAndReschedule(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := service.ScheduleOneOff(ctx, "p1", store.ScheduleParams{Step: 2, Channel: models.ChannelSMS, Template: "nudge", ScheduledSendAt: time.Now().Add(-time.Second)}); err != nil {
			t.Fatalf("ScheduleOneOff %d failed: %v", i, err)
		}
	}

	due, err := service.DueMessages(ctx, time.Now(), 10)
	if err != nil || len(due) != 2 {
		t.Fatalf("Expected 2 due one-off messages, got %d (%v)", len(due), err)
	}
	if due[0].EnrollmentId != "" {
		t.Errorf("Expected empty enrollment id, got %q", due[0].EnrollmentId)
	}

	if err := service.Reschedule(ctx, due[0].Id, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	due, err = service.DueMessages(ctx, time.Now(), 10)
	if err != nil || len(due) != 1 {
		t.Errorf("Expected 1 due message after reschedule, got %d (%v)", len(due), err)
	}
}

func TestMessageLogsAndStats(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	since := time.Now().Add(-time.Hour)
	createTestParticipant(t, service, "p1", "p1@example.com")

	if err := service.InsertLog(ctx, models.MessageLog{ScheduledMessageId: "m1", Channel: models.ChannelSMS, Recipient: "+15555550100", Body: "hi", Status: models.MessageSent}); err != nil {
		t.Fatalf("InsertLog failed: %v", err)
	}
	if err := service.InsertLog(ctx, models.MessageLog{ScheduledMessageId: "m2", Channel: models.ChannelEmail, Recipient: "p1@example.com", Body: "hi", Status: models.MessageFailed, Error: "bounced"}); err != nil {
		t.Fatalf("InsertLog failed: %v", err)
	}

	has, err := service.HasLog(ctx, "m1", models.MessageSent)
	if err != nil || !has {
		t.Errorf("Expected sent log for m1, got %v (%v)", has, err)
	}
	has, err = service.HasLog(ctx, "m2", models.MessageSent)
	if err != nil || has {
		t.Errorf("Expected no sent log for m2, got %v (%v)", has, err)
	}

	if _, err := service.CreateOrder(ctx, models.Order{Id: "o1", ParticipantId: "p1", SessionId: "cs_1", Amount: decimal.RequireFromString("33.00")}); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if err := service.UpdateOrderStatus(ctx, "cs_1", models.OrderPending, models.OrderPaid, time.Now()); err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}

	stats, err := service.Stats(ctx, since)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Participants != 1 || stats.NewParticipants != 1 {
		t.Errorf("Expected 1 participant, got %d/%d", stats.Participants, stats.NewParticipants)
	}
	if stats.MessagesSent != 1 || stats.MessagesFailed != 1 {
		t.Errorf("Expected 1 sent and 1 failed, got %d/%d", stats.MessagesSent, stats.MessagesFailed)
	}
	if stats.PaidOrders != 1 || !stats.Revenue.Equal(decimal.NewFromInt(33)) {
		t.Errorf("Expected 1 paid order worth 33, got %d/%s", stats.PaidOrders, stats.Revenue)
	}
}
