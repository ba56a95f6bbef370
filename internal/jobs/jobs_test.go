package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"iamblessed-funnel-go/internal/database"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nudgeCampaigns = `
campaigns:
  - key: joy-keys-nudge
    steps:
      - offset: 0
        channel: sms
        template: "{{.FirstName}}, your next joy key is waiting."
`

type captureSender struct {
	mu   sync.Mutex
	sent []messaging.Message
}

func (s *captureSender) Send(_ context.Context, msg messaging.Message) (messaging.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return messaging.Result{Channel: msg.Channel, ProviderId: "test"}, nil
}

func setupRunner(t *testing.T, cfg RunnerConfig) (*Runner, *database.Service, *captureSender) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	catalog, err := drip.ParseCatalog([]byte(nudgeCampaigns))
	require.NoError(t, err)

	sender := &captureSender{}
	cfg.Funnel = db
	cfg.Scheduler = drip.NewScheduler(catalog, db)
	cfg.Sender = sender

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	return r, db, sender
}

func TestNewRunnerSchedules(t *testing.T) {
	r, _, _ := setupRunner(t, RunnerConfig{DigestSchedule: "0 8 * * *", NudgeSchedule: "@hourly"})
	assert.Equal(t, 2, r.Entries())

	r, _, _ = setupRunner(t, RunnerConfig{NudgeSchedule: "@hourly"})
	assert.Equal(t, 1, r.Entries())

	_, err := NewRunner(RunnerConfig{DigestSchedule: "every tuesday"})
	assert.ErrorContains(t, err, "invalid digest schedule")
}

func TestNudgeSweepEnrollsStalledParticipantsOnce(t *testing.T) {
	r, db, _ := setupRunner(t, RunnerConfig{NudgeAfter: 24 * time.Hour})
	ctx := context.Background()
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for _, id := range []string{"stalled", "active", "done"} {
		_, err := db.CreateParticipant(ctx, store.CreateParticipantParams{Id: id, Name: id, Email: id + "@example.com", Phone: "+15555550100"})
		require.NoError(t, err)
	}
	require.NoError(t, db.SaveJoyKeys(ctx, models.JoyKeys{
		ParticipantId: "stalled", Unlocked: 1,
		UnlockedAt: map[int]time.Time{1: now.Add(-48 * time.Hour)}, UpdatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, db.SaveJoyKeys(ctx, models.JoyKeys{
		ParticipantId: "active", Unlocked: 3,
		UnlockedAt: map[int]time.Time{1: now.Add(-2 * time.Hour), 2: now.Add(-time.Hour)}, UpdatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, db.SaveJoyKeys(ctx, models.JoyKeys{
		ParticipantId: "done", Unlocked: 15, UpdatedAt: now.Add(-72 * time.Hour),
	}))

	enrolled, err := r.NudgeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, enrolled)

	due, err := db.DueMessages(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "stalled", due[0].ParticipantId)
	assert.Equal(t, drip.NudgeCampaign, due[0].CampaignKey)

	// the next sweep finds the same participant but does not enroll again
	enrolled, err = r.NudgeSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, enrolled)
}

func TestSendDigest(t *testing.T) {
	r, db, sender := setupRunner(t, RunnerConfig{AdminEmail: "ops@iamblessedaf.com"})
	ctx := context.Background()

	_, err := db.CreateParticipant(ctx, store.CreateParticipantParams{Id: "p1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, r.SendDigest(ctx))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, models.ChannelEmail, msg.Channel)
	assert.Equal(t, "ops@iamblessedaf.com", msg.To)
	assert.True(t, strings.HasPrefix(msg.Subject, "Funnel digest"))
	assert.Contains(t, msg.Body, "New participants:   1 (total 1)")
}

func TestSendDigestWithoutAdmin(t *testing.T) {
	r, _, sender := setupRunner(t, RunnerConfig{})
	require.NoError(t, r.SendDigest(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestFormatDigest(t *testing.T) {
	body := FormatDigest(&models.FunnelStats{
		Participants:      120,
		NewParticipants:   7,
		Referrals:         30,
		ConvertedReferral: 4,
		PaidOrders:        3,
		Revenue:           decimal.RequireFromString("333"),
		MessagesSent:      41,
		MessagesFailed:    2,
		PendingClips:      5,
		Since:             time.Date(2026, 7, 9, 8, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, body, "Revenue:            $333.00")
	assert.Contains(t, body, "Referrals:          30 (4 converted)")
	assert.Contains(t, body, "Messages failed:    2")
}

func TestRunnerStartStop(t *testing.T) {
	r, _, _ := setupRunner(t, RunnerConfig{NudgeSchedule: "@every 1h"})
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
