package joykeys

import (
	"context"
	"testing"
	"time"

	"iamblessed-funnel-go/internal/database"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"
	"iamblessed-funnel-go/internal/tiers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *database.Service, time.Time) {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.CreateParticipant(ctx, store.CreateParticipantParams{
		Id: "p1", Name: "Grace Holloway", Email: "grace@example.com", Phone: "+15555550101",
	})
	require.NoError(t, err)

	awards := gamification.NewService(db, db, models.RewardsConfig{JoyKeyUnlocked: decimal.NewFromInt(25)}, tiers.Defaults())
	svc := NewService(db, db, awards)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, db, now
}

func TestUnlockAwardsAndSchedulesNudge(t *testing.T) {
	svc, db, now := setupService(t)
	ctx := context.Background()

	state, changed, err := svc.Unlock(ctx, "p1", KeyGratitude)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, IsUnlocked(*state, KeyGratitude))

	balance, err := db.Balance(ctx, "p1", models.CurrencyCoins)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(25)), "got %s", balance)

	// nudge is not due before the delay
	due, err := db.DueMessages(ctx, now.Add(14*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = db.DueMessages(ctx, now.Add(DefaultNudgeDelay), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, NudgeCampaign, due[0].CampaignKey)
	assert.Equal(t, int(KeyShare), due[0].Step)
	assert.Equal(t, models.ChannelSMS, due[0].Channel)

	stale, err := svc.Stale(ctx, due[0])
	require.NoError(t, err)
	assert.False(t, stale)

	_, _, err = svc.Unlock(ctx, "p1", KeyShare)
	require.NoError(t, err)

	stale, err = svc.Stale(ctx, due[0])
	require.NoError(t, err)
	assert.True(t, stale, "nudge for an unlocked key should be stale")
}

func TestUnlockTwiceAwardsOnce(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	_, _, err := svc.Unlock(ctx, "p1", KeyGratitude)
	require.NoError(t, err)
	_, changed, err := svc.Unlock(ctx, "p1", KeyGratitude)
	require.NoError(t, err)
	assert.False(t, changed)

	balance, err := db.Balance(ctx, "p1", models.CurrencyCoins)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(25)))
}

func TestUnlockOutOfOrder(t *testing.T) {
	svc, _, _ := setupService(t)

	_, _, err := svc.Unlock(context.Background(), "p1", KeyCheckout)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	state := svc.TryUnlock(context.Background(), "p1", KeyCheckout)
	require.NotNil(t, state)
	assert.Zero(t, state.Unlocked)
}

func TestAllKeysUnlockJoyMaster(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	for _, k := range All {
		_, _, err := svc.Unlock(ctx, "p1", k)
		require.NoError(t, err)
	}

	achievements, err := db.ListAchievements(ctx, "p1")
	require.NoError(t, err)
	var keys []string
	for _, a := range achievements {
		keys = append(keys, a.Key)
	}
	assert.Contains(t, keys, gamification.AchievementJoyMaster)
}

func TestStaleIgnoresOtherCampaigns(t *testing.T) {
	svc, _, _ := setupService(t)

	stale, err := svc.Stale(context.Background(), models.ScheduledMessage{CampaignKey: "welcome", ParticipantId: "p1", Step: 1})
	require.NoError(t, err)
	assert.False(t, stale)
}
