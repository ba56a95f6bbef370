package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"iamblessed-funnel-go/internal/database"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/joykeys"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/referral"
	"iamblessed-funnel-go/internal/store"
	"iamblessed-funnel-go/internal/tiers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCampaigns = `
campaigns:
  - key: welcome
    steps:
      - offset: 0
        channel: sms
        template: "Welcome {{.FirstName}}! Share your link: {{.ReferralLink}}"
      - offset: 1d
        channel: email
        subject: "Day 2 of your gratitude challenge"
        template: "{{.FirstName}}, you have {{.Coins}} coins."
  - key: joy-keys-nudge
    steps:
      - offset: 2h
        channel: sms
        template: "{{.FirstName}}, your next joy key is waiting."
`

type captureSender struct {
	mu   sync.Mutex
	sent []messaging.Message
	err  error
}

func (s *captureSender) Send(_ context.Context, msg messaging.Message) (messaging.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return messaging.Result{}, s.err
	}
	s.sent = append(s.sent, msg)
	return messaging.Result{Channel: msg.Channel, ProviderId: "SM123"}, nil
}

func testRewards() models.RewardsConfig {
	return models.RewardsConfig{
		Signup:            decimal.NewFromInt(50),
		Share:             decimal.NewFromInt(10),
		ReferralConverted: decimal.NewFromInt(100),
		Purchase:          decimal.NewFromInt(250),
		ClipApproved:      decimal.NewFromInt(75),
		BlessingSent:      decimal.NewFromInt(5),
		NominationSent:    decimal.NewFromInt(15),
		JoyKeyUnlocked:    decimal.NewFromInt(25),
	}
}

type fixture struct {
	svc    *FunnelService
	db     *database.Service
	sender *captureSender
}

func setupFunnel(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	catalog, err := drip.ParseCatalog([]byte(testCampaigns))
	require.NoError(t, err)

	awards := gamification.NewService(db, db, testRewards(), tiers.Defaults())
	sender := &captureSender{}
	svc := NewFunnelService(FunnelServiceConfig{
		Funnel:        db,
		Messages:      db,
		Ledger:        db,
		Database:      db,
		Awards:        awards,
		Referrals:     referral.NewService(db, awards, referral.Options{PublicBaseURL: "https://iamblessedaf.com"}),
		JoyKeys:       joykeys.NewService(db, db, awards),
		Drips:         drip.NewScheduler(catalog, db),
		Sender:        sender,
		PublicBaseURL: "https://iamblessedaf.com",
	})
	return &fixture{svc: svc, db: db, sender: sender}
}

func (f *fixture) signup(t *testing.T, id, name, email, code string) *models.SignupResponse {
	t.Helper()
	resp, err := f.svc.Signup(context.Background(), id, models.SignupRequest{
		Name:         name,
		Email:        email,
		Phone:        "(555) 010-0000",
		ReferralCode: code,
	})
	require.NoError(t, err)
	return resp
}

func coins(t *testing.T, db *database.Service, id, currency string) decimal.Decimal {
	t.Helper()
	balance, err := db.Balance(context.Background(), id, currency)
	require.NoError(t, err)
	return balance
}

func TestSignupCreatesCodeAwardsAndEnrolls(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()

	resp := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")
	assert.Equal(t, "p1", resp.Participant.Id)
	assert.Equal(t, "+15550100000", resp.Participant.Phone)
	assert.Len(t, resp.ReferralCode, 8)
	assert.Equal(t, "https://iamblessedaf.com/?ref="+resp.ReferralCode, resp.ReferralLink)

	assert.True(t, coins(t, f.db, "p1", models.CurrencyCoins).Equal(decimal.NewFromInt(50)))

	pending, err := f.db.ListMessages(ctx, models.MessagePending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "both welcome steps should be scheduled")

	stalled, err := f.db.ListStalledJoyKeys(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "p1", stalled[0].ParticipantId)
}

func TestSignupGeneratesIdWithoutUser(t *testing.T) {
	f := setupFunnel(t)
	resp := f.signup(t, "", "Ada Finch", "ada@example.com", "")
	assert.NotEmpty(t, resp.Participant.Id)
}

func TestSignupRejectsInvalidPhone(t *testing.T) {
	f := setupFunnel(t)
	_, err := f.svc.Signup(context.Background(), "p1", models.SignupRequest{
		Name: "Grace Holloway", Email: "grace@example.com", Phone: "12",
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSignupIgnoresUnknownReferralCode(t *testing.T) {
	f := setupFunnel(t)
	resp := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "ZZZZ2345")
	assert.Empty(t, resp.Participant.ReferredBy)

	_, err := f.db.GetReferralByReferred(context.Background(), "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderPaidConvertsReferral(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()

	referrer := f.signup(t, "r1", "Ruth Bell", "ruth@example.com", "")
	f.signup(t, "p2", "Sam Reed", "sam@example.com", referrer.ReferralCode)

	order := models.Order{
		Id:            "order-1",
		ParticipantId: "p2",
		SessionId:     "cs_test_1",
		Amount:        decimal.RequireFromString("111.00"),
		Status:        models.OrderPaid,
	}
	require.NoError(t, f.svc.OrderPaid(ctx, order))
	// redelivery must not pay twice
	require.NoError(t, f.svc.OrderPaid(ctx, order))

	ref, err := f.db.GetReferralByReferred(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralConverted, ref.Status)

	assert.True(t, coins(t, f.db, "p2", models.CurrencyCoins).Equal(decimal.NewFromInt(300)), "signup + purchase")
	assert.True(t, coins(t, f.db, "r1", models.CurrencyCoins).Equal(decimal.NewFromInt(150)), "signup + conversion")
	assert.True(t, coins(t, f.db, "r1", models.CurrencyCredits).Equal(decimal.RequireFromString("11.10")),
		"seed tier commission, got %s", coins(t, f.db, "r1", models.CurrencyCredits))
}

func TestOrderPaidAttributesCheckoutCode(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()

	referrer := f.signup(t, "r1", "Ruth Bell", "ruth@example.com", "")
	f.signup(t, "p2", "Sam Reed", "sam@example.com", "")

	require.NoError(t, f.svc.OrderPaid(ctx, models.Order{
		Id: "order-2", ParticipantId: "p2", Amount: decimal.NewFromInt(50), ReferralCode: referrer.ReferralCode,
	}))

	ref, err := f.db.GetReferralByReferred(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "r1", ref.ReferrerId)
	assert.Equal(t, models.ReferralConverted, ref.Status)
}

func TestShareAwardsOncePerDay(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	resp := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")
	p := resp.Participant

	first, err := f.svc.Share(ctx, p, "")
	require.NoError(t, err)
	assert.Equal(t, resp.ReferralLink, first.Link.TargetURL)
	assert.Contains(t, first.ShortURL, first.Link.Slug)

	_, err = f.svc.Share(ctx, p, "")
	require.NoError(t, err)
	assert.True(t, coins(t, f.db, "p1", models.CurrencyCoins).Equal(decimal.NewFromInt(60)))
}

func TestSendBlessingDeliversAndUnlocksGratitude(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	blessing, err := f.svc.SendBlessing(ctx, p, models.BlessingRequest{
		RecipientName:  "Mom",
		RecipientPhone: "555-010-1111",
		Message:        "Thank you for everything.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BlessingSent, blessing.Status)
	assert.False(t, blessing.Generated)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, models.ChannelSMS, f.sender.sent[0].Channel)
	assert.Equal(t, "+15550101111", f.sender.sent[0].To)

	state, err := f.svc.JoyKeys(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, joykeys.IsUnlocked(*state, joykeys.KeyGratitude))
}

func TestSendBlessingKeepsDraftWhenDeliveryFails(t *testing.T) {
	f := setupFunnel(t)
	f.sender.err = errors.New("carrier rejected")
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	blessing, err := f.svc.SendBlessing(context.Background(), p, models.BlessingRequest{
		RecipientName:  "Mom",
		RecipientEmail: "mom@example.com",
		Message:        "Thank you.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BlessingDraft, blessing.Status)
	assertDraftNotRewarded(t, f, "p1")
}

func TestSendBlessingWithoutAddressStaysDraft(t *testing.T) {
	f := setupFunnel(t)
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	blessing, err := f.svc.SendBlessing(context.Background(), p, models.BlessingRequest{
		RecipientName: "Mom",
		Message:       "Thank you.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BlessingDraft, blessing.Status)
	assert.Empty(t, f.sender.sent)
	assertDraftNotRewarded(t, f, "p1")
}

func assertDraftNotRewarded(t *testing.T, f *fixture, id string) {
	t.Helper()
	ctx := context.Background()

	state, err := f.svc.JoyKeys(ctx, id)
	require.NoError(t, err)
	assert.False(t, joykeys.IsUnlocked(*state, joykeys.KeyGratitude))

	// signup coins only
	assert.True(t, coins(t, f.db, id, models.CurrencyCoins).Equal(decimal.NewFromInt(50)))

	sent, err := f.db.CountBlessings(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendBlessingRequiresMessage(t *testing.T) {
	f := setupFunnel(t)
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	_, err := f.svc.SendBlessing(context.Background(), p, models.BlessingRequest{RecipientName: "Mom"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestNominateRendersReferralLink(t *testing.T) {
	f := setupFunnel(t)
	resp := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")

	nomination, err := f.svc.Nominate(context.Background(), resp.Participant, models.NominationRequest{
		NomineeName:  "June",
		NomineeEmail: "june@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NominationSent, nomination.Status)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, models.ChannelEmail, msg.Channel)
	assert.Contains(t, msg.Body, "Grace nominated you")
	assert.Contains(t, msg.Body, resp.ReferralLink)
}

func TestReviewClipPaysLadderBonus(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	clip, err := f.svc.SubmitClip(ctx, p, models.ClipRequest{
		URL: "https://tiktok.com/@grace/video/1", Platform: "tiktok", Views: 1200,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ClipSubmitted, clip.Status)

	reviewed, err := f.svc.ReviewClip(ctx, clip.Id, models.ClipReviewRequest{Approve: true, Views: 60_000})
	require.NoError(t, err)
	assert.Equal(t, models.ClipApproved, reviewed.Status)
	assert.True(t, reviewed.Bonus.Equal(decimal.NewFromInt(25)))

	assert.True(t, coins(t, f.db, "p1", models.CurrencyCredits).Equal(decimal.NewFromInt(25)))
	assert.True(t, coins(t, f.db, "p1", models.CurrencyCoins).Equal(decimal.NewFromInt(125)))
}

// failingCredits fails every USD credit while fail is set.
type failingCredits struct {
	store.CoinLedger
	fail bool
}

func (l *failingCredits) Credit(ctx context.Context, params store.CoinEntryParams) (*models.CoinTransaction, error) {
	if l.fail && params.Currency == models.CurrencyCredits {
		return nil, errors.New("ledger unavailable")
	}
	return l.CoinLedger.Credit(ctx, params)
}

func TestReviewClipCanBeRetriedAfterPayoutFailure(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	p := f.signup(t, "p1", "Grace Holloway", "grace@example.com", "").Participant

	ledger := &failingCredits{CoinLedger: f.db, fail: true}
	f.svc.awards = gamification.NewService(ledger, f.db, testRewards(), tiers.Defaults())

	clip, err := f.svc.SubmitClip(ctx, p, models.ClipRequest{
		URL: "https://tiktok.com/@grace/video/2", Platform: "tiktok", Views: 60_000,
	})
	require.NoError(t, err)

	_, err = f.svc.ReviewClip(ctx, clip.Id, models.ClipReviewRequest{Approve: true})
	require.Error(t, err)

	stored, err := f.db.GetClip(ctx, clip.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ClipSubmitted, stored.Status)

	ledger.fail = false
	reviewed, err := f.svc.ReviewClip(ctx, clip.Id, models.ClipReviewRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.ClipApproved, reviewed.Status)
	assert.True(t, coins(t, f.db, "p1", models.CurrencyCredits).Equal(decimal.NewFromInt(25)))

	_, err = f.svc.ReviewClip(ctx, clip.Id, models.ClipReviewRequest{Approve: true})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.True(t, coins(t, f.db, "p1", models.CurrencyCredits).Equal(decimal.NewFromInt(25)))
}

func TestRedeemReturnsNewBalance(t *testing.T) {
	f := setupFunnel(t)
	f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")

	balance, err := f.svc.Redeem(context.Background(), "p1", models.RedeemRequest{Amount: decimal.NewFromInt(20), Reason: "sticker pack"})
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(30)))

	_, err = f.svc.Redeem(context.Background(), "p1", models.RedeemRequest{Amount: decimal.NewFromInt(500), Reason: "hoodie"})
	assert.ErrorIs(t, err, store.ErrInsufficientFunds)
}

func TestHistoryRejectsUnknownCurrency(t *testing.T) {
	f := setupFunnel(t)
	_, err := f.svc.History(context.Background(), "p1", "btc", 10, 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestEnrollParticipantsSkipsDuplicatesAndUnknown(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")
	f.signup(t, "p2", "Sam Reed", "sam@example.com", "")

	result, err := f.svc.EnrollParticipants(ctx, drip.NudgeCampaign, []string{"p1", "ghost", "p2"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, result.Enrolled)
	assert.Equal(t, []string{"ghost"}, result.Skipped)

	result, err = f.svc.EnrollParticipants(ctx, drip.NudgeCampaign, []string{"p1"}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, result.Enrolled)
	assert.Equal(t, []string{"p1"}, result.Skipped)

	_, err = f.svc.EnrollParticipants(ctx, "unknown", []string{"p1"}, time.Time{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatsAndMessages(t *testing.T) {
	f := setupFunnel(t)
	ctx := context.Background()
	f.signup(t, "p1", "Grace Holloway", "grace@example.com", "")

	stats, err := f.svc.Stats(ctx, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Participants)
	require.Len(t, stats.Outstanding, 1)
	assert.Equal(t, models.CurrencyCoins, stats.Outstanding[0].Currency)
	assert.True(t, stats.Outstanding[0].Total.Equal(decimal.NewFromInt(50)))

	messages, err := f.svc.Messages(ctx, models.MessagePending, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	messages, err = f.svc.Messages(ctx, models.MessageSent, 10)
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestCheckoutWithoutPayments(t *testing.T) {
	f := setupFunnel(t)
	_, err := f.svc.Checkout(context.Background(), models.Participant{Id: "p1"}, models.CheckoutRequest{})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	f := setupFunnel(t)
	assert.NoError(t, f.svc.HealthCheck(context.Background()))
}
