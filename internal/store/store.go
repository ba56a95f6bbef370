package store

import (
	"context"
	"errors"
	"time"

	"iamblessed-funnel-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicate              = errors.New("duplicate")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidInput           = errors.New("invalid input")
	ErrBalanceMismatch        = errors.New("balance does not match transactions")
)

// CoinEntryParams describes one credit or debit against a participant wallet.
type CoinEntryParams struct {
	ParticipantId  string
	Currency       string          // models.CurrencyCoins or models.CurrencyCredits
	Amount         decimal.Decimal // always positive; direction comes from the call
	ExternalRef    string          // idempotency key, e.g. "signup:<participant>"
	Reason         string
	AllowOverdraft bool
}

// CoinLedger defines the contract every wallet backend (SQLite, Formance, ...) must satisfy.
type CoinLedger interface {
	Credit(ctx context.Context, params CoinEntryParams) (*models.CoinTransaction, error)
	Debit(ctx context.Context, params CoinEntryParams) (*models.CoinTransaction, error)
	Balance(ctx context.Context, participantId, currency string) (decimal.Decimal, error)
	Balances(ctx context.Context, participantId string) ([]models.CoinBalance, error)
	History(ctx context.Context, participantId, currency string, limit, offset int) ([]models.CoinTransaction, error)
	Reconcile(ctx context.Context, participantId, currency string) error
	Close()
}

// CreateParticipantParams contains the fields of a new participant.
type CreateParticipantParams struct {
	Id         string
	Name       string
	Email      string
	Phone      string
	Role       string
	ReferredBy string
}

// FunnelStore persists the funnel rows: participants, referrals, links, gamification and orders.
type FunnelStore interface {
	// --- Participants ---
	CreateParticipant(ctx context.Context, params CreateParticipantParams) (*models.Participant, error)
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error)
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	SetOptOut(ctx context.Context, id string, optedOut bool) error

	// --- Referrals ---
	CreateReferralCode(ctx context.Context, participantId, code string) (*models.ReferralCode, error)
	GetReferralCode(ctx context.Context, code string) (*models.ReferralCode, error)
	GetReferralCodeFor(ctx context.Context, participantId string) (*models.ReferralCode, error)
	CreateReferral(ctx context.Context, referrerId, referredId, code string) (*models.Referral, error)
	GetReferralByReferred(ctx context.Context, referredId string) (*models.Referral, error)
	MarkReferralConverted(ctx context.Context, id string, at time.Time) error
	CountConvertedReferrals(ctx context.Context, referrerId string) (int64, error)

	// --- Short links ---
	CreateShortLink(ctx context.Context, link models.ShortLink) (*models.ShortLink, error)
	GetShortLink(ctx context.Context, slug string) (*models.ShortLink, error)
	ListShortLinks(ctx context.Context, ownerId string) ([]models.ShortLink, error)
	RecordClick(ctx context.Context, click models.LinkClick) error

	// --- Achievements ---
	UnlockAchievement(ctx context.Context, participantId, key string, at time.Time) (bool, error)
	ListAchievements(ctx context.Context, participantId string) ([]models.Achievement, error)

	// --- Clips ---
	CreateClip(ctx context.Context, clip models.Clip) (*models.Clip, error)
	GetClip(ctx context.Context, id string) (*models.Clip, error)
	ListClips(ctx context.Context, participantId string) ([]models.Clip, error)
	ReviewClip(ctx context.Context, id, status string, views int64, bonus decimal.Decimal, note string, at time.Time) error
	SumApprovedViews(ctx context.Context, participantId string) (int64, error)

	// --- Nominations & blessings ---
	CreateNomination(ctx context.Context, n models.Nomination) (*models.Nomination, error)
	CountNominations(ctx context.Context, nominatorId string) (int64, error)
	CreateBlessing(ctx context.Context, b models.Blessing) (*models.Blessing, error)
	CountBlessings(ctx context.Context, senderId string) (int64, error)

	// --- Joy keys ---
	GetJoyKeys(ctx context.Context, participantId string) (*models.JoyKeys, error)
	SaveJoyKeys(ctx context.Context, keys models.JoyKeys) error
	ListStalledJoyKeys(ctx context.Context, olderThan time.Time) ([]models.JoyKeys, error)

	// --- Orders ---
	CreateOrder(ctx context.Context, order models.Order) (*models.Order, error)
	GetOrderBySession(ctx context.Context, sessionId string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, sessionId, from, to string, at time.Time) error
	CountPaidOrders(ctx context.Context, participantId string) (int64, error)

	// --- Admin ---
	Stats(ctx context.Context, since time.Time) (*models.FunnelStats, error)
}

// ScheduleParams is one row to insert into the drip schedule.
type ScheduleParams struct {
	CampaignKey     string // only read for one-off messages
	Step            int
	Channel         string
	Subject         string
	Template        string
	ScheduledSendAt time.Time
}

// MessageStore persists drip enrollments, scheduled messages and the message audit log.
type MessageStore interface {
	Enroll(ctx context.Context, participantId, campaignKey string, startedAt time.Time, steps []ScheduleParams) (*models.Enrollment, error)
	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	CancelEnrollment(ctx context.Context, participantId, campaignKey string) error
	CompleteEnrollmentIfDone(ctx context.Context, enrollmentId string) (bool, error)

	ScheduleOneOff(ctx context.Context, participantId string, msg ScheduleParams) (*models.ScheduledMessage, error)
	DueMessages(ctx context.Context, now time.Time, limit int) ([]models.ScheduledMessage, error)
	MarkMessage(ctx context.Context, id, from, to, lastError string, at time.Time) error
	Reschedule(ctx context.Context, id string, at time.Time) error
	ListMessages(ctx context.Context, status string, limit int) ([]models.ScheduledMessage, error)

	InsertLog(ctx context.Context, log models.MessageLog) error
	HasLog(ctx context.Context, scheduledMessageId, status string) (bool, error)
	CountLogs(ctx context.Context, status string, since time.Time) (int64, error)
}
