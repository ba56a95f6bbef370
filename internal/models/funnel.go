package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral status
const (
	ReferralPending   = "pending"
	ReferralConverted = "converted"
)

// Clip status
const (
	ClipSubmitted = "submitted"
	ClipApproved  = "approved"
	ClipRejected  = "rejected"
	ClipPaid      = "paid"
)

// Nomination status
const (
	NominationPending  = "pending"
	NominationSent     = "sent"
	NominationAccepted = "accepted"
)

// Blessing status
const (
	BlessingDraft = "draft"
	BlessingSent  = "sent"
)

// Order status
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

type ReferralCode struct {
	Code          string    `db:"code" json:"code"`
	ParticipantId string    `db:"participant_id" json:"participant_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Referral struct {
	Id          string     `db:"id" json:"id"`
	ReferrerId  string     `db:"referrer_id" json:"referrer_id"`
	ReferredId  string     `db:"referred_id" json:"referred_id"`
	Code        string     `db:"code" json:"code"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ConvertedAt *time.Time `db:"converted_at" json:"converted_at,omitempty"`
}

type ShortLink struct {
	Slug      string     `db:"slug" json:"slug"`
	TargetURL string     `db:"target_url" json:"target_url"`
	OwnerId   string     `db:"owner_id" json:"owner_id,omitempty"`
	Clicks    int64      `db:"clicks" json:"clicks"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the link has an expiry in the past
func (l ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

type LinkClick struct {
	Slug      string    `db:"slug"`
	IPHash    string    `db:"ip_hash"`
	UserAgent string    `db:"user_agent"`
	ClickedAt time.Time `db:"clicked_at"`
}

type Achievement struct {
	ParticipantId string    `db:"participant_id" json:"-"`
	Key           string    `db:"achievement" json:"key"`
	UnlockedAt    time.Time `db:"unlocked_at" json:"unlocked_at"`
}

type Clip struct {
	Id            string          `db:"id" json:"id"`
	ParticipantId string          `db:"participant_id" json:"participant_id"`
	URL           string          `db:"url" json:"url"`
	Platform      string          `db:"platform" json:"platform"`
	Views         int64           `db:"views" json:"views"`
	Status        string          `db:"status" json:"status"`
	Bonus         decimal.Decimal `db:"bonus" json:"bonus"`
	ReviewNote    string          `db:"review_note" json:"review_note,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ReviewedAt    *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

type Nomination struct {
	Id           string    `db:"id" json:"id"`
	NominatorId  string    `db:"nominator_id" json:"nominator_id"`
	NomineeName  string    `db:"nominee_name" json:"nominee_name"`
	NomineePhone string    `db:"nominee_phone" json:"nominee_phone,omitempty"`
	NomineeEmail string    `db:"nominee_email" json:"nominee_email,omitempty"`
	Message      string    `db:"message" json:"message"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Blessing struct {
	Id             string    `db:"id" json:"id"`
	SenderId       string    `db:"sender_id" json:"sender_id"`
	RecipientName  string    `db:"recipient_name" json:"recipient_name"`
	RecipientPhone string    `db:"recipient_phone" json:"recipient_phone,omitempty"`
	RecipientEmail string    `db:"recipient_email" json:"recipient_email,omitempty"`
	Message        string    `db:"message" json:"message"`
	Generated      bool      `db:"generated" json:"generated"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// JoyKeys is the persisted progressive-unlock state for one participant.
// Unlocked holds one bit per key, bit 0 being key 1.
type JoyKeys struct {
	ParticipantId string            `db:"participant_id" json:"participant_id"`
	Unlocked      int               `db:"unlocked" json:"-"`
	UnlockedAt    map[int]time.Time `json:"unlocked_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

type Order struct {
	Id            string          `db:"id" json:"id"`
	ParticipantId string          `db:"participant_id" json:"participant_id"`
	SessionId     string          `db:"session_id" json:"session_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	ReferralCode  string          `db:"referral_code" json:"referral_code,omitempty"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// FunnelStats is the admin dashboard summary
type FunnelStats struct {
	Participants      int64           `json:"participants"`
	NewParticipants   int64           `json:"new_participants"`
	Referrals         int64           `json:"referrals"`
	ConvertedReferral int64           `json:"converted_referrals"`
	PaidOrders        int64           `json:"paid_orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	MessagesSent      int64           `json:"messages_sent"`
	MessagesFailed    int64           `json:"messages_failed"`
	PendingClips      int64           `json:"pending_clips"`
	Outstanding       []CurrencyTotal `json:"outstanding"`
	Since             time.Time       `json:"since"`
}

// CurrencyTotal is the sum of positive wallet balances in one currency.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Holders  int64           `json:"holders"`
}
