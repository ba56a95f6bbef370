/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord represents a transaction in the participant's history
type TransactionRecord struct {
	Id        string          `json:"id"`
	Kind      string          `json:"kind"` // "credit", "debit"
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// TierProgress is the position of a metric on a tier ladder
type TierProgress struct {
	Ladder    string          `json:"ladder"`
	Metric    decimal.Decimal `json:"metric"`
	Current   string          `json:"current,omitempty"`
	Next      string          `json:"next,omitempty"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Rate      decimal.Decimal `json:"rate"`
}

// WalletSummary is returned by GET /me/wallet
type WalletSummary struct {
	ParticipantId string          `json:"participant_id"`
	Coins         decimal.Decimal `json:"coins"`
	Credits       decimal.Decimal `json:"credits"`
	Affiliate     TierProgress    `json:"affiliate"`
	Achievements  []Achievement   `json:"achievements"`
}

// Request types

type SignupRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,min=7,max=20"`
	ReferralCode string `json:"referral_code" validate:"omitempty,alphanum,len=8"`
	Variant      string `json:"variant" validate:"omitempty,max=40"`
}

type RedeemRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=80"`
}

type CreateLinkRequest struct {
	TargetURL string `json:"target_url" validate:"required,url"`
	Slug      string `json:"slug" validate:"omitempty,min=3,max=32"`
	TTLHours  int    `json:"ttl_hours" validate:"omitempty,min=1,max=8760"`
}

type BlessingRequest struct {
	RecipientName  string `json:"recipient_name" validate:"required,max=120"`
	RecipientPhone string `json:"recipient_phone" validate:"omitempty,min=7,max=20"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
	Message        string `json:"message" validate:"max=1000"`
	Generate       bool   `json:"generate"`
}

type NominationRequest struct {
	NomineeName  string `json:"nominee_name" validate:"required,max=120"`
	NomineePhone string `json:"nominee_phone" validate:"required_without=NomineeEmail,omitempty,min=7,max=20"`
	NomineeEmail string `json:"nominee_email" validate:"required_without=NomineePhone,omitempty,email"`
	Message      string `json:"message" validate:"max=500"`
}

type ClipRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Platform string `json:"platform" validate:"required,oneof=tiktok instagram youtube x"`
	Views    int64  `json:"views" validate:"min=0"`
}

type ClipReviewRequest struct {
	Approve bool   `json:"approve"`
	Views   int64  `json:"views" validate:"min=0"`
	Note    string `json:"note" validate:"max=500"`
}

type CheckoutRequest struct {
	Quantity     int64  `json:"quantity" validate:"omitempty,min=1,max=10"`
	ReferralCode string `json:"referral_code" validate:"omitempty,alphanum,len=8"`
}

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=40,dive"`
}

type EnrollRequest struct {
	ParticipantIds []string   `json:"participant_ids" validate:"required,min=1,dive,required"`
	StartAt        *time.Time `json:"start_at"`
}

// Response types

type SignupResponse struct {
	Participant  Participant `json:"participant"`
	ReferralCode string      `json:"referral_code"`
	ReferralLink string      `json:"referral_link"`
}

type CheckoutResponse struct {
	OrderId string `json:"order_id"`
	URL     string `json:"url"`
}

type ShareResponse struct {
	Link     ShortLink `json:"link"`
	ShortURL string    `json:"short_url"`
	JoyKeys  JoyKeys   `json:"joy_keys"`
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
