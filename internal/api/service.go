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

package api

import (
	"context"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/assistant"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/joykeys"
	"iamblessed-funnel-go/internal/payments"
	"iamblessed-funnel-go/internal/referral"
	"iamblessed-funnel-go/internal/store"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FunnelServiceConfig wires the funnel services together
type FunnelServiceConfig struct {
	Funnel    store.FunnelStore
	Messages  store.MessageStore
	Ledger    store.CoinLedger
	Database  Pinger
	Awards    *gamification.Service
	Referrals *referral.Service
	JoyKeys   *joykeys.Service
	Drips     *drip.Scheduler
	Payments  *payments.Service  // nil disables checkout
	Assistant assistant.Provider // nil disables generated blessings
	Sender    drip.MessageSender // nil keeps blessings and nominations as drafts

	PublicBaseURL    string
	AssistantTimeout time.Duration
}

// FunnelService runs the funnel flows behind the HTTP handlers and CLI
type FunnelService struct {
	funnel    store.FunnelStore
	messages  store.MessageStore
	ledger    store.CoinLedger
	db        Pinger
	awards    *gamification.Service
	referrals *referral.Service
	joyKeys   *joykeys.Service
	drips     *drip.Scheduler
	payments  *payments.Service
	assistant assistant.Provider
	sender    drip.MessageSender

	publicBaseURL    string
	assistantTimeout time.Duration
	now              func() time.Time
}

func NewFunnelService(cfg FunnelServiceConfig) *FunnelService {
	if cfg.AssistantTimeout <= 0 {
		cfg.AssistantTimeout = 20 * time.Second
	}
	s := &FunnelService{
		funnel:           cfg.Funnel,
		messages:         cfg.Messages,
		ledger:           cfg.Ledger,
		db:               cfg.Database,
		awards:           cfg.Awards,
		referrals:        cfg.Referrals,
		joyKeys:          cfg.JoyKeys,
		drips:            cfg.Drips,
		payments:         cfg.Payments,
		assistant:        cfg.Assistant,
		sender:           cfg.Sender,
		publicBaseURL:    cfg.PublicBaseURL,
		assistantTimeout: cfg.AssistantTimeout,
		now:              time.Now,
	}
	if s.payments != nil {
		s.payments.OnOrderPaid(s.OrderPaid)
	}
	return s
}

func (s *FunnelService) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Assistant returns the configured chat provider, or nil.
func (s *FunnelService) Assistant() assistant.Provider {
	return s.assistant
}

func (s *FunnelService) Referrals() *referral.Service {
	return s.referrals
}

func (s *FunnelService) Payments() *payments.Service {
	return s.payments
}
