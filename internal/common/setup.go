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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"iamblessed-funnel-go/internal/api"
	"iamblessed-funnel-go/internal/assistant"
	"iamblessed-funnel-go/internal/cache"
	"iamblessed-funnel-go/internal/database"
	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/formance"
	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/joykeys"
	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/payments"
	"iamblessed-funnel-go/internal/referral"
	"iamblessed-funnel-go/internal/store"
	"iamblessed-funnel-go/internal/supabase"
	"iamblessed-funnel-go/internal/tiers"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Ledger    store.CoinLedger
	Redis     redis.UniversalClient
	Catalog   *drip.Catalog
	Awards    *gamification.Service
	Referrals *referral.Service
	JoyKeys   *joykeys.Service
	Scheduler *drip.Scheduler
	Senders   *messaging.Senders
	Payments  *payments.Service
	Assistant assistant.Provider
	Supabase  *supabase.Client
	Funnel    *api.FunnelService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and ledger and wires every funnel
// service. Optional integrations (Stripe, the assistant, Supabase, Redis) are
// left nil when unconfigured.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	if err := services.initialize(ctx, cfg); err != nil {
		services.Close()
		return nil, err
	}
	return services, nil
}

func (cs *Services) initialize(ctx context.Context, cfg *models.Config) error {
	ledger, err := newLedger(ctx, cfg.Ledger, cs.DbService)
	if err != nil {
		return err
	}
	cs.Ledger = ledger

	ladders, err := tiers.Load(cfg.TiersFile)
	if err != nil {
		return err
	}

	zap.L().Info("Loading campaigns", zap.String("file", cfg.CampaignsFile))
	catalog, err := drip.LoadCatalog(cfg.CampaignsFile)
	if err != nil {
		return err
	}
	cs.Catalog = catalog

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		zap.L().Warn("Continuing without link cache", zap.Error(err))
	}
	cs.Redis = rdb

	linkOpts := referral.Options{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		ClickHashSalt: cfg.Server.ClickHashSalt,
		CacheTTL:      cfg.Redis.LinkTTL,
	}
	if rdb != nil {
		linkOpts.Cache = cache.NewLinkCache(rdb)
	}

	cs.Awards = gamification.NewService(ledger, cs.DbService, cfg.Rewards, ladders)
	cs.Referrals = referral.NewService(cs.DbService, cs.Awards, linkOpts)
	cs.JoyKeys = joykeys.NewService(cs.DbService, cs.DbService, cs.Awards)
	cs.Scheduler = drip.NewScheduler(catalog, cs.DbService)
	cs.Senders = messaging.NewSenders(cfg.Twilio, cfg.Resend)

	if cfg.Stripe.SecretKey != "" {
		cs.Payments = payments.NewService(cfg.Stripe, cs.DbService)
	} else {
		zap.L().Info("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	provider, err := assistant.NewProvider(ctx, cfg.Assistant)
	if err != nil {
		return err
	}
	if provider == nil {
		zap.L().Info("ASSISTANT_API_KEY not set, assistant disabled")
	} else {
		cs.Assistant = provider
	}

	if cfg.Supabase.URL != "" {
		client, err := supabase.NewClient(cfg.Supabase)
		if err != nil {
			return err
		}
		cs.Supabase = client
	}

	funnelCfg := api.FunnelServiceConfig{
		Funnel:           cs.DbService,
		Messages:         cs.DbService,
		Ledger:           ledger,
		Database:         cs.DbService,
		Awards:           cs.Awards,
		Referrals:        cs.Referrals,
		JoyKeys:          cs.JoyKeys,
		Drips:            cs.Scheduler,
		Payments:         cs.Payments,
		Assistant:        cs.Assistant,
		Sender:           cs.Senders,
		PublicBaseURL:    cfg.Server.PublicBaseURL,
		AssistantTimeout: cfg.Assistant.Timeout,
	}
	cs.Funnel = api.NewFunnelService(funnelCfg)
	return nil
}

func newLedger(ctx context.Context, cfg models.LedgerConfig, db *database.Service) (store.CoinLedger, error) {
	switch cfg.Backend {
	case "formance":
		zap.L().Info("Using Formance coin ledger")
		ledger, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			return nil, err
		}
		return ledger, nil
	default:
		zap.L().Info("Using SQLite coin ledger")
		return db, nil
	}
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only reports that need no providers.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Redis != nil {
		if err := cs.Redis.Close(); err != nil {
			zap.L().Debug("Failed to close redis", zap.Error(err))
		}
	}
	if cs.Ledger != nil && cs.Ledger != store.CoinLedger(cs.DbService) {
		cs.Ledger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}

// ErrMissingConfig reports a required setting for a command.
func ErrMissingConfig(name string) error {
	return fmt.Errorf("%s is required for this command", name)
}
