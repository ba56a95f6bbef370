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

package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/models"

	"github.com/shopspring/decimal"
)

const defaultSystemPrompt = "You are the IamBlessedAF gratitude coach. Keep answers warm, short and practical, " +
	"and help people put their thanks into words."

func Load() (*models.Config, error) {
	pollingInterval, err := getEnvDuration("DISPATCHER_POLLING_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("DISPATCHER_CLEANUP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	nudgeAfter, err := getEnvDuration("JOY_KEYS_NUDGE_AFTER", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	assistantTimeout, err := getEnvDuration("ASSISTANT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	linkTTL, err := getEnvDuration("REDIS_LINK_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	unitAmount, err := getEnvDecimal("STRIPE_UNIT_AMOUNT", decimal.NewFromInt(33))
	if err != nil {
		return nil, err
	}

	rewards, err := loadRewards()
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnvString("LEDGER_BACKEND", "sqlite"))
	if backend != "sqlite" && backend != "formance" {
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q: must be sqlite or formance", backend)
	}

	trustedProxies, err := getEnvPrefixes("TRUSTED_PROXIES")
	if err != nil {
		return nil, err
	}

	windowStart := getEnvInt("SEND_WINDOW_START_HOUR", 9)
	windowEnd := getEnvInt("SEND_WINDOW_END_HOUR", 21)
	if windowStart < 0 || windowStart > 23 || windowEnd < 0 || windowEnd > 23 {
		return nil, fmt.Errorf("send window hours must be within 0-23, got %d-%d", windowStart, windowEnd)
	}

	return &models.Config{
		Server: models.ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			PublicBaseURL:   strings.TrimSuffix(getEnvString("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			AllowedOrigin:   getEnvString("CORS_ALLOWED_ORIGIN", "*"),
			RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
			ShutdownTimeout: shutdownTimeout,
			ClickHashSalt:   getEnvString("CLICK_HASH_SALT", "blessed"),
			TrustedProxies:  trustedProxies,
		},
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "funnel.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			SeedDemoData:    getEnvBool("SEED_DEMO_DATA", false),
		},
		Ledger: models.LedgerConfig{
			Backend: backend,
			Formance: models.FormanceConfig{
				StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
				ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
				ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
				LedgerName:   getEnvString("FORMANCE_LEDGER", "iamblessed-coins"),
			},
		},
		Dispatcher: models.DispatcherConfig{
			PollingInterval: pollingInterval,
			CleanupInterval: cleanupInterval,
			BatchSize:       getEnvInt("DISPATCHER_BATCH_SIZE", 100),
			Concurrency:     getEnvInt("DISPATCHER_CONCURRENCY", 4),
			WindowStartHour: windowStart,
			WindowEndHour:   windowEnd,
			TimeZone:        getEnvString("SEND_WINDOW_TZ", "America/New_York"),
			AdminEmail:      getEnvString("ADMIN_EMAIL", ""),
			AdminPhone:      getEnvString("ADMIN_PHONE", ""),
			DigestSchedule:  getEnvString("DIGEST_SCHEDULE", "0 8 * * *"),
			NudgeSchedule:   getEnvString("NUDGE_SCHEDULE", "@hourly"),
			NudgeAfter:      nudgeAfter,
		},
		Twilio: models.TwilioConfig{
			AccountSID:          getEnvString("TWILIO_ACCOUNT_SID", ""),
			AuthToken:           getEnvString("TWILIO_AUTH_TOKEN", ""),
			FromNumber:          getEnvString("TWILIO_FROM_NUMBER", ""),
			WhatsAppFrom:        getEnvString("TWILIO_WHATSAPP_FROM", ""),
			MessagingServiceSID: getEnvString("TWILIO_MESSAGING_SERVICE_SID", ""),
		},
		Resend: models.ResendConfig{
			APIKey: getEnvString("RESEND_API_KEY", ""),
			From:   getEnvString("RESEND_FROM", "IamBlessedAF <hello@iamblessedaf.com>"),
		},
		Stripe: models.StripeConfig{
			SecretKey:     getEnvString("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:       getEnvString("STRIPE_PRICE_ID", ""),
			SuccessURL:    getEnvString("STRIPE_SUCCESS_URL", "http://localhost:5173/thank-you"),
			CancelURL:     getEnvString("STRIPE_CANCEL_URL", "http://localhost:5173/offer"),
			UnitAmount:    unitAmount,
		},
		Assistant: models.AssistantConfig{
			Provider:     strings.ToLower(getEnvString("ASSISTANT_PROVIDER", "genai")),
			Model:        getEnvString("ASSISTANT_MODEL", "gemini-2.5-flash"),
			APIKey:       getEnvString("ASSISTANT_API_KEY", ""),
			GatewayURL:   getEnvString("ASSISTANT_GATEWAY_URL", ""),
			SystemPrompt: getEnvString("ASSISTANT_SYSTEM_PROMPT", defaultSystemPrompt),
			Timeout:      assistantTimeout,
		},
		Supabase: models.SupabaseConfig{
			URL:        strings.TrimSuffix(getEnvString("SUPABASE_URL", ""), "/"),
			AnonKey:    getEnvString("SUPABASE_ANON_KEY", ""),
			ServiceKey: getEnvString("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:  getEnvString("SUPABASE_JWT_SECRET", ""),
			LeadsTable: getEnvString("SUPABASE_LEADS_TABLE", "sms_leads"),
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LinkTTL:  linkTTL,
		},
		Rewards:       rewards,
		CampaignsFile: getEnvString("CAMPAIGNS_FILE", "campaigns.yaml"),
		TiersFile:     getEnvString("TIERS_FILE", ""),
	}, nil
}

func loadRewards() (models.RewardsConfig, error) {
	var r models.RewardsConfig
	var err error

	if r.Signup, err = getEnvDecimal("REWARD_SIGNUP", decimal.NewFromInt(50)); err != nil {
		return r, err
	}
	if r.Share, err = getEnvDecimal("REWARD_SHARE", decimal.NewFromInt(10)); err != nil {
		return r, err
	}
	if r.ReferralConverted, err = getEnvDecimal("REWARD_REFERRAL_CONVERTED", decimal.NewFromInt(100)); err != nil {
		return r, err
	}
	if r.Purchase, err = getEnvDecimal("REWARD_PURCHASE", decimal.NewFromInt(250)); err != nil {
		return r, err
	}
	if r.ClipApproved, err = getEnvDecimal("REWARD_CLIP_APPROVED", decimal.NewFromInt(75)); err != nil {
		return r, err
	}
	if r.BlessingSent, err = getEnvDecimal("REWARD_BLESSING_SENT", decimal.NewFromInt(5)); err != nil {
		return r, err
	}
	if r.NominationSent, err = getEnvDecimal("REWARD_NOMINATION_SENT", decimal.NewFromInt(15)); err != nil {
		return r, err
	}
	if r.JoyKeyUnlocked, err = getEnvDecimal("REWARD_JOY_KEY_UNLOCKED", decimal.NewFromInt(25)); err != nil {
		return r, err
	}

	return r, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q must not be negative", key, value)
		}
		return d, nil
	}
	return defaultValue, nil
}

// getEnvPrefixes parses a comma separated list of CIDRs or bare addresses.
func getEnvPrefixes(key string) ([]netip.Prefix, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	var prefixes []netip.Prefix
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(item); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid address for %s: %q", key, item)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
