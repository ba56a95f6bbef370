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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time checks: *Service must satisfy every store interface.
var (
	_ store.CoinLedger   = (*Service)(nil)
	_ store.FunnelStore  = (*Service)(nil)
	_ store.MessageStore = (*Service)(nil)
)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceWithDB(db)
	if err := service.initSchema(ctx, cfg.SeedDemoData); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewInMemory opens a private in-memory database with the schema applied.
// A single connection keeps every query on the same database.
func NewInMemory(ctx context.Context) (*Service, error) {
	return NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
}

func newServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db, subledger: NewSubledgerService(db)}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping reports whether the database is reachable. Used by the health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context, seedDemoData bool) error {
	if _, err := s.db.ExecContext(ctx, funnelSchema); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, messagingSchema); err != nil {
		return err
	}
	if err := s.subledger.InitSchema(); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	if !seedDemoData {
		zap.L().Info("Skipping demo participant creation (SEED_DEMO_DATA=false)")
		return nil
	}

	demo := []store.CreateParticipantParams{
		{Id: uuid.New().String(), Name: "Grace Holloway", Email: "grace@example.com", Phone: "+15555550101", Role: models.RoleMember},
		{Id: uuid.New().String(), Name: "Marcus Bell", Email: "marcus@example.com", Phone: "+15555550102", Role: models.RoleCreator},
		{Id: uuid.New().String(), Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
	}
	for _, p := range demo {
		if _, err := s.CreateParticipant(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			zap.L().Error("Failed to insert demo participant", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		zap.L().Info("Demo participant created", zap.String("id", p.Id), zap.String("name", p.Name))
	}

	return nil
}

const funnelSchema = `
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'member',
		referred_by TEXT NOT NULL DEFAULT '',
		opted_out BOOLEAN NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_participants_active ON participants(active);

	CREATE TABLE IF NOT EXISTS referral_codes (
		code TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL UNIQUE REFERENCES participants(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS referrals (
		id TEXT PRIMARY KEY,
		referrer_id TEXT NOT NULL,
		referred_id TEXT NOT NULL UNIQUE,
		code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		converted_at TIMESTAMP,
		UNIQUE(referrer_id, referred_id)
	);
	CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id, status);

	CREATE TABLE IF NOT EXISTS short_links (
		slug TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		clicks INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_short_links_owner ON short_links(owner_id);

	CREATE TABLE IF NOT EXISTS link_clicks (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		ip_hash TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		clicked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_link_clicks_slug ON link_clicks(slug);

	CREATE TABLE IF NOT EXISTS achievements (
		participant_id TEXT NOT NULL,
		achievement TEXT NOT NULL,
		unlocked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (participant_id, achievement)
	);

	CREATE TABLE IF NOT EXISTS clip_submissions (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL,
		views INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'submitted',
		bonus TEXT NOT NULL DEFAULT '0',
		review_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		reviewed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_clips_participant ON clip_submissions(participant_id, status);

	CREATE TABLE IF NOT EXISTS nominations (
		id TEXT PRIMARY KEY,
		nominator_id TEXT NOT NULL,
		nominee_name TEXT NOT NULL,
		nominee_phone TEXT NOT NULL DEFAULT '',
		nominee_email TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_nominations_nominator ON nominations(nominator_id);

	CREATE TABLE IF NOT EXISTS blessings (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		recipient_phone TEXT NOT NULL DEFAULT '',
		recipient_email TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		generated BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_blessings_sender ON blessings(sender_id);

	CREATE TABLE IF NOT EXISTS joy_keys (
		participant_id TEXT PRIMARY KEY,
		unlocked INTEGER NOT NULL DEFAULT 0,
		key1_at TIMESTAMP,
		key2_at TIMESTAMP,
		key3_at TIMESTAMP,
		key4_at TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		session_id TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		referral_code TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		paid_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_participant ON orders(participant_id, status);
`

const messagingSchema = `
	CREATE TABLE IF NOT EXISTS drip_enrollments (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		campaign_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		started_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(participant_id, campaign_key)
	);

	CREATE TABLE IF NOT EXISTS scheduled_messages (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT,
		participant_id TEXT NOT NULL,
		campaign_key TEXT NOT NULL DEFAULT '',
		step INTEGER NOT NULL DEFAULT 0,
		channel TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		template TEXT NOT NULL,
		scheduled_send_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		sent_at TIMESTAMP,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		UNIQUE(enrollment_id, step)
	);
	CREATE INDEX IF NOT EXISTS idx_scheduled_messages_due ON scheduled_messages(status, scheduled_send_at);

	CREATE TABLE IF NOT EXISTS message_logs (
		id TEXT PRIMARY KEY,
		scheduled_message_id TEXT NOT NULL DEFAULT '',
		participant_id TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL,
		recipient TEXT NOT NULL,
		body TEXT NOT NULL,
		provider_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_message_logs_scheduled ON message_logs(scheduled_message_id, status);
	CREATE INDEX IF NOT EXISTS idx_message_logs_created ON message_logs(status, created_at);
`

// Coin ledger

func (s *Service) Credit(ctx context.Context, params store.CoinEntryParams) (*models.CoinTransaction, error) {
	if err := validateEntry(params); err != nil {
		return nil, err
	}
	return s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		ParticipantId: params.ParticipantId,
		Currency:      params.Currency,
		Kind:          KindCredit,
		Amount:        params.Amount,
		ExternalRef:   params.ExternalRef,
		Reason:        params.Reason,
	})
}

func (s *Service) Debit(ctx context.Context, params store.CoinEntryParams) (*models.CoinTransaction, error) {
	if err := validateEntry(params); err != nil {
		return nil, err
	}
	return s.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		ParticipantId:  params.ParticipantId,
		Currency:       params.Currency,
		Kind:           KindDebit,
		Amount:         params.Amount.Neg(),
		ExternalRef:    params.ExternalRef,
		Reason:         params.Reason,
		AllowOverdraft: params.AllowOverdraft,
	})
}

func (s *Service) Balance(ctx context.Context, participantId, currency string) (decimal.Decimal, error) {
	return s.subledger.GetBalance(ctx, participantId, currency)
}

func (s *Service) Balances(ctx context.Context, participantId string) ([]models.CoinBalance, error) {
	return s.subledger.GetAllBalances(ctx, participantId)
}

func (s *Service) History(ctx context.Context, participantId, currency string, limit, offset int) ([]models.CoinTransaction, error) {
	return s.subledger.GetTransactionHistory(ctx, participantId, currency, limit, offset)
}

func (s *Service) Reconcile(ctx context.Context, participantId, currency string) error {
	return s.subledger.ReconcileBalance(ctx, participantId, currency)
}

func validateEntry(params store.CoinEntryParams) error {
	if params.ParticipantId == "" {
		return fmt.Errorf("participant id cannot be empty")
	}
	if params.Currency != models.CurrencyCoins && params.Currency != models.CurrencyCredits {
		return fmt.Errorf("unsupported currency %q", params.Currency)
	}
	if !params.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", params.Amount.String())
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
