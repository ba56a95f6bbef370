package models

import (
	"net/netip"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Dispatcher DispatcherConfig
	Twilio     TwilioConfig
	Resend     ResendConfig
	Stripe     StripeConfig
	Assistant  AssistantConfig
	Supabase   SupabaseConfig
	Redis      RedisConfig
	Rewards    RewardsConfig

	CampaignsFile string
	TiersFile     string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int
	PublicBaseURL   string
	AllowedOrigin   string
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout time.Duration
	ClickHashSalt   string
	// TrustedProxies may set X-Forwarded-For; empty means the peer address is used
	TrustedProxies []netip.Prefix
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedDemoData    bool
}

// LedgerConfig selects the coin ledger backend
type LedgerConfig struct {
	Backend  string // "sqlite" or "formance"
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack credentials
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// DispatcherConfig holds drip dispatcher settings
type DispatcherConfig struct {
	PollingInterval time.Duration
	CleanupInterval time.Duration
	BatchSize       int
	Concurrency     int
	// Send window in local hours [WindowStartHour, WindowEndHour). Equal values disable the window.
	WindowStartHour int
	WindowEndHour   int
	TimeZone        string
	AdminEmail      string
	AdminPhone      string
	DigestSchedule  string
	NudgeSchedule   string
	NudgeAfter      time.Duration
}

// TwilioConfig holds SMS / WhatsApp provider settings
type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	FromNumber          string
	WhatsAppFrom        string
	MessagingServiceSID string
}

// ResendConfig holds transactional email settings
type ResendConfig struct {
	APIKey string
	From   string
}

// StripeConfig holds payment provider settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	UnitAmount    decimal.Decimal
}

// AssistantConfig holds AI text generation settings
type AssistantConfig struct {
	Provider     string // "genai" or "gateway"
	Model        string
	APIKey       string
	GatewayURL   string
	SystemPrompt string
	Timeout      time.Duration
}

// SupabaseConfig holds BaaS REST / Auth settings
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
	LeadsTable string
}

// RedisConfig holds link cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LinkTTL  time.Duration
}

// RewardsConfig holds coin award amounts per funnel event
type RewardsConfig struct {
	Signup            decimal.Decimal
	Share             decimal.Decimal
	ReferralConverted decimal.Decimal
	Purchase          decimal.Decimal
	ClipApproved      decimal.Decimal
	BlessingSent      decimal.Decimal
	NominationSent    decimal.Decimal
	JoyKeyUnlocked    decimal.Decimal
}
