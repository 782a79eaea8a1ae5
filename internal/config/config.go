// Package config holds the tunables of the matching core and the runtime
// settings of the server binaries.
package config

import "time"

const (
	// Messaging
	MaxMessageLength   = 2000 // runes, after trimming
	SubscriptionBuffer = 64
	HistoryPageSize    = 200

	// Session resolution triggered by an accepted swipe
	AcceptResolveRetries = 3
	AcceptResolveBackoff = 200 * time.Millisecond
	AcceptResolveTimeout = 10 * time.Second

	// Swipe controllers untouched for this long are dropped
	SwipeIdleTTL = 30 * time.Minute

	// Identity
	TokenTTL    = 72 * time.Hour
	TokenIssuer = "rallymatch-service"

	// Redis channel carrying committed messages of one session
	MessageChannelPrefix = "session:"
	MessageChannelSuffix = ":messages"
)

// Config is the runtime configuration of cmd/main.go and cmd/admin.
type Config struct {
	HTTPAddr string

	// StoreDriver is "postgres" or "memory".
	StoreDriver   string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	TokenTTL  time.Duration

	// TelegramBotToken is optional; notifications are disabled when empty.
	TelegramBotToken string

	AcceptRetries int
	AcceptBackoff time.Duration
	AcceptTimeout time.Duration
	SwipeIdle     time.Duration
	// MutualLevels makes ranking require the candidate to accept the viewer's level too.
	MutualLevels bool

	LogLevel string
}

// LoadDefaults fills development defaults. They are not safe for production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.StoreDriver = "postgres"
	c.DatabaseDSN = "host=localhost user=user password=password dbname=rallymatchdb port=5432 sslmode=disable"
	c.RedisAddr = "localhost:6380"
	c.RedisPassword = ""
	c.RedisDB = 0
	c.JWTSecret = "YOUR_ULTRA_SECRET_KEY_HERE"
	c.TokenTTL = TokenTTL
	c.AcceptRetries = AcceptResolveRetries
	c.AcceptBackoff = AcceptResolveBackoff
	c.AcceptTimeout = AcceptResolveTimeout
	c.SwipeIdle = SwipeIdleTTL
	c.LogLevel = "info"
}
