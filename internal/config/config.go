package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable of the reminder service.
type Config struct {
	Mode           string
	HTTPAddr       string
	AllowedOrigins []string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	DBSSLMode   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// MetadataKey is the raw 32-byte AES-256 key for reminder metadata.
	MetadataKey []byte

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTTL         int

	TickInterval      time.Duration
	TickLockTTL       time.Duration
	DispatchWindow    time.Duration
	BatchSize         int
	DeadlineLookahead time.Duration
	RetentionAfter    time.Duration
	StaleAfter        time.Duration
}

// Load reads an optional .env file and then resolves configuration from the
// environment, falling back to defaults.
func Load() (*Config, error) {
	// .env is a development convenience; its absence is not an error
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Mode:              v.GetString("GIN_MODE"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		AllowedOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		DBHost:            v.GetString("DB_HOST"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBName:            v.GetString("DB_NAME"),
		DBPort:            v.GetString("DB_PORT"),
		DBSSLMode:         v.GetString("DB_SSL_MODE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		VAPIDPublicKey:    v.GetString("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:   v.GetString("VAPID_PRIVATE_KEY"),
		VAPIDSubject:      v.GetString("VAPID_SUBJECT"),
		PushTTL:           v.GetInt("PUSH_TTL_SECONDS"),
		TickInterval:      v.GetDuration("REMINDER_TICK_INTERVAL"),
		TickLockTTL:       v.GetDuration("REMINDER_TICK_LOCK_TTL"),
		DispatchWindow:    v.GetDuration("REMINDER_DISPATCH_WINDOW"),
		BatchSize:         v.GetInt("REMINDER_BATCH_SIZE"),
		DeadlineLookahead: v.GetDuration("REMINDER_DEADLINE_LOOKAHEAD"),
		RetentionAfter:    v.GetDuration("REMINDER_RETENTION_AFTER"),
		StaleAfter:        v.GetDuration("REMINDER_STALE_AFTER"),
	}

	key, err := decodeKey(v.GetString("REMINDER_METADATA_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.MetadataKey = key

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("VAPID_SUBJECT", "mailto:reminders@localhost")
	v.SetDefault("PUSH_TTL_SECONDS", 3600)
	v.SetDefault("REMINDER_TICK_INTERVAL", 5*time.Minute)
	v.SetDefault("REMINDER_TICK_LOCK_TTL", 4*time.Minute)
	v.SetDefault("REMINDER_DISPATCH_WINDOW", 5*time.Minute)
	v.SetDefault("REMINDER_BATCH_SIZE", 100)
	v.SetDefault("REMINDER_DEADLINE_LOOKAHEAD", 48*time.Hour)
	v.SetDefault("REMINDER_RETENTION_AFTER", 24*time.Hour)
	v.SetDefault("REMINDER_STALE_AFTER", 48*time.Hour)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decodeKey accepts the key either as 32 raw bytes or as base64 of 32 bytes.
// An empty value is allowed and puts metadata storage in plaintext mode.
func decodeKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	return nil, fmt.Errorf("REMINDER_METADATA_KEY must be 32 bytes (raw or base64) for AES-256")
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("REMINDER_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("REMINDER_TICK_INTERVAL must be positive")
	}
	if c.DispatchWindow <= 0 {
		return fmt.Errorf("REMINDER_DISPATCH_WINDOW must be positive")
	}
	return nil
}

// IsRelease reports whether the service runs in production mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.Mode, "release")
}

// DSN returns the postgres connection string. In release mode DATABASE_URL
// is required; otherwise the individual DB_* parts are used.
func (c *Config) DSN() (string, error) {
	if c.IsRelease() || c.DatabaseURL != "" {
		if c.DatabaseURL == "" {
			return "", fmt.Errorf("required environment variable DATABASE_URL is not set")
		}
		return c.DatabaseURL, nil
	}

	missing := []string{}
	for _, part := range []struct{ name, val string }{
		{"DB_HOST", c.DBHost},
		{"DB_USER", c.DBUser},
		{"DB_PASSWORD", c.DBPassword},
		{"DB_NAME", c.DBName},
		{"DB_PORT", c.DBPort},
	} {
		if part.val == "" {
			missing = append(missing, part.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode), nil
}

// Capabilities are the optional integrations, resolved once at startup.
type Capabilities struct {
	Encryption      bool
	Push            bool
	DistributedLock bool
}

func (c *Config) Capabilities() Capabilities {
	return Capabilities{
		Encryption:      len(c.MetadataKey) == 32,
		Push:            c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "",
		DistributedLock: c.RedisAddr != "",
	}
}

// Degraded lists the human-readable reasons the service runs with reduced
// functionality. Empty means fully configured.
func (c Capabilities) Degraded() []string {
	var reasons []string
	if !c.Encryption {
		reasons = append(reasons, "metadata encryption disabled: REMINDER_METADATA_KEY not set, metadata stored unencrypted")
	}
	if !c.Push {
		reasons = append(reasons, "push delivery disabled: VAPID keys not set, reminders will be marked sent without delivery")
	}
	if !c.DistributedLock {
		reasons = append(reasons, "tick lock is process-local: REDIS_ADDR not set, run a single scheduler instance")
	}
	return reasons
}
