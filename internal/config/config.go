package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string             `yaml:"discord_token"`
	DatabaseURL   string             `yaml:"database_url"`
	LogLevel      string             `yaml:"log_level"`
	GuildID       string             `yaml:"guild_id"`
	RetentionDays int                `yaml:"retention_days"`
	Health        HealthConfig       `yaml:"health"`
	Verification  VerificationConfig `yaml:"verification"`
	Roblox        RobloxConfig       `yaml:"roblox"`
	Environment   EnvironmentConfig  `yaml:"environment"`
	Notifications NotifyConfig       `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type VerificationConfig struct {
	VerifiedRoleID       string `yaml:"verified_role_id"`
	SyncNickname         bool   `yaml:"sync_nickname"`
	GroupID              string `yaml:"group_id"`
	GroupURL             string `yaml:"group_url"`
	RequestLimit         int    `yaml:"request_limit"`
	RequestWindowSeconds int    `yaml:"request_window_seconds"`
	InfoCacheSize        int    `yaml:"info_cache_size"`
	InfoCacheTTLSeconds  int    `yaml:"info_cache_ttl_seconds"`
}

type RobloxConfig struct {
	UsersBaseURL      string  `yaml:"users_base_url"`
	LegacyBaseURL     string  `yaml:"legacy_base_url"`
	GroupsBaseURL     string  `yaml:"groups_base_url"`
	Cookie            string  `yaml:"cookie"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// EnvironmentConfig is the raw input for policy.New. Zero timeouts and
// retry counts mean "use the default for the network mode".
type EnvironmentConfig struct {
	RestrictedNetwork     bool             `yaml:"restricted_network"`
	ForceUsernameOverride bool             `yaml:"force_username_override"`
	LookupTimeoutSeconds  int              `yaml:"lookup_timeout_seconds"`
	RetryCount            int              `yaml:"retry_count"`
	KnownTestIdentities   []IdentityConfig `yaml:"known_test_identities"`
}

type IdentityConfig struct {
	Username  string `yaml:"username"`
	AccountID string `yaml:"account_id"`
}

type NotifyConfig struct {
	AuditChannelID string      `yaml:"audit_channel_id"`
	EmbedColors    EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Info    int `yaml:"info"`
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL:   "verifybot.db",
		LogLevel:      "info",
		RetentionDays: 30,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Verification: VerificationConfig{
			SyncNickname:         true,
			RequestLimit:         5,
			RequestWindowSeconds: 60,
			InfoCacheSize:        256,
			InfoCacheTTLSeconds:  300,
		},
		Roblox: RobloxConfig{
			UsersBaseURL:      "https://users.roblox.com",
			LegacyBaseURL:     "https://api.roblox.com",
			GroupsBaseURL:     "https://groups.roblox.com",
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Environment: EnvironmentConfig{
			KnownTestIdentities: DefaultTestIdentities(),
		},
		Notifications: NotifyConfig{
			EmbedColors: EmbedColors{
				Info:    0x3498DB,
				Success: 0x2ECC71,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
			},
		},
	}
}

// DefaultTestIdentities lists the smoke-test and demo accounts. The first
// entry is the identity used when a forced override finds no closer match.
func DefaultTestIdentities() []IdentityConfig {
	return []IdentityConfig{
		{Username: "sysbloxluv", AccountID: "2470023"},
		{Username: "systbloxluv", AccountID: "2470023"},
		{Username: "roblox", AccountID: "1"},
		{Username: "builderman", AccountID: "156"},
	}
}

// Load reads path (when it exists), then applies environment overrides.
// An empty path falls back to CONFIG_PATH and then config.yaml.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if len(cfg.Environment.KnownTestIdentities) == 0 {
		cfg.Environment.KnownTestIdentities = DefaultTestIdentities()
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Verification.VerifiedRoleID = envString("VERIFIED_ROLE_ID", cfg.Verification.VerifiedRoleID)
	cfg.Verification.SyncNickname = envBool("SYNC_NICKNAME", cfg.Verification.SyncNickname)
	cfg.Verification.GroupID = envString("ROBLOX_GROUP_ID", cfg.Verification.GroupID)
	cfg.Verification.GroupURL = envString("ROBLOX_GROUP_URL", cfg.Verification.GroupURL)
	cfg.Notifications.AuditChannelID = envString("AUDIT_CHANNEL_ID", cfg.Notifications.AuditChannelID)
	cfg.Roblox.Cookie = envString("ROBLOX_COOKIE", cfg.Roblox.Cookie)
	cfg.Roblox.RequestsPerSecond = envFloat("ROBLOX_REQUESTS_PER_SECOND", cfg.Roblox.RequestsPerSecond)

	// RENDER only signals a restricted network. Forcing overrides stays opt-in.
	if _, ok := os.LookupEnv("RENDER"); ok {
		cfg.Environment.RestrictedNetwork = true
	}
	cfg.Environment.RestrictedNetwork = envBool("RESTRICTED_NETWORK", cfg.Environment.RestrictedNetwork)
	cfg.Environment.ForceUsernameOverride = envBool("FORCE_USERNAME_OVERRIDE", cfg.Environment.ForceUsernameOverride)
	cfg.Environment.LookupTimeoutSeconds = envInt("ROBLOX_API_TIMEOUT", cfg.Environment.LookupTimeoutSeconds)
	cfg.Environment.RetryCount = envInt("ROBLOX_API_RETRIES", cfg.Environment.RetryCount)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
