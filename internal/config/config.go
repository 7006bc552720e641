// Package config loads service settings from the environment, .env files and
// an optional YAML file named by CONFIG_FILE. Environment wins over the file.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	DatabaseURL string
	SQLitePath  string
	Migrate     bool
	RedisURL    string

	UploadMaxBytes  int64
	UploadRateRPS   float64
	UploadRateBurst int
	LockTTL         time.Duration

	AliasesFile string

	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string
	ArchiveUseSSL    bool

	NotifyURL         string
	NotifySecret      string
	NotifyMaxAttempts int

	AuthMode   string
	AuthSecret string

	LogLevel  string
	LogFormat string
}

// Load reads configuration. Missing .env files and a missing CONFIG_FILE are
// not errors; an unreadable CONFIG_FILE is.
func Load() (Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}
	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_migrate", true)
	v.SetDefault("upload_max_bytes", 50<<20)
	v.SetDefault("upload_rate_rps", 2.0)
	v.SetDefault("upload_rate_burst", 4)
	v.SetDefault("upload_lock_ttl", "10m")
	v.SetDefault("archive_bucket", "tree-uploads")
	v.SetDefault("notify_max_attempts", 5)
	v.SetDefault("auth_mode", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:              v.GetString("port"),
		DatabaseURL:       v.GetString("database_url"),
		SQLitePath:        v.GetString("sqlite_path"),
		Migrate:           v.GetBool("db_migrate"),
		RedisURL:          v.GetString("redis_url"),
		UploadMaxBytes:    v.GetInt64("upload_max_bytes"),
		UploadRateRPS:     v.GetFloat64("upload_rate_rps"),
		UploadRateBurst:   v.GetInt("upload_rate_burst"),
		LockTTL:           v.GetDuration("upload_lock_ttl"),
		AliasesFile:       v.GetString("aliases_file"),
		ArchiveEndpoint:   v.GetString("archive_endpoint"),
		ArchiveAccessKey:  v.GetString("archive_access_key"),
		ArchiveSecretKey:  v.GetString("archive_secret_key"),
		ArchiveBucket:     v.GetString("archive_bucket"),
		ArchiveUseSSL:     v.GetBool("archive_use_ssl"),
		NotifyURL:         v.GetString("notify_url"),
		NotifySecret:      v.GetString("notify_secret"),
		NotifyMaxAttempts: v.GetInt("notify_max_attempts"),
		AuthMode:          strings.ToLower(v.GetString("auth_mode")),
		AuthSecret:        v.GetString("auth_hmac_secret"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
	}
}

// Summary lists non-secret settings for the debug endpoint.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"PORT":              c.Port,
		"UPLOAD_MAX_BYTES":  c.UploadMaxBytes,
		"UPLOAD_RATE_RPS":   c.UploadRateRPS,
		"UPLOAD_RATE_BURST": c.UploadRateBurst,
		"AUTH_MODE":         c.AuthMode,
		"HAS_DATABASE_URL":  c.DatabaseURL != "",
		"HAS_SQLITE_PATH":   c.SQLitePath != "",
		"HAS_REDIS_URL":     c.RedisURL != "",
		"HAS_ARCHIVE":       c.ArchiveEndpoint != "",
		"HAS_NOTIFY_URL":    c.NotifyURL != "",
		"HAS_ALIASES_FILE":  c.AliasesFile != "",
	}
}
