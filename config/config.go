package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port           string   `koanf:"port"`
	GinMode        string   `koanf:"gin_mode"`
	TrustedProxies []string `koanf:"trusted_proxies"`
	FEOrigin       string   `koanf:"fe_origin"`

	// Storage
	StorageDriver        string `koanf:"storage_driver"` // "postgres" | "sqlite"
	DatabaseURL          string `koanf:"database_url"`
	ClickHouseHost       string `koanf:"clickhouse_host"`
	ClickHouseNativePort int    `koanf:"clickhouse_native_port"`
	ClickHouseDBName     string `koanf:"clickhouse_db_name"`
	ClickHouseUsername   string `koanf:"clickhouse_username"`
	ClickHousePassword   string `koanf:"clickhouse_password"`
	SQLitePath           string `koanf:"sqlite_path"`

	// Civil time zone used to stamp records.
	Timezone string `koanf:"timezone"`

	// Telemetry collaborators
	TelegramBotToken string        `koanf:"telegram_bot_token"`
	TelegramChatID   string        `koanf:"telegram_chat_id"`
	TelegramAPIURL   string        `koanf:"telegram_api_url"`
	GeoURL           string        `koanf:"geo_url"`
	IPLookupURL      string        `koanf:"ip_lookup_url"`
	IdentityTimeout  time.Duration `koanf:"identity_timeout"`
	GeoTimeout       time.Duration `koanf:"geo_timeout"`
	NotifyTimeout    time.Duration `koanf:"notify_timeout"`
	RecordTimeout    time.Duration `koanf:"record_timeout"`
	SessionTTL       time.Duration `koanf:"session_ttl"`

	// Operator access to the reporting views
	JWTSecretKey         string `koanf:"jwt_secret_key"`
	AuthDefault          string `koanf:"auth_default"`
	OperatorEmail        string `koanf:"operator_email"`
	OperatorPasswordHash string `koanf:"operator_password_hash"`

	ScenariosFile string `koanf:"scenarios_file"`
}

// envKeys is the set of environment variables read into Config.
var envKeys = map[string]bool{
	"PORT": true, "GIN_MODE": true, "TRUSTED_PROXIES": true, "FE_ORIGIN": true,
	"STORAGE_DRIVER": true, "DATABASE_URL": true,
	"CLICKHOUSE_HOST": true, "CLICKHOUSE_NATIVE_PORT": true, "CLICKHOUSE_DB_NAME": true,
	"CLICKHOUSE_USERNAME": true, "CLICKHOUSE_PASSWORD": true, "SQLITE_PATH": true,
	"TIMEZONE": true,
	"TELEGRAM_BOT_TOKEN": true, "TELEGRAM_CHAT_ID": true, "TELEGRAM_API_URL": true,
	"GEO_URL": true, "IP_LOOKUP_URL": true,
	"IDENTITY_TIMEOUT": true, "GEO_TIMEOUT": true, "NOTIFY_TIMEOUT": true,
	"RECORD_TIMEOUT": true, "SESSION_TTL": true,
	"JWT_SECRET_KEY": true, "AUTH_DEFAULT": true,
	"OPERATOR_EMAIL": true, "OPERATOR_PASSWORD_HASH": true,
	"SCENARIOS_FILE": true,
}

func Default() *Config {
	return &Config{
		Port:            "8080",
		StorageDriver:   DriverPostgres,
		SQLitePath:      "./data/logistics-assist.db",
		Timezone:        "America/Bogota",
		TelegramAPIURL:  "https://api.telegram.org",
		GeoURL:          "http://ip-api.com/json/%s?fields=status,message,city,country",
		IPLookupURL:     "https://api.ipify.org?format=json",
		IdentityTimeout: 2 * time.Second,
		GeoTimeout:      3 * time.Second,
		NotifyTimeout:   3 * time.Second,
		RecordTimeout:   5 * time.Second,
		SessionTTL:      12 * time.Hour,
	}
}

// Load reads .env (if present), then the optional YAML file at path, then
// the process environment. Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		if !envKeys[s] {
			return ""
		}
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// TRUSTED_PROXIES arrives from the environment as a single CSV string.
	if v, ok := k.Get("trusted_proxies").(string); ok {
		if err := k.Set("trusted_proxies", splitCSV(v)); err != nil {
			return nil, fmt.Errorf("parsing trusted_proxies: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
		if c.ClickHouseHost == "" || c.ClickHouseNativePort == 0 || c.ClickHouseDBName == "" {
			return fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME is not set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("invalid storage_driver %q: must be one of postgres, sqlite", c.StorageDriver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	for name, d := range map[string]time.Duration{
		"identity_timeout": c.IdentityTimeout,
		"geo_timeout":      c.GeoTimeout,
		"notify_timeout":   c.NotifyTimeout,
		"record_timeout":   c.RecordTimeout,
		"session_ttl":      c.SessionTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// NotificationsEnabled reports whether Telegram credentials are present.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
