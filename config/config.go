package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// History source strategies
const (
	HistoryRemote = "remote"
	HistoryLocal  = "local"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

// ServicesConfig points at the two upstream HTTP services
type ServicesConfig struct {
	MailURL   string   `toml:"mail_url"`   // send + token verification
	ConfigURL string   `toml:"config_url"` // SMTP configs, passkeys, message history
	Timeout   Duration `toml:"timeout"`
}

type SessionConfig struct {
	DeviceMaxAge       Duration `toml:"device_max_age"`      // lifetime of the durable device cookie
	TabIdleTTL         Duration `toml:"tab_idle_ttl"`        // idle expiry of session-scoped markers
	RevalidateInterval Duration `toml:"revalidate_interval"` // periodic token revalidation, 0 disables
	SecureCookies      bool     `toml:"secure_cookies"`
}

// RoutesConfig makes every guard redirect target explicit
type RoutesConfig struct {
	MailFallback   string `toml:"mail_fallback"`
	SMTPFallback   string `toml:"smtp_fallback"`
	MailLanding    string `toml:"mail_landing"`
	AdminLanding   string `toml:"admin_landing"`
	PasskeyLanding string `toml:"passkey_landing"`
}

type AdminConfig struct {
	TokenHash string `toml:"token_hash"` // bcrypt hash of the admin token
}

type JWTConfig struct {
	Secret string `toml:"secret"` // signs the device cookie
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type HistoryConfig struct {
	Mode string `toml:"mode"` // "remote" or "local"
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SSLConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
	Session  SessionConfig  `toml:"session"`
	Routes   RoutesConfig   `toml:"routes"`
	Admin    AdminConfig    `toml:"admin"`
	JWT      JWTConfig      `toml:"jwt"`
	Storage  StorageConfig  `toml:"storage"`
	History  HistoryConfig  `toml:"history"`
	Log      LogConfig      `toml:"log"`
	SSL      SSLConfig      `toml:"ssl"`
}

// Duration lets TOML files use strings such as "5m" or "720h"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	var config Config

	config.Server.Port = 3000

	config.Services.MailURL = "http://localhost:5000"
	config.Services.ConfigURL = "http://localhost:4000"
	config.Services.Timeout = Duration{15 * time.Second}

	config.Session.DeviceMaxAge = Duration{365 * 24 * time.Hour}
	config.Session.TabIdleTTL = Duration{2 * time.Hour}
	config.Session.RevalidateInterval = Duration{5 * time.Minute}

	config.Routes.MailFallback = "/verify"
	config.Routes.SMTPFallback = "/dash"
	config.Routes.MailLanding = "/send-mail"
	config.Routes.AdminLanding = "/admin"
	config.Routes.PasskeyLanding = "/smtps"

	config.Storage.DataDir = "./data"
	config.History.Mode = HistoryRemote
	config.Log.Level = "info"

	return &config
}

// LoadConfig reads the TOML file at path on top of the defaults, then applies
// a .env file and BULKMAIL_* environment overrides. A missing file is not an
// error.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if _, err := toml.DecodeFile(filepath, config); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BULKMAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BULKMAIL_MAIL_URL"); v != "" {
		c.Services.MailURL = v
	}
	if v := os.Getenv("BULKMAIL_CONFIG_URL"); v != "" {
		c.Services.ConfigURL = v
	}
	if v := os.Getenv("BULKMAIL_ADMIN_TOKEN_HASH"); v != "" {
		c.Admin.TokenHash = v
	}
	if v := os.Getenv("BULKMAIL_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("BULKMAIL_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("BULKMAIL_HISTORY_MODE"); v != "" {
		c.History.Mode = v
	}
	if v := os.Getenv("BULKMAIL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	c.History.Mode = strings.ToLower(strings.TrimSpace(c.History.Mode))
	if c.History.Mode != HistoryRemote && c.History.Mode != HistoryLocal {
		return fmt.Errorf("history.mode must be %q or %q, got %q", HistoryRemote, HistoryLocal, c.History.Mode)
	}

	for name, route := range map[string]string{
		"mail_fallback":   c.Routes.MailFallback,
		"smtp_fallback":   c.Routes.SMTPFallback,
		"mail_landing":    c.Routes.MailLanding,
		"admin_landing":   c.Routes.AdminLanding,
		"passkey_landing": c.Routes.PasskeyLanding,
	} {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("routes.%s must be an absolute path, got %q", name, route)
		}
	}

	if c.Services.MailURL == "" || c.Services.ConfigURL == "" {
		return fmt.Errorf("services.mail_url and services.config_url are required")
	}

	if c.SSL.Enabled {
		if err := c.ValidateSSL(); err != nil {
			return fmt.Errorf("SSL configuration error: %w", err)
		}
	}

	return nil
}

// ValidateSSL checks if the SSL configuration is valid
func (c *Config) ValidateSSL() error {
	if c.SSL.CertFile == "" {
		return fmt.Errorf("SSL certificate file path is required")
	}
	if c.SSL.KeyFile == "" {
		return fmt.Errorf("SSL key file path is required")
	}

	_, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load SSL certificates: %w", err)
	}

	return nil
}
