// Package config loads gateway settings from .env, an optional TOML file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// MinSecretLength is the minimum accepted length of SECRET_KEY.
const MinSecretLength = 32

// Backend names accepted by CREDENTIAL_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultScopes are requested when SCOPES is not set.
var DefaultScopes = []string{
	"User.Read",
	"Mail.ReadWrite",
	"Mail.Send",
	"Calendars.ReadWrite",
	"Files.ReadWrite.All",
	"Sites.Read.All",
	"offline_access", // required for refresh tokens
}

// Config holds all gateway configuration.
type Config struct {
	// Azure app registration
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scopes       []string

	// Credential encryption
	SecretKey         string
	SecretKeyPrevious string
	SecretKeyVersion  int

	// Server
	Host         string
	Port         int
	AllowedHosts []string
	CORSOrigins  []string

	// Storage
	DataDir           string
	CredentialBackend string

	// Upstreams
	GraphBaseURL  string
	AuthorityBase string

	// Token lifecycle
	TokenSafetyMargin time.Duration
	ProviderTimeout   time.Duration

	LogFormat string
}

// fileConfig mirrors Config for the optional TOML file.
type fileConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	TenantID          string   `toml:"tenant_id"`
	RedirectURI       string   `toml:"redirect_uri"`
	Scopes            []string `toml:"scopes"`
	SecretKeyVersion  int      `toml:"secret_key_version"`
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	AllowedHosts      []string `toml:"allowed_hosts"`
	CORSOrigins       []string `toml:"cors_origins"`
	DataDir           string   `toml:"data_dir"`
	CredentialBackend string   `toml:"credential_backend"`
	GraphBaseURL      string   `toml:"graph_base_url"`
	AuthorityBase     string   `toml:"authority_base"`
	TokenSafetyMargin string   `toml:"token_safety_margin"`
	ProviderTimeout   string   `toml:"provider_timeout"`
	LogFormat         string   `toml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RedirectURI:       "http://localhost:8365/auth/callback",
		Scopes:            append([]string(nil), DefaultScopes...),
		SecretKeyVersion:  1,
		Host:              "127.0.0.1",
		Port:              8365,
		AllowedHosts:      []string{"localhost", "127.0.0.1"},
		CORSOrigins:       []string{"http://localhost:8365", "http://127.0.0.1:8365"},
		DataDir:           "./data",
		CredentialBackend: BackendFile,
		GraphBaseURL:      "https://graph.microsoft.com/v1.0",
		AuthorityBase:     "https://login.microsoftonline.com",
		TokenSafetyMargin: 60 * time.Second,
		ProviderTimeout:   15 * time.Second,
		LogFormat:         "json",
	}
}

// Load builds the configuration. A missing .env or TOML file is not an error.
// Secrets are only read from the environment, never from the TOML file.
func Load() (*Config, error) {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg := Default()

	path := os.Getenv("MS365_CONFIG")
	if path == "" {
		path = filepath.Join(envOrDefault("DATA_DIR", cfg.DataDir), "config.toml")
	}
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ClientID, fc.ClientID)
	setString(&c.ClientSecret, fc.ClientSecret)
	setString(&c.TenantID, fc.TenantID)
	setString(&c.RedirectURI, fc.RedirectURI)
	setString(&c.Host, fc.Host)
	setString(&c.DataDir, fc.DataDir)
	setString(&c.CredentialBackend, fc.CredentialBackend)
	setString(&c.GraphBaseURL, fc.GraphBaseURL)
	setString(&c.AuthorityBase, fc.AuthorityBase)
	setString(&c.LogFormat, fc.LogFormat)
	if len(fc.Scopes) > 0 {
		c.Scopes = fc.Scopes
	}
	if len(fc.AllowedHosts) > 0 {
		c.AllowedHosts = fc.AllowedHosts
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.SecretKeyVersion != 0 {
		c.SecretKeyVersion = fc.SecretKeyVersion
	}
	if fc.TokenSafetyMargin != "" {
		d, err := time.ParseDuration(fc.TokenSafetyMargin)
		if err != nil {
			return fmt.Errorf("token_safety_margin: %w", err)
		}
		c.TokenSafetyMargin = d
	}
	if fc.ProviderTimeout != "" {
		d, err := time.ParseDuration(fc.ProviderTimeout)
		if err != nil {
			return fmt.Errorf("provider_timeout: %w", err)
		}
		c.ProviderTimeout = d
	}
	return nil
}

func (c *Config) mergeEnv() error {
	c.ClientID = envOrDefault("AZURE_CLIENT_ID", c.ClientID)
	c.ClientSecret = envOrDefault("AZURE_CLIENT_SECRET", c.ClientSecret)
	c.TenantID = envOrDefault("AZURE_TENANT_ID", c.TenantID)
	c.RedirectURI = envOrDefault("AZURE_REDIRECT_URI", c.RedirectURI)
	c.Scopes = envList("SCOPES", c.Scopes)

	c.SecretKey = os.Getenv("SECRET_KEY")
	c.SecretKeyPrevious = os.Getenv("SECRET_KEY_PREVIOUS")

	c.Host = envOrDefault("APP_HOST", c.Host)
	c.AllowedHosts = envList("ALLOWED_HOSTS", c.AllowedHosts)
	c.CORSOrigins = envList("CORS_ORIGINS", c.CORSOrigins)
	c.DataDir = envOrDefault("DATA_DIR", c.DataDir)
	c.CredentialBackend = strings.ToLower(envOrDefault("CREDENTIAL_BACKEND", c.CredentialBackend))
	c.GraphBaseURL = strings.TrimRight(envOrDefault("GRAPH_BASE_URL", c.GraphBaseURL), "/")
	c.AuthorityBase = strings.TrimRight(envOrDefault("AUTHORITY_BASE", c.AuthorityBase), "/")
	c.LogFormat = envOrDefault("LOG_FORMAT", c.LogFormat)

	var err error
	if c.Port, err = envInt("APP_PORT", c.Port); err != nil {
		return err
	}
	if c.SecretKeyVersion, err = envInt("SECRET_KEY_VERSION", c.SecretKeyVersion); err != nil {
		return err
	}
	if c.TokenSafetyMargin, err = envDuration("TOKEN_SAFETY_MARGIN", c.TokenSafetyMargin); err != nil {
		return err
	}
	if c.ProviderTimeout, err = envDuration("PROVIDER_TIMEOUT", c.ProviderTimeout); err != nil {
		return err
	}
	return nil
}

// ValidateStorage checks the settings needed to open the credential store.
func (c *Config) ValidateStorage() error {
	if len(c.SecretKey) < MinSecretLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters", MinSecretLength)
	}
	if c.SecretKeyVersion < 1 {
		return errors.New("SECRET_KEY_VERSION must be at least 1")
	}
	if c.SecretKeyPrevious != "" && len(c.SecretKeyPrevious) < MinSecretLength {
		return fmt.Errorf("SECRET_KEY_PREVIOUS must be at least %d characters", MinSecretLength)
	}
	switch c.CredentialBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.CredentialBackend)
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR must not be empty")
	}
	return nil
}

// Validate checks everything the server needs and fails on the first problem.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "AZURE_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "AZURE_CLIENT_SECRET")
	}
	if c.TenantID == "" {
		missing = append(missing, "AZURE_TENANT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("APP_PORT %d out of range", c.Port)
	}
	if c.TokenSafetyMargin < 0 {
		return errors.New("TOKEN_SAFETY_MARGIN must not be negative")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CredentialPath returns the path of the file credential backend.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.DataDir, "credentials.enc")
}

// DatabasePath returns the path of the SQLite credential backend.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "ms365.db")
}

// AuditLogPath returns the path of the audit log.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.DataDir, "audit.log")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
