package config

import (
	"fmt"
	"strings"
)

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Host string `env:"XLOGIN_HOST" env-default:"localhost"`
	Port uint16 `env:"XLOGIN_PORT" env-default:"4000"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DbConfig is the PostgreSQL connection configuration. Leaving Host
// empty selects the in-memory registration store.
type DbConfig struct {
	Host     string `env:"XLOGIN_PG_HOST" env-default:""`
	Port     uint16 `env:"XLOGIN_PG_PORT" env-default:"5432"`
	Database string `env:"XLOGIN_PG_DATABASE" env-default:"xlogin_db"`
	User     string `env:"XLOGIN_PG_USER" env-default:"xlogin"`
	Password string `env:"XLOGIN_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"XLOGIN_PG_SCHEMA" env-default:"public"`
}

// Configured reports whether a database host was provided.
func (d DbConfig) Configured() bool {
	return d.Host != ""
}

func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// CryptoConfig carries the installation-wide key material: the key
// encrypting provider secrets at rest and the salt mixed into alias
// hashes.
type CryptoConfig struct {
	InstallationKey  string `env:"XLOGIN_INSTALLATION_KEY" env-default:""`
	InstallationSalt string `env:"XLOGIN_INSTALLATION_SALT" env-default:""`
}

// WebflowConfig configures the cookie-backed webflow store. Keys are
// comma-separated base64 or raw strings; the first pair signs, later
// pairs allow rotation.
type WebflowConfig struct {
	CookieKeys  string `env:"XLOGIN_COOKIE_KEYS" env-default:""`
	SessionName string `env:"XLOGIN_SESSION_NAME" env-default:"xlogin-webflow"`
}

// KeyPairs splits the configured cookie keys.
func (w WebflowConfig) KeyPairs() [][]byte {
	var pairs [][]byte
	for _, key := range strings.Split(w.CookieKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			pairs = append(pairs, []byte(key))
		}
	}
	return pairs
}

// JwtConfig guards the admin API.
type JwtConfig struct {
	Secret string `env:"XLOGIN_JWT_SECRET" env-default:""`
}

// Config is the whole application configuration.
type Config struct {
	Name        string `env:"XLOGIN_NAME" env-default:"xlogin"`
	BaseURL     string `env:"XLOGIN_BASE_URL" env-default:"http://localhost:4000"`
	LoginURL    string `env:"XLOGIN_LOGIN_URL" env-default:""`
	OptionsFile string `env:"XLOGIN_OPTIONS_FILE" env-default:"xlogin-options.json"`

	Server  ServerConfig
	Db      DbConfig
	Crypto  CryptoConfig
	Webflow WebflowConfig
	Jwt     JwtConfig
}

// Validate checks the settings that cannot fall back to a default.
func (c Config) Validate() error {
	if c.Crypto.InstallationKey == "" {
		return fmt.Errorf("XLOGIN_INSTALLATION_KEY is required")
	}
	if c.Crypto.InstallationSalt == "" {
		return fmt.Errorf("XLOGIN_INSTALLATION_SALT is required")
	}
	if len(c.Webflow.KeyPairs()) == 0 {
		return fmt.Errorf("XLOGIN_COOKIE_KEYS is required")
	}
	return nil
}
