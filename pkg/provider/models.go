package provider

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tendant/xlogin/pkg/secrets"
)

// Supported login types.
const (
	TypeFacebook = "facebook"
	TypeGoogle   = "google"
	TypeYahoo    = "yahoo"
)

// DefaultFacebookGraphVersion is the Graph API version requested when
// no customization overrides it.
const DefaultFacebookGraphVersion = "v3.3"

// AuthConfig holds the OAuth2 client settings of one provider.
type AuthConfig struct {
	ClientID     string         `json:"client_id,omitempty"`
	ClientSecret secrets.Secret `json:"client_secret,omitempty"`
	RedirectURI  string         `json:"redirect_uri,omitempty"`
	Scope        string         `json:"scope,omitempty"`
}

// Config is the per-login-type provider configuration.
type Config struct {
	Enabled    bool `json:"enabled,omitempty"`
	Restricted bool `json:"restricted,omitempty"`
	Override   bool `json:"override,omitempty"`

	// GuestAccountID references the fallback account used when an
	// external identity matches no registration.
	GuestAccountID *int64 `json:"guest,omitempty"`

	Auth *AuthConfig `json:"config,omitempty"`
}

// Configured reports whether the provider has usable OAuth2 settings.
func (c *Config) Configured() bool {
	return c != nil && c.Auth != nil && c.Auth.ClientID != ""
}

// Scopes parses the comma/space-separated scope string into a list.
func (c *AuthConfig) Scopes() []string {
	return strings.FieldsFunc(c.Scope, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Customization holds installation-wide presentation and provider
// tuning options.
type Customization struct {
	LoginButtonsInfo string `json:"login_buttons_info,omitempty"`
	FacebookGraphAPI string `json:"facebook_graph_api,omitempty"`
}

var graphVersionRE = regexp.MustCompile(`^v[1-9][0-9]*\.[0-9]$`)

// ValidateGraphVersion checks a Facebook Graph API version string.
func ValidateGraphVersion(vers string) error {
	if !graphVersionRE.MatchString(vers) {
		return fmt.Errorf("invalid Facebook Graph API version %q", vers)
	}
	return nil
}

// Options is the whole persisted configuration document: provider
// configs plus customization. It is always written as a unit.
type Options struct {
	Version   string             `json:"vers,omitempty"`
	Providers map[string]*Config `json:"providers,omitempty"`
	Customize *Customization     `json:"customize,omitempty"`
}

// Clone deep-copies the options document.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	copied := &Options{Version: o.Version}
	if o.Providers != nil {
		copied.Providers = make(map[string]*Config, len(o.Providers))
		for typ, cfg := range o.Providers {
			c := *cfg
			if cfg.Auth != nil {
				a := *cfg.Auth
				c.Auth = &a
			}
			if cfg.GuestAccountID != nil {
				id := *cfg.GuestAccountID
				c.GuestAccountID = &id
			}
			copied.Providers[typ] = &c
		}
	}
	if o.Customize != nil {
		cust := *o.Customize
		copied.Customize = &cust
	}
	return copied
}

// Profile is the resource-owner profile fetched from a provider. It is
// transient: only its alias hash ever reaches storage.
type Profile struct {
	ExternalID string
	Email      string
	Name       string
	FirstName  string
	LastName   string
	Locale     string
}

// DisplayName composes a display name from the profile's name parts.
// Single-byte names follow the "<given> <family>" convention,
// multi-byte names "<family><given>".
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	given, family := p.FirstName, p.LastName
	if given == "" || family == "" {
		return family + given
	}
	if utf8.RuneCountInString(family) == len(family) && utf8.RuneCountInString(given) == len(given) {
		return given + " " + family
	}
	return family + given
}

// Types lists all supported login types.
func Types() []string {
	return []string{TypeFacebook, TypeGoogle, TypeYahoo}
}

// KnownType reports whether a login type is supported.
func KnownType(typ string) bool {
	switch typ {
	case TypeFacebook, TypeGoogle, TypeYahoo:
		return true
	}
	return false
}

// DisplayName returns the friendly name of a login type.
func DisplayName(typ string) string {
	switch typ {
	case TypeYahoo:
		return "Yahoo!"
	default:
		if typ == "" {
			return ""
		}
		return strings.ToUpper(typ[:1]) + typ[1:]
	}
}
