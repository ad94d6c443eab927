package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/secrets"
)

// ErrValidation is returned for bad admin configuration input.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GuestCheck decides whether an account may serve as guest fallback.
// It returns false with a reason when the account is too privileged.
type GuestCheck func(acct *account.Account) (bool, string)

// Registry serves per-login-type provider configuration: decrypted on
// read, sanitized and encrypted on write, persisted as one options
// document.
type Registry struct {
	repo       OptionsRepository
	vault      *secrets.Service
	accounts   account.Service
	factories  map[string]Factory
	guestCheck GuestCheck
	httpClient *http.Client

	mutex  sync.Mutex
	cached *Options
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFactory registers or replaces a provider factory.
func WithFactory(typ string, factory Factory) RegistryOption {
	return func(r *Registry) {
		r.factories[typ] = factory
	}
}

// WithGuestCheck sets the guest acceptability check applied when a
// guest account is configured.
func WithGuestCheck(check GuestCheck) RegistryOption {
	return func(r *Registry) {
		r.guestCheck = check
	}
}

// WithHTTPClient sets the HTTP client handed to provider factories.
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(r *Registry) {
		r.httpClient = client
	}
}

// NewRegistry creates a provider registry.
func NewRegistry(repo OptionsRepository, vault *secrets.Service, accounts account.Service, opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:       repo,
		vault:      vault,
		accounts:   accounts,
		factories:  DefaultFactories(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) options(ctx context.Context) (*Options, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cached == nil {
		options, err := r.repo.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load options: %w", err)
		}
		r.cached = options
	}
	return r.cached.Clone(), nil
}

func (r *Registry) invalidate() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.cached = nil
}

// GetConfig returns the configuration of a login type with the client
// secret decrypted, or nil if the type is unknown, not configured, or
// (when requireEnabled is set) disabled. A secret that fails to
// decrypt degrades the provider to unconfigured rather than failing
// the request.
func (r *Registry) GetConfig(ctx context.Context, typ string, requireEnabled bool) (*Config, error) {
	if !KnownType(typ) {
		return nil, nil
	}

	options, err := r.options(ctx)
	if err != nil {
		return nil, err
	}
	cfg, ok := options.Providers[typ]
	if !ok {
		return nil, nil
	}
	if requireEnabled && !cfg.Enabled {
		return nil, nil
	}

	if cfg.Auth != nil && cfg.Auth.ClientSecret.Encrypted() {
		plaintext, err := r.vault.Decrypt(cfg.Auth.ClientSecret)
		if err != nil {
			slog.Warn("Failed to decrypt provider client secret; treating provider as unconfigured",
				"type", typ, "error", err)
			return nil, nil
		}
		cfg.Auth.ClientSecret = secrets.NewPlaintext(plaintext)
	}

	// Drop a guest reference that no longer resolves to an account.
	if cfg.GuestAccountID != nil {
		if _, err := r.accounts.GetByID(ctx, *cfg.GuestAccountID); err != nil {
			slog.Warn("Configured guest account not found", "type", typ, "guest", *cfg.GuestAccountID)
			cfg.GuestAccountID = nil
		}
	}

	return cfg, nil
}

// GetCustomization returns the customization options.
func (r *Registry) GetCustomization(ctx context.Context) (Customization, error) {
	options, err := r.options(ctx)
	if err != nil {
		return Customization{}, err
	}
	if options.Customize == nil {
		return Customization{}, nil
	}
	return *options.Customize, nil
}

// EnabledTypes lists the login types switched on in configuration.
func (r *Registry) EnabledTypes(ctx context.Context) ([]string, error) {
	options, err := r.options(ctx)
	if err != nil {
		return nil, err
	}
	var enabled []string
	for _, typ := range Types() {
		if cfg, ok := options.Providers[typ]; ok && cfg.Enabled {
			enabled = append(enabled, typ)
		}
	}
	return enabled, nil
}

// ActivatedTypes lists the login types that are enabled and carry a
// usable OAuth2 configuration.
func (r *Registry) ActivatedTypes(ctx context.Context) ([]string, error) {
	enabled, err := r.EnabledTypes(ctx)
	if err != nil {
		return nil, err
	}
	var activated []string
	for _, typ := range enabled {
		cfg, err := r.GetConfig(ctx, typ, true)
		if err != nil {
			return nil, err
		}
		if cfg.Configured() {
			activated = append(activated, typ)
		}
	}
	return activated, nil
}

// Provider constructs the OAuth2 capability for a login type from its
// decrypted configuration. defaultRedirect is used when the config
// carries no redirect_uri override.
func (r *Registry) Provider(ctx context.Context, typ, defaultRedirect string) (Provider, *Config, error) {
	cfg, err := r.GetConfig(ctx, typ, true)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Configured() {
		return nil, nil, nil
	}

	factory, ok := r.factories[typ]
	if !ok {
		return nil, nil, fmt.Errorf("no provider factory for type %q", typ)
	}

	redirect := cfg.Auth.RedirectURI
	if redirect == "" {
		redirect = defaultRedirect
	}

	customize, err := r.GetCustomization(ctx)
	if err != nil {
		return nil, nil, err
	}

	prov, err := factory(Params{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret.Plaintext(),
		RedirectURI:  redirect,
		Scopes:       cfg.Auth.Scopes(),
		Customize:    customize,
		HTTPClient:   r.httpClient,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build %s provider: %w", typ, err)
	}
	return prov, cfg, nil
}

// Update sanitizes and persists the configuration of one login type,
// then returns the stored config (decrypted). Accepted fields are an
// explicit allow-list; anything else is logged and dropped.
func (r *Registry) Update(ctx context.Context, typ string, raw map[string]any) (*Config, error) {
	if !KnownType(typ) {
		return nil, ErrValidation{Field: "type", Reason: fmt.Sprintf("invalid xlogin auth: %s", typ)}
	}

	cfg, err := r.sanitizeProvider(ctx, typ, raw)
	if err != nil {
		return nil, err
	}

	if err := r.persist(ctx, func(options *Options) {
		if options.Providers == nil {
			options.Providers = make(map[string]*Config)
		}
		options.Providers[typ] = cfg
	}); err != nil {
		return nil, err
	}

	return r.GetConfig(ctx, typ, false)
}

// UpdateCustomization sanitizes and persists customization options.
func (r *Registry) UpdateCustomization(ctx context.Context, raw map[string]any) (Customization, error) {
	customize := Customization{}
	for key, value := range raw {
		switch key {
		case "login_buttons_info":
			text, ok := value.(string)
			if !ok {
				slog.Warn("Invalid customization value", "key", key)
				continue
			}
			customize.LoginButtonsInfo = text
		case "facebook_graph_api":
			vers, ok := value.(string)
			if !ok || vers == "" {
				slog.Warn("Invalid customization value", "key", key)
				continue
			}
			if err := ValidateGraphVersion(vers); err != nil {
				return Customization{}, ErrValidation{Field: key, Reason: err.Error()}
			}
			customize.FacebookGraphAPI = vers
		default:
			slog.Warn("Unknown customization option dropped", "key", key)
		}
	}

	if err := r.persist(ctx, func(options *Options) {
		options.Customize = &customize
	}); err != nil {
		return Customization{}, err
	}
	return customize, nil
}

// persist applies a mutation to the current options document and saves
// the whole document in one write.
func (r *Registry) persist(ctx context.Context, mutate func(*Options)) error {
	options, err := r.options(ctx)
	if err != nil {
		return err
	}
	mutate(options)
	if err := r.repo.Save(ctx, options); err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	r.invalidate()
	return nil
}

// sanitizeProvider builds a Config from raw admin input, encrypting
// the client secret when it arrives in plaintext.
func (r *Registry) sanitizeProvider(ctx context.Context, typ string, raw map[string]any) (*Config, error) {
	cfg := &Config{}
	for key, value := range raw {
		switch key {
		case "enabled":
			cfg.Enabled = truthy(value)
		case "restricted":
			cfg.Restricted = truthy(value)
		case "override":
			cfg.Override = truthy(value)
		case "guest":
			id, err := r.sanitizeGuest(ctx, value)
			if err != nil {
				return nil, err
			}
			cfg.GuestAccountID = id
		case "config":
			auth, err := r.sanitizeAuth(typ, value)
			if err != nil {
				return nil, err
			}
			cfg.Auth = auth
		default:
			slog.Warn("Unknown provider config field dropped", "type", typ, "field", key)
		}
	}
	return cfg, nil
}

// sanitizeGuest resolves a guest reference (login name or numeric id)
// and applies the acceptability check. An empty reference clears the
// guest.
func (r *Registry) sanitizeGuest(ctx context.Context, value any) (*int64, error) {
	var acct *account.Account
	var err error

	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		acct, err = account.Lookup(ctx, r.accounts, v)
	case float64: // JSON number
		acct, err = r.accounts.GetByID(ctx, int64(v))
	case int64:
		acct, err = r.accounts.GetByID(ctx, v)
	case int:
		acct, err = r.accounts.GetByID(ctx, int64(v))
	default:
		return nil, ErrValidation{Field: "guest", Reason: "unsupported guest reference"}
	}
	if err != nil {
		return nil, ErrValidation{Field: "guest", Reason: "unknown guest account"}
	}

	if r.guestCheck != nil {
		if ok, reason := r.guestCheck(acct); !ok {
			return nil, ErrValidation{Field: "guest", Reason: reason}
		}
	}
	return &acct.ID, nil
}

func (r *Registry) sanitizeAuth(typ string, value any) (*AuthConfig, error) {
	// The admin surface may deliver the auth config as a JSON string.
	var rawAuth map[string]any
	switch v := value.(type) {
	case map[string]any:
		rawAuth = v
	case string:
		if err := json.Unmarshal([]byte(v), &rawAuth); err != nil {
			return nil, ErrValidation{Field: "config", Reason: "auth config is not valid JSON"}
		}
	default:
		return nil, ErrValidation{Field: "config", Reason: "auth config must be an object"}
	}

	auth := &AuthConfig{}
	for key, val := range rawAuth {
		switch key {
		case "client_id":
			auth.ClientID, _ = val.(string)
		case "client_secret":
			secret, err := r.sanitizeSecret(val)
			if err != nil {
				return nil, err
			}
			auth.ClientSecret = secret
		case "redirect_uri":
			auth.RedirectURI, _ = val.(string)
		case "scope":
			auth.Scope, _ = val.(string)
		default:
			slog.Warn("Unknown auth config field dropped", "type", typ, "field", key)
		}
	}
	return auth, nil
}

// sanitizeSecret encrypts a plaintext client secret; a tuple-form
// value is already encrypted and passes through unchanged.
func (r *Registry) sanitizeSecret(value any) (secrets.Secret, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return secrets.Secret{}, ErrValidation{Field: "client_secret", Reason: "unsupported value"}
	}
	var secret secrets.Secret
	if err := secret.UnmarshalJSON(data); err != nil {
		return secrets.Secret{}, ErrValidation{Field: "client_secret", Reason: "unsupported value"}
	}
	if secret.Empty() {
		return secrets.Secret{}, nil
	}
	encrypted, err := r.vault.Encrypt(secret)
	if err != nil {
		return secrets.Secret{}, fmt.Errorf("failed to encrypt client secret: %w", err)
	}
	return encrypted, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true" || v == "on" || v == "yes"
	case float64:
		return v != 0
	default:
		return false
	}
}
