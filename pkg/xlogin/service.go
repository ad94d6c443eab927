package xlogin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/alias"
	"github.com/tendant/xlogin/pkg/provider"
	"github.com/tendant/xlogin/pkg/registration"
	"github.com/tendant/xlogin/pkg/webflow"
)

// Webflow attribute suffixes. Keys are additionally scoped by the
// service instance name through webflow.Scope.
const (
	attrState = "oauth2-state"
	attrRedir = "oauth2-redir"
	attrXUser = "xuser"
)

const stateBytes = 32

// Service orchestrates the external-login federation flow for one
// configured instance: launch, callback, identity resolution, and
// session import. All collaborators are injected.
type Service struct {
	name          string
	registry      *provider.Registry
	store         webflow.Store
	scope         webflow.Scope
	accounts      account.Service
	registrations registration.Repository
	hasher        *alias.Hasher
	sessions      SessionRepository
	baseURL       string
	loginURL      string
}

// Option configures a Service.
type Option func(*Service)

// WithLoginURL sets the login surface the flow redirects back to on
// failure. Defaults to the base URL.
func WithLoginURL(loginURL string) Option {
	return func(s *Service) { s.loginURL = loginURL }
}

// WithSessionRepository replaces the session record store.
func WithSessionRepository(sessions SessionRepository) Option {
	return func(s *Service) { s.sessions = sessions }
}

// NewService creates a federation service instance. The name scopes
// webflow keys; baseURL is the externally reachable prefix the
// callback routes are mounted under.
func NewService(
	name string,
	registry *provider.Registry,
	store webflow.Store,
	accounts account.Service,
	registrations registration.Repository,
	hasher *alias.Hasher,
	baseURL string,
	opts ...Option,
) *Service {
	s := &Service{
		name:          name,
		registry:      registry,
		store:         store,
		scope:         webflow.NewScope(name),
		accounts:      accounts,
		registrations: registrations,
		hasher:        hasher,
		sessions:      NewInMemorySessionRepository(),
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loginURL == "" {
		s.loginURL = s.baseURL
	}
	return s
}

// Name returns the instance name.
func (s *Service) Name() string {
	return s.name
}

// LoginURL returns the login surface failures redirect back to.
func (s *Service) LoginURL() string {
	return s.loginURL
}

// Scope returns the webflow key scope of this instance.
func (s *Service) Scope() webflow.Scope {
	return s.scope
}

// CallbackURL returns the redirect URI registered with a provider.
func (s *Service) CallbackURL(typ string) string {
	return s.baseURL + "/external/" + url.PathEscape(typ) + "/callback"
}

func (s *Service) stateKey(typ string) string { return s.scope.Key(typ + "." + attrState) }
func (s *Service) redirKey(typ string) string { return s.scope.Key(typ + "." + attrRedir) }
func (s *Service) xuserKey(typ string) string { return s.scope.Key(typ + "-" + attrXUser) }

// Launch starts the authorization-code flow for a login type and
// returns the provider authorization URL. The anti-CSRF state token
// and the landing redirect are committed to the webflow before the
// URL is handed out; if either write fails no URL is returned, since
// the callback could never validate.
func (s *Service) Launch(ctx context.Context, w http.ResponseWriter, r *http.Request, typ, landing string) (string, error) {
	prov, _, err := s.registry.Provider(ctx, typ, s.CallbackURL(typ))
	if err != nil {
		return "", flowErr(KindServerError, "could not load provider configuration", err)
	}
	if prov == nil {
		return "", flowErr(KindNotConfigured, provider.DisplayName(typ)+" login is not configured", nil)
	}

	state, err := newStateToken()
	if err != nil {
		return "", flowErr(KindServerError, "could not generate state token", err)
	}

	if err := s.store.Set(w, r, s.stateKey(typ), state); err != nil {
		return "", flowErr(KindSession, "could not persist login state", err)
	}
	if err := s.store.Set(w, r, s.redirKey(typ), landing); err != nil {
		// Partial write: drop the state so the half-armed flow cannot
		// be completed by a later callback.
		if derr := s.store.Delete(w, r, s.stateKey(typ)); derr != nil {
			slog.Warn("Failed to roll back state after redirect stash failure", "type", typ, "error", derr)
		}
		return "", flowErr(KindSession, "could not persist login state", err)
	}

	slog.Debug("Launching external login", "type", typ)
	return prov.AuthCodeURL(state), nil
}

// Callback completes the authorization-code flow: validates the
// anti-CSRF state, redeems the code, fetches the profile, resolves a
// local account, parks the pending identity in the webflow, and
// returns the landing URL stashed at launch.
func (s *Service) Callback(ctx context.Context, w http.ResponseWriter, r *http.Request, typ string) (string, error) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		slog.Debug("Provider returned error on callback",
			"type", typ, "error", provErr, "description", query.Get("error_description"))
		return "", flowErr(KindInvalidGrant, provider.DisplayName(typ)+" sign-in was not completed", nil)
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		return "", flowErr(KindInvalidRequest, "missing code or state", nil)
	}

	// The stashed state is cleared on first comparison no matter how
	// the comparison turns out, so a replayed callback always fails.
	stored, ok := s.store.Get(r, s.stateKey(typ))
	if err := s.store.Delete(w, r, s.stateKey(typ)); err != nil {
		slog.Warn("Failed to clear state token", "type", typ, "error", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
		return "", flowErr(KindInvalidRequest, "state mismatch", nil)
	}

	prov, cfg, err := s.registry.Provider(ctx, typ, s.CallbackURL(typ))
	if err != nil {
		return "", flowErr(KindServerError, "could not load provider configuration", err)
	}
	if prov == nil {
		return "", flowErr(KindNotConfigured, provider.DisplayName(typ)+" login is not configured", nil)
	}

	token, err := prov.Exchange(ctx, code)
	if err != nil {
		slog.Debug("Authorization code exchange failed", "type", typ, "error", err)
		return "", flowErr(KindInvalidGrant, "could not redeem authorization code", err)
	}

	profile, err := prov.FetchProfile(ctx, token)
	if err != nil {
		slog.Debug("Profile fetch failed", "type", typ, "error", err)
		return "", flowErr(KindInvalidGrant, "could not fetch account profile", err)
	}

	email, err := alias.Normalize(alias.TypeEmail, profile.Email)
	if err != nil {
		return "", flowErr(KindServerError, "provider returned an unusable email address", err)
	}
	profile.Email = email

	acct, isGuest, err := s.Resolve(ctx, typ, profile, cfg)
	if err != nil {
		return "", err
	}

	pending := PendingIdentity{AccountID: acct.ID, LoginType: typ, Guest: isGuest}
	if cfg.Override {
		pending.DisplayName = profile.DisplayName()
		pending.Email = profile.Email
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return "", flowErr(KindServerError, "could not encode identity", err)
	}
	if err := s.store.Set(w, r, s.xuserKey(typ), string(payload)); err != nil {
		return "", flowErr(KindSession, "could not persist identity", err)
	}

	landing, _ := s.store.Get(r, s.redirKey(typ))
	if err := s.store.Delete(w, r, s.redirKey(typ)); err != nil {
		slog.Warn("Failed to clear redirect stash", "type", typ, "error", err)
	}

	slog.Info("External login completed", "type", typ, "account_id", acct.ID, "guest", isGuest)
	return landing, nil
}

// Resolve maps a verified external profile to a local account.
// Unrestricted providers may match the account email field directly;
// otherwise only an explicit alias registration counts, with the
// configured guest account as last resort.
func (s *Service) Resolve(ctx context.Context, typ string, profile *provider.Profile, cfg *provider.Config) (*account.Account, bool, error) {
	if !cfg.Restricted {
		acct, err := s.accounts.GetByEmail(ctx, profile.Email)
		if err == nil {
			return acct, false, nil
		}
		var notFound account.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, false, flowErr(KindServerError, "account lookup failed", err)
		}
	}

	hash := s.hasher.Hash(alias.TypeEmail, profile.Email)
	reg, err := s.registrations.GetByHash(ctx, hash)
	switch {
	case err == nil:
		acct, err := s.accounts.GetByID(ctx, reg.AccountID)
		if err != nil {
			return nil, false, flowErr(KindServerError, "registered account missing", err)
		}
		return acct, false, nil
	default:
		var notFound registration.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, false, flowErr(KindServerError, "registration lookup failed", err)
		}
	}

	if cfg.GuestAccountID != nil {
		guest, err := s.accounts.GetByID(ctx, *cfg.GuestAccountID)
		if err == nil {
			if ok, reason := IsAcceptableGuest(guest); ok {
				return guest, true, nil
			} else {
				slog.Warn("Configured guest account rejected", "type", typ, "reason", reason)
			}
		} else {
			slog.Warn("Configured guest account not found", "type", typ, "guest", *cfg.GuestAccountID)
		}
	}

	return nil, false, flowErr(KindUnknownUser,
		fmt.Sprintf("no account is linked to this %s identity", provider.DisplayName(typ)), nil)
}

// Authenticated pulls the pending identity of a login type and loads
// its account. expectAlias, when non-empty, must hash to a
// registration owned by the pending account ("type:value" or bare
// email form). clear consumes the pending identity.
func (s *Service) Authenticated(ctx context.Context, w http.ResponseWriter, r *http.Request, typ, expectAlias string, clear bool) (*account.Account, *PendingIdentity, error) {
	pending, ok, err := s.pendingIdentity(r, typ)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}

	if expectAlias != "" {
		aliasType, name, err := alias.Parse(expectAlias)
		if err != nil {
			return nil, nil, flowErr(KindValidation, "invalid alias", err)
		}
		hash, _, err := s.hasher.HashAlias(aliasType, name)
		if err != nil {
			return nil, nil, flowErr(KindValidation, "invalid alias", err)
		}
		reg, err := s.registrations.GetByHash(ctx, hash)
		if err != nil || reg.AccountID != pending.AccountID {
			return nil, nil, nil
		}
	}

	acct, err := s.accounts.GetByID(ctx, pending.AccountID)
	if err != nil {
		return nil, nil, flowErr(KindServerError, "authenticated account missing", err)
	}

	if clear {
		if err := s.store.Delete(w, r, s.xuserKey(typ)); err != nil {
			slog.Warn("Failed to clear pending identity", "type", typ, "error", err)
		}
	}
	return acct, pending, nil
}

// BindSession moves the pending identity of a login type out of the
// webflow into the session record keyed by token. It reports whether
// an identity was bound; no pending identity is not an error.
func (s *Service) BindSession(ctx context.Context, w http.ResponseWriter, r *http.Request, typ, token string) (bool, error) {
	pending, ok, err := s.pendingIdentity(r, typ)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.sessions.Put(ctx, SessionRecord{Token: token, Identity: *pending}); err != nil {
		return false, flowErr(KindSession, "could not store session identity", err)
	}
	if err := s.store.Delete(w, r, s.xuserKey(typ)); err != nil {
		slog.Warn("Failed to clear pending identity", "type", typ, "error", err)
	}
	return true, nil
}

// ImportIdentity overlays the session-bound external identity onto the
// account view: display name tagged with the provider, email override,
// and the guest capability cuts. The input account is not mutated and
// repeated calls yield the same view. Accounts without a bound
// identity, or bound to a different account, pass through unchanged.
func (s *Service) ImportIdentity(ctx context.Context, token string, acct *account.Account) (*account.Account, bool, error) {
	record, err := s.sessions.Get(ctx, token)
	if err != nil {
		var notFound ErrSessionNotFound
		if errors.As(err, &notFound) {
			return acct, false, nil
		}
		return nil, false, flowErr(KindSession, "could not load session identity", err)
	}
	if record.Identity.AccountID != acct.ID {
		return acct, false, nil
	}

	view := cloneAccount(acct)
	identity := record.Identity
	if identity.DisplayName != "" {
		view.DisplayName = fmt.Sprintf("%s (%s)", identity.DisplayName, provider.DisplayName(identity.LoginType))
	}
	if identity.Email != "" {
		view.Email = identity.Email
	}
	if identity.Guest {
		for _, cap := range GuestDisabledCapabilities {
			view.Capabilities[cap] = false
		}
	}
	return view, identity.Guest, nil
}

// UnbindSession drops the identity bound to a session token, e.g. on
// logout or token rotation.
func (s *Service) UnbindSession(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// StashFlowError parks a (code, text) pair for the login surface to
// pick up on its next render.
func (s *Service) StashFlowError(w http.ResponseWriter, r *http.Request, code, text string) error {
	return webflow.SetFlowError(s.store, w, r, s.scope, code, text)
}

// TakeFlowError returns and clears the stashed flow error, if any.
func (s *Service) TakeFlowError(w http.ResponseWriter, r *http.Request) (code, text string) {
	return webflow.TakeFlowError(s.store, w, r, s.scope)
}

func (s *Service) pendingIdentity(r *http.Request, typ string) (*PendingIdentity, bool, error) {
	raw, ok := s.store.Get(r, s.xuserKey(typ))
	if !ok {
		return nil, false, nil
	}
	var pending PendingIdentity
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, false, flowErr(KindServerError, "corrupt pending identity", err)
	}
	return &pending, true, nil
}

func cloneAccount(acct *account.Account) *account.Account {
	view := *acct
	view.Capabilities = make(map[string]bool, len(acct.Capabilities))
	for cap, held := range acct.Capabilities {
		view.Capabilities[cap] = held
	}
	if acct.Meta != nil {
		view.Meta = make(map[string]string, len(acct.Meta))
		for k, v := range acct.Meta {
			view.Meta[k] = v
		}
	}
	return &view
}

func newStateToken() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
