package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/alias"
	"github.com/tendant/xlogin/pkg/provider"
	"github.com/tendant/xlogin/pkg/registration"
	"github.com/tendant/xlogin/pkg/xlogin"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handle serves the external-login flow endpoints and the admin API.
type Handle struct {
	flow          *xlogin.Service
	registry      *provider.Registry
	registrations *registration.Service
	accounts      account.Service
}

// NewHandle creates the HTTP handler set.
func NewHandle(flow *xlogin.Service, registry *provider.Registry, registrations *registration.Service, accounts account.Service) *Handle {
	return &Handle{
		flow:          flow,
		registry:      registry,
		registrations: registrations,
		accounts:      accounts,
	}
}

// ErrorResponse is the wire form of a failure.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, code, description string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code, ErrorDescription: description})
}

// renderFlowErr maps a typed flow failure to a JSON error response.
func renderFlowErr(w http.ResponseWriter, r *http.Request, err error) {
	var flowErr *xlogin.FlowError
	if errors.As(err, &flowErr) {
		renderError(w, r, flowStatus(flowErr.Kind), flowErr.Code(), flowErr.Message)
		return
	}
	slog.Error("Unexpected error", "error", err)
	renderError(w, r, http.StatusInternalServerError, "server_error", "internal error")
}

func flowStatus(kind xlogin.Kind) int {
	switch kind {
	case xlogin.KindNotConfigured:
		return http.StatusNotFound
	case xlogin.KindInvalidRequest, xlogin.KindValidation:
		return http.StatusBadRequest
	case xlogin.KindInvalidGrant:
		return http.StatusUnauthorized
	case xlogin.KindUnknownUser:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Start launches the external login flow and redirects the browser to
// the provider's authorization endpoint. Failures redirect back to the
// login surface with the flow error stashed for display.
func (h *Handle) Start(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	landing := r.URL.Query().Get("redir")

	authURL, err := h.flow.Launch(r.Context(), w, r, typ, landing)
	if err != nil {
		h.redirectWithError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the flow and redirects to the landing target
// stashed at launch.
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")

	landing, err := h.flow.Callback(r.Context(), w, r, typ)
	if err != nil {
		h.redirectWithError(w, r, err)
		return
	}
	if landing == "" {
		landing = h.flow.LoginURL()
	}
	http.Redirect(w, r, landing, http.StatusFound)
}

// FlowError returns and clears the stashed flow error for the login
// surface; 204 when there is none.
func (h *Handle) FlowError(w http.ResponseWriter, r *http.Request) {
	code, text := h.flow.TakeFlowError(w, r)
	if code == "" {
		render.NoContent(w, r)
		return
	}
	render.JSON(w, r, ErrorResponse{Error: code, ErrorDescription: text})
}

func (h *Handle) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	code, text := "server_error", "sign-in failed"
	var flowErr *xlogin.FlowError
	if errors.As(err, &flowErr) {
		code, text = flowErr.Code(), flowErr.Message
	}
	slog.Debug("External login flow failed", "code", code, "error", err)
	if serr := h.flow.StashFlowError(w, r, code, text); serr != nil {
		slog.Warn("Failed to stash flow error", "error", serr)
	}
	http.Redirect(w, r, h.flow.LoginURL(), http.StatusFound)
}

// GetProvider returns one login type's configuration, secret
// decrypted, for the admin settings surface.
func (h *Handle) GetProvider(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	if !provider.KnownType(typ) {
		renderError(w, r, http.StatusNotFound, "input-invalid", "unknown login type")
		return
	}

	cfg, err := h.registry.GetConfig(r.Context(), typ, false)
	if err != nil {
		renderFlowErr(w, r, err)
		return
	}
	if cfg == nil {
		cfg = &provider.Config{}
	}
	render.JSON(w, r, cfg)
}

// PutProvider updates one login type's configuration from an
// allow-list-sanitized document.
func (h *Handle) PutProvider(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid request body")
		return
	}

	cfg, err := h.registry.Update(r.Context(), typ, raw)
	if err != nil {
		var invalid provider.ErrValidation
		if errors.As(err, &invalid) {
			renderError(w, r, http.StatusBadRequest, "input-invalid", invalid.Error())
			return
		}
		renderFlowErr(w, r, err)
		return
	}
	if cfg == nil {
		cfg = &provider.Config{}
	}
	render.JSON(w, r, cfg)
}

// GetCustomization returns the installation-wide customization options.
func (h *Handle) GetCustomization(w http.ResponseWriter, r *http.Request) {
	customize, err := h.registry.GetCustomization(r.Context())
	if err != nil {
		renderFlowErr(w, r, err)
		return
	}
	render.JSON(w, r, customize)
}

// PutCustomization updates the customization options.
func (h *Handle) PutCustomization(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid request body")
		return
	}

	customize, err := h.registry.UpdateCustomization(r.Context(), raw)
	if err != nil {
		var invalid provider.ErrValidation
		if errors.As(err, &invalid) {
			renderError(w, r, http.StatusBadRequest, "input-invalid", invalid.Error())
			return
		}
		renderFlowErr(w, r, err)
		return
	}
	render.JSON(w, r, customize)
}

// OpsRequest is an admin utility operation.
type OpsRequest struct {
	Op   string `json:"op"`
	User string `json:"user,omitempty"`
}

// CheckGuestResponse reports whether an account may serve as guest.
type CheckGuestResponse struct {
	Acceptable bool   `json:"acceptable"`
	Reason     string `json:"reason,omitempty"`
}

// Ops dispatches admin utility operations. The only operation today is
// check-guest, which vets an account for guest-fallback duty before it
// is configured.
func (h *Handle) Ops(w http.ResponseWriter, r *http.Request) {
	var req OpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid request body")
		return
	}

	switch req.Op {
	case "check-guest":
		if req.User == "" {
			renderError(w, r, http.StatusBadRequest, "input-invalid", "user is required")
			return
		}
		acct, err := account.Lookup(r.Context(), h.accounts, req.User)
		if err != nil {
			renderError(w, r, http.StatusNotFound, "unknown-user", "no such account")
			return
		}
		ok, reason := xlogin.IsAcceptableGuest(acct)
		render.JSON(w, r, CheckGuestResponse{Acceptable: ok, Reason: reason})
	default:
		renderError(w, r, http.StatusBadRequest, "input-invalid", "unknown op")
	}
}

// CreateRegistrationRequest binds an alias to an account.
type CreateRegistrationRequest struct {
	Alias   string `json:"alias"`
	User    string `json:"user"`
	Replace bool   `json:"replace,omitempty"`
	Obscure bool   `json:"obscure,omitempty"`
}

// CreateRegistration registers an alias for an account.
func (h *Handle) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid request body")
		return
	}
	if req.Alias == "" || req.User == "" {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "alias and user are required")
		return
	}

	aliasType, name, err := alias.Parse(req.Alias)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", err.Error())
		return
	}

	info, err := h.registrations.Add(r.Context(), registration.AddParams{
		AliasType: aliasType,
		AliasName: name,
		Account:   req.User,
		Replace:   req.Replace,
		Obscure:   req.Obscure,
	})
	if err != nil {
		h.renderRegistrationErr(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// ListRegistrations returns a page of registrations, filtered by
// account login and/or obscured-alias substring.
func (h *Handle) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offset := parseInt32(query.Get("offset"), 0)
	limit := parseInt32(query.Get("limit"), defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	withTotal := query.Get("total") == "true" || query.Get("total") == "1"

	result, err := h.registrations.List(r.Context(), registration.ListSearch{
		Login: query.Get("login"),
		Alias: query.Get("alias"),
	}, offset, limit, withTotal)
	if err != nil {
		h.renderRegistrationErr(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// GetRegistration returns one registration by id.
func (h *Handle) GetRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid registration id")
		return
	}

	info, err := h.registrations.GetByID(r.Context(), id)
	if err != nil {
		h.renderRegistrationErr(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// DeleteRegistration removes one registration by id.
func (h *Handle) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid registration id")
		return
	}

	deleted, err := h.registrations.Delete(r.Context(), id)
	if err != nil {
		h.renderRegistrationErr(w, r, err)
		return
	}
	if !deleted {
		renderError(w, r, http.StatusNotFound, "input-invalid", "no such registration")
		return
	}
	render.NoContent(w, r)
}

// WipeResponse reports how many registrations a wipe removed.
type WipeResponse struct {
	Deleted int64 `json:"deleted"`
}

// WipeRegistrations removes every registration.
func (h *Handle) WipeRegistrations(w http.ResponseWriter, r *http.Request) {
	count, err := h.registrations.Wipe(r.Context())
	if err != nil {
		h.renderRegistrationErr(w, r, err)
		return
	}
	render.JSON(w, r, WipeResponse{Deleted: count})
}

// ImportRequest is a batch of registrations to import.
type ImportRequest struct {
	Records []registration.ImportRecord `json:"records"`
	ErrMax  int                         `json:"err_max,omitempty"`
	Obscure bool                        `json:"obscure,omitempty"`
}

// ImportRegistrations registers a batch of alias/login records.
func (h *Handle) ImportRegistrations(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		renderError(w, r, http.StatusBadRequest, "input-invalid", "records are required")
		return
	}

	result := h.registrations.ImportBatch(r.Context(), req.Records, req.ErrMax, req.Obscure)
	render.JSON(w, r, result)
}

func (h *Handle) renderRegistrationErr(w http.ResponseWriter, r *http.Request, err error) {
	var dup registration.ErrDuplicateAlias
	if errors.As(err, &dup) {
		renderError(w, r, http.StatusConflict, "input-invalid", "alias is already registered")
		return
	}
	var notFound registration.ErrNotFound
	if errors.As(err, &notFound) {
		renderError(w, r, http.StatusNotFound, "input-invalid", "no such registration")
		return
	}
	var badAlias alias.ErrInvalidAlias
	if errors.As(err, &badAlias) {
		renderError(w, r, http.StatusBadRequest, "input-invalid", badAlias.Error())
		return
	}
	var noAccount account.ErrNotFound
	if errors.As(err, &noAccount) {
		renderError(w, r, http.StatusNotFound, "unknown-user", "no such account")
		return
	}
	slog.Error("Registration operation failed", "error", err)
	renderError(w, r, http.StatusInternalServerError, "server_error", "internal error")
}

func parseInt32(raw string, fallback int32) int32 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || value < 0 {
		return fallback
	}
	return int32(value)
}
