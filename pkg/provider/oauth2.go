package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/yahoo"
)

// Provider is the OAuth2 client capability of one external login
// service: build the authorization URL, redeem the code, fetch the
// resource-owner profile.
type Provider interface {
	Type() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// Params carries everything a Factory needs to construct a Provider.
type Params struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Customize    Customization
	HTTPClient   *http.Client
}

// Factory constructs a Provider from config. The registry maps login
// type names to factories, so new providers plug in without touching
// the flow logic.
type Factory func(params Params) (Provider, error)

// DefaultFactories returns the built-in provider factories.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		TypeFacebook: NewFacebook,
		TypeGoogle:   NewGoogle,
		TypeYahoo:    NewYahoo,
	}
}

// oauth2Provider is the shared x/oauth2-backed implementation; the
// per-provider variation is the endpoint, the userinfo URL, and the
// profile field mapping.
type oauth2Provider struct {
	typ         string
	config      *oauth2.Config
	userInfoURL string
	parse       func(data []byte) (*Profile, error)
	httpClient  *http.Client
}

func (p *oauth2Provider) Type() string {
	return p.typ
}

func (p *oauth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *oauth2Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = p.clientContext(ctx)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange with %s failed: %w", p.typ, err)
	}
	return token, nil
}

func (p *oauth2Provider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	ctx = p.clientContext(ctx)

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("user info request to %s failed: %w", p.typ, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s user info response: %w", p.typ, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request to %s failed with status %d: %s", p.typ, resp.StatusCode, string(body))
	}

	profile, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s user info: %w", p.typ, err)
	}
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("no external ID in %s user info", p.typ)
	}
	return profile, nil
}

func (p *oauth2Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return ctx
}

func defaultScopes(scopes, fallback []string) []string {
	if len(scopes) > 0 {
		return scopes
	}
	return fallback
}

// NewGoogle builds the Google provider.
func NewGoogle(params Params) (Provider, error) {
	return &oauth2Provider{
		typ: TypeGoogle,
		config: &oauth2.Config{
			ClientID:     params.ClientID,
			ClientSecret: params.ClientSecret,
			RedirectURL:  params.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       defaultScopes(params.Scopes, []string{"openid", "profile", "email"}),
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		parse:       parseGoogleProfile,
		httpClient:  params.HTTPClient,
	}, nil
}

// NewFacebook builds the Facebook provider. The Graph API version is
// taken from customization when set.
func NewFacebook(params Params) (Provider, error) {
	vers := params.Customize.FacebookGraphAPI
	if vers == "" {
		vers = DefaultFacebookGraphVersion
	} else if err := ValidateGraphVersion(vers); err != nil {
		return nil, err
	}

	endpoint := facebook.Endpoint
	endpoint.AuthURL = fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth", vers)
	endpoint.TokenURL = fmt.Sprintf("https://graph.facebook.com/%s/oauth/access_token", vers)

	return &oauth2Provider{
		typ: TypeFacebook,
		config: &oauth2.Config{
			ClientID:     params.ClientID,
			ClientSecret: params.ClientSecret,
			RedirectURL:  params.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       defaultScopes(params.Scopes, []string{"email", "public_profile"}),
		},
		userInfoURL: fmt.Sprintf("https://graph.facebook.com/%s/me?fields=id,name,first_name,last_name,email", vers),
		parse:       parseFacebookProfile,
		httpClient:  params.HTTPClient,
	}, nil
}

// NewYahoo builds the Yahoo provider.
func NewYahoo(params Params) (Provider, error) {
	return &oauth2Provider{
		typ: TypeYahoo,
		config: &oauth2.Config{
			ClientID:     params.ClientID,
			ClientSecret: params.ClientSecret,
			RedirectURL:  params.RedirectURI,
			Endpoint:     yahoo.Endpoint,
			Scopes:       defaultScopes(params.Scopes, []string{"openid", "profile", "email"}),
		},
		userInfoURL: "https://api.login.yahoo.com/openid/v1/userinfo",
		parse:       parseOIDCProfile(TypeYahoo),
		httpClient:  params.HTTPClient,
	}, nil
}

func parseGoogleProfile(data []byte) (*Profile, error) {
	var raw struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Locale     string `json:"locale"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Profile{
		ExternalID: raw.ID,
		Email:      raw.Email,
		Name:       raw.Name,
		FirstName:  raw.GivenName,
		LastName:   raw.FamilyName,
		Locale:     raw.Locale,
	}, nil
}

func parseFacebookProfile(data []byte) (*Profile, error) {
	var raw struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Profile{
		ExternalID: raw.ID,
		Email:      raw.Email,
		Name:       raw.Name,
		FirstName:  raw.FirstName,
		LastName:   raw.LastName,
	}, nil
}

// parseOIDCProfile handles providers with a standard OIDC userinfo
// document (Yahoo among them).
func parseOIDCProfile(typ string) func(data []byte) (*Profile, error) {
	return func(data []byte) (*Profile, error) {
		var raw struct {
			Sub        string `json:"sub"`
			Email      string `json:"email"`
			Name       string `json:"name"`
			GivenName  string `json:"given_name"`
			FamilyName string `json:"family_name"`
			Locale     string `json:"locale"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return &Profile{
			ExternalID: raw.Sub,
			Email:      raw.Email,
			Name:       raw.Name,
			FirstName:  raw.GivenName,
			LastName:   raw.FamilyName,
			Locale:     raw.Locale,
		}, nil
	}
}
