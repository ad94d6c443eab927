package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestScopesParsing(t *testing.T) {
	tests := []struct {
		scope string
		want  []string
	}{
		{"", nil},
		{"openid", []string{"openid"}},
		{"openid profile email", []string{"openid", "profile", "email"}},
		{"openid,profile, email", []string{"openid", "profile", "email"}},
		{"  openid \t profile  ", []string{"openid", "profile"}},
	}
	for _, tt := range tests {
		auth := &AuthConfig{Scope: tt.scope}
		assert.Equal(t, tt.want, auth.Scopes(), "scope %q", tt.scope)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Google", DisplayName(TypeGoogle))
	assert.Equal(t, "Facebook", DisplayName(TypeFacebook))
	assert.Equal(t, "Yahoo!", DisplayName(TypeYahoo))
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Full Name", (&Profile{Name: "Full Name", FirstName: "x"}).DisplayName())
	assert.Equal(t, "John Doe", (&Profile{FirstName: "John", LastName: "Doe"}).DisplayName())
	assert.Equal(t, "Doe", (&Profile{LastName: "Doe"}).DisplayName())
	// Multi-byte names follow family-then-given with no separator.
	assert.Equal(t, "山田太郎", (&Profile{FirstName: "太郎", LastName: "山田"}).DisplayName())
}

func TestAuthCodeURLCarriesStateAndScopes(t *testing.T) {
	prov, err := NewGoogle(Params{
		ClientID:    "client-1",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid", "email"},
	})
	require.NoError(t, err)

	raw := prov.AuthCodeURL("state-token-1")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "state-token-1", q.Get("state"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid email", q.Get("scope"))
}

func TestFacebookGraphVersion(t *testing.T) {
	prov, err := NewFacebook(Params{ClientID: "fb", Customize: Customization{FacebookGraphAPI: "v12.0"}})
	require.NoError(t, err)
	assert.Contains(t, prov.AuthCodeURL("s"), "/v12.0/dialog/oauth")

	// Default version when customization is empty.
	prov, err = NewFacebook(Params{ClientID: "fb"})
	require.NoError(t, err)
	assert.Contains(t, prov.AuthCodeURL("s"), "/"+DefaultFacebookGraphVersion+"/dialog/oauth")

	_, err = NewFacebook(Params{ClientID: "fb", Customize: Customization{FacebookGraphAPI: "bogus"}})
	assert.Error(t, err)
}

// fakeAuthServer stands in for a provider's token and userinfo
// endpoints.
func fakeAuthServer(t *testing.T, wantCode string, userinfo any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != wantCode {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","token_type":"Bearer"}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(userinfo))
	})
	return httptest.NewServer(mux)
}

func TestExchangeAndFetchProfile(t *testing.T) {
	server := fakeAuthServer(t, "good-code", map[string]any{
		"id":          "ext-123",
		"email":       "jdoe@example.com",
		"name":        "John Doe",
		"given_name":  "John",
		"family_name": "Doe",
	})
	defer server.Close()

	prov := &oauth2Provider{
		typ: TypeGoogle,
		config: &oauth2.Config{
			ClientID:     "c",
			ClientSecret: "s",
			Endpoint:     oauth2.Endpoint{TokenURL: server.URL + "/token"},
		},
		userInfoURL: server.URL + "/userinfo",
		parse:       parseGoogleProfile,
		httpClient:  server.Client(),
	}

	ctx := context.Background()
	token, err := prov.Exchange(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)

	profile, err := prov.FetchProfile(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ext-123", profile.ExternalID)
	assert.Equal(t, "jdoe@example.com", profile.Email)
	assert.Equal(t, "John Doe", profile.Name)

	_, err = prov.Exchange(ctx, "bad-code")
	assert.Error(t, err)
}

func TestFetchProfileRejectsMissingExternalID(t *testing.T) {
	server := fakeAuthServer(t, "code", map[string]any{"email": "x@y.com"})
	defer server.Close()

	prov := &oauth2Provider{
		typ: TypeYahoo,
		config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{TokenURL: server.URL + "/token"},
		},
		userInfoURL: server.URL + "/userinfo",
		parse:       parseOIDCProfile(TypeYahoo),
		httpClient:  server.Client(),
	}

	token := &oauth2.Token{AccessToken: "at-1", TokenType: "Bearer"}
	_, err := prov.FetchProfile(context.Background(), token)
	assert.Error(t, err)
}
