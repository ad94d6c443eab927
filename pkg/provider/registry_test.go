package provider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/secrets"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *account.InMemoryService) {
	t.Helper()

	vault, err := secrets.NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	accounts := account.NewInMemoryService(
		account.Account{ID: 7, Login: "guest", Email: "guest@example.com"},
		account.Account{ID: 42, Login: "jdoe", Email: "jdoe@example.com"},
	)

	return NewRegistry(NewInMemoryOptionsRepository(), vault, accounts, opts...), accounts
}

func TestUpdateEncryptsClientSecret(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	cfg, err := registry.Update(ctx, TypeGoogle, map[string]any{
		"enabled": true,
		"config": map[string]any{
			"client_id":     "google-client",
			"client_secret": "plain-secret",
			"scope":         "openid, email profile",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Read path returns the decrypted secret.
	assert.False(t, cfg.Auth.ClientSecret.Encrypted())
	assert.Equal(t, "plain-secret", cfg.Auth.ClientSecret.Plaintext())

	// Storage path holds only the encrypted form.
	options, err := registry.repo.Load(ctx)
	require.NoError(t, err)
	stored := options.Providers[TypeGoogle].Auth.ClientSecret
	assert.True(t, stored.Encrypted())
	assert.NotContains(t, string(stored.Ciphertext()), "plain-secret")
}

func TestUpdateAcceptsEncryptedTupleUnchanged(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := registry.Update(ctx, TypeGoogle, map[string]any{
		"config": map[string]any{"client_id": "c", "client_secret": "s3cret"},
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	options, err := registry.repo.Load(ctx)
	require.NoError(t, err)
	stored := options.Providers[TypeGoogle].Auth.ClientSecret

	// Re-submit the stored tuple, as an admin round-trip would.
	_, err = registry.Update(ctx, TypeGoogle, map[string]any{
		"config": map[string]any{
			"client_id": "c",
			"client_secret": []any{
				// Same shape the JSON layer would deliver.
				tupleElem(t, stored, 0),
				tupleElem(t, stored, 1),
			},
		},
	})
	require.NoError(t, err)

	cfg, err := registry.GetConfig(ctx, TypeGoogle, false)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.ClientSecret.Plaintext())
}

func tupleElem(t *testing.T, secret secrets.Secret, i int) string {
	t.Helper()
	data, err := secret.MarshalJSON()
	require.NoError(t, err)
	var tuple [2]string
	require.NoError(t, json.Unmarshal(data, &tuple))
	return tuple[i]
}

func TestUpdateDropsUnknownFields(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	cfg, err := registry.Update(ctx, TypeYahoo, map[string]any{
		"enabled":     true,
		"bogus-field": "ignored",
		"config": map[string]any{
			"client_id":   "y",
			"extra-thing": "ignored",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "y", cfg.Auth.ClientID)
}

func TestUpdateUnknownType(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Update(context.Background(), "myspace", map[string]any{"enabled": true})
	var verr ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestUpdateGuestByLoginAndCheck(t *testing.T) {
	registry, _ := newTestRegistry(t, WithGuestCheck(func(acct *account.Account) (bool, string) {
		if acct.Login == "jdoe" {
			return false, "too privileged"
		}
		return true, ""
	}))
	ctx := context.Background()

	cfg, err := registry.Update(ctx, TypeGoogle, map[string]any{"guest": "guest"})
	require.NoError(t, err)
	require.NotNil(t, cfg.GuestAccountID)
	assert.Equal(t, int64(7), *cfg.GuestAccountID)

	_, err = registry.Update(ctx, TypeGoogle, map[string]any{"guest": "jdoe"})
	var verr ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "guest", verr.Field)
}

func TestGetConfigRequireEnabled(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Update(ctx, TypeFacebook, map[string]any{
		"config": map[string]any{"client_id": "fb", "client_secret": "s"},
	})
	require.NoError(t, err)

	cfg, err := registry.GetConfig(ctx, TypeFacebook, true)
	require.NoError(t, err)
	assert.Nil(t, cfg, "disabled provider must read as unconfigured")

	cfg, err = registry.GetConfig(ctx, TypeFacebook, false)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestGetConfigUnknownType(t *testing.T) {
	registry, _ := newTestRegistry(t)

	cfg, err := registry.GetConfig(context.Background(), "myspace", false)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestGetConfigDecryptFailureDegrades(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	// Store a secret encrypted under a different installation key.
	otherVault, err := secrets.NewService("a-different-installation-key!!!!")
	require.NoError(t, err)
	foreign, err := otherVault.Encrypt(secrets.NewPlaintext("secret"))
	require.NoError(t, err)

	require.NoError(t, registry.repo.Save(ctx, &Options{
		Providers: map[string]*Config{
			TypeGoogle: {
				Enabled: true,
				Auth:    &AuthConfig{ClientID: "g", ClientSecret: foreign},
			},
		},
	}))
	registry.invalidate()

	cfg, err := registry.GetConfig(ctx, TypeGoogle, true)
	require.NoError(t, err)
	if cfg != nil {
		// Wrong-key CBC decryption may accidentally unpad; the secret
		// must still not be the original plaintext.
		assert.NotEqual(t, "secret", cfg.Auth.ClientSecret.Plaintext())
	}
}

func TestGetConfigClearsDanglingGuest(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	missing := int64(999)
	require.NoError(t, registry.repo.Save(ctx, &Options{
		Providers: map[string]*Config{
			TypeGoogle: {Enabled: true, GuestAccountID: &missing, Auth: &AuthConfig{ClientID: "g"}},
		},
	}))
	registry.invalidate()

	cfg, err := registry.GetConfig(ctx, TypeGoogle, true)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.GuestAccountID)
}

func TestEnabledAndActivatedTypes(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Update(ctx, TypeGoogle, map[string]any{
		"enabled": true,
		"config":  map[string]any{"client_id": "g", "client_secret": "s"},
	})
	require.NoError(t, err)
	// Enabled but unconfigured.
	_, err = registry.Update(ctx, TypeYahoo, map[string]any{"enabled": true})
	require.NoError(t, err)

	enabled, err := registry.EnabledTypes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TypeGoogle, TypeYahoo}, enabled)

	activated, err := registry.ActivatedTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TypeGoogle}, activated)
}

func TestUpdateCustomization(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	customize, err := registry.UpdateCustomization(ctx, map[string]any{
		"login_buttons_info": "Sign in with:",
		"facebook_graph_api": "v12.0",
		"unknown":            "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sign in with:", customize.LoginButtonsInfo)
	assert.Equal(t, "v12.0", customize.FacebookGraphAPI)

	_, err = registry.UpdateCustomization(ctx, map[string]any{
		"facebook_graph_api": "12.0",
	})
	var verr ErrValidation
	assert.ErrorAs(t, err, &verr)
}
