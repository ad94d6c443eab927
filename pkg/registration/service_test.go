package registration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/alias"
)

func newTestService(t *testing.T) (*Service, *account.InMemoryService) {
	t.Helper()
	hasher, err := alias.NewHasher("test-installation-salt")
	require.NoError(t, err)

	accounts := account.NewInMemoryService(
		account.Account{ID: 1, Login: "jdoe", Email: "jdoe@example.com"},
		account.Account{ID: 2, Login: "asmith", Email: "asmith@example.org"},
	)
	return NewService(NewInMemoryRepository(), accounts, hasher), accounts
}

func TestServiceAdd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.Add(ctx, AddParams{
		AliasType: alias.TypeEmail,
		AliasName: "JDoe@Example.COM",
		Account:   "jdoe",
		Obscure:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.User)
	assert.Equal(t, "j***e@example.com", info.Hint)
	assert.Len(t, info.Hash, 43)

	t.Run("DuplicateRejectedWithoutReplace", func(t *testing.T) {
		_, err := svc.Add(ctx, AddParams{
			AliasType: alias.TypeEmail,
			AliasName: "jdoe@example.com",
			Account:   "asmith",
		})
		var dup ErrDuplicateAlias
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("ReplaceRebinds", func(t *testing.T) {
		replaced, err := svc.Add(ctx, AddParams{
			AliasType: alias.TypeEmail,
			AliasName: "jdoe@example.com",
			Account:   "asmith",
			Replace:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, "asmith", replaced.User)
		assert.Equal(t, info.Hash, replaced.Hash)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		_, err := svc.Add(ctx, AddParams{
			AliasType: alias.TypeEmail,
			AliasName: "x@example.com",
			Account:   "ghost",
		})
		assert.Error(t, err)
	})

	t.Run("InvalidAlias", func(t *testing.T) {
		_, err := svc.Add(ctx, AddParams{
			AliasType: alias.TypeEmail,
			AliasName: "not-an-email",
			Account:   "jdoe",
		})
		var invalid alias.ErrInvalidAlias
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestServiceGetByAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddParams{
		AliasType: alias.TypeEmail,
		AliasName: "jdoe@example.com",
		Account:   "jdoe",
	})
	require.NoError(t, err)

	info, err := svc.GetByAlias(ctx, "email:JDOE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.User)

	info, err = svc.GetByAlias(ctx, "jdoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", info.User)

	_, err = svc.GetByAlias(ctx, "other@example.com")
	var notFound ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestServiceList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, add := range []AddParams{
		{AliasType: alias.TypeEmail, AliasName: "jdoe@example.com", Account: "jdoe", Obscure: true},
		{AliasType: alias.TypeEmail, AliasName: "jdoe@other.net", Account: "jdoe", Obscure: true},
		{AliasType: alias.TypeEmail, AliasName: "asmith@example.org", Account: "asmith", Obscure: true},
	} {
		_, err := svc.Add(ctx, add)
		require.NoError(t, err)
	}

	t.Run("ByLogin", func(t *testing.T) {
		result, err := svc.List(ctx, ListSearch{Login: "jdoe"}, 0, 10, true)
		require.NoError(t, err)
		assert.Len(t, result.Registrations, 2)
		require.NotNil(t, result.Total)
		assert.Equal(t, int64(2), *result.Total)
	})

	t.Run("ByEmail", func(t *testing.T) {
		result, err := svc.List(ctx, ListSearch{Login: "asmith@example.org"}, 0, 10, false)
		require.NoError(t, err)
		assert.Len(t, result.Registrations, 1)
		assert.Nil(t, result.Total)
	})

	t.Run("UnknownLoginYieldsEmpty", func(t *testing.T) {
		result, err := svc.List(ctx, ListSearch{Login: "ghost"}, 0, 10, true)
		require.NoError(t, err)
		assert.Empty(t, result.Registrations)
		require.NotNil(t, result.Total)
		assert.Zero(t, *result.Total)
	})

	t.Run("ByAliasSubstring", func(t *testing.T) {
		result, err := svc.List(ctx, ListSearch{Alias: "other.net"}, 0, 10, false)
		require.NoError(t, err)
		require.Len(t, result.Registrations, 1)
		assert.Equal(t, "jdoe", result.Registrations[0].User)
	})

	t.Run("LikeMetacharactersMatchLiterally", func(t *testing.T) {
		result, err := svc.List(ctx, ListSearch{Alias: "%"}, 0, 10, false)
		require.NoError(t, err)
		assert.Empty(t, result.Registrations)
	})

	t.Run("Pagination", func(t *testing.T) {
		page, err := svc.List(ctx, ListSearch{}, 0, 2, true)
		require.NoError(t, err)
		assert.Len(t, page.Registrations, 2)
		require.NotNil(t, page.Total)
		assert.Equal(t, int64(3), *page.Total)

		rest, err := svc.List(ctx, ListSearch{}, 2, 2, false)
		require.NoError(t, err)
		assert.Len(t, rest.Registrations, 1)
	})
}

func TestServiceImportBatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	records := []ImportRecord{
		{Alias: "jdoe@example.com", Login: "jdoe"},
		{Alias: "email:asmith@example.org", Login: "asmith"},
		{Alias: "", Login: "jdoe"},
		{Alias: "orphan@example.com", Login: ""},
		{Alias: "not-an-email", Login: "jdoe"},
		{Alias: "someone@example.com", Login: "ghost"},
	}

	result := svc.ImportBatch(ctx, records, 0, true)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)

	t.Run("ErrorListBounded", func(t *testing.T) {
		var many []ImportRecord
		for i := 0; i < 5; i++ {
			many = append(many, ImportRecord{Alias: "broken-alias", Login: "jdoe"})
		}
		bounded := svc.ImportBatch(ctx, many, 3, false)
		assert.Equal(t, 5, bounded.Failed)
		assert.Len(t, bounded.Errors, 3)
	})

	t.Run("ReimportReplaces", func(t *testing.T) {
		again := svc.ImportBatch(ctx, records[:1], 0, false)
		assert.Equal(t, 1, again.Succeeded)

		info, err := svc.GetByAlias(ctx, "jdoe@example.com")
		require.NoError(t, err)
		assert.Equal(t, "jdoe", info.User)
	})
}

func TestServiceDeleteAndWipe(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.Add(ctx, AddParams{
		AliasType: alias.TypeEmail,
		AliasName: "jdoe@example.com",
		Account:   "jdoe",
	})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, info.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	for _, name := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.Add(ctx, AddParams{AliasType: alias.TypeEmail, AliasName: name, Account: "jdoe"})
		require.NoError(t, err)
	}
	count, err := svc.Wipe(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
