package mt5

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *AccountStore {
	t.Helper()
	store, err := OpenAccountStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)

	err := store.Save(&AccountProfile{
		Name:   "demo",
		Login:  123456,
		Server: "Broker-Demo",
		Alias:  "cuenta de pruebas",
	})
	require.NoError(t, err)

	profile, err := store.Get("demo")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, int64(123456), profile.Login)
	assert.Equal(t, "Broker-Demo", profile.Server)
	assert.NotZero(t, profile.SavedAtMs)
}

func TestAccountStoreRequiresName(t *testing.T) {
	store := openTestStore(t)

	err := store.Save(&AccountProfile{Login: 123456})
	require.Error(t, err)
}

func TestAccountStoreGetMissing(t *testing.T) {
	store := openTestStore(t)

	profile, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestAccountStoreSaveReplaces(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 1}))
	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 2}))

	profile, err := store.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.Login)

	profiles, err := store.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestAccountStoreList(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 1}))
	require.NoError(t, store.Save(&AccountProfile{Name: "real", Login: 2}))

	profiles, err := store.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestAccountStoreDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 1}))
	require.NoError(t, store.Delete("demo"))

	profile, err := store.Get("demo")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestAccountStoreTouchLastUsed(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 1}))
	require.NoError(t, store.TouchLastUsed("demo"))

	profile, err := store.Get("demo")
	require.NoError(t, err)
	assert.NotZero(t, profile.LastUsed)

	// Perfil inexistente no es error
	require.NoError(t, store.TouchLastUsed("nope"))
}

func TestAccountProfileNeverStoresPassword(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save(&AccountProfile{Name: "demo", Login: 123456, Server: "Broker-Demo"}))

	profile, err := store.Get("demo")
	require.NoError(t, err)

	// El perfil no tiene campo de password; el switch la pide al caller.
	data, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}
