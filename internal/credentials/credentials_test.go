package credentials

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestResolve_Precedence(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "openai", Data: []byte("from-ring")}})

	r := NewResolver(WithLookupEnv(envOf(map[string]string{"OPENAI_API_KEY": "from-env"})), WithKeyring(ring))
	key, src, err := r.Resolve("openai", " explicit ")
	require.NoError(t, err)
	assert.Equal(t, "explicit", key)
	assert.Equal(t, SourceExplicit, src)

	key, src, err = r.Resolve("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.Equal(t, SourceEnv, src)

	r = NewResolver(WithLookupEnv(envOf(map[string]string{"OPENAI_API_KEY": "  "})), WithKeyring(ring))
	key, src, err = r.Resolve("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "from-ring", key)
	assert.Equal(t, SourceKeyring, src)
}

func TestResolve_MissingIsNotAnError(t *testing.T) {
	r := NewResolver(WithLookupEnv(envOf(nil)), WithKeyring(keyring.NewArrayKeyring(nil)))
	key, src, err := r.Resolve("anthropic", "")
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, SourceNone, src)
}

func TestResolve_KeyringUnavailable(t *testing.T) {
	r := NewResolver(WithLookupEnv(envOf(nil)))
	r.open = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }

	key, src, err := r.Resolve("gemini", "")
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, SourceNone, src)

	assert.Error(t, r.Store("gemini", []byte("k")))
}

func TestResolve_ReplayAndUnknown(t *testing.T) {
	r := NewResolver(WithLookupEnv(envOf(nil)), WithKeyring(keyring.NewArrayKeyring(nil)))
	key, src, err := r.Resolve("replay", "ignored")
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, SourceNone, src)

	_, _, err = r.Resolve("zai", "")
	assert.Error(t, err)
}

func TestStoreListDelete(t *testing.T) {
	r := NewResolver(WithLookupEnv(envOf(nil)), WithKeyring(keyring.NewArrayKeyring(nil)))

	require.NoError(t, r.Store("gemini", []byte("g-key")))
	require.NoError(t, r.Store("anthropic", []byte("a-key")))
	assert.Error(t, r.Store("anthropic", []byte(" ")))
	assert.Error(t, r.Store("nope", []byte("x")))

	providers, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "gemini"}, providers)

	key, src, err := r.Resolve("gemini", "")
	require.NoError(t, err)
	assert.Equal(t, "g-key", key)
	assert.Equal(t, SourceKeyring, src)

	require.NoError(t, r.Delete("gemini"))
	assert.Error(t, r.Delete("gemini"), "deleting twice fails")

	providers, err = r.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic"}, providers)
}
