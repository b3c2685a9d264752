// Package credentials resolves provider API keys from, in order, an explicit
// value, the provider's environment variable and the OS keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/99designs/keyring"

	"apiscribe/internal/config"
	"apiscribe/internal/logging"
)

// ServiceName is the keyring service all keys are stored under.
const ServiceName = "apiscribe"

// Source tells where a key was found.
type Source string

const (
	SourceNone     Source = "none"
	SourceExplicit Source = "explicit"
	SourceEnv      Source = "env"
	SourceKeyring  Source = "keyring"
)

// EnvVars maps each networked provider to its key variable.
var EnvVars = map[string]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

// Resolver looks up keys. The zero value is not usable; call NewResolver.
type Resolver struct {
	lookupEnv func(string) (string, bool)
	open      func() (keyring.Keyring, error)

	once    sync.Once
	ring    keyring.Keyring
	ringErr error
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = fn }
}

// WithKeyring uses kr instead of opening the OS keyring.
func WithKeyring(kr keyring.Keyring) Option {
	return func(r *Resolver) {
		r.open = func() (keyring.Keyring, error) { return kr, nil }
	}
}

// NewResolver returns a resolver backed by the environment and the OS keyring.
// The keyring is opened on first use.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{lookupEnv: os.LookupEnv, open: openSystemKeyring}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func openSystemKeyring() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName:              ServiceName,
		KeychainTrustApplication: true,
		FilePasswordFunc:         keyring.TerminalPrompt,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.FileDir = filepath.Join(home, ".apiscribe", "keys")
	}
	return keyring.Open(cfg)
}

func (r *Resolver) openRing() (keyring.Keyring, error) {
	r.once.Do(func() {
		r.ring, r.ringErr = r.open()
	})
	return r.ring, r.ringErr
}

// Resolve returns the key for provider. A missing key is not an error: the
// generation client reports it as an authentication failure when it is used.
func (r *Resolver) Resolve(provider, explicit string) (string, Source, error) {
	if provider == config.ProviderReplay {
		return "", SourceNone, nil
	}
	if _, ok := EnvVars[provider]; !ok {
		return "", SourceNone, fmt.Errorf("unknown provider %q", provider)
	}

	if key := strings.TrimSpace(explicit); key != "" {
		return key, SourceExplicit, nil
	}
	if v, ok := r.lookupEnv(EnvVars[provider]); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), SourceEnv, nil
	}

	kr, err := r.openRing()
	if err != nil {
		logging.BootDebug("keyring unavailable: %v", err)
		return "", SourceNone, nil
	}
	item, err := kr.Get(provider)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", SourceNone, nil
	}
	if err != nil {
		return "", SourceNone, fmt.Errorf("failed to read %s key from keyring: %w", provider, err)
	}
	return strings.TrimSpace(string(item.Data)), SourceKeyring, nil
}

// Store saves key for provider in the keyring.
func (r *Resolver) Store(provider string, key []byte) error {
	if _, ok := EnvVars[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if len(strings.TrimSpace(string(key))) == 0 {
		return errors.New("API key is empty")
	}
	kr, err := r.openRing()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	return kr.Set(keyring.Item{
		Key:         provider,
		Data:        key,
		Label:       provider + " API key",
		Description: "API key for " + provider + " used by apiscribe",
	})
}

// Delete removes the key for provider. Deleting a missing key is an error.
func (r *Resolver) Delete(provider string) error {
	if _, ok := EnvVars[provider]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	kr, err := r.openRing()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if _, err := kr.Get(provider); err != nil {
		return fmt.Errorf("no %s key stored: %w", provider, err)
	}
	if err := kr.Remove(provider); err != nil {
		return fmt.Errorf("failed to delete %s key: %w", provider, err)
	}
	return nil
}

// List returns the providers that have a key in the keyring, sorted.
func (r *Resolver) List() ([]string, error) {
	kr, err := r.openRing()
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	keys, err := kr.Keys()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if _, ok := EnvVars[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
