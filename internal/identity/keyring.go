package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	defaultService = "arcade-session"
	identityKey    = "player/identity"
)

// KeyringStore keeps the player identity in the OS keychain, with an
// optional JSON file fallback for hosts without a keyring.
type KeyringStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewKeyringStore creates a keyring-backed store.
func NewKeyringStore(serviceName, fallbackPath string) *KeyringStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultService
	}
	return &KeyringStore{service: serviceName, fallbackPath: fallbackPath}
}

// Identity implements Provider.
func (k *KeyringStore) Identity(context.Context) (string, error) {
	val, err := keyring.Get(k.service, identityKey)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("identity: keyring get: %w", err)
	}

	fallback, ferr := k.readFallback()
	if ferr != nil {
		return "", ferr
	}
	if fallback == "" {
		return "", ErrNotFound
	}
	return fallback, nil
}

// SetIdentity stores id, replacing any previous identity.
func (k *KeyringStore) SetIdentity(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("identity: id is required")
	}
	err := keyring.Set(k.service, identityKey, id)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("identity: keyring set: %w", err)
	}
	return k.writeFallback(id)
}

// Clear forgets the stored identity.
func (k *KeyringStore) Clear() error {
	err := keyring.Delete(k.service, identityKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		_ = k.writeFallback("")
		return fmt.Errorf("identity: keyring delete: %w", err)
	}
	return k.writeFallback("")
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackFile struct {
	Identity string `json:"identity"`
}

func (k *KeyringStore) readFallback() (string, error) {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return "", nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	raw, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("identity: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}
	var f fallbackFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("identity: decode fallback: %w", err)
	}
	return f.Identity, nil
}

func (k *KeyringStore) writeFallback(id string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		if id == "" {
			return nil
		}
		return fmt.Errorf("identity: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("identity: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(fallbackFile{Identity: id})
	if err != nil {
		return fmt.Errorf("identity: encode fallback: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("identity: write fallback: %w", err)
	}
	return nil
}
