// Package identity manages the persistent player id sent on every
// challenge API call. The id lives in the OS keychain where one is
// available, with a plaintext file fallback otherwise. A fresh UUID is
// minted on first use and reused for every later game so results stay
// attributable to one player.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const (
	defaultService = "berghain-runner"
	keyPlayerID    = "player-id"
)

// Store wraps the OS keychain with an optional file fallback.
// Fallback is intended for environments where no system keyring is available.
type Store struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewStore creates an identity store.
func NewStore(serviceName, fallbackPath string) *Store {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultService
	}
	return &Store{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

// PlayerID returns the stored player id, minting and persisting a new
// UUID when none exists yet.
func (s *Store) PlayerID() (string, error) {
	id, err := s.getSecret(keyPlayerID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := s.setSecret(keyPlayerID, id); err != nil {
		return "", err
	}
	return id, nil
}

// SetPlayerID overwrites the stored identity.
func (s *Store) SetPlayerID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("identity: player id is required")
	}
	return s.setSecret(keyPlayerID, id)
}

// Reset removes the stored identity. The next PlayerID call mints a
// new one.
func (s *Store) Reset() error {
	if err := keyring.Delete(s.service, keyPlayerID); err != nil &&
		!errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		_ = s.deleteFallback(keyPlayerID)
		return fmt.Errorf("identity: keyring delete: %w", err)
	}
	return s.deleteFallback(keyPlayerID)
}

func (s *Store) setSecret(part, value string) error {
	if err := keyring.Set(s.service, part, value); err == nil {
		return nil
	} else if !isKeyringUnavailable(err) {
		return fmt.Errorf("identity: keyring set %s: %w", part, err)
	}

	return s.setFallback(part, value)
}

func (s *Store) getSecret(part string) (string, error) {
	val, err := keyring.Get(s.service, part)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("identity: keyring get %s: %w", part, err)
	}

	fallback, ferr := s.getFallback(part)
	if ferr == nil {
		return fallback, nil
	}

	if errors.Is(err, keyring.ErrNotFound) {
		return "", keyring.ErrNotFound
	}
	return "", ferr
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "the specified item could not be found in the keychain") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]string

func (s *Store) setFallback(part, value string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return fmt.Errorf("identity: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[part] = value
	return s.writeFallbackUnlocked(data)
}

func (s *Store) getFallback(part string) (string, error) {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return "", fmt.Errorf("identity: fallback path not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[part]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return val, nil
}

func (s *Store) deleteFallback(part string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	delete(data, part)
	return s.writeFallbackUnlocked(data)
}

func (s *Store) readFallbackUnlocked() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("identity: read fallback secrets: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("identity: decode fallback secrets: %w", err)
	}
	return out, nil
}

func (s *Store) writeFallbackUnlocked(data fallbackSecrets) error {
	dir := filepath.Dir(s.fallbackPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("identity: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("identity: encode fallback secrets: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("identity: write fallback secrets: %w", err)
	}
	return nil
}
