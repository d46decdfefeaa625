// Session credential storage. Tokens are encrypted with a device-derived key
// before they ever touch the persistent store, so a copied database file does
// not leak the session.
package crypto

import (
	"fmt"

	"github.com/aidapp/aida/backend/internal/store"
)

// sessionCredentialKey is the store key holding the encrypted session token.
const sessionCredentialKey = "session_credentials"

// SessionStore persists the current session token, encrypted at rest.
type SessionStore struct {
	store store.Store
	key   []byte
}

// NewSessionStore creates a SessionStore bound to the given persistent store.
// An empty deviceID falls back to the default device key.
func NewSessionStore(s store.Store, deviceID string) *SessionStore {
	return &SessionStore{
		store: s,
		key:   DeviceKey(deviceID),
	}
}

// Save encrypts and durably stores the session token.
func (s *SessionStore) Save(token string) error {
	if token == "" {
		return ErrInvalidKey
	}

	encrypted, err := Encrypt([]byte(token), s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}

	if err := s.store.Set(sessionCredentialKey, []byte(encrypted)); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// Token returns the decrypted session token. ok is false when no session is stored.
func (s *SessionStore) Token() (token string, ok bool, err error) {
	data, ok, err := s.store.Get(sessionCredentialKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read session token: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	plaintext, err := Decrypt(string(data), s.key)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt session token: %w", err)
	}
	return string(plaintext), true, nil
}

// Clear removes the stored session credentials.
func (s *SessionStore) Clear() error {
	if err := s.store.Delete(sessionCredentialKey); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}
