package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the keychain service name entries are filed under
	DefaultService = "zoro-browser-manager"
)

// Keyring persists values securely in the OS keychain/credential manager
type Keyring struct {
	service string
}

// NewKeyring creates a keychain-backed store for the given service name
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultService
	}
	return &Keyring{service: service}
}

// Get retrieves a value from the OS keychain/credential manager
func (k *Keyring) Get(key string) (string, bool, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value in the OS keychain/credential manager
func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Remove deletes a value from the OS keychain/credential manager
func (k *Keyring) Remove(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Probe checks that the keychain is reachable. A read of the token entry is
// enough when it answers (found or not found); only a keychain that fails the
// read is tested with a write of a marker entry.
func (k *Keyring) Probe() error {
	_, err := keyring.Get(k.service, TokenKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}

	const probeKey = "probe"
	if err := keyring.Set(k.service, probeKey, "ok"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = keyring.Delete(k.service, probeKey)
	return nil
}
