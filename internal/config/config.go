// Package config reads the global and per-session TOML configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.textsync/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
}

// Session represents a per-session session.toml. Remote sync stays off
// until AccountID is set.
type Session struct {
	// AccountID links the session to a remote backup account; empty
	// means local-only operation.
	AccountID string `toml:"account_id"`
	// DeviceID identifies this device to the remote service.
	DeviceID string `toml:"device_id"`
	// Primary marks the device whose writes mirror to the remote;
	// secondary devices only download.
	Primary bool `toml:"primary"`
	// RemoteURL is the backup service base URL.
	RemoteURL string `toml:"remote_url"`
	// KeySalt is the per-account salt fed into key derivation together
	// with the passphrase.
	KeySalt string `toml:"key_salt"`
	// Passphrase encrypts synced fields. Kept in the 0600 session file,
	// same trust level as the unencrypted local store next to it.
	Passphrase string `toml:"passphrase"`
	// NativeDBPath points at the exported native provider snapshot.
	NativeDBPath string `toml:"native_db_path"`
	// ReconcileIntervalSec is the period of the incremental sync pass.
	ReconcileIntervalSec int `toml:"reconcile_interval_sec"`
	// ImportMessageCap bounds per-conversation history at setup.
	ImportMessageCap int `toml:"import_message_cap"`
}

// Linked reports whether the session has a remote account configured.
func (s *Session) Linked() bool {
	return s != nil && s.AccountID != "" && s.RemoteURL != ""
}

// Load reads the global config from the given path. Returns zero config
// and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to the given path, creating parent dirs
// as needed.
func Save(path string, cfg *Config) error {
	return write(path, cfg)
}

// LoadSession reads a per-session config. A missing file yields a zero
// session (local-only defaults), not an error.
func LoadSession(path string) (*Session, error) {
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if os.IsNotExist(err) {
			return &s, nil
		}
		return nil, err
	}
	return &s, nil
}

// SaveSession writes a per-session config.
func SaveSession(path string, s *Session) error {
	return write(path, s)
}

func write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
