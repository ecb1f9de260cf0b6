package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultSession: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	s := &Session{
		AccountID:            "acct-1",
		DeviceID:             "dev-1",
		Primary:              true,
		RemoteURL:            "https://backup.example.com",
		KeySalt:              "salt",
		Passphrase:           "hunter2",
		NativeDBPath:         "/data/mmssms.db",
		ReconcileIntervalSec: 15,
		ImportMessageCap:     2000,
	}
	if err := SaveSession(path, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *s {
		t.Errorf("round trip = %+v, want %+v", loaded, s)
	}
	if !loaded.Linked() {
		t.Error("Linked() = false for configured account")
	}
}

func TestLoadSessionMissingIsLocalOnly(t *testing.T) {
	s, err := LoadSession(filepath.Join(t.TempDir(), "session.toml"))
	if err != nil {
		t.Fatalf("missing session config should not error: %v", err)
	}
	if s.Linked() {
		t.Error("zero session reports a linked account")
	}
}
