package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".textsync", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestStorePath(t *testing.T) {
	got := StorePath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "textsync.db")) {
		t.Errorf("StorePath(test) = %q, want suffix sessions/test/textsync.db", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestSessionConfigPath(t *testing.T) {
	got := SessionConfigPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "session.toml")) {
		t.Errorf("SessionConfigPath(test) = %q, want suffix sessions/test/session.toml", got)
	}
}
