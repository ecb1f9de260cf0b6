package session

import (
	"os"

	"github.com/mvalim/textsync/internal/config"
)

// DefaultSessionName is used when nothing else picks a session.
const DefaultSessionName = "main"

// EnvSession overrides the configured default session when set.
const EnvSession = "TEXTSYNC_SESSION"

// Resolve determines the active session name. Precedence: the -session
// flag, then TEXTSYNC_SESSION, then default_session from config.toml,
// then "main".
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(EnvSession); env != "" {
		return env
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
