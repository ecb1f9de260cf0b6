package store

import (
	"fmt"

	"github.com/mvalim/textsync/internal/ident"
)

// AddBlacklist blocks a number. Matching uses the same normalized key as
// conversation resolution, so every formatting of the number is blocked.
func (s *Store) AddBlacklist(address string) error {
	key := ident.Key(address)
	if key == "" {
		return fmt.Errorf("blacklist: empty address")
	}
	_, err := s.Exec(`
		INSERT INTO blacklist (id, address, matcher_key) VALUES (?, ?, ?)
		ON CONFLICT(matcher_key) DO NOTHING`, NewID(), address, key)
	return err
}

// RemoveBlacklist unblocks a number.
func (s *Store) RemoveBlacklist(address string) error {
	_, err := s.Exec(`DELETE FROM blacklist WHERE matcher_key = ?`, ident.Key(address))
	return err
}

// IsBlacklisted reports whether any normalized form of the address is
// blocked.
func (s *Store) IsBlacklisted(address string) (bool, error) {
	keys := ident.Keys(address)
	if len(keys) == 0 {
		return false, nil
	}
	for _, k := range keys {
		row, err := s.QueryRow(`SELECT COUNT(*) FROM blacklist WHERE matcher_key = ?`, k)
		if err != nil {
			return false, err
		}
		var n int
		if err := row.Scan(&n); err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
