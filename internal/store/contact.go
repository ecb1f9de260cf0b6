package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mvalim/textsync/internal/ident"
)

// InsertContacts bulk-loads address-book entries in one transaction.
// Existing addresses are updated in place.
func (s *Store) InsertContacts(contacts []*Contact) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range contacts {
		if c.ID == 0 {
			c.ID = NewID()
		}
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, address, matcher_key, name, color_main, color_dark, color_light, color_accent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				matcher_key = excluded.matcher_key,
				name = excluded.name,
				color_main = excluded.color_main,
				color_dark = excluded.color_dark,
				color_light = excluded.color_light,
				color_accent = excluded.color_accent`,
			c.ID, c.Address, ident.Key(c.Address), c.Name,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent); err != nil {
			return fmt.Errorf("insert contact %q: %w", c.Address, err)
		}
	}
	return tx.Commit()
}

// ContactName resolves a display name for an address, matching on the
// normalized key set so formatting differences still hit. Empty string
// when unknown.
func (s *Store) ContactName(address string) (string, error) {
	keys := ident.Keys(address)
	if len(keys) == 0 {
		return "", nil
	}
	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	row, err := s.QueryRow(`
		SELECT name FROM contacts WHERE matcher_key IN (`+placeholders+`) LIMIT 1`, args...)
	if err != nil {
		return "", err
	}
	var name string
	err = row.Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// ListContacts returns every stored contact.
func (s *Store) ListContacts() ([]Contact, error) {
	rows, err := s.Query(`
		SELECT id, address, name, color_main, color_dark, color_light, color_accent FROM contacts`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Address, &c.Name,
			&c.Colors.Main, &c.Colors.Dark, &c.Colors.Light, &c.Colors.Accent); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
