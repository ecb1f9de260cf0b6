package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mvalim/textsync/internal/ident"
)

const conversationCols = `id, addresses, matcher_key, title, snippet, timestamp, read, pinned, archived, muted,
	color_main, color_dark, color_light, color_accent, line_id`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Addresses, &c.MatcherKey, &c.Title, &c.Snippet, &c.Timestamp,
		&c.Read, &c.Pinned, &c.Archived, &c.Muted,
		&c.Colors.Main, &c.Colors.Dark, &c.Colors.Light, &c.Colors.Accent, &c.LineID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertConversation writes a new conversation row. A zero id is minted
// here; on a unique-constraint collision the id is re-minted exactly
// once. A caller-supplied id that already exists is a no-op, so replays
// never duplicate rows.
func (s *Store) InsertConversation(c *Conversation) error {
	if c.MatcherKey == "" {
		c.MatcherKey = ident.Key(c.Addresses)
	}
	minted := c.ID == 0
	if minted {
		c.ID = NewID()
	}
	insert := func() error {
		_, err := s.Exec(`
			INSERT INTO conversations (`+conversationCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Addresses, c.MatcherKey, c.Title, c.Snippet, c.Timestamp,
			c.Read, c.Pinned, c.Archived, c.Muted,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent, c.LineID)
		return err
	}
	err := insert()
	if err != nil && isUniqueViolation(err) {
		if !minted {
			return nil
		}
		c.ID = NewID()
		if err = insert(); err != nil {
			if isUniqueViolation(err) {
				return ErrIDCollision
			}
			return fmt.Errorf("insert conversation: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	s.mirrorConversation(OpAdd, c)
	return nil
}

// FindConversation resolves the existing conversation for a raw address
// or comma-separated list, tolerant of formatting differences: the stored
// matcher key is compared against every derived representation. Returns
// nil when no conversation matches; an empty address never matches.
// Should more than one row match, the most recently active one wins.
func (s *Store) FindConversation(addresses string) (*Conversation, error) {
	keys := ident.Keys(addresses)
	if len(keys) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	row, err := s.QueryRow(`
		SELECT `+conversationCols+` FROM conversations
		WHERE matcher_key IN (`+placeholders+`)
		ORDER BY timestamp DESC LIMIT 1`, args...)
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetConversation returns a conversation by id, or nil.
func (s *Store) GetConversation(id int64) (*Conversation, error) {
	row, err := s.QueryRow(`SELECT `+conversationCols+` FROM conversations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListConversations returns the thread index sorted by pinned state and
// recency. Archived threads are excluded unless requested.
func (s *Store) ListConversations(includeArchived bool) ([]Conversation, error) {
	query := `SELECT ` + conversationCols + ` FROM conversations`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY pinned DESC, timestamp DESC`
	rows, err := s.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation; messages and drafts cascade.
func (s *Store) DeleteConversation(id int64) error {
	c, err := s.GetConversation(id)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if _, err := s.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	s.mirrorConversation(OpDelete, c)
	return nil
}

// MarkConversationRead flags the conversation and its messages read.
func (s *Store) MarkConversationRead(id int64) error {
	if _, err := s.Exec(`UPDATE conversations SET read = 1 WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := s.Exec(`UPDATE messages SET read = 1, seen = 1 WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetArchived moves a conversation in or out of the archive.
func (s *Store) SetArchived(id int64, archived bool) error {
	if _, err := s.Exec(`UPDATE conversations SET archived = ? WHERE id = ?`, archived, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetPinned pins or unpins a conversation.
func (s *Store) SetPinned(id int64, pinned bool) error {
	if _, err := s.Exec(`UPDATE conversations SET pinned = ? WHERE id = ?`, pinned, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetMuted mutes or unmutes a conversation.
func (s *Store) SetMuted(id int64, muted bool) error {
	if _, err := s.Exec(`UPDATE conversations SET muted = ? WHERE id = ?`, muted, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetTitle renames a conversation.
func (s *Store) SetTitle(id int64, title string) error {
	if _, err := s.Exec(`UPDATE conversations SET title = ? WHERE id = ?`, title, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetColors applies a conversation color scheme.
func (s *Store) SetColors(id int64, colors ColorScheme) error {
	_, err := s.Exec(`
		UPDATE conversations SET color_main = ?, color_dark = ?, color_light = ?, color_accent = ?
		WHERE id = ?`, colors.Main, colors.Dark, colors.Light, colors.Accent, id)
	if err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

// SetConversationLine overrides the outgoing SIM/line for a conversation.
func (s *Store) SetConversationLine(id int64, lineID string) error {
	if _, err := s.Exec(`UPDATE conversations SET line_id = ? WHERE id = ?`, lineID, id); err != nil {
		return err
	}
	s.mirrorUpdatedConversation(id)
	return nil
}

func (s *Store) mirrorUpdatedConversation(id int64) {
	if s.mirrorHook() == nil {
		return
	}
	c, err := s.GetConversation(id)
	if err != nil || c == nil {
		return
	}
	s.mirrorConversation(OpUpdate, c)
}

// InsertConversations bulk-inserts rows in one transaction: a mid-run
// interruption applies all of the batch or none of it. Individual-change
// mirroring is skipped; bulk paths follow up with a full upload.
func (s *Store) InsertConversations(convs []*Conversation) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range convs {
		if c.ID == 0 {
			c.ID = NewID()
		}
		if c.MatcherKey == "" {
			c.MatcherKey = ident.Key(c.Addresses)
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO conversations (`+conversationCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Addresses, c.MatcherKey, c.Title, c.Snippet, c.Timestamp,
			c.Read, c.Pinned, c.Archived, c.Muted,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent, c.LineID); err != nil {
			return fmt.Errorf("insert conversation %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}
