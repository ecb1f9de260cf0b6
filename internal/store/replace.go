package store

import (
	"fmt"

	"github.com/mvalim/textsync/internal/ident"
)

// Snapshot is the full synced state of an account, as transferred by a
// bulk download.
type Snapshot struct {
	Conversations []*Conversation
	Messages      []*Message
	Drafts        []*Draft
	Scheduled     []*ScheduledMessage
	Contacts      []*Contact
}

// ReplaceAll wipes every synced table and repopulates it from the
// snapshot inside a single transaction. A failure anywhere leaves the
// store exactly as it was; a reader concurrent with the swap observes
// either the fully-old or the fully-new state.
func (s *Store) ReplaceAll(snap *Snapshot) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "drafts", "scheduled_messages", "conversations", "contacts"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}

	for _, c := range snap.Conversations {
		if c.MatcherKey == "" {
			c.MatcherKey = ident.Key(c.Addresses)
		}
		if _, err := tx.Exec(`
			INSERT INTO conversations (`+conversationCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Addresses, c.MatcherKey, c.Title, c.Snippet, c.Timestamp,
			c.Read, c.Pinned, c.Archived, c.Muted,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent, c.LineID); err != nil {
			return fmt.Errorf("replace conversation %d: %w", c.ID, err)
		}
	}
	for _, m := range snap.Messages {
		if _, err := tx.Exec(`
			INSERT INTO messages (`+messageCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
			m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color); err != nil {
			return fmt.Errorf("replace message %d: %w", m.ID, err)
		}
	}
	for _, d := range snap.Drafts {
		if _, err := tx.Exec(`
			INSERT INTO drafts (id, conversation_id, kind, body) VALUES (?, ?, ?, ?)`,
			d.ID, d.ConversationID, d.Kind, d.Body); err != nil {
			return fmt.Errorf("replace draft %d: %w", d.ID, err)
		}
	}
	for _, sm := range snap.Scheduled {
		if _, err := tx.Exec(`
			INSERT INTO scheduled_messages (`+scheduledCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
			sm.ID, sm.Addresses, sm.Title, sm.Body, sm.Kind, sm.FireAt); err != nil {
			return fmt.Errorf("replace scheduled %d: %w", sm.ID, err)
		}
	}
	for _, c := range snap.Contacts {
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, address, matcher_key, name, color_main, color_dark, color_light, color_accent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Address, ident.Key(c.Address), c.Name,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent); err != nil {
			return fmt.Errorf("replace contact %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}
