package store

import (
	"fmt"
)

// ImportBatch writes one conversation and its imported history in a
// single transaction, bypassing the mirror hook (the bulk upload after
// setup covers the remote side). A conversation with no importable
// messages is not committed at all.
func (s *Store) ImportBatch(c *Conversation, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	c.ID = NewID()
	for attempt := 0; ; attempt++ {
		_, err = tx.Exec(`
			INSERT INTO conversations (`+conversationCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Addresses, c.MatcherKey, c.Title, c.Snippet, c.Timestamp,
			c.Read, c.Pinned, c.Archived, c.Muted,
			c.Colors.Main, c.Colors.Dark, c.Colors.Light, c.Colors.Accent, c.LineID)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("import conversation: %w", err)
		}
		if attempt > 0 {
			return ErrIDCollision
		}
		c.ID = NewID()
	}

	for _, m := range msgs {
		m.ConversationID = c.ID
		m.ID = NewID()
		for attempt := 0; ; attempt++ {
			_, err = tx.Exec(`
				INSERT INTO messages (`+messageCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
				m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color)
			if err == nil {
				break
			}
			if !isUniqueViolation(err) {
				return fmt.Errorf("import message: %w", err)
			}
			if attempt > 0 {
				return ErrIDCollision
			}
			m.ID = NewID()
		}
	}

	return tx.Commit()
}
