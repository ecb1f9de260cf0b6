package store

import "fmt"

// UpsertDraft saves unsent content for a conversation. One row exists
// per content kind, so a text draft and an image draft can coexist.
func (s *Store) UpsertDraft(d *Draft) error {
	if d.ID == 0 {
		d.ID = NewID()
	}
	res, err := s.Exec(`
		UPDATE drafts SET body = ? WHERE conversation_id = ? AND kind = ?`,
		d.Body, d.ConversationID, d.Kind)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.mirrorDraft(OpUpdate, d)
		return nil
	}
	insert := func() error {
		_, err := s.Exec(`
			INSERT INTO drafts (id, conversation_id, kind, body) VALUES (?, ?, ?, ?)`,
			d.ID, d.ConversationID, d.Kind, d.Body)
		return err
	}
	if err := insert(); err != nil {
		if !isUniqueViolation(err) {
			return fmt.Errorf("insert draft: %w", err)
		}
		d.ID = NewID()
		if err := insert(); err != nil {
			if isUniqueViolation(err) {
				return ErrIDCollision
			}
			return fmt.Errorf("insert draft: %w", err)
		}
	}
	s.mirrorDraft(OpAdd, d)
	return nil
}

// Drafts returns the drafts attached to a conversation.
func (s *Store) Drafts(conversationID int64) ([]Draft, error) {
	rows, err := s.Query(`
		SELECT id, conversation_id, kind, body FROM drafts WHERE conversation_id = ?`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.Kind, &d.Body); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// DeleteDrafts clears every draft of a conversation. Called the moment a
// message is queued for it.
func (s *Store) DeleteDrafts(conversationID int64) error {
	drafts, err := s.Drafts(conversationID)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return nil
	}
	if _, err := s.Exec(`DELETE FROM drafts WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	for i := range drafts {
		s.mirrorDraft(OpDelete, &drafts[i])
	}
	return nil
}

// AllDrafts returns every draft row, for bulk upload.
func (s *Store) AllDrafts() ([]Draft, error) {
	rows, err := s.Query(`SELECT id, conversation_id, kind, body FROM drafts`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.Kind, &d.Body); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
