package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const scheduledCols = `id, addresses, title, body, kind, fire_at`

// InsertScheduled queues content for future delivery.
func (s *Store) InsertScheduled(sm *ScheduledMessage) error {
	minted := sm.ID == 0
	if minted {
		sm.ID = NewID()
	}
	insert := func() error {
		_, err := s.Exec(`
			INSERT INTO scheduled_messages (`+scheduledCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
			sm.ID, sm.Addresses, sm.Title, sm.Body, sm.Kind, sm.FireAt)
		return err
	}
	err := insert()
	if err != nil && isUniqueViolation(err) {
		if !minted {
			return nil
		}
		sm.ID = NewID()
		if err = insert(); err != nil {
			if isUniqueViolation(err) {
				return ErrIDCollision
			}
			return fmt.Errorf("insert scheduled: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("insert scheduled: %w", err)
	}
	s.mirrorScheduled(OpAdd, sm)
	return nil
}

// UpdateScheduled rewrites a pending scheduled message (user edit before
// firing; the only in-place mutation the entity permits).
func (s *Store) UpdateScheduled(sm *ScheduledMessage) error {
	_, err := s.Exec(`
		UPDATE scheduled_messages SET addresses = ?, title = ?, body = ?, kind = ?, fire_at = ?
		WHERE id = ?`, sm.Addresses, sm.Title, sm.Body, sm.Kind, sm.FireAt, sm.ID)
	if err != nil {
		return err
	}
	s.mirrorScheduled(OpUpdate, sm)
	return nil
}

// ListScheduled returns the full scheduled queue, soonest first.
func (s *Store) ListScheduled() ([]ScheduledMessage, error) {
	rows, err := s.Query(`SELECT ` + scheduledCols + ` FROM scheduled_messages ORDER BY fire_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ScheduledMessage
	for rows.Next() {
		var sm ScheduledMessage
		if err := rows.Scan(&sm.ID, &sm.Addresses, &sm.Title, &sm.Body, &sm.Kind, &sm.FireAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// DueScheduled returns every scheduled message whose fire time falls at
// or before the given cutoff.
func (s *Store) DueScheduled(cutoff int64) ([]ScheduledMessage, error) {
	rows, err := s.Query(`
		SELECT `+scheduledCols+` FROM scheduled_messages
		WHERE fire_at <= ? ORDER BY fire_at ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ScheduledMessage
	for rows.Next() {
		var sm ScheduledMessage
		if err := rows.Scan(&sm.ID, &sm.Addresses, &sm.Title, &sm.Body, &sm.Kind, &sm.FireAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// NextScheduledTime returns the earliest pending fire time, or zero when
// the queue is empty.
func (s *Store) NextScheduledTime() (int64, error) {
	row, err := s.QueryRow(`SELECT COALESCE(MIN(fire_at), 0) FROM scheduled_messages`)
	if err != nil {
		return 0, err
	}
	var at int64
	if err := row.Scan(&at); err != nil {
		return 0, err
	}
	return at, nil
}

// DeleteScheduled removes a pending scheduled message (user cancel).
func (s *Store) DeleteScheduled(id int64) error {
	var sm ScheduledMessage
	row, err := s.QueryRow(`SELECT `+scheduledCols+` FROM scheduled_messages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := row.Scan(&sm.ID, &sm.Addresses, &sm.Title, &sm.Body, &sm.Kind, &sm.FireAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already gone
		}
		return err
	}
	if _, err := s.Exec(`DELETE FROM scheduled_messages WHERE id = ?`, id); err != nil {
		return err
	}
	s.mirrorScheduled(OpDelete, &sm)
	return nil
}

// FireScheduled converts a due scheduled message into a sent message of
// the given conversation, deleting the scheduled row in the same
// transaction so an interruption leaves either both effects or neither.
func (s *Store) FireScheduled(sm *ScheduledMessage, conversationID int64, now int64) (*Message, error) {
	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM scheduled_messages WHERE id = ?`, sm.ID)
	if err != nil {
		return nil, fmt.Errorf("consume scheduled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already fired by a previous, interrupted run.
		return nil, nil
	}

	m := &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Kind:           sm.Kind,
		Body:           sm.Body,
		Timestamp:      now,
		Status:         StatusSent,
		Read:           true,
		Seen:           true,
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (`+messageCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
		m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color); err != nil {
		return nil, fmt.Errorf("insert fired message: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE conversations SET
			snippet = CASE WHEN ? >= timestamp THEN ? ELSE snippet END,
			timestamp = MAX(timestamp, ?)
		WHERE id = ?`, now, snippetFor(m), now, conversationID); err != nil {
		return nil, fmt.Errorf("roll conversation forward: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.mirrorScheduled(OpDelete, sm)
	s.mirrorMessage(OpAdd, m)
	return m, nil
}
