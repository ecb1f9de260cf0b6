package store

import (
	"database/sql"
	"fmt"
)

const messageCols = `id, conversation_id, kind, body, timestamp, status, read, seen, sender_label, line_id, color`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Kind, &m.Body, &m.Timestamp, &m.Status,
		&m.Read, &m.Seen, &m.SenderLabel, &m.LineID, &m.Color)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// snippetLen bounds the conversation preview text.
const snippetLen = 100

func snippetFor(m *Message) string {
	if m.Kind != KindText {
		return ""
	}
	if len(m.Body) <= snippetLen {
		return m.Body
	}
	return m.Body[:snippetLen]
}

// InsertMessage writes a message and rolls the owning conversation's
// timestamp, snippet and read state forward. A zero id is minted and
// re-minted once on collision; a caller-supplied duplicate id is a
// no-op. Out-of-order arrivals never move the conversation backwards.
func (s *Store) InsertMessage(m *Message) error {
	minted := m.ID == 0
	if minted {
		m.ID = NewID()
	}
	insert := func() error {
		_, err := s.Exec(`
			INSERT INTO messages (`+messageCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
			m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color)
		return err
	}
	err := insert()
	if err != nil && isUniqueViolation(err) {
		if !minted {
			return nil
		}
		m.ID = NewID()
		if err = insert(); err != nil {
			if isUniqueViolation(err) {
				return ErrIDCollision
			}
			return fmt.Errorf("insert message: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	markUnread := m.Status == StatusReceived && !m.Read
	// SET expressions see pre-update row values, so the snippet guard
	// compares against the conversation's previous timestamp.
	if _, err := s.Exec(`
		UPDATE conversations SET
			snippet = CASE WHEN ? >= timestamp THEN ? ELSE snippet END,
			timestamp = MAX(timestamp, ?),
			read = CASE WHEN ? THEN 0 ELSE read END
		WHERE id = ?`,
		m.Timestamp, snippetFor(m), m.Timestamp, markUnread, m.ConversationID); err != nil {
		return fmt.Errorf("roll conversation forward: %w", err)
	}

	s.mirrorMessage(OpAdd, m)
	return nil
}

// InsertMessages bulk-inserts rows in one transaction without touching
// conversation state or the mirror; bulk callers manage both themselves.
func (s *Store) InsertMessages(msgs []*Message) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if m.ID == 0 {
			m.ID = NewID()
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO messages (`+messageCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
			m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color); err != nil {
			return fmt.Errorf("insert message %d: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns a conversation's messages in timestamp order.
func (s *Store) ListMessages(conversationID int64) ([]Message, error) {
	rows, err := s.Query(`
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a message by id, or nil.
func (s *Store) GetMessage(id int64) (*Message, error) {
	row, err := s.QueryRow(`SELECT `+messageCols+` FROM messages WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// LatestMessageTimestamp returns the newest message timestamp in the
// store, or zero when the store is empty.
func (s *Store) LatestMessageTimestamp() (int64, error) {
	row, err := s.QueryRow(`SELECT COALESCE(MAX(timestamp), 0) FROM messages`)
	if err != nil {
		return 0, err
	}
	var ts int64
	if err := row.Scan(&ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// UpdateMessageStatus applies a status transition. Permitted moves are
// sending -> sent/failed and sent -> delivered. Writing any status over
// a received message is a no-op: a received message is never
// reclassified by a later write. Everything else is an error.
func (s *Store) UpdateMessageStatus(id int64, to Status) error {
	m, err := s.GetMessage(id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("update status: message %d not found", id)
	}
	switch {
	case m.Status == StatusReceived:
		return nil
	case m.Status == to:
		return nil
	case m.Status == StatusSending && (to == StatusSent || to == StatusFailed):
	case m.Status == StatusSent && to == StatusDelivered:
	default:
		return fmt.Errorf("update status: %s -> %s not permitted", m.Status, to)
	}
	if _, err := s.Exec(`UPDATE messages SET status = ? WHERE id = ?`, to, id); err != nil {
		return err
	}
	m.Status = to
	s.mirrorMessage(OpUpdate, m)
	return nil
}

// MarkMessageSeen flags a message as seen in the notification shade.
func (s *Store) MarkMessageSeen(id int64) error {
	_, err := s.Exec(`UPDATE messages SET seen = 1 WHERE id = ?`, id)
	return err
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(id int64) error {
	m, err := s.GetMessage(id)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if _, err := s.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
		return err
	}
	s.mirrorMessage(OpDelete, m)
	return nil
}

// AllMessages returns every message row, for bulk upload.
func (s *Store) AllMessages() ([]Message, error) {
	rows, err := s.Query(`SELECT ` + messageCols + ` FROM messages ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
