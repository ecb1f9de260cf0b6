package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a locally composed message waiting for the outgoing
// transport. The optimistic message row referenced by MessageID shows in
// the conversation immediately with status sending.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID int64
	MessageID      int64
	Addresses      string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
}

// QueueOutgoing stores a composed text for sending: the optimistic
// sending-status message, the draft cleanup and the outbox entry land
// in one transaction, so a crash mid-queue never leaves a sending
// message without the outbox row that drains it.
func (s *Store) QueueOutgoing(conversationID int64, body string) (*OutboxEntry, error) {
	c, err := s.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("queue outgoing: conversation %d not found", conversationID)
	}
	drafts, err := s.Drafts(conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	m := &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Kind:           KindText,
		Body:           body,
		Timestamp:      now,
		Status:         StatusSending,
		Read:           true,
		Seen:           true,
	}
	e := &OutboxEntry{
		ClientMsgID:    uuid.NewString(),
		ConversationID: conversationID,
		MessageID:      m.ID,
		Addresses:      c.Addresses,
		Body:           body,
		Status:         "queued",
	}

	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	insert := func() error {
		_, err := tx.Exec(`
			INSERT INTO messages (`+messageCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.Kind, m.Body, m.Timestamp, m.Status,
			m.Read, m.Seen, m.SenderLabel, m.LineID, m.Color)
		return err
	}
	if err := insert(); err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("insert outgoing message: %w", err)
		}
		m.ID = NewID()
		e.MessageID = m.ID
		if err := insert(); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrIDCollision
			}
			return nil, fmt.Errorf("insert outgoing message: %w", err)
		}
	}
	if _, err := tx.Exec(`
		UPDATE conversations SET
			snippet = CASE WHEN ? >= timestamp THEN ? ELSE snippet END,
			timestamp = MAX(timestamp, ?)
		WHERE id = ?`, now, snippetFor(m), now, conversationID); err != nil {
		return nil, fmt.Errorf("roll conversation forward: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM drafts WHERE conversation_id = ?`, conversationID); err != nil {
		return nil, fmt.Errorf("clear drafts: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO outbox (client_msg_id, conversation_id, message_id, addresses, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.ClientMsgID, e.ConversationID, e.MessageID, e.Addresses, e.Body, now, now); err != nil {
		return nil, fmt.Errorf("queue outbox: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.mirrorMessage(OpAdd, m)
	for i := range drafts {
		s.mirrorDraft(OpDelete, &drafts[i])
	}
	return e, nil
}

// MarkOutboxSending moves an entry to 'sending'.
func (s *Store) MarkOutboxSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxSent moves an entry to 'sent'.
func (s *Store) MarkOutboxSent(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`UPDATE outbox SET status = 'sent', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxFailed moves an entry to 'failed' with the transport error.
func (s *Store) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// PendingOutbox returns entries still waiting for the transport.
func (s *Store) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := s.Query(`
		SELECT id, client_msg_id, conversation_id, message_id, addresses, body, status, error_message
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ConversationID, &e.MessageID,
			&e.Addresses, &e.Body, &e.Status, &e.ErrorMessage); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
