package telephony

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteProvider reads an Android-style telephony database (threads,
// canonical_addresses, sms tables). The file is opened read-only; the
// engine never writes back to the native store.
type SQLiteProvider struct {
	db *sql.DB
}

// OpenSQLite opens a native provider snapshot.
func OpenSQLite(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open native db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping native db: %w", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// Close releases the native snapshot.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

// addressTable loads canonical_addresses into memory; recipient_ids on
// the threads table is a space-separated id list that SQL can't join.
func (p *SQLiteProvider) addressTable(ctx context.Context) (map[int64]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT _id, address FROM canonical_addresses`)
	if err != nil {
		return nil, fmt.Errorf("canonical addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := make(map[int64]string)
	for rows.Next() {
		var id int64
		var addr string
		if err := rows.Scan(&id, &addr); err != nil {
			return nil, err
		}
		table[id] = addr
	}
	return table, rows.Err()
}

func resolveRecipients(recipientIDs string, table map[int64]string) []string {
	var out []string
	for _, f := range strings.Fields(recipientIDs) {
		var id int64
		if _, err := fmt.Sscanf(f, "%d", &id); err != nil {
			continue
		}
		if addr, ok := table[id]; ok && addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Conversations enumerates every native thread in provider order.
func (p *SQLiteProvider) Conversations(ctx context.Context) ([]Conversation, error) {
	table, err := p.addressTable(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT _id, recipient_ids, date, read, COALESCE(snippet, '')
		FROM threads ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var recipientIDs string
		if err := rows.Scan(&c.NativeID, &recipientIDs, &c.Timestamp, &c.Read, &c.Snippet); err != nil {
			return nil, err
		}
		c.Addresses = resolveRecipients(recipientIDs, table)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Messages returns a thread's history after the given timestamp,
// ascending. A positive limit keeps the NEWEST limit rows, so a capped
// read still ends at the thread's most recent message.
func (p *SQLiteProvider) Messages(ctx context.Context, threadID int64, after int64, limit int) ([]Message, error) {
	query := `
		SELECT _id, thread_id, COALESCE(address, ''), COALESCE(body, ''), type, read, date
		FROM sms WHERE thread_id = ? AND date > ?
		ORDER BY date ASC`
	args := []any{threadID, after}
	if limit > 0 {
		query = `
		SELECT _id, thread_id, address, body, type, read, date FROM (
			SELECT _id, thread_id, COALESCE(address, '') AS address, COALESCE(body, '') AS body, type, read, date
			FROM sms WHERE thread_id = ? AND date > ?
			ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var typ int
		if err := rows.Scan(&m.NativeID, &m.ThreadID, &m.Address, &m.Body, &typ, &m.Read, &m.Timestamp); err != nil {
			return nil, err
		}
		// Native type 1 is inbox; everything else was sent locally.
		m.Incoming = typ == 1
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ConversationsSince returns threads with messages newer than since.
func (p *SQLiteProvider) ConversationsSince(ctx context.Context, since int64) ([]Conversation, error) {
	table, err := p.addressTable(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT t._id, t.recipient_ids, t.date, t.read, COALESCE(t.snippet, '')
		FROM threads t
		WHERE EXISTS (SELECT 1 FROM sms m WHERE m.thread_id = t._id AND m.date > ?)
		ORDER BY t.date DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query new threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var recipientIDs string
		if err := rows.Scan(&c.NativeID, &recipientIDs, &c.Timestamp, &c.Read, &c.Snippet); err != nil {
			return nil, err
		}
		c.Addresses = resolveRecipients(recipientIDs, table)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
