package telephony

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// nativeFixture writes a minimal Android-style provider database.
func nativeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmssms.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	stmts := []string{
		`CREATE TABLE canonical_addresses (_id INTEGER PRIMARY KEY, address TEXT)`,
		`CREATE TABLE threads (_id INTEGER PRIMARY KEY, recipient_ids TEXT, date INTEGER, read INTEGER, snippet TEXT)`,
		`CREATE TABLE sms (_id INTEGER PRIMARY KEY, thread_id INTEGER, address TEXT, body TEXT, type INTEGER, read INTEGER, date INTEGER)`,
		`INSERT INTO canonical_addresses VALUES (1, '555-123-4567'), (2, '+15559876543')`,
		`INSERT INTO threads VALUES (10, '1', 3000, 1, 'latest'), (11, '1 2', 2000, 0, 'group')`,
		`INSERT INTO sms VALUES
			(100, 10, '555-123-4567', 'first', 1, 1, 1000),
			(101, 10, '555-123-4567', 'reply', 2, 1, 2000),
			(102, 10, '555-123-4567', 'latest', 1, 0, 3000),
			(103, 11, '+15559876543', 'group msg', 1, 0, 2000)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}
	return path
}

func TestConversations(t *testing.T) {
	p, err := OpenSQLite(nativeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Close() }()

	convs, err := p.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].NativeID != 10 {
		t.Errorf("expected newest thread first, got %d", convs[0].NativeID)
	}
	if len(convs[1].Addresses) != 2 {
		t.Errorf("group thread addresses = %v, want 2 participants", convs[1].Addresses)
	}
}

func TestMessagesAfterAndLimit(t *testing.T) {
	p, err := OpenSQLite(nativeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Close() }()
	ctx := context.Background()

	msgs, err := p.Messages(ctx, 10, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if !msgs[0].Incoming || msgs[1].Incoming {
		t.Error("type column not mapped to direction")
	}

	msgs, err = p.Messages(ctx, 10, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("after=1000: got %d messages, want 2", len(msgs))
	}

	// A capped read keeps the newest rows so a bounded import still
	// ends at the thread's most recent message.
	msgs, err = p.Messages(ctx, 10, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "latest" {
		t.Errorf("limit=1 should keep the newest message, got %+v", msgs)
	}

	msgs, err = p.Messages(ctx, 10, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "reply" || msgs[1].Body != "latest" {
		t.Errorf("limit=2 should keep the newest two ascending, got %+v", msgs)
	}
}

func TestConversationsSince(t *testing.T) {
	p, err := OpenSQLite(nativeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Close() }()

	convs, err := p.ConversationsSince(context.Background(), 2500)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].NativeID != 10 {
		t.Errorf("since=2500: got %+v, want only thread 10", convs)
	}
}
