// Package telephony reads the device's native SMS/MMS provider. The
// engine only consumes it through the Provider interface; the concrete
// reader works off an exported provider database snapshot.
package telephony

import "context"

// Conversation is one native thread, identified by the OS-assigned id.
type Conversation struct {
	NativeID  int64
	Addresses []string
	Timestamp int64
	Read      bool
	Snippet   string
}

// Message is one native message row.
type Message struct {
	NativeID  int64
	ThreadID  int64
	Address   string
	Body      string
	Incoming  bool
	Read      bool
	Timestamp int64
}

// Provider is the contract the import and reconciliation paths rely on.
type Provider interface {
	// Conversations enumerates every native thread.
	Conversations(ctx context.Context) ([]Conversation, error)
	// Messages returns a thread's history, timestamp-ascending,
	// skipping rows at or before after. A positive limit keeps the
	// newest limit rows (0 = no cap).
	Messages(ctx context.Context, threadID int64, after int64, limit int) ([]Message, error)
	// ConversationsSince returns threads holding messages newer than the
	// given timestamp.
	ConversationsSince(ctx context.Context, since int64) ([]Conversation, error)
}
