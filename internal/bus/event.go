package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the engine. Subscribers filter by namespace
// prefix ("conversation.", "message.", ...).
const (
	KindConversationUpdated = "conversation.updated"
	KindMessageInserted     = "message.inserted"
	KindMessageSendAck      = "message.send_ack"
	KindMessageSendFailed   = "message.send_failed"
	KindScheduledChanged    = "scheduled.changed"
	KindSyncReconciled      = "sync.reconciled"
	KindSessionStatus       = "session.status_changed"
)

// ConversationUpdate carries enough summary data for the UI to patch
// its conversation list without a full reload.
type ConversationUpdate struct {
	ID      int64
	Snippet string
	Read    bool
}

// MessageInserted announces a new message in a conversation.
type MessageInserted struct {
	ConversationID int64
	MessageID      int64
	Snippet        string
	Read           bool
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Conversations int
	Messages      int
}
