package store

// ContentKind classifies a message or draft payload.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
	KindAudio ContentKind = "audio"
	KindVCard ContentKind = "vcard"
)

// Status is the delivery state of a message. Received and Info are
// terminal on creation; Sending may move to Sent or Failed, and Sent may
// move to Delivered when the transport reports it.
type Status string

const (
	StatusReceived  Status = "received"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusInfo      Status = "info"
)

// ColorScheme holds the four related colors of a conversation.
type ColorScheme struct {
	Main   int
	Dark   int
	Light  int
	Accent int
}

// Conversation is one logical thread, deduplicated by matcher key.
type Conversation struct {
	ID         int64
	Addresses  string // comma-separated, order-stable
	MatcherKey string
	Title      string
	Snippet    string
	Timestamp  int64
	Read       bool
	Pinned     bool
	Archived   bool
	Muted      bool
	Colors     ColorScheme
	LineID     string // per-conversation outgoing SIM/line override
}

// Message is one unit of conversation content.
type Message struct {
	ID             int64
	ConversationID int64
	Kind           ContentKind
	Body           string // text, or a reference for media kinds
	Timestamp      int64
	Status         Status
	Read           bool
	Seen           bool
	SenderLabel    string // display name of the sender in group threads
	LineID         string
	Color          int
}

// Draft is unsent content for a conversation, one row per content kind.
type Draft struct {
	ID             int64
	ConversationID int64
	Kind           ContentKind
	Body           string
}

// ScheduledMessage is content waiting for a future fire time.
type ScheduledMessage struct {
	ID        int64
	Addresses string
	Title     string
	Body      string
	Kind      ContentKind
	FireAt    int64
}

// Contact is an address-book entry mirrored for display names.
type Contact struct {
	ID      int64
	Address string
	Name    string
	Colors  ColorScheme
}

// BlacklistEntry blocks ingestion from a number.
type BlacklistEntry struct {
	ID         int64
	Address    string
	MatcherKey string
}
