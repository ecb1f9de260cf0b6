package remote

// Wire records for the sync service. String fields marked sensitive are
// transferred encrypted; the service never sees plaintext content.

// ConversationRecord mirrors one conversation row.
type ConversationRecord struct {
	ID          int64  `json:"id"`
	Addresses   string `json:"addresses"` // encrypted
	Title       string `json:"title"`     // encrypted
	Snippet     string `json:"snippet"`   // encrypted
	Timestamp   int64  `json:"timestamp"`
	Read        bool   `json:"read"`
	Pinned      bool   `json:"pinned"`
	Archived    bool   `json:"archived"`
	Muted       bool   `json:"muted"`
	ColorMain   int    `json:"color_main"`
	ColorDark   int    `json:"color_dark"`
	ColorLight  int    `json:"color_light"`
	ColorAccent int    `json:"color_accent"`
	LineID      string `json:"line_id"`
}

// MessageRecord mirrors one message row.
type MessageRecord struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Kind           string `json:"kind"`
	Body           string `json:"body"` // encrypted
	Timestamp      int64  `json:"timestamp"`
	Status         string `json:"status"`
	Read           bool   `json:"read"`
	Seen           bool   `json:"seen"`
	SenderLabel    string `json:"sender_label"` // encrypted
	LineID         string `json:"line_id"`
	Color          int    `json:"color"`
}

// DraftRecord mirrors one draft row.
type DraftRecord struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Kind           string `json:"kind"`
	Body           string `json:"body"` // encrypted
}

// ScheduledRecord mirrors one scheduled message row.
type ScheduledRecord struct {
	ID        int64  `json:"id"`
	Addresses string `json:"addresses"` // encrypted
	Title     string `json:"title"`     // encrypted
	Body      string `json:"body"`      // encrypted
	Kind      string `json:"kind"`
	FireAt    int64  `json:"fire_at"`
}

// ContactRecord mirrors one contact row.
type ContactRecord struct {
	ID          int64  `json:"id"`
	Address     string `json:"address"` // encrypted
	Name        string `json:"name"`    // encrypted
	ColorMain   int    `json:"color_main"`
	ColorDark   int    `json:"color_dark"`
	ColorLight  int    `json:"color_light"`
	ColorAccent int    `json:"color_accent"`
}
