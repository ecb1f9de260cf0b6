package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/mvalim/textsync/internal/crypto"
	"github.com/mvalim/textsync/internal/remote"
	"github.com/mvalim/textsync/internal/store"
	"go.uber.org/zap"
)

// mirrorTimeout bounds how long a single-change mirror call may hang
// behind a local write's coattails.
const mirrorTimeout = 15 * time.Second

// Hook implements store.Mirror: after each committed user-visible write
// it pushes the single changed record to the remote service. Calls are
// asynchronous and best-effort; a failure is logged and left for the
// next background pass, never surfaced to the local write. The hook is
// inert when the device is a secondary (the primary owns the upload
// stream) or no account is linked.
type Hook struct {
	client  *remote.Client
	cipher  *crypto.Cipher
	logger  *zap.Logger
	enabled bool

	wg sync.WaitGroup
}

// NewHook builds the mirror hook. Passing enabled=false (secondary
// device, or no linked account) turns every call into a no-op.
func NewHook(client *remote.Client, cipher *crypto.Cipher, logger *zap.Logger, enabled bool) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{client: client, cipher: cipher, logger: logger, enabled: enabled}
}

// Flush blocks until every in-flight mirror call has finished. Used on
// shutdown and in tests.
func (h *Hook) Flush() {
	h.wg.Wait()
}

func (h *Hook) run(what string, id int64, call func(ctx context.Context) error) {
	if !h.enabled {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			h.logger.Warn("mirror call failed, deferring to next sync pass",
				zap.String("entity", what), zap.Int64("id", id), zap.Error(err))
		}
	}()
}

// MirrorConversation pushes one conversation change.
func (h *Hook) MirrorConversation(op store.Op, c *store.Conversation) {
	h.run("conversation", c.ID, func(ctx context.Context) error {
		if op == store.OpDelete {
			return h.client.DeleteConversation(ctx, c.ID)
		}
		record, err := encodeConversation(h.cipher, c)
		if err != nil {
			return err
		}
		if op == store.OpUpdate {
			return h.client.UpdateConversation(ctx, record)
		}
		return h.client.AddConversations(ctx, []remote.ConversationRecord{record})
	})
}

// MirrorMessage pushes one message change.
func (h *Hook) MirrorMessage(op store.Op, m *store.Message) {
	h.run("message", m.ID, func(ctx context.Context) error {
		if op == store.OpDelete {
			return h.client.DeleteMessage(ctx, m.ID)
		}
		record, err := encodeMessage(h.cipher, m)
		if err != nil {
			return err
		}
		if op == store.OpUpdate {
			return h.client.UpdateMessage(ctx, record)
		}
		return h.client.AddMessages(ctx, []remote.MessageRecord{record})
	})
}

// MirrorDraft pushes one draft change.
func (h *Hook) MirrorDraft(op store.Op, d *store.Draft) {
	h.run("draft", d.ID, func(ctx context.Context) error {
		if op == store.OpDelete {
			return h.client.DeleteDraft(ctx, d.ID)
		}
		record, err := encodeDraft(h.cipher, d)
		if err != nil {
			return err
		}
		// Drafts are replaced wholesale; add covers update as well.
		return h.client.AddDrafts(ctx, []remote.DraftRecord{record})
	})
}

// MirrorScheduled pushes one scheduled message change.
func (h *Hook) MirrorScheduled(op store.Op, sm *store.ScheduledMessage) {
	h.run("scheduled", sm.ID, func(ctx context.Context) error {
		if op == store.OpDelete {
			return h.client.DeleteScheduled(ctx, sm.ID)
		}
		record, err := encodeScheduled(h.cipher, sm)
		if err != nil {
			return err
		}
		if op == store.OpUpdate {
			return h.client.UpdateScheduled(ctx, record)
		}
		return h.client.AddScheduled(ctx, []remote.ScheduledRecord{record})
	})
}
