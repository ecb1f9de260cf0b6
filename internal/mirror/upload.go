package mirror

import (
	"context"
	"fmt"

	"github.com/mvalim/textsync/internal/crypto"
	"github.com/mvalim/textsync/internal/remote"
	"github.com/mvalim/textsync/internal/store"
	"go.uber.org/zap"
)

// PageSize bounds one remote add call; the service rejects oversized
// payloads.
const PageSize = 200

// Uploader pushes the full local state (or an incremental slice of it)
// to the remote service.
type Uploader struct {
	store  *store.Store
	client *remote.Client
	cipher *crypto.Cipher
	logger *zap.Logger
}

// NewUploader builds an uploader.
func NewUploader(st *store.Store, client *remote.Client, cipher *crypto.Cipher, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: st, client: client, cipher: cipher, logger: logger}
}

// uploadPaged sends records in fixed-size pages. Every page is
// attempted even after a failure; a partial upload is reported but not
// retried here — the next incremental pass fills remote gaps.
func uploadPaged[T any](ctx context.Context, records []T, send func(context.Context, []T) error) (failed int) {
	for start := 0; start < len(records); start += PageSize {
		end := min(start+PageSize, len(records))
		if err := send(ctx, records[start:end]); err != nil {
			failed++
		}
	}
	return failed
}

// UploadAll reads every row of every synced table, encrypts the
// sensitive fields, and pushes the records in pages. Success is
// reported only when every page was acknowledged.
func (u *Uploader) UploadAll(ctx context.Context) error {
	convs, err := u.store.ListConversations(true)
	if err != nil {
		return fmt.Errorf("read conversations: %w", err)
	}
	msgs, err := u.store.AllMessages()
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}
	drafts, err := u.store.AllDrafts()
	if err != nil {
		return fmt.Errorf("read drafts: %w", err)
	}
	scheduled, err := u.store.ListScheduled()
	if err != nil {
		return fmt.Errorf("read scheduled: %w", err)
	}
	contacts, err := u.store.ListContacts()
	if err != nil {
		return fmt.Errorf("read contacts: %w", err)
	}

	convRecords := make([]remote.ConversationRecord, 0, len(convs))
	for i := range convs {
		r, err := encodeConversation(u.cipher, &convs[i])
		if err != nil {
			return fmt.Errorf("encrypt conversation %d: %w", convs[i].ID, err)
		}
		convRecords = append(convRecords, r)
	}
	msgRecords := make([]remote.MessageRecord, 0, len(msgs))
	for i := range msgs {
		r, err := encodeMessage(u.cipher, &msgs[i])
		if err != nil {
			return fmt.Errorf("encrypt message %d: %w", msgs[i].ID, err)
		}
		msgRecords = append(msgRecords, r)
	}
	draftRecords := make([]remote.DraftRecord, 0, len(drafts))
	for i := range drafts {
		r, err := encodeDraft(u.cipher, &drafts[i])
		if err != nil {
			return fmt.Errorf("encrypt draft %d: %w", drafts[i].ID, err)
		}
		draftRecords = append(draftRecords, r)
	}
	scheduledRecords := make([]remote.ScheduledRecord, 0, len(scheduled))
	for i := range scheduled {
		r, err := encodeScheduled(u.cipher, &scheduled[i])
		if err != nil {
			return fmt.Errorf("encrypt scheduled %d: %w", scheduled[i].ID, err)
		}
		scheduledRecords = append(scheduledRecords, r)
	}
	contactRecords := make([]remote.ContactRecord, 0, len(contacts))
	for i := range contacts {
		r, err := encodeContact(u.cipher, &contacts[i])
		if err != nil {
			return fmt.Errorf("encrypt contact %d: %w", contacts[i].ID, err)
		}
		contactRecords = append(contactRecords, r)
	}

	failed := 0
	failed += uploadPaged(ctx, convRecords, u.client.AddConversations)
	failed += uploadPaged(ctx, msgRecords, u.client.AddMessages)
	failed += uploadPaged(ctx, draftRecords, u.client.AddDrafts)
	failed += uploadPaged(ctx, scheduledRecords, u.client.AddScheduled)
	failed += uploadPaged(ctx, contactRecords, u.client.AddContacts)
	if failed > 0 {
		u.logger.Warn("bulk upload incomplete, next sync pass will fill the gaps",
			zap.Int("failed_pages", failed))
		return fmt.Errorf("bulk upload: %d pages failed", failed)
	}
	u.logger.Info("bulk upload complete",
		zap.Int("conversations", len(convRecords)),
		zap.Int("messages", len(msgRecords)))
	return nil
}

// UploadMessages pushes only the given messages, paged. Used by the
// reconciliation job to mirror a delta without resending history.
func (u *Uploader) UploadMessages(ctx context.Context, msgs []*store.Message) error {
	records := make([]remote.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		r, err := encodeMessage(u.cipher, m)
		if err != nil {
			return fmt.Errorf("encrypt message %d: %w", m.ID, err)
		}
		records = append(records, r)
	}
	if failed := uploadPaged(ctx, records, u.client.AddMessages); failed > 0 {
		return fmt.Errorf("incremental upload: %d pages failed", failed)
	}
	return nil
}
