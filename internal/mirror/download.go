package mirror

import (
	"context"
	"fmt"

	"github.com/mvalim/textsync/internal/crypto"
	"github.com/mvalim/textsync/internal/remote"
	"github.com/mvalim/textsync/internal/store"
	"go.uber.org/zap"
)

// Downloader replaces the local store with the account's remote
// snapshot. Used for multi-device bootstrap and account recovery.
type Downloader struct {
	store  *store.Store
	client *remote.Client
	cipher *crypto.Cipher
	logger *zap.Logger
}

// NewDownloader builds a downloader.
func NewDownloader(st *store.Store, client *remote.Client, cipher *crypto.Cipher, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{store: st, client: client, cipher: cipher, logger: logger}
}

// Download fetches the full remote state, decrypts it, and swaps it
// into the local store in one transaction. Any failure — network,
// decryption, or constraint — leaves the store in its pre-download
// state, and the whole operation is retryable from scratch.
func (d *Downloader) Download(ctx context.Context) error {
	convRecords, err := d.client.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("fetch conversations: %w", err)
	}
	msgRecords, err := d.client.ListMessages(ctx)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	draftRecords, err := d.client.ListDrafts(ctx)
	if err != nil {
		return fmt.Errorf("fetch drafts: %w", err)
	}
	scheduledRecords, err := d.client.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("fetch scheduled: %w", err)
	}
	contactRecords, err := d.client.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("fetch contacts: %w", err)
	}

	snap := &store.Snapshot{}
	for _, r := range convRecords {
		c, err := decodeConversation(d.cipher, r)
		if err != nil {
			return fmt.Errorf("decrypt conversation %d: %w", r.ID, err)
		}
		snap.Conversations = append(snap.Conversations, c)
	}
	for _, r := range msgRecords {
		m, err := decodeMessage(d.cipher, r)
		if err != nil {
			return fmt.Errorf("decrypt message %d: %w", r.ID, err)
		}
		snap.Messages = append(snap.Messages, m)
	}
	for _, r := range draftRecords {
		dr, err := decodeDraft(d.cipher, r)
		if err != nil {
			return fmt.Errorf("decrypt draft %d: %w", r.ID, err)
		}
		snap.Drafts = append(snap.Drafts, dr)
	}
	for _, r := range scheduledRecords {
		sm, err := decodeScheduled(d.cipher, r)
		if err != nil {
			return fmt.Errorf("decrypt scheduled %d: %w", r.ID, err)
		}
		snap.Scheduled = append(snap.Scheduled, sm)
	}
	for _, r := range contactRecords {
		c, err := decodeContact(d.cipher, r)
		if err != nil {
			return fmt.Errorf("decrypt contact %d: %w", r.ID, err)
		}
		snap.Contacts = append(snap.Contacts, c)
	}

	if err := d.store.ReplaceAll(snap); err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}
	d.logger.Info("bulk download applied",
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("messages", len(snap.Messages)))
	return nil
}
