// Package importer runs the one-time setup import that seeds the store
// from the device's native telephony provider.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mvalim/textsync/internal/ident"
	"github.com/mvalim/textsync/internal/store"
	"github.com/mvalim/textsync/internal/telephony"
)

// ErrSetupFailed marks an import that failed even after the retry; the
// daemon surfaces it as a setup error instead of limping along with a
// half-seeded store.
var ErrSetupFailed = errors.New("importer: initial import failed")

// DefaultMessageCap bounds how much history one conversation pulls in.
const DefaultMessageCap = 5000

// Importer snapshots the native provider into the store, one
// conversation per transaction.
type Importer struct {
	store    *store.Store
	provider telephony.Provider
	logger   *zap.Logger

	// MessageCap limits imported messages per conversation, newest kept.
	MessageCap int
}

// New creates an importer with the default per-conversation cap.
func New(st *store.Store, provider telephony.Provider, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		store:      st,
		provider:   provider,
		logger:     logger,
		MessageCap: DefaultMessageCap,
	}
}

// Done reports whether a previous import completed.
func (i *Importer) Done() (bool, error) {
	v, err := i.store.SyncValue(store.KeyImportDone)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// Run performs the initial import. A failed pass is retried once from
// the top; because each conversation commits atomically and already
// imported threads are skipped, the retry picks up where the first pass
// stopped. A second failure is returned wrapped in ErrSetupFailed.
func (i *Importer) Run(ctx context.Context) error {
	start := time.Now()
	if err := i.pass(ctx); err != nil {
		i.logger.Warn("import pass failed, retrying once", zap.Error(err))
		if err := i.pass(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrSetupFailed, err)
		}
	}
	if err := i.store.SetSyncValue(store.KeyImportDone, "1"); err != nil {
		return fmt.Errorf("%w: record completion: %v", ErrSetupFailed, err)
	}
	i.logger.Info("initial import complete", zap.Duration("took", time.Since(start)))
	return nil
}

func (i *Importer) pass(ctx context.Context) error {
	convs, err := i.provider.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list native conversations: %w", err)
	}

	imported, pruned, skipped := 0, 0, 0
	for _, nc := range convs {
		if err := ctx.Err(); err != nil {
			return err
		}

		addresses := ident.Join(nc.Addresses)
		if addresses == "" {
			pruned++
			continue
		}
		existing, err := i.store.FindConversation(addresses)
		if err != nil {
			return fmt.Errorf("resolve thread %d: %w", nc.NativeID, err)
		}
		if existing != nil {
			skipped++
			continue
		}

		native, err := i.provider.Messages(ctx, nc.NativeID, 0, i.MessageCap)
		if err != nil {
			return fmt.Errorf("read thread %d: %w", nc.NativeID, err)
		}
		if len(native) == 0 {
			pruned++
			continue
		}

		c, msgs := convertThread(nc, native)
		if err := i.store.ImportBatch(c, msgs); err != nil {
			return fmt.Errorf("import thread %d: %w", nc.NativeID, err)
		}
		imported++
	}

	i.logger.Info("import pass done",
		zap.Int("imported", imported),
		zap.Int("pruned_empty", pruned),
		zap.Int("already_present", skipped))
	return nil
}

// convertThread maps one native thread and its history to store rows.
func convertThread(nc telephony.Conversation, native []telephony.Message) (*store.Conversation, []*store.Message) {
	addresses := ident.Join(nc.Addresses)
	group := len(nc.Addresses) > 1

	msgs := make([]*store.Message, 0, len(native))
	var latest int64
	snippet := ""
	for _, nm := range native {
		m := &store.Message{
			Kind:      store.KindText,
			Body:      nm.Body,
			Timestamp: nm.Timestamp,
			Read:      nm.Read,
			Seen:      nm.Read,
			Status:    store.StatusSent,
		}
		if nm.Incoming {
			m.Status = store.StatusReceived
			if group {
				m.SenderLabel = nm.Address
			}
		}
		msgs = append(msgs, m)
		if nm.Timestamp >= latest {
			latest = nm.Timestamp
			snippet = nm.Body
		}
	}

	c := &store.Conversation{
		Addresses:  addresses,
		MatcherKey: ident.Key(addresses),
		Snippet:    truncate(snippet, 100),
		Timestamp:  latest,
		Read:       nc.Read,
	}
	return c, msgs
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
