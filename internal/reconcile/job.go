// Package reconcile keeps the store caught up with the native provider
// after the initial import: a periodic pass ingests strictly-newer
// native messages and advances a persisted watermark.
package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/ident"
	"github.com/mvalim/textsync/internal/mirror"
	"github.com/mvalim/textsync/internal/store"
	"github.com/mvalim/textsync/internal/telephony"
)

const (
	// DefaultInterval is how often the periodic pass runs.
	DefaultInterval = 30 * time.Second
	// DefaultSkewBuffer pads the local high-water timestamp so a message
	// the engine itself just wrote, re-stamped a few millis later by the
	// provider, is not ingested a second time.
	DefaultSkewBuffer = 5 * time.Second
)

const placeholderTitle = "Unknown sender"

// Job is the incremental reconciliation pass. Passes never overlap: a
// trigger while one is running is dropped.
type Job struct {
	store    *store.Store
	provider telephony.Provider
	bus      *bus.Bus
	uploader *mirror.Uploader // nil when no account is linked
	logger   *zap.Logger

	Interval   time.Duration
	SkewBuffer time.Duration

	running atomic.Bool
	trigger chan struct{}
	cancel  context.CancelFunc
}

// New creates a reconciliation job. uploader may be nil; the pass then
// stays local-only.
func New(st *store.Store, provider telephony.Provider, b *bus.Bus, uploader *mirror.Uploader, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		store:      st,
		provider:   provider,
		bus:        b,
		uploader:   uploader,
		logger:     logger,
		Interval:   DefaultInterval,
		SkewBuffer: DefaultSkewBuffer,
		trigger:    make(chan struct{}, 1),
	}
}

// Start launches the periodic loop.
func (j *Job) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	go j.loop(ctx)
}

// Stop cancels the loop.
func (j *Job) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Trigger requests an immediate pass. Non-blocking; coalesces with a
// pending trigger.
func (j *Job) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

func (j *Job) loop(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-j.trigger:
		case <-ctx.Done():
			return
		}
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("reconcile pass failed", zap.Error(err))
		}
	}
}

// RunOnce performs one reconciliation pass. A pass already in flight
// makes this a no-op returning a zero result.
func (j *Job) RunOnce(ctx context.Context) (bus.ReconcileResult, error) {
	var res bus.ReconcileResult
	if !j.running.CompareAndSwap(false, true) {
		return res, nil
	}
	defer j.running.Store(false)

	watermark, err := j.store.Watermark()
	if err != nil {
		return res, fmt.Errorf("read watermark: %w", err)
	}
	latest, err := j.store.LatestMessageTimestamp()
	if err != nil {
		return res, fmt.Errorf("read local high water: %w", err)
	}
	if padded := latest + j.SkewBuffer.Milliseconds(); padded > watermark {
		watermark = padded
	}

	convs, err := j.provider.ConversationsSince(ctx, watermark)
	if err != nil {
		return res, fmt.Errorf("list changed threads: %w", err)
	}

	var uploaded []*store.Message
	for _, nc := range convs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inserted, err := j.ingestThread(ctx, nc, watermark)
		if err != nil {
			return res, fmt.Errorf("ingest thread %d: %w", nc.NativeID, err)
		}
		if len(inserted) > 0 {
			res.Conversations++
			res.Messages += len(inserted)
			uploaded = append(uploaded, inserted...)
		}
	}

	// Advance even when nothing changed so each pass scans a bounded
	// window instead of the whole history again.
	if err := j.store.SetWatermark(time.Now().UnixMilli()); err != nil {
		return res, fmt.Errorf("advance watermark: %w", err)
	}

	if res.Messages > 0 {
		if j.uploader != nil {
			if err := j.uploader.UploadMessages(ctx, uploaded); err != nil {
				j.logger.Warn("incremental upload failed, next pass retries", zap.Error(err))
			}
		}
		j.bus.PublishKind(bus.KindSyncReconciled, res)
		j.logger.Info("reconciled",
			zap.Int("conversations", res.Conversations),
			zap.Int("messages", res.Messages))
	}
	return res, nil
}

// ingestThread pulls one native thread's strictly-newer messages into
// the resolved conversation, one small transaction per message.
func (j *Job) ingestThread(ctx context.Context, nc telephony.Conversation, watermark int64) ([]*store.Message, error) {
	addresses := ident.Join(nc.Addresses)
	if addresses != "" {
		blocked, err := j.store.IsBlacklisted(addresses)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, nil
		}
	}

	native, err := j.provider.Messages(ctx, nc.NativeID, watermark, 0)
	if err != nil {
		return nil, err
	}
	if len(native) == 0 {
		return nil, nil
	}

	conv, err := j.resolve(addresses, nc)
	if err != nil {
		return nil, err
	}

	group := len(nc.Addresses) > 1
	var inserted []*store.Message
	for _, nm := range native {
		m := &store.Message{
			ConversationID: conv.ID,
			Kind:           store.KindText,
			Body:           nm.Body,
			Timestamp:      nm.Timestamp,
			Read:           nm.Read,
			Status:         store.StatusSent,
		}
		if nm.Incoming {
			m.Status = store.StatusReceived
			if group {
				m.SenderLabel = nm.Address
			}
		}
		if err := j.store.InsertMessage(m); err != nil {
			return inserted, err
		}
		inserted = append(inserted, m)
		j.bus.PublishKind(bus.KindMessageInserted, bus.MessageInserted{
			ConversationID: conv.ID,
			MessageID:      m.ID,
			Snippet:        truncate(m.Body, 100),
			Read:           m.Read,
		})
	}

	updated, err := j.store.GetConversation(conv.ID)
	if err != nil {
		return inserted, err
	}
	if updated != nil {
		j.bus.PublishKind(bus.KindConversationUpdated, bus.ConversationUpdate{
			ID:      updated.ID,
			Snippet: updated.Snippet,
			Read:    updated.Read,
		})
	}
	return inserted, nil
}

// resolve finds the conversation a native thread belongs to, creating
// one when the matcher finds nothing. Threads without any usable
// address land in a single shared placeholder conversation so their
// messages are not dropped.
func (j *Job) resolve(addresses string, nc telephony.Conversation) (*store.Conversation, error) {
	if addresses == "" {
		return j.placeholder()
	}
	conv, err := j.store.FindConversation(addresses)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}
	conv = &store.Conversation{
		Addresses:  addresses,
		MatcherKey: ident.Key(addresses),
		Read:       nc.Read,
	}
	if err := j.store.InsertConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (j *Job) placeholder() (*store.Conversation, error) {
	const key = "placeholder_conversation"
	if v, err := j.store.SyncValue(key); err != nil {
		return nil, err
	} else if v != "" {
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			if conv, err := j.store.GetConversation(id); err != nil {
				return nil, err
			} else if conv != nil {
				return conv, nil
			}
		}
	}
	conv := &store.Conversation{Title: placeholderTitle}
	if err := j.store.InsertConversation(conv); err != nil {
		return nil, err
	}
	if err := j.store.SetSyncValue(key, fmt.Sprintf("%d", conv.ID)); err != nil {
		return nil, err
	}
	return conv, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
