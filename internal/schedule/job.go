// Package schedule fires scheduled messages at (or near) their fire
// time. The job owns at most one pending timer: every queue change
// recomputes the single next wake instead of arming one timer per row.
package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/ident"
	"github.com/mvalim/textsync/internal/outbox"
	"github.com/mvalim/textsync/internal/store"
)

// DefaultTolerance is how far around the exact fire time a wake may
// land and still deliver: an early wake within it fires, a late one
// never drops the message.
const DefaultTolerance = 5 * time.Minute

// Job delivers scheduled messages.
type Job struct {
	store     *store.Store
	bus       *bus.Bus
	transport outbox.Transport
	logger    *zap.Logger

	Tolerance time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	wake   chan struct{}
	cancel context.CancelFunc
}

// New creates a schedule job.
func New(st *store.Store, b *bus.Bus, transport outbox.Transport, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		store:     st,
		bus:       b,
		transport: transport,
		logger:    logger,
		Tolerance: DefaultTolerance,
		wake:      make(chan struct{}, 1),
	}
}

// Start fires anything already due, arms the first wake and begins
// listening for queue changes.
func (j *Job) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.FireDue(ctx)
	j.rearm()
	go j.loop(ctx)
}

// Stop cancels the loop and disarms any pending wake.
func (j *Job) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.mu.Lock()
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	j.mu.Unlock()
}

// Schedule persists a new scheduled message and recomputes the wake,
// so a message queued into an empty queue arms a timer immediately.
func (j *Job) Schedule(sm *store.ScheduledMessage) error {
	if err := j.store.InsertScheduled(sm); err != nil {
		return err
	}
	j.bus.PublishKind(bus.KindScheduledChanged, sm.ID)
	j.rearm()
	return nil
}

// Reschedule applies a user edit to a pending message and recomputes
// the wake.
func (j *Job) Reschedule(sm *store.ScheduledMessage) error {
	if err := j.store.UpdateScheduled(sm); err != nil {
		return err
	}
	j.bus.PublishKind(bus.KindScheduledChanged, sm.ID)
	j.rearm()
	return nil
}

// Cancel removes a pending message and recomputes the wake.
func (j *Job) Cancel(id int64) error {
	if err := j.store.DeleteScheduled(id); err != nil {
		return err
	}
	j.bus.PublishKind(bus.KindScheduledChanged, id)
	j.rearm()
	return nil
}

func (j *Job) loop(ctx context.Context) {
	// Queue edits arrive as scheduled.* events; each one replaces the
	// pending wake with a freshly computed one.
	ch, unsub := j.bus.Subscribe("scheduled.", 16)
	defer unsub()

	for {
		select {
		case <-j.wake:
			j.FireDue(ctx)
			j.rearm()
		case <-ch:
			j.rearm()
		case <-ctx.Done():
			return
		}
	}
}

// FireDue delivers every scheduled message due within the tolerance
// window.
func (j *Job) FireDue(ctx context.Context) {
	now := time.Now().UnixMilli()
	due, err := j.store.DueScheduled(now + j.Tolerance.Milliseconds())
	if err != nil {
		j.logger.Error("failed to read scheduled queue", zap.Error(err))
		return
	}

	for _, sm := range due {
		if ctx.Err() != nil {
			return
		}
		if err := j.fire(ctx, sm, now); err != nil {
			j.logger.Error("failed to fire scheduled message",
				zap.Error(err), zap.Int64("id", sm.ID))
		}
	}
}

func (j *Job) fire(ctx context.Context, sm store.ScheduledMessage, now int64) error {
	conv, err := j.store.FindConversation(sm.Addresses)
	if err != nil {
		return err
	}
	if conv == nil {
		conv = &store.Conversation{
			Addresses:  sm.Addresses,
			MatcherKey: ident.Key(sm.Addresses),
			Title:      sm.Title,
			Read:       true,
		}
		if err := j.store.InsertConversation(conv); err != nil {
			return err
		}
	}

	m, err := j.store.FireScheduled(&sm, conv.ID, now)
	if err != nil {
		return err
	}
	if m == nil {
		// Consumed by an interrupted earlier run; nothing to deliver.
		return nil
	}

	if _, err := j.transport.Send(ctx, m.Body, splitAddresses(sm.Addresses)); err != nil {
		// The row is already recorded; delivery is the transport's
		// problem from here.
		j.logger.Warn("transport rejected scheduled message",
			zap.Error(err), zap.Int64("message_id", m.ID))
	}

	j.bus.PublishKind(bus.KindMessageInserted, bus.MessageInserted{
		ConversationID: conv.ID,
		MessageID:      m.ID,
		Snippet:        m.Body,
		Read:           true,
	})
	j.bus.PublishKind(bus.KindConversationUpdated, bus.ConversationUpdate{
		ID:      conv.ID,
		Snippet: m.Body,
		Read:    true,
	})
	j.logger.Info("scheduled message fired",
		zap.Int64("scheduled_id", sm.ID),
		zap.Int64("message_id", m.ID),
		zap.Int64("late_ms", now-sm.FireAt))
	return nil
}

// rearm replaces the pending wake with one for the earliest remaining
// fire time. An empty queue leaves no timer at all.
func (j *Job) rearm() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	next, err := j.store.NextScheduledTime()
	if err != nil {
		j.logger.Error("failed to compute next wake", zap.Error(err))
		return
	}
	if next == 0 {
		return
	}
	d := time.Until(time.UnixMilli(next))
	if d < 0 {
		d = 0
	}
	j.timer = time.AfterFunc(d, func() {
		select {
		case j.wake <- struct{}{}:
		default:
		}
	})
}

// armed reports whether a wake is pending.
func (j *Job) armed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.timer != nil
}

func splitAddresses(addresses string) []string {
	var out []string
	for _, p := range strings.Split(addresses, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
