// Package outbox drains locally composed messages through the outgoing
// transport, tracking delivery state on the optimistic message rows.
package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/store"
)

// Transport hands a composed message to whatever actually delivers it
// (the platform SMS stack, a gateway). It returns an opaque delivery
// handle for correlation.
type Transport interface {
	Send(ctx context.Context, text string, addresses []string) (handle string, err error)
}

// NopTransport is the wired default when no delivery path is
// configured; every send fails so queued entries surface as failed
// instead of silently vanishing.
type NopTransport struct{}

func (NopTransport) Send(context.Context, string, []string) (string, error) {
	return "", errors.New("outbox: no transport configured")
}

// Sender drains queued outbox entries through the transport.
type Sender struct {
	store     *store.Store
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc

	// PollInterval is how often the queue is checked between triggers.
	PollInterval time.Duration
}

// NewSender creates an outbox sender.
func NewSender(st *store.Store, transport Transport, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		store:        st,
		transport:    transport,
		bus:          b,
		logger:       logger,
		PollInterval: 500 * time.Millisecond,
	}
}

// Start begins polling the outbox for queued entries.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending drains every queued entry once, in queue order.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.store.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.store.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		handle, err := s.transport.Send(ctx, entry.Body, splitAddresses(entry.Addresses))
		if err != nil {
			s.logger.Error("send failed", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.store.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			if err := s.store.UpdateMessageStatus(entry.MessageID, store.StatusFailed); err != nil {
				s.logger.Error("failed to fail message", zap.Error(err), zap.Int64("message_id", entry.MessageID))
			}
			s.bus.PublishKind(bus.KindMessageSendFailed, map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"error":         err.Error(),
			})
			continue
		}

		if err := s.store.MarkOutboxSent(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		if err := s.store.UpdateMessageStatus(entry.MessageID, store.StatusSent); err != nil {
			s.logger.Error("failed to ack message", zap.Error(err), zap.Int64("message_id", entry.MessageID))
		}

		s.logger.Info("message sent",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("handle", handle))
		s.bus.PublishKind(bus.KindMessageSendAck, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"handle":        handle,
		})
	}
}

// ConfirmDelivered records a transport delivery report for a sent
// message.
func (s *Sender) ConfirmDelivered(messageID int64) error {
	return s.store.UpdateMessageStatus(messageID, store.StatusDelivered)
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
