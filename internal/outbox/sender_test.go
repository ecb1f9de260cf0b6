package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/store"
)

// mockTransport records calls and returns configurable results.
type mockTransport struct {
	calls []sendCall
	err   error
}

type sendCall struct {
	Text      string
	Addresses []string
}

func (m *mockTransport) Send(_ context.Context, text string, addresses []string) (string, error) {
	m.calls = append(m.calls, sendCall{Text: text, Addresses: addresses})
	if m.err != nil {
		return "", m.err
	}
	return "handle-1", nil
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err := s.Acquire(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Release() })
	return s
}

func queueOne(t *testing.T, s *store.Store, body string) *store.OutboxEntry {
	t.Helper()
	c := &store.Conversation{Addresses: "5551234567"}
	if err := s.InsertConversation(c); err != nil {
		t.Fatal(err)
	}
	e, err := s.QueueOutgoing(c.ID, body)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestSenderDrainsQueue(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	mock := &mockTransport{}
	sender := NewSender(s, mock, b, nil)

	ch, unsub := b.Subscribe("message.send_ack", 10)
	defer unsub()

	entry := queueOne(t, s, "hello")
	sender.ProcessPending(context.Background())

	if len(mock.calls) != 1 {
		t.Fatalf("got %d send calls, want 1", len(mock.calls))
	}
	if mock.calls[0].Text != "hello" || len(mock.calls[0].Addresses) != 1 || mock.calls[0].Addresses[0] != "5551234567" {
		t.Errorf("call = %+v", mock.calls[0])
	}

	pending, err := s.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 after send", len(pending))
	}

	m, err := s.GetMessage(entry.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != store.StatusSent {
		t.Errorf("message status = %q, want sent", m.Status)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindMessageSendAck {
			t.Errorf("event kind = %q", evt.Kind)
		}
	default:
		t.Error("no send_ack event published")
	}
}

func TestSenderMarksFailure(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	mock := &mockTransport{err: errors.New("network error")}
	sender := NewSender(s, mock, b, nil)

	ch, unsub := b.Subscribe("message.send_failed", 10)
	defer unsub()

	entry := queueOne(t, s, "will-fail")
	sender.ProcessPending(context.Background())

	pending, err := s.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (marked failed)", len(pending))
	}

	m, err := s.GetMessage(entry.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != store.StatusFailed {
		t.Errorf("message status = %q, want failed", m.Status)
	}

	select {
	case <-ch:
	default:
		t.Error("no send_failed event published")
	}
}

func TestQueueShowsOptimisticSendingMessage(t *testing.T) {
	s := testStore(t)
	entry := queueOne(t, s, "optimistic")

	m, err := s.GetMessage(entry.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Status != store.StatusSending {
		t.Fatalf("optimistic message = %+v, want status sending", m)
	}
}

func TestSenderLoopPicksUpQueuedEntries(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	mock := &mockTransport{}
	sender := NewSender(s, mock, b, nil)
	sender.PollInterval = 10 * time.Millisecond

	ch, unsub := b.Subscribe("message.send_ack", 10)
	defer unsub()

	queueOne(t, s, "via loop")
	sender.Start(context.Background())
	defer sender.Stop()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for send_ack from polling loop")
	}
}

func TestConfirmDelivered(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	sender := NewSender(s, &mockTransport{}, b, nil)

	entry := queueOne(t, s, "deliver me")
	sender.ProcessPending(context.Background())

	if err := sender.ConfirmDelivered(entry.MessageID); err != nil {
		t.Fatal(err)
	}
	m, _ := s.GetMessage(entry.MessageID)
	if m.Status != store.StatusDelivered {
		t.Errorf("status = %q, want delivered", m.Status)
	}
}

func TestNopTransportFailsQueuedEntries(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	sender := NewSender(s, NopTransport{}, b, nil)

	entry := queueOne(t, s, "nowhere to go")
	sender.ProcessPending(context.Background())

	m, _ := s.GetMessage(entry.MessageID)
	if m.Status != store.StatusFailed {
		t.Errorf("status = %q, want failed", m.Status)
	}
}
