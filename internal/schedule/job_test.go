package schedule

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err := s.Acquire(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Release() })
	return s
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTransport) Send(_ context.Context, text string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return "handle", nil
}

func (f *fakeTransport) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestFireDueDeliversWithinTolerance(t *testing.T) {
	s := testStore(t)
	now := time.Now().UnixMilli()
	if err := s.InsertScheduled(&store.ScheduledMessage{
		Addresses: "5551234567", Body: "happy birthday", Kind: store.KindText,
		FireAt: now - 1000,
	}); err != nil {
		t.Fatal(err)
	}
	// Still outside the window; must not fire.
	if err := s.InsertScheduled(&store.ScheduledMessage{
		Addresses: "5559990000", Body: "next week", Kind: store.KindText,
		FireAt: now + (10 * time.Minute).Milliseconds(),
	}); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransport{}
	j := New(s, bus.New(), tr, nil)
	j.FireDue(context.Background())

	if len(tr.sent) != 1 || tr.sent[0] != "happy birthday" {
		t.Fatalf("sent = %v, want only the due message", tr.sent)
	}

	remaining, err := s.ListScheduled()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].Body != "next week" {
		t.Errorf("queue after firing = %+v", remaining)
	}

	c, err := s.FindConversation("5551234567")
	if err != nil || c == nil {
		t.Fatalf("fired message has no conversation: %v", err)
	}
	msgs, _ := s.ListMessages(c.ID)
	if len(msgs) != 1 || msgs[0].Status != store.StatusSent || msgs[0].Body != "happy birthday" {
		t.Errorf("fired message = %+v", msgs)
	}
}

func TestFireDueAttachesToExistingConversation(t *testing.T) {
	s := testStore(t)
	existing := &store.Conversation{Addresses: "(555) 123-4567"}
	if err := s.InsertConversation(existing); err != nil {
		t.Fatal(err)
	}

	if err := s.InsertScheduled(&store.ScheduledMessage{
		Addresses: "+15551234567", Body: "hello again", Kind: store.KindText,
		FireAt: time.Now().UnixMilli() - 10,
	}); err != nil {
		t.Fatal(err)
	}

	j := New(s, bus.New(), &fakeTransport{}, nil)
	j.FireDue(context.Background())

	convs, _ := s.ListConversations(true)
	if len(convs) != 1 {
		t.Fatalf("firing spawned a duplicate conversation: %d rows", len(convs))
	}
	msgs, _ := s.ListMessages(existing.ID)
	if len(msgs) != 1 {
		t.Errorf("message not attached to existing conversation")
	}
}

func TestSingleAlarmInvariant(t *testing.T) {
	s := testStore(t)
	now := time.Now().UnixMilli()
	for _, at := range []int64{
		now - 1000, // due
		now + (20 * time.Minute).Milliseconds(),
		now + (40 * time.Minute).Milliseconds(),
	} {
		if err := s.InsertScheduled(&store.ScheduledMessage{
			Addresses: "5551234567", Body: "x", Kind: store.KindText, FireAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	j := New(s, bus.New(), &fakeTransport{}, nil)
	j.FireDue(context.Background())
	j.rearm()
	if !j.armed() {
		t.Fatal("remaining queue left no pending wake")
	}
	// Rearming again replaces the wake rather than stacking another.
	j.rearm()
	if !j.armed() {
		t.Fatal("rearm dropped the pending wake")
	}
	j.Stop()
	if j.armed() {
		t.Error("stop left a timer pending")
	}
}

func TestNoTimerWhenQueueEmpty(t *testing.T) {
	s := testStore(t)
	j := New(s, bus.New(), &fakeTransport{}, nil)
	j.rearm()
	if j.armed() {
		t.Error("empty queue armed a wake")
	}
}

func TestQueueChangeRearmsThroughBus(t *testing.T) {
	s := testStore(t)
	b := bus.New()
	j := New(s, b, &fakeTransport{}, nil)
	j.Start(context.Background())
	defer j.Stop()

	if j.armed() {
		t.Fatal("armed with empty queue")
	}

	if err := s.InsertScheduled(&store.ScheduledMessage{
		Addresses: "5551234567", Body: "later", Kind: store.KindText,
		FireAt: time.Now().Add(time.Hour).UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}
	b.PublishKind(bus.KindScheduledChanged, nil)

	deadline := time.After(2 * time.Second)
	for !j.armed() {
		select {
		case <-deadline:
			t.Fatal("queue change did not arm a wake")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduleIntoEmptyQueueArmsAndFires(t *testing.T) {
	s := testStore(t)
	tr := &fakeTransport{}
	j := New(s, bus.New(), tr, nil)
	j.Tolerance = 50 * time.Millisecond
	j.Start(context.Background())
	defer j.Stop()

	if j.armed() {
		t.Fatal("armed with empty queue")
	}

	// Queue through the job's own write path; no restart, no external
	// event, just the insert must arm the wake.
	if err := j.Schedule(&store.ScheduledMessage{
		Addresses: "5551234567", Body: "soon", Kind: store.KindText,
		FireAt: time.Now().Add(200 * time.Millisecond).UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}
	if !j.armed() {
		t.Fatal("scheduling into an empty queue left no pending wake")
	}

	deadline := time.After(2 * time.Second)
	for len(tr.delivered()) == 0 {
		select {
		case <-deadline:
			remaining, _ := s.ListScheduled()
			t.Fatalf("scheduled message starved: 0 sends, queue = %+v", remaining)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if sent := tr.delivered(); sent[0] != "soon" {
		t.Errorf("sent = %v", sent)
	}
	remaining, err := s.ListScheduled()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("queue after firing = %+v", remaining)
	}
}

func TestCancelDisarmsLastPendingWake(t *testing.T) {
	s := testStore(t)
	j := New(s, bus.New(), &fakeTransport{}, nil)

	sm := &store.ScheduledMessage{
		Addresses: "5551234567", Body: "later", Kind: store.KindText,
		FireAt: time.Now().Add(time.Hour).UnixMilli(),
	}
	if err := j.Schedule(sm); err != nil {
		t.Fatal(err)
	}
	if !j.armed() {
		t.Fatal("schedule left no pending wake")
	}

	if err := j.Cancel(sm.ID); err != nil {
		t.Fatal(err)
	}
	if j.armed() {
		t.Error("cancelling the only pending message left a timer armed")
	}
}

func TestFireReplayIsNoOp(t *testing.T) {
	s := testStore(t)
	sm := &store.ScheduledMessage{
		Addresses: "5551234567", Body: "once only", Kind: store.KindText,
		FireAt: time.Now().UnixMilli() - 10,
	}
	if err := s.InsertScheduled(sm); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransport{}
	j := New(s, bus.New(), tr, nil)
	j.FireDue(context.Background())
	// Replaying the same fire against the consumed row delivers nothing.
	if err := j.fire(context.Background(), *sm, time.Now().UnixMilli()); err != nil {
		t.Fatal(err)
	}

	if len(tr.sent) != 1 {
		t.Fatalf("replay re-delivered: %d sends", len(tr.sent))
	}
	c, _ := s.FindConversation("5551234567")
	msgs, _ := s.ListMessages(c.ID)
	if len(msgs) != 1 {
		t.Errorf("replay duplicated the message: %d rows", len(msgs))
	}
}
