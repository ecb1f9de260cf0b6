package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mvalim/textsync/internal/store"
	"github.com/mvalim/textsync/internal/telephony"
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

// fakeProvider serves canned threads; failFirst makes the first
// Conversations call fail to exercise the retry pass.
type fakeProvider struct {
	convs     []telephony.Conversation
	msgs      map[int64][]telephony.Message
	failFirst bool
	failAll   bool
	calls     int
}

func (f *fakeProvider) Conversations(_ context.Context) ([]telephony.Conversation, error) {
	f.calls++
	if f.failAll || (f.failFirst && f.calls == 1) {
		return nil, errors.New("provider unavailable")
	}
	return f.convs, nil
}

func (f *fakeProvider) Messages(_ context.Context, threadID, after int64, limit int) ([]telephony.Message, error) {
	var out []telephony.Message
	for _, m := range f.msgs[threadID] {
		if m.Timestamp <= after {
			continue
		}
		out = append(out, m)
	}
	// A capped read keeps the newest rows, like the real provider.
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeProvider) ConversationsSince(_ context.Context, since int64) ([]telephony.Conversation, error) {
	var out []telephony.Conversation
	for _, c := range f.convs {
		if c.Timestamp > since {
			out = append(out, c)
		}
	}
	return out, nil
}

func twoThreadProvider() *fakeProvider {
	return &fakeProvider{
		convs: []telephony.Conversation{
			{NativeID: 1, Addresses: []string{"(555) 123-4567"}, Timestamp: 30, Read: true},
			{NativeID: 2, Addresses: []string{"+15559990000"}, Timestamp: 20},
		},
		msgs: map[int64][]telephony.Message{
			1: {
				{NativeID: 10, ThreadID: 1, Address: "(555) 123-4567", Body: "hello", Incoming: true, Read: true, Timestamp: 10},
				{NativeID: 11, ThreadID: 1, Address: "", Body: "hi back", Incoming: false, Read: true, Timestamp: 30},
			},
			2: {
				{NativeID: 20, ThreadID: 2, Address: "+15559990000", Body: "ping", Incoming: true, Timestamp: 20},
			},
		},
	}
}

func TestRunSeedsStore(t *testing.T) {
	s := testStore(t)
	imp := New(s, twoThreadProvider(), nil)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	convs, err := s.ListConversations(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}

	c, err := s.FindConversation("5551234567")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("imported thread not resolvable by bare digits")
	}
	if c.Snippet != "hi back" || c.Timestamp != 30 || !c.Read {
		t.Errorf("conversation summary = %q/%d/read=%v", c.Snippet, c.Timestamp, c.Read)
	}

	msgs, err := s.ListMessages(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Status != store.StatusReceived || msgs[1].Status != store.StatusSent {
		t.Errorf("statuses = %s, %s", msgs[0].Status, msgs[1].Status)
	}

	done, err := imp.Done()
	if err != nil || !done {
		t.Errorf("Done() = %v, %v, want true", done, err)
	}
}

func TestRunPrunesEmptyThreads(t *testing.T) {
	s := testStore(t)
	p := twoThreadProvider()
	p.convs = append(p.convs,
		telephony.Conversation{NativeID: 3, Addresses: []string{"5550001111"}, Timestamp: 5},
		telephony.Conversation{NativeID: 4, Addresses: []string{""}, Timestamp: 5},
	)
	// thread 3 exists natively but holds no messages
	if err := New(s, p, nil).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	convs, err := s.ListConversations(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Errorf("empty threads leaked into store: %d conversations", len(convs))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := testStore(t)
	imp := New(s, twoThreadProvider(), nil)
	if err := imp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := imp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	convs, _ := s.ListConversations(true)
	if len(convs) != 2 {
		t.Fatalf("re-run duplicated conversations: %d", len(convs))
	}
	for _, c := range convs {
		msgs, _ := s.ListMessages(c.ID)
		if len(msgs) > 2 {
			t.Errorf("re-run duplicated messages in %d: %d rows", c.ID, len(msgs))
		}
	}
}

func TestRunRetriesOnce(t *testing.T) {
	s := testStore(t)
	p := twoThreadProvider()
	p.failFirst = true
	if err := New(s, p, nil).Run(context.Background()); err != nil {
		t.Fatalf("retry pass should have recovered: %v", err)
	}

	convs, _ := s.ListConversations(true)
	if len(convs) != 2 {
		t.Errorf("conversations after recovery = %d, want 2", len(convs))
	}
}

func TestRunReportsSetupFailure(t *testing.T) {
	s := testStore(t)
	p := twoThreadProvider()
	p.failAll = true
	err := New(s, p, nil).Run(context.Background())
	if !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("err = %v, want ErrSetupFailed", err)
	}
	done, _ := New(s, p, nil).Done()
	if done {
		t.Error("failed import marked done")
	}
}

func TestRunHonorsMessageCap(t *testing.T) {
	s := testStore(t)
	p := &fakeProvider{
		convs: []telephony.Conversation{{NativeID: 1, Addresses: []string{"5551234567"}, Timestamp: 10}},
		msgs:  map[int64][]telephony.Message{1: {}},
	}
	for i := 0; i < 10; i++ {
		p.msgs[1] = append(p.msgs[1], telephony.Message{
			NativeID: int64(i), ThreadID: 1, Address: "5551234567",
			Body: "m", Incoming: true, Timestamp: int64(i + 1),
		})
	}

	imp := New(s, p, nil)
	imp.MessageCap = 3
	if err := imp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, _ := s.FindConversation("5551234567")
	msgs, _ := s.ListMessages(c.ID)
	if len(msgs) != 3 {
		t.Fatalf("imported %d messages, cap is 3", len(msgs))
	}
	// The cap keeps the newest end of the history, ascending.
	for i, want := range []int64{8, 9, 10} {
		if msgs[i].Timestamp != want {
			t.Errorf("msgs[%d].Timestamp = %d, want %d", i, msgs[i].Timestamp, want)
		}
	}
	if c.Timestamp != 10 {
		t.Errorf("conversation timestamp = %d, want 10 (newest message)", c.Timestamp)
	}
}
