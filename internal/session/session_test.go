package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/TobiSchelling/Quantify/internal/assistant"
	"github.com/TobiSchelling/Quantify/internal/posts"
)

type mockAsker struct {
	reply string
	err   error
	// gate, when set, blocks Ask until closed.
	gate    chan struct{}
	started chan struct{}
	stats   *assistant.Stats
}

func (m *mockAsker) Ask(ctx context.Context, question string, stats *assistant.Stats) (string, error) {
	m.stats = stats
	if m.started != nil {
		close(m.started)
	}
	if m.gate != nil {
		<-m.gate
	}
	return m.reply, m.err
}

func samplePosts() []posts.Post {
	return []posts.Post{
		{ID: "1", Type: posts.TypeReel, Likes: 10},
		{ID: "2", Type: posts.TypeImage, Likes: 3},
	}
}

func TestCommitAndSnapshot(t *testing.T) {
	s := New(nil)
	if err := s.Commit(s.Begin(), samplePosts(), "a.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Posts) != 2 || snap.Source != "a.csv" || snap.Totals.Posts != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if !reflect.DeepEqual(snap.Rows, posts.Aggregate(samplePosts())) {
		t.Errorf("rows not re-aggregated: %+v", snap.Rows)
	}

	snap.Posts[0].Likes = 999
	if s.Snapshot().Posts[0].Likes != 10 {
		t.Error("snapshot shares memory with session state")
	}
}

func TestSnapshotHashtagsAreIsolated(t *testing.T) {
	list := []posts.Post{{ID: "1", Type: posts.TypeReel, Hashtags: []string{"#a", "#b"}}}
	s := New(nil)
	if err := s.Commit(s.Begin(), list, "a.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list[0].Hashtags[0] = "#caller"

	snap := s.Snapshot()
	snap.Posts[0].Hashtags[1] = "#snapshot"

	if got := s.Snapshot().Posts[0].Hashtags; !reflect.DeepEqual(got, []string{"#a", "#b"}) {
		t.Errorf("session hashtags changed through a shared slice: %v", got)
	}

	extra := posts.Post{ID: "2", Type: posts.TypeText, Hashtags: []string{"#c"}}
	if err := s.Append(s.Begin(), extra); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	extra.Hashtags[0] = "#changed"
	if got := s.Snapshot().Posts[1].Hashtags[0]; got != "#c" {
		t.Errorf("appended post shares hashtags with caller: %q", got)
	}
}

func TestStaleCommitAfterReset(t *testing.T) {
	s := New(nil)
	tok := s.Begin()
	s.Reset()

	if err := s.Commit(tok, samplePosts(), "late.csv"); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Posts) != 0 {
		t.Errorf("stale result overwrote reset state: %+v", snap.Posts)
	}
	if !reflect.DeepEqual(snap.Rows, posts.EmptyAggregate()) {
		t.Errorf("expected empty aggregate, got %+v", snap.Rows)
	}
}

func TestStaleCommitAfterNewerCommit(t *testing.T) {
	s := New(nil)
	older := s.Begin()
	newer := s.Begin()
	if err := s.Commit(newer, samplePosts()[:1], "new.csv"); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(older, samplePosts(), "old.csv"); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
	if s.Snapshot().Source != "new.csv" {
		t.Error("older commit replaced newer state")
	}
}

func TestAppendReaggregates(t *testing.T) {
	s := New(nil)
	if err := s.Commit(s.Begin(), samplePosts(), "a.csv"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(s.Begin(), posts.Post{ID: "3", Type: posts.TypeReel, Likes: 20}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(snap.Posts))
	}
	if reel := snap.Rows[2]; reel.TotalPosts != 2 || reel.AvgLikes != 15 {
		t.Errorf("unexpected reel row %+v", reel)
	}
}

func TestAskRecordsTurns(t *testing.T) {
	asker := &mockAsker{reply: "Reels lead."}
	s := New(asker)
	s.Commit(s.Begin(), samplePosts(), "a.csv")

	reply, err := s.Ask(context.Background(), "  who wins? ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Reels lead." {
		t.Errorf("unexpected reply %q", reply)
	}
	if asker.stats == nil || asker.stats.Totals.Posts != 2 {
		t.Errorf("expected stats with 2 posts, got %+v", asker.stats)
	}

	chat := s.Snapshot().Chat
	if len(chat) != 2 || chat[0].Role != RoleUser || chat[0].Text != "who wins?" || chat[1].Role != RoleAssistant {
		t.Errorf("unexpected chat %+v", chat)
	}
}

func TestAskEmpty(t *testing.T) {
	s := New(&mockAsker{})
	if _, err := s.Ask(context.Background(), " "); !errors.Is(err, assistant.ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(s.Snapshot().Chat) != 0 {
		t.Error("empty message should not be recorded")
	}
}

func TestAskFailureRecordsErrorTurn(t *testing.T) {
	boom := errors.New("boom")
	s := New(&mockAsker{err: boom})

	if _, err := s.Ask(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	chat := s.Snapshot().Chat
	if len(chat) != 2 || chat[1].Text != ErrorReply || !chat[1].Failed {
		t.Errorf("unexpected chat %+v", chat)
	}

	if _, err := New(nil).Ask(context.Background(), "hello"); !errors.Is(err, assistant.ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestAskBusy(t *testing.T) {
	asker := &mockAsker{reply: "done", gate: make(chan struct{}), started: make(chan struct{})}
	s := New(asker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Ask(context.Background(), "first")
	}()
	<-asker.started

	if !s.Snapshot().Busy {
		t.Error("expected busy snapshot")
	}
	if _, err := s.Ask(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(asker.gate)
	wg.Wait()

	chat := s.Snapshot().Chat
	if len(chat) != 2 || chat[0].Text != "first" || chat[1].Text != "done" {
		t.Errorf("unexpected chat %+v", chat)
	}
}

func TestAskReplyDroppedAfterReset(t *testing.T) {
	asker := &mockAsker{reply: "late", gate: make(chan struct{}), started: make(chan struct{})}
	s := New(asker)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "question")
		errc <- err
	}()
	<-asker.started
	s.Reset()
	close(asker.gate)

	if err := <-errc; !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Chat) != 0 || snap.Busy {
		t.Errorf("expected empty idle session, got %+v", snap)
	}
}
