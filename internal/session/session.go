// Package session holds the in-memory state of one dashboard session: the
// loaded posts, their aggregate, and the assistant chat history.
package session

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/TobiSchelling/Quantify/internal/assistant"
	"github.com/TobiSchelling/Quantify/internal/posts"
)

// ErrorReply is the assistant turn recorded when a question fails.
const ErrorReply = "Sorry, there was an error processing your request."

var (
	// ErrStale means the state changed since the operation's token was
	// issued; the result was discarded.
	ErrStale = errors.New("session changed while the operation was pending")

	// ErrBusy means an assistant call is already in flight.
	ErrBusy = errors.New("assistant is busy with another message")
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	// Failed marks the error turn recorded for a failed call.
	Failed bool `json:"failed,omitempty"`
}

// Token identifies the state generation an async operation started from.
type Token uint64

// Asker answers questions about the loaded posts.
type Asker interface {
	Ask(ctx context.Context, question string, stats *assistant.Stats) (string, error)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Posts  []posts.Post
	Rows   []posts.AggregateRow
	Totals posts.Totals
	Chat   []Message
	Source string
	Busy   bool
}

// Session is safe for concurrent use. Post state is replaced wholesale on
// every change and never mutated in place.
type Session struct {
	mu     sync.Mutex
	posts  []posts.Post
	rows   []posts.AggregateRow
	source string
	chat   []Message
	gen    Token
	epoch  uint64
	busy   bool
	asker  Asker
	now    func() time.Time
}

// New creates an empty session. asker may be nil when no assistant is wired.
func New(asker Asker) *Session {
	return &Session{
		rows:  posts.EmptyAggregate(),
		asker: asker,
		now:   time.Now,
	}
}

// Begin returns a token for an operation that will later Commit or Append.
func (s *Session) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Commit replaces the post list with list and re-aggregates. It fails with
// ErrStale when a reset or another change happened after tok was issued.
func (s *Session) Commit(tok Token, list []posts.Post, source string) error {
	installed := clonePosts(list)
	rows := posts.Aggregate(installed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.gen {
		log.Printf("Discarding stale result from %s", source)
		return ErrStale
	}
	s.posts = installed
	s.rows = rows
	s.source = source
	s.gen++
	return nil
}

// Append adds p to the current list and re-aggregates from scratch.
func (s *Session) Append(tok Token, p posts.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.gen {
		return ErrStale
	}
	p.Hashtags = slices.Clone(p.Hashtags)
	next := make([]posts.Post, len(s.posts), len(s.posts)+1)
	copy(next, s.posts)
	next = append(next, p)
	s.posts = next
	s.rows = posts.Aggregate(next)
	if s.source == "" {
		s.source = "manual entry"
	}
	s.gen++
	return nil
}

// Reset empties the post list, the aggregate and the chat history. Pending
// commits and assistant replies become stale.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = nil
	s.rows = posts.EmptyAggregate()
	s.source = ""
	s.chat = nil
	s.gen++
	s.epoch++
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Posts:  clonePosts(s.posts),
		Rows:   append([]posts.AggregateRow(nil), s.rows...),
		Totals: posts.ComputeTotals(s.posts),
		Chat:   append([]Message(nil), s.chat...),
		Source: s.source,
		Busy:   s.busy,
	}
}

// Ask records msg as a user turn and forwards it to the assistant together
// with the current statistics. Only one call may be in flight; a concurrent
// call fails with ErrBusy. A failed call records ErrorReply as the assistant
// turn and returns the error. A reply arriving after a Reset is dropped and
// ErrStale is returned.
func (s *Session) Ask(ctx context.Context, msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", assistant.ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.busy = true
	epoch := s.epoch
	s.chat = append(s.chat, Message{Role: RoleUser, Text: msg, At: s.now()})
	stats := &assistant.Stats{
		Rows:   append([]posts.AggregateRow(nil), s.rows...),
		Totals: posts.ComputeTotals(s.posts),
	}
	s.mu.Unlock()

	var (
		reply string
		err   error
	)
	if s.asker == nil {
		err = assistant.ErrNoProvider
	} else {
		reply, err = s.asker.Ask(ctx, msg, stats)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if epoch != s.epoch {
		log.Println("Discarding assistant reply after reset")
		return "", ErrStale
	}
	if err != nil {
		log.Printf("Assistant call failed: %v", err)
		s.chat = append(s.chat, Message{Role: RoleAssistant, Text: ErrorReply, At: s.now(), Failed: true})
		return "", err
	}
	s.chat = append(s.chat, Message{Role: RoleAssistant, Text: reply, At: s.now()})
	return reply, nil
}

// clonePosts copies list including each post's hashtag slice, so callers
// never share backing arrays with session state.
func clonePosts(list []posts.Post) []posts.Post {
	if list == nil {
		return nil
	}
	out := make([]posts.Post, len(list))
	for i, p := range list {
		p.Hashtags = slices.Clone(p.Hashtags)
		out[i] = p
	}
	return out
}
