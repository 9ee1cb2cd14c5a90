// Package assistant forwards free-text questions about the loaded posts to a
// conversational backend.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

const systemPrompt = `You are a social media analytics assistant. Answer questions about the user's post performance concisely. When statistics are provided, base your answer on them and do not invent numbers.`

var (
	// ErrNoProvider is returned when no backend is configured.
	ErrNoProvider = errors.New("no assistant provider configured")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("message cannot be empty")
)

// Stats is the aggregate context optionally sent with a question.
type Stats struct {
	Rows   []posts.AggregateRow
	Totals posts.Totals
}

// Assistant builds prompts and sends them to a Provider.
type Assistant struct {
	provider     Provider
	maxTokens    int
	includeStats bool
}

// New creates an assistant. provider may be nil, in which case Ask fails
// with ErrNoProvider.
func New(provider Provider, maxTokens int, includeStats bool) *Assistant {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Assistant{provider: provider, maxTokens: maxTokens, includeStats: includeStats}
}

// Configured reports whether a provider is available.
func (a *Assistant) Configured() bool {
	return a.provider != nil
}

// Ask sends question, prefixed with stats when enabled, and returns the reply.
func (a *Assistant) Ask(ctx context.Context, question string, stats *Stats) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if a.provider == nil {
		return "", ErrNoProvider
	}

	var prompt string
	if a.includeStats {
		prompt = BuildPrompt(question, stats)
	} else {
		prompt = BuildPrompt(question, nil)
	}

	reply, err := a.provider.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		return "", fmt.Errorf("asking assistant: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// BuildPrompt returns question on its own, or preceded by a compact summary
// of stats when stats holds at least one post.
func BuildPrompt(question string, stats *Stats) string {
	if stats == nil || stats.Totals.Posts == 0 {
		return question
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current statistics for %d posts (%d likes, %d shares, %d comments in total):\n",
		stats.Totals.Posts, stats.Totals.Likes, stats.Totals.Shares, stats.Totals.Comments)
	for _, row := range stats.Rows {
		if row.TotalPosts == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %d posts, avg likes %d, avg shares %d, avg comments %d\n",
			row.PostType, row.TotalPosts, row.AvgLikes, row.AvgShares, row.AvgComments)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
