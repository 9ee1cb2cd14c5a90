package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/Quantify/internal/config"
	"github.com/TobiSchelling/Quantify/internal/ingest"
	"github.com/TobiSchelling/Quantify/internal/posts"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one ingestion run.
type Result struct {
	Source    string
	Format    ingest.Format
	Posts     []posts.Post
	Rows      []posts.AggregateRow
	Fallbacks int
	Steps     []StepResult
}

// Pipeline turns uploaded bytes into canonical posts and their aggregate:
// detect, parse, normalize, optionally enrich, aggregate.
type Pipeline struct {
	delimiter string
	enricher  *ingest.Enricher
	entries   *posts.Normalizer
	now       func() time.Time
}

// New creates a new pipeline.
func New(cfg *config.Config) *Pipeline {
	p := &Pipeline{
		delimiter: cfg.Ingest.HashtagDelimiter,
		now:       time.Now,
	}
	if cfg.Ingest.FetchContent {
		p.enricher = ingest.NewEnricher(cfg.FetchTimeout())
	}
	p.entries = posts.NewNormalizer(nil, p.delimiter)
	return p
}

// WithClock overrides the clock used for defaulted dates.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	p.entries.WithClock(now)
	return p
}

// Run ingests data named filename. Structural failures stop the run and are
// returned alongside the steps completed so far.
func (p *Pipeline) Run(ctx context.Context, filename, contentType string, data []byte) (*Result, error) {
	r := &Result{Source: filename}

	// Step 1: Detect
	format, err := ingest.DetectFormat(filename, contentType)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Detect", Err: err})
		return r, err
	}
	r.Format = format
	r.Steps = append(r.Steps, StepResult{Name: "Detect", Summary: fmt.Sprintf("%s as %s", filepath.Base(filename), format)})

	// Step 2: Parse
	table, err := ingest.Parse(format, data, ingest.Options{HashtagDelimiter: p.delimiter})
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Parse", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Parse", Summary: fmt.Sprintf("%d rows, %d columns", len(table.Rows), len(table.Header))})

	// Step 3: Normalize
	r.Posts, r.Fallbacks = p.normalize(table)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Normalize",
		Summary: fmt.Sprintf("%d posts, %d with unrecognized type", len(r.Posts), r.Fallbacks),
	})
	log.Printf("Parsed %d rows from %s", len(r.Posts), filename)

	// Step 4: Enrich
	if p.enricher != nil {
		enriched, res := p.enricher.Enrich(ctx, r.Posts)
		r.Posts = enriched
		r.Steps = append(r.Steps, StepResult{
			Name:    "Enrich",
			Summary: fmt.Sprintf("Fetched %d posts, %d failed", res.Fetched, res.Failed),
		})
	}

	// Step 5: Aggregate
	r.Rows = posts.Aggregate(r.Posts)
	r.Steps = append(r.Steps, StepResult{Name: "Aggregate", Summary: fmt.Sprintf("%d categories", len(r.Rows))})

	return r, nil
}

// RunFile reads path completely and ingests it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{Source: path}, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.Run(ctx, path, "", data)
}

// FromEntry normalizes a manual-entry form.
func (p *Pipeline) FromEntry(e posts.Entry) (posts.Post, error) {
	return p.entries.FromEntry(e)
}

// normalize uses a fresh classifier so the fallback count covers this
// table only.
func (p *Pipeline) normalize(table *ingest.Table) ([]posts.Post, int) {
	n := posts.NewNormalizer(posts.NewClassifier(), p.delimiter).WithClock(p.now)
	idx := table.Index()
	out := make([]posts.Post, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, n.Normalize(row, idx))
	}
	return out, n.Classifier().Fallbacks()
}
