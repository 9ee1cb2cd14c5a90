package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/TobiSchelling/Quantify/internal/config"
	"github.com/TobiSchelling/Quantify/internal/ingest"
	"github.com/TobiSchelling/Quantify/internal/posts"
)

func newTestPipeline() *Pipeline {
	return New(config.Default()).WithClock(func() time.Time {
		return time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)
	})
}

const sampleCSV = `id,type,content,likes,shares,comments,date,hashtags
p1,reel,Launch,100,10,5,2026-01-10,#launch;#new
p2,reel,Behind the scenes,50,4,3,2026-01-11,
p3,photo,Team,20,1,1,2026-01-12,#team
p4,mystery,???,7,0,0,2026-01-13,
`

func TestRunCSV(t *testing.T) {
	r, err := newTestPipeline().Run(context.Background(), "export.csv", "text/csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Format != ingest.FormatCSV {
		t.Errorf("expected csv, got %q", r.Format)
	}
	if len(r.Posts) != 4 {
		t.Fatalf("expected 4 posts, got %d", len(r.Posts))
	}
	if r.Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", r.Fallbacks)
	}
	if r.Posts[3].Type != posts.DefaultType {
		t.Errorf("expected fallback type, got %q", r.Posts[3].Type)
	}

	if !reflect.DeepEqual(r.Rows, posts.Aggregate(r.Posts)) {
		t.Error("result rows should equal a fresh aggregate of the posts")
	}
	reel := r.Rows[2]
	if reel.PostType != posts.TypeReel || reel.TotalPosts != 2 || reel.AvgLikes != 75 || reel.AvgShares != 7 || reel.AvgComments != 4 {
		t.Errorf("unexpected reel row %+v", reel)
	}

	var names []string
	for _, s := range r.Steps {
		names = append(names, s.Name)
		if s.Err != nil {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}
	if !reflect.DeepEqual(names, []string{"Detect", "Parse", "Normalize", "Aggregate"}) {
		t.Errorf("unexpected steps %v", names)
	}
}

func TestRunFormatsAgree(t *testing.T) {
	csvData := "id,type,likes,shares,comments,date\na,reel,10,2,3,2026-01-01\nb,image,4,0,1,2026-01-02\n"
	jsonData := `[{"id":"a","type":"reel","likes":10,"shares":2,"comments":3,"date":"2026-01-01"},
		{"id":"b","type":"image","likes":4,"shares":0,"comments":1,"date":"2026-01-02"}]`
	htmlData := `<table><tr><th>id</th><th>type</th><th>likes</th><th>shares</th><th>comments</th><th>date</th></tr>
		<tr><td>a</td><td>reel</td><td>10</td><td>2</td><td>3</td><td>2026-01-01</td></tr>
		<tr><td>b</td><td>image</td><td>4</td><td>0</td><td>1</td><td>2026-01-02</td></tr></table>`
	textData := "id\ttype\tlikes\tshares\tcomments\tdate\na\treel\t10\t2\t3\t2026-01-01\nb\timage\t4\t0\t1\t2026-01-02\n"

	p := newTestPipeline()
	want, err := p.Run(context.Background(), "in.csv", "", []byte(csvData))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	others := map[string]string{"in.json": jsonData, "in.html": htmlData, "in.txt": textData}
	for name, data := range others {
		got, err := p.Run(context.Background(), name, "", []byte(data))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(got.Posts, want.Posts) {
			t.Errorf("%s: posts differ from csv\n got %+v\nwant %+v", name, got.Posts, want.Posts)
		}
	}
}

func TestRunUnsupportedStopsBeforeParse(t *testing.T) {
	r, err := newTestPipeline().Run(context.Background(), "photo.png", "image/png", []byte("\x89PNG"))
	var ue *posts.UnsupportedFormatError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if len(r.Steps) != 1 || r.Steps[0].Name != "Detect" {
		t.Errorf("expected only the detect step, got %+v", r.Steps)
	}
	if r.Posts != nil {
		t.Error("expected no posts")
	}
}

func TestRunStructuralFailure(t *testing.T) {
	_, err := newTestPipeline().Run(context.Background(), "bad.csv", "", []byte("a1,reel,3\n"))
	if !errors.Is(err, posts.ErrMissingHeader) {
		t.Errorf("expected ErrMissingHeader, got %v", err)
	}
	if !posts.IsStructural(err) {
		t.Error("expected structural error")
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := newTestPipeline().RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Posts) != 4 {
		t.Errorf("expected 4 posts, got %d", len(r.Posts))
	}

	if _, err := newTestPipeline().RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromEntry(t *testing.T) {
	p := newTestPipeline()
	post, err := p.FromEntry(posts.Entry{Type: "carousel", Likes: "12", Hashtags: "#a, #b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Type != posts.TypeCarousel || post.Likes != 12 || post.Date != "2026-02-06" || len(post.Hashtags) != 2 {
		t.Errorf("unexpected post %+v", post)
	}

	if _, err := p.FromEntry(posts.Entry{Type: "hologram"}); !errors.Is(err, posts.ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
}
