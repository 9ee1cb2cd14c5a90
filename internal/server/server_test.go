package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/Quantify/internal/assistant"
	"github.com/TobiSchelling/Quantify/internal/config"
	"github.com/TobiSchelling/Quantify/internal/database"
	"github.com/TobiSchelling/Quantify/internal/pipeline"
	"github.com/TobiSchelling/Quantify/internal/posts"
	"github.com/TobiSchelling/Quantify/internal/session"
)

type mockProvider struct {
	reply string
	err   error
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	return m.reply, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type testEnv struct {
	srv  *Server
	db   *database.DB
	sess *session.Session
}

func newTestServer(t *testing.T, provider assistant.Provider) *testEnv {
	t.Helper()
	cfg := config.Default()
	db := openTestDB(t)
	sess := session.New(assistant.New(provider, 0, true))
	srv, err := New(cfg, db, pipeline.New(cfg), sess)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC) }
	return &testEnv{srv: srv, db: db, sess: sess}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

const sampleCSV = "id,type,likes,shares,comments,date\np1,reel,10,2,3,2026-01-01\np2,image,4,0,1,2026-01-02\n"

func TestIndexRoute(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Total Posts", "Performance by Post Type", "Carousel", "No posts loaded yet."} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticCSS(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(httptest.NewRequest("GET", "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUploadFlow(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(uploadRequest(t, "export.csv", sampleCSV))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	snap := env.sess.Snapshot()
	if len(snap.Posts) != 2 || snap.Source != "export.csv" {
		t.Errorf("unexpected session state %+v", snap)
	}

	uploads, err := env.db.ListUploads(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 || uploads[0].Format != "csv" || uploads[0].PostCount != 2 {
		t.Errorf("unexpected uploads %+v", uploads)
	}

	page := env.do(httptest.NewRequest("GET", "/", nil)).Body.String()
	if !strings.Contains(page, "p1") || !strings.Contains(page, "Source: export.csv") {
		t.Error("expected uploaded posts on the dashboard")
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(uploadRequest(t, "export.csv", sampleCSV))

	rec := env.do(uploadRequest(t, "photo.png", "\x89PNG"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type .png") {
		t.Error("expected error message in page")
	}
	if len(env.sess.Snapshot().Posts) != 2 {
		t.Error("rejected upload should leave prior state")
	}
}

func TestUploadMissingHeader(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(uploadRequest(t, "bad.csv", "p1,reel,10\n"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if len(env.sess.Snapshot().Posts) != 0 {
		t.Error("expected session untouched")
	}
}

func TestUploadHeaderlessTextRow(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(uploadRequest(t, "bad.csv", "p1,text,10,2,3,2026-01-01\np2,image,5,1,1,2026-01-02\n"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if n := len(env.sess.Snapshot().Posts); n != 0 {
		t.Errorf("expected no posts, got %d", n)
	}
}

func TestUploadResetDuringBodyRead(t *testing.T) {
	env := newTestServer(t, nil)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	req := httptest.NewRequest("POST", "/upload", pr)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(req) }()

	// Pipe writes return only once the handler has read them, so the
	// handler is mid-body when the reset happens.
	fw, err := mw.CreateFormFile("file", "export.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, "id,type,likes,shares,comments,date\n"); err != nil {
		t.Fatal(err)
	}

	env.sess.Reset()

	io.WriteString(fw, "p1,reel,10,2,3,2026-01-01\n")
	mw.Close()
	pw.Close()

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("upload handler did not finish")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	snap := env.sess.Snapshot()
	if len(snap.Posts) != 0 || snap.Source != "" {
		t.Errorf("upload overtaken by reset was installed: %+v", snap)
	}
	uploads, err := env.db.ListUploads(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 0 {
		t.Errorf("expected no recorded uploads, got %d", len(uploads))
	}
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(formRequest("/upload", url.Values{}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestManualEntry(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(uploadRequest(t, "export.csv", sampleCSV))

	rec := env.do(formRequest("/posts", url.Values{"type": {"carousel"}, "likes": {"9"}, "hashtags": {"#a, #b"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	snap := env.sess.Snapshot()
	if len(snap.Posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(snap.Posts))
	}
	if c := snap.Rows[1]; c.PostType != posts.TypeCarousel || c.TotalPosts != 1 || c.AvgLikes != 9 {
		t.Errorf("unexpected carousel row %+v", c)
	}

	rec = env.do(formRequest("/posts", url.Values{"type": {"hologram"}}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid type, got %d", rec.Code)
	}
}

func TestReset(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(uploadRequest(t, "export.csv", sampleCSV))

	rec := env.do(formRequest("/reset", nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if len(env.sess.Snapshot().Posts) != 0 {
		t.Error("expected empty session after reset")
	}
}

func TestStatsAPI(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(uploadRequest(t, "export.csv", sampleCSV))

	rec := env.do(httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(resp.Rows) != len(posts.AllTypes) || resp.Totals.Posts != 2 || resp.Totals.Likes != 14 {
		t.Errorf("unexpected stats %+v", resp)
	}
	if resp.Rows[2].PostType != posts.TypeReel || resp.Rows[2].AvgLikes != 10 {
		t.Errorf("unexpected reel row %+v", resp.Rows[2])
	}
}

func TestReportDownloadArchives(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(uploadRequest(t, "export.csv", sampleCSV))

	rec := env.do(httptest.NewRequest("GET", "/report.txt", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "analytics_report.txt") {
		t.Errorf("unexpected disposition %q", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Social Media Analytics Report") || strings.Contains(body, "NaN") {
		t.Errorf("unexpected report:\n%s", body)
	}

	reports, err := env.db.ListReports(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].PostCount != 2 {
		t.Fatalf("expected one archived report, got %+v", reports)
	}

	list := env.do(httptest.NewRequest("GET", "/reports", nil))
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), "export.csv") {
		t.Errorf("expected reports page listing the upload, got %d", list.Code)
	}

	one := env.do(httptest.NewRequest("GET", "/reports/1", nil))
	if one.Code != http.StatusOK || one.Body.String() != body {
		t.Errorf("archived report mismatch: %d", one.Code)
	}

	missing := env.do(httptest.NewRequest("GET", "/reports/99", nil))
	if missing.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.Code)
	}
}

func TestChatForm(t *testing.T) {
	env := newTestServer(t, &mockProvider{reply: "**Reels** lead."})

	rec := env.do(formRequest("/chat", url.Values{"message": {"Which type wins?"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}

	page := env.do(httptest.NewRequest("GET", "/", nil)).Body.String()
	if !strings.Contains(page, "Which type wins?") || !strings.Contains(page, "<strong>Reels</strong> lead.") {
		t.Error("expected chat turns with rendered markdown")
	}

	empty := env.do(formRequest("/chat", url.Values{"message": {"  "}}))
	if empty.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", empty.Code)
	}
}

func TestChatAPI(t *testing.T) {
	env := newTestServer(t, &mockProvider{reply: "Post more carousels."})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"advice?"}`))
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp chatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Reply != "Post more carousels." {
		t.Errorf("unexpected reply %+v", resp)
	}

	rec = env.do(httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest("POST", "/api/chat", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}
}

func TestChatAPIFailure(t *testing.T) {
	env := newTestServer(t, &mockProvider{err: errors.New("upstream down")})

	rec := env.do(httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	var resp chatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Reply != session.ErrorReply {
		t.Errorf("expected error reply, got %+v", resp)
	}

	chat := env.sess.Snapshot().Chat
	if len(chat) != 2 || chat[1].Text != session.ErrorReply {
		t.Errorf("expected error turn in history, got %+v", chat)
	}
}

func TestBars(t *testing.T) {
	rows := []posts.AggregateRow{
		{PostType: posts.TypeImage, AvgLikes: 50, AvgShares: 10, AvgComments: 5},
		{PostType: posts.TypeReel, AvgLikes: 100},
	}
	got := bars(rows)
	if got[0].LikesPct != 50 || got[0].SharesPct != 10 || got[1].LikesPct != 100 {
		t.Errorf("unexpected bars %+v", got)
	}

	empty := bars(posts.EmptyAggregate())
	for _, b := range empty {
		if b.LikesPct != 0 || b.SharesPct != 0 || b.CommentsPct != 0 {
			t.Errorf("expected zero bars, got %+v", b)
		}
	}
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	env := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, env.srv, 0) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server kept running after cancellation")
	}
}
