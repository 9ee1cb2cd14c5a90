package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/TobiSchelling/Quantify/internal/assistant"
	"github.com/TobiSchelling/Quantify/internal/database"
	"github.com/TobiSchelling/Quantify/internal/posts"
	"github.com/TobiSchelling/Quantify/internal/session"
)

// multipart overhead allowed on top of the configured upload cap.
const formOverhead = 1 << 20

type bar struct {
	Row         posts.AggregateRow
	LikesPct    int
	SharesPct   int
	CommentsPct int
}

type dashboard struct {
	Snapshot      session.Snapshot
	Bars          []bar
	Types         []posts.PostType
	Accept        string
	Error         string
	AssistantBusy bool
}

func (s *Server) dashboard(errMsg string) dashboard {
	snap := s.sess.Snapshot()
	return dashboard{
		Snapshot:      snap,
		Bars:          bars(snap.Rows),
		Types:         posts.AllTypes,
		Accept:        acceptAttr(),
		Error:         errMsg,
		AssistantBusy: snap.Busy,
	}
}

// bars scales every average against the largest one so the chart shares
// a single axis.
func bars(rows []posts.AggregateRow) []bar {
	peak := 0
	for _, r := range rows {
		peak = max(peak, r.AvgLikes, r.AvgShares, r.AvgComments)
	}
	pct := func(v int) int {
		if peak == 0 {
			return 0
		}
		return v * 100 / peak
	}

	out := make([]bar, 0, len(rows))
	for _, r := range rows {
		out = append(out, bar{
			Row:         r,
			LikesPct:    pct(r.AvgLikes),
			SharesPct:   pct(r.AvgShares),
			CommentsPct: pct(r.AvgComments),
		})
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.dashboard(""))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// The token must predate the body read so a reset during a slow upload
	// wins over it.
	tok := s.sess.Begin()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()+formOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.render(w, http.StatusRequestEntityTooLarge, "index.html",
				s.dashboard(fmt.Sprintf("File is larger than %d MB.", s.cfg.Ingest.MaxUploadMB)))
			return
		}
		s.render(w, http.StatusBadRequest, "index.html", s.dashboard("Choose a file to upload."))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Reading upload %s: %v", header.Filename, err)
		s.render(w, http.StatusBadRequest, "index.html", s.dashboard("Could not read the uploaded file."))
		return
	}

	name := filepath.Base(header.Filename)
	result, err := s.pipe.Run(r.Context(), name, header.Header.Get("Content-Type"), data)
	if err != nil {
		log.Printf("Upload %s rejected: %v", name, err)
		s.render(w, uploadStatus(err), "index.html", s.dashboard(err.Error()))
		return
	}

	if err := s.sess.Commit(tok, result.Posts, name); err != nil {
		// A reset or newer upload won; the dashboard shows that state.
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if s.db != nil {
		if _, err := s.db.InsertUpload(name, string(result.Format), len(result.Posts), result.Fallbacks); err != nil {
			log.Printf("Recording upload %s: %v", name, err)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func uploadStatus(err error) int {
	var unsupported *posts.UnsupportedFormatError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case posts.IsStructural(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "index.html", s.dashboard("Invalid form submission."))
		return
	}

	entry := posts.Entry{
		ID:                 r.PostFormValue("id"),
		Type:               r.PostFormValue("type"),
		Content:            r.PostFormValue("content"),
		Likes:              r.PostFormValue("likes"),
		Shares:             r.PostFormValue("shares"),
		Comments:           r.PostFormValue("comments"),
		Views:              r.PostFormValue("views"),
		Saves:              r.PostFormValue("saves"),
		EngagementRate:     r.PostFormValue("engagementRate"),
		Hashtags:           r.PostFormValue("hashtags"),
		Date:               r.PostFormValue("date"),
		Platform:           r.PostFormValue("platform"),
		Sentiment:          r.PostFormValue("sentimentScore"),
		PeakEngagementTime: r.PostFormValue("peakEngagementTime"),
	}

	p, err := s.pipe.FromEntry(entry)
	if err != nil {
		s.render(w, http.StatusBadRequest, "index.html", s.dashboard(err.Error()))
		return
	}
	if err := s.sess.Append(s.sess.Begin(), p); err != nil {
		log.Printf("Manual entry dropped: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	_, err := s.sess.Ask(r.Context(), r.FormValue("message"))
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		s.render(w, http.StatusBadRequest, "index.html", s.dashboard("Message cannot be empty."))
		return
	case errors.Is(err, session.ErrBusy):
		s.render(w, http.StatusTooManyRequests, "index.html", s.dashboard("The assistant is still answering the previous message."))
		return
	}
	// Other failures are recorded in the chat history.
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleAPIChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "invalid JSON body"})
		return
	}

	reply, err := s.sess.Ask(r.Context(), req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
	case errors.Is(err, assistant.ErrEmptyQuestion):
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "Message cannot be empty"})
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusTooManyRequests, chatResponse{Error: err.Error()})
	case errors.Is(err, session.ErrStale):
		writeJSON(w, http.StatusConflict, chatResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, chatResponse{Reply: session.ErrorReply, Error: err.Error()})
	}
}

type statsResponse struct {
	Source string               `json:"source,omitempty"`
	Rows   []posts.AggregateRow `json:"rows"`
	Totals posts.Totals         `json:"totals"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Snapshot()
	writeJSON(w, http.StatusOK, statsResponse{Source: snap.Source, Rows: snap.Rows, Totals: snap.Totals})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Snapshot()
	now := s.now()
	body := posts.FormatReport(snap.Rows, snap.Posts, posts.ReportOptions{
		GeneratedAt: now,
		TopPosts:    s.cfg.Report.TopPosts,
	})

	if s.db != nil {
		if _, err := s.db.InsertReport(now, len(snap.Posts), body); err != nil {
			log.Printf("Archiving report: %v", err)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", posts.ReportFilename))
	io.WriteString(w, body)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Reports []database.Report
		Uploads []database.Upload
	}
	if s.db != nil {
		var err error
		data.Reports, err = s.db.ListReports(50)
		if err != nil {
			log.Printf("Listing reports: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		data.Uploads, err = s.db.ListUploads(20)
		if err != nil {
			log.Printf("Listing uploads: %v", err)
		}
	}
	s.render(w, http.StatusOK, "reports.html", data)
}

func (s *Server) handleArchivedReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || s.db == nil {
		http.NotFound(w, r)
		return
	}

	rep, err := s.db.GetReport(id)
	if err != nil {
		log.Printf("Loading report %d: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rep == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, rep.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encoding JSON response: %v", err)
	}
}
