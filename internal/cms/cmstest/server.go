// Package cmstest provides an in-memory content store speaking the same REST
// dialect as the real one, for use in tests.
package cmstest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

// Call is one request received by the fake store.
type Call struct {
	Method string
	Path   string
	Body   map[string]any
}

// Server is a fake content store. Zero values of the exported knobs give a
// well-behaved store.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	drafts   []map[string]any
	events   map[string]*storedEvent
	files    []model.UploadedFile
	users    map[string]model.Member
	calls    []Call
	uploadNo int

	// FailUploads makes the Nth upload calls (1-based) answer 500 after the
	// file has been stored.
	FailUploads map[int]bool
	// LoseUploads makes the Nth upload calls answer 500 without storing.
	LoseUploads map[int]bool
	// FailDraftWrites makes draft create and update answer 500.
	FailDraftWrites bool
	// Outage, when set, makes every call answer 503 with this message.
	Outage string
	// OnEventRead runs after an event snapshot was taken and before it is
	// written to the response.
	OnEventRead func(documentID string)
}

type storedEvent struct {
	event       model.Event
	registrants []int
}

// NewServer starts a fake store. Close it with t.Cleanup(srv.Close).
func NewServer() *Server {
	s := &Server{
		nextID: 1,
		events: make(map[string]*storedEvent),
		users:  make(map[string]model.Member),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	return s
}

// AddUser registers a user reachable through /api/users/me with token.
func (s *Server) AddUser(token string, m model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = m
}

// AddEvent stores an event. Registrants are kept by id only.
func (s *Server) AddEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(e.Registrants))
	for _, m := range e.Registrants {
		ids = append(ids, m.ID)
	}
	e.Registrants = nil
	s.events[e.DocumentID] = &storedEvent{event: e, registrants: ids}
}

// Event returns the stored state of an event.
func (s *Server) Event(documentID string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.events[documentID]
	if !ok {
		return model.Event{}, false
	}
	return s.renderEvent(se), true
}

// AddDraft seeds a raw draft entry and returns its document id.
func (s *Server) AddDraft(fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertDraft(fields)
}

// Drafts returns a copy of every stored draft.
func (s *Server) Drafts() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, copyMap(d))
	}
	return out
}

// Files returns every stored upload.
func (s *Server) Files() []model.UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.UploadedFile(nil), s.files...)
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the received requests matching method and path prefix.
func (s *Server) CallsTo(method, pathPrefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Body: body})
	outage := s.Outage
	s.mu.Unlock()
	if outage != "" {
		writeError(w, http.StatusServiceUnavailable, outage)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/api/users/me":
		s.handleMe(w, r)
	case path == "/api/upload" && r.Method == http.MethodPost:
		s.handleUpload(w, r)
	case path == "/api/upload/files" && r.Method == http.MethodGet:
		s.handleRecentFiles(w, r)
	case path == "/api/volunteer-application-drafts":
		s.handleDraftCollection(w, r, body)
	case strings.HasPrefix(path, "/api/volunteer-application-drafts/"):
		s.handleDraftItem(w, r, strings.TrimPrefix(path, "/api/volunteer-application-drafts/"), body)
	case path == "/api/events" && r.Method == http.MethodGet:
		s.handleListEvents(w, r)
	case strings.HasPrefix(path, "/api/events/"):
		s.handleEventItem(w, r, strings.TrimPrefix(path, "/api/events/"), body)
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	m, ok := s.users[token]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "Files are empty")
		return
	}

	s.mu.Lock()
	s.uploadNo++
	n := s.uploadNo
	lose, fail := s.LoseUploads[n], s.FailUploads[n]
	var created []model.UploadedFile
	if !lose {
		for _, fh := range headers {
			id := s.nextID
			s.nextID++
			f := model.UploadedFile{
				ID:        id,
				Name:      fh.Filename,
				URL:       fmt.Sprintf("/uploads/%s", fh.Filename),
				Mime:      fh.Header.Get("Content-Type"),
				Size:      float64(fh.Size) / 1024,
				CreatedAt: time.Now().UTC(),
			}
			s.files = append(s.files, f)
			created = append(created, f)
		}
	}
	s.mu.Unlock()

	if lose || fail {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRecentFiles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("pagination[pageSize]"))
	if limit <= 0 {
		limit = 25
	}
	s.mu.Lock()
	files := append([]model.UploadedFile(nil), s.files...)
	s.mu.Unlock()

	// Newest first; ids grow monotonically.
	sort.SliceStable(files, func(i, j int) bool { return files[i].ID > files[j].ID })
	if len(files) > limit {
		files = files[:limit]
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleDraftCollection(w http.ResponseWriter, r *http.Request, body map[string]any) {
	switch r.Method {
	case http.MethodGet:
		owner := r.URL.Query().Get("filters[users_permissions_user][id][$eq]")
		s.mu.Lock()
		var out []map[string]any
		for _, d := range s.drafts {
			if owner == "" || fmt.Sprint(d["users_permissions_user"]) == owner {
				out = append(out, s.renderDraft(d))
			}
		}
		s.mu.Unlock()
		if out == nil {
			out = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]any{}})
	case http.MethodPost:
		if s.FailDraftWrites {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		data, _ := body["data"].(map[string]any)
		s.mu.Lock()
		docID := s.insertDraft(data)
		out := s.renderDraft(s.findDraft(docID))
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"data": out})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleDraftItem(w http.ResponseWriter, r *http.Request, docID string, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDraft(docID)
	if d == nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"data": s.renderDraft(d)})
	case http.MethodPut:
		if s.FailDraftWrites {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		data, _ := body["data"].(map[string]any)
		for k, v := range data {
			d[k] = v
		}
		d["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		writeJSON(w, http.StatusOK, map[string]any{"data": s.renderDraft(d)})
	case http.MethodDelete:
		for i, existing := range s.drafts {
			if existing["documentId"] == docID {
				s.drafts = append(s.drafts[:i], s.drafts[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("filters[state][$eq]")
	s.mu.Lock()
	var out []model.Event
	for _, se := range s.events {
		if state == "" || se.event.State == state {
			out = append(out, s.renderEvent(se))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if out == nil {
		out = []model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleEventItem(w http.ResponseWriter, r *http.Request, docID string, body map[string]any) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		se, ok := s.events[docID]
		var snapshot model.Event
		if ok {
			snapshot = s.renderEvent(se)
		}
		hook := s.OnEventRead
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		if hook != nil {
			hook(docID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": snapshot})
	case http.MethodPut:
		s.mu.Lock()
		defer s.mu.Unlock()
		se, ok := s.events[docID]
		if !ok {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		data, _ := body["data"].(map[string]any)
		if raw, ok := data["registrants"].([]any); ok {
			ids := make([]int, 0, len(raw))
			for _, v := range raw {
				if n, ok := v.(float64); ok {
					ids = append(ids, int(n))
				}
			}
			se.registrants = ids
		}
		if n, ok := data["seats_remaining"].(float64); ok {
			se.event.SeatsRemaining = int(n)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": s.renderEvent(se)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// insertDraft must be called with s.mu held.
func (s *Server) insertDraft(fields map[string]any) string {
	id := s.nextID
	s.nextID++
	d := copyMap(fields)
	d["id"] = float64(id)
	d["documentId"] = fmt.Sprintf("draft-%d", id)
	now := time.Now().UTC().Format(time.RFC3339)
	d["createdAt"] = now
	d["updatedAt"] = now
	d["publishedAt"] = now
	s.drafts = append(s.drafts, d)
	return d["documentId"].(string)
}

func (s *Server) findDraft(docID string) map[string]any {
	for _, d := range s.drafts {
		if d["documentId"] == docID {
			return d
		}
	}
	return nil
}

// renderDraft populates media relations the way populate=* does.
func (s *Server) renderDraft(d map[string]any) map[string]any {
	out := copyMap(d)
	for k, v := range out {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		var media []any
		for _, item := range list {
			n, ok := item.(float64)
			if !ok {
				media = nil
				break
			}
			f, found := s.fileByID(int(n))
			if !found {
				media = nil
				break
			}
			media = append(media, map[string]any{
				"id": float64(f.ID), "name": f.Name, "url": f.URL, "mime": f.Mime,
			})
		}
		if media != nil {
			out[k] = media
		}
	}
	return out
}

func (s *Server) fileByID(id int) (model.UploadedFile, bool) {
	for _, f := range s.files {
		if f.ID == id {
			return f, true
		}
	}
	return model.UploadedFile{}, false
}

func (s *Server) renderEvent(se *storedEvent) model.Event {
	e := se.event
	e.Registrants = make([]model.Member, 0, len(se.registrants))
	for _, id := range se.registrants {
		m := model.Member{ID: id}
		for _, u := range s.users {
			if u.ID == id {
				m = u
				break
			}
		}
		e.Registrants = append(e.Registrants, m)
	}
	return e
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"data":  nil,
		"error": map[string]any{"status": status, "message": msg},
	})
}
