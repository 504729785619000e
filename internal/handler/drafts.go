package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/service"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/upload"
)

const (
	// Four attachments at the upload limit plus the text fields.
	maxDraftBody   = 4*upload.MaxSize + 1<<20
	multipartInRAM = 32 << 20

	sectionKey = "currentSection"
)

// DraftHandler serves the volunteer application draft endpoints. Every
// response carries success:true so the form keeps working when the content
// store does not; the outcome field says what actually happened.
type DraftHandler struct {
	svc    *service.DraftService
	logger *slog.Logger
}

// NewDraftHandler constructs a DraftHandler.
func NewDraftHandler(svc *service.DraftService, logger *slog.Logger) *DraftHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftHandler{svc: svc, logger: logger.With("component", "http")}
}

type jsonDraftRequest struct {
	Fields         map[string]any `json:"fields"`
	CurrentSection int            `json:"currentSection"`
}

// Get handles GET /api/volunteer/draft
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := session.FromContext(r.Context())

	draft, err := h.svc.Load(r.Context(), p)
	if err != nil {
		h.logger.Warn("draft load failed", "user_id", p.ID, "error", err)
		writeJSON(w, http.StatusOK, model.DraftResponse{
			Success: true,
			Message: "Saved draft is unavailable right now",
		})
		return
	}
	writeJSON(w, http.StatusOK, model.DraftResponse{Success: true, Draft: draft})
}

// Save handles POST /api/volunteer/draft
// Accepts multipart/form-data (fields plus attachments) or a JSON body.
func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	p, _ := session.FromContext(r.Context())

	req, err := h.decodeSave(w, r)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn("draft body too large", "user_id", p.ID, "limit", tooLarge.Limit)
		writeJSON(w, http.StatusOK, model.DraftSaveResponse{
			Success:       true,
			Message:       "Draft is too large to save; your answers are kept in this browser",
			Outcome:       string(service.OutcomeNotPersisted),
			FailedUploads: []string{},
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.DraftSaveResponse{
			Message:       "invalid request body: " + err.Error(),
			Outcome:       string(service.OutcomeNotPersisted),
			FailedUploads: []string{},
		})
		return
	}

	res := h.svc.Save(r.Context(), p, req)
	if len(res.Dropped) > 0 {
		h.logger.Debug("draft keys ignored", "user_id", p.ID, "keys", res.Dropped)
	}

	failed := res.FailedUploads
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, http.StatusOK, model.DraftSaveResponse{
		Success:       true,
		Message:       saveMessage(res.Outcome),
		DraftID:       res.DraftID,
		Outcome:       string(res.Outcome),
		FailedUploads: failed,
	})
}

// Delete handles DELETE /api/volunteer/draft
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := session.FromContext(r.Context())

	msg := "Draft deleted"
	if err := h.svc.Delete(r.Context(), p); err != nil {
		h.logger.Warn("draft delete failed", "user_id", p.ID, "error", err)
		msg = "Draft could not be deleted right now"
	}
	writeJSON(w, http.StatusOK, model.DraftDeleteResponse{Success: true, Message: msg})
}

func saveMessage(o service.Outcome) string {
	switch o {
	case service.OutcomePersisted:
		return "Draft saved"
	case service.OutcomePersistedPartially:
		return "Draft saved, but some files could not be uploaded"
	default:
		return "Draft could not be saved right now; your answers are kept in this browser"
	}
}

func (h *DraftHandler) decodeSave(w http.ResponseWriter, r *http.Request) (service.SaveRequest, error) {
	if r.ContentLength > maxDraftBody {
		return service.SaveRequest{}, &http.MaxBytesError{Limit: maxDraftBody}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxDraftBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipart(r)
	}

	var body jsonDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.SaveRequest{}, err
	}
	if body.Fields == nil {
		body.Fields = map[string]any{}
	}
	return service.SaveRequest{Fields: body.Fields, CurrentSection: body.CurrentSection}, nil
}

func decodeMultipart(r *http.Request) (service.SaveRequest, error) {
	if err := r.ParseMultipartForm(multipartInRAM); err != nil {
		return service.SaveRequest{}, err
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	req := service.SaveRequest{
		Fields: make(map[string]any, len(form.Value)),
		Files:  make(map[string]upload.File, len(form.File)),
	}
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		if key == sectionKey {
			req.CurrentSection, _ = strconv.Atoi(strings.TrimSpace(values[0]))
			continue
		}
		req.Fields[key] = values[0]
	}
	for key, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		f, err := readPart(headers[0])
		if err != nil {
			return service.SaveRequest{}, err
		}
		req.Files[key] = f
	}
	return req, nil
}

// readPart reads at most one byte past the upload limit so the uploader can
// reject oversized files itself.
func readPart(fh *multipart.FileHeader) (upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return upload.File{}, err
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, upload.MaxSize+1))
	if err != nil {
		return upload.File{}, err
	}
	return upload.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}
