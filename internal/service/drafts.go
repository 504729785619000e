package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/upload"
)

// DraftStore is the draft collection of the content store.
type DraftStore interface {
	FindDrafts(ctx context.Context, userID int) ([]cms.Entry, error)
	CreateDraft(ctx context.Context, data map[string]any) (cms.Entry, error)
	UpdateDraft(ctx context.Context, documentID string, data map[string]any) (cms.Entry, error)
	DeleteDraft(ctx context.Context, documentID string) error
}

// FileUploader stores one attachment and never fails loudly.
type FileUploader interface {
	Upload(ctx context.Context, f upload.File) upload.Result
}

// OutcomeJournal keeps a record of every draft save.
type OutcomeJournal interface {
	Record(ctx context.Context, o model.SaveOutcome) error
}

// Outcome classifies what a save achieved.
type Outcome string

const (
	OutcomePersisted          Outcome = "persisted"
	OutcomePersistedPartially Outcome = "persisted_partially"
	OutcomeNotPersisted       Outcome = "not_persisted"
)

// SaveRequest is one autosave of the application form.
type SaveRequest struct {
	// Fields holds scalar values keyed by form field name.
	Fields map[string]any
	// Files holds attachments keyed by form file field name.
	Files          map[string]upload.File
	CurrentSection int
}

// SaveResult reports what a save did. Save never returns an error; callers
// decide what to tell the user from Outcome.
type SaveResult struct {
	Outcome       Outcome
	DraftID       string
	FailedUploads []string
	// Dropped lists form keys that are not known fields and were not stored.
	Dropped []string
	Reason  string
}

// DraftService reconciles the browser-side application form with the draft
// kept in the content store. One draft exists per principal by convention;
// nothing enforces it.
type DraftService struct {
	store    DraftStore
	uploader FileUploader
	journal  OutcomeJournal
	logger   *slog.Logger
}

// NewDraftService constructs a DraftService. journal may be nil.
func NewDraftService(store DraftStore, uploader FileUploader, journal OutcomeJournal, logger *slog.Logger) *DraftService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftService{
		store:    store,
		uploader: uploader,
		journal:  journal,
		logger:   logger.With("component", "drafts"),
	}
}

// Save uploads any attachments, translates the form and creates or updates
// the principal's draft. Last writer wins.
func (s *DraftService) Save(ctx context.Context, p model.Principal, req SaveRequest) SaveResult {
	log := s.logger.With("user_id", p.ID, "section", req.CurrentSection)

	payload, dropped := ForwardMap(req.Fields)
	res := SaveResult{Dropped: dropped}

	for name := range req.Files {
		if f, ok := FieldByUI(name); !ok || f.Kind() != KindFile {
			res.Dropped = append(res.Dropped, name)
		}
	}
	sort.Strings(res.Dropped)
	if len(res.Dropped) > 0 {
		log.Debug("form keys not persisted", "keys", res.Dropped)
	}

	for _, f := range FileFields() {
		file, ok := req.Files[f.UIName()]
		if !ok || len(file.Content) == 0 {
			continue
		}
		up := s.uploader.Upload(ctx, file)
		if !up.OK() {
			log.Warn("attachment not uploaded", "field", f.UIName(), "error", up.Err)
			res.FailedUploads = append(res.FailedUploads, f.UIName())
			continue
		}
		payload[f.BackendName()] = []int{up.File.ID}
	}

	payload["users_permissions_user"] = p.ID

	draftID, err := s.upsert(ctx, p.ID, payload)
	switch {
	case err != nil:
		log.Warn("draft not persisted", "error", err)
		res.Outcome = OutcomeNotPersisted
		res.Reason = err.Error()
	case len(res.FailedUploads) > 0:
		res.Outcome = OutcomePersistedPartially
		res.DraftID = draftID
	default:
		res.Outcome = OutcomePersisted
		res.DraftID = draftID
	}

	s.record(ctx, p.ID, res)
	return res
}

func (s *DraftService) upsert(ctx context.Context, userID int, payload map[string]any) (string, error) {
	existing, err := s.store.FindDrafts(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		docID := existing[0].DocumentID()
		if _, err := s.store.UpdateDraft(ctx, docID, payload); err != nil {
			return "", err
		}
		return docID, nil
	}
	created, err := s.store.CreateDraft(ctx, payload)
	if err != nil {
		return "", err
	}
	return created.DocumentID(), nil
}

func (s *DraftService) record(ctx context.Context, userID int, res SaveResult) {
	if s.journal == nil {
		return
	}
	o := model.SaveOutcome{
		UserID:        userID,
		Outcome:       string(res.Outcome),
		DraftID:       res.DraftID,
		FailedUploads: res.FailedUploads,
		Reason:        res.Reason,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.journal.Record(ctx, o); err != nil {
		s.logger.Warn("save outcome not journaled", "user_id", userID, "error", err)
	}
}

// Load returns the principal's draft as form values, or nil when none exists.
// With several drafts the first in response order is used.
func (s *DraftService) Load(ctx context.Context, p model.Principal) (model.Draft, error) {
	drafts, err := s.store.FindDrafts(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	if len(drafts) > 1 {
		s.logger.Warn("principal has several drafts", "user_id", p.ID, "count", len(drafts))
	}
	return model.Draft(ReverseMap(drafts[0])), nil
}

// Delete removes the principal's drafts. Having none is not an error.
func (s *DraftService) Delete(ctx context.Context, p model.Principal) error {
	drafts, err := s.store.FindDrafts(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("find draft: %w", err)
	}
	for _, d := range drafts {
		if err := s.store.DeleteDraft(ctx, d.DocumentID()); err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
	}
	return nil
}
