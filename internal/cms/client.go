// Package cms is a thin REST client for the headless content store that owns
// events, volunteer application drafts and uploaded files.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

const (
	draftsPath     = "/api/volunteer-application-drafts"
	eventsPath     = "/api/events"
	uploadPath     = "/api/upload"
	uploadFilesURL = "/api/upload/files"
	mePath         = "/api/users/me"
)

// Error is a non-2xx answer from the content store.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cms: status %d", e.Status)
	}
	return fmt.Sprintf("cms: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the content store.
func IsNotFound(err error) bool {
	var cmsErr *Error
	return errors.As(err, &cmsErr) && cmsErr.Status == http.StatusNotFound
}

// Entry is a single collection entry as returned by the store. Keys are
// backend field names.
type Entry map[string]any

// DocumentID returns the stable identifier used to address the entry.
func (e Entry) DocumentID() string {
	if v, ok := e["documentId"].(string); ok && v != "" {
		return v
	}
	// Older stores address entries by numeric id only.
	if n, ok := e["id"].(float64); ok {
		return strconv.Itoa(int(n))
	}
	return ""
}

// Client talks to the content store with a privileged service token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a Client. An empty baseURL is accepted; every call will then
// fail at the network layer.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "cms"),
	}
}

// FindDrafts returns every draft owned by userID in response order.
func (c *Client) FindDrafts(ctx context.Context, userID int) ([]Entry, error) {
	q := url.Values{}
	q.Set("filters[users_permissions_user][id][$eq]", strconv.Itoa(userID))
	q.Set("populate", "*")

	var env struct {
		Data []Entry `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, draftsPath, q, nil, c.token, &env); err != nil {
		return nil, fmt.Errorf("find drafts: %w", err)
	}
	return env.Data, nil
}

// CreateDraft creates a new draft entry.
func (c *Client) CreateDraft(ctx context.Context, data map[string]any) (Entry, error) {
	var env struct {
		Data Entry `json:"data"`
	}
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPost, draftsPath, nil, body, c.token, &env); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return env.Data, nil
}

// UpdateDraft replaces the provided fields of an existing draft.
func (c *Client) UpdateDraft(ctx context.Context, documentID string, data map[string]any) (Entry, error) {
	var env struct {
		Data Entry `json:"data"`
	}
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPut, draftsPath+"/"+url.PathEscape(documentID), nil, body, c.token, &env); err != nil {
		return nil, fmt.Errorf("update draft %s: %w", documentID, err)
	}
	return env.Data, nil
}

// DeleteDraft removes a draft by its document id.
func (c *Client) DeleteDraft(ctx context.Context, documentID string) error {
	if err := c.do(ctx, http.MethodDelete, draftsPath+"/"+url.PathEscape(documentID), nil, nil, c.token, nil); err != nil {
		return fmt.Errorf("delete draft %s: %w", documentID, err)
	}
	return nil
}

// GetEvent fetches one event with its registrants populated.
func (c *Client) GetEvent(ctx context.Context, documentID string) (*model.Event, error) {
	q := url.Values{}
	q.Set("populate", "registrants")

	var env struct {
		Data *model.Event `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, eventsPath+"/"+url.PathEscape(documentID), q, nil, c.token, &env); err != nil {
		return nil, fmt.Errorf("get event %s: %w", documentID, err)
	}
	if env.Data == nil {
		return nil, &Error{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return env.Data, nil
}

// ListEvents returns events in the given lifecycle state ordered by start.
// An empty state lists every event.
func (c *Client) ListEvents(ctx context.Context, state string) ([]model.Event, error) {
	q := url.Values{}
	if state != "" {
		q.Set("filters[state][$eq]", state)
	}
	q.Set("sort", "starts_at:asc")
	q.Set("populate", "registrants")
	q.Set("pagination[pageSize]", "100")

	var env struct {
		Data []model.Event `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, eventsPath, q, nil, c.token, &env); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return env.Data, nil
}

// UpdateEventRegistration replaces the registrant list and remaining seat
// counter of an event in one write. There is no version check.
func (c *Client) UpdateEventRegistration(ctx context.Context, documentID string, registrantIDs []int, seatsRemaining int) error {
	body := map[string]any{
		"data": map[string]any{
			"registrants":     registrantIDs,
			"seats_remaining": seatsRemaining,
		},
	}
	if err := c.do(ctx, http.MethodPut, eventsPath+"/"+url.PathEscape(documentID), nil, body, c.token, nil); err != nil {
		return fmt.Errorf("update event %s: %w", documentID, err)
	}
	return nil
}

// Upload posts one file to the upload endpoint and returns the descriptors
// the store reports as created.
func (c *Client) Upload(ctx context.Context, name, contentType string, content io.Reader) ([]model.UploadedFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var files []model.UploadedFile
	if err := c.send(req, c.token, &files); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return files, nil
}

// RecentFiles lists the most recently created uploads, newest first.
func (c *Client) RecentFiles(ctx context.Context, limit int) ([]model.UploadedFile, error) {
	q := url.Values{}
	q.Set("sort", "createdAt:DESC")
	q.Set("pagination[pageSize]", strconv.Itoa(limit))

	var files []model.UploadedFile
	if err := c.do(ctx, http.MethodGet, uploadFilesURL, q, nil, c.token, &files); err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	return files, nil
}

// Me resolves the store user behind a caller's own bearer token.
func (c *Client) Me(ctx context.Context, userToken string) (model.Member, error) {
	var m model.Member
	if err := c.do(ctx, http.MethodGet, mePath, nil, nil, userToken, &m); err != nil {
		return model.Member{}, fmt.Errorf("resolve current user: %w", err)
	}
	if m.ID == 0 {
		return model.Member{}, &Error{Status: http.StatusUnauthorized, Message: "no user behind token"}
	}
	return m, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, token string, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, token, out)
}

func (c *Client) send(req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("cms request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error":{"message":...}} or {"message":...}.
func errorMessage(raw []byte) string {
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Error != nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return body.Message
}
