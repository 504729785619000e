// Package upload gets application attachments into the content store.
//
// The store's upload endpoint sometimes answers with a server error after it
// has durably stored the file. Uploader works around that with a fixed chain:
//
//  1. binary upload under a minted, content-blind name
//  2. after a short delay, look for that name among the newest files
//  3. binary upload again with a .bin extension
//  4. look for the .bin name among the newest files
//
// Every step is best effort. Upload never returns an error to its caller;
// the Result says whether a file identifier was obtained and how.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

const (
	// MaxSize is the largest payload accepted, in bytes.
	MaxSize = 10 << 20
	// DefaultReconcileDelay is how long the store gets to make a file visible
	// before the recent-files listing is searched.
	DefaultReconcileDelay = 1500 * time.Millisecond

	recentPageSize = 10
	binaryMIME     = "application/octet-stream"
)

var (
	ErrTooLarge  = fmt.Errorf("file exceeds %d bytes", MaxSize)
	ErrEmpty     = errors.New("file is empty")
	ErrNotStored = errors.New("file could not be stored")
)

// Store is the part of the content store the uploader needs.
type Store interface {
	Upload(ctx context.Context, name, contentType string, content io.Reader) ([]model.UploadedFile, error)
	RecentFiles(ctx context.Context, limit int) ([]model.UploadedFile, error)
}

// File is one attachment received from the form.
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Strategy names the step of the chain that produced a Result.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyBinary
	StrategyReconcile
	StrategyFallback
	StrategyFallbackReconcile
)

func (s Strategy) String() string {
	switch s {
	case StrategyBinary:
		return "binary"
	case StrategyReconcile:
		return "reconcile"
	case StrategyFallback:
		return "fallback"
	case StrategyFallbackReconcile:
		return "fallback-reconcile"
	default:
		return "none"
	}
}

// Result is the outcome of one Upload call.
type Result struct {
	// File is nil when no identifier could be obtained.
	File *model.UploadedFile
	// Name is the last name minted for the file.
	Name     string
	Strategy Strategy
	// Recovered is set when the store reported a failure but the file was
	// found stored anyway.
	Recovered bool
	// Err explains an absent File. It is informational only.
	Err error
}

// OK reports whether an identifier was obtained.
func (r Result) OK() bool { return r.File != nil }

// Uploader runs the upload chain against a Store.
type Uploader struct {
	store  Store
	delay  time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// New constructs an Uploader. A non-positive delay selects
// DefaultReconcileDelay.
func New(store Store, delay time.Duration, logger *slog.Logger) *Uploader {
	if delay <= 0 {
		delay = DefaultReconcileDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		store:  store,
		delay:  delay,
		now:    time.Now,
		sleep:  sleepCtx,
		logger: logger.With("component", "uploader"),
	}
}

// Upload stores f and returns the identifier the store assigned to it.
func (u *Uploader) Upload(ctx context.Context, f File) Result {
	if len(f.Content) > MaxSize {
		return Result{Err: ErrTooLarge}
	}
	if len(f.Content) == 0 {
		return Result{Err: ErrEmpty}
	}

	log := u.logger.With("filename", f.Filename, "size", len(f.Content))
	prefix := namePrefix(f.ContentType)

	name := u.mint(prefix, strings.ToLower(filepath.Ext(f.Filename)))
	file, err := u.attempt(ctx, name, f.Content)
	if err == nil {
		return Result{File: file, Name: name, Strategy: StrategyBinary}
	}
	log.Warn("upload reported failure", "name", name, "strategy", StrategyBinary, "error", err)

	if file, ok := u.reconcile(ctx, name); ok {
		log.Warn("upload stored despite reported failure", "name", name, "file_id", file.ID)
		return Result{File: file, Name: name, Strategy: StrategyReconcile, Recovered: true}
	}
	if ctx.Err() != nil {
		return Result{Name: name, Strategy: StrategyReconcile, Err: ctx.Err()}
	}

	name = u.mint(prefix, ".bin")
	file, err = u.attempt(ctx, name, f.Content)
	if err == nil {
		return Result{File: file, Name: name, Strategy: StrategyFallback}
	}
	log.Warn("upload reported failure", "name", name, "strategy", StrategyFallback, "error", err)

	if file, ok := u.reconcile(ctx, name); ok {
		log.Warn("upload stored despite reported failure", "name", name, "file_id", file.ID)
		return Result{File: file, Name: name, Strategy: StrategyFallbackReconcile, Recovered: true}
	}

	log.Error("upload failed on every strategy", "name", name)
	err = ErrNotStored
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return Result{Name: name, Strategy: StrategyFallbackReconcile, Err: err}
}

func (u *Uploader) attempt(ctx context.Context, name string, content []byte) (*model.UploadedFile, error) {
	files, err := u.store.Upload(ctx, name, binaryMIME, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("store reported no created files")
	}
	f := files[0]
	return &f, nil
}

// reconcile waits for the store to settle and then searches the newest files
// for an exact name match.
func (u *Uploader) reconcile(ctx context.Context, name string) (*model.UploadedFile, bool) {
	if err := u.sleep(ctx, u.delay); err != nil {
		return nil, false
	}
	files, err := u.store.RecentFiles(ctx, recentPageSize)
	if err != nil {
		u.logger.Warn("recent files lookup failed", "name", name, "error", err)
		return nil, false
	}
	for i := range files {
		if files[i].Name == name {
			f := files[i]
			return &f, true
		}
	}
	return nil, false
}

func (u *Uploader) mint(prefix, ext string) string {
	return fmt.Sprintf("%s%d%s", prefix, u.now().UnixMilli(), ext)
}

// namePrefix classifies a MIME type into the store's naming buckets.
func namePrefix(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "img_"
	case ct == "application/pdf",
		ct == "application/msword",
		ct == "application/rtf",
		strings.HasPrefix(ct, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(ct, "application/vnd.oasis.opendocument."):
		return "doc_"
	case strings.HasPrefix(ct, "text/"):
		return "txt_"
	default:
		return "file_"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
