package upload

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

var errServer = errors.New("cms: status 500")

type sentFile struct {
	name        string
	contentType string
	size        int
}

// fakeStore records uploads; uploadFn and recentFn script the answers.
// n is the 1-based call number.
type fakeStore struct {
	mu          sync.Mutex
	sent        []sentFile
	recentCalls int
	uploadFn    func(n int, name string) ([]model.UploadedFile, error)
	recentFn    func(n int) ([]model.UploadedFile, error)
}

func (s *fakeStore) Upload(_ context.Context, name, contentType string, content io.Reader) ([]model.UploadedFile, error) {
	b, _ := io.ReadAll(content)
	s.mu.Lock()
	s.sent = append(s.sent, sentFile{name: name, contentType: contentType, size: len(b)})
	n := len(s.sent)
	s.mu.Unlock()
	if s.uploadFn == nil {
		return []model.UploadedFile{{ID: n, Name: name}}, nil
	}
	return s.uploadFn(n, name)
}

func (s *fakeStore) RecentFiles(_ context.Context, limit int) ([]model.UploadedFile, error) {
	s.mu.Lock()
	s.recentCalls++
	n := s.recentCalls
	s.mu.Unlock()
	if limit != recentPageSize {
		return nil, errors.New("unexpected page size")
	}
	if s.recentFn == nil {
		return nil, nil
	}
	return s.recentFn(n)
}

const frozenMillis = 1700000000000

func newTestUploader(store Store) (*Uploader, *[]time.Duration) {
	u := New(store, 0, nil)
	u.now = func() time.Time { return time.UnixMilli(frozenMillis) }
	var slept []time.Duration
	u.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return u, &slept
}

func pdf() File {
	return File{Filename: "Curriculum Vitae.PDF", ContentType: "application/pdf", Content: []byte("%PDF-1.7")}
}

func TestUploadFirstStrategySucceeds(t *testing.T) {
	store := &fakeStore{}
	u, slept := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())

	require.True(t, res.OK())
	assert.Equal(t, StrategyBinary, res.Strategy)
	assert.False(t, res.Recovered)
	assert.Equal(t, "doc_1700000000000.pdf", res.Name)
	require.Len(t, store.sent, 1)
	assert.Equal(t, "application/octet-stream", store.sent[0].contentType, "content is re-wrapped as binary")
	assert.Empty(t, *slept)
	assert.Zero(t, store.recentCalls)
}

func TestUploadRecoveredByReconcilePoll(t *testing.T) {
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) { return nil, errServer },
		recentFn: func(n int) ([]model.UploadedFile, error) {
			return []model.UploadedFile{
				{ID: 90, Name: "img_1699999999999.png"},
				{ID: 91, Name: "doc_1700000000000.pdf"},
			}, nil
		},
	}
	u, slept := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())

	require.True(t, res.OK())
	assert.Equal(t, 91, res.File.ID)
	assert.Equal(t, StrategyReconcile, res.Strategy)
	assert.True(t, res.Recovered)
	assert.Equal(t, []time.Duration{DefaultReconcileDelay}, *slept)
	assert.Len(t, store.sent, 1, "no fallback upload once the file is found")
}

func TestUploadFallbackSucceeds(t *testing.T) {
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) {
			if n == 1 {
				return nil, errServer
			}
			return []model.UploadedFile{{ID: 7, Name: name}}, nil
		},
	}
	u, _ := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())

	require.True(t, res.OK())
	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.Equal(t, "doc_1700000000000.bin", res.Name)
	require.Len(t, store.sent, 2)
	assert.Equal(t, "doc_1700000000000.bin", store.sent[1].name)
}

// The endpoint stores the file on both attempts but reports failure each
// time; the listing only catches up on the second poll.
func TestUploadFallbackChainFindsFileAfterFallback(t *testing.T) {
	var mu sync.Mutex
	var stored []model.UploadedFile
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) {
			mu.Lock()
			stored = append(stored, model.UploadedFile{ID: 100 + n, Name: name})
			mu.Unlock()
			return nil, errServer
		},
		recentFn: func(n int) ([]model.UploadedFile, error) {
			if n == 1 {
				return nil, nil
			}
			mu.Lock()
			defer mu.Unlock()
			out := make([]model.UploadedFile, 0, len(stored))
			for i := len(stored) - 1; i >= 0; i-- {
				out = append(out, stored[i])
			}
			return out, nil
		},
	}
	u, slept := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())

	require.True(t, res.OK(), "identifier from the final poll, not absence")
	assert.Equal(t, 102, res.File.ID)
	assert.Equal(t, "doc_1700000000000.bin", res.File.Name)
	assert.Equal(t, StrategyFallbackReconcile, res.Strategy)
	assert.True(t, res.Recovered)
	assert.Len(t, *slept, 2)
	assert.Equal(t, 2, store.recentCalls)
}

func TestUploadGivesUp(t *testing.T) {
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) { return nil, errServer },
		recentFn: func(n int) ([]model.UploadedFile, error) { return nil, errors.New("listing down") },
	}
	u, _ := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrNotStored)
	assert.Len(t, store.sent, 2)
	assert.Equal(t, 2, store.recentCalls)
}

func TestUploadEmptyCreatedListIsAFailure(t *testing.T) {
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) { return nil, nil },
	}
	u, _ := newTestUploader(store)

	res := u.Upload(context.Background(), pdf())
	assert.False(t, res.OK())
	assert.Len(t, store.sent, 2)
}

func TestUploadSizeGuard(t *testing.T) {
	store := &fakeStore{}
	u, _ := newTestUploader(store)

	res := u.Upload(context.Background(), File{Filename: "big.pdf", ContentType: "application/pdf", Content: make([]byte, MaxSize+1)})
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrTooLarge)
	assert.Empty(t, store.sent, "no network call")
	assert.Zero(t, store.recentCalls)

	res = u.Upload(context.Background(), File{Filename: "edge.pdf", ContentType: "application/pdf", Content: make([]byte, MaxSize)})
	assert.True(t, res.OK(), "exactly the ceiling is accepted")
}

func TestUploadEmptyFile(t *testing.T) {
	store := &fakeStore{}
	u, _ := newTestUploader(store)

	res := u.Upload(context.Background(), File{Filename: "empty.txt"})
	assert.ErrorIs(t, res.Err, ErrEmpty)
	assert.Empty(t, store.sent)
}

func TestUploadStopsWhenContextCancelled(t *testing.T) {
	store := &fakeStore{
		uploadFn: func(n int, name string) ([]model.UploadedFile, error) { return nil, errServer },
	}
	u, _ := newTestUploader(store)
	ctx, cancel := context.WithCancel(context.Background())
	u.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	res := u.Upload(ctx, pdf())
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Len(t, store.sent, 1)
}

func TestNamePrefix(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":               "img_",
		"IMAGE/PNG":                "img_",
		"application/pdf":          "doc_",
		"application/msword":       "doc_",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "doc_",
		"text/plain; charset=utf-8": "txt_",
		"application/zip":           "file_",
		"":                          "file_",
	}
	for ct, want := range cases {
		assert.Equal(t, want, namePrefix(ct), ct)
	}
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
