package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

type fakeDB struct {
	sql  string
	args []any
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	return nil, f.err
}

func TestRecordFillsDefaults(t *testing.T) {
	db := &fakeDB{}
	repo := NewOutcomeRepository(db)

	require.NoError(t, repo.Record(context.Background(), model.SaveOutcome{UserID: 7, Outcome: "not_persisted", Reason: "cms down"}))

	require.Len(t, db.args, 7)
	_, err := uuid.Parse(db.args[0].(string))
	assert.NoError(t, err, "id is a uuid")
	assert.Equal(t, 7, db.args[1])
	assert.Equal(t, []string{}, db.args[4], "failed uploads never NULL")
	assert.Equal(t, "cms down", db.args[5])
	assert.Contains(t, db.sql, "INSERT INTO draft_save_outcomes")
}

func TestRecordWrapsErrors(t *testing.T) {
	repo := NewOutcomeRepository(&fakeDB{err: errors.New("boom")})

	err := repo.Record(context.Background(), model.SaveOutcome{UserID: 1})
	assert.ErrorContains(t, err, "insert save outcome")

	_, err = repo.ListRecent(context.Background(), 0, 0)
	assert.ErrorContains(t, err, "list save outcomes")
}

func TestListRecentDefaultsLimit(t *testing.T) {
	db := &fakeDB{err: errors.New("stop")}
	repo := NewOutcomeRepository(db)

	_, _ = repo.ListRecent(context.Background(), 3, 0)
	assert.Equal(t, []any{3, 50}, db.args)
}
