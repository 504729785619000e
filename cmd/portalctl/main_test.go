package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms/cmstest"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
)

func withCMS(t *testing.T) *cmstest.Server {
	t.Helper()
	srv := cmstest.NewServer()
	t.Cleanup(srv.Close)
	t.Setenv("CMS_URL", srv.URL)
	t.Setenv("SESSION_SECRET", "ctl-secret")
	t.Setenv("LOG_LEVEL", "error")
	return srv
}

func TestEventsCommandFlagsDrift(t *testing.T) {
	srv := withCMS(t)
	srv.AddEvent(model.Event{DocumentID: "gala", Title: "Gala", State: "upcoming", Seats: 2, SeatsRemaining: 2})
	srv.AddEvent(model.Event{DocumentID: "oversold", Title: "Picnic", State: "upcoming", Seats: 2, SeatsRemaining: 0, Registrants: []model.Member{{ID: 1}}})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"events"}, &out))

	text := out.String()
	assert.Contains(t, text, "Gala")
	assert.Contains(t, text, "Picnic")
	assert.Contains(t, text, "warning: oversold")
	assert.NotContains(t, text, "warning: gala")
}

func TestDraftCommand(t *testing.T) {
	srv := withCMS(t)
	srv.AddDraft(map[string]any{"users_permissions_user": 42, "city": "Ghent"})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"draft", "-user", "42"}, &out))
	assert.Contains(t, out.String(), "Ghent")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"draft", "-user", "7"}, &out))
	assert.Contains(t, out.String(), "no saved draft")

	assert.Error(t, run(context.Background(), []string{"draft"}, &out))
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	withCMS(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"token", "-id", "42", "-cms-token", "abc", "-ttl", "1h"}, &out))

	p, err := session.NewVerifier("ctl-secret").Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, 42, p.ID)
	assert.Equal(t, "abc", p.Token)
}

func TestUsageErrors(t *testing.T) {
	withCMS(t)
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	assert.ErrorIs(t, run(context.Background(), nil, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"bogus"}, &out), errUsage)
	assert.Error(t, run(context.Background(), []string{"token", "-id", "1"}, &out))
	assert.ErrorContains(t, run(context.Background(), []string{"outcomes"}, &out), "DATABASE_URL")
}

type fakeOutcomes struct {
	rows []model.SaveOutcome
	err  error
}

func (f fakeOutcomes) ListRecent(context.Context, int, int) ([]model.SaveOutcome, error) {
	return f.rows, f.err
}

func TestListOutcomes(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := fakeOutcomes{rows: []model.SaveOutcome{
		{UserID: 7, Outcome: "persisted", DraftID: "draft-1", CreatedAt: at},
		{UserID: 7, Outcome: "not_persisted", Reason: "cms down", CreatedAt: at},
	}}

	var out bytes.Buffer
	require.NoError(t, listOutcomes(context.Background(), repo, 7, 10, &out))
	assert.Contains(t, out.String(), "draft-1")
	assert.Contains(t, out.String(), "cms down")
	assert.Contains(t, out.String(), "1 of 2 saves were not persisted")

	err := listOutcomes(context.Background(), fakeOutcomes{err: errors.New("boom")}, 0, 10, &out)
	assert.EqualError(t, err, "boom")
}
