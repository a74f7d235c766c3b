package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevoice/backend/internal/db"
	"github.com/codevoice/backend/internal/model"
)

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)[:8]
}

func newRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	testDB, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	return NewHistoryRepository(testDB)
}

func TestRecordCreatedThenClosed(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id := generateID()
	created := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordCreated(ctx, id, created))

	rec, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.SessionID)
	assert.Nil(t, rec.ClosedAt)
	assert.Equal(t, 0, rec.PeakMembers)

	closed := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordClosed(ctx, id, closed, 3))

	rec, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.ClosedAt)
	assert.Equal(t, 3, rec.PeakMembers)
}

func TestRecordClosedUnknownSession(t *testing.T) {
	repo := newRepo(t)

	err := repo.RecordClosed(context.Background(), "nope", time.Now(), 1)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestGetByIDUnknownSession(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestListRecentNewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = generateID()
		require.NoError(t, repo.RecordCreated(ctx, ids[i], base.Add(time.Duration(i)*time.Minute)))
	}

	records, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ids[4], records[0].SessionID)
	assert.Equal(t, ids[2], records[2].SessionID)
}

func TestCountOpen(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	a, b := generateID(), generateID()
	require.NoError(t, repo.RecordCreated(ctx, a, time.Now()))
	require.NoError(t, repo.RecordCreated(ctx, b, time.Now()))

	open, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	require.NoError(t, repo.RecordClosed(ctx, a, time.Now(), 1))

	open, err = repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestHistoryRoundTripProperty(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("recorded lifetimes survive a round trip", prop.ForAll(
		func(peak int, lifetimeSec int) bool {
			id := generateID()
			created := time.Now().Add(-time.Duration(lifetimeSec) * time.Second).UTC().Truncate(time.Second)
			closed := created.Add(time.Duration(lifetimeSec) * time.Second)

			if err := repo.RecordCreated(ctx, id, created); err != nil {
				return false
			}
			if err := repo.RecordClosed(ctx, id, closed, peak); err != nil {
				return false
			}

			rec, err := repo.GetByID(ctx, id)
			if err != nil || rec.ClosedAt == nil {
				return false
			}
			return rec.PeakMembers == peak && !rec.ClosedAt.Before(rec.CreatedAt)
		},
		gen.IntRange(0, 64),
		gen.IntRange(0, 86400),
	))

	properties.TestingRun(t)
}
