package dedupe

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/issuegate/internal/storage"
)

func openTestSQLite(t *testing.T, opts Options) *SQLite {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "issuegate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLite(db, opts)
}

func TestSQLiteContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return openTestSQLite(t, Options{})
	})
}

func TestSQLiteClock(t *testing.T) {
	runClockContract(t, func(t *testing.T, opts Options) (Store, func(time.Duration)) {
		return openTestSQLite(t, opts), nil
	})
}

func TestSQLitePrune(t *testing.T) {
	runPruneContract(t, func(t *testing.T, opts Options) Store {
		return openTestSQLite(t, opts)
	})
}

func TestSQLiteClaimTokenIsStored(t *testing.T) {
	s := openTestSQLite(t, Options{})
	token := claim(t, s, "tok")

	var stored string
	require.NoError(t, s.db.QueryRow(
		"SELECT claim_token FROM webhook_deliveries WHERE delivery_id = ?;", "tok").Scan(&stored))
	assert.Equal(t, token, stored)

	require.NoError(t, s.MarkProcessed(context.Background(), "tok", token))
	var cleared sql.NullString
	require.NoError(t, s.db.QueryRow(
		"SELECT claim_token FROM webhook_deliveries WHERE delivery_id = ?;", "tok").Scan(&cleared))
	assert.False(t, cleared.Valid, "processed records drop the claim token")
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "issuegate.db")

	db, err := storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewSQLite(db, Options{}).MarkProcessed(ctx, "persisted", ""))
	require.NoError(t, db.Close())

	db, err = storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLite(db, Options{})
	dup, err := s.IsDuplicate(ctx, "persisted")
	require.NoError(t, err)
	assert.True(t, dup)

	n, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
