package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLead(t *testing.T, db *DB, userID int64) *models.Lead {
	t.Helper()
	lead := models.NewLead(userID, userID*10, "parent", time.Now())
	lead.State = models.StateQualified
	lead.Locale = models.LocaleEN
	lead.Phone = "+998901234567"
	require.NoError(t, db.UpsertLead(context.Background(), lead))
	return lead
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)

	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	seedLead(t, db, 1)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	lead, err := db.GetLead(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", lead.Phone)
}

func TestNewDB_CorruptedFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "broken.db")
	garbage := strings.Repeat("this is definitely not a sqlite file ", 200)
	require.NoError(t, os.WriteFile(dbPath, []byte(garbage), 0o644))

	logger := zerolog.Nop()
	_, err := NewDB(dbPath, &logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreCorrupted)
}

func TestNewDB_SchemaTooNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_meta SET version = ?`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewDB(dbPath, &logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()

	t.Run("GetLead_Error", func(t *testing.T) {
		_, err := db.GetLead(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpsertLead_Error", func(t *testing.T) {
		assert.Error(t, db.UpsertLead(ctx, models.NewLead(1, 1, "", time.Now())))
	})

	t.Run("GetBookingsDue_Error", func(t *testing.T) {
		_, err := db.GetBookingsDue(ctx, models.KindReminder, time.Now())
		assert.Error(t, err)
	})

	t.Run("MarkSent_Error", func(t *testing.T) {
		_, err := db.MarkSent(ctx, 1, models.KindReminder, time.Now())
		assert.Error(t, err)
	})

	t.Run("CreateCRMTask_Error", func(t *testing.T) {
		assert.Error(t, db.CreateCRMTask(ctx, &models.CRMTask{}))
	})

	t.Run("CountLeads_Error", func(t *testing.T) {
		_, _, err := db.CountLeads(ctx)
		assert.Error(t, err)
	})
}
