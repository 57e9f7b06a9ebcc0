package database

import (
	"context"
	"testing"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetLead(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		now := time.Now()
		lead := models.NewLead(100, 200, "mum", now)
		lead.State = models.StateAwaitingProgram
		lead.Locale = models.LocaleUZ
		lead.Phone = "+998901234567"
		lead.ParentName = "Dilnoza"
		lead.Qualification = models.Qualification{ChildrenCount: 2, ChildAges: []string{"3-6", "7-10"}}
		lead.Draft = models.BookingDraft{Campus: "mu"}
		require.NoError(t, db.UpsertLead(ctx, lead))

		got, err := db.GetLead(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(200), got.ChatID)
		assert.Equal(t, "mum", got.Username)
		assert.Equal(t, models.StateAwaitingProgram, got.State)
		assert.Equal(t, models.LocaleUZ, got.Locale)
		assert.Equal(t, "Dilnoza", got.ParentName)
		assert.Equal(t, []string{"3-6", "7-10"}, got.Qualification.ChildAges)
		assert.Equal(t, "mu", got.Draft.Campus)
		assert.Equal(t, models.CurrentLeadSchema, got.SchemaVersion)
		assert.Nil(t, got.QualifiedAt)
	})

	t.Run("UpdateKeepsCreatedAt", func(t *testing.T) {
		before, err := db.GetLead(ctx, 100)
		require.NoError(t, err)

		qualifiedAt := time.Now()
		before.State = models.StateQualified
		before.QualifiedAt = &qualifiedAt
		before.CRMContactID = 11
		before.CRMLeadID = 22
		before.Qualification.Program = "ib"
		require.NoError(t, db.UpsertLead(ctx, before))

		got, err := db.GetLead(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, models.StateQualified, got.State)
		require.NotNil(t, got.QualifiedAt)
		assert.WithinDuration(t, qualifiedAt, *got.QualifiedAt, time.Second)
		assert.Equal(t, before.CreatedAt.Unix(), got.CreatedAt.Unix())
		assert.Equal(t, "ib", got.Qualification.Program)
	})

	t.Run("ByCRMLead", func(t *testing.T) {
		got, err := db.GetLeadByCRMLead(ctx, 22)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.UserID)

		_, err = db.GetLeadByCRMLead(ctx, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = db.GetLeadByCRMLead(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CountsAndChats", func(t *testing.T) {
		seedLead(t, db, 7)

		total, qualified, err := db.CountLeads(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, 1, qualified)

		ids, err := db.ListLeadChatIDs(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{200, 70}, ids)
	})
}

func TestLeadCorruptDocument(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedLead(t, db, 5)

	_, err := db.Exec(`UPDATE leads SET document = '{not json' WHERE user_id = 5`)
	require.NoError(t, err)

	_, err = db.GetLead(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrStoreCorrupted)
}
