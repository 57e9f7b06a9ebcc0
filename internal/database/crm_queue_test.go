package database

import (
	"context"
	"testing"
	"time"

	"admissionsbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRMQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.CRMTask{TaskType: models.CRMTaskAddNote, UserID: 1, Payload: `{"lead_id":5,"text":"hi"}`}
	require.NoError(t, db.CreateCRMTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.TaskPending, task.Status)

	pending, err := db.GetPendingCRMTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.CRMTaskAddNote, pending[0].TaskType)

	t.Run("RetryInFutureIsNotPending", func(t *testing.T) {
		next := time.Now().Add(time.Hour)
		require.NoError(t, db.UpdateCRMTaskStatus(ctx, task.ID, models.TaskRetry, "timeout", &next))

		pending, err := db.GetPendingCRMTasks(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		got, err := db.GetCRMTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "timeout", *got.LastError)
	})

	t.Run("RetryDueIsPending", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, db.UpdateCRMTaskStatus(ctx, task.ID, models.TaskRetry, "timeout", &past))

		pending, err := db.GetPendingCRMTasks(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("Failed", func(t *testing.T) {
		require.NoError(t, db.UpdateCRMTaskStatus(ctx, task.ID, models.TaskFailed, "gave up", nil))

		failed, err := db.GetFailedCRMTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.NotNil(t, failed[0].ProcessedAt)
	})

	t.Run("MissingTask", func(t *testing.T) {
		_, err := db.GetCRMTask(ctx, 9999)
		assert.Error(t, err)
	})
}
