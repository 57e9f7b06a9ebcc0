package database

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookTour(t *testing.T, db *DB, lead *models.Lead, at time.Time) *models.Booking {
	t.Helper()
	b := &models.Booking{
		UserID:      lead.UserID,
		ChatID:      lead.ChatID,
		Locale:      lead.Locale,
		Phone:       lead.Phone,
		Campus:      "mu",
		ScheduledAt: at,
	}
	lead.State = models.StateTourBooked
	require.NoError(t, db.SaveBooking(context.Background(), lead, b))
	return b
}

func TestSaveBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	at := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

	first := bookTour(t, db, lead, at)
	assert.NotZero(t, first.ID)
	assert.Equal(t, models.BookingBooked, first.Status)

	active, err := db.GetActiveBooking(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.True(t, active.ScheduledAt.Equal(at))

	storedLead, err := db.GetLead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StateTourBooked, storedLead.State)

	t.Run("SecondBookingSupersedesFirst", func(t *testing.T) {
		second := bookTour(t, db, lead, at.Add(48*time.Hour))

		active, err := db.GetActiveBooking(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)

		old, err := db.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingRescheduled, old.Status)

		history, err := db.GetLeadBookings(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("NoActiveBooking", func(t *testing.T) {
		seedLead(t, db, 2)
		_, err := db.GetActiveBooking(ctx, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUpdateBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	b := bookTour(t, db, lead, time.Now().Add(72*time.Hour))

	updated, err := db.UpdateBookingStatus(ctx, b.ID, models.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, updated.Status)

	// same status is a no-op
	_, err = db.UpdateBookingStatus(ctx, b.ID, models.BookingConfirmed)
	require.NoError(t, err)

	_, err = db.UpdateBookingStatus(ctx, b.ID, models.BookingAttended)
	require.NoError(t, err)

	_, err = db.UpdateBookingStatus(ctx, b.ID, models.BookingNoShow)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = db.UpdateBookingStatus(ctx, 12345, models.BookingAttended)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetBookingsDue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tour := time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC)

	lead := seedLead(t, db, 1)
	b := bookTour(t, db, lead, tour)

	t.Run("ReminderNotYetDue", func(t *testing.T) {
		due, err := db.GetBookingsDue(ctx, models.KindReminder, tour.Add(-25*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("ReminderDueAtLeadTime", func(t *testing.T) {
		due, err := db.GetBookingsDue(ctx, models.KindReminder, tour.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, b.ID, due[0].ID)
	})

	t.Run("ReminderSkippedAfterTourStarted", func(t *testing.T) {
		due, err := db.GetBookingsDue(ctx, models.KindReminder, tour)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("MarkSentRemovesFromDue", func(t *testing.T) {
		marked, err := db.MarkSent(ctx, b.ID, models.KindReminder, tour.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.True(t, marked)

		due, err := db.GetBookingsDue(ctx, models.KindReminder, tour.Add(-23*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingReminded, got.Status)
		require.NotNil(t, got.ReminderSentAt)
	})

	t.Run("MarkSentTwiceIsNoop", func(t *testing.T) {
		marked, err := db.MarkSent(ctx, b.ID, models.KindReminder, tour.Add(-23*time.Hour))
		require.NoError(t, err)
		assert.False(t, marked)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.ReminderSentAt.Equal(tour.Add(-24*time.Hour)))
	})

	t.Run("FollowupOnlyForAttended", func(t *testing.T) {
		// a tour nobody marked goes to the attendance check only
		for _, at := range []time.Time{tour.Add(24 * time.Hour), tour.AddDate(0, 0, 30), tour.AddDate(1, 0, 0)} {
			due, err := db.GetBookingsDue(ctx, models.KindFollowup, at)
			require.NoError(t, err)
			assert.Empty(t, due)
		}

		due, err := db.GetBookingsDue(ctx, models.KindAttendanceCheck, tour.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)

		attended := bookTour(t, db, seedLead(t, db, 2), tour)
		_, err = db.UpdateBookingStatus(ctx, attended.ID, models.BookingAttended)
		require.NoError(t, err)

		due, err = db.GetBookingsDue(ctx, models.KindFollowup, tour.Add(23*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = db.GetBookingsDue(ctx, models.KindFollowup, tour.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, attended.ID, due[0].ID)

		marked, err := db.MarkSent(ctx, attended.ID, models.KindFollowup, tour.Add(24*time.Hour))
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("CancelledNeverDue", func(t *testing.T) {
		_, err := db.UpdateBookingStatus(ctx, b.ID, models.BookingCancelled)
		require.NoError(t, err)

		for _, kind := range []string{models.KindReminder, models.KindFollowup, models.KindAttendanceCheck} {
			due, err := db.GetBookingsDue(ctx, kind, tour.Add(48*time.Hour))
			require.NoError(t, err)
			assert.Empty(t, due, kind)
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := db.GetBookingsDue(ctx, "birthday", tour)
		assert.Error(t, err)
		_, err = db.MarkSent(ctx, b.ID, "birthday", tour)
		assert.Error(t, err)
	})
}

func TestGetBookingsDue_CustomOffsets(t *testing.T) {
	db := setupTestDB(t)
	db.SetEventOffsets(2*time.Hour, time.Hour)
	ctx := context.Background()
	tour := time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC)
	bookTour(t, db, seedLead(t, db, 1), tour)

	due, err := db.GetBookingsDue(ctx, models.KindReminder, tour.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = db.GetBookingsDue(ctx, models.KindReminder, tour.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 1)

	due, err = db.GetBookingsDue(ctx, models.KindAttendanceCheck, tour.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMarkSent_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	b := bookTour(t, db, seedLead(t, db, 1), time.Now().Add(time.Hour))

	var (
		wg      sync.WaitGroup
		winners int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			marked, err := db.MarkSent(ctx, b.ID, models.KindFollowup, time.Now())
			if err == nil && marked {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestListAndCountBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

	bookTour(t, db, seedLead(t, db, 1), base)
	b2 := bookTour(t, db, seedLead(t, db, 2), base.Add(24*time.Hour))
	bookTour(t, db, seedLead(t, db, 3), base.AddDate(0, 1, 0))
	_, err := db.UpdateBookingStatus(ctx, b2.ID, models.BookingCancelled)
	require.NoError(t, err)

	list, err := db.ListBookings(ctx, base, base.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	counts, err := db.CountBookingsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.BookingBooked])
	assert.Equal(t, 1, counts[models.BookingCancelled])
}
