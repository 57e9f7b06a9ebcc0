package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"
)

const bookingColumns = `id, user_id, chat_id, locale, parent_name, phone, campus, scheduled_at, status,
    reminder_sent_at, followup_sent_at, attendance_check_sent_at, created_at, updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.ChatID, &b.Locale, &b.ParentName, &b.Phone, &b.Campus, &b.ScheduledAt, &b.Status,
		&b.ReminderSentAt, &b.FollowupSentAt, &b.AttendanceCheckSentAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetActiveBooking returns the lead's booked/reminded/confirmed booking.
func (db *DB) GetActiveBooking(ctx context.Context, userID int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE user_id = ? AND status IN (?, ?, ?)
         ORDER BY id DESC LIMIT 1`,
		userID, models.BookingBooked, models.BookingReminded, models.BookingConfirmed,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active booking for %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active booking: %w", err)
	}
	return b, nil
}

// SaveBooking stores lead and its new booking in one transaction. A previous
// active booking is kept as history with status rescheduled.
func (db *DB) SaveBooking(ctx context.Context, lead *models.Lead, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := upsertLead(ctx, tx, lead); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ?
         WHERE user_id = ? AND status IN (?, ?, ?)`,
		models.BookingRescheduled, now,
		booking.UserID, models.BookingBooked, models.BookingReminded, models.BookingConfirmed,
	); err != nil {
		return fmt.Errorf("failed to supersede active booking: %w", err)
	}

	if booking.Status == "" {
		booking.Status = models.BookingBooked
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
            user_id, chat_id, locale, parent_name, phone, campus, scheduled_at, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.UserID,
		booking.ChatID,
		booking.Locale,
		booking.ParentName,
		booking.Phone,
		booking.Campus,
		booking.ScheduledAt.UTC(),
		booking.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// UpdateBookingStatus moves a booking to status if the transition is allowed
// and returns the updated row.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	current, err := db.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if !models.CanTransitionBooking(current.Status, status) {
		return nil, fmt.Errorf("%w: booking %d %s -> %s", domain.ErrInvalidTransition, id, current.Status, status)
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, now, id, current.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: booking %d changed concurrently", domain.ErrInvalidTransition, id)
	}

	current.Status = status
	current.UpdatedAt = now
	return current, nil
}

// GetBookingsDue returns bookings whose event of kind is due at asOf and has
// not been marked sent. Reminders only go out for bookings still in status
// booked whose tour has not started yet.
func (db *DB) GetBookingsDue(ctx context.Context, kind string, asOf time.Time) ([]*models.Booking, error) {
	asOf = asOf.UTC()

	var (
		query string
		args  []interface{}
	)
	switch kind {
	case models.KindReminder:
		query = `SELECT ` + bookingColumns + ` FROM bookings
            WHERE reminder_sent_at IS NULL AND status = ?
              AND scheduled_at <= ? AND scheduled_at > ?
            ORDER BY scheduled_at ASC`
		args = []interface{}{models.BookingBooked, asOf.Add(db.reminderLead), asOf}
	case models.KindFollowup:
		query = `SELECT ` + bookingColumns + ` FROM bookings
            WHERE followup_sent_at IS NULL AND status = ?
              AND scheduled_at <= ?
            ORDER BY scheduled_at ASC`
		// неотмеченные туры уходят в проверку посещения, а не сюда
		args = []interface{}{models.BookingAttended, asOf.Add(-db.followupLag)}
	case models.KindAttendanceCheck:
		query = `SELECT ` + bookingColumns + ` FROM bookings
            WHERE attendance_check_sent_at IS NULL AND status IN (?, ?, ?)
              AND scheduled_at <= ?
            ORDER BY scheduled_at ASC`
		args = []interface{}{models.BookingBooked, models.BookingReminded, models.BookingConfirmed, asOf.Add(-db.followupLag)}
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}

	bookings, err := db.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get due bookings: %w", err)
	}
	return bookings, nil
}

// MarkSent records that the event of kind was delivered. It reports false
// when the marker was already set, which callers treat as a no-op. Marking a
// reminder also moves the booking from booked to reminded.
func (db *DB) MarkSent(ctx context.Context, bookingID int64, kind string, at time.Time) (bool, error) {
	var query string
	args := []interface{}{at.UTC(), at.UTC()}

	switch kind {
	case models.KindReminder:
		query = `UPDATE bookings SET reminder_sent_at = ?, updated_at = ?,
                status = CASE WHEN status = ? THEN ? ELSE status END
            WHERE id = ? AND reminder_sent_at IS NULL`
		args = append(args, models.BookingBooked, models.BookingReminded)
	case models.KindFollowup:
		query = `UPDATE bookings SET followup_sent_at = ?, updated_at = ? WHERE id = ? AND followup_sent_at IS NULL`
	case models.KindAttendanceCheck:
		query = `UPDATE bookings SET attendance_check_sent_at = ?, updated_at = ?
            WHERE id = ? AND attendance_check_sent_at IS NULL`
	default:
		return false, fmt.Errorf("unknown event kind %q", kind)
	}
	args = append(args, bookingID)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s sent: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListBookings returns bookings scheduled within [from, to).
func (db *DB) ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE scheduled_at >= ? AND scheduled_at < ?
         ORDER BY scheduled_at ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// GetLeadBookings returns the full booking history of a lead.
func (db *DB) GetLeadBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead bookings: %w", err)
	}
	return bookings, nil
}

// CountBookingsByStatus backs the staff stats command.
func (db *DB) CountBookingsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
