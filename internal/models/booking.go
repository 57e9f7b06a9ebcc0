package models

import "time"

type Booking struct {
	ID                    int64      `json:"id"`
	UserID                int64      `json:"user_id"`
	ChatID                int64      `json:"chat_id"`
	Locale                string     `json:"locale"`
	ParentName            string     `json:"parent_name"`
	Phone                 string     `json:"phone"`
	Campus                string     `json:"campus"`
	ScheduledAt           time.Time  `json:"scheduled_at"`
	Status                string     `json:"status"` // booked, reminded, confirmed, rescheduled, cancelled, attended, no_show
	ReminderSentAt        *time.Time `json:"reminder_sent_at"`
	FollowupSentAt        *time.Time `json:"followup_sent_at"`
	AttendanceCheckSentAt *time.Time `json:"attendance_check_sent_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsActive reports whether the booking still occupies the lead's slot.
func (b *Booking) IsActive() bool {
	return IsActiveBookingStatus(b.Status)
}

// SentAt returns the marker for kind.
func (b *Booking) SentAt(kind string) *time.Time {
	switch kind {
	case KindReminder:
		return b.ReminderSentAt
	case KindFollowup:
		return b.FollowupSentAt
	case KindAttendanceCheck:
		return b.AttendanceCheckSentAt
	}
	return nil
}

// DueAt derives when a scheduled event of kind falls due.
func (b *Booking) DueAt(kind string, reminderLead, followupLag time.Duration) time.Time {
	switch kind {
	case KindReminder:
		return b.ScheduledAt.Add(-reminderLead)
	default:
		return b.ScheduledAt.Add(followupLag)
	}
}

// ScheduledEvent is a derived (booking, kind, due) triple, never stored.
type ScheduledEvent struct {
	Booking *Booking
	Kind    string
	DueAt   time.Time
}

func IsActiveBookingStatus(status string) bool {
	switch status {
	case BookingBooked, BookingReminded, BookingConfirmed:
		return true
	}
	return false
}

var bookingTransitions = map[string][]string{
	BookingBooked:    {BookingReminded, BookingConfirmed, BookingRescheduled, BookingCancelled, BookingAttended, BookingNoShow},
	BookingReminded:  {BookingConfirmed, BookingRescheduled, BookingCancelled, BookingAttended, BookingNoShow},
	BookingConfirmed: {BookingRescheduled, BookingCancelled, BookingAttended, BookingNoShow},
}

// CanTransitionBooking reports whether from -> to is an allowed status change.
func CanTransitionBooking(from, to string) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
