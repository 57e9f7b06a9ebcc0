package messages

import (
	"strconv"
	"strings"
)

// Inline button payload prefixes. Payloads look like "campus:mu" or
// "time:10:00"; only the first colon separates prefix from value.
const (
	PrefixLang     = "lang"
	PrefixChildren = "children"
	PrefixAge      = "age"
	PrefixProgram  = "program"
	PrefixCampus   = "campus"
	PrefixDate     = "date"
	PrefixTime     = "time"
	PrefixMenu     = "menu"
	PrefixReminder = "reminder"
	PrefixStaff    = "staff"
)

// Menu and reminder actions.
const (
	MenuBookTour       = "book_tour"
	MenuAddresses      = "addresses"
	MenuContactManager = "contact_manager"

	ReminderConfirm    = "confirm"
	ReminderReschedule = "reschedule"
	ReminderCancel     = "cancel"

	DateNextWeek = "next_week"
)

func Callback(prefix, value string) string {
	return prefix + ":" + value
}

// ParseCallback splits a payload into prefix and value. ok is false for
// payloads without a separator.
func ParseCallback(data string) (prefix, value string, ok bool) {
	return strings.Cut(data, ":")
}

// StaffCallback encodes a one-click booking status change for staff.
func StaffCallback(bookingID int64, status string) string {
	return PrefixStaff + ":" + strconv.FormatInt(bookingID, 10) + ":" + status
}

func ParseStaffCallback(data string) (bookingID int64, status string, ok bool) {
	prefix, rest, ok := ParseCallback(data)
	if !ok || prefix != PrefixStaff {
		return 0, "", false
	}
	idPart, status, ok := strings.Cut(rest, ":")
	if !ok || status == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, status, true
}
