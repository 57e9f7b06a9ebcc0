package messages

import (
	"fmt"
	"strings"
	"time"

	"admissionsbot/internal/models"
)

// Staff notifications go to the admissions chat in English.

const staffTimeLayout = "2006-01-02 15:04"

// StaffChatID is the admissions chat, zero when notifications are off.
func (b *Builder) StaffChatID() int64 {
	return b.admissions.ChatID
}

func (b *Builder) staff(text string) models.OutboundMessage {
	return models.OutboundMessage{ChatID: b.admissions.ChatID, Text: text}
}

func usernameText(username string) string {
	if username == "" {
		return "N/A"
	}
	return "@" + username
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func (b *Builder) NewLeadNotice(lead *models.Lead, now time.Time) models.OutboundMessage {
	q := lead.Qualification
	return b.staff(fmt.Sprintf(`🆕 New Lead from Telegram Bot

👤 Name: %s
👤 Username: %s
📞 Phone: %s
🌐 Language: %s
👶 Children: %d
📅 Ages: %s
📚 Program: %s

💬 Chat ID: %d
⏰ Time: %s

📋 Action: Call within 1 hour`,
		orNA(lead.ParentName), usernameText(lead.Username), orNA(lead.Phone), lead.Locale,
		q.ChildrenCount, orNA(strings.Join(q.ChildAges, ", ")), orNA(q.Program),
		lead.ChatID, now.In(b.loc).Format(staffTimeLayout)))
}

func (b *Builder) NewBookingNotice(lead *models.Lead, booking *models.Booking) models.OutboundMessage {
	local := booking.ScheduledAt.In(b.loc)
	c, _ := b.campus(booking.Campus)
	return b.staff(fmt.Sprintf("📅 New Tour Booking\n\n👤 Username: %s\nPhone: %s\nCampus: %s\nDate: %s\nTime: %s\nLanguage: %s",
		usernameText(lead.Username), orNA(booking.Phone), orNA(c.Name(models.LocaleEN)),
		LongDate(models.LocaleEN, local), local.Format("15:04"), booking.Locale))
}

// BookingChangeNotice reports a parent's answer to a reminder.
func (b *Builder) BookingChangeNotice(lead *models.Lead, booking *models.Booking, action string) models.OutboundMessage {
	title := map[string]string{
		ReminderConfirm:    "✅ Tour Confirmed",
		ReminderReschedule: "🔄 Tour Reschedule",
		ReminderCancel:     "🔄 Tour Cancellation",
	}[action]
	if title == "" {
		title = "🔄 Tour Update"
	}
	return b.staff(fmt.Sprintf("%s\n\n👤 Username: %s\nPhone: %s\nTour: %s\nCampus: %s",
		title, usernameText(lead.Username), orNA(booking.Phone),
		booking.ScheduledAt.In(b.loc).Format(staffTimeLayout), booking.Campus))
}

func (b *Builder) ContactManagerNotice(lead *models.Lead, now time.Time) models.OutboundMessage {
	return b.staff(fmt.Sprintf("💬 User wants to contact manager\n\n👤 Username: %s\nPhone: %s\nChat ID: %d\nLanguage: %s\nTime: %s",
		usernameText(lead.Username), orNA(lead.Phone), lead.ChatID, lead.Locale, now.In(b.loc).Format(staffTimeLayout)))
}

// LeadMessageNotice forwards free text a qualified lead wrote to the bot.
func (b *Builder) LeadMessageNotice(lead *models.Lead, text string) models.OutboundMessage {
	return b.staff(fmt.Sprintf("✉️ Message from lead\n\n👤 Username: %s\nPhone: %s\nChat ID: %d\n\n%s",
		usernameText(lead.Username), orNA(lead.Phone), lead.ChatID, text))
}

// AttendanceCheck asks staff whether the lead came, with one-click status
// buttons.
func (b *Builder) AttendanceCheck(booking *models.Booking) models.OutboundMessage {
	local := booking.ScheduledAt.In(b.loc)
	msg := b.staff(fmt.Sprintf("📋 Tour Status Check\n\nLead: %s\nTour: %s\nTime: %s\nCampus: %s\n\nDid they attend?",
		orNA(booking.Phone), local.Format(time.DateOnly), local.Format("15:04"), booking.Campus))
	msg.Buttons = [][]models.Button{
		{
			{Text: "✅ Attended", Data: StaffCallback(booking.ID, models.BookingAttended)},
			{Text: "❌ No-Show", Data: StaffCallback(booking.ID, models.BookingNoShow)},
		},
		{
			{Text: "🔄 Rescheduled", Data: StaffCallback(booking.ID, models.BookingRescheduled)},
		},
	}
	return msg
}

// StatusUpdated is the edited text of an answered attendance check.
func StatusUpdated(status, original string) string {
	return fmt.Sprintf("✅ Tour status updated to: %s\n\n%s", status, original)
}

// EscalationNotice tells staff that an automated step keeps failing.
func (b *Builder) EscalationNotice(subject string, userID int64, err error) models.OutboundMessage {
	return b.staff(fmt.Sprintf("⚠️ %s\n\nUser ID: %d\nError: %v\n\nPlease follow up manually.", subject, userID, err))
}
