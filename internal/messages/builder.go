// Package messages renders the bot's outbound messages: prompts and menus
// for parents, reminders, and notifications for the admissions chat.
package messages

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/i18n"
	"admissionsbot/internal/models"
)

// Builder renders messages using the configured campuses, tour slots and
// admissions contacts.
type Builder struct {
	campuses   []config.CampusConfig
	tours      config.TourConfig
	admissions config.AdmissionsConfig
	loc        *time.Location
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		campuses:   cfg.Campuses,
		tours:      cfg.Tours,
		admissions: cfg.Admissions,
		loc:        cfg.App.Location(),
	}
}

// Location is the timezone tour times are expressed in.
func (b *Builder) Location() *time.Location {
	return b.loc
}

func (b *Builder) campus(id string) (config.CampusConfig, bool) {
	for _, c := range b.campuses {
		if c.ID == id {
			return c, true
		}
	}
	return config.CampusConfig{}, false
}

// Text renders a single catalog entry without buttons.
func (b *Builder) Text(chatID int64, locale, key string, kv ...string) models.OutboundMessage {
	return models.OutboundMessage{ChatID: chatID, Text: i18n.T(locale, key, kv...)}
}

// ErrorText maps an error to the text shown to the parent.
func ErrorText(locale string, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrValidation):
		return i18n.T(locale, "choose_option")
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		return i18n.T(locale, "invalid_slot")
	default:
		return i18n.T(locale, "try_again_later")
	}
}

func (b *Builder) LanguagePrompt(chatID int64) models.OutboundMessage {
	btn := func(locale string) models.Button {
		return models.Button{Text: i18n.T(models.DefaultLocale, "lang."+locale), Data: Callback(PrefixLang, locale)}
	}
	return models.OutboundMessage{
		ChatID: chatID,
		Text:   i18n.T(models.DefaultLocale, "language_selection"),
		Buttons: [][]models.Button{
			{btn(models.LocaleRU), btn(models.LocaleUZ)},
			{btn(models.LocaleEN), btn(models.LocaleTR)},
		},
	}
}

func (b *Builder) PhonePrompt(chatID int64, locale string) models.OutboundMessage {
	return models.OutboundMessage{
		ChatID:         chatID,
		Text:           i18n.T(locale, "welcome"),
		RequestContact: i18n.T(locale, "share_contact"),
	}
}

func (b *Builder) ParentNamePrompt(chatID int64, locale string) models.OutboundMessage {
	return models.OutboundMessage{
		ChatID:         chatID,
		Text:           i18n.T(locale, "ask_parent_name"),
		RemoveKeyboard: true,
	}
}

func (b *Builder) ChildrenCountPrompt(chatID int64, locale string) models.OutboundMessage {
	row := make([]models.Button, 0, len(models.ChildrenCountOptions))
	for _, opt := range models.ChildrenCountOptions {
		row = append(row, models.Button{Text: opt, Data: Callback(PrefixChildren, opt)})
	}
	return models.OutboundMessage{
		ChatID:  chatID,
		Text:    i18n.T(locale, "children_count"),
		Buttons: [][]models.Button{row},
	}
}

// ChildAgePrompt asks for the age group of child number num (1-based).
func (b *Builder) ChildAgePrompt(chatID int64, locale string, num int) models.OutboundMessage {
	var rows [][]models.Button
	for i := 0; i < len(models.AgeGroups); i += 2 {
		row := []models.Button{}
		for _, g := range models.AgeGroups[i:min(i+2, len(models.AgeGroups))] {
			row = append(row, models.Button{Text: i18n.T(locale, "age."+g), Data: Callback(PrefixAge, g)})
		}
		rows = append(rows, row)
	}
	return models.OutboundMessage{
		ChatID:  chatID,
		Text:    i18n.T(locale, "child_age", "num", strconv.Itoa(num)),
		Buttons: rows,
	}
}

func (b *Builder) ProgramPrompt(chatID int64, locale string) models.OutboundMessage {
	rows := make([][]models.Button, 0, len(models.Programs))
	for _, p := range models.Programs {
		rows = append(rows, []models.Button{{Text: i18n.T(locale, "program."+p), Data: Callback(PrefixProgram, p)}})
	}
	return models.OutboundMessage{
		ChatID:  chatID,
		Text:    i18n.T(locale, "program_interest"),
		Buttons: rows,
	}
}

// Handoff thanks the parent after qualification and invites them to the
// channel.
func (b *Builder) Handoff(chatID int64, locale string) models.OutboundMessage {
	msg := models.OutboundMessage{
		ChatID: chatID,
		Text:   i18n.T(locale, "handoff", "phone", b.admissions.ContactPhone),
	}
	if b.admissions.ChannelLink != "" {
		msg.Buttons = [][]models.Button{{{Text: "📢 " + i18n.T(locale, "menu.channel"), URL: b.admissions.ChannelLink}}}
	}
	return msg
}

func (b *Builder) Menu(chatID int64, locale string) models.OutboundMessage {
	rows := [][]models.Button{
		{{Text: i18n.T(locale, "menu.book_tour"), Data: Callback(PrefixMenu, MenuBookTour)}},
		{{Text: i18n.T(locale, "menu.addresses"), Data: Callback(PrefixMenu, MenuAddresses)}},
		{{Text: i18n.T(locale, "menu.contact_manager"), Data: Callback(PrefixMenu, MenuContactManager)}},
	}
	if b.admissions.ChannelLink != "" {
		rows = append(rows, []models.Button{{Text: i18n.T(locale, "menu.channel"), URL: b.admissions.ChannelLink}})
	}
	return models.OutboundMessage{ChatID: chatID, Text: i18n.T(locale, "menu"), Buttons: rows}
}

func (b *Builder) Addresses(chatID int64, locale string) models.OutboundMessage {
	var sb strings.Builder
	sb.WriteString(i18n.T(locale, "campus_addresses"))
	for _, c := range b.campuses {
		sb.WriteString("📍 " + c.Name(locale) + "\n")
		if c.Address != "" {
			sb.WriteString(c.Address + "\n")
		}
		if c.MapURL != "" {
			sb.WriteString("🗺 " + c.MapURL + "\n")
		}
		sb.WriteString("\n")
	}
	return models.OutboundMessage{ChatID: chatID, Text: strings.TrimRight(sb.String(), "\n")}
}

func (b *Builder) CampusPrompt(chatID int64, locale string) models.OutboundMessage {
	rows := make([][]models.Button, 0, len(b.campuses))
	for _, c := range b.campuses {
		rows = append(rows, []models.Button{{Text: c.Name(locale), Data: Callback(PrefixCampus, c.ID)}})
	}
	return models.OutboundMessage{ChatID: chatID, Text: i18n.T(locale, "select_campus"), Buttons: rows}
}

// DatePrompt offers the next eligible tour days. The first page links to
// the following week.
func (b *Builder) DatePrompt(chatID int64, locale string, now time.Time, weekOffset int) models.OutboundMessage {
	dates := TourDates(now, b.loc, b.tours.TourWeekdays(), b.tours.DaysShown, weekOffset)
	rows := make([][]models.Button, 0, len(dates)+1)
	for _, d := range dates {
		rows = append(rows, []models.Button{{Text: ShortDate(locale, d), Data: Callback(PrefixDate, d.Format(time.DateOnly))}})
	}
	if weekOffset == 0 {
		rows = append(rows, []models.Button{{Text: i18n.T(locale, "next_week"), Data: Callback(PrefixDate, DateNextWeek)}})
	}
	return models.OutboundMessage{ChatID: chatID, Text: i18n.T(locale, "select_date"), Buttons: rows}
}

func (b *Builder) TimePrompt(chatID int64, locale string) models.OutboundMessage {
	rows := make([][]models.Button, 0, len(b.tours.Times))
	for _, t := range b.tours.Times {
		rows = append(rows, []models.Button{{Text: t, Data: Callback(PrefixTime, t)}})
	}
	return models.OutboundMessage{ChatID: chatID, Text: i18n.T(locale, "select_time"), Buttons: rows}
}

// Prompt re-renders the question the lead is currently expected to answer.
// Resting states show the menu.
func (b *Builder) Prompt(lead *models.Lead, now time.Time) models.OutboundMessage {
	switch lead.State {
	case models.StateAwaitingLanguage:
		return b.LanguagePrompt(lead.ChatID)
	case models.StateAwaitingPhone:
		return b.PhonePrompt(lead.ChatID, lead.Locale)
	case models.StateAwaitingParentName:
		return b.ParentNamePrompt(lead.ChatID, lead.Locale)
	case models.StateAwaitingChildrenCount:
		return b.ChildrenCountPrompt(lead.ChatID, lead.Locale)
	case models.StateAwaitingChildAge:
		return b.ChildAgePrompt(lead.ChatID, lead.Locale, len(lead.Qualification.ChildAges)+1)
	case models.StateAwaitingProgram:
		return b.ProgramPrompt(lead.ChatID, lead.Locale)
	case models.StateAwaitingCampus:
		return b.CampusPrompt(lead.ChatID, lead.Locale)
	case models.StateAwaitingDate:
		return b.DatePrompt(lead.ChatID, lead.Locale, now, 0)
	case models.StateAwaitingTime:
		return b.TimePrompt(lead.ChatID, lead.Locale)
	default:
		return b.Menu(lead.ChatID, lead.Locale)
	}
}

// Reprompt prefixes the current prompt with a correction hint.
func (b *Builder) Reprompt(lead *models.Lead, now time.Time, hintKey string) models.OutboundMessage {
	msg := b.Prompt(lead, now)
	msg.Text = i18n.T(lead.Locale, hintKey) + "\n\n" + msg.Text
	return msg
}

func (b *Builder) tourPlaceholders(locale string, booking *models.Booking, date string) []string {
	c, _ := b.campus(booking.Campus)
	name := c.Name(locale)
	if name == "" {
		name = booking.Campus
	}
	return []string{
		"campus", name,
		"date", date,
		"time", booking.ScheduledAt.In(b.loc).Format("15:04"),
		"address", c.Address,
		"map", c.MapURL,
	}
}

func (b *Builder) TourConfirmed(booking *models.Booking) models.OutboundMessage {
	local := booking.ScheduledAt.In(b.loc)
	return models.OutboundMessage{
		ChatID: booking.ChatID,
		Text:   i18n.T(booking.Locale, "tour_confirmed", b.tourPlaceholders(booking.Locale, booking, LongDate(booking.Locale, local))...),
	}
}

// Reminder is sent ahead of the tour with confirm, reschedule and cancel
// buttons.
func (b *Builder) Reminder(booking *models.Booking) models.OutboundMessage {
	locale := booking.Locale
	local := booking.ScheduledAt.In(b.loc)
	return models.OutboundMessage{
		ChatID: booking.ChatID,
		Text:   i18n.T(locale, "tour_reminder", b.tourPlaceholders(locale, booking, DayMonth(locale, local))...),
		Buttons: [][]models.Button{
			{
				{Text: i18n.T(locale, "reminder.confirm"), Data: Callback(PrefixReminder, ReminderConfirm)},
				{Text: i18n.T(locale, "reminder.reschedule"), Data: Callback(PrefixReminder, ReminderReschedule)},
			},
			{
				{Text: i18n.T(locale, "reminder.cancel"), Data: Callback(PrefixReminder, ReminderCancel)},
			},
		},
	}
}

// Followup thanks an attended lead and offers a manager callback.
func (b *Builder) Followup(booking *models.Booking) models.OutboundMessage {
	return models.OutboundMessage{
		ChatID: booking.ChatID,
		Text:   i18n.T(booking.Locale, "post_tour_followup"),
		Buttons: [][]models.Button{{
			{Text: i18n.T(booking.Locale, "menu.contact_manager"), Data: Callback(PrefixMenu, MenuContactManager)},
		}},
	}
}
