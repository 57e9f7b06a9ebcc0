package service

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/i18n"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/models"
	"admissionsbot/internal/phone"
)

// Outcome is everything one inbound event asks for. Decide only describes
// it; Conversation.Handle carries it out.
type Outcome struct {
	// Lead is the updated lead, nil when nothing about the lead changed.
	Lead *models.Lead
	// Prev is the state the lead was in before the event.
	Prev string

	Reply *models.OutboundMessage
	Staff *models.OutboundMessage

	// SyncQualification pushes contact, lead and the "call within 1 hour"
	// task to the CRM before the lead may become qualified.
	SyncQualification bool
	// SyncTour pushes the new tour to the CRM lead before it is stored.
	SyncTour bool
	// Notes are deferred CRM notes on the lead.
	Notes []string

	Booking       *models.Booking
	BookingStatus string

	// Invalid records why the input was rejected, for logging.
	Invalid error
}

// Machine decides conversation outcomes. It holds only immutable
// configuration and performs no I/O.
type Machine struct {
	cfg    *config.Config
	phones *phone.Normalizer
	msgs   *messages.Builder
	loc    *time.Location
}

func NewMachine(cfg *config.Config, phones *phone.Normalizer, msgs *messages.Builder) *Machine {
	return &Machine{
		cfg:    cfg,
		phones: phones,
		msgs:   msgs,
		loc:    cfg.App.Location(),
	}
}

var menuWords = []string{"menu", "меню", "menyu"}

func reply(m models.OutboundMessage) *models.OutboundMessage {
	return &m
}

// Decide computes the outcome of ev for lead (nil for an unknown user) with
// its active booking (nil if none).
func (m *Machine) Decide(lead *models.Lead, active *models.Booking, ev models.InboundEvent, now time.Time) (Outcome, error) {
	if lead == nil {
		fresh := models.NewLead(ev.UserID, ev.ChatID, ev.Username, now)
		fresh.Locale = i18n.Match(ev.LanguageCode)
		return Outcome{
			Lead:  fresh,
			Prev:  fresh.State,
			Reply: reply(m.msgs.LanguagePrompt(ev.ChatID)),
		}, nil
	}
	if !models.IsKnownState(lead.State) {
		return Outcome{}, fmt.Errorf("lead %d in unknown state %q", lead.UserID, lead.State)
	}

	next := lead.Clone()
	next.ChatID = ev.ChatID
	if ev.Username != "" {
		next.Username = ev.Username
	}
	out := Outcome{Prev: lead.State}

	switch ev.Kind {
	case models.EventCommand:
		return m.command(next, ev, now, out), nil
	case models.EventText:
		if slices.Contains(menuWords, strings.ToLower(strings.TrimSpace(ev.Payload))) {
			return m.menu(next, now, out), nil
		}
	case models.EventButton:
		prefix, value, _ := messages.ParseCallback(ev.Payload)
		switch prefix {
		case messages.PrefixMenu:
			return m.menuAction(next, value, now, out), nil
		case messages.PrefixReminder:
			return m.reminderAction(next, active, value, now, out), nil
		}
	}

	switch lead.State {
	case models.StateAwaitingLanguage:
		return m.onLanguage(next, ev, now, out), nil
	case models.StateAwaitingPhone:
		return m.onPhone(next, ev, now, out), nil
	case models.StateAwaitingParentName:
		return m.onParentName(next, ev, now, out), nil
	case models.StateAwaitingChildrenCount:
		return m.onChildrenCount(next, ev, now, out), nil
	case models.StateAwaitingChildAge:
		return m.onChildAge(next, ev, now, out), nil
	case models.StateAwaitingProgram:
		return m.onProgram(next, ev, now, out), nil
	case models.StateAwaitingCampus:
		return m.onCampus(next, ev, now, out), nil
	case models.StateAwaitingDate:
		return m.onDate(next, ev, now, out), nil
	case models.StateAwaitingTime:
		return m.onTime(next, ev, now, out), nil
	default:
		return m.onResting(next, ev, now, out), nil
	}
}

// changed marks lead as modified and moves it to state.
func changed(out Outcome, lead *models.Lead, state string, now time.Time) Outcome {
	lead.State = state
	lead.UpdatedAt = now
	out.Lead = lead
	return out
}

// reject re-prompts the current question and leaves the lead untouched.
func (m *Machine) reject(out Outcome, lead *models.Lead, now time.Time, hintKey string, reason error) Outcome {
	out.Reply = reply(m.msgs.Reprompt(lead, now, hintKey))
	out.Invalid = reason
	return out
}

func buttonValue(ev models.InboundEvent, prefix string) (string, bool) {
	if ev.Kind != models.EventButton {
		return "", false
	}
	p, v, ok := messages.ParseCallback(ev.Payload)
	if !ok || p != prefix {
		return "", false
	}
	return v, true
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrValidation}, args...)...)
}

func (m *Machine) command(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	switch ev.Payload {
	case "menu":
		return m.menu(lead, now, out)
	default:
		// /start never moves a lead backwards, it repeats the open question
		out.Reply = reply(m.msgs.Prompt(lead, now))
		return out
	}
}

func (m *Machine) menu(lead *models.Lead, now time.Time, out Outcome) Outcome {
	if !lead.IsQualified() {
		out.Reply = reply(m.msgs.Prompt(lead, now))
		return out
	}
	out.Reply = reply(m.msgs.Menu(lead.ChatID, lead.Locale))
	return out
}

func (m *Machine) menuAction(lead *models.Lead, action string, now time.Time, out Outcome) Outcome {
	switch action {
	case messages.MenuAddresses:
		out.Reply = reply(m.msgs.Addresses(lead.ChatID, lead.Locale))
		return out
	case messages.MenuContactManager:
		out.Reply = reply(m.msgs.Text(lead.ChatID, lead.Locale, "manager_will_contact"))
		out.Staff = reply(m.msgs.ContactManagerNotice(lead, now))
		if lead.CRMLeadID != 0 {
			out.Notes = []string{"Parent asked the manager to contact them via Telegram"}
		}
		return out
	case messages.MenuBookTour:
		if !lead.IsQualified() {
			return m.reject(out, lead, now, "choose_option", invalid("book tour before qualification"))
		}
		lead.Draft = models.BookingDraft{}
		out = changed(out, lead, models.StateAwaitingCampus, now)
		out.Reply = reply(m.msgs.CampusPrompt(lead.ChatID, lead.Locale))
		return out
	default:
		return m.reject(out, lead, now, "choose_option", invalid("unknown menu action %q", action))
	}
}

func (m *Machine) reminderAction(lead *models.Lead, active *models.Booking, action string, now time.Time, out Outcome) Outcome {
	if active == nil {
		out.Reply = reply(m.msgs.Text(lead.ChatID, lead.Locale, "no_active_tour"))
		out.Invalid = fmt.Errorf("%w: no active booking", domain.ErrNotFound)
		return out
	}

	switch action {
	case messages.ReminderConfirm:
		out.Reply = reply(m.msgs.Text(lead.ChatID, lead.Locale, "attendance_confirmed"))
		if active.Status == models.BookingConfirmed {
			return out
		}
		out.BookingStatus = models.BookingConfirmed
	case messages.ReminderReschedule:
		out.BookingStatus = models.BookingRescheduled
		lead.Draft = models.BookingDraft{}
		out = changed(out, lead, models.StateAwaitingCampus, now)
		prompt := m.msgs.CampusPrompt(lead.ChatID, lead.Locale)
		prompt.Text = i18n.T(lead.Locale, "reschedule_message") + "\n\n" + prompt.Text
		out.Reply = &prompt
	case messages.ReminderCancel:
		out.BookingStatus = models.BookingCancelled
		lead.Draft = models.BookingDraft{}
		out = changed(out, lead, models.StateQualified, now)
		out.Reply = reply(m.msgs.Text(lead.ChatID, lead.Locale, "cancel_message"))
	default:
		return m.reject(out, lead, now, "choose_option", invalid("unknown reminder action %q", action))
	}

	out.Staff = reply(m.msgs.BookingChangeNotice(lead, active, action))
	return out
}

func (m *Machine) onLanguage(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	locale, ok := buttonValue(ev, messages.PrefixLang)
	if !ok || !i18n.Supported(locale) {
		return m.reject(out, lead, now, "choose_option", invalid("language %q", ev.Payload))
	}
	lead.Locale = locale
	out = changed(out, lead, models.StateAwaitingPhone, now)
	out.Reply = reply(m.msgs.PhonePrompt(lead.ChatID, locale))
	return out
}

func (m *Machine) onPhone(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	if ev.Kind != models.EventText && ev.Kind != models.EventContact {
		return m.reject(out, lead, now, "invalid_phone", invalid("phone expected, got %s", ev.Kind))
	}
	canonical, err := m.phones.Normalize(ev.Payload)
	if err != nil {
		return m.reject(out, lead, now, "invalid_phone", err)
	}
	lead.Phone = canonical
	out = changed(out, lead, models.StateAwaitingParentName, now)
	out.Reply = reply(m.msgs.ParentNamePrompt(lead.ChatID, lead.Locale))
	return out
}

func (m *Machine) onParentName(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	name := strings.Join(strings.Fields(ev.Payload), " ")
	if ev.Kind != models.EventText || name == "" || utf8.RuneCountInString(name) > models.MaxParentNameLength {
		return m.reject(out, lead, now, "invalid_parent_name", invalid("parent name"))
	}
	lead.ParentName = name
	out = changed(out, lead, models.StateAwaitingChildrenCount, now)
	out.Reply = reply(m.msgs.ChildrenCountPrompt(lead.ChatID, lead.Locale))
	return out
}

func (m *Machine) onChildrenCount(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	value, ok := buttonValue(ev, messages.PrefixChildren)
	if !ok || !slices.Contains(models.ChildrenCountOptions, value) {
		return m.reject(out, lead, now, "choose_option", invalid("children count %q", ev.Payload))
	}
	count := 4
	if value != "4+" {
		count = int(value[0] - '0')
	}
	lead.Qualification.ChildrenCount = count
	lead.Qualification.ChildAges = nil
	out = changed(out, lead, models.StateAwaitingChildAge, now)
	out.Reply = reply(m.msgs.ChildAgePrompt(lead.ChatID, lead.Locale, 1))
	return out
}

func (m *Machine) onChildAge(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	group, ok := buttonValue(ev, messages.PrefixAge)
	if !ok || !slices.Contains(models.AgeGroups, group) {
		return m.reject(out, lead, now, "choose_option", invalid("age group %q", ev.Payload))
	}
	q := &lead.Qualification
	q.ChildAges = append(q.ChildAges, group)
	if len(q.ChildAges) < q.ChildrenCount {
		out = changed(out, lead, models.StateAwaitingChildAge, now)
		out.Reply = reply(m.msgs.ChildAgePrompt(lead.ChatID, lead.Locale, len(q.ChildAges)+1))
		return out
	}
	out = changed(out, lead, models.StateAwaitingProgram, now)
	out.Reply = reply(m.msgs.ProgramPrompt(lead.ChatID, lead.Locale))
	return out
}

func (m *Machine) onProgram(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	program, ok := buttonValue(ev, messages.PrefixProgram)
	if !ok || !slices.Contains(models.Programs, program) {
		return m.reject(out, lead, now, "choose_option", invalid("program %q", ev.Payload))
	}
	lead.Qualification.Program = program
	out = changed(out, lead, models.StateQualified, now)
	out.Reply = reply(m.msgs.Handoff(lead.ChatID, lead.Locale))

	if lead.QualifiedAt == nil {
		qualifiedAt := now
		lead.QualifiedAt = &qualifiedAt
		out.SyncQualification = true
		out.Staff = reply(m.msgs.NewLeadNotice(lead, now))
	}
	return out
}

func (m *Machine) onCampus(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	id, ok := buttonValue(ev, messages.PrefixCampus)
	if !ok {
		return m.reject(out, lead, now, "choose_option", invalid("campus expected"))
	}
	if _, known := m.cfg.Campus(id); !known {
		return m.reject(out, lead, now, "invalid_slot", invalid("unknown campus %q", id))
	}
	lead.Draft = models.BookingDraft{Campus: id}
	out = changed(out, lead, models.StateAwaitingDate, now)
	out.Reply = reply(m.msgs.DatePrompt(lead.ChatID, lead.Locale, now, 0))
	return out
}

func (m *Machine) onDate(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	value, ok := buttonValue(ev, messages.PrefixDate)
	if !ok {
		return m.reject(out, lead, now, "choose_option", invalid("date expected"))
	}
	if value == messages.DateNextWeek {
		out.Reply = reply(m.msgs.DatePrompt(lead.ChatID, lead.Locale, now, 1))
		return out
	}
	if err := m.validateDate(value, now); err != nil {
		return m.reject(out, lead, now, "invalid_slot", err)
	}
	lead.Draft.Date = value
	out = changed(out, lead, models.StateAwaitingTime, now)
	out.Reply = reply(m.msgs.TimePrompt(lead.ChatID, lead.Locale))
	return out
}

// validateDate accepts a tour weekday strictly after today.
func (m *Machine) validateDate(value string, now time.Time) error {
	day, err := time.ParseInLocation(time.DateOnly, value, m.loc)
	if err != nil {
		return invalid("date %q", value)
	}
	local := now.In(m.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
	if !day.After(today) {
		return invalid("date %s is not in the future", value)
	}
	if !slices.Contains(m.cfg.Tours.TourWeekdays(), day.Weekday()) {
		return invalid("no tours on %s", day.Weekday())
	}
	return nil
}

func (m *Machine) onTime(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	value, ok := buttonValue(ev, messages.PrefixTime)
	if !ok {
		return m.reject(out, lead, now, "choose_option", invalid("time expected"))
	}
	if !slices.Contains(m.cfg.Tours.Times, value) {
		return m.reject(out, lead, now, "invalid_slot", invalid("unknown tour time %q", value))
	}

	campus, known := m.cfg.Campus(lead.Draft.Campus)
	if !known {
		out.Invalid = invalid("draft campus %q", lead.Draft.Campus)
		lead.Draft = models.BookingDraft{}
		out = changed(out, lead, models.StateAwaitingCampus, now)
		out.Reply = reply(m.msgs.Reprompt(lead, now, "invalid_slot"))
		return out
	}

	scheduledAt, err := time.ParseInLocation(time.DateOnly+" 15:04", lead.Draft.Date+" "+value, m.loc)
	if err != nil || !scheduledAt.After(now) {
		out.Invalid = invalid("slot %s %s is not in the future", lead.Draft.Date, value)
		lead.Draft.Date = ""
		out = changed(out, lead, models.StateAwaitingDate, now)
		out.Reply = reply(m.msgs.Reprompt(lead, now, "invalid_slot"))
		return out
	}

	booking := &models.Booking{
		UserID:      lead.UserID,
		ChatID:      lead.ChatID,
		Locale:      lead.Locale,
		ParentName:  lead.ParentName,
		Phone:       lead.Phone,
		Campus:      campus.ID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      models.BookingBooked,
	}
	lead.Draft = models.BookingDraft{}
	out = changed(out, lead, models.StateTourBooked, now)
	out.Booking = booking
	out.SyncTour = true
	out.Reply = reply(m.msgs.TourConfirmed(booking))
	out.Staff = reply(m.msgs.NewBookingNotice(lead, booking))
	return out
}

// onResting handles qualified and tour_booked leads: free text goes to the
// manager, anything else shows the menu.
func (m *Machine) onResting(lead *models.Lead, ev models.InboundEvent, now time.Time, out Outcome) Outcome {
	text := strings.TrimSpace(ev.Payload)
	if ev.Kind != models.EventText || text == "" {
		out.Reply = reply(m.msgs.Menu(lead.ChatID, lead.Locale))
		return out
	}
	out.Reply = reply(m.msgs.Text(lead.ChatID, lead.Locale, "note_forwarded"))
	out.Staff = reply(m.msgs.LeadMessageNotice(lead, text))
	if lead.CRMLeadID != 0 {
		out.Notes = []string{"Message from Telegram: " + text}
	}
	return out
}
