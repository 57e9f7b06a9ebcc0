package messages

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/i18n"
	"admissionsbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	cfg := config.Default()
	cfg.Admissions = config.AdmissionsConfig{ChatID: -100, ChannelLink: "https://t.me/school", ContactPhone: "+998 71 200 00 00"}
	return NewBuilder(cfg)
}

func TestCallbacks(t *testing.T) {
	prefix, value, ok := ParseCallback(Callback(PrefixTime, "10:00"))
	require.True(t, ok)
	assert.Equal(t, PrefixTime, prefix)
	assert.Equal(t, "10:00", value)

	_, _, ok = ParseCallback("garbage")
	assert.False(t, ok)

	id, status, ok := ParseStaffCallback(StaffCallback(42, models.BookingNoShow))
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, models.BookingNoShow, status)

	for _, bad := range []string{"staff:x:attended", "staff:1", "menu:1:attended", "staff:-1:attended", "staff:1:"} {
		_, _, ok := ParseStaffCallback(bad)
		assert.False(t, ok, bad)
	}
}

func TestTourDates(t *testing.T) {
	loc := time.UTC
	weekdays := []time.Weekday{time.Monday, time.Wednesday, time.Friday}

	// Saturday 17 Oct 2026
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, loc)
	dates := TourDates(now, loc, weekdays, 3, 0)
	require.Len(t, dates, 3)
	assert.Equal(t, "2026-10-19", dates[0].Format(time.DateOnly))
	assert.Equal(t, "2026-10-21", dates[1].Format(time.DateOnly))
	assert.Equal(t, "2026-10-23", dates[2].Format(time.DateOnly))

	next := TourDates(now, loc, weekdays, 3, 1)
	assert.Equal(t, "2026-10-26", next[0].Format(time.DateOnly))

	// Monday itself is not offered on Monday
	monday := time.Date(2026, 10, 19, 8, 0, 0, 0, loc)
	assert.Equal(t, "2026-10-21", TourDates(monday, loc, weekdays, 3, 0)[0].Format(time.DateOnly))
}

func TestDateFormatting(t *testing.T) {
	d := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Monday, 19 October", LongDate(models.LocaleEN, d))
	assert.Equal(t, "Понедельник, 19 октября", LongDate(models.LocaleRU, d))
	assert.Equal(t, "Mon, 19 Oct", ShortDate(models.LocaleEN, d))
	assert.Equal(t, "19 Ekim", DayMonth(models.LocaleTR, d))
	// unknown locales fall back to Russian
	assert.Equal(t, LongDate(models.LocaleRU, d), LongDate("xx", d))
}

func TestPrompts(t *testing.T) {
	b := testBuilder()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	t.Run("Language", func(t *testing.T) {
		msg := b.LanguagePrompt(1)
		assert.Len(t, msg.Buttons, 2)
		assert.Equal(t, "lang:ru", msg.Buttons[0][0].Data)
	})

	t.Run("Phone", func(t *testing.T) {
		msg := b.PhonePrompt(1, models.LocaleEN)
		assert.Equal(t, i18n.T(models.LocaleEN, "share_contact"), msg.RequestContact)
	})

	t.Run("ChildAge", func(t *testing.T) {
		lead := &models.Lead{ChatID: 1, Locale: models.LocaleEN, State: models.StateAwaitingChildAge}
		lead.Qualification.ChildAges = []string{"3-6"}
		msg := b.Prompt(lead, now)
		assert.Contains(t, msg.Text, "#2")
		assert.Equal(t, "age:3-6", msg.Buttons[0][0].Data)
	})

	t.Run("Date", func(t *testing.T) {
		msg := b.DatePrompt(1, models.LocaleEN, now, 0)
		last := msg.Buttons[len(msg.Buttons)-1][0]
		assert.Equal(t, "date:next_week", last.Data)
		assert.Len(t, b.DatePrompt(1, models.LocaleEN, now, 1).Buttons, 3)
	})

	t.Run("Resting", func(t *testing.T) {
		lead := &models.Lead{ChatID: 1, Locale: models.LocaleRU, State: models.StateTourBooked}
		msg := b.Prompt(lead, now)
		assert.Equal(t, i18n.T(models.LocaleRU, "menu"), msg.Text)
		assert.Equal(t, "https://t.me/school", msg.Buttons[3][0].URL)
	})

	t.Run("Reprompt", func(t *testing.T) {
		lead := &models.Lead{ChatID: 1, Locale: models.LocaleEN, State: models.StateAwaitingPhone}
		msg := b.Reprompt(lead, now, "invalid_phone")
		assert.True(t, strings.HasPrefix(msg.Text, i18n.T(models.LocaleEN, "invalid_phone")))
	})
}

func TestTourMessages(t *testing.T) {
	b := testBuilder()
	booking := &models.Booking{
		ID:          7,
		ChatID:      1,
		Locale:      models.LocaleEN,
		Phone:       "+998901234567",
		Campus:      "mu",
		ScheduledAt: time.Date(2026, 10, 19, 5, 0, 0, 0, time.UTC), // 10:00 in Tashkent
	}

	confirmed := b.TourConfirmed(booking)
	assert.Contains(t, confirmed.Text, "10:00")
	assert.Contains(t, confirmed.Text, "Monday, 19 October")
	assert.Contains(t, confirmed.Text, "MU Campus")

	reminder := b.Reminder(booking)
	assert.Contains(t, reminder.Text, "19 October")
	assert.Equal(t, "reminder:confirm", reminder.Buttons[0][0].Data)
	assert.Equal(t, "reminder:cancel", reminder.Buttons[1][0].Data)

	check := b.AttendanceCheck(booking)
	assert.Equal(t, int64(-100), check.ChatID)
	assert.Equal(t, "staff:7:attended", check.Buttons[0][0].Data)
	assert.Equal(t, "staff:7:no_show", check.Buttons[0][1].Data)

	followup := b.Followup(booking)
	assert.Equal(t, "menu:contact_manager", followup.Buttons[0][0].Data)
}

func TestStaffNotices(t *testing.T) {
	b := testBuilder()
	now := time.Date(2026, 10, 17, 7, 30, 0, 0, time.UTC)
	lead := &models.Lead{
		ChatID:   1,
		Username: "aziza",
		Phone:    "+998901234567",
		Locale:   models.LocaleUZ,
		Qualification: models.Qualification{
			ChildrenCount: 2,
			ChildAges:     []string{"3-6", "7-10"},
			Program:       "ib",
		},
	}

	msg := b.NewLeadNotice(lead, now)
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Contains(t, msg.Text, "@aziza")
	assert.Contains(t, msg.Text, "3-6, 7-10")
	assert.Contains(t, msg.Text, "2026-10-17 12:30")

	lead.Username = ""
	assert.Contains(t, b.ContactManagerNotice(lead, now).Text, "Username: N/A")

	esc := b.EscalationNotice("CRM sync failed", 5, fmt.Errorf("boom"))
	assert.Contains(t, esc.Text, "CRM sync failed")
	assert.Contains(t, esc.Text, "boom")
}

func TestErrorText(t *testing.T) {
	assert.Empty(t, ErrorText(models.LocaleEN, nil))
	assert.Equal(t, i18n.T(models.LocaleEN, "choose_option"), ErrorText(models.LocaleEN, fmt.Errorf("x: %w", domain.ErrValidation)))
	assert.Equal(t, i18n.T(models.LocaleEN, "try_again_later"), ErrorText(models.LocaleEN, fmt.Errorf("x: %w", domain.ErrTransient)))
	assert.Equal(t, i18n.T(models.LocaleEN, "try_again_later"), ErrorText(models.LocaleEN, errors.New("x")))
}
