package reminder

import (
	"context"
	"io"
	"testing"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/models"
	"admissionsbot/internal/phone"
	"admissionsbot/internal/repository"
	"admissionsbot/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reminders(sent []models.OutboundMessage) int {
	n := 0
	confirm := messages.Callback(messages.PrefixReminder, messages.ReminderConfirm)
	for _, m := range sent {
		if len(m.Buttons) > 0 && len(m.Buttons[0]) > 0 && m.Buttons[0][0].Data == confirm {
			n++
		}
	}
	return n
}

func TestBookedTourRemindedOnce(t *testing.T) {
	engine, db, sender := setup(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	cfg := config.Default()
	cfg.Admissions.ChatID = staffChat
	msgs := messages.NewBuilder(cfg)
	machine := service.NewMachine(cfg, phone.New(cfg.Phone.CountryCode, cfg.Phone.LocalLengths), msgs)
	conv := service.NewConversation(db, nil, nil, repository.NewMemoryCoordinator(time.Minute),
		sender, nil, machine, msgs, cfg.Retry, &logger)

	now := time.Now()
	lead := models.NewLead(7, 7, "parent", now.Add(-time.Hour))
	lead.State = models.StateQualified
	lead.Locale = models.LocaleEN
	lead.Phone = "+998901234567"
	lead.ParentName = "Dilnoza"
	lead.Qualification = models.Qualification{ChildrenCount: 1, ChildAges: []string{"7-10"}, Program: "ib"}
	lead.QualifiedAt = &now
	require.NoError(t, db.UpsertLead(ctx, lead))

	loc := cfg.App.Location()
	dates := messages.TourDates(now, loc, cfg.Tours.TourWeekdays(), 1, 0)
	require.Len(t, dates, 1)
	day := dates[0].Format(time.DateOnly)

	for _, payload := range []string{
		messages.Callback(messages.PrefixMenu, messages.MenuBookTour),
		messages.Callback(messages.PrefixCampus, "mu"),
		messages.Callback(messages.PrefixDate, day),
		messages.Callback(messages.PrefixTime, "10:00"),
	} {
		require.NoError(t, conv.Handle(ctx, models.InboundEvent{UserID: 7, ChatID: 7, Kind: models.EventButton, Payload: payload}))
	}

	booking, err := db.GetActiveBooking(ctx, 7)
	require.NoError(t, err)
	want, err := time.ParseInLocation(time.DateOnly+" 15:04", day+" 10:00", loc)
	require.NoError(t, err)
	require.True(t, booking.ScheduledAt.Equal(want))
	assert.Zero(t, reminders(sender.to(7)))

	report := engine.Sweep(ctx, booking.ScheduledAt.Add(-24*time.Hour))
	assert.Equal(t, Report{Due: 1, Sent: 1}, report)
	assert.Equal(t, 1, reminders(sender.to(7)))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReminderSentAt)
	assert.Equal(t, models.BookingReminded, got.Status)

	report = engine.Sweep(ctx, booking.ScheduledAt.Add(-23*time.Hour))
	assert.Zero(t, report.Due)
	assert.Equal(t, 1, reminders(sender.to(7)))
}
