// Package reminder runs the periodic sweep that sends tour reminders,
// post-tour follow-ups and staff attendance checks.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/metrics"
	"admissionsbot/internal/models"

	"github.com/rs/zerolog"
)

// Report summarizes one sweep.
type Report struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int
}

type itemKey struct {
	bookingID int64
	kind      string
}

// Engine derives due events from the store on every sweep. Delivery is at
// least once: the sent marker is written only after the dispatcher accepts
// the message.
type Engine struct {
	store  domain.Store
	locker domain.LeadLocker
	sender domain.Dispatcher
	msgs   *messages.Builder
	cfg    config.SchedulerConfig
	logger *zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	failures  map[itemKey]int
	escalated map[itemKey]bool
}

func NewEngine(
	store domain.Store,
	locker domain.LeadLocker,
	sender domain.Dispatcher,
	msgs *messages.Builder,
	cfg config.SchedulerConfig,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		store:     store,
		locker:    locker,
		sender:    sender,
		msgs:      msgs,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		failures:  make(map[itemKey]int),
		escalated: make(map[itemKey]bool),
	}
}

// Start sweeps once immediately and then every sweep interval until ctx is
// done.
func (e *Engine) Start(ctx context.Context) {
	if !e.cfg.Enabled {
		e.logger.Info().Msg("Reminder engine is disabled")
		return
	}

	interval := e.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	e.logger.Info().Dur("interval", interval).Msg("Reminder engine started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Sweep(ctx, e.now())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Reminder engine stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx, e.now())
		}
	}
}

// Sweep dispatches every event due at now. A failure on one booking never
// stops the others; failed items stay due for the next sweep.
func (e *Engine) Sweep(ctx context.Context, now time.Time) Report {
	start := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(start)) }()

	var report Report
	for _, kind := range []string{models.KindReminder, models.KindFollowup, models.KindAttendanceCheck} {
		if ctx.Err() != nil {
			break
		}
		due, err := e.store.GetBookingsDue(ctx, kind, now)
		if err != nil {
			e.logger.Error().Err(err).Str("kind", kind).Msg("failed to load due bookings")
			continue
		}

		for _, b := range due {
			report.Due++
			sent, err := e.process(ctx, kind, b, now)
			switch {
			case err != nil:
				report.Failed++
				metrics.IncNotification(kind, "failed")
				e.failed(ctx, kind, b, err)
			case sent:
				report.Sent++
				metrics.IncNotification(kind, "sent")
				e.succeeded(kind, b.ID)
			default:
				report.Skipped++
				metrics.IncNotification(kind, "skipped")
			}
		}
	}

	if report.Due > 0 {
		e.logger.Info().
			Int("due", report.Due).
			Int("sent", report.Sent).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("Sweep finished")
	}
	return report
}

// process handles one due item under the lead lock. It reports whether a
// message went out.
func (e *Engine) process(ctx context.Context, kind string, due *models.Booking, now time.Time) (bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout())
	unlock, err := e.locker.Lock(lockCtx, due.UserID)
	cancel()
	if err != nil {
		return false, fmt.Errorf("lock lead %d: %w", due.UserID, err)
	}
	defer unlock()

	// the booking may have changed since the due query ran
	booking, err := e.store.GetBooking(ctx, due.ID)
	if err != nil {
		return false, err
	}
	if booking.SentAt(kind) != nil || !eligible(kind, booking, now) {
		return false, nil
	}

	var msg models.OutboundMessage
	switch kind {
	case models.KindReminder:
		msg = e.msgs.Reminder(booking)
	case models.KindFollowup:
		msg = e.msgs.Followup(booking)
	case models.KindAttendanceCheck:
		msg = e.msgs.AttendanceCheck(booking)
	}
	if msg.ChatID == 0 {
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout())
	defer cancel()
	if err := e.sender.Send(sendCtx, msg); err != nil {
		return false, fmt.Errorf("dispatch %s for booking %d: %w", kind, booking.ID, err)
	}

	marked, err := e.store.MarkSent(ctx, booking.ID, kind, now)
	if err != nil {
		// delivered but not marked: the next sweep sends it again
		return true, fmt.Errorf("mark %s sent for booking %d: %w", kind, booking.ID, err)
	}
	if !marked {
		e.logger.Warn().Int64("booking_id", booking.ID).Str("kind", kind).Msg("Event was already marked sent")
	}
	e.logger.Info().Int64("booking_id", booking.ID).Int64("user_id", booking.UserID).Str("kind", kind).Msg("Event dispatched")
	return true, nil
}

func eligible(kind string, b *models.Booking, now time.Time) bool {
	switch kind {
	case models.KindReminder:
		return b.Status == models.BookingBooked && b.ScheduledAt.After(now)
	case models.KindFollowup:
		return b.Status == models.BookingAttended
	case models.KindAttendanceCheck:
		return b.IsActive()
	}
	return false
}

func (e *Engine) dispatchTimeout() time.Duration {
	if e.cfg.DispatchTimeout <= 0 {
		return 15 * time.Second
	}
	return e.cfg.DispatchTimeout
}

func (e *Engine) succeeded(kind string, bookingID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := itemKey{bookingID, kind}
	delete(e.failures, key)
	delete(e.escalated, key)
}

// failed counts consecutive failures of one item and tells staff once when
// the threshold is reached.
func (e *Engine) failed(ctx context.Context, kind string, b *models.Booking, cause error) {
	key := itemKey{b.ID, kind}

	e.mu.Lock()
	e.failures[key]++
	count := e.failures[key]
	escalate := count >= e.cfg.EscalateAfter && e.cfg.EscalateAfter > 0 && !e.escalated[key]
	if escalate {
		e.escalated[key] = true
	}
	e.mu.Unlock()

	e.logger.Error().Err(cause).Int64("booking_id", b.ID).Str("kind", kind).Int("failures", count).Msg("Event dispatch failed")
	if !escalate {
		return
	}

	notice := e.msgs.EscalationNotice(fmt.Sprintf("Could not send %s for booking #%d after %d attempts", kind, b.ID, count), b.UserID, cause)
	if notice.ChatID == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout())
	defer cancel()
	if err := e.sender.Send(sendCtx, notice); err != nil {
		e.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to escalate to staff")
	}
}
