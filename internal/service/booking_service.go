package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/events"
	"admissionsbot/internal/models"

	"github.com/rs/zerolog"
)

// Statuses staff may set from the attendance check.
var staffStatuses = map[string]bool{
	models.BookingAttended:    true,
	models.BookingNoShow:      true,
	models.BookingRescheduled: true,
}

type BookingService struct {
	store    domain.Store
	locker   domain.LeadLocker
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(store domain.Store, locker domain.LeadLocker, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		locker:   locker,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// SetAttendance records the staff verdict on a tour. A lead whose tour is
// closed goes back to the menu.
func (s *BookingService) SetAttendance(ctx context.Context, bookingID int64, status string, staffID int64) (*models.Booking, error) {
	if !staffStatuses[status] {
		return nil, fmt.Errorf("%w: staff status %q", domain.ErrValidation, status)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, booking.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock lead %d: %w", booking.UserID, err)
	}
	defer unlock()

	updated, err := s.store.UpdateBookingStatus(ctx, bookingID, status)
	if err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, updated.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if lead != nil && lead.State == models.StateTourBooked {
		if _, err := s.store.GetActiveBooking(ctx, lead.UserID); errors.Is(err, domain.ErrNotFound) {
			lead.State = models.StateQualified
			lead.UpdatedAt = s.now()
			if err := s.store.UpsertLead(ctx, lead); err != nil {
				return nil, err
			}
		}
	}

	s.publishEvent(events.EventBookingStatusChanged, updated, lead, staffID)
	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("status", status).
		Int64("staff_id", staffID).
		Msg("booking status set by staff")
	return updated, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, lead *models.Lead, staffID int64) {
	if s.eventBus == nil {
		return
	}
	payload := bookingPayload(booking, lead, events.ChangedByStaff, staffID)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
