package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/events"
	"admissionsbot/internal/i18n"
	"admissionsbot/internal/logging"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Staff replies typed as CRM notes start with one of these markers.
var staffReplyPrefixes = []string{">>>", "!"}

const qualificationTaskText = "Call the parent within 1 hour (new lead from Telegram bot)"

// commitTimeout bounds the writes and replies that follow CRM calls. They run
// detached from the update so CRM ids are never lost to its deadline.
const commitTimeout = 10 * time.Second

// Conversation applies Machine outcomes: it serializes work per lead, runs
// the critical CRM calls with retry, persists the result and dispatches
// messages.
type Conversation struct {
	store   domain.Store
	crm     domain.CRMGateway
	queue   domain.CRMQueue
	locker  domain.LeadLocker
	sender  domain.Dispatcher
	events  domain.EventPublisher
	machine *Machine
	msgs    *messages.Builder
	retry   config.RetryConfig
	logger  *zerolog.Logger
	now     func() time.Time
}

// NewConversation wires the executor. crm may be nil when the CRM
// integration is disabled.
func NewConversation(
	store domain.Store,
	crm domain.CRMGateway,
	queue domain.CRMQueue,
	locker domain.LeadLocker,
	sender domain.Dispatcher,
	eventBus domain.EventPublisher,
	machine *Machine,
	msgs *messages.Builder,
	retry config.RetryConfig,
	logger *zerolog.Logger,
) *Conversation {
	return &Conversation{
		store:   store,
		crm:     crm,
		queue:   queue,
		locker:  locker,
		sender:  sender,
		events:  eventBus,
		machine: machine,
		msgs:    msgs,
		retry:   retry,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one inbound event end to end. Errors returned here mean
// nothing was committed and the parent has not been answered yet.
func (c *Conversation) Handle(ctx context.Context, ev models.InboundEvent) error {
	logger := logging.FromContext(ctx, c.logger)

	unlock, err := c.locker.Lock(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("lock lead %d: %w", ev.UserID, err)
	}
	defer unlock()

	lead, err := c.store.GetLead(ctx, ev.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		lead = nil
	}

	var active *models.Booking
	if lead != nil {
		active, err = c.store.GetActiveBooking(ctx, ev.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if errors.Is(err, domain.ErrNotFound) {
			active = nil
		}
	}

	now := c.now()
	out, err := c.machine.Decide(lead, active, ev, now)
	if err != nil {
		return err
	}
	if out.Invalid != nil {
		logger.Debug().Err(out.Invalid).Int64("user_id", ev.UserID).Str("state", out.Prev).Msg("input rejected")
	}

	if out.SyncQualification || out.SyncTour {
		subject, err := c.syncCRM(ctx, out, now)
		// после обращений к CRM результат фиксируется, даже если апдейт уже истек
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		defer cancel()
		ctx = commitCtx
		if err != nil {
			c.criticalFailed(ctx, lead, out.Lead, subject, err)
			return nil
		}
	}

	current := out.Lead
	if current == nil {
		current = lead
	}

	if out.BookingStatus != "" {
		updated, err := c.store.UpdateBookingStatus(ctx, active.ID, out.BookingStatus)
		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.Warn().Err(err).Int64("booking_id", active.ID).Msg("booking status change rejected")
			c.dispatch(ctx, models.OutboundMessage{ChatID: ev.ChatID, Text: messages.ErrorText(current.Locale, err)})
			return nil
		}
		if err != nil {
			return err
		}
		c.publishBooking(events.EventBookingStatusChanged, updated, current, events.ChangedByParent, ev.UserID)
	}

	switch {
	case out.Booking != nil:
		if err := c.store.SaveBooking(ctx, out.Lead, out.Booking); err != nil {
			return err
		}
		c.publishBooking(events.EventTourBooked, out.Booking, out.Lead, events.ChangedByParent, ev.UserID)
	case out.Lead != nil:
		if err := c.store.UpsertLead(ctx, out.Lead); err != nil {
			return err
		}
	}

	if out.SyncQualification {
		c.publish(events.EventLeadQualified, events.LeadEventPayload{
			UserID:       out.Lead.UserID,
			CRMContactID: out.Lead.CRMContactID,
			CRMLeadID:    out.Lead.CRMLeadID,
			Program:      out.Lead.Qualification.Program,
			Locale:       out.Lead.Locale,
		})
		logger.Info().Int64("user_id", out.Lead.UserID).Int64("crm_lead_id", out.Lead.CRMLeadID).Msg("lead qualified")
	}

	for _, note := range out.Notes {
		if current.CRMLeadID == 0 {
			break
		}
		if err := c.queue.Enqueue(ctx, models.CRMTaskAddNote, current.UserID, models.NotePayload{
			LeadID: current.CRMLeadID,
			Text:   note,
		}); err != nil {
			logger.Error().Err(err).Int64("user_id", current.UserID).Msg("failed to enqueue crm note")
		}
	}

	if out.Reply != nil {
		c.dispatch(ctx, *out.Reply)
	}
	if out.Staff != nil && out.Staff.ChatID != 0 {
		c.dispatch(ctx, *out.Staff)
	}
	return nil
}

// criticalFailed keeps whatever CRM ids were obtained so a retry does not
// create duplicates, leaves the conversation where it was and tells both
// sides.
func (c *Conversation) criticalFailed(ctx context.Context, prev, partial *models.Lead, subject string, cause error) {
	logger := logging.FromContext(ctx, c.logger)
	logger.Error().Err(cause).Int64("user_id", partial.UserID).Msg(subject)

	keep := prev.Clone()
	keep.CRMContactID = partial.CRMContactID
	keep.CRMLeadID = partial.CRMLeadID
	keep.ChatID = partial.ChatID
	keep.UpdatedAt = c.now()
	if err := c.store.UpsertLead(ctx, keep); err != nil {
		logger.Error().Err(err).Int64("user_id", keep.UserID).Msg("failed to persist partial crm ids")
	}

	c.dispatch(ctx, models.OutboundMessage{ChatID: keep.ChatID, Text: i18n.T(keep.Locale, "try_again_later")})
	if staff := c.msgs.EscalationNotice(subject, keep.UserID, cause); staff.ChatID != 0 {
		c.dispatch(ctx, staff)
	}
}

// syncCRM runs the critical CRM calls of out and names the step that failed.
func (c *Conversation) syncCRM(ctx context.Context, out Outcome, now time.Time) (string, error) {
	if out.SyncQualification {
		if err := c.syncQualification(ctx, out.Lead, now); err != nil {
			return "CRM sync failed for a new lead", err
		}
	}
	if out.SyncTour {
		if err := c.syncTour(ctx, out.Lead, out.Booking); err != nil {
			return "CRM sync failed for a tour booking", err
		}
	}
	return "", nil
}

// syncQualification creates or updates the CRM contact and lead and assigns
// the call-back task. IDs are written into lead as soon as they are known.
func (c *Conversation) syncQualification(ctx context.Context, lead *models.Lead, now time.Time) error {
	if c.crm == nil {
		return nil
	}
	if err := c.ensureCRMLead(ctx, lead, models.LeadFields{}); err != nil {
		return err
	}
	due := now.Add(models.CRMTaskDeadline * time.Second)
	return c.withRetry(ctx, "create_task", func(ctx context.Context) error {
		return c.crm.CreateTask(ctx, lead.CRMLeadID, qualificationTaskText, due)
	})
}

// syncTour writes campus, tour time and status onto the CRM lead.
func (c *Conversation) syncTour(ctx context.Context, lead *models.Lead, booking *models.Booking) error {
	if c.crm == nil {
		return nil
	}
	at := booking.ScheduledAt
	tour := models.LeadFields{Campus: booking.Campus, TourAt: &at, TourStatus: booking.Status}
	if lead.CRMLeadID == 0 {
		return c.ensureCRMLead(ctx, lead, tour)
	}
	return c.withRetry(ctx, "update_lead", func(ctx context.Context) error {
		_, err := c.crm.UpsertLead(ctx, lead.CRMLeadID, lead.CRMContactID, tour)
		return err
	})
}

func (c *Conversation) ensureCRMLead(ctx context.Context, lead *models.Lead, extra models.LeadFields) error {
	if !c.machine.phones.Valid(lead.Phone) {
		return fmt.Errorf("%w: lead %d has no valid phone", domain.ErrValidation, lead.UserID)
	}
	contact := models.ContactFields{
		Name:       lead.ParentName,
		Phone:      lead.Phone,
		TelegramID: lead.UserID,
		Username:   lead.Username,
		Locale:     lead.Locale,
	}
	if err := c.withRetry(ctx, "upsert_contact", func(ctx context.Context) error {
		id, err := c.crm.UpsertContact(ctx, lead.CRMContactID, contact)
		if err == nil {
			lead.CRMContactID = id
		}
		return err
	}); err != nil {
		return err
	}

	fields := extra
	fields.Name = "Telegram: " + lead.ParentName
	fields.ChildrenCount = lead.Qualification.ChildrenCount
	fields.ChildAges = lead.Qualification.ChildAges
	fields.Program = lead.Qualification.Program
	return c.withRetry(ctx, "upsert_lead", func(ctx context.Context) error {
		id, err := c.crm.UpsertLead(ctx, lead.CRMLeadID, lead.CRMContactID, fields)
		if err == nil {
			lead.CRMLeadID = id
		}
		return err
	})
}

// withRetry runs fn with exponential backoff, giving up early on errors
// that are not retryable. Used for critical CRM calls and staff replies.
func (c *Conversation) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialDelay
	bo.MaxInterval = c.retry.MaxDelay
	if c.retry.BackoffFactor > 0 {
		bo.Multiplier = c.retry.BackoffFactor
	}
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn(ctx)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logging.FromContext(ctx, c.logger).Warn().Err(err).Str("op", op).Dur("retry_in", wait).Msg("call failed, retrying")
	})
}

// ForwardStaffReply relays a CRM note written for the parent to their chat.
// Notes without a reply marker are internal and ignored.
func (c *Conversation) ForwardStaffReply(ctx context.Context, crmLeadID int64, text string) (bool, error) {
	body, ok := StaffReplyText(text)
	if !ok {
		return false, nil
	}

	lead, err := c.store.GetLeadByCRMLead(ctx, crmLeadID)
	if err != nil {
		return false, err
	}
	msg := models.OutboundMessage{ChatID: lead.ChatID, Text: body}
	if err := c.withRetry(ctx, "forward_staff_reply", func(ctx context.Context) error {
		return c.sender.Send(ctx, msg)
	}); err != nil {
		// CRM не переотправляет вебхук, поэтому менеджер должен узнать о потере
		if staff := c.msgs.EscalationNotice("Staff reply was not delivered to the parent", lead.UserID, err); staff.ChatID != 0 {
			c.dispatch(ctx, staff)
		}
		return false, fmt.Errorf("forward staff reply to %d: %w", lead.UserID, err)
	}
	logging.FromContext(ctx, c.logger).Info().Int64("user_id", lead.UserID).Int64("crm_lead_id", crmLeadID).Msg("staff reply forwarded")
	return true, nil
}

// StaffReplyText strips the reply marker from a CRM note.
func StaffReplyText(note string) (string, bool) {
	note = strings.TrimSpace(note)
	for _, prefix := range staffReplyPrefixes {
		if rest, ok := strings.CutPrefix(note, prefix); ok {
			rest = strings.TrimSpace(rest)
			return rest, rest != ""
		}
	}
	return "", false
}

func (c *Conversation) dispatch(ctx context.Context, msg models.OutboundMessage) {
	if err := c.sender.Send(ctx, msg); err != nil {
		logging.FromContext(ctx, c.logger).Error().Err(err).Int64("chat_id", msg.ChatID).Msg("failed to send message")
	}
}

func (c *Conversation) publish(eventType string, payload interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, payload); err != nil {
		c.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (c *Conversation) publishBooking(eventType string, booking *models.Booking, lead *models.Lead, changedBy string, changedByID int64) {
	c.publish(eventType, bookingPayload(booking, lead, changedBy, changedByID))
}

func bookingPayload(booking *models.Booking, lead *models.Lead, changedBy string, changedByID int64) events.BookingEventPayload {
	p := events.BookingEventPayload{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		Status:      booking.Status,
		Campus:      booking.Campus,
		ScheduledAt: booking.ScheduledAt,
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
	}
	if lead != nil {
		p.CRMLeadID = lead.CRMLeadID
	}
	return p
}
