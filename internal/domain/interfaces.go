package domain

import (
	"context"
	"time"

	"admissionsbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Store is the durable lead and booking state.
type Store interface {
	GetLead(ctx context.Context, userID int64) (*models.Lead, error)
	UpsertLead(ctx context.Context, lead *models.Lead) error
	GetLeadByCRMLead(ctx context.Context, crmLeadID int64) (*models.Lead, error)
	GetBookingsDue(ctx context.Context, kind string, asOf time.Time) ([]*models.Booking, error)
	MarkSent(ctx context.Context, bookingID int64, kind string, at time.Time) (bool, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBooking(ctx context.Context, userID int64) (*models.Booking, error)
	SaveBooking(ctx context.Context, lead *models.Lead, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error)
}

// ReportStore backs staff commands.
type ReportStore interface {
	CountLeads(ctx context.Context) (total, qualified int, err error)
	CountBookingsByStatus(ctx context.Context) (map[string]int, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error)
	ListLeadChatIDs(ctx context.Context) ([]int64, error)
}

// CRMQueueStore persists outbox tasks for the CRM worker.
type CRMQueueStore interface {
	CreateCRMTask(ctx context.Context, task *models.CRMTask) error
	GetPendingCRMTasks(ctx context.Context, limit int) ([]models.CRMTask, error)
	UpdateCRMTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// CRMGateway is the narrow view of the CRM used by the bot. Calls are
// idempotent by external identity and return errors wrapping ErrTransient
// or ErrPermanent.
type CRMGateway interface {
	UpsertContact(ctx context.Context, contactID int64, fields models.ContactFields) (int64, error)
	UpsertLead(ctx context.Context, leadID, contactID int64, fields models.LeadFields) (int64, error)
	AddNote(ctx context.Context, leadID int64, text string) error
	CreateTask(ctx context.Context, leadID int64, text string, due time.Time) error
}

// Dispatcher delivers outbound messages to users or staff.
type Dispatcher interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// LeadLocker serializes work on one lead across handlers and the sweep.
type LeadLocker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

// Guard throttles users and drops redelivered updates.
type Guard interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
	SeenUpdate(ctx context.Context, updateID int) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CRMQueue accepts deferred CRM calls.
type CRMQueue interface {
	Enqueue(ctx context.Context, taskType string, userID int64, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Dispatcher
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) error
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// ConversationHandler advances a lead's conversation by one inbound event.
type ConversationHandler interface {
	Handle(ctx context.Context, ev models.InboundEvent) error
}

// AttendanceService applies staff decisions on a tour.
type AttendanceService interface {
	SetAttendance(ctx context.Context, bookingID int64, status string, staffID int64) (*models.Booking, error)
}

// BookingExporter writes a spreadsheet of tours for local days from..to.
type BookingExporter interface {
	ExportBookings(ctx context.Context, from, to time.Time) (string, error)
}
