package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/i18n"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateTimeout = 30 * time.Second
	// maxInFlight ограничивает число одновременно обрабатываемых апдейтов
	maxInFlight = 64
)

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	guard        domain.Guard
	conversation domain.ConversationHandler
	attendance   domain.AttendanceService
	reports      domain.ReportStore
	exporter     domain.BookingExporter
	metrics      *Metrics
	logger       *zerolog.Logger

	inFlight sync.WaitGroup
	slots    chan struct{}
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	guard domain.Guard,
	conversation domain.ConversationHandler,
	attendance domain.AttendanceService,
	reports domain.ReportStore,
	exporter domain.BookingExporter,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil || conversation == nil {
		return nil, errors.New("bot needs a telegram service and a conversation handler")
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &Bot{
		tgService:    tgService,
		config:       config,
		guard:        guard,
		conversation: conversation,
		attendance:   attendance,
		reports:      reports,
		exporter:     exporter,
		metrics:      metrics,
		logger:       logger,
		slots:        make(chan struct{}, maxInFlight),
	}, nil
}

// Start polls Telegram until ctx is done. Each update runs in its own
// goroutine; per-lead ordering is enforced by the lead lock downstream.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")
	defer b.inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case b.slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			b.inFlight.Add(1)
			go func(update tgbotapi.Update) {
				defer func() {
					<-b.slots
					b.inFlight.Done()
				}()
				b.processUpdate(ctx, update)
			}(update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Int("update_id", update.UpdateID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		from := update.SentFrom()
		if from == nil || from.IsBot {
			return
		}

		if b.guard != nil {
			seen, err := b.guard.SeenUpdate(updateCtx, update.UpdateID)
			if err != nil {
				l.Warn().Err(err).Msg("Update dedup check failed")
			} else if seen {
				l.Debug().Msg("Duplicate update dropped")
				b.countUpdate("duplicate")
				return
			}
		}

		if !b.config.IsManager(from.ID) && !b.allow(updateCtx, update, from) {
			return
		}

		if update.CallbackQuery != nil {
			b.countUpdate("callback")
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}

		if update.Message == nil {
			return
		}

		b.countUpdate("message")
		b.handleMessage(updateCtx, update.Message)
	})
}

func (b *Bot) allow(ctx context.Context, update tgbotapi.Update, from *tgbotapi.User) bool {
	if b.guard == nil {
		return true
	}
	window := time.Duration(b.config.Bot.RateLimitWindow) * time.Second
	allowed, err := b.guard.CheckRateLimit(ctx, from.ID, b.config.Bot.RateLimitMessages, window)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", from.ID).Msg("Rate limit check failed")
		return true
	}
	if allowed {
		return true
	}

	b.logger.Warn().Int64("user_id", from.ID).Msg("Rate limit exceeded")
	b.countUpdate("rate_limited")
	if update.Message != nil {
		b.reply(ctx, update.Message.Chat.ID, i18n.T(i18n.Match(from.LanguageCode), "rate_limited"))
	}
	return false
}

// handleMessage turns a private chat message into an inbound event. Staff
// commands are served directly and never reach the conversation.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		if msg.Command() == "getid" {
			b.sendChatInfo(ctx, msg)
			return
		}
		if b.config.IsManager(msg.From.ID) && b.handleManagerCommand(ctx, msg) {
			return
		}
	}

	// группы и чат приемной не ведут диалог с ботом
	if !msg.Chat.IsPrivate() {
		return
	}

	ev := models.InboundEvent{
		UserID:       msg.From.ID,
		ChatID:       msg.Chat.ID,
		Username:     msg.From.UserName,
		FirstName:    msg.From.FirstName,
		LanguageCode: msg.From.LanguageCode,
		MessageID:    msg.MessageID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = models.EventCommand
		ev.Payload = msg.Command()
	case msg.Contact != nil:
		ev.Kind = models.EventContact
		ev.Payload = msg.Contact.PhoneNumber
	case msg.Text != "":
		ev.Kind = models.EventText
		ev.Payload = msg.Text
	default:
		return
	}

	b.dispatch(ctx, ev)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Отвечаем на callback сразу, чтобы убрать "часики"
	if err := b.tgService.AnswerCallback(callback.ID, ""); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to answer callback")
	}

	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}

	if bookingID, status, ok := messages.ParseStaffCallback(callback.Data); ok {
		b.handleAttendance(ctx, callback, bookingID, status)
		return
	}

	if !callback.Message.Chat.IsPrivate() {
		return
	}

	b.dispatch(ctx, models.InboundEvent{
		UserID:       callback.From.ID,
		ChatID:       callback.Message.Chat.ID,
		Username:     callback.From.UserName,
		FirstName:    callback.From.FirstName,
		LanguageCode: callback.From.LanguageCode,
		Kind:         models.EventButton,
		Payload:      callback.Data,
		MessageID:    callback.Message.MessageID,
	})
}

func (b *Bot) dispatch(ctx context.Context, ev models.InboundEvent) {
	if err := b.conversation.Handle(ctx, ev); err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		l := zerolog.Ctx(ctx)
		l.Error().Err(err).Int64("user_id", ev.UserID).Str("kind", ev.Kind).Msg("Failed to handle update")
		b.reply(ctx, ev.ChatID, messages.ErrorText(i18n.Match(ev.LanguageCode), err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.tgService.Send(ctx, models.OutboundMessage{ChatID: chatID, Text: text}); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.UpdatesProcessed.WithLabelValues(kind).Inc()
	}
}
