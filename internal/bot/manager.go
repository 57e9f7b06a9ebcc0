package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	broadcastTimeout = 10 * time.Minute
	// Telegram допускает около 30 сообщений в секунду
	broadcastRate     = 25
	exportDateLayout  = "02.01.2006"
	defaultExportDays = 7
)

var statsOrder = []string{
	models.BookingBooked,
	models.BookingReminded,
	models.BookingConfirmed,
	models.BookingAttended,
	models.BookingNoShow,
	models.BookingRescheduled,
	models.BookingCancelled,
}

func (b *Bot) handleManagerCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	command := msg.Command()
	switch command {
	case "stats":
		b.sendStats(ctx, msg.Chat.ID)
	case "broadcast":
		b.broadcast(ctx, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
	case "export":
		b.exportBookings(ctx, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
	default:
		return false
	}

	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}
	return true
}

func (b *Bot) sendChatInfo(ctx context.Context, msg *tgbotapi.Message) {
	text := fmt.Sprintf("Chat ID: %d\nUser ID: %d\nChat type: %s", msg.Chat.ID, msg.From.ID, msg.Chat.Type)
	b.reply(ctx, msg.Chat.ID, text)
}

// sendStats показывает менеджеру сводку по лидам и турам
func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	if b.reports == nil {
		return
	}

	total, qualified, err := b.reports.CountLeads(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error counting leads")
		b.reply(ctx, chatID, "Ошибка при получении данных")
		return
	}
	byStatus, err := b.reports.CountBookingsByStatus(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error counting bookings")
		b.reply(ctx, chatID, "Ошибка при получении данных")
		return
	}

	var message strings.Builder
	message.WriteString("📊 Статистика\n\n")
	message.WriteString("👥 Лиды\n")
	message.WriteString(fmt.Sprintf("Всего: %d\n", total))
	message.WriteString(fmt.Sprintf("Квалифицировано: %d\n\n", qualified))

	message.WriteString("📅 Туры\n")
	sum := 0
	for _, status := range statsOrder {
		n := byStatus[status]
		sum += n
		if n > 0 {
			message.WriteString(fmt.Sprintf("%s: %d\n", status, n))
		}
	}
	message.WriteString(fmt.Sprintf("Всего: %d", sum))

	b.reply(ctx, chatID, message.String())
}

// broadcast sends text to every lead's chat and reports the totals back.
func (b *Bot) broadcast(ctx context.Context, chatID int64, text string) {
	if text == "" {
		b.reply(ctx, chatID, "Использование: /broadcast <текст>")
		return
	}
	if b.reports == nil {
		return
	}

	// рассылка может идти дольше, чем живет контекст апдейта
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()

	chats, err := b.reports.ListLeadChatIDs(bctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error listing lead chats")
		b.reply(ctx, chatID, "Ошибка при получении данных")
		return
	}

	limiter := rate.NewLimiter(rate.Limit(broadcastRate), 1)
	sent, failed := 0, 0
	for _, id := range chats {
		if err := limiter.Wait(bctx); err != nil {
			failed += len(chats) - sent - failed
			break
		}
		if err := b.tgService.Send(bctx, models.OutboundMessage{ChatID: id, Text: text}); err != nil {
			failed++
			b.logger.Warn().Err(err).Int64("chat_id", id).Msg("Broadcast message failed")
			continue
		}
		sent++
	}

	b.logger.Info().Int("sent", sent).Int("failed", failed).Msg("Broadcast finished")
	b.reply(bctx, chatID, fmt.Sprintf("📣 Рассылка завершена\nОтправлено: %d\nОшибок: %d", sent, failed))
}

// exportBookings accepts "/export" for the coming week or
// "/export 01.10.2026 31.10.2026" for an explicit period.
func (b *Bot) exportBookings(ctx context.Context, chatID int64, args string) {
	if b.exporter == nil {
		return
	}

	from, to, err := parseExportPeriod(args, time.Now().In(b.config.App.Location()))
	if err != nil {
		b.reply(ctx, chatID, "Использование: /export [ДД.ММ.ГГГГ ДД.ММ.ГГГГ]")
		return
	}

	path, err := b.exporter.ExportBookings(ctx, from, to)
	if err != nil {
		b.logger.Error().Err(err).Msg("Export failed")
		b.reply(ctx, chatID, "Ошибка при создании отчета")
		return
	}

	caption := fmt.Sprintf("Туры %s - %s", from.Format(exportDateLayout), to.Format(exportDateLayout))
	if err := b.tgService.SendDocument(chatID, path, caption); err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("Failed to send export")
		b.reply(ctx, chatID, "Ошибка при отправке файла")
	}
}

func parseExportPeriod(args string, now time.Time) (time.Time, time.Time, error) {
	if args == "" {
		return now, now.AddDate(0, 0, defaultExportDays-1), nil
	}
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, errors.New("expected two dates")
	}
	from, err := time.ParseInLocation(exportDateLayout, parts[0], now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.ParseInLocation(exportDateLayout, parts[1], now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("period ends before it starts")
	}
	return from, to, nil
}

// handleAttendance applies a one-click status from the attendance check
// posted to the admissions chat.
func (b *Bot) handleAttendance(ctx context.Context, callback *tgbotapi.CallbackQuery, bookingID int64, status string) {
	chatID := callback.Message.Chat.ID
	if !b.config.IsManager(callback.From.ID) && chatID != b.config.Admissions.ChatID {
		b.logger.Warn().Int64("user_id", callback.From.ID).Msg("Attendance update from outside staff")
		return
	}
	if b.attendance == nil {
		return
	}

	booking, err := b.attendance.SetAttendance(ctx, bookingID, status, callback.From.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("booking_id", bookingID).Str("status", status).Msg("Attendance update failed")
		reason := "ошибка сервера"
		switch {
		case errors.Is(err, domain.ErrNotFound):
			reason = "бронирование не найдено"
		case errors.Is(err, domain.ErrInvalidTransition):
			reason = "статус уже изменен"
		case errors.Is(err, domain.ErrValidation):
			reason = "недопустимый статус"
		}
		b.reply(ctx, chatID, fmt.Sprintf("⚠️ Не удалось обновить тур #%d: %s", bookingID, reason))
		return
	}

	text := messages.StatusUpdated(booking.Status, callback.Message.Text)
	if _, err := b.tgService.EditMessage(chatID, callback.Message.MessageID, text, nil); err != nil {
		b.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("Failed to edit attendance check")
	}
}
