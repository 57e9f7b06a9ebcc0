package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockTelegramSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *mockTelegramSender) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockTelegramSender) GetSelf() tgbotapi.User {
	args := m.Called()
	return args.Get(0).(tgbotapi.User)
}

func (m *mockTelegramSender) StopReceivingUpdates() {
	m.Called()
}

func TestTelegramService(t *testing.T) {
	mockSender := new(mockTelegramSender)
	svc := NewTelegramService(mockSender)
	ctx := context.Background()

	t.Run("SendMessage", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.Text == "hello" && msg.ChatID == 123
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendMessage(123, "hello")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendInlineButtons", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			if !ok || len(markup.InlineKeyboard) != 2 {
				return false
			}
			data := markup.InlineKeyboard[0][0].CallbackData
			url := markup.InlineKeyboard[1][0].URL
			return data != nil && *data == "lang:ru" && url != nil && *url == "https://t.me/school"
		})).Return(tgbotapi.Message{}, nil).Once()

		err := svc.Send(ctx, models.OutboundMessage{
			ChatID: 1,
			Text:   "pick",
			Buttons: [][]models.Button{
				{{Text: "RU", Data: "lang:ru"}},
				{{Text: "Channel", URL: "https://t.me/school"}},
			},
		})
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendRequestContact", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
			return ok && kb.Keyboard[0][0].RequestContact && kb.OneTimeKeyboard
		})).Return(tgbotapi.Message{}, nil).Once()

		assert.NoError(t, svc.Send(ctx, models.OutboundMessage{ChatID: 1, Text: "phone?", RequestContact: "Share"}))
		mockSender.AssertExpectations(t)
	})

	t.Run("SendRemoveKeyboard", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			_, ok = msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
			return ok
		})).Return(tgbotapi.Message{}, nil).Once()

		assert.NoError(t, svc.Send(ctx, models.OutboundMessage{ChatID: 1, Text: "name?", RemoveKeyboard: true}))
		mockSender.AssertExpectations(t)
	})

	t.Run("BlockedIsPermanent", func(t *testing.T) {
		mockSender.On("Send", mock.Anything).
			Return(tgbotapi.Message{}, &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}).Once()

		err := svc.Send(ctx, models.OutboundMessage{ChatID: 9, Text: "hi"})
		assert.ErrorIs(t, err, domain.ErrPermanent)
	})

	t.Run("NetworkIsTransient", func(t *testing.T) {
		mockSender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("connection reset")).Once()

		err := svc.Send(ctx, models.OutboundMessage{ChatID: 9, Text: "hi"})
		assert.ErrorIs(t, err, domain.ErrTransient)
	})

	t.Run("TimeoutIsTransient", func(t *testing.T) {
		release := make(chan time.Time)
		mockSender.On("Send", mock.Anything).WaitUntil(release).Return(tgbotapi.Message{}, nil).Once()

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := svc.Send(tctx, models.OutboundMessage{ChatID: 9, Text: "slow"})
		require.ErrorIs(t, err, domain.ErrTransient)
		close(release)
	})

	t.Run("AnswerCallback", func(t *testing.T) {
		mockSender.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			_, ok := c.(tgbotapi.CallbackConfig)
			return ok
		})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

		err := svc.AnswerCallback("cb123", "ok")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})
}
