// Package bot связывает Telegram с мастером создания заявок и сервисом заявок.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/ivanoskov/exchange_bot/internal/charts"
	"github.com/ivanoskov/exchange_bot/internal/rates"
	"github.com/ivanoskov/exchange_bot/internal/service"
	"github.com/ivanoskov/exchange_bot/internal/wizard"
)

// ErrBadUpdate - тело webhook-запроса не является обновлением Telegram
var ErrBadUpdate = errors.New("malformed telegram update")

// notModified - ответ Telegram на редактирование без изменений
const notModified = "message is not modified"

// broadcastPause - пауза между сообщениями рассылки, чтобы не упереться в лимиты Telegram
const broadcastPause = 100 * time.Millisecond

// Options - настройки бота, относящиеся к группе и администратору
type Options struct {
	GroupID            int64
	AdminID            int64
	DashboardMessageID int
}

type Bot struct {
	api      sender
	poller   *tgbotapi.BotAPI
	requests *service.Requests
	engine   *wizard.Engine
	rates    *rates.Client
	charts   *charts.ChartGenerator
	logger   *slog.Logger

	groupID   int64
	adminID   int64
	dashboard atomic.Int64

	broadcastPause   time.Duration
	broadcastMu      sync.Mutex
	pendingBroadcast string

	wg sync.WaitGroup
}

// NewBot создает бота поверх подключенного клиента Telegram API
func NewBot(api *tgbotapi.BotAPI, requests *service.Requests, engine *wizard.Engine, ratesClient *rates.Client, logger *slog.Logger, opts Options) *Bot {
	b := newBot(api, requests, engine, ratesClient, logger, opts)
	b.poller = api
	return b
}

func newBot(api sender, requests *service.Requests, engine *wizard.Engine, ratesClient *rates.Client, logger *slog.Logger, opts Options) *Bot {
	b := &Bot{
		api:            api,
		requests:       requests,
		engine:         engine,
		rates:          ratesClient,
		charts:         charts.NewChartGenerator(),
		logger:         logger,
		groupID:        opts.GroupID,
		adminID:        opts.AdminID,
		broadcastPause: broadcastPause,
	}
	b.dashboard.Store(int64(opts.DashboardMessageID))
	return b
}

// Start запускает бота в режиме long polling. Каждое обновление
// обрабатывается в своей горутине; Start возвращается после отмены ctx
// и завершения начатых обработчиков.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return fmt.Errorf("bot is not connected to telegram")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.poller.GetUpdatesChan(u)

	// начатые обработчики доводятся до конца и после остановки
	handlerCtx := context.WithoutCancel(ctx)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.poller.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				// Логируем ошибку, но продолжаем работу
				_ = b.handleUpdate(handlerCtx, update)
			}()
		}
	}
}

// HandleWebhook - точка входа для обработки входящих webhook-обновлений
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("%w: %v", ErrBadUpdate, err)
	}
	return b.handleUpdate(ctx, update)
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	log := b.logger.With(
		"update_id", update.UpdateID,
		"trace_id", uuid.NewString())
	ctx = withLogger(ctx, log)

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		err = b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	}
	if err != nil {
		log.Error("Error handling update", "error", err)
	}
	return err
}

type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFrom возвращает логгер обновления или логгер бота
func (b *Bot) loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return b.logger
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.loggerFrom(ctx).Warn("Failed to send message", "error", err)
	}
	return msg, err
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	_, _ = b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.send(ctx, msg)
	return err
}

func (b *Bot) sendMainMenu(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = b.getMainKeyboard()
	_, _ = b.send(ctx, msg)
}

func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, text string) {
	b.sendText(ctx, chatID, "❌ "+text)
}

// edit заменяет текст сообщения; markup nil убирает клавиатуру
func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = markup
	if _, err := b.api.Request(edit); err != nil {
		b.logEditError(ctx, messageID, err)
	}
}

// logEditError пишет ошибку редактирования. Повторное нажатие той же кнопки
// дает "message is not modified", это не сбой.
func (b *Bot) logEditError(ctx context.Context, messageID int, err error) {
	level := slog.LevelWarn
	if strings.Contains(err.Error(), notModified) {
		level = slog.LevelDebug
	}
	b.loggerFrom(ctx).Log(ctx, level, "Failed to edit message",
		"message_id", messageID,
		"error", err)
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.loggerFrom(ctx).Debug("Failed to answer callback", "error", err)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminID != 0 && userID == b.adminID
}
