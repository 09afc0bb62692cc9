package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/rates"
	"github.com/ivanoskov/exchange_bot/internal/service"
	"github.com/ivanoskov/exchange_bot/internal/wizard"
)

const (
	welcomeText = "Добро пожаловать в бот обмена валют! 💱\n\n" +
		"Здесь можно разместить заявку на обмен или перевод и найти встречные заявки.\n\n" +
		"Выберите действие:"
	cancelledText = "❌ Создание заявки отменено."
	expiredText   = "⌛ Сессия создания заявки истекла. Начните заново: /create"
	adminOnlyText = "⛔ Команда доступна только администратору."
	convertUsage  = "Использование: /convert <сумма> <из> <в>\nНапример: /convert 100 USD RUB"
	updateUsage   = "Использование: /send_update <текст в HTML>"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if !message.Chat.IsPrivate() || message.From == nil {
		return nil
	}

	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "create":
		return b.handleCreate(ctx, message)
	case "cancel":
		return b.handleCancel(ctx, message)
	case "list":
		return b.handleList(ctx, message)
	case "my":
		return b.handleMy(ctx, message)
	case "rates":
		return b.handleRates(ctx, message)
	case "convert":
		return b.handleConvert(ctx, message)
	case "stats":
		return b.handleStats(ctx, message)
	case "post_dashboard":
		return b.handlePostDashboard(ctx, message)
	case "send_update":
		return b.handleSendUpdate(ctx, message)
	}
	b.sendText(ctx, message.Chat.ID, "Неизвестная команда. Начните с /start")
	return nil
}

// handleMessage обрабатывает кнопки главного меню, остальной текст уходит в мастер
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if !message.Chat.IsPrivate() || message.From == nil {
		return nil
	}

	switch message.Text {
	case buttonCreate:
		return b.handleCreate(ctx, message)
	case buttonList:
		return b.handleList(ctx, message)
	case buttonMine:
		return b.handleMy(ctx, message)
	case buttonRates:
		return b.handleRates(ctx, message)
	}

	in := wizard.Input{UserID: message.From.ID, Kind: wizard.KindText, Text: message.Text}
	return b.handleWizardInput(ctx, message.Chat.ID, 0, in)
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if err := b.requests.RegisterUser(ctx, userFrom(message.From)); err != nil {
		// приветствие показываем и без регистрации
		b.loggerFrom(ctx).Warn("Failed to register user", "error", err)
	}
	b.sendMainMenu(ctx, message.Chat.ID, welcomeText)
	return nil
}

func (b *Bot) handleCreate(ctx context.Context, message *tgbotapi.Message) error {
	if err := b.requests.RegisterUser(ctx, userFrom(message.From)); err != nil {
		b.loggerFrom(ctx).Warn("Failed to register user", "error", err)
	}

	prompt, err := b.engine.Start(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось начать создание заявки")
		return fmt.Errorf("failed to start wizard: %w", err)
	}
	b.showPrompt(ctx, message.Chat.ID, 0, prompt)
	return nil
}

func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) error {
	cancelled, err := b.engine.Cancel(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось отменить заявку")
		return fmt.Errorf("failed to cancel wizard: %w", err)
	}
	if !cancelled {
		b.sendMainMenu(ctx, message.Chat.ID, "Нет заявки в процессе создания.")
		return nil
	}
	b.sendMainMenu(ctx, message.Chat.ID, cancelledText)
	return nil
}

func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message) error {
	requests, err := b.requests.ListActive(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Ошибка при получении заявок")
		return err
	}

	text := requestListText(requests, b.authors(ctx, requests))
	for _, part := range splitMessage(text, messageLimit) {
		b.sendText(ctx, message.Chat.ID, part)
	}
	return nil
}

func (b *Bot) handleMy(ctx context.Context, message *tgbotapi.Message) error {
	requests, err := b.requests.ListMine(ctx, message.From.ID)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Ошибка при получении ваших заявок")
		return err
	}

	// кнопки закрытия идут с последней частью списка
	parts := splitMessage(myRequestsText(requests), messageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(message.Chat.ID, part)
		if i == len(parts)-1 && len(requests) > 0 {
			msg.ReplyMarkup = closeKeyboard(requests)
		}
		_, _ = b.send(ctx, msg)
	}
	return nil
}

func (b *Bot) handleRates(ctx context.Context, message *tgbotapi.Message) error {
	current, err := b.rates.Fetch(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось получить курсы. Попробуйте позже.")
		return err
	}
	return b.sendHTML(ctx, message.Chat.ID, ratesText(current))
}

func (b *Bot) handleConvert(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 3 {
		b.sendText(ctx, message.Chat.ID, convertUsage)
		return nil
	}

	amount, err := wizard.ParseAmount(args[0])
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Неверная сумма. "+convertUsage)
		return nil
	}
	from, to := strings.ToUpper(args[1]), strings.ToUpper(args[2])

	current, err := b.rates.Fetch(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось получить курсы. Попробуйте позже.")
		return err
	}

	result, rate, err := rates.Convert(amount, from, to, current)
	if errors.Is(err, rates.ErrUnsupportedCurrency) {
		b.sendErrorMessage(ctx, message.Chat.ID, fmt.Sprintf("Нет курса для пары %s/%s", from, to))
		return nil
	}
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Ошибка при конвертации")
		return err
	}
	return b.sendHTML(ctx, message.Chat.ID, conversionText(amount, from, to, result, rate))
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	report, err := b.requests.Report(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Ошибка при построении статистики")
		return err
	}
	b.sendText(ctx, message.Chat.ID, report.Text)

	log := b.loggerFrom(ctx)
	pairs, err := b.charts.GeneratePairChart(report)
	if err != nil {
		log.Warn("Failed to render pair chart", "error", err)
	}
	b.sendPhoto(ctx, message.Chat.ID, "pairs.png", pairs)

	trend, err := b.charts.GenerateTrendChart(report)
	if err != nil {
		log.Warn("Failed to render trend chart", "error", err)
	}
	b.sendPhoto(ctx, message.Chat.ID, "trend.png", trend)

	// без курсов объемы в разных валютах не сравнить, диаграмма пропускается
	current, err := b.rates.Fetch(ctx)
	if err != nil {
		log.Warn("Failed to fetch rates for volume chart", "error", err)
		return nil
	}
	volumes, err := b.charts.GenerateVolumePieChart(report, tjsRates(current))
	if err != nil {
		log.Warn("Failed to render volume chart", "error", err)
	}
	b.sendPhoto(ctx, message.Chat.ID, "volumes.png", volumes)
	return nil
}

func (b *Bot) sendPhoto(ctx context.Context, chatID int64, name string, png []byte) {
	if len(png) == 0 {
		return
	}
	_, _ = b.send(ctx, tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png}))
}

// tjsRates - курс покупки каждой валюты в TJS
func tjsRates(r rates.Rates) map[string]float64 {
	out := make(map[string]float64, len(r))
	for cur, rate := range r {
		out[cur] = rate.Buy.InexactFloat64()
	}
	return out
}

func (b *Bot) handlePostDashboard(ctx context.Context, message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		b.sendText(ctx, message.Chat.ID, adminOnlyText)
		return nil
	}
	if b.groupID == 0 {
		b.sendErrorMessage(ctx, message.Chat.ID, "GROUP_ID не настроен")
		return nil
	}

	requests, err := b.requests.ListActive(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Ошибка при получении заявок")
		return err
	}

	msg := tgbotapi.NewMessage(b.groupID, dashboardText(requests, b.authors(ctx, requests)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = dashboardKeyboard()
	sent, err := b.send(ctx, msg)
	if err != nil {
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось опубликовать сводку в группе")
		return err
	}

	b.dashboard.Store(int64(sent.MessageID))
	b.sendText(ctx, message.Chat.ID, fmt.Sprintf(
		"✅ Сводка опубликована. ID сообщения: %d\nУкажите его в DASHBOARD_MESSAGE_ID и закрепите сообщение.",
		sent.MessageID))
	return nil
}

// handleSendUpdate показывает администратору сообщение для рассылки
// и ждет подтверждения кнопкой
func (b *Bot) handleSendUpdate(ctx context.Context, message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		b.sendText(ctx, message.Chat.ID, adminOnlyText)
		return nil
	}
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.sendText(ctx, message.Chat.ID, updateUsage)
		return nil
	}

	b.sendText(ctx, message.Chat.ID, "👀 Предпросмотр рассылки:")
	preview := tgbotapi.NewMessage(message.Chat.ID, text)
	preview.ParseMode = tgbotapi.ModeHTML
	preview.ReplyMarkup = broadcastKeyboard()
	if _, err := b.send(ctx, preview); err != nil {
		// Telegram отклоняет сообщение с неверной разметкой
		b.sendErrorMessage(ctx, message.Chat.ID, "Не удалось показать сообщение, проверьте HTML-разметку: "+err.Error())
		return nil
	}

	b.broadcastMu.Lock()
	b.pendingBroadcast = text
	b.broadcastMu.Unlock()
	return nil
}

// takePendingBroadcast возвращает ожидающую рассылку и забывает ее
func (b *Bot) takePendingBroadcast() string {
	b.broadcastMu.Lock()
	defer b.broadcastMu.Unlock()
	text := b.pendingBroadcast
	b.pendingBroadcast = ""
	return text
}

func (b *Bot) handleBroadcastCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, confirmed bool) error {
	if !b.isAdmin(callback.From.ID) {
		b.answerCallback(ctx, callback.ID, adminOnlyText)
		return nil
	}

	text := b.takePendingBroadcast()
	if callback.Message != nil {
		// кнопки подтверждения больше не нужны
		strip := tgbotapi.NewEditMessageReplyMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := b.api.Request(strip); err != nil {
			b.logEditError(ctx, callback.Message.MessageID, err)
		}
	}
	if text == "" {
		b.answerCallback(ctx, callback.ID, "Нет сообщения для рассылки")
		return nil
	}
	if !confirmed {
		b.answerCallback(ctx, callback.ID, "Рассылка отменена")
		return nil
	}

	b.answerCallback(ctx, callback.ID, "Рассылка начата")
	return b.broadcast(ctx, callback.From.ID, text)
}

// broadcast рассылает сообщение всем пользователям и отчитывается администратору
func (b *Bot) broadcast(ctx context.Context, adminChatID int64, text string) error {
	ids, err := b.requests.ListUserIDs(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, adminChatID, "Ошибка при получении списка пользователей")
		return err
	}

	sent, failed := 0, 0
	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.broadcastPause):
			}
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(msg); err != nil {
			failed++
			b.loggerFrom(ctx).Warn("Failed to deliver update", "user_id", id, "error", err)
			continue
		}
		sent++
	}

	b.sendText(ctx, adminChatID, fmt.Sprintf("📨 Рассылка завершена.\nДоставлено: %d\nОшибок: %d", sent, failed))
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	data, err := decodeCallback(callback.Data)
	if err != nil {
		b.answerCallback(ctx, callback.ID, "Кнопка устарела")
		return err
	}

	switch data.kind {
	case callbackWizard:
		b.answerCallback(ctx, callback.ID, "")
		if callback.Message == nil {
			return nil
		}
		in := wizard.Input{UserID: callback.From.ID, Kind: wizard.KindChoice, Choice: data.choice}
		return b.handleWizardInput(ctx, callback.Message.Chat.ID, callback.Message.MessageID, in)
	case callbackClose:
		return b.handleClose(ctx, callback, data.requestID)
	case callbackDashboard:
		b.answerCallback(ctx, callback.ID, "Обновлено")
		b.refreshDashboardQuietly(ctx)
	case callbackBroadcast:
		return b.handleBroadcastCallback(ctx, callback, data.confirmed)
	}
	return nil
}

func (b *Bot) handleClose(ctx context.Context, callback *tgbotapi.CallbackQuery, requestID int64) error {
	_, err := b.requests.Close(ctx, requestID, callback.From.ID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		b.answerCallback(ctx, callback.ID, "Заявка не найдена")
		return nil
	case errors.Is(err, service.ErrForbidden):
		b.answerCallback(ctx, callback.ID, "Это не ваша заявка")
		return nil
	case errors.Is(err, service.ErrAlreadyClosed):
		b.answerCallback(ctx, callback.ID, "Заявка уже закрыта")
		return nil
	case err != nil:
		b.answerCallback(ctx, callback.ID, "Не удалось закрыть заявку")
		return err
	}
	b.answerCallback(ctx, callback.ID, fmt.Sprintf("Заявка #%d закрыта", requestID))

	if callback.Message != nil {
		mine, err := b.requests.ListMine(ctx, callback.From.ID)
		if err != nil {
			b.loggerFrom(ctx).Warn("Failed to reload own requests", "error", err)
		} else {
			var markup *tgbotapi.InlineKeyboardMarkup
			if len(mine) > 0 {
				keyboard := closeKeyboard(mine)
				markup = &keyboard
			}
			b.edit(ctx, callback.Message.Chat.ID, callback.Message.MessageID, closedOwnText(requestID, mine), markup)
		}
	}
	b.refreshDashboardQuietly(ctx)
	return nil
}

// handleWizardInput передает ввод мастеру и показывает результат.
// editID - сообщение с подсказкой, которое нужно заменить; 0 - отправить новое.
func (b *Bot) handleWizardInput(ctx context.Context, chatID int64, editID int, in wizard.Input) error {
	res, err := b.engine.Handle(ctx, in)
	if errors.Is(err, wizard.ErrNoSession) {
		if editID != 0 {
			b.edit(ctx, chatID, editID, expiredText, nil)
			return nil
		}
		b.sendMainMenu(ctx, chatID, "Выберите действие:")
		return nil
	}
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Не удалось сохранить заявку. Попробуйте опубликовать еще раз.")
		return fmt.Errorf("wizard input: %w", err)
	}

	switch {
	case res.Cancelled:
		if editID != 0 {
			b.edit(ctx, chatID, editID, cancelledText, nil)
		}
		b.sendMainMenu(ctx, chatID, "Выберите действие:")
	case res.Request != nil:
		text := publishedText(res.Request)
		if editID != 0 {
			b.edit(ctx, chatID, editID, text, nil)
			b.sendMainMenu(ctx, chatID, "Выберите действие:")
		} else {
			b.sendMainMenu(ctx, chatID, text)
		}
		b.refreshDashboardQuietly(ctx)
	case res.Prompt != nil:
		b.showPrompt(ctx, chatID, editID, res.Prompt)
	}
	return nil
}

func publishedText(r *model.Request) string {
	return fmt.Sprintf("✅ Заявка #%d опубликована!\n\n%s", r.ID, r.MessageText)
}

func (b *Bot) showPrompt(ctx context.Context, chatID int64, editID int, p *wizard.Prompt) {
	keyboard := promptKeyboard(p)
	if editID != 0 {
		b.edit(ctx, chatID, editID, p.Text, &keyboard)
		return
	}
	msg := tgbotapi.NewMessage(chatID, p.Text)
	msg.ReplyMarkup = keyboard
	_, _ = b.send(ctx, msg)
}

// refreshDashboard перерисовывает сводку активных заявок в группе
func (b *Bot) refreshDashboard(ctx context.Context) error {
	messageID := int(b.dashboard.Load())
	if messageID == 0 || b.groupID == 0 {
		return nil
	}

	requests, err := b.requests.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active requests: %w", err)
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(b.groupID, messageID,
		dashboardText(requests, b.authors(ctx, requests)), dashboardKeyboard())
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("failed to update dashboard: %w", err)
	}
	return nil
}

func (b *Bot) refreshDashboardQuietly(ctx context.Context) {
	if err := b.refreshDashboard(ctx); err != nil {
		b.loggerFrom(ctx).Warn("Dashboard refresh failed", "error", err)
	}
}

// authors загружает авторов заявок, по одному запросу на пользователя
func (b *Bot) authors(ctx context.Context, requests []model.Request) map[int64]*model.User {
	authors := make(map[int64]*model.User)
	for i := range requests {
		id := requests[i].RequesterID
		if _, ok := authors[id]; ok {
			continue
		}
		authors[id] = b.requests.Author(ctx, &requests[i])
	}
	return authors
}

func userFrom(from *tgbotapi.User) *model.User {
	return &model.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
	}
}
