package bot

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender - часть tgbotapi.BotAPI, через которую бот отправляет сообщения
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

const closedMark = "✅ Сделка завершена"

// TelegramGateway публикует объявления о заявках в группе
type TelegramGateway struct {
	api     sender
	groupID int64
}

// NewTelegramGateway создает шлюз для группы groupID
func NewTelegramGateway(api sender, groupID int64) *TelegramGateway {
	return &TelegramGateway{api: api, groupID: groupID}
}

func (g *TelegramGateway) Announce(ctx context.Context, text string) (int, error) {
	if g.groupID == 0 {
		return 0, fmt.Errorf("group id is not configured")
	}
	msg := tgbotapi.NewMessage(g.groupID, html.EscapeString(text))
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := g.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send announcement: %w", err)
	}
	return sent.MessageID, nil
}

// MarkClosed зачеркивает объявление и добавляет отметку о завершении сделки
func (g *TelegramGateway) MarkClosed(ctx context.Context, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(g.groupID, messageID,
		"<s>"+html.EscapeString(text)+"</s>\n\n"+closedMark)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := g.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit announcement %d: %w", messageID, err)
	}
	return nil
}
