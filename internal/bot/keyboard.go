package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/wizard"
)

const (
	buttonCreate = "➕ Создать заявку"
	buttonList   = "📋 Актуальные заявки"
	buttonMine   = "⚙️ Мои заявки"
	buttonRates  = "💱 Курсы валют"
)

// optionsPerRow - сколько вариантов выбора помещается в строку
const optionsPerRow = 2

func (b *Bot) getMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonCreate),
			tgbotapi.NewKeyboardButton(buttonList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonMine),
			tgbotapi.NewKeyboardButton(buttonRates),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// promptKeyboard раскладывает варианты подсказки: выбор по два в строке,
// остальные действия по одному, назад и отмена в последней строке
func promptKeyboard(p *wizard.Prompt) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var picks, nav []tgbotapi.InlineKeyboardButton

	for _, o := range p.Options {
		button := tgbotapi.NewInlineKeyboardButtonData(o.Label, encodeWizard(o.Choice))
		switch o.Choice.Action {
		case wizard.ActionPick:
			picks = append(picks, button)
			if len(picks) == optionsPerRow {
				rows = append(rows, picks)
				picks = nil
			}
		case wizard.ActionBack, wizard.ActionCancel:
			nav = append(nav, button)
		default:
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
		}
	}
	if len(picks) > 0 {
		rows = append(rows, picks)
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// maxCloseButtons - сколько кнопок закрытия показывается под списком своих заявок
const maxCloseButtons = 20

func closeKeyboard(requests []model.Request) tgbotapi.InlineKeyboardMarkup {
	if len(requests) > maxCloseButtons {
		requests = requests[:maxCloseButtons]
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ Закрыть заявку #%d", r.ID), encodeClose(r.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dashboardKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", dashboardRefresh),
		),
	)
}

func broadcastKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Отправить всем", broadcastSend),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", broadcastCancel),
		),
	)
}
