package bot

import (
	"testing"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptKeyboard(t *testing.T) {
	p := &wizard.Prompt{Options: []wizard.Option{
		{Label: "USD", Choice: wizard.Choice{Action: wizard.ActionPick, Param: "USD"}},
		{Label: "EUR", Choice: wizard.Choice{Action: wizard.ActionPick, Param: "EUR"}},
		{Label: "RUB", Choice: wizard.Choice{Action: wizard.ActionPick, Param: "RUB"}},
		{Label: "➡️ Продолжить", Choice: wizard.Choice{Action: wizard.ActionContinue}},
		{Label: "⬅️ Назад", Choice: wizard.Choice{Action: wizard.ActionBack, Param: "amount"}},
		{Label: "❌ Отмена", Choice: wizard.Choice{Action: wizard.ActionCancel}},
	}}

	rows := promptKeyboard(p).InlineKeyboard
	require.Len(t, rows, 4)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 1)
	assert.Equal(t, "w:continue:", *rows[2][0].CallbackData)
	require.Len(t, rows[3], 2)
	assert.Equal(t, "w:back:amount", *rows[3][0].CallbackData)
	assert.Equal(t, "w:cancel:", *rows[3][1].CallbackData)
}

func TestCloseKeyboard(t *testing.T) {
	rows := closeKeyboard([]model.Request{{ID: 3}, {ID: 5}}).InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "❌ Закрыть заявку #5", rows[1][0].Text)
	assert.Equal(t, "close:5", *rows[1][0].CallbackData)
}

func TestMainKeyboard(t *testing.T) {
	kb := (&Bot{}).getMainKeyboard()
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 2)
	assert.Equal(t, buttonCreate, kb.Keyboard[0][0].Text)
	assert.Equal(t, buttonRates, kb.Keyboard[1][1].Text)
}

func TestCloseKeyboard_Capped(t *testing.T) {
	requests := make([]model.Request, maxCloseButtons+5)
	for i := range requests {
		requests[i].ID = int64(i + 1)
	}
	rows := closeKeyboard(requests).InlineKeyboard
	require.Len(t, rows, maxCloseButtons)
	assert.Equal(t, "close:1", *rows[0][0].CallbackData)
}
