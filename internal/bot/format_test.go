package bot

import (
	"strings"
	"testing"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/rates"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		assert.Equal(t, []string{"abc"}, splitMessage("abc", 10))
	})

	t.Run("by blocks", func(t *testing.T) {
		text := "aaaa\n\nbbbb\n\ncccc"
		parts := splitMessage(text, 10)
		assert.Equal(t, []string{"aaaa", "bbbb\n\ncccc"}, parts)
	})

	t.Run("long block", func(t *testing.T) {
		parts := splitMessage(strings.Repeat("я", 25), 10)
		require.Len(t, parts, 3)
		for _, p := range parts {
			assert.LessOrEqual(t, len([]rune(p)), 10)
		}
		assert.Equal(t, strings.Repeat("я", 25), strings.Join(parts, ""))
	})
}

func TestRequestListText(t *testing.T) {
	assert.Equal(t, "📋 Активных заявок пока нет.", requestListText(nil, nil))

	requests := []model.Request{
		{ID: 2, RequesterID: 10, MessageText: "Отдам 100 USD"},
		{ID: 1, RequesterID: 20, MessageText: "Получу 50 EUR"},
	}
	authors := map[int64]*model.User{10: {TelegramID: 10, Username: "alice"}}

	text := requestListText(requests, authors)
	assert.Contains(t, text, "#2 от @alice\nОтдам 100 USD")
	assert.Contains(t, text, "#1 от неизвестный")
}

func TestDashboardText(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Contains(t, dashboardText(nil, nil), "активных заявок нет")
	})

	t.Run("escapes html", func(t *testing.T) {
		requests := []model.Request{{ID: 1, RequesterID: 10, MessageText: "<b>x</b> & y"}}
		authors := map[int64]*model.User{10: {FirstName: "A<B"}}
		text := dashboardText(requests, authors)
		assert.Contains(t, text, "&lt;b&gt;x&lt;/b&gt; &amp; y")
		assert.Contains(t, text, "A&lt;B")
	})

	t.Run("overflow", func(t *testing.T) {
		requests := make([]model.Request, 200)
		for i := range requests {
			requests[i] = model.Request{ID: int64(i + 1), MessageText: strings.Repeat("x", 100)}
		}
		text := dashboardText(requests, nil)
		assert.LessOrEqual(t, len([]rune(text)), messageLimit)
		assert.Contains(t, text, "… и еще ")
	})
}

func TestRatesText(t *testing.T) {
	text := ratesText(rates.Rates{
		"USD": {Buy: decimal.RequireFromString("10.9"), Sell: decimal.RequireFromString("11.05")},
		"TJS": {Buy: decimal.NewFromInt(1), Sell: decimal.NewFromInt(1)},
	})
	assert.Contains(t, text, "<b>USD:</b>\n  Покупка: <code>10.9</code>\n  Продажа: <code>11.05</code>")
	assert.NotContains(t, text, "TJS:")
	assert.NotContains(t, text, "EUR")
}

func TestConversionText(t *testing.T) {
	text := conversionText(decimal.NewFromInt(100), "USD", "RUB",
		decimal.RequireFromString("8720"), decimal.RequireFromString("87.2"))
	assert.Contains(t, text, "100 USD = 8720 RUB")
	assert.Contains(t, text, "1 USD ≈ 87.2 RUB")
}

func TestClosedOwnText(t *testing.T) {
	assert.Equal(t, "✅ Заявка #3 закрыта.\n\nУ вас нет активных заявок.", closedOwnText(3, nil))
	assert.Contains(t, closedOwnText(3, []model.Request{{ID: 1}, {ID: 2}}), "Осталось активных заявок: 2")
}
