package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/rates"
	"github.com/shopspring/decimal"
)

// messageLimit - максимальная длина текста сообщения Telegram
const messageLimit = 4096

const dashboardSeparator = "--------------------\n"

// splitMessage делит текст на части не длиннее limit, разрезая по пустым строкам
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}
	for _, block := range strings.SplitAfter(text, "\n\n") {
		if len([]rune(current.String()+block)) > limit {
			flush()
		}
		// блок длиннее лимита режется как есть
		for len([]rune(block)) > limit {
			r := []rune(block)
			parts = append(parts, string(r[:limit]))
			block = string(r[limit:])
		}
		current.WriteString(block)
	}
	flush()
	return parts
}

// requestListText - список заявок для /list
func requestListText(requests []model.Request, authors map[int64]*model.User) string {
	if len(requests) == 0 {
		return "📋 Активных заявок пока нет."
	}
	var b strings.Builder
	b.WriteString("📋 Актуальные заявки:\n\n")
	for _, r := range requests {
		fmt.Fprintf(&b, "#%d от %s\n%s\n\n", r.ID, authors[r.RequesterID].DisplayName(), r.MessageText)
	}
	return strings.TrimRight(b.String(), "\n")
}

// myRequestsText - список своих заявок для /my
func myRequestsText(requests []model.Request) string {
	if len(requests) == 0 {
		return "У вас нет активных заявок."
	}
	var b strings.Builder
	b.WriteString("⚙️ Ваши активные заявки:\n\n")
	for _, r := range requests {
		fmt.Fprintf(&b, "#%d\n%s\n\n", r.ID, r.MessageText)
	}
	if len(requests) > maxCloseButtons {
		fmt.Fprintf(&b, "Кнопки закрытия показаны для %d последних заявок.", maxCloseButtons)
	}
	return strings.TrimRight(b.String(), "\n")
}

// closedOwnText - текст под кнопками после закрытия своей заявки
func closedOwnText(closedID int64, remaining []model.Request) string {
	text := fmt.Sprintf("✅ Заявка #%d закрыта.\n\n", closedID)
	if len(remaining) == 0 {
		return text + "У вас нет активных заявок."
	}
	return text + fmt.Sprintf("Осталось активных заявок: %d. Полный список: /my", len(remaining))
}

// dashboardText - HTML-сводка активных заявок для закрепленного сообщения.
// Не помещающиеся в сообщение заявки только подсчитываются.
func dashboardText(requests []model.Request, authors map[int64]*model.User) string {
	const header = "<b>📊 Актуальные заявки:</b>\n\n"
	if len(requests) == 0 {
		return "<b>📊 Актуальные заявки</b>\n\nНа данный момент активных заявок нет."
	}

	var b strings.Builder
	b.WriteString(header)
	for i, r := range requests {
		entry := fmt.Sprintf("<b>#%d</b> от %s\n%s\n%s",
			r.ID,
			html.EscapeString(authors[r.RequesterID].DisplayName()),
			html.EscapeString(r.MessageText),
			dashboardSeparator)
		// запас под строку о скрытых заявках
		if len([]rune(b.String()+entry)) > messageLimit-64 {
			fmt.Fprintf(&b, "… и еще %d", len(requests)-i)
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

func ratesText(r rates.Rates) string {
	var b strings.Builder
	b.WriteString("<b>Курсы валют Алиф Банка (относительно TJS)</b>\n\n")
	for _, cur := range rates.Displayed {
		rate, ok := r[cur]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<b>%s:</b>\n  Покупка: <code>%s</code>\n  Продажа: <code>%s</code>\n\n",
			cur, rate.Buy.String(), rate.Sell.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func conversionText(amount decimal.Decimal, from, to string, result, rate decimal.Decimal) string {
	return fmt.Sprintf("✅ Результат:\n<code>%s %s = %s %s</code>\n\n<i>Кросс-курс: 1 %s ≈ %s %s</i>",
		amount.String(), from, result.String(), to, from, rate.String(), to)
}
