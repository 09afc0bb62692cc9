// Package description строит человекочитаемое описание заявки по собранным полям.
package description

import (
	"strings"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
)

var directionLabels = map[model.RequestType]string{
	model.RequestTake: "🟢 Хочу получить",
	model.RequestGive: "🔴 Хочу отдать",
}

var moneyTypeLabels = map[model.MoneyType]string{
	model.MoneyCash:   "наличные",
	model.MoneyOnline: "онлайн",
}

var locationLabels = map[model.Location]string{
	model.Dushanbe: "Душанбе",
	model.Tashkent: "Ташкент",
	model.Moscow:   "Москва",
}

type placement int

const (
	withSpace placement = iota
	symbolPrefix
	symbolSuffix
)

type currencyFormat struct {
	symbol    string
	placement placement
}

var currencyFormats = map[model.Currency]currencyFormat{
	model.USD: {symbol: "$", placement: symbolPrefix},
	model.RUB: {symbol: "₽", placement: symbolSuffix},
}

func DirectionLabel(t model.RequestType) string {
	if l, ok := directionLabels[t]; ok {
		return l
	}
	return string(t)
}

func MoneyTypeLabel(m model.MoneyType) string {
	if l, ok := moneyTypeLabels[m]; ok {
		return l
	}
	return string(m)
}

func LocationLabel(l model.Location) string {
	if label, ok := locationLabels[l]; ok {
		return label
	}
	return string(l)
}

// Render собирает описание заявки. Сегменты идут в каноническом порядке полей,
// каждый несет свой разделитель и пропускается, если поля нет. Поэтому описание
// незаконченной заявки всегда является префиксом описания итоговой.
func Render(fields model.Fields, prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)

	if t, ok := fields[model.FieldRequestType]; ok {
		b.WriteString(DirectionLabel(model.RequestType(t)))
	}

	amount, hasAmount := fields.Amount()
	if cur, ok := fields[model.FieldCurrencyFrom]; ok && hasAmount {
		b.WriteString("\n💰 ")
		b.WriteString(FormatMoney(amount, model.Currency(cur)))
	}
	if mt, ok := fields[model.FieldMoneyTypeFrom]; ok {
		b.WriteString(" · ")
		b.WriteString(MoneyTypeLabel(model.MoneyType(mt)))
	}
	if loc, ok := fields[model.FieldLocationFrom]; ok {
		b.WriteString(" · ")
		b.WriteString(LocationLabel(model.Location(loc)))
	}

	if mt, ok := fields[model.FieldMoneyTypeTo]; ok {
		b.WriteString("\n🔁 взамен: ")
		b.WriteString(MoneyTypeLabel(model.MoneyType(mt)))
	}
	if cur, ok := fields[model.FieldCurrencyTo]; ok {
		b.WriteString(" · ")
		b.WriteString(cur)
	}
	if loc, ok := fields[model.FieldLocationTo]; ok {
		b.WriteString(" · ")
		b.WriteString(LocationLabel(model.Location(loc)))
	}

	if comment, ok := fields[model.FieldComment]; ok && comment != "" {
		b.WriteString("\n💬 ")
		b.WriteString(comment)
	}

	return b.String()
}

// RenderRequest описывает сохраненную заявку так же, как мастер описывал ее поля
func RenderRequest(r *model.Request, prefix string) string {
	fields := model.Fields{
		model.FieldRequestType:   string(r.RequestType),
		model.FieldAmount:        r.Amount.String(),
		model.FieldCurrencyFrom:  string(r.CurrencyFrom),
		model.FieldMoneyTypeFrom: string(r.MoneyTypeFrom),
		model.FieldLocationFrom:  string(r.LocationFrom),
		model.FieldMoneyTypeTo:   string(r.MoneyTypeTo),
		model.FieldCurrencyTo:    string(r.CurrencyTo),
		model.FieldLocationTo:    string(r.LocationTo),
	}
	if r.Comment != "" {
		fields[model.FieldComment] = r.Comment
	}
	return Render(fields, prefix)
}

// FormatMoney форматирует сумму с символом валюты
func FormatMoney(amount decimal.Decimal, cur model.Currency) string {
	num := FormatAmount(amount)
	f, ok := currencyFormats[cur]
	if !ok {
		return num + " " + string(cur)
	}
	switch f.placement {
	case symbolPrefix:
		return f.symbol + num + " (" + string(cur) + ")"
	case symbolSuffix:
		return num + f.symbol + " (" + string(cur) + ")"
	}
	return num + " " + string(cur)
}

// FormatAmount: целые без дробной части с разделением тысяч пробелом,
// дробные - с точной значащей дробной частью через запятую.
func FormatAmount(amount decimal.Decimal) string {
	raw := amount.String()
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign = "-"
		raw = raw[1:]
	}

	intPart, frac, hasFrac := strings.Cut(raw, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
