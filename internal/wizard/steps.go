package wizard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/model"
)

const maxCommentLength = 500

// stepDef описывает шаг с собственным полем: вопрос, допустимые варианты,
// разбор ввода и условие автоматического пропуска.
type stepDef struct {
	question string
	// options возвращает допустимые варианты; nil для шага со свободным вводом
	options func(f model.Fields) []Option
	parse   func(f model.Fields, in Input) (string, error)
	// skip срабатывает при каждом входе на шаг и возвращает значение поля
	skip func(f model.Fields) (string, bool)
}

var moneyTypeButtons = map[model.MoneyType]string{
	model.MoneyCash:   "💵 Наличные",
	model.MoneyOnline: "💳 Онлайн",
}

func defaultSteps() map[model.Step]*stepDef {
	requestTypes := func(model.Fields) []Option {
		return []Option{
			pick(description.DirectionLabel(model.RequestTake), string(model.RequestTake)),
			pick(description.DirectionLabel(model.RequestGive), string(model.RequestGive)),
		}
	}
	allCurrencies := func(model.Fields) []Option {
		return currencyOptions("")
	}
	otherCurrencies := func(f model.Fields) []Option {
		return currencyOptions(model.Currency(f[model.FieldCurrencyFrom]))
	}

	return map[model.Step]*stepDef{
		model.StepRequestType: {
			question: "Что вы хотите сделать?",
			options:  requestTypes,
			parse:    pickFrom(requestTypes),
		},
		model.StepAmount: {
			question: "Введите сумму (например, 1000 или 1000,50) или выберите из списка:",
			parse:    parseAmountInput,
		},
		model.StepCurrencyFrom: {
			question: "Выберите валюту суммы:",
			options:  allCurrencies,
			parse:    pickFrom(allCurrencies),
		},
		model.StepMoneyTypeFrom: {
			question: "В каком виде?",
			options:  moneyTypeOptions,
			parse:    pickFrom(moneyTypeOptions),
		},
		model.StepLocationFrom: {
			question: "В каком городе?",
			options:  locationOptions,
			parse:    pickFrom(locationOptions),
			skip:     onlineCitySkip(model.FieldMoneyTypeFrom, model.FieldCurrencyFrom),
		},
		model.StepMoneyTypeTo: {
			question: "Что взамен? Выберите вид:",
			options:  moneyTypeOptions,
			parse:    pickFrom(moneyTypeOptions),
		},
		model.StepCurrencyTo: {
			question: "Выберите валюту взамен:",
			options:  otherCurrencies,
			parse:    pickFrom(otherCurrencies),
		},
		model.StepLocationTo: {
			question: "В каком городе взамен?",
			options:  locationOptions,
			parse:    pickFrom(locationOptions),
			skip:     onlineCitySkip(model.FieldMoneyTypeTo, model.FieldCurrencyTo),
		},
	}
}

func pick(label, code string) Option {
	return Option{Label: label, Choice: Choice{Action: ActionPick, Param: code}}
}

func currencyOptions(exclude model.Currency) []Option {
	out := make([]Option, 0, len(model.Currencies))
	for _, c := range model.Currencies {
		if c == exclude {
			continue
		}
		out = append(out, pick(string(c), string(c)))
	}
	return out
}

func moneyTypeOptions(model.Fields) []Option {
	out := make([]Option, 0, len(model.MoneyTypes))
	for _, m := range model.MoneyTypes {
		out = append(out, pick(moneyTypeButtons[m], string(m)))
	}
	return out
}

func locationOptions(model.Fields) []Option {
	out := make([]Option, 0, len(model.Locations))
	for _, l := range model.Locations {
		out = append(out, pick(description.LocationLabel(l), string(l)))
	}
	return out
}

// pickFrom принимает нажатие кнопки с допустимым кодом или текст, совпадающий
// с кодом либо подписью варианта без учета регистра
func pickFrom(options func(model.Fields) []Option) func(model.Fields, Input) (string, error) {
	return func(f model.Fields, in Input) (string, error) {
		opts := options(f)
		switch in.Kind {
		case KindChoice:
			if in.Choice.Action != ActionPick {
				return "", fmt.Errorf("%w: unexpected action %q", ErrInvalidInput, in.Choice.Action)
			}
			for _, o := range opts {
				if o.Choice.Param == in.Choice.Param {
					return o.Choice.Param, nil
				}
			}
			return "", fmt.Errorf("%w: unknown option %q", ErrInvalidInput, in.Choice.Param)
		case KindText:
			text := strings.TrimSpace(in.Text)
			for _, o := range opts {
				if strings.EqualFold(text, o.Choice.Param) || strings.EqualFold(text, o.Label) {
					return o.Choice.Param, nil
				}
			}
			return "", fmt.Errorf("%w: %q does not match any option", ErrInvalidInput, text)
		}
		return "", ErrInvalidInput
	}
}

func parseAmountInput(_ model.Fields, in Input) (string, error) {
	var raw string
	switch {
	case in.Kind == KindText:
		raw = in.Text
	case in.Kind == KindChoice && in.Choice.Action == ActionPick:
		raw = in.Choice.Param
	default:
		return "", ErrInvalidInput
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

func parseComment(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty comment", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return "", fmt.Errorf("%w: comment longer than %d characters", ErrInvalidInput, maxCommentLength)
	}
	return text, nil
}

// onlineCitySkip пропускает выбор города для онлайн-перевода в валюте,
// которая однозначно определяет город
func onlineCitySkip(moneyType, currency model.Field) func(model.Fields) (string, bool) {
	return func(f model.Fields) (string, bool) {
		if model.MoneyType(f[moneyType]) != model.MoneyOnline {
			return "", false
		}
		loc, ok := model.OnlineCity(model.Currency(f[currency]))
		if !ok {
			return "", false
		}
		return string(loc), true
	}
}
