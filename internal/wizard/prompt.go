package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
)

const (
	labelBack     = "⬅️ Назад"
	labelCancel   = "❌ Отмена"
	labelContinue = "➡️ Продолжить"
	labelFinalize = "✅ Опубликовать"
	labelComment  = "💬 Добавить комментарий"
	labelSkip     = "↩️ Вернуться к заявке"
)

const lookupFailedNotice = "⚠️ Не удалось проверить встречные заявки, заявка будет опубликована без проверки."

// render собирает подсказку для текущего шага. amounts используются только
// на шаге ввода суммы.
func (m *machine) render(s *model.WizardState, notice string, amounts []decimal.Decimal) *Prompt {
	var text strings.Builder
	if notice != "" {
		text.WriteString("⚠️ " + notice + "\n\n")
	}

	var options []Option
	switch s.Step {
	case model.StepMatches:
		text.WriteString("🔎 Найдены встречные заявки:\n")
		for _, match := range s.Matches {
			text.WriteString("\n" + match.Text + "\n")
		}
		text.WriteString("\nСвяжитесь с автором подходящей заявки или продолжите создание своей.")
		options = append(options, Option{Label: labelContinue, Choice: Choice{Action: ActionContinue}})

	case model.StepComment:
		text.WriteString("Напишите комментарий к заявке одним сообщением:")
		options = append(options, Option{Label: labelSkip, Choice: Choice{Action: ActionSkip}})

	case model.StepConfirm:
		if s.LookupFailed {
			text.WriteString(lookupFailedNotice + "\n\n")
		}
		text.WriteString("Проверьте заявку и подтвердите публикацию:")
		options = append(options,
			Option{Label: labelFinalize, Choice: Choice{Action: ActionFinalize}},
			Option{Label: labelComment, Choice: Choice{Action: ActionComment}},
		)

	case model.StepAmount:
		text.WriteString(m.steps[s.Step].question)
		for _, a := range amounts {
			options = append(options, pick(description.FormatAmount(a), a.String()))
		}

	default:
		if def, ok := m.steps[s.Step]; ok {
			text.WriteString(def.question)
			if def.options != nil {
				options = append(options, def.options(s.Fields)...)
			}
		}
	}

	if s.MessageText != "" {
		text.WriteString("\n\n📝 Заявка:\n" + s.MessageText)
	}

	if prev, ok := m.previousVisible(s); ok {
		options = append(options, Option{Label: labelBack, Choice: Choice{Action: ActionBack, Param: string(prev)}})
	}
	options = append(options, Option{Label: labelCancel, Choice: Choice{Action: ActionCancel}})

	return &Prompt{
		UserID:  s.UserID,
		Text:    text.String(),
		Options: options,
	}
}

// rejectNotice - пояснение к отклоненному вводу
func rejectNotice(step model.Step, err error) string {
	if errors.Is(err, ErrNavigation) {
		return "Вернуться к этому шагу нельзя."
	}
	switch step {
	case model.StepAmount:
		return "Введите положительное число, например 1000 или 1000,50."
	case model.StepComment:
		return fmt.Sprintf("Комментарий не может быть пустым или длиннее %d символов.", maxCommentLength)
	case model.StepMatches, model.StepConfirm:
		return "Воспользуйтесь кнопками ниже."
	}
	return "Выберите один из вариантов кнопкой ниже."
}
