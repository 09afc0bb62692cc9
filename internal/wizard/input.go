// Package wizard ведет пользователя по шагам создания заявки на обмен.
package wizard

import (
	"errors"

	"github.com/ivanoskov/exchange_bot/internal/model"
)

var (
	ErrInvalidInput = errors.New("invalid input for current step")
	ErrNavigation   = errors.New("invalid navigation target")
	ErrNoSession    = errors.New("no active wizard session")
)

// Action - действие, закодированное в кнопке мастера
type Action string

const (
	ActionPick     Action = "pick"
	ActionBack     Action = "back"
	ActionContinue Action = "continue"
	ActionComment  Action = "comment"
	ActionSkip     Action = "skip"
	ActionFinalize Action = "finalize"
	ActionCancel   Action = "cancel"
)

func (a Action) Valid() bool {
	switch a {
	case ActionPick, ActionBack, ActionContinue, ActionComment, ActionSkip, ActionFinalize, ActionCancel:
		return true
	}
	return false
}

// Choice - выбор пользователя: действие и его параметр (код варианта или шаг для back)
type Choice struct {
	Action Action
	Param  string
}

type InputKind int

const (
	KindChoice InputKind = iota
	KindText
	KindCancel
)

// Input - одно событие от пользователя, уже декодированное транспортом
type Input struct {
	UserID int64
	Kind   InputKind
	Choice Choice
	Text   string
}

func (in Input) isCancel() bool {
	return in.Kind == KindCancel || (in.Kind == KindChoice && in.Choice.Action == ActionCancel)
}

// Option - кнопка в подсказке мастера
type Option struct {
	Label  string
	Choice Choice
}

// Prompt - что показать пользователю на текущем шаге
type Prompt struct {
	UserID  int64
	Text    string
	Options []Option
}

// Result - исход обработки одного ввода. Ровно один из Prompt, Request, Cancelled
// описывает, чем закончился ввод. Rejected заполнен, если ввод не принят и
// Prompt показывает тот же шаг с пояснением.
type Result struct {
	Prompt    *Prompt
	Request   *model.Request
	Cancelled bool
	Rejected  error
}
