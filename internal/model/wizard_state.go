package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step - шаг мастера создания заявки
type Step string

const (
	StepRequestType   Step = "request_type"
	StepAmount        Step = "amount"
	StepCurrencyFrom  Step = "currency_from"
	StepMoneyTypeFrom Step = "money_type_from"
	StepLocationFrom  Step = "location_from"
	StepMoneyTypeTo   Step = "money_type_to"
	StepCurrencyTo    Step = "currency_to"
	StepLocationTo    Step = "location_to"
	StepMatches       Step = "matches"
	StepComment       Step = "comment"
	StepConfirm       Step = "confirm"
)

var canonicalOrder = []Step{
	StepRequestType,
	StepAmount,
	StepCurrencyFrom,
	StepMoneyTypeFrom,
	StepLocationFrom,
	StepMoneyTypeTo,
	StepCurrencyTo,
	StepLocationTo,
	StepMatches,
	StepComment,
	StepConfirm,
}

// Steps возвращает копию канонического порядка шагов
func Steps() []Step {
	out := make([]Step, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}

// StepIndex возвращает позицию шага в каноническом порядке или -1
func StepIndex(s Step) int {
	for i, step := range canonicalOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Field - ключ поля заявки, заполняемого мастером
type Field string

const (
	FieldRequestType   Field = "request_type"
	FieldAmount        Field = "amount"
	FieldCurrencyFrom  Field = "currency_from"
	FieldMoneyTypeFrom Field = "money_type_from"
	FieldLocationFrom  Field = "location_from"
	FieldMoneyTypeTo   Field = "money_type_to"
	FieldCurrencyTo    Field = "currency_to"
	FieldLocationTo    Field = "location_to"
	FieldComment       Field = "comment"
)

var stepFields = map[Step]Field{
	StepRequestType:   FieldRequestType,
	StepAmount:        FieldAmount,
	StepCurrencyFrom:  FieldCurrencyFrom,
	StepMoneyTypeFrom: FieldMoneyTypeFrom,
	StepLocationFrom:  FieldLocationFrom,
	StepMoneyTypeTo:   FieldMoneyTypeTo,
	StepCurrencyTo:    FieldCurrencyTo,
	StepLocationTo:    FieldLocationTo,
	StepComment:       FieldComment,
}

// Field возвращает поле, которым владеет шаг. У matches и confirm полей нет.
func (s Step) Field() (Field, bool) {
	f, ok := stepFields[s]
	return f, ok
}

// Fields - значения, собранные мастером
type Fields map[Field]string

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Fields) Has(k Field) bool {
	_, ok := f[k]
	return ok
}

func (f Fields) RequestType() RequestType { return RequestType(f[FieldRequestType]) }

// Amount разбирает сохраненную сумму
func (f Fields) Amount() (decimal.Decimal, bool) {
	raw, ok := f[FieldAmount]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (f Fields) Attributes() Attributes {
	return Attributes{
		CurrencyFrom:  Currency(f[FieldCurrencyFrom]),
		MoneyTypeFrom: MoneyType(f[FieldMoneyTypeFrom]),
		LocationFrom:  Location(f[FieldLocationFrom]),
		CurrencyTo:    Currency(f[FieldCurrencyTo]),
		MoneyTypeTo:   MoneyType(f[FieldMoneyTypeTo]),
		LocationTo:    Location(f[FieldLocationTo]),
	}
}

// WizardState - состояние мастера одного пользователя
type WizardState struct {
	UserID int64
	Step   Step
	Fields Fields

	// производные данные, пересчитываются при каждом принятом вводе
	MessageText  string
	Matches      []MatchSummary
	LookupFailed bool
	UpdatedAt    time.Time
}

// MatchSummary - встречная заявка, показанная на шаге matches
type MatchSummary struct {
	RequestID   int64
	RequesterID int64
	Text        string
}

func NewWizardState(userID int64) *WizardState {
	return &WizardState{
		UserID:    userID,
		Step:      StepRequestType,
		Fields:    Fields{},
		UpdatedAt: time.Now(),
	}
}

func (s *WizardState) Clone() *WizardState {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = s.Fields.Clone()
	if s.Matches != nil {
		out.Matches = append([]MatchSummary(nil), s.Matches...)
	}
	return &out
}
