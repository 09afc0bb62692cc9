package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/model"
)

// maxShownMatches ограничивает число встречных заявок на шаге matches
const maxShownMatches = 10

// MatchFinder ищет открытые встречные заявки
type MatchFinder interface {
	Find(ctx context.Context, requestType model.RequestType, attrs model.Attributes, excludeUserID int64) ([]model.Request, error)
}

// machine реализует переходы между шагами. Она не хранит состояние и не
// знает о блокировках, этим занимается Engine.
type machine struct {
	steps  map[model.Step]*stepDef
	finder MatchFinder
	logger *slog.Logger
	now    func() time.Time
}

func newMachine(finder MatchFinder, logger *slog.Logger) *machine {
	return &machine{
		steps:  defaultSteps(),
		finder: finder,
		logger: logger,
		now:    time.Now,
	}
}

// start создает новое состояние на первом шаге
func (m *machine) start(ctx context.Context, userID int64) *model.WizardState {
	state := model.NewWizardState(userID)
	m.enter(ctx, state)
	m.refresh(state)
	return state
}

// advance применяет ввод к копии состояния. Исходное состояние не меняется.
// Финализация и отмена обрабатываются в Engine.
func (m *machine) advance(ctx context.Context, state *model.WizardState, in Input) (*model.WizardState, error) {
	if in.Kind == KindChoice && in.Choice.Action == ActionBack {
		return m.goBack(ctx, state, model.Step(in.Choice.Param))
	}

	next := state.Clone()
	switch state.Step {
	case model.StepMatches:
		if in.Kind != KindChoice || in.Choice.Action != ActionContinue {
			return nil, fmt.Errorf("%w: expected continue on matches step", ErrInvalidInput)
		}
		next.Step = model.StepComment
		m.enter(ctx, next)

	case model.StepComment:
		switch {
		case in.Kind == KindChoice && in.Choice.Action == ActionSkip:
		case in.Kind == KindText:
			text, err := parseComment(in.Text)
			if err != nil {
				return nil, err
			}
			if prev := next.Fields[model.FieldComment]; prev != "" {
				text = prev + "\n" + text
			}
			next.Fields[model.FieldComment] = text
		default:
			return nil, fmt.Errorf("%w: expected comment text", ErrInvalidInput)
		}
		next.Step = model.StepConfirm

	case model.StepConfirm:
		if in.Kind != KindChoice || in.Choice.Action != ActionComment {
			return nil, fmt.Errorf("%w: unexpected input on confirm step", ErrInvalidInput)
		}
		// На комментарий попадаем только отсюда, минуя enter
		next.Step = model.StepComment

	default:
		def, ok := m.steps[state.Step]
		if !ok {
			return nil, fmt.Errorf("unknown step %q", state.Step)
		}
		value, err := def.parse(state.Fields, in)
		if err != nil {
			return nil, err
		}
		field, _ := state.Step.Field()
		next.Fields[field] = value
		next.Step = stepAfter(state.Step)
		m.enter(ctx, next)
	}

	m.refresh(next)
	return next, nil
}

// goBack возвращает пользователя на шаг target, удаляя все поля начиная с него
func (m *machine) goBack(ctx context.Context, state *model.WizardState, target model.Step) (*model.WizardState, error) {
	targetIdx := model.StepIndex(target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: unknown step %q", ErrNavigation, target)
	}
	if targetIdx > model.StepIndex(state.Step) {
		return nil, fmt.Errorf("%w: step %q is after %q", ErrNavigation, target, state.Step)
	}

	next := state.Clone()
	for _, s := range model.Steps()[targetIdx:] {
		if f, ok := s.Field(); ok {
			delete(next.Fields, f)
		}
	}
	if targetIdx <= model.StepIndex(model.StepMatches) {
		next.Matches = nil
		next.LookupFailed = false
	}
	next.Step = target
	m.enter(ctx, next)
	m.refresh(next)
	return next, nil
}

// enter входит на текущий шаг состояния и проходит дальше, пока шаг
// пропускается. На matches выполняется поиск встречных заявок.
func (m *machine) enter(ctx context.Context, s *model.WizardState) {
	for {
		switch s.Step {
		case model.StepConfirm:
			return
		case model.StepComment:
			s.Step = model.StepConfirm
			continue
		case model.StepMatches:
			m.lookup(ctx, s)
			if len(s.Matches) > 0 {
				return
			}
			s.Step = model.StepComment
			continue
		}

		def, ok := m.steps[s.Step]
		if !ok || def.skip == nil {
			return
		}
		value, skip := def.skip(s.Fields)
		if !skip {
			return
		}
		field, _ := s.Step.Field()
		s.Fields[field] = value
		s.Step = stepAfter(s.Step)
	}
}

func (m *machine) lookup(ctx context.Context, s *model.WizardState) {
	s.Matches = nil
	s.LookupFailed = false

	found, err := m.finder.Find(ctx, s.Fields.RequestType(), s.Fields.Attributes(), s.UserID)
	if err != nil {
		m.logger.Error("Failed to look up matching requests",
			"user_id", s.UserID,
			"error", err)
		s.LookupFailed = true
		return
	}
	for i := range found {
		if i == maxShownMatches {
			break
		}
		r := &found[i]
		s.Matches = append(s.Matches, model.MatchSummary{
			RequestID:   r.ID,
			RequesterID: r.RequesterID,
			Text:        description.RenderRequest(r, fmt.Sprintf("#%d ", r.ID)),
		})
	}
}

func (m *machine) refresh(s *model.WizardState) {
	s.MessageText = description.Render(s.Fields, "")
	s.UpdatedAt = m.now()
}

// previousVisible возвращает ближайший предыдущий шаг, который пользователь
// действительно видел
func (m *machine) previousVisible(s *model.WizardState) (model.Step, bool) {
	steps := model.Steps()
	for i := model.StepIndex(s.Step) - 1; i >= 0; i-- {
		step := steps[i]
		switch step {
		case model.StepComment:
			continue
		case model.StepMatches:
			if len(s.Matches) == 0 {
				continue
			}
			return step, true
		}
		if def, ok := m.steps[step]; ok && def.skip != nil {
			if _, skipped := def.skip(s.Fields); skipped {
				continue
			}
		}
		return step, true
	}
	return "", false
}

func stepAfter(s model.Step) model.Step {
	steps := model.Steps()
	i := model.StepIndex(s)
	if i < 0 || i+1 >= len(steps) {
		return model.StepConfirm
	}
	return steps[i+1]
}
