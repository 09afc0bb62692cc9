package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/session"
	"github.com/shopspring/decimal"
)

const amountHintLimit = 4

var defaultAmountHints = []decimal.Decimal{
	decimal.NewFromInt(100),
	decimal.NewFromInt(500),
	decimal.NewFromInt(1000),
	decimal.NewFromInt(5000),
}

// AmountHints подсказывает суммы для быстрых кнопок
type AmountHints interface {
	RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error)
}

// Committer сохраняет и публикует заявку по завершенному мастеру
type Committer interface {
	Submit(ctx context.Context, state *model.WizardState) (*model.Request, error)
}

// Engine обрабатывает ввод пользователей. Переходы одного пользователя
// выполняются строго по очереди.
type Engine struct {
	sessions  session.Store
	locks     *session.KeyedMutex
	machine   *machine
	hints     AmountHints
	committer Committer
	logger    *slog.Logger
}

// NewEngine создает новый экземпляр мастера
func NewEngine(sessions session.Store, finder MatchFinder, hints AmountHints, committer Committer, logger *slog.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		locks:     session.NewKeyedMutex(),
		machine:   newMachine(finder, logger),
		hints:     hints,
		committer: committer,
		logger:    logger,
	}
}

// Start начинает мастер заново, предыдущее состояние пользователя отбрасывается
func (e *Engine) Start(ctx context.Context, userID int64) (*Prompt, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	state := e.machine.start(ctx, userID)
	if err := e.sessions.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	e.logger.Info("Wizard started", "user_id", userID)
	return e.render(ctx, state, ""), nil
}

// Handle применяет ввод пользователя к его текущему состоянию
func (e *Engine) Handle(ctx context.Context, in Input) (*Result, error) {
	unlock := e.locks.Lock(in.UserID)
	defer unlock()

	state, err := e.load(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.isCancel() {
		if err := e.sessions.Delete(ctx, in.UserID); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		e.logger.Info("Wizard cancelled", "user_id", in.UserID, "step", state.Step)
		return &Result{Cancelled: true}, nil
	}

	if state.Step == model.StepConfirm && in.Kind == KindChoice && in.Choice.Action == ActionFinalize {
		return e.finalize(ctx, state)
	}

	next, err := e.machine.advance(ctx, state, in)
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNavigation) {
		e.logger.Debug("Wizard input rejected",
			"user_id", in.UserID,
			"step", state.Step,
			"error", err)
		return &Result{
			Prompt:   e.render(ctx, state, rejectNotice(state.Step, err)),
			Rejected: err,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Set(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &Result{Prompt: e.render(ctx, next, "")}, nil
}

// GoBack возвращает пользователя на шаг target
func (e *Engine) GoBack(ctx context.Context, userID int64, target model.Step) (*Result, error) {
	return e.Handle(ctx, Input{
		UserID: userID,
		Kind:   KindChoice,
		Choice: Choice{Action: ActionBack, Param: string(target)},
	})
}

// Cancel удаляет состояние мастера. Возвращает false, если мастер не был запущен.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	_, ok, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := e.sessions.Delete(ctx, userID); err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return true, nil
}

// Current возвращает подсказку для текущего шага пользователя
func (e *Engine) Current(ctx context.Context, userID int64) (*Prompt, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	state, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.render(ctx, state, ""), nil
}

func (e *Engine) load(ctx context.Context, userID int64) (*model.WizardState, error) {
	state, ok, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, ErrNoSession
	}
	return state, nil
}

// finalize отдает заявку на публикацию. При ошибке состояние сохраняется,
// и пользователь может подтвердить еще раз.
func (e *Engine) finalize(ctx context.Context, state *model.WizardState) (*Result, error) {
	request, err := e.committer.Submit(ctx, state.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to submit request: %w", err)
	}
	if err := e.sessions.Delete(ctx, state.UserID); err != nil {
		e.logger.Error("Failed to delete finished session",
			"user_id", state.UserID,
			"error", err)
	}
	e.logger.Info("Wizard finished",
		"user_id", state.UserID,
		"request_id", request.ID)
	return &Result{Request: request}, nil
}

func (e *Engine) render(ctx context.Context, state *model.WizardState, notice string) *Prompt {
	var amounts []decimal.Decimal
	if state.Step == model.StepAmount {
		amounts = e.amountHints(ctx, state.UserID)
	}
	return e.machine.render(state, notice, amounts)
}

func (e *Engine) amountHints(ctx context.Context, userID int64) []decimal.Decimal {
	if e.hints == nil {
		return defaultAmountHints
	}
	amounts, err := e.hints.RecentAmounts(ctx, userID, amountHintLimit)
	if err != nil {
		e.logger.Warn("Failed to load recent amounts",
			"user_id", userID,
			"error", err)
		return defaultAmountHints
	}
	// суммы, сохраненные до ограничения точности, не годятся для кнопок
	valid := amounts[:0:0]
	for _, a := range amounts {
		if a.IsPositive() && checkAmountRange(a) == nil {
			valid = append(valid, a)
		}
	}
	if len(valid) == 0 {
		return defaultAmountHints
	}
	return valid
}
