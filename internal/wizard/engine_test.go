package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/matching"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/repository"
	"github.com/ivanoskov/exchange_bot/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user int64 = 1

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingCommitter struct {
	submitted []*model.WizardState
	err       error
}

func (c *recordingCommitter) Submit(ctx context.Context, state *model.WizardState) (*model.Request, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.submitted = append(c.submitted, state)
	return &model.Request{ID: int64(len(c.submitted)), RequesterID: state.UserID, Status: model.StatusActive}, nil
}

type failingFinder struct{}

func (failingFinder) Find(ctx context.Context, rt model.RequestType, attrs model.Attributes, exclude int64) ([]model.Request, error) {
	return nil, matching.ErrMatchLookup
}

type staticHints struct {
	amounts []decimal.Decimal
	err     error
}

func (h staticHints) RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error) {
	return h.amounts, h.err
}

type testEngine struct {
	*Engine
	store     *session.MemoryStore
	repo      *repository.MemoryRepository
	committer *recordingCommitter
}

func newTestEngine(t *testing.T, finder MatchFinder, hints AmountHints) *testEngine {
	t.Helper()
	store, err := session.NewMemoryStore(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	repo := repository.NewMemoryRepository()
	if finder == nil {
		finder = matching.NewFinder(repo)
	}
	committer := &recordingCommitter{}
	return &testEngine{
		Engine:    NewEngine(store, finder, hints, committer, discardLogger),
		store:     store,
		repo:      repo,
		committer: committer,
	}
}

func (e *testEngine) state(t *testing.T) *model.WizardState {
	t.Helper()
	s, ok, err := e.store.Get(context.Background(), user)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func pickIn(code string) Input {
	return Input{UserID: user, Kind: KindChoice, Choice: Choice{Action: ActionPick, Param: code}}
}

func textIn(text string) Input {
	return Input{UserID: user, Kind: KindText, Text: text}
}

func actionIn(a Action, param string) Input {
	return Input{UserID: user, Kind: KindChoice, Choice: Choice{Action: a, Param: param}}
}

// drive применяет ввод по очереди и требует, чтобы каждый был принят
func drive(t *testing.T, e *testEngine, inputs ...Input) *Result {
	t.Helper()
	var res *Result
	for _, in := range inputs {
		var err error
		res, err = e.Handle(context.Background(), in)
		require.NoError(t, err)
		require.NoError(t, res.Rejected, "input %+v rejected", in)
	}
	return res
}

// giveUSDForTJS доводит мастер до подтверждения:
// give 500 USD наличными в Душанбе -> TJS онлайн
var giveUSDForTJS = []Input{
	pickIn("give"),
	textIn("500"),
	pickIn("USD"),
	pickIn("cash"),
	pickIn("dushanbe"),
	pickIn("online"),
	pickIn("TJS"),
}

func checkInvariant(t *testing.T, s *model.WizardState) {
	t.Helper()
	current := model.StepIndex(s.Step)
	require.GreaterOrEqual(t, current, 0, "unknown step %q", s.Step)

	for i, step := range model.Steps() {
		f, ok := step.Field()
		if !ok {
			continue
		}
		if f == model.FieldComment {
			if s.Fields.Has(f) {
				assert.Contains(t, []model.Step{model.StepComment, model.StepConfirm}, s.Step)
			}
			continue
		}
		if i < current {
			assert.True(t, s.Fields.Has(f), "field %s must be set at step %s", f, s.Step)
		} else {
			assert.False(t, s.Fields.Has(f), "field %s must be empty at step %s", f, s.Step)
		}
	}
	assert.Equal(t, description.Render(s.Fields, ""), s.MessageText)
}

func optionParams(p *Prompt, action Action) []string {
	var out []string
	for _, o := range p.Options {
		if o.Choice.Action == action {
			out = append(out, o.Choice.Param)
		}
	}
	return out
}

func TestEngine_Start(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	p, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, user, p.UserID)
	assert.Equal(t, []string{"take", "give"}, optionParams(p, ActionPick))
	assert.Empty(t, optionParams(p, ActionBack), "first step has no back option")
	assert.Len(t, optionParams(p, ActionCancel), 1)

	s := e.state(t)
	assert.Equal(t, model.StepRequestType, s.Step)
	assert.Empty(t, s.Fields)
}

func TestEngine_StartReplacesState(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, pickIn("take"), textIn("100"))

	_, err = e.Start(ctx, user)
	require.NoError(t, err)
	s := e.state(t)
	assert.Equal(t, model.StepRequestType, s.Step)
	assert.Empty(t, s.Fields)
}

func TestEngine_HandleWithoutSession(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	_, err := e.Handle(context.Background(), textIn("100"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEngine_InvalidInputKeepsState(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, pickIn("take"))

	for _, raw := range []string{"abc", "-5", "0", "1 000"} {
		before := e.state(t)
		res, err := e.Handle(ctx, textIn(raw))
		require.NoError(t, err)
		assert.ErrorIs(t, res.Rejected, ErrInvalidInput)
		require.NotNil(t, res.Prompt)
		assert.Contains(t, res.Prompt.Text, "положительное число")
		assert.Equal(t, before.Fields, e.state(t).Fields)
		assert.Equal(t, model.StepAmount, e.state(t).Step)
	}

	// код варианта с другого шага не подходит
	res, err := e.Handle(ctx, pickIn("USD"))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)
}

func TestEngine_TextMatchesOptionCodeOrLabel(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	drive(t, e, textIn("GIVE"), textIn("1000,50"), textIn("usd"), textIn("💵 Наличные"), textIn("душанбе"))

	s := e.state(t)
	assert.Equal(t, "give", s.Fields[model.FieldRequestType])
	assert.Equal(t, "1000.5", s.Fields[model.FieldAmount])
	assert.Equal(t, "USD", s.Fields[model.FieldCurrencyFrom])
	assert.Equal(t, "cash", s.Fields[model.FieldMoneyTypeFrom])
	assert.Equal(t, "dushanbe", s.Fields[model.FieldLocationFrom])
	assert.Equal(t, model.StepMoneyTypeTo, s.Step)
}

func TestEngine_CurrencyToExcludesCurrencyFrom(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	res := drive(t, e, giveUSDForTJS[:6]...)
	require.Equal(t, model.StepCurrencyTo, e.state(t).Step)
	assert.Equal(t, []string{"TJS", "UZS", "RUB"}, optionParams(res.Prompt, ActionPick))

	res, err = e.Handle(ctx, pickIn("USD"))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)
}

func TestEngine_OnlineCitySkip(t *testing.T) {
	tests := []struct {
		currency string
		want     model.Location
	}{
		{"TJS", model.Dushanbe},
		{"UZS", model.Tashkent},
		{"RUB", model.Moscow},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			_, err := e.Start(context.Background(), user)
			require.NoError(t, err)

			drive(t, e, pickIn("take"), textIn("100"), pickIn(tt.currency), pickIn("online"))

			s := e.state(t)
			assert.Equal(t, model.StepMoneyTypeTo, s.Step)
			assert.Equal(t, string(tt.want), s.Fields[model.FieldLocationFrom])
		})
	}

	t.Run("USD online asks city", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		_, err := e.Start(context.Background(), user)
		require.NoError(t, err)

		drive(t, e, pickIn("take"), textIn("100"), pickIn("USD"), pickIn("online"))
		assert.Equal(t, model.StepLocationFrom, e.state(t).Step)
	})

	t.Run("cash asks city", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		_, err := e.Start(context.Background(), user)
		require.NoError(t, err)

		drive(t, e, pickIn("take"), textIn("100"), pickIn("TJS"), pickIn("cash"))
		assert.Equal(t, model.StepLocationFrom, e.state(t).Step)
	})
}

func TestEngine_BackSkipsAutoFilledSteps(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	res := drive(t, e, pickIn("take"), textIn("100"), pickIn("TJS"), pickIn("online"))
	require.Equal(t, model.StepMoneyTypeTo, e.state(t).Step)

	// город был заполнен автоматически, назад ведет на выбор вида денег
	assert.Equal(t, []string{string(model.StepMoneyTypeFrom)}, optionParams(res.Prompt, ActionBack))

	res = drive(t, e, actionIn(ActionBack, string(model.StepMoneyTypeFrom)))
	s := e.state(t)
	assert.Equal(t, model.StepMoneyTypeFrom, s.Step)
	assert.False(t, s.Fields.Has(model.FieldLocationFrom))
	assert.Equal(t, []string{string(model.StepCurrencyFrom)}, optionParams(res.Prompt, ActionBack))
}

func TestEngine_GoBackTruncatesDownstream(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, giveUSDForTJS...)
	require.Equal(t, model.StepConfirm, e.state(t).Step)

	res, err := e.GoBack(ctx, user, model.StepCurrencyFrom)
	require.NoError(t, err)
	require.NoError(t, res.Rejected)

	s := e.state(t)
	assert.Equal(t, model.StepCurrencyFrom, s.Step)
	assert.Equal(t, model.Fields{
		model.FieldRequestType: "give",
		model.FieldAmount:      "500",
	}, s.Fields)
	assert.Nil(t, s.Matches)
	checkInvariant(t, s)
}

func TestEngine_GoBackNavigationErrors(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, pickIn("give"), textIn("500"))
	before := e.state(t)

	for _, target := range []model.Step{"unknown", model.StepLocationTo, model.StepConfirm} {
		res, err := e.GoBack(ctx, user, target)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Rejected, ErrNavigation, "target %s", target)
		assert.Equal(t, before.Fields, e.state(t).Fields)
		assert.Equal(t, before.Step, e.state(t).Step)
	}
}

func TestEngine_BackThenForwardReproducesRequest(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	drive(t, e, giveUSDForTJS...)
	final := e.state(t)

	for i, step := range []model.Step{model.StepRequestType, model.StepAmount, model.StepMoneyTypeFrom, model.StepCurrencyTo} {
		res, err := e.GoBack(ctx, user, step)
		require.NoError(t, err)
		require.NoError(t, res.Rejected)

		// до currency_to каждому шагу соответствует ровно один ввод
		drive(t, e, giveUSDForTJS[model.StepIndex(step):]...)
		s := e.state(t)
		assert.Equal(t, final.Fields, s.Fields, "round %d", i)
		assert.Equal(t, final.MessageText, s.MessageText, "round %d", i)
		assert.Equal(t, model.StepConfirm, s.Step)
	}
}

func TestEngine_MatchesStep(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	counter := &model.Request{
		RequesterID:   2,
		RequestType:   model.RequestTake,
		Amount:        decimal.NewFromInt(500),
		CurrencyFrom:  model.USD,
		MoneyTypeFrom: model.MoneyCash,
		LocationFrom:  model.Dushanbe,
		CurrencyTo:    model.TJS,
		MoneyTypeTo:   model.MoneyOnline,
		LocationTo:    model.Dushanbe,
		CreatedAt:     time.Now(),
	}
	_, err := e.repo.Insert(ctx, counter)
	require.NoError(t, err)

	_, err = e.Start(ctx, user)
	require.NoError(t, err)
	res := drive(t, e, giveUSDForTJS...)

	s := e.state(t)
	require.Equal(t, model.StepMatches, s.Step)
	require.Len(t, s.Matches, 1)
	assert.Equal(t, counter.ID, s.Matches[0].RequestID)
	assert.Contains(t, res.Prompt.Text, "Найдены встречные заявки")
	assert.Contains(t, res.Prompt.Text, "#1 ")
	// город взамен заполнен автоматически
	assert.Equal(t, []string{string(model.StepCurrencyTo)}, optionParams(res.Prompt, ActionBack))

	// текст на шаге совпадений не принимается
	res, err = e.Handle(ctx, textIn("дальше"))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)

	res = drive(t, e, actionIn(ActionContinue, ""))
	assert.Equal(t, model.StepConfirm, e.state(t).Step)
	assert.Equal(t, []string{string(model.StepMatches)}, optionParams(res.Prompt, ActionBack))

	// возврат к совпадениям выполняет поиск заново
	drive(t, e, actionIn(ActionBack, string(model.StepMatches)))
	s = e.state(t)
	assert.Equal(t, model.StepMatches, s.Step)
	assert.Len(t, s.Matches, 1)
}

func TestEngine_NoMatchesGoesToConfirm(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	res := drive(t, e, giveUSDForTJS...)
	s := e.state(t)
	assert.Equal(t, model.StepConfirm, s.Step)
	assert.Empty(t, s.Matches)
	assert.False(t, s.LookupFailed)
	assert.NotContains(t, res.Prompt.Text, lookupFailedNotice)
	assert.ElementsMatch(t, []Action{ActionFinalize, ActionComment, ActionBack, ActionCancel}, actions(res.Prompt))
}

func TestEngine_LookupFailureShowsNotice(t *testing.T) {
	e := newTestEngine(t, failingFinder{}, nil)
	_, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	res := drive(t, e, giveUSDForTJS...)
	s := e.state(t)
	assert.Equal(t, model.StepConfirm, s.Step)
	assert.True(t, s.LookupFailed)
	assert.Contains(t, res.Prompt.Text, lookupFailedNotice)
}

func actions(p *Prompt) []Action {
	out := make([]Action, 0, len(p.Options))
	for _, o := range p.Options {
		out = append(out, o.Choice.Action)
	}
	return out
}

func TestEngine_Comment(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, giveUSDForTJS...)

	drive(t, e, actionIn(ActionComment, ""))
	require.Equal(t, model.StepComment, e.state(t).Step)

	res, err := e.Handle(ctx, textIn("   "))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)

	res, err = e.Handle(ctx, textIn(strings.Repeat("я", maxCommentLength+1)))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)

	drive(t, e, textIn("звонить после 18:00"))
	s := e.state(t)
	assert.Equal(t, model.StepConfirm, s.Step)
	assert.Equal(t, "звонить после 18:00", s.Fields[model.FieldComment])
	assert.True(t, strings.HasSuffix(s.MessageText, "\n💬 звонить после 18:00"))

	drive(t, e, actionIn(ActionComment, ""), textIn("только купюры 100$"))
	assert.Equal(t, "звонить после 18:00\nтолько купюры 100$", e.state(t).Fields[model.FieldComment])

	drive(t, e, actionIn(ActionComment, ""), actionIn(ActionSkip, ""))
	s = e.state(t)
	assert.Equal(t, model.StepConfirm, s.Step)
	assert.Equal(t, "звонить после 18:00\nтолько купюры 100$", s.Fields[model.FieldComment])
	checkInvariant(t, s)
}

func TestEngine_CancelAtEveryStep(t *testing.T) {
	ctx := context.Background()
	for n := 0; n <= len(giveUSDForTJS); n++ {
		e := newTestEngine(t, nil, nil)
		_, err := e.Start(ctx, user)
		require.NoError(t, err)
		drive(t, e, giveUSDForTJS[:n]...)

		in := Input{UserID: user, Kind: KindCancel}
		if n%2 == 0 {
			in = actionIn(ActionCancel, "")
		}
		res, err := e.Handle(ctx, in)
		require.NoError(t, err)
		assert.True(t, res.Cancelled)

		_, ok, err := e.store.Get(ctx, user)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = e.Handle(ctx, textIn("100"))
		assert.ErrorIs(t, err, ErrNoSession)
	}
}

func TestEngine_CancelCommand(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	ok, err := e.Cancel(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Start(ctx, user)
	require.NoError(t, err)
	ok, err = e.Cancel(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_Finalize(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, giveUSDForTJS...)

	res := drive(t, e, actionIn(ActionFinalize, ""))
	require.NotNil(t, res.Request)
	require.Len(t, e.committer.submitted, 1)
	assert.Equal(t, model.StepConfirm, e.committer.submitted[0].Step)
	assert.Equal(t, "TJS", e.committer.submitted[0].Fields[model.FieldCurrencyTo])

	_, ok, err := e.store.Get(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_FinalizeFailureKeepsState(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, giveUSDForTJS...)

	e.committer.err = errors.New("db is down")
	_, err = e.Handle(ctx, actionIn(ActionFinalize, ""))
	require.Error(t, err)
	assert.Equal(t, model.StepConfirm, e.state(t).Step)

	e.committer.err = nil
	res := drive(t, e, actionIn(ActionFinalize, ""))
	assert.NotNil(t, res.Request)
}

func TestEngine_FinalizeOnlyOnConfirm(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)
	drive(t, e, pickIn("give"))

	res, err := e.Handle(ctx, actionIn(ActionFinalize, ""))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Rejected, ErrInvalidInput)
	assert.Empty(t, e.committer.submitted)
}

func TestEngine_AmountHints(t *testing.T) {
	defaults := []string{"100", "500", "1000", "5000"}
	tests := []struct {
		name  string
		hints AmountHints
		want  []string
	}{
		{"no source", nil, defaults},
		{"empty history", staticHints{}, defaults},
		{"error", staticHints{err: errors.New("boom")}, defaults},
		{"history", staticHints{amounts: []decimal.Decimal{decimal.NewFromInt(250), decimal.RequireFromString("99.5")}}, []string{"250", "99.5"}},
		{"oversized history filtered", staticHints{amounts: []decimal.Decimal{
			decimal.RequireFromString(strings.Repeat("9", 60) + "." + strings.Repeat("1", 20)),
			decimal.RequireFromString("0.001"),
			decimal.NewFromInt(700),
		}}, []string{"700"}},
		{"only oversized history", staticHints{amounts: []decimal.Decimal{decimal.RequireFromString("123456789")}}, defaults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil, tt.hints)
			_, err := e.Start(context.Background(), user)
			require.NoError(t, err)

			res := drive(t, e, pickIn("take"))
			assert.Equal(t, tt.want, optionParams(res.Prompt, ActionPick))

			// быстрая кнопка принимается как ввод суммы
			drive(t, e, pickIn(tt.want[0]))
			assert.Equal(t, tt.want[0], e.state(t).Fields[model.FieldAmount])
		})
	}
}

func TestEngine_PromptShowsPreview(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	_, err := e.Start(context.Background(), user)
	require.NoError(t, err)

	res := drive(t, e, pickIn("give"), textIn("12500"), pickIn("RUB"))
	assert.Contains(t, res.Prompt.Text, "📝 Заявка:\n🔴 Хочу отдать\n💰 12 500₽ (RUB)")
}

// Случайные блуждания по мастеру: после каждого принятого ввода
// состояние должно оставаться согласованным.
func TestEngine_RandomWalksKeepInvariant(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	// встречная заявка, чтобы шаг matches был достижим
	_, err := e.repo.Insert(ctx, &model.Request{
		RequesterID:   2,
		RequestType:   model.RequestTake,
		Amount:        decimal.NewFromInt(1),
		CurrencyFrom:  model.USD,
		MoneyTypeFrom: model.MoneyCash,
		LocationFrom:  model.Dushanbe,
		CurrencyTo:    model.TJS,
		MoneyTypeTo:   model.MoneyOnline,
		LocationTo:    model.Dushanbe,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	texts := []string{"abc", "1000,5", "42", "usd", "online", "комментарий", ""}
	rng := rand.New(rand.NewSource(1))

	for walk := 0; walk < 200; walk++ {
		prompt, err := e.Start(ctx, user)
		require.NoError(t, err)

		for step := 0; step < 40; step++ {
			var in Input
			if rng.Intn(4) == 0 {
				in = textIn(texts[rng.Intn(len(texts))])
			} else {
				var choices []Option
				for _, o := range prompt.Options {
					if o.Choice.Action != ActionCancel && o.Choice.Action != ActionFinalize {
						choices = append(choices, o)
					}
				}
				require.NotEmpty(t, choices)
				in = Input{UserID: user, Kind: KindChoice, Choice: choices[rng.Intn(len(choices))].Choice}
			}

			res, err := e.Handle(ctx, in)
			require.NoError(t, err)
			require.NotNil(t, res.Prompt)
			prompt = res.Prompt
			checkInvariant(t, e.state(t))
		}
	}
}

func TestEngine_ConcurrentInputsForOneUser(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()
	_, err := e.Start(ctx, user)
	require.NoError(t, err)

	// одинаковые нажатия приходят одновременно: принимается только первое,
	// остальные видят уже шаг суммы и отклоняются
	const workers = 16
	var wg sync.WaitGroup
	results := make(chan *Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Handle(ctx, pickIn("give"))
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for res := range results {
		require.NotNil(t, res)
		if res.Rejected != nil {
			assert.ErrorIs(t, res.Rejected, ErrInvalidInput)
			rejected++
			continue
		}
		accepted++
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, rejected)

	s := e.state(t)
	assert.Equal(t, model.StepAmount, s.Step)
	checkInvariant(t, s)
}

func TestEngine_ConcurrentUsersAreIndependent(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	const users = 8
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Start(ctx, u)
			if !assert.NoError(t, err) {
				return
			}
			for _, in := range giveUSDForTJS {
				in.UserID = u
				res, err := e.Handle(ctx, in)
				if !assert.NoError(t, err) || !assert.NoError(t, res.Rejected) {
					return
				}
			}
		}()
	}
	wg.Wait()

	for u := int64(1); u <= users; u++ {
		s, ok, err := e.store.Get(ctx, u)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.StepConfirm, s.Step, "user %d", u)
		checkInvariant(t, s)
	}
}
