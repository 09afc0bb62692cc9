package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	requestsTable = "requests"
	usersTable    = "users"
)

var recentFirst = &postgrest.OrderOpts{Ascending: false}

// SupabaseRepository хранит заявки в Supabase через PostgREST
type SupabaseRepository struct {
	client *supabase.Client
}

func NewSupabaseRepository(url, key string) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}

	return &SupabaseRepository{
		client: client,
	}, nil
}

// Insert создает заявку одним запросом INSERT, PostgREST выполняет его атомарно.
// Перед этим создается строка пользователя, на которую ссылается заявка.
func (r *SupabaseRepository) Insert(ctx context.Context, request *model.Request) (int64, error) {
	if err := r.ensureUser(request.RequesterID); err != nil {
		return 0, err
	}
	if request.Status == "" {
		request.Status = model.StatusActive
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}

	data, _, err := r.client.From(requestsTable).Insert(request, false, "", "representation", "").Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	var created []model.Request
	if err := json.Unmarshal(data, &created); err != nil {
		return 0, fmt.Errorf("failed to parse created request: %w", err)
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("failed to create request: empty response")
	}
	request.ID = created[0].ID
	request.CreatedAt = created[0].CreatedAt
	return request.ID, nil
}

func (r *SupabaseRepository) Get(ctx context.Context, id int64) (*model.Request, error) {
	requests, err := r.selectRequests(r.client.From(requestsTable).
		Select("*", "", false).
		Eq("id", strconv.FormatInt(id, 10)))
	if err != nil {
		return nil, fmt.Errorf("failed to get request %d: %w", id, err)
	}
	if len(requests) == 0 {
		return nil, ErrNotFound
	}
	return &requests[0], nil
}

func (r *SupabaseRepository) FindActiveOpposite(ctx context.Context, query MatchQuery, excludeUserID int64) ([]model.Request, error) {
	a := query.Attributes
	requests, err := r.selectRequests(r.client.From(requestsTable).
		Select("*", "", false).
		Eq("status", string(model.StatusActive)).
		Eq("request_type", string(query.RequestType)).
		Eq("currency_from", string(a.CurrencyFrom)).
		Eq("money_type_from", string(a.MoneyTypeFrom)).
		Eq("location_from", string(a.LocationFrom)).
		Eq("currency_to", string(a.CurrencyTo)).
		Eq("money_type_to", string(a.MoneyTypeTo)).
		Eq("location_to", string(a.LocationTo)).
		Neq("user_id", strconv.FormatInt(excludeUserID, 10)).
		Order("created_at", recentFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to find matching requests: %w", err)
	}
	return requests, nil
}

func (r *SupabaseRepository) FindActiveByRequester(ctx context.Context, userID int64) ([]model.Request, error) {
	requests, err := r.selectRequests(r.client.From(requestsTable).
		Select("*", "", false).
		Eq("status", string(model.StatusActive)).
		Eq("user_id", strconv.FormatInt(userID, 10)).
		Order("created_at", recentFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to get user requests: %w", err)
	}
	return requests, nil
}

func (r *SupabaseRepository) ListActive(ctx context.Context) ([]model.Request, error) {
	requests, err := r.selectRequests(r.client.From(requestsTable).
		Select("*", "", false).
		Eq("status", string(model.StatusActive)).
		Order("created_at", recentFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	return requests, nil
}

// SetStatus закрывает заявку. Условие status=ACTIVE в UPDATE не дает закрыть ее дважды.
func (r *SupabaseRepository) SetStatus(ctx context.Context, id, requesterID int64, status model.Status, at time.Time) (*model.Request, error) {
	if status != model.StatusClosed {
		return nil, fmt.Errorf("unsupported status transition to %s", status)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := classifyClose(current, requesterID); err != nil {
		return nil, err
	}

	update := map[string]interface{}{
		"status":    string(status),
		"closed_at": at.UTC().Format(time.RFC3339Nano),
	}
	updated, err := r.selectRequests(r.client.From(requestsTable).
		Update(update, "representation", "").
		Eq("id", strconv.FormatInt(id, 10)).
		Eq("user_id", strconv.FormatInt(requesterID, 10)).
		Eq("status", string(model.StatusActive)))
	if err != nil {
		return nil, fmt.Errorf("failed to close request %d: %w", id, err)
	}
	if len(updated) == 0 {
		// кто-то закрыл заявку между чтением и обновлением
		return nil, ErrAlreadyClosed
	}
	return &updated[0], nil
}

func (r *SupabaseRepository) SetGroupMessageID(ctx context.Context, id int64, messageID int) error {
	_, _, err := r.client.From(requestsTable).
		Update(map[string]interface{}{"group_message_id": messageID}, "", "").
		Eq("id", strconv.FormatInt(id, 10)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to set group message id: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error) {
	data, _, err := r.client.From(requestsTable).
		Select("amount", "", false).
		Eq("user_id", strconv.FormatInt(userID, 10)).
		Order("created_at", recentFirst).
		Limit(limit*5, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent amounts: %w", err)
	}

	var rows []struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse amounts: %w", err)
	}
	amounts := make([]decimal.Decimal, 0, len(rows))
	for _, row := range rows {
		amounts = append(amounts, row.Amount)
	}
	return distinctAmounts(amounts, limit), nil
}

func (r *SupabaseRepository) UpsertUser(ctx context.Context, user *model.User) error {
	row := map[string]interface{}{
		"telegram_id": user.TelegramID,
		"first_name":  user.FirstName,
	}
	if user.Username != "" {
		row["username"] = user.Username
	}
	_, _, err := r.client.From(usersTable).Insert(row, true, "telegram_id", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// ensureUser создает пользователя, если /start не вызывался. В запросе только
// telegram_id, поэтому при конфликте имя и username не затираются.
func (r *SupabaseRepository) ensureUser(telegramID int64) error {
	row := map[string]interface{}{"telegram_id": telegramID}
	_, _, err := r.client.From(usersTable).Insert(row, true, "telegram_id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	data, _, err := r.client.From(usersTable).
		Select("*", "", false).
		Eq("telegram_id", strconv.FormatInt(telegramID, 10)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var users []model.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (r *SupabaseRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	data, _, err := r.client.From(usersTable).
		Select("telegram_id", "", false).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var rows []struct {
		TelegramID int64 `json:"telegram_id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse users: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TelegramID)
	}
	return ids, nil
}

func (r *SupabaseRepository) selectRequests(query *postgrest.FilterBuilder) ([]model.Request, error) {
	data, _, err := query.Execute()
	if err != nil {
		return nil, err
	}

	var requests []model.Request
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("failed to parse requests: %w", err)
	}
	return requests, nil
}
