package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const requestColumns = `id, user_id, request_type, amount::text, currency_from, money_type_from, location_from,
	currency_to, money_type_to, location_to, COALESCE(comment, ''), message_text, status,
	group_message_id, created_at, closed_at`

// PostgresRepository хранит заявки в PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ConnectPostgres создает пул соединений и проверяет доступность базы
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

// Insert сохраняет заявку в одной транзакции: либо строка создана целиком, либо ее нет
func (r *PostgresRepository) Insert(ctx context.Context, request *model.Request) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// заявка ссылается на пользователя, создаем его, если /start не вызывался
	_, err = tx.Exec(ctx, `
		INSERT INTO users (telegram_id) VALUES ($1)
		ON CONFLICT (telegram_id) DO NOTHING`, request.RequesterID)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure user: %w", err)
	}

	status := request.Status
	if status == "" {
		status = model.StatusActive
	}
	createdAt := request.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO requests (user_id, request_type, amount, currency_from, money_type_from, location_from,
			currency_to, money_type_to, location_to, comment, message_text, status, created_at)
		VALUES ($1, $2, $3::numeric(10,2), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
		RETURNING id`,
		request.RequesterID, string(request.RequestType), request.Amount.String(),
		string(request.CurrencyFrom), string(request.MoneyTypeFrom), string(request.LocationFrom),
		string(request.CurrencyTo), string(request.MoneyTypeTo), string(request.LocationTo),
		request.Comment, request.MessageText, string(status), createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit request: %w", err)
	}

	request.ID = id
	request.Status = status
	request.CreatedAt = createdAt
	return id, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*model.Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %d: %w", id, err)
	}
	return req, nil
}

func (r *PostgresRepository) FindActiveOpposite(ctx context.Context, query MatchQuery, excludeUserID int64) ([]model.Request, error) {
	a := query.Attributes
	return r.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status = 'ACTIVE'
			AND request_type = $1
			AND currency_from = $2 AND money_type_from = $3 AND location_from = $4
			AND currency_to = $5 AND money_type_to = $6 AND location_to = $7
			AND user_id <> $8
		ORDER BY created_at DESC, id DESC`,
		string(query.RequestType),
		string(a.CurrencyFrom), string(a.MoneyTypeFrom), string(a.LocationFrom),
		string(a.CurrencyTo), string(a.MoneyTypeTo), string(a.LocationTo),
		excludeUserID,
	)
}

func (r *PostgresRepository) FindActiveByRequester(ctx context.Context, userID int64) ([]model.Request, error) {
	return r.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status = 'ACTIVE' AND user_id = $1
		ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]model.Request, error) {
	return r.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status = 'ACTIVE'
		ORDER BY created_at DESC, id DESC`)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id, requesterID int64, status model.Status, at time.Time) (*model.Request, error) {
	if status != model.StatusClosed {
		return nil, fmt.Errorf("unsupported status transition to %s", status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %d: %w", id, err)
	}
	if err := classifyClose(current, requesterID); err != nil {
		return nil, err
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE requests SET status = $2, closed_at = $3
		WHERE id = $1
		RETURNING `+requestColumns, id, string(status), at))
	if err != nil {
		return nil, fmt.Errorf("failed to close request %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit close of request %d: %w", id, err)
	}
	return updated, nil
}

func (r *PostgresRepository) SetGroupMessageID(ctx context.Context, id int64, messageID int) error {
	tag, err := r.db.Exec(ctx, `UPDATE requests SET group_message_id = $2 WHERE id = $1`, id, messageID)
	if err != nil {
		return fmt.Errorf("failed to set group message id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT amount::text FROM requests
		WHERE user_id = $1
		GROUP BY amount
		ORDER BY MAX(created_at) DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent amounts: %w", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", raw, err)
		}
		amounts = append(amounts, d)
	}
	return amounts, rows.Err()
}

func (r *PostgresRepository) UpsertUser(ctx context.Context, user *model.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (telegram_id, username, first_name)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name`,
		user.TelegramID, user.Username, user.FirstName)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT telegram_id, COALESCE(username, ''), first_name, created_at
		FROM users WHERE telegram_id = $1`, telegramID,
	).Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT telegram_id FROM users ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) queryRequests(ctx context.Context, sql string, args ...any) ([]model.Request, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (*model.Request, error) {
	var (
		req        model.Request
		amount     string
		groupMsgID *int64
	)
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.RequestType, &amount,
		&req.CurrencyFrom, &req.MoneyTypeFrom, &req.LocationFrom,
		&req.CurrencyTo, &req.MoneyTypeTo, &req.LocationTo,
		&req.Comment, &req.MessageText, &req.Status,
		&groupMsgID, &req.CreatedAt, &req.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if groupMsgID != nil {
		v := int(*groupMsgID)
		req.GroupMessageID = &v
	}
	return &req, nil
}
