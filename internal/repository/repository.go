package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("request not found")
	ErrForbidden     = errors.New("request belongs to another user")
	ErrAlreadyClosed = errors.New("request already closed")
)

type Repository interface {
	// Заявки
	Insert(ctx context.Context, request *model.Request) (int64, error)
	Get(ctx context.Context, id int64) (*model.Request, error)
	FindActiveOpposite(ctx context.Context, query MatchQuery, excludeUserID int64) ([]model.Request, error)
	FindActiveByRequester(ctx context.Context, userID int64) ([]model.Request, error)
	ListActive(ctx context.Context) ([]model.Request, error)
	SetStatus(ctx context.Context, id, requesterID int64, status model.Status, at time.Time) (*model.Request, error)
	SetGroupMessageID(ctx context.Context, id int64, messageID int) error
	RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error)

	// Пользователи
	UpsertUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, telegramID int64) (*model.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// MatchQuery описывает заявки, которые ищутся как встречные:
// направление RequestType и точное совпадение всех атрибутов.
type MatchQuery struct {
	RequestType model.RequestType
	Attributes  model.Attributes
}

// classifyClose проверяет, можно ли закрыть заявку
func classifyClose(r *model.Request, requesterID int64) error {
	if r.RequesterID != requesterID {
		return ErrForbidden
	}
	if r.Status == model.StatusClosed {
		return ErrAlreadyClosed
	}
	return nil
}

// distinctAmounts оставляет первые limit различных сумм, сохраняя порядок
func distinctAmounts(amounts []decimal.Decimal, limit int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, limit)
	for _, a := range amounts {
		dup := false
		for _, seen := range out {
			if seen.Equal(a) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}
