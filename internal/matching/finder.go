// Package matching ищет встречные заявки для заявки, которая еще не опубликована.
package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/repository"
)

var ErrMatchLookup = errors.New("match lookup failed")

// Repository - часть хранилища, нужная для поиска
type Repository interface {
	FindActiveOpposite(ctx context.Context, query repository.MatchQuery, excludeUserID int64) ([]model.Request, error)
}

type Finder struct {
	repo Repository
}

func NewFinder(repo Repository) *Finder {
	return &Finder{repo: repo}
}

// Find возвращает активные заявки других пользователей с противоположным
// направлением и полностью совпадающими атрибутами, от новых к старым.
// Если совпадений нет, возвращается пустой срез.
func (f *Finder) Find(ctx context.Context, requestType model.RequestType, attrs model.Attributes, excludeUserID int64) ([]model.Request, error) {
	opposite := requestType.Opposite()
	if opposite == "" {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrMatchLookup, requestType)
	}

	candidates, err := f.repo.FindActiveOpposite(ctx, repository.MatchQuery{
		RequestType: opposite,
		Attributes:  attrs,
	}, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatchLookup, err)
	}

	// Хранилища фильтруют сами, но результат должен быть одинаковым для любого из них
	matches := make([]model.Request, 0, len(candidates))
	for _, c := range candidates {
		if c.IsActive() &&
			c.RequestType == opposite &&
			c.RequesterID != excludeUserID &&
			c.Attributes() == attrs {
			matches = append(matches, c)
		}
	}
	repository.SortRecentFirst(matches)
	return matches, nil
}
