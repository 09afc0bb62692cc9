// Package session хранит состояния мастера создания заявок, по одному на пользователя.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/maypok86/otter"
)

// Store - хранилище состояний мастера по ID пользователя
type Store interface {
	Get(ctx context.Context, userID int64) (*model.WizardState, bool, error)
	Set(ctx context.Context, state *model.WizardState) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore хранит состояния в памяти процесса. Неактивные состояния
// удаляются по истечении TTL.
type MemoryStore struct {
	cache otter.Cache[int64, *model.WizardState]
}

// NewMemoryStore создает хранилище на capacity пользователей со временем жизни ttl
func NewMemoryStore(capacity int, ttl time.Duration) (*MemoryStore, error) {
	c, err := otter.MustBuilder[int64, *model.WizardState](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache with capacity %d: %w", capacity, err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(ctx context.Context, userID int64) (*model.WizardState, bool, error) {
	state, ok := s.cache.Get(userID)
	if !ok {
		return nil, false, nil
	}
	// Отдаем копию, чтобы изменения не попадали в кэш в обход Set
	return state.Clone(), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, state *model.WizardState) error {
	if state == nil {
		return fmt.Errorf("cannot store nil state")
	}
	if !s.cache.Set(state.UserID, state.Clone()) {
		return fmt.Errorf("session cache rejected state for user %d", state.UserID)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID int64) error {
	s.cache.Delete(userID)
	return nil
}

// Close останавливает фоновые горутины кэша
func (s *MemoryStore) Close() {
	s.cache.Close()
}
