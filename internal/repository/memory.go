package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
)

// MemoryRepository хранит заявки в памяти. Используется в тестах и для
// локального запуска без базы данных.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	requests map[int64]*model.Request
	users    map[int64]*model.User
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:   1,
		requests: make(map[int64]*model.Request),
		users:    make(map[int64]*model.User),
		now:      time.Now,
	}
}

func (m *MemoryRepository) Insert(ctx context.Context, request *model.Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *request
	r.ID = m.nextID
	m.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	m.requests[r.ID] = &r

	request.ID = r.ID
	request.CreatedAt = r.CreatedAt
	request.Status = r.Status
	return r.ID, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id int64) (*model.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyRequest(r)
	return &out, nil
}

func (m *MemoryRepository) FindActiveOpposite(ctx context.Context, query MatchQuery, excludeUserID int64) ([]model.Request, error) {
	return m.filter(func(r *model.Request) bool {
		return r.IsActive() &&
			r.RequesterID != excludeUserID &&
			r.RequestType == query.RequestType &&
			r.Attributes() == query.Attributes
	}), nil
}

func (m *MemoryRepository) FindActiveByRequester(ctx context.Context, userID int64) ([]model.Request, error) {
	return m.filter(func(r *model.Request) bool {
		return r.IsActive() && r.RequesterID == userID
	}), nil
}

func (m *MemoryRepository) ListActive(ctx context.Context) ([]model.Request, error) {
	return m.filter(func(r *model.Request) bool {
		return r.IsActive()
	}), nil
}

func (m *MemoryRepository) SetStatus(ctx context.Context, id, requesterID int64, status model.Status, at time.Time) (*model.Request, error) {
	if status != model.StatusClosed {
		return nil, fmt.Errorf("unsupported status transition to %s", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := classifyClose(r, requesterID); err != nil {
		return nil, err
	}
	closedAt := at
	r.Status = status
	r.ClosedAt = &closedAt

	out := copyRequest(r)
	return &out, nil
}

func (m *MemoryRepository) SetGroupMessageID(ctx context.Context, id int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	msgID := messageID
	r.GroupMessageID = &msgID
	return nil
}

func (m *MemoryRepository) RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error) {
	own := m.filter(func(r *model.Request) bool {
		return r.RequesterID == userID
	})

	amounts := make([]decimal.Decimal, 0, len(own))
	for _, r := range own {
		amounts = append(amounts, r.Amount)
	}
	return distinctAmounts(amounts, limit), nil
}

func (m *MemoryRepository) UpsertUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := *user
	if existing, ok := m.users[u.TelegramID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.TelegramID] = &u
	return nil
}

func (m *MemoryRepository) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryRepository) filter(keep func(r *model.Request) bool) []model.Request {
	m.mu.RLock()
	out := make([]model.Request, 0)
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, copyRequest(r))
		}
	}
	m.mu.RUnlock()

	SortRecentFirst(out)
	return out
}

// SortRecentFirst сортирует заявки от новых к старым, при равном времени - по убыванию ID
func SortRecentFirst(requests []model.Request) {
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.After(requests[j].CreatedAt)
		}
		return requests[i].ID > requests[j].ID
	})
}

func copyRequest(r *model.Request) model.Request {
	out := *r
	if r.GroupMessageID != nil {
		v := *r.GroupMessageID
		out.GroupMessageID = &v
	}
	if r.ClosedAt != nil {
		v := *r.ClosedAt
		out.ClosedAt = &v
	}
	return out
}
