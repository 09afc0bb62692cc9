// Package events публикует события жизненного цикла заявок во внешнюю шину.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ivanoskov/exchange_bot/internal/model"
)

type Type string

const (
	RequestCreated Type = "request.created"
	RequestClosed  Type = "request.closed"
)

// Event - сообщение о смене статуса заявки
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Request    *model.Request `json:"request"`
}

// NewEvent создает событие с новым идентификатором
func NewEvent(t Type, request *model.Request, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: at.UTC(),
		Request:    request,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher отбрасывает события. Используется, когда шина не настроена.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NopPublisher) Close() error { return nil }
