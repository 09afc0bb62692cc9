// Package service содержит бизнес-логику заявок на обмен.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/events"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/ivanoskov/exchange_bot/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = repository.ErrNotFound
	ErrForbidden     = repository.ErrForbidden
	ErrAlreadyClosed = repository.ErrAlreadyClosed
	ErrDelivery      = errors.New("announcement delivery failed")
	ErrIncomplete    = errors.New("request is incomplete")
)

// NotificationGateway публикует заявки в общем чате
type NotificationGateway interface {
	// Announce отправляет объявление и возвращает ID сообщения
	Announce(ctx context.Context, text string) (int, error)
	// MarkClosed помечает объявление закрытой сделкой
	MarkClosed(ctx context.Context, messageID int, text string) error
}

// Requests управляет жизненным циклом заявок: создание, публикация, закрытие
type Requests struct {
	repo      repository.Repository
	gateway   NotificationGateway
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRequests создает новый экземпляр Requests
func NewRequests(repo repository.Repository, gateway NotificationGateway, publisher events.Publisher, logger *slog.Logger) *Requests {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Requests{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Create сохраняет заявку по завершенному мастеру
func (s *Requests) Create(ctx context.Context, state *model.WizardState) (*model.Request, error) {
	request, err := buildRequest(state)
	if err != nil {
		return nil, err
	}
	request.CreatedAt = s.now()

	id, err := s.repo.Insert(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	request.ID = id

	s.logger.Info("Request created",
		"request_id", id,
		"user_id", request.RequesterID,
		"request_type", request.RequestType)
	s.emit(ctx, events.RequestCreated, request)
	return request, nil
}

// Publish объявляет заявку в общем чате и запоминает ID сообщения.
// Ошибка доставки не меняет заявку, повторной отправки нет.
func (s *Requests) Publish(ctx context.Context, request *model.Request) (int, error) {
	if s.gateway == nil {
		return 0, fmt.Errorf("%w: no gateway configured", ErrDelivery)
	}

	messageID, err := s.gateway.Announce(ctx, s.announcement(ctx, request))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := s.repo.SetGroupMessageID(ctx, request.ID, messageID); err != nil {
		return messageID, fmt.Errorf("failed to store group message id: %w", err)
	}
	request.GroupMessageID = &messageID
	return messageID, nil
}

// Submit создает и публикует заявку. Ошибка публикации только логируется.
func (s *Requests) Submit(ctx context.Context, state *model.WizardState) (*model.Request, error) {
	request, err := s.Create(ctx, state)
	if err != nil {
		return nil, err
	}
	if _, err := s.Publish(ctx, request); err != nil {
		s.logger.Error("Failed to publish request",
			"request_id", request.ID,
			"error", err)
	}
	return request, nil
}

// Close закрывает заявку по запросу ее автора
func (s *Requests) Close(ctx context.Context, id, requesterID int64) (*model.Request, error) {
	request, err := s.repo.SetStatus(ctx, id, requesterID, model.StatusClosed, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to close request %d: %w", id, err)
	}

	s.logger.Info("Request closed", "request_id", id, "user_id", requesterID)

	if request.GroupMessageID != nil && s.gateway != nil {
		err := s.gateway.MarkClosed(ctx, *request.GroupMessageID, s.announcement(ctx, request))
		if err != nil {
			s.logger.Error("Failed to mark announcement closed",
				"request_id", id,
				"message_id", *request.GroupMessageID,
				"error", err)
		}
	}
	s.emit(ctx, events.RequestClosed, request)
	return request, nil
}

func (s *Requests) Get(ctx context.Context, id int64) (*model.Request, error) {
	return s.repo.Get(ctx, id)
}

func (s *Requests) ListActive(ctx context.Context) ([]model.Request, error) {
	return s.repo.ListActive(ctx)
}

// ListMine возвращает активные заявки пользователя, новые первыми
func (s *Requests) ListMine(ctx context.Context, userID int64) ([]model.Request, error) {
	return s.repo.FindActiveByRequester(ctx, userID)
}

// RecentAmounts возвращает последние различные суммы пользователя
func (s *Requests) RecentAmounts(ctx context.Context, userID int64, limit int) ([]decimal.Decimal, error) {
	return s.repo.RecentAmounts(ctx, userID, limit)
}

// RegisterUser создает или обновляет пользователя
func (s *Requests) RegisterUser(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("failed to register user %d: %w", user.TelegramID, err)
	}
	return nil
}

func (s *Requests) ListUserIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListUserIDs(ctx)
}

// Author возвращает пользователя, создавшего заявку; nil, если он неизвестен
func (s *Requests) Author(ctx context.Context, request *model.Request) *model.User {
	user, err := s.repo.GetUser(ctx, request.RequesterID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Failed to load request author",
				"user_id", request.RequesterID,
				"error", err)
		}
		return nil
	}
	return user
}

// announcement - текст объявления в общем чате
func (s *Requests) announcement(ctx context.Context, request *model.Request) string {
	return fmt.Sprintf("📢 Заявка #%d\n\n%s\n\n👤 Автор: %s",
		request.ID,
		description.RenderRequest(request, ""),
		s.Author(ctx, request).DisplayName())
}

func (s *Requests) emit(ctx context.Context, t events.Type, request *model.Request) {
	if err := s.publisher.Publish(ctx, events.NewEvent(t, request, s.now())); err != nil {
		s.logger.Warn("Failed to publish event",
			"event_type", t,
			"request_id", request.ID,
			"error", err)
	}
}

// buildRequest собирает запись заявки из полей мастера
func buildRequest(state *model.WizardState) (*model.Request, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: no state", ErrIncomplete)
	}
	f := state.Fields
	for _, step := range model.Steps() {
		field, ok := step.Field()
		if !ok || field == model.FieldComment {
			continue
		}
		if !f.Has(field) {
			return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, field)
		}
	}
	if !f.RequestType().Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrIncomplete, f[model.FieldRequestType])
	}
	amount, ok := f.Amount()
	if !ok || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: bad amount %q", ErrIncomplete, f[model.FieldAmount])
	}

	attrs := f.Attributes()
	return &model.Request{
		RequesterID:   state.UserID,
		RequestType:   f.RequestType(),
		Amount:        amount,
		CurrencyFrom:  attrs.CurrencyFrom,
		MoneyTypeFrom: attrs.MoneyTypeFrom,
		LocationFrom:  attrs.LocationFrom,
		CurrencyTo:    attrs.CurrencyTo,
		MoneyTypeTo:   attrs.MoneyTypeTo,
		LocationTo:    attrs.LocationTo,
		Comment:       f[model.FieldComment],
		MessageText:   description.Render(f, ""),
		Status:        model.StatusActive,
	}, nil
}
