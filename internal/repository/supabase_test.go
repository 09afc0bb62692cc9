package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgrestCall - один запрос к REST API Supabase
type postgrestCall struct {
	method string
	path   string
	query  string
	prefer string
	body   string
}

func newSupabaseServer(t *testing.T, respond func(call postgrestCall) (int, string)) (*SupabaseRepository, *[]postgrestCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []postgrestCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		call := postgrestCall{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			prefer: r.Header.Get("Prefer"),
			body:   string(body),
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		status, payload := respond(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	repo, err := NewSupabaseRepository(srv.URL, "test-key")
	require.NoError(t, err)
	return repo, &calls
}

func TestSupabaseRepository_InsertEnsuresUser(t *testing.T) {
	repo, calls := newSupabaseServer(t, func(call postgrestCall) (int, string) {
		if call.path == "/rest/v1/requests" {
			return http.StatusCreated, `[{"id": 7, "user_id": 42, "created_at": "2026-01-02T03:04:05Z"}]`
		}
		return http.StatusCreated, ``
	})

	request := &model.Request{
		RequesterID: 42,
		RequestType: model.RequestGive,
		Amount:      decimal.NewFromInt(500),
		MessageText: "Отдам $500 (USD)",
	}
	id, err := repo.Insert(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, model.StatusActive, request.Status)

	require.Len(t, *calls, 2)
	user := (*calls)[0]
	assert.Equal(t, http.MethodPost, user.method)
	assert.Equal(t, "/rest/v1/users", user.path)
	assert.Contains(t, user.prefer, "resolution=merge-duplicates")

	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(user.body), &row))
	assert.Equal(t, map[string]any{"telegram_id": float64(42)}, row, "existing name must not be overwritten")

	assert.Equal(t, "/rest/v1/requests", (*calls)[1].path)
}

func TestSupabaseRepository_InsertUserFailure(t *testing.T) {
	repo, calls := newSupabaseServer(t, func(call postgrestCall) (int, string) {
		return http.StatusInternalServerError, `{"message": "boom"}`
	})

	_, err := repo.Insert(context.Background(), &model.Request{RequesterID: 42})
	require.Error(t, err)
	assert.Len(t, *calls, 1, "request row is not attempted without its user")
}
