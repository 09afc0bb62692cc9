package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Тесты с настоящей базой запускаются только при заданном TEST_DATABASE_URL
func newPostgresTestRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(url))

	ctx := context.Background()
	pool, err := ConnectPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE requests, users RESTART IDENTITY`)
	require.NoError(t, err)
	return NewPostgresRepository(pool)
}

func TestPostgresRepository_Lifecycle(t *testing.T) {
	repo := newPostgresTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, &model.User{TelegramID: 1, Username: "alice", FirstName: "Alice"}))

	mine := newRequest(1, model.RequestTake, baseAttrs, time.Now().Add(-time.Minute))
	_, err := repo.Insert(ctx, mine)
	require.NoError(t, err)

	other := newRequest(2, model.RequestGive, baseAttrs, time.Now())
	_, err = repo.Insert(ctx, other)
	require.NoError(t, err)

	matches, err := repo.FindActiveOpposite(ctx, MatchQuery{RequestType: model.RequestGive, Attributes: baseAttrs}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, other.ID, matches[0].ID)
	assert.True(t, matches[0].Amount.Equal(other.Amount))

	require.NoError(t, repo.SetGroupMessageID(ctx, other.ID, 77))

	_, err = repo.SetStatus(ctx, other.ID, 1, model.StatusClosed, time.Now())
	assert.ErrorIs(t, err, ErrForbidden)

	closed, err := repo.SetStatus(ctx, other.ID, 2, model.StatusClosed, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, closed.Status)
	require.NotNil(t, closed.GroupMessageID)
	assert.Equal(t, 77, *closed.GroupMessageID)

	_, err = repo.SetStatus(ctx, other.ID, 2, model.StatusClosed, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	_, err = repo.SetStatus(ctx, 12345, 2, model.StatusClosed, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}
