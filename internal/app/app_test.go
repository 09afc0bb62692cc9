package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ivanoskov/exchange_bot/internal/config"
	"github.com/ivanoskov/exchange_bot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenRepository_Memory(t *testing.T) {
	a := &App{}
	repo, err := a.openRepository(context.Background(), &config.Config{}, discardLogger)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryRepository{}, repo)
	assert.Empty(t, a.closers)
}

func TestOpenRepository_SupabaseWithoutKey(t *testing.T) {
	a := &App{}
	_, err := a.openRepository(context.Background(), &config.Config{SupabaseURL: "https://example.supabase.co"}, discardLogger)
	assert.Error(t, err)
}

func TestClose_ReverseOrder(t *testing.T) {
	var order []int
	a := &App{}
	a.onClose(func() { order = append(order, 1) })
	a.onClose(func() { order = append(order, 2) })

	a.Close()
	a.Close()
	assert.Equal(t, []int{2, 1}, order)
}
