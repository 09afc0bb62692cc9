package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramGateway_Announce(t *testing.T) {
	api := &fakeSender{}
	g := NewTelegramGateway(api, groupID)

	id, err := g.Announce(context.Background(), "Заявка <1>")
	require.NoError(t, err)
	assert.Equal(t, 1001, id)

	msg := lastMessage(t, api)
	assert.Equal(t, groupID, msg.ChatID)
	assert.Equal(t, "Заявка &lt;1&gt;", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestTelegramGateway_AnnounceErrors(t *testing.T) {
	_, err := NewTelegramGateway(&fakeSender{}, 0).Announce(context.Background(), "x")
	assert.Error(t, err)

	api := &fakeSender{failFor: map[int64]bool{groupID: true}}
	_, err = NewTelegramGateway(api, groupID).Announce(context.Background(), "x")
	assert.Error(t, err)
}

func TestTelegramGateway_MarkClosed(t *testing.T) {
	api := &fakeSender{}
	g := NewTelegramGateway(api, groupID)

	require.NoError(t, g.MarkClosed(context.Background(), 77, "a & b"))
	edit := lastEdit(t, api)
	assert.Equal(t, 77, edit.MessageID)
	assert.Equal(t, "<s>a &amp; b</s>\n\n"+closedMark, edit.Text)
}

type failingRequester struct{ fakeSender }

func (f *failingRequester) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return nil, errors.New("Bad Request: message to edit not found")
}

func TestTelegramGateway_MarkClosedError(t *testing.T) {
	g := NewTelegramGateway(&failingRequester{}, groupID)
	assert.Error(t, g.MarkClosed(context.Background(), 1, "x"))
}
