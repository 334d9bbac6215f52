package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWebhookClient struct {
	endpoint string
	params   tgbotapi.Params
}

func (f *fakeWebhookClient) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.endpoint, f.params = endpoint, params
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestSetWebhook(t *testing.T) {
	c := &fakeWebhookClient{}
	require.NoError(t, SetWebhook(c, "https://bot.example.com/hook", "s3cret"))
	assert.Equal(t, "setWebhook", c.endpoint)
	assert.Equal(t, "https://bot.example.com/hook", c.params["url"])
	assert.Equal(t, "s3cret", c.params["secret_token"])

	require.NoError(t, SetWebhook(c, "https://bot.example.com/hook", ""))
	_, ok := c.params["secret_token"]
	assert.False(t, ok)

	assert.Error(t, SetWebhook(c, "not a url", "s3cret"))
}
