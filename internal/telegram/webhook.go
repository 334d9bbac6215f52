package telegram

import (
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SecretHeader carries the webhook secret on every update Telegram posts.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookClient is the part of *tgbotapi.BotAPI needed to manage the webhook.
type WebhookClient interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// SetWebhook points Telegram at rawURL. A non-empty secret is sent back by
// Telegram in SecretHeader. tgbotapi.WebhookConfig has no secret_token
// field, so the call is made with raw params.
func SetWebhook(bot WebhookClient, rawURL, secret string) error {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return err
	}
	params := make(tgbotapi.Params)
	params["url"] = rawURL
	params.AddNonEmpty("secret_token", secret)
	_, err := bot.MakeRequest("setWebhook", params)
	return err
}
