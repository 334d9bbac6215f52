package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/classfeedback/feedback-bot/internal/scheduler"
	"github.com/classfeedback/feedback-bot/internal/telegram"
)

var errHelp = errors.New("help provided")

type telegramAPI interface {
	GetMe() (tgbotapi.User, error)
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type commandLine struct {
	out           io.Writer
	bot           func() (telegramAPI, error)
	pass          func(ctx context.Context) (scheduler.Result, error)
	webhookSecret string // default for set-webhook -secret
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  info                 - show bot identity and webhook status")
	fmt.Fprintln(cli.out, "  set-webhook -url URL [-secret TOKEN] - point Telegram at URL")
	fmt.Fprintln(cli.out, "  delete-webhook       - remove the webhook (required for polling)")
	fmt.Fprintln(cli.out, "  pass                 - run one feedback scheduling pass now")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setWebhookCmd := flag.NewFlagSet("set-webhook", flag.ContinueOnError)
	setWebhookCmd.SetOutput(cli.out)
	setWebhookURL := setWebhookCmd.String("url", "", "Public HTTPS URL Telegram should post updates to.")
	setWebhookSecret := setWebhookCmd.String("secret", cli.webhookSecret, "Secret token Telegram sends with every update (defaults to WEBHOOK_SECRET).")

	switch args[1] {
	case "info":
		return cli.info()
	case "set-webhook":
		if err := setWebhookCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setWebhookURL == "" {
			setWebhookCmd.Usage()
			return errHelp
		}
		return cli.setWebhook(*setWebhookURL, *setWebhookSecret)
	case "delete-webhook":
		return cli.deleteWebhook()
	case "pass":
		return cli.runPass(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) info() error {
	bot, err := cli.bot()
	if err != nil {
		return err
	}
	me, err := bot.GetMe()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "bot: @%s (id %d)\n", me.UserName, me.ID)

	wh, err := bot.GetWebhookInfo()
	if err != nil {
		return err
	}
	if wh.URL == "" {
		fmt.Fprintln(cli.out, "webhook: not set (polling)")
		return nil
	}
	fmt.Fprintf(cli.out, "webhook: %s\npending updates: %d\n", wh.URL, wh.PendingUpdateCount)
	if wh.LastErrorDate != 0 {
		at := time.Unix(int64(wh.LastErrorDate), 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(cli.out, "last error: %s at %s\n", wh.LastErrorMessage, at)
	}
	return nil
}

func (cli *commandLine) setWebhook(rawURL, secret string) error {
	bot, err := cli.bot()
	if err != nil {
		return err
	}
	if err := telegram.SetWebhook(bot, rawURL, secret); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "webhook set: %s\n", rawURL)
	return nil
}

func (cli *commandLine) deleteWebhook() error {
	bot, err := cli.bot()
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "webhook deleted")
	return nil
}

func (cli *commandLine) runPass(ctx context.Context) error {
	res, err := cli.pass(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
