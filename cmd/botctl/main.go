// Command botctl runs one-off operational tasks against the bot's Telegram
// account and database.
package main

import (
	"context"
	"errors"
	"os"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/internal/app"
	"github.com/classfeedback/feedback-bot/internal/config"
	"github.com/classfeedback/feedback-bot/internal/logger"
	"github.com/classfeedback/feedback-bot/internal/scheduler"
	"github.com/classfeedback/feedback-bot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	var bot *tgbotapi.BotAPI
	connect := func() (telegramAPI, error) {
		if bot == nil {
			b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
			if err != nil {
				return nil, err
			}
			bot = b
		}
		return bot, nil
	}

	cli := &commandLine{
		out:           os.Stdout,
		bot:           connect,
		webhookSecret: cfg.WebhookSecret,
		pass: func(ctx context.Context) (scheduler.Result, error) {
			b, err := connect()
			if err != nil {
				return scheduler.Result{}, err
			}
			db, err := app.OpenStore(ctx, cfg, log)
			if err != nil {
				return scheduler.Result{}, err
			}
			defer db.Close()

			router := telegram.NewRouter(b, log, db, cfg.Location, cfg.AdminChatID)
			s := scheduler.New(db, router, nil, log, app.SchedulerConfig(cfg))
			res, err := s.RunPass(ctx)
			s.Wait()
			return res, err
		},
	}

	if err := cli.run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
