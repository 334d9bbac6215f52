package app

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/assets"
	"github.com/classfeedback/feedback-bot/internal/config"
	"github.com/classfeedback/feedback-bot/internal/httpapi"
	"github.com/classfeedback/feedback-bot/internal/scheduler"
	"github.com/classfeedback/feedback-bot/internal/store"
	"github.com/classfeedback/feedback-bot/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	repo    store.Repo
	router  *telegram.Router
	sched   *scheduler.Scheduler
	httpSrv *httpapi.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, errors.Wrap(err, "telegram auth")
	}
	bot.Debug = cfg.Debug

	return &App{cfg: cfg, log: log, bot: bot}, nil
}

// OpenStore opens the configured database and seeds the class schedule
// when the table is empty.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*store.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, cfg.Location)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	entries, err := assets.Schedule(cfg.ScheduleFile)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "load schedule")
	}
	n, err := db.SeedSchedule(ctx, entries)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "seed schedule")
	}
	log.Info("store ready", zap.String("driver", db.Driver()), zap.Int("seeded_entries", n))
	return db, nil
}

// SchedulerConfig maps application config onto the scheduler.
func SchedulerConfig(cfg config.Config) scheduler.Config {
	return scheduler.Config{
		Location:        cfg.Location,
		PollInterval:    cfg.PollInterval,
		Grace:           cfg.Grace(),
		StartupDelay:    cfg.StartupDelay,
		Retention:       cfg.DispatchRetention,
		SendConcurrency: cfg.SendConcurrency,
	}
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting feedback-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.cfg.Location.String()),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := OpenStore(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	a.repo = repo
	defer func() { _ = a.repo.Close() }()

	a.router = telegram.NewRouter(a.bot, a.log, a.repo, a.cfg.Location, a.cfg.AdminChatID)
	if err := a.router.RegisterCommands(); err != nil {
		a.log.Warn("register commands failed", zap.Error(err))
	}
	a.sched = scheduler.New(a.repo, a.router, nil, a.log, SchedulerConfig(a.cfg))

	opts := httpapi.Options{Store: a.repo, Passes: a.sched, AdminToken: a.cfg.AdminAPIToken}
	if a.cfg.RunMode == config.ModeWebhook {
		u, err := url.Parse(a.cfg.WebhookURL)
		if err != nil {
			return errors.Wrap(err, "parse webhook url")
		}
		opts.Updates, opts.WebhookPath, opts.WebhookSecret = a.router, u.Path, a.cfg.WebhookSecret
		if opts.WebhookPath == "" {
			opts.WebhookPath = "/"
		}
	}
	a.httpSrv = httpapi.NewServer(a.cfg.HTTPAddr, a.log, opts)
	go func() {
		if err := a.httpSrv.Start(); err != nil {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		a.sched.Run(ctx)
		close(schedDone)
	}()

	if a.cfg.RunMode == config.ModeWebhook {
		err = a.runWebhook(ctx)
	} else {
		err = a.runPolling(ctx)
	}

	stop()
	a.log.Info("shutting down", zap.Error(err))
	<-schedDone
	a.shutdown()
	return err
}

func (a *App) runPolling(ctx context.Context) error {
	// getUpdates is rejected while a webhook is set
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return errors.Wrap(err, "delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) runWebhook(ctx context.Context) error {
	if err := telegram.SetWebhook(a.bot, a.cfg.WebhookURL, a.cfg.WebhookSecret); err != nil {
		return errors.Wrap(err, "set webhook")
	}
	a.log.Info("webhook registered", zap.String("url", a.cfg.WebhookURL))
	<-ctx.Done()
	return nil
}

func (a *App) shutdown() {
	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := a.sched.WaitContext(shCtx); err != nil {
		a.log.Warn("in-flight feedback requests abandoned", zap.Error(err))
	}
}
