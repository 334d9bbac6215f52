package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/internal/scheduler"
	"github.com/classfeedback/feedback-bot/internal/store"
	"github.com/classfeedback/feedback-bot/internal/telegram"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PassRunner runs one scheduling pass on demand.
type PassRunner interface {
	RunPass(ctx context.Context) (scheduler.Result, error)
}

// UpdateHandler consumes Telegram updates delivered by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Options configures the routes the server exposes.
type Options struct {
	Store       Pinger
	Passes      PassRunner    // nil or empty AdminToken disables POST /admin/pass
	AdminToken  string
	Updates       UpdateHandler // nil, empty WebhookPath or empty WebhookSecret disables the webhook route
	WebhookPath   string
	WebhookSecret string // must match telegram.SecretHeader on every update
}

type Server struct {
	addr   string
	log    *zap.Logger
	router *echo.Echo
	opts   Options
}

// NewServer builds the HTTP surface: health check, Telegram webhook and the
// manual pass trigger.
func NewServer(addr string, log *zap.Logger, opts Options) *Server {
	s := &Server{
		addr:   addr,
		log:    log,
		router: echo.New(),
		opts:   opts,
	}
	s.router.HideBanner = true
	s.router.HidePort = true
	s.router.Use(middleware.Recover())
	s.router.Use(requestLogger(log))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.healthz)

	if s.opts.Updates != nil && s.opts.WebhookPath != "" && s.opts.WebhookSecret != "" {
		s.router.POST(s.opts.WebhookPath, s.webhook, secretHeader(s.opts.WebhookSecret))
	}

	if s.opts.Passes != nil && s.opts.AdminToken != "" {
		admin := s.router.Group("/admin", bearerAuth(s.opts.AdminToken))
		admin.POST("/pass", s.runPass)
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.addr))
	if err := s.router.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.opts.Store.Ping(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) webhook(c echo.Context) error {
	var upd tgbotapi.Update
	if err := (&echo.DefaultBinder{}).BindBody(c, &upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}
	s.opts.Updates.HandleUpdate(c.Request().Context(), upd)
	return c.NoContent(http.StatusOK)
}

func (s *Server) runPass(c echo.Context) error {
	res, err := s.opts.Passes.RunPass(c.Request().Context())
	switch {
	case errors.Is(err, store.ErrUnavailable):
		s.log.Error("manual pass failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	case err != nil:
		s.log.Error("manual pass failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "pass failed")
	}
	return c.JSON(http.StatusOK, res)
}

// secretHeader rejects updates that do not carry the webhook secret.
func secretHeader(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(telegram.SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(_ error, _ echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		},
	})
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("http request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Debug("http request", fields...)
			return nil
		},
	})
}
