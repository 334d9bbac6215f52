package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

// BotAPI is the part of *tgbotapi.BotAPI the router needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Repo is the storage surface used by the conversation handlers.
type Repo interface {
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	SetActive(ctx context.Context, chatID int64, active bool) error
	SaveFeedback(ctx context.Context, chatID int64, message string) (string, error)
}

// Registration steps.
const (
	stepGroup     = "await_group"
	stepStartDate = "await_start_date"
)

type registration struct {
	step  string
	group domain.Group
}

// Router wires Telegram updates to handlers and holds the in-memory
// registration state.
type Router struct {
	bot         BotAPI
	log         *zap.Logger
	repo        Repo
	loc         *time.Location
	adminChatID int64
	state       map[int64]registration
	mu          sync.RWMutex
}

// NewRouter creates a new Telegram router. Feedback is relayed to
// adminChatID unless it is zero.
func NewRouter(bot BotAPI, log *zap.Logger, repo Repo, loc *time.Location, adminChatID int64) *Router {
	if loc == nil {
		loc = time.UTC
	}
	return &Router{
		bot:         bot,
		log:         log,
		repo:        repo,
		loc:         loc,
		adminChatID: adminChatID,
		state:       make(map[int64]registration),
	}
}

func (r *Router) setPending(chatID int64, s registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

func (r *Router) getPending(chatID int64) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.state[chatID]
	return s, ok
}

func (r *Router) clearPending(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.state[chatID]
	delete(r.state, chatID)
	return ok
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		// no inline keyboards are sent; just stop the client spinner
		_, _ = r.bot.Request(tgbotapi.NewCallback(upd.CallbackQuery.ID, ""))
		return
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			r.handleStart(ctx, msg)
		case "cancel":
			r.handleCancel(chatID)
		case "status":
			r.handleStatus(ctx, chatID)
		case "stop":
			r.handleStop(ctx, chatID)
		default:
			r.sendText(chatID, helpText)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if s, ok := r.getPending(chatID); ok {
		switch s.step {
		case stepGroup:
			r.handleGroupChoice(chatID, text)
		case stepStartDate:
			r.handleStartDate(ctx, msg, s.group, text)
		}
		return
	}

	if text == "" {
		r.sendText(chatID, textOnlyText)
		return
	}
	r.handleFeedback(ctx, msg, text)
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (r *Router) RegisterCommands() error {
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(botCommands()...))
	return err
}
