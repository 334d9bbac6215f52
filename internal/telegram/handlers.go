package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/classfeedback/feedback-bot/internal/domain"
	"github.com/classfeedback/feedback-bot/internal/store"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	r.send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) send(msg tgbotapi.MessageConfig) {
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func senderName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	u := domain.User{Username: from.UserName, FirstName: from.FirstName, LastName: from.LastName}
	return u.DisplayName()
}

func firstName(msg *tgbotapi.Message) string {
	if msg.From != nil && msg.From.FirstName != "" {
		return msg.From.FirstName
	}
	return "студент"
}

// --- Registration ---

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	u, err := r.repo.GetUser(ctx, chatID)
	switch {
	case err == nil && u.Active:
		r.sendText(chatID, fmt.Sprintf(alreadyFmt, firstName(msg)))
		return
	case err == nil:
		if err := r.repo.SetActive(ctx, chatID, true); err != nil {
			r.log.Error("reactivate failed", zap.Int64("chat_id", chatID), zap.Error(err))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendText(chatID, fmt.Sprintf(reactivatedFmt, firstName(msg)))
		return
	case !errors.Is(err, store.ErrNotFound):
		r.log.Error("get user failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}

	r.sendText(chatID, fmt.Sprintf(welcomeFmt, firstName(msg)))
	out := tgbotapi.NewMessage(chatID, chooseGroupText)
	out.ReplyMarkup = groupKeyboard()
	r.send(out)
	r.setPending(chatID, registration{step: stepGroup})
}

func (r *Router) handleGroupChoice(chatID int64, text string) {
	g, err := domain.ParseGroupChoice(text)
	if err != nil {
		out := tgbotapi.NewMessage(chatID, invalidGroupText)
		out.ReplyMarkup = groupKeyboard()
		r.send(out)
		return
	}
	r.setPending(chatID, registration{step: stepStartDate, group: g})
	out := tgbotapi.NewMessage(chatID, askStartDateText)
	out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	r.send(out)
}

func (r *Router) handleStartDate(ctx context.Context, msg *tgbotapi.Message, g domain.Group, text string) {
	chatID := msg.Chat.ID
	start, err := domain.ParseStartDate(text, r.loc)
	if err != nil {
		r.sendText(chatID, invalidDateText)
		return
	}

	u := &domain.User{
		ChatID:    chatID,
		Group:     g,
		StartDate: start,
		Active:    true,
	}
	if from := msg.From; from != nil {
		u.Username, u.FirstName, u.LastName = from.UserName, from.FirstName, from.LastName
	}
	r.clearPending(chatID)
	if err := r.repo.UpsertUser(ctx, u); err != nil {
		r.log.Error("register user failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, registerFailed)
		return
	}
	r.log.Info("user registered",
		zap.Int64("chat_id", chatID),
		zap.String("group", string(g)),
		zap.String("start_date", domain.DateKey(start)),
	)
	r.sendText(chatID, fmt.Sprintf(registeredFmt, g.Title(), domain.FormatDate(start)))
}

func (r *Router) handleCancel(chatID int64) {
	r.clearPending(chatID)
	out := tgbotapi.NewMessage(chatID, cancelText)
	out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	r.send(out)
}

// --- Profile ---

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	u, ok := r.registeredUser(ctx, chatID)
	if !ok {
		return
	}
	prompts := "✅ включены"
	if !u.Active {
		prompts = "⏸ выключены"
	}
	r.sendText(chatID, fmt.Sprintf(statusFmt, u.Group.Title(), domain.FormatDate(u.StartDate), prompts))
}

func (r *Router) handleStop(ctx context.Context, chatID int64) {
	err := r.repo.SetActive(ctx, chatID, false)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.sendText(chatID, notRegisteredText)
	case err != nil:
		r.log.Error("deactivate failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, genericErrorText)
	default:
		r.sendText(chatID, stoppedText)
	}
}

// registeredUser loads the user or answers the chat when it cannot.
func (r *Router) registeredUser(ctx context.Context, chatID int64) (*domain.User, bool) {
	u, err := r.repo.GetUser(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, notRegisteredText)
		return nil, false
	}
	if err != nil {
		r.log.Error("get user failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return nil, false
	}
	return u, true
}

// --- Feedback ---

func (r *Router) handleFeedback(ctx context.Context, msg *tgbotapi.Message, text string) {
	chatID := msg.Chat.ID
	if _, ok := r.registeredUser(ctx, chatID); !ok {
		return
	}

	// the admin still gets the message when saving fails
	if _, err := r.repo.SaveFeedback(ctx, chatID, text); err != nil {
		r.log.Error("save feedback failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	if r.adminChatID != 0 {
		relay := fmt.Sprintf(adminFeedbackFmt, senderName(msg.From), chatID, text)
		if _, err := r.bot.Send(tgbotapi.NewMessage(r.adminChatID, relay)); err != nil {
			r.log.Error("relay feedback to admin failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	r.sendText(chatID, thanksText)
}
