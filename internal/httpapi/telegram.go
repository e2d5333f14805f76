package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms/ticket-queue/internal/notify"
	"qms/ticket-queue/internal/store"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	replyTimeout         = 10 * time.Second
)

type TelegramOptions struct {
	WebhookSecret string
	AdminChatID   string
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Text string       `json:"text"`
	Chat telegramChat `json:"chat"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

// handleTelegramWebhook answers bot updates. Every accepted update gets a
// 200 so the bot API does not redeliver it; failures are logged.
func (h *Handler) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if h.telegram.WebhookSecret == "" {
		writeError(w, requestID(r), http.StatusNotFound, "not_found", "bot webhook is not configured")
		return
	}
	got := r.Header.Get(telegramSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.telegram.WebhookSecret)) != 1 {
		writeError(w, requestID(r), http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if update.Message != nil && update.Message.Chat.ID != 0 {
		h.handleBotCommand(r.Context(), strconv.FormatInt(update.Message.Chat.ID, 10), update.Message.Text)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleBotCommand(ctx context.Context, chatID, text string) {
	command, arg := parseCommand(text)
	switch command {
	case "/start":
		h.handleStart(ctx, chatID, arg)
	case "/nullify_counter":
		if !h.isAdminChat(chatID) {
			h.reply(ctx, chatID, notify.CommandDeniedMessage)
			return
		}
		removed, err := h.queue.Purge(ctx)
		if err != nil {
			log.Printf("bot purge error: %v", err)
			h.reply(ctx, chatID, notify.CounterResetFailedMessage(err))
			return
		}
		h.reply(ctx, chatID, notify.CounterResetMessage(removed))
	case "/get_current_counter":
		if !h.isAdminChat(chatID) {
			h.reply(ctx, chatID, notify.CommandDeniedMessage)
			return
		}
		counter, err := h.queue.CurrentCounter(ctx)
		if err != nil {
			log.Printf("bot counter error: %v", err)
			return
		}
		h.reply(ctx, chatID, notify.CurrentCounterMessage(counter))
	}
}

// handleStart links the chat to the ticket whose claim token follows /start.
func (h *Handler) handleStart(ctx context.Context, chatID, token string) {
	if token == "" {
		h.reply(ctx, chatID, notify.GreetingMessage)
		return
	}
	ticket, err := h.queue.LinkSubscriber(ctx, token, chatID)
	if errors.Is(err, store.ErrTicketNotFound) {
		h.reply(ctx, chatID, notify.UnknownTicketMessage)
		return
	}
	if err != nil {
		log.Printf("bot link error chat=%s: %v", chatID, err)
		return
	}
	h.reply(ctx, chatID, notify.LinkedMessage(ticket))
	if h.telegram.AdminChatID != "" {
		h.reply(ctx, h.telegram.AdminChatID, notify.LinkedReport(ticket, chatID))
	}
}

func (h *Handler) isAdminChat(chatID string) bool {
	return h.telegram.AdminChatID != "" && chatID == h.telegram.AdminChatID
}

func (h *Handler) reply(ctx context.Context, chatID, message string) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := h.notifier.Send(ctx, message, chatID); err != nil {
		log.Printf("bot reply error chat=%s: %v", chatID, err)
	}
}

// parseCommand splits "/cmd@bot arg" into "/cmd" and "arg".
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", ""
	}
	command := fields[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(command), arg
}
