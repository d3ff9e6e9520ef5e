// webhook.go — приём входящих обновлений транспорта.
// POST /webhook принимает обновление в формате Telegram Bot API,
// нормализует его в событие шлюза и отвечает методом sendMessage
// в теле ответа (webhook reply).
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/itsmorninghao/TELEPAL/internal/api/errors"
	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/gate"
)

// Gate — шлюз входящих событий.
type Gate interface {
	Handle(ctx context.Context, upd gate.Update) string
}

// update — входящее обновление (подмножество Telegram Bot API).
type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID      int64    `json:"message_id"`
	From           *user    `json:"from"`
	Chat           *chat    `json:"chat"`
	Text           string   `json:"text"`
	ReplyToMessage *message `json:"reply_to_message"`
}

type user struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// sendMessageReply — ответ транспорту методом в теле webhook-ответа.
type sendMessageReply struct {
	Method string `json:"method"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// WebhookHandler — обработчик входящих обновлений.
type WebhookHandler struct {
	gate        Gate
	botUsername string
	logger      *slog.Logger
}

// NewWebhookHandler создаёт обработчик webhook.
// botUsername — имя бота без "@", для распознавания ответов на его сообщения.
func NewWebhookHandler(g Gate, botUsername string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		gate:        g,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		logger:      logger.With(slog.String("component", "webhook")),
	}
}

// Webhook обрабатывает POST /webhook.
// Обновления без текстового сообщения подтверждаются без обработки.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		apierrors.ValidationError(w, "некорректное тело обновления")
		return
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		writeOK(w)
		return
	}

	chatType, ok := parseChatType(msg.Chat.Type)
	if !ok {
		// Каналы и прочие типы чатов не обслуживаются.
		writeOK(w)
		return
	}

	reply := h.gate.Handle(r.Context(), gate.Update{
		UserID:     msg.From.ID,
		ChatID:     msg.Chat.ID,
		ChatType:   chatType,
		ChatTitle:  msg.Chat.Title,
		Text:       msg.Text,
		ReplyToBot: h.isReplyToBot(msg),
	})

	// Обработка отменена — ответ уже никому не нужен.
	if r.Context().Err() != nil {
		return
	}
	if reply == "" {
		writeOK(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(sendMessageReply{
		Method: "sendMessage",
		ChatID: msg.Chat.ID,
		Text:   reply,
	})
}

// isReplyToBot: сообщение является ответом на сообщение этого бота.
func (h *WebhookHandler) isReplyToBot(msg *message) bool {
	reply := msg.ReplyToMessage
	if reply == nil || reply.From == nil || !reply.From.IsBot {
		return false
	}
	return strings.EqualFold(reply.From.Username, h.botUsername)
}

// parseChatType сводит типы чатов транспорта к доменным:
// supergroup обслуживается как group.
func parseChatType(s string) (model.ChatType, bool) {
	switch s {
	case "private":
		return model.ChatPrivate, true
	case "group", "supergroup":
		return model.ChatGroup, true
	}
	return "", false
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
