package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Telegram Types ---

type tgUpdate struct {
	UpdateID      int              `json:"update_id"`
	Message       *tgMessage       `json:"message"`
	CallbackQuery *tgCallbackQuery `json:"callback_query"`
}

type tgMessage struct {
	MessageID int    `json:"message_id"`
	Chat      tgChat `json:"chat"`
	From      tgUser `json:"from"`
	Text      string `json:"text"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

type tgCallbackQuery struct {
	ID      string     `json:"id"`
	From    tgUser     `json:"from"`
	Message *tgMessage `json:"message"`
	Data    string     `json:"data"`
}

type tgInlineKeyboard struct {
	InlineKeyboard [][]tgInlineButton `json:"inline_keyboard"`
}

type tgInlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// --- Bot ---

// TelegramBot long-polls the Bot API, routes free text to the dispatcher,
// and decodes reminder-button callbacks at the boundary. The chat id doubles
// as the opaque owner id.
type TelegramBot struct {
	token      string
	client     *http.Client
	dispatcher *Dispatcher
	snoozes    []int
	offset     int
}

func newTelegramBot(token string, dispatcher *Dispatcher, snoozes []int) *TelegramBot {
	return &TelegramBot{
		token:      token,
		client:     &http.Client{Timeout: 40 * time.Second},
		dispatcher: dispatcher,
		snoozes:    snoozes,
	}
}

// Start runs the long-poll loop until ctx is cancelled.
func (b *TelegramBot) Start(ctx context.Context) {
	logInfo("telegram bot polling started")
	for {
		select {
		case <-ctx.Done():
			logInfo("telegram bot stopped")
			return
		default:
		}
		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logWarn("telegram getUpdates failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}
		for _, u := range updates {
			b.offset = u.UpdateID + 1
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *TelegramBot) handleUpdate(ctx context.Context, u tgUpdate) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.Text != "":
		b.handleMessage(ctx, u.Message)
	}
}

func (b *TelegramBot) handleMessage(ctx context.Context, msg *tgMessage) {
	owner := strconv.FormatInt(msg.Chat.ID, 10)
	text := msg.Text

	var reply string
	switch text {
	case "/start":
		reply = fmt.Sprintf("🏥 Reminder Assistant\n\nWelcome, %s! Just talk naturally:\n"+
			"• \"Remind me to take pills at 8am\"\n"+
			"• \"Set exercise reminder in 30 minutes\"\n"+
			"• \"Show my tasks\"\n\nType /help for more.", msg.From.FirstName)
	case "/help":
		reply = helpText
	case "/status", "/pending":
		reply = b.dispatcher.handleStatus(owner)
	default:
		reply = b.dispatcher.HandleMessage(ctx, owner, msg.From.FirstName, text)
	}
	if err := b.sendMessage(ctx, msg.Chat.ID, reply, nil); err != nil {
		logWarn("telegram send failed", "chatId", msg.Chat.ID, "error", err)
	}
}

func (b *TelegramBot) handleCallback(ctx context.Context, q *tgCallbackQuery) {
	owner := strconv.FormatInt(q.From.ID, 10)

	act, ok := decodeCallback(q.Data)
	var reply string
	if !ok {
		logWarn("telegram unknown callback data", "data", q.Data)
		reply = "❌ Unknown action."
	} else {
		reply = b.dispatcher.HandleCallback(owner, act)
	}

	b.answerCallback(ctx, q.ID)
	if q.Message != nil {
		if err := b.editMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID, reply); err != nil {
			logWarn("telegram edit message failed", "error", err)
		}
	}
}

const helpText = `🆘 Commands:
/start - start the bot
/help - this message
/status - show your scheduled reminders
/pending - same as /status

💬 Talk naturally:
• "Remind me to take medication at 9am"
• "Remind me to stretch at 13:05"
• "Edit time of take pills to 3pm"
• "Edit name of take pills to take vitamins"
• "Cancel take pills"

⏰ Time formats: "in 30 minutes", "8:00 am", "13:05", "8pm"

🔔 When a reminder fires, use the buttons to complete, dismiss, or snooze it.`

// --- Delivery ---

// Deliver implements Deliverer: the reminder content plus the action
// keyboard goes to the owner's chat.
func (b *TelegramBot) Deliver(ctx context.Context, owner, taskID, content string) error {
	chatID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad owner id %q: %w", owner, err)
	}
	return b.sendMessage(ctx, chatID, content, b.reminderKeyboard(taskID))
}

// reminderKeyboard builds the [Complete, Dismiss] + snooze-preset rows.
func (b *TelegramBot) reminderKeyboard(taskID string) *tgInlineKeyboard {
	top := []tgInlineButton{
		{Text: "✅ Complete", CallbackData: encodeCallback(CallbackAction{Kind: CallbackComplete, TaskID: taskID})},
		{Text: "❌ Dismiss", CallbackData: encodeCallback(CallbackAction{Kind: CallbackDismiss, TaskID: taskID})},
	}
	var snoozeRow []tgInlineButton
	for _, m := range b.snoozes {
		snoozeRow = append(snoozeRow, tgInlineButton{
			Text:         fmt.Sprintf("⏰ Snooze %dmin", m),
			CallbackData: encodeCallback(CallbackAction{Kind: CallbackSnooze, TaskID: taskID, Minutes: m}),
		})
	}
	return &tgInlineKeyboard{InlineKeyboard: [][]tgInlineButton{top, snoozeRow}}
}

// --- Bot API calls ---

func (b *TelegramBot) apiURL(method string) string {
	return "https://api.telegram.org/bot" + b.token + "/" + method
}

func (b *TelegramBot) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	q := url.Values{}
	q.Set("timeout", "30")
	q.Set("offset", strconv.Itoa(b.offset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}
	return out.Result, nil
}

func (b *TelegramBot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *tgInlineKeyboard) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	return b.post(ctx, "sendMessage", payload)
}

func (b *TelegramBot) editMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	return b.post(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
}

func (b *TelegramBot) answerCallback(ctx context.Context, callbackID string) {
	if err := b.post(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}); err != nil {
		logWarn("telegram answerCallbackQuery failed", "error", err)
	}
}

func (b *TelegramBot) post(ctx context.Context, method string, payload map[string]any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram %s: HTTP %d: %s", method, resp.StatusCode, string(raw))
	}
	return nil
}
