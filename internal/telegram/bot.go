// Package telegram runs the estimator's Telegram bot: batch alerts to the
// admin chat plus a small command set for quick queries.
package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSeconds = 60

// Bot wraps the Telegram bot API. A nil *Bot is a disabled bot; every
// method no-ops on it so callers never need to branch.
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	handler *CommandHandler
}

// New connects to the Telegram API. An empty token disables the bot and
// returns nil, nil.
func New(token string, adminChatID int64, handler *CommandHandler) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.New: %w", err)
	}
	b := &Bot{api: api, chatID: adminChatID, handler: handler}
	if handler != nil {
		handler.bot = b
	}
	return b, nil
}

// Send posts a Markdown message to the admin chat.
func (b *Bot) Send(msg string) error {
	if b == nil {
		return nil
	}
	if err := b.post(b.chatID, msg, nil); err != nil {
		return fmt.Errorf("telegram.Send: %w", err)
	}
	return nil
}

// SendBatchAlert posts a batch-failure alert with re-run/delete buttons.
func (b *Bot) SendBatchAlert(batchName, detail string, batchID int) error {
	if b == nil {
		return nil
	}
	text := fmt.Sprintf("⚠️ *Batch failed!*\n\nBatch: %s\n%s\n\nChoose an action:",
		batchName, detail)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Re-run", fmt.Sprintf("rerun_%d", batchID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("delete_%d", batchID)),
		),
	)
	if err := b.post(b.chatID, text, &keyboard); err != nil {
		return fmt.Errorf("telegram.SendBatchAlert: %w", err)
	}
	return nil
}

// Start long-polls for updates until ctx is cancelled. Run in a goroutine.
func (b *Bot) Start(ctx context.Context) {
	if b == nil {
		return
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(update)
		}
	}
}

// dispatch routes one update. Messages from chats other than the admin
// chat are dropped; callback queries cannot be chat-filtered but only the
// admin chat ever sees the buttons.
func (b *Bot) dispatch(update tgbotapi.Update) {
	if q := update.CallbackQuery; q != nil && q.From != nil {
		if b.handler != nil {
			b.handler.HandleCallback(q.Data, q.ID)
		}
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			log.Printf("telegram: ack callback: %v", err)
		}
		return
	}
	msg := update.Message
	if msg == nil || msg.Chat.ID != b.chatID {
		return
	}
	if b.handler != nil {
		b.handler.Handle(msg)
	}
}

// reply answers a command in its own chat.
func (b *Bot) reply(chatID int64, text string) {
	if err := b.post(chatID, text, nil); err != nil {
		log.Printf("telegram.reply: %v", err)
	}
}

func (b *Bot) post(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	_, err := b.api.Send(msg)
	return err
}
