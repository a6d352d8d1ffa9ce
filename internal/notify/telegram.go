package notify

import (
	"context"
	"fmt"
	"log"
	"proctorportal/backend/internal/models"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram queues notifications and sends them to one admin chat from a
// single worker goroutine.
type Telegram struct {
	Bot    Sender
	ChatID int64
	queue  chan tgbotapi.Chattable
}

func NewTelegram(bot Sender, chatID int64, queueSize int) *Telegram {
	return &Telegram{
		Bot:    bot,
		ChatID: chatID,
		queue:  make(chan tgbotapi.Chattable, queueSize),
	}
}

// NewTelegramBot authorizes token against the Bot API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: Telegram notifier authorized on account %s", bot.Self.UserName)
	return bot, nil
}

// Run sends queued messages until ctx is cancelled. Failed sends are
// logged and not retried.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			if _, err := t.Bot.Send(msg); err != nil {
				log.Printf("ERROR: Failed to send Telegram notification: %v", err)
			}
		}
	}
}

func (t *Telegram) ViolationLogged(_ context.Context, event models.ViolationEvent) {
	t.enqueue(FormatViolation(event))
}

func (t *Telegram) ContactReceived(_ context.Context, msg models.ContactMessage) {
	t.enqueue(FormatContact(msg))
}

func (t *Telegram) enqueue(text string) {
	msg := tgbotapi.NewMessage(t.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	select {
	case t.queue <- msg:
	default:
		log.Printf("WARNING: Telegram notification queue is full, dropping message")
	}
}

// FormatViolation renders a violation as MarkdownV2.
func FormatViolation(event models.ViolationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *Violation logged*\nStudent: `%s`\nType: %s\nAt: %s",
		escapeCode(event.StudentID),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, event.ViolationType),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, event.Timestamp.UTC().Format(time.RFC3339)))
	if event.EvidenceURL != nil && *event.EvidenceURL != "" {
		fmt.Fprintf(&b, "\nEvidence: %s", tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, *event.EvidenceURL))
	}
	return b.String()
}

// FormatContact renders a contact message as MarkdownV2.
func FormatContact(msg models.ContactMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📩 *New contact message*\nFrom: %s \\<%s\\>",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Name),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Email))
	if msg.Phone != nil && *msg.Phone != "" {
		fmt.Fprintf(&b, "\nPhone: %s", tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, *msg.Phone))
	}
	fmt.Fprintf(&b, "\n\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Message))
	return b.String()
}

// escapeCode escapes text placed inside an inline code span.
func escapeCode(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(s)
}
