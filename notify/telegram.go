package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/warp/booking-engine/booking"
)

// messageSender is satisfied by *bot.Bot.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram posts a short text per event to an operations chat.
type Telegram struct {
	sender messageSender
	chatID int64
}

// NewTelegram creates a bot client for token. The token is not verified
// until the first message is sent.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{sender: b, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, e booking.Event) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   FormatEvent(e),
	})
	if err != nil {
		return fmt.Errorf("telegram %s: %w", e.Type, err)
	}
	return nil
}

// FormatEvent renders an event as plain text.
func FormatEvent(e booking.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", eventIcon(e.Type), e.Type)
	fmt.Fprintf(&sb, "booking: %s (%s)\n", e.BookingID, e.Status)
	fmt.Fprintf(&sb, "learner: %s, tutor: %s\n", e.LearnerID, e.TutorID)
	if e.Amount != "" {
		fmt.Fprintf(&sb, "amount: %s\n", e.Amount)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, "reason: %s\n", e.Reason)
	}
	fmt.Fprintf(&sb, "by %s at %s", e.Actor, e.At.UTC().Format("2006-01-02 15:04"))
	return sb.String()
}

func eventIcon(t booking.EventType) string {
	switch t {
	case booking.EventRequested:
		return "📝"
	case booking.EventApproved:
		return "✅"
	case booking.EventRejected, booking.EventCancelled:
		return "❌"
	case booking.EventExpired:
		return "⌛"
	case booking.EventCompleted:
		return "🎓"
	case booking.EventReported:
		return "⚠️"
	default:
		return "•"
	}
}
