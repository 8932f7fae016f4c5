package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the Bot API the gateway needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Gateway delivers replies and pushes through the Bot API. Telegram has no
// reply tokens, so a token is the chat and message being answered.
type Gateway struct {
	bot Sender
}

// NewGateway creates a gateway over the Bot API
func NewGateway(bot Sender) *Gateway {
	return &Gateway{bot: bot}
}

// ReplyToken encodes the target of a reply
func ReplyToken(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// ParseReplyToken decodes a token made by ReplyToken
func ParseReplyToken(token string) (chatID int64, messageID int, err error) {
	chat, msg, ok := strings.Cut(token, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed reply token %q", token)
	}
	if chatID, err = strconv.ParseInt(chat, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("reply token chat id: %w", err)
	}
	if messageID, err = strconv.Atoi(msg); err != nil {
		return 0, 0, fmt.Errorf("reply token message id: %w", err)
	}
	return chatID, messageID, nil
}

// Reply answers the message identified by replyToken
func (g *Gateway) Reply(_ context.Context, replyToken, text string) error {
	chatID, messageID, err := ParseReplyToken(replyToken)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	if _, err := g.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Push sends text to a numeric chat or user ID
func (g *Gateway) Push(_ context.Context, to, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("push target %q: %w", to, err)
	}

	if _, err := g.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}
