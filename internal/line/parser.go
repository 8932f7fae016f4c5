// Package line adapts the LINE Messaging API to the bot's platform-neutral
// events and gateway.
package line

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"go.uber.org/zap"

	apperrors "gatekeeper-bot/internal/errors"
	"gatekeeper-bot/internal/messaging"
)

// Parser authenticates and decodes webhook deliveries
type Parser struct {
	channelSecret string
	logger        *zap.Logger
}

// NewParser creates a parser validating signatures with channelSecret
func NewParser(channelSecret string, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{channelSecret: channelSecret, logger: logger}
}

// Parse validates the X-Line-Signature header and returns the events the
// bot acts on. A bad signature yields apperrors.ErrAuthentication.
func (p *Parser) Parse(r *http.Request) ([]messaging.Event, error) {
	cb, err := webhook.ParseRequest(p.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return nil, fmt.Errorf("parse webhook: %w", apperrors.ErrAuthentication)
		}
		return nil, fmt.Errorf("parse webhook: %w", err)
	}

	events := make([]messaging.Event, 0, len(cb.Events))
	for _, raw := range cb.Events {
		ev, ok := convert(raw)
		if !ok {
			p.logger.Debug("ignoring webhook event", zap.String("type", fmt.Sprintf("%T", raw)))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func convert(raw webhook.EventInterface) (messaging.Event, bool) {
	switch e := raw.(type) {
	case webhook.MemberJoinedEvent:
		groupID, _ := source(e.Source)
		joined := messaging.MemberJoined{
			EventID:    e.WebhookEventId,
			GroupID:    groupID,
			ReplyToken: e.ReplyToken,
		}
		if e.Joined != nil {
			for _, m := range e.Joined.Members {
				joined.UserIDs = append(joined.UserIDs, m.UserId)
			}
		}
		return joined, true

	case webhook.MessageEvent:
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			return nil, false
		}
		groupID, userID := source(e.Source)
		return messaging.Message{
			EventID:    e.WebhookEventId,
			UserID:     userID,
			GroupID:    groupID,
			ReplyToken: e.ReplyToken,
			Text:       text.Text,
		}, true
	}
	return nil, false
}

// source returns the chat (group or room) and sender of an event
func source(s webhook.SourceInterface) (chatID, userID string) {
	switch src := s.(type) {
	case webhook.GroupSource:
		return src.GroupId, src.UserId
	case webhook.RoomSource:
		return src.RoomId, src.UserId
	case webhook.UserSource:
		return "", src.UserId
	}
	return "", ""
}
