package line

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Gateway sends text through the LINE Messaging API
type Gateway struct {
	api *messaging_api.MessagingApiAPI
}

// NewGateway creates a gateway. endpoint overrides the API base URL and may
// be empty.
func NewGateway(channelAccessToken, endpoint string) (*Gateway, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(endpoint))
	}

	api, err := messaging_api.NewMessagingApiAPI(channelAccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging api: %w", err)
	}
	return &Gateway{api: api}, nil
}

// Reply answers an event with its reply token
func (g *Gateway) Reply(ctx context.Context, replyToken, text string) error {
	_, err := g.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// Push sends a message to a user, group or room ID
func (g *Gateway) Push(ctx context.Context, to, text string) error {
	_, err := g.api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	}, "")
	if err != nil {
		return fmt.Errorf("push message to %s: %w", to, err)
	}
	return nil
}
