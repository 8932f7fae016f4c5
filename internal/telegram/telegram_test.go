package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"gatekeeper-bot/internal/messaging"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func groupChat() *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: -1001, Type: "supergroup"}
}

func TestTranslateNewMembers(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 10,
		Message: &tgbotapi.Message{
			MessageID: 5,
			Chat:      groupChat(),
			From:      &tgbotapi.User{ID: 1},
			NewChatMembers: []tgbotapi.User{
				{ID: 1},
				{ID: 2, IsBot: true},
				{ID: 3},
			},
		},
	}

	events := Translate(update, "gatebot")
	require.Equal(t, []messaging.Event{
		messaging.MemberJoined{EventID: "10", GroupID: "-1001", ReplyToken: "-1001:5", UserIDs: []string{"1", "3"}},
	}, events)
}

func TestTranslateText(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 11,
		Message: &tgbotapi.Message{
			MessageID: 6,
			Chat:      groupChat(),
			From:      &tgbotapi.User{ID: 42},
			Text:      "/add_admin@gatebot 77",
		},
	}

	events := Translate(update, "gatebot")
	require.Equal(t, []messaging.Event{
		messaging.Message{EventID: "11", UserID: "42", GroupID: "-1001", ReplyToken: "-1001:6", Text: "/add_admin 77"},
	}, events)
}

func TestTranslatePrivateChatHasNoGroup(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 12,
		Message: &tgbotapi.Message{
			MessageID: 1,
			Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
			From:      &tgbotapi.User{ID: 42},
			Text:      "/my_id@gatebot",
		},
	}

	events := Translate(update, "gatebot")
	require.Len(t, events, 1)
	msg := events[0].(messaging.Message)
	require.Empty(t, msg.GroupID)
	require.Equal(t, "/my_id", msg.Text)
}

func TestTranslateIgnoresOtherUpdates(t *testing.T) {
	require.Empty(t, Translate(tgbotapi.Update{UpdateID: 1}, "gatebot"))
	require.Empty(t, Translate(tgbotapi.Update{
		UpdateID: 2,
		Message:  &tgbotapi.Message{Chat: groupChat(), NewChatMembers: []tgbotapi.User{{ID: 9, IsBot: true}}},
	}, "gatebot"))
}

func TestReplyTokenRoundTrip(t *testing.T) {
	chatID, msgID, err := ParseReplyToken(ReplyToken(-100123, 77))
	require.NoError(t, err)
	require.Equal(t, int64(-100123), chatID)
	require.Equal(t, 77, msgID)

	for _, bad := range []string{"", "abc", "1:x", "x:1"} {
		_, _, err := ParseReplyToken(bad)
		require.Error(t, err, bad)
	}
}

func TestGatewayReplyAndPush(t *testing.T) {
	sender := &fakeSender{}
	gw := NewGateway(sender)
	ctx := context.Background()

	require.NoError(t, gw.Reply(ctx, "-1001:6", "ok"))
	require.NoError(t, gw.Push(ctx, "42", "welcome"))
	require.Error(t, gw.Push(ctx, "not-a-chat", "x"))
	require.Error(t, gw.Reply(ctx, "garbage", "x"))

	require.Len(t, sender.sent, 2)
	require.Equal(t, int64(-1001), sender.sent[0].ChatID)
	require.Equal(t, 6, sender.sent[0].ReplyToMessageID)
	require.Equal(t, "ok", sender.sent[0].Text)
	require.Equal(t, int64(42), sender.sent[1].ChatID)
	require.Zero(t, sender.sent[1].ReplyToMessageID)
}

func TestGatewaySendFailure(t *testing.T) {
	gw := NewGateway(&fakeSender{err: errors.New("Forbidden: bot can't initiate conversation")})
	require.Error(t, gw.Push(context.Background(), "42", "welcome"))
}
