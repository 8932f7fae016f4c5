package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gatekeeper-bot/internal/messaging"
)

// Translate converts an update into platform-neutral events. Bots joining a
// group are not challenged. botName strips "/cmd@botName" addressing so
// commands match the same way they do on other platforms.
func Translate(update tgbotapi.Update, botName string) []messaging.Event {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}

	eventID := strconv.Itoa(update.UpdateID)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	token := ReplyToken(msg.Chat.ID, msg.MessageID)

	var groupID string
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		groupID = chatID
	}

	var events []messaging.Event

	if len(msg.NewChatMembers) > 0 && groupID != "" {
		joined := messaging.MemberJoined{
			EventID:    eventID,
			GroupID:    groupID,
			ReplyToken: token,
		}
		for _, u := range msg.NewChatMembers {
			if u.IsBot {
				continue
			}
			joined.UserIDs = append(joined.UserIDs, strconv.FormatInt(u.ID, 10))
		}
		if len(joined.UserIDs) > 0 {
			events = append(events, joined)
		}
	}

	if msg.Text != "" && msg.From != nil {
		events = append(events, messaging.Message{
			EventID:    eventID,
			UserID:     strconv.FormatInt(msg.From.ID, 10),
			GroupID:    groupID,
			ReplyToken: token,
			Text:       stripMention(msg.Text, botName),
		})
	}

	return events
}

func stripMention(text, botName string) string {
	if botName == "" || !strings.HasPrefix(text, "/") {
		return text
	}
	cmd, rest, found := strings.Cut(text, " ")
	cmd = strings.TrimSuffix(cmd, "@"+botName)
	if !found {
		return cmd
	}
	return cmd + " " + rest
}
