// Package messaging defines the platform-neutral events and the outbound
// gateway shared by the dispatcher and the platform adapters.
package messaging

import "context"

// Gateway delivers outbound text to the chat platform
type Gateway interface {
	// Reply answers an inbound event using its single-use reply token
	Reply(ctx context.Context, replyToken, text string) error

	// Push sends to a user or group by ID, outside any reply window
	Push(ctx context.Context, to, text string) error
}

// Event is an inbound platform event
type Event interface {
	// ID is the platform's delivery ID, empty when unknown
	ID() string
}

// MemberJoined is emitted when one or more users join a group
type MemberJoined struct {
	EventID    string
	GroupID    string
	ReplyToken string
	UserIDs    []string
}

func (e MemberJoined) ID() string { return e.EventID }

// Message is a text message sent by a user, directly or inside a group
type Message struct {
	EventID    string
	UserID     string
	GroupID    string
	ReplyToken string
	Text       string
}

func (e Message) ID() string { return e.EventID }
