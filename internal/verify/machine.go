package verify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gatekeeper-bot/internal/audit"
	"gatekeeper-bot/internal/messaging"
	"gatekeeper-bot/internal/pending"
	"gatekeeper-bot/internal/timer"
)

const (
	MsgVerified = "驗證成功！歡迎加入群組 🎉"
	MsgRetry    = "暗號錯誤，請重新輸入正確的暗號。"
)

// Outcome is the result of routing a message through the state machine
type Outcome int

const (
	// NotPending means the sender has no pending record
	NotPending Outcome = iota
	// Verified means the sender answered the challenge
	Verified
	// Rejected means the sender is pending and sent the wrong code
	Rejected
	// Lapsed means the sender was pending when the message arrived but the
	// countdown ended before the code could be accepted
	Lapsed
)

func (o Outcome) String() string {
	switch o {
	case NotPending:
		return "not_pending"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	case Lapsed:
		return "lapsed"
	default:
		return "unknown"
	}
}

// Records holds pending challenges
type Records interface {
	Put(userID, groupID string, arm pending.ArmFunc) pending.Record
	Get(userID string) (pending.Record, bool)
	MarkVerified(userID string) (pending.Record, bool)
	RemoveIfUnverified(userID string, recordID uint64) (pending.Record, bool)
}

// Scheduler arms one-shot expiries
type Scheduler interface {
	Schedule(delay time.Duration, action func()) timer.Handle
}

// Config controls the challenge
type Config struct {
	SecretCode      string
	// Timeout is how long a new member has to answer
	Timeout         time.Duration
	// DeliveryTimeout bounds the expiry notice, which runs outside any request
	DeliveryTimeout time.Duration
}

// Machine drives members from Pending to Verified or Expired
type Machine struct {
	store   Records
	timers  Scheduler
	gateway messaging.Gateway
	sink    audit.Sink
	cfg     Config
	logger  *zap.Logger
}

// NewMachine creates a state machine over the given store
func NewMachine(
	store Records,
	timers Scheduler,
	gateway messaging.Gateway,
	sink audit.Sink,
	cfg Config,
	logger *zap.Logger,
) *Machine {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	return &Machine{
		store:   store,
		timers:  timers,
		gateway: gateway,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
	}
}

// ChallengeText is the welcome message carrying the secret code
func ChallengeText(code string, timeout time.Duration) string {
	return fmt.Sprintf("歡迎加入！請在 %d 秒內輸入暗號，否則將被移出群組。\n暗號格式：%s", int(timeout.Seconds()), code)
}

// ExpiredText is the advisory pushed to the group when a member times out
func ExpiredText(userID string) string {
	return fmt.Sprintf("用戶 <@%s> 未通過驗證，建議移出群組。", userID)
}

// Join starts a challenge for a member who joined groupID. A failed welcome
// message does not stop the countdown.
func (m *Machine) Join(ctx context.Context, groupID, userID string) pending.Record {
	rec := m.store.Put(userID, groupID, func(rec pending.Record) timer.Handle {
		return m.timers.Schedule(m.cfg.Timeout, func() {
			m.expire(rec.UserID, rec.ID)
		})
	})

	m.logger.Info("member pending verification",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Uint64("record_id", rec.ID),
	)
	m.record(ctx, audit.KindJoined, rec)

	if err := m.gateway.Push(ctx, userID, ChallengeText(m.cfg.SecretCode, m.cfg.Timeout)); err != nil {
		m.logger.Error("failed to send challenge", zap.Error(err), zap.String("user_id", userID))
	}
	return rec
}

// HandleMessage checks a message against the sender's pending challenge
func (m *Machine) HandleMessage(ctx context.Context, msg messaging.Message) Outcome {
	if _, ok := m.store.Get(msg.UserID); !ok {
		return NotPending
	}

	if msg.Text != m.cfg.SecretCode {
		m.logger.Debug("wrong secret code", zap.String("user_id", msg.UserID))
		m.reply(ctx, msg.ReplyToken, MsgRetry)
		return Rejected
	}

	rec, ok := m.store.MarkVerified(msg.UserID)
	if !ok {
		// Expired between the lookup and now; the advisory already went out.
		m.logger.Debug("code arrived after expiry", zap.String("user_id", msg.UserID))
		return Lapsed
	}

	m.logger.Info("member verified", zap.String("user_id", rec.UserID), zap.String("group_id", rec.GroupID))
	m.record(ctx, audit.KindVerified, rec)
	m.reply(ctx, msg.ReplyToken, MsgVerified)
	return Verified
}

func (m *Machine) expire(userID string, recordID uint64) {
	rec, ok := m.store.RemoveIfUnverified(userID, recordID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DeliveryTimeout)
	defer cancel()

	m.logger.Info("member verification expired", zap.String("user_id", rec.UserID), zap.String("group_id", rec.GroupID))
	m.record(ctx, audit.KindExpired, rec)

	if rec.GroupID == "" {
		m.logger.Warn("expired member has no group to notify", zap.String("user_id", rec.UserID))
		return
	}
	if err := m.gateway.Push(ctx, rec.GroupID, ExpiredText(rec.UserID)); err != nil {
		m.logger.Error("failed to send expiry notice", zap.Error(err),
			zap.String("user_id", rec.UserID),
			zap.String("group_id", rec.GroupID),
		)
	}
}

func (m *Machine) reply(ctx context.Context, token, text string) {
	if err := m.gateway.Reply(ctx, token, text); err != nil {
		m.logger.Error("failed to send reply", zap.Error(err))
	}
}

func (m *Machine) record(ctx context.Context, kind audit.Kind, rec pending.Record) {
	if err := m.sink.Record(ctx, audit.NewEvent(kind, rec.UserID, rec.GroupID)); err != nil {
		m.logger.Warn("failed to record audit event", zap.Error(err), zap.String("kind", string(kind)))
	}
}
