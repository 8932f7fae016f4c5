package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	apperrors "gatekeeper-bot/internal/errors"
	"gatekeeper-bot/internal/messaging"
	"gatekeeper-bot/internal/pending"
	"gatekeeper-bot/internal/verify"
)

// Verifier runs the member challenge
type Verifier interface {
	Join(ctx context.Context, groupID, userID string) pending.Record
	HandleMessage(ctx context.Context, msg messaging.Message) verify.Outcome
}

// Commands answers text commands from members who are not pending
type Commands interface {
	Handle(userID, text string) (reply string, ok bool)
}

// Options configures a Dispatcher
type Options struct {
	// MonitoredGroups limits challenges to these groups; empty means all
	MonitoredGroups []string
	// DedupeSize and DedupeTTL bound the memory of seen delivery IDs.
	// A zero size disables duplicate suppression.
	DedupeSize      int
	DedupeTTL       time.Duration
}

// Dispatcher routes inbound events to the verifier and command processor.
// No fault inside a handler escapes Dispatch.
type Dispatcher struct {
	verifier  Verifier
	commands  Commands
	gateway   messaging.Gateway
	monitored map[string]struct{}
	logger    *zap.Logger

	seenMu sync.Mutex
	seen   *expirable.LRU[string, struct{}]
}

// New creates a dispatcher
func New(verifier Verifier, commands Commands, gateway messaging.Gateway, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	monitored := make(map[string]struct{}, len(opts.MonitoredGroups))
	for _, id := range opts.MonitoredGroups {
		monitored[id] = struct{}{}
	}

	d := &Dispatcher{
		verifier:  verifier,
		commands:  commands,
		gateway:   gateway,
		monitored: monitored,
		logger:    logger,
	}
	if opts.DedupeSize > 0 {
		d.seen = expirable.NewLRU[string, struct{}](opts.DedupeSize, nil, opts.DedupeTTL)
	}
	return d
}

// Dispatch handles one event. Handler errors and panics are logged and
// answered with a generic apology when the event carries a reply token.
func (d *Dispatcher) Dispatch(ctx context.Context, ev messaging.Event) {
	if d.duplicate(ev.ID()) {
		d.logger.Debug("dropping redelivered event", zap.String("event_id", ev.ID()))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.fail(ctx, ev, fmt.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch e := ev.(type) {
	case messaging.MemberJoined:
		err = d.handleJoin(ctx, e)
	case messaging.Message:
		err = d.handleMessage(ctx, e)
	default:
		d.logger.Debug("ignoring unsupported event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
	if err != nil {
		d.fail(ctx, ev, err)
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, e messaging.MemberJoined) error {
	if e.GroupID == "" {
		return apperrors.Wrap(errors.New("member joined event without group"), apperrors.ErrInternal.UserMsg, true)
	}
	if !d.isMonitored(e.GroupID) {
		d.logger.Debug("join in unmonitored group", zap.String("group_id", e.GroupID))
		return nil
	}

	for _, userID := range e.UserIDs {
		if userID == "" {
			continue
		}
		d.verifier.Join(ctx, e.GroupID, userID)
	}
	return nil
}

func (d *Dispatcher) handleMessage(ctx context.Context, e messaging.Message) error {
	if e.UserID == "" {
		d.logger.Debug("message without sender", zap.String("group_id", e.GroupID))
		return nil
	}
	e.Text = strings.TrimSpace(e.Text)

	d.logger.Debug("message received", zap.String("user_id", e.UserID), zap.String("group_id", e.GroupID))

	// Pending members are only ever checked against the code.
	if d.verifier.HandleMessage(ctx, e) != verify.NotPending {
		return nil
	}

	reply, ok := d.commands.Handle(e.UserID, e.Text)
	if !ok {
		return nil
	}
	if err := d.gateway.Reply(ctx, e.ReplyToken, reply); err != nil {
		d.logger.Error("failed to send reply", zap.Error(err), zap.String("user_id", e.UserID))
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, ev messaging.Event, err error) {
	d.logger.Error("event handler failed",
		zap.Error(err),
		zap.String("event_id", ev.ID()),
		zap.String("type", fmt.Sprintf("%T", ev)),
		zap.Bool("retryable", apperrors.IsRetryable(err)),
	)

	token := replyToken(ev)
	if token == "" {
		return
	}
	if err := d.gateway.Reply(ctx, token, apperrors.GetUserMessage(err)); err != nil {
		d.logger.Error("failed to send apology", zap.Error(err))
	}
}

func (d *Dispatcher) isMonitored(groupID string) bool {
	if len(d.monitored) == 0 {
		return true
	}
	_, ok := d.monitored[groupID]
	return ok
}

func (d *Dispatcher) duplicate(id string) bool {
	if d.seen == nil || id == "" {
		return false
	}

	d.seenMu.Lock()
	defer d.seenMu.Unlock()

	if d.seen.Contains(id) {
		return true
	}
	d.seen.Add(id, struct{}{})
	return false
}

func replyToken(ev messaging.Event) string {
	switch e := ev.(type) {
	case messaging.MemberJoined:
		return e.ReplyToken
	case messaging.Message:
		return e.ReplyToken
	}
	return ""
}
