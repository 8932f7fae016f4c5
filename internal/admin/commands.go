package admin

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "gatekeeper-bot/internal/errors"
)

const (
	CmdSetBroadcast = "/pt"
	CmdBroadcast    = "pt"
	CmdAddAdmin     = "/add_admin"
	CmdRemoveAdmin  = "/remove_admin"
	CmdMyID         = "/my_id"
)

// Processor executes text commands against the shared admin state
type Processor struct {
	state  *State
	logger *zap.Logger
}

// NewProcessor creates a command processor
func NewProcessor(state *State, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{state: state, logger: logger}
}

// Handle runs the command in text on behalf of userID. ok is false when text
// is not a command, in which case nothing should be sent back.
func (p *Processor) Handle(userID, text string) (reply string, ok bool) {
	cmd, arg := splitCommand(text)

	switch cmd {
	case CmdSetBroadcast:
		return p.setBroadcast(userID, arg), true

	case CmdBroadcast:
		if arg != "" {
			return "", false
		}
		return p.state.Broadcast(), true

	case CmdAddAdmin:
		return p.addAdmin(userID, arg), true

	case CmdRemoveAdmin:
		return p.removeAdmin(userID, arg), true

	case CmdMyID:
		return userID, true

	default:
		return "", false
	}
}

func (p *Processor) setBroadcast(userID, msg string) string {
	if !p.state.IsAdmin(userID) {
		p.logger.Warn("non-admin tried to set pt message", zap.String("user_id", userID))
		return apperrors.ErrPermissionDenied.UserMsg
	}
	if err := p.state.SetBroadcast(msg); err != nil {
		return apperrors.GetUserMessage(err)
	}

	p.logger.Info("pt message updated", zap.String("user_id", userID))
	return fmt.Sprintf("已更新/pt的設置內容：%s", msg)
}

func (p *Processor) addAdmin(userID, target string) string {
	if !p.state.IsAdmin(userID) {
		p.logger.Warn("non-admin tried to add admin", zap.String("user_id", userID), zap.String("target", target))
		return apperrors.ErrPermissionDenied.UserMsg
	}
	if err := p.state.AddAdmin(target); err != nil {
		return apperrors.GetUserMessage(err)
	}

	p.logger.Info("admin added", zap.String("by", userID), zap.String("target", target))
	return fmt.Sprintf("已新增管理員：%s", target)
}

func (p *Processor) removeAdmin(userID, target string) string {
	if !p.state.IsAdmin(userID) {
		p.logger.Warn("non-admin tried to remove admin", zap.String("user_id", userID), zap.String("target", target))
		return apperrors.ErrPermissionDenied.UserMsg
	}
	if err := p.state.RemoveAdmin(target); err != nil {
		return apperrors.GetUserMessage(err)
	}

	p.logger.Info("admin removed", zap.String("by", userID), zap.String("target", target))
	return fmt.Sprintf("已移除管理員：%s", target)
}

// splitCommand splits "cmd arg..." on the first space; the argument is trimmed
func splitCommand(text string) (cmd, arg string) {
	cmd, arg, _ = strings.Cut(strings.TrimSpace(text), " ")
	return cmd, strings.TrimSpace(arg)
}
