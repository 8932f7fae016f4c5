package errors

import (
	"errors"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrAuthentication = &UserError{
		Err:       errors.New("invalid webhook signature"),
		UserMsg:   "Invalid signature.",
		Retryable: false,
	}

	ErrInternal = &UserError{
		Err:       errors.New("internal handler fault"),
		UserMsg:   "系統發生錯誤，請稍後再試。",
		Retryable: true,
	}

	ErrPermissionDenied = &UserError{
		Err:       errors.New("permission denied"),
		UserMsg:   "您沒有權限執行此指令！",
		Retryable: false,
	}

	ErrEmptyBroadcast = &UserError{
		Err:       errors.New("empty broadcast message"),
		UserMsg:   "請提供更新的訊息內容！",
		Retryable: false,
	}

	ErrEmptyAdminID = &UserError{
		Err:       errors.New("empty admin id"),
		UserMsg:   "請提供要操作的用戶 ID！",
		Retryable: false,
	}

	ErrAlreadyAdmin = &UserError{
		Err:       errors.New("user is already an admin"),
		UserMsg:   "該用戶已經是管理員。",
		Retryable: false,
	}

	ErrNotAdmin = &UserError{
		Err:       errors.New("user is not an admin"),
		UserMsg:   "該用戶不是管理員。",
		Retryable: false,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return ErrInternal.UserMsg
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
