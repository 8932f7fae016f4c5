package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("add admin: %w", ErrAlreadyAdmin)
	require.Equal(t, ErrAlreadyAdmin.UserMsg, GetUserMessage(wrapped))
	require.Equal(t, ErrInternal.UserMsg, GetUserMessage(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(cause, "try later", true)

	require.ErrorIs(t, err, cause)
	require.True(t, IsRetryable(err))
	require.False(t, IsRetryable(ErrPermissionDenied))
	require.False(t, IsRetryable(cause))
}
