package admin

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "gatekeeper-bot/internal/errors"
)

const defaultPT = "這是預設的 pt 訊息"

func newProcessor(admins ...string) (*Processor, *State) {
	state := NewState(admins, defaultPT)
	return NewProcessor(state, nil), state
}

func TestNewStateSkipsBlankIDs(t *testing.T) {
	state := NewState([]string{" A1 ", "", "  ", "A2"}, defaultPT)
	require.Equal(t, []string{"A1", "A2"}, state.Admins())
}

func TestBroadcastReadableByAnyone(t *testing.T) {
	p, _ := newProcessor("A1")

	reply, ok := p.Handle("U9", "pt")
	require.True(t, ok)
	require.Equal(t, defaultPT, reply)
}

func TestAdminSetsBroadcast(t *testing.T) {
	p, state := newProcessor("A1")

	reply, ok := p.Handle("A1", "/pt   今晚八點開團  ")
	require.True(t, ok)
	require.Equal(t, "已更新/pt的設置內容：今晚八點開團", reply)
	require.Equal(t, "今晚八點開團", state.Broadcast())

	// visible to every other user immediately
	reply, _ = p.Handle("U2", "pt")
	require.Equal(t, "今晚八點開團", reply)
}

func TestAdminEmptyBroadcastPrompts(t *testing.T) {
	p, state := newProcessor("A1")

	for _, text := range []string{"/pt", "/pt    "} {
		reply, ok := p.Handle("A1", text)
		require.True(t, ok)
		require.Equal(t, apperrors.ErrEmptyBroadcast.UserMsg, reply)
	}
	require.Equal(t, defaultPT, state.Broadcast())
}

func TestNonAdminIsDenied(t *testing.T) {
	p, state := newProcessor("A1")

	for _, text := range []string{"/pt x", "/add_admin x", "/remove_admin A1"} {
		reply, ok := p.Handle("U1", text)
		require.True(t, ok, text)
		require.Equal(t, apperrors.ErrPermissionDenied.UserMsg, reply, text)
	}

	require.Equal(t, defaultPT, state.Broadcast())
	require.Equal(t, []string{"A1"}, state.Admins())
}

func TestAddThenRemoveRestoresMembership(t *testing.T) {
	p, state := newProcessor("A1")

	reply, _ := p.Handle("A1", "/add_admin U5")
	require.Equal(t, "已新增管理員：U5", reply)
	require.True(t, state.IsAdmin("U5"))

	reply, _ = p.Handle("A1", "/add_admin U5")
	require.Equal(t, apperrors.ErrAlreadyAdmin.UserMsg, reply)

	reply, _ = p.Handle("A1", "/remove_admin U5")
	require.Equal(t, "已移除管理員：U5", reply)
	require.False(t, state.IsAdmin("U5"))
	require.Equal(t, []string{"A1"}, state.Admins())

	reply, _ = p.Handle("A1", "/remove_admin U5")
	require.Equal(t, apperrors.ErrNotAdmin.UserMsg, reply)
}

func TestAdminCommandsRequireArgument(t *testing.T) {
	p, _ := newProcessor("A1")

	reply, _ := p.Handle("A1", "/add_admin")
	require.Equal(t, apperrors.ErrEmptyAdminID.UserMsg, reply)

	reply, _ = p.Handle("A1", "/remove_admin   ")
	require.Equal(t, apperrors.ErrEmptyAdminID.UserMsg, reply)
}

func TestMyID(t *testing.T) {
	p, _ := newProcessor()

	reply, ok := p.Handle("Uabc", "/my_id")
	require.True(t, ok)
	require.Equal(t, "Uabc", reply)
}

func TestUnknownTextIsIgnored(t *testing.T) {
	p, _ := newProcessor("A1")

	for _, text := range []string{"hello", "/ptx", "pt please", "/unknown", ""} {
		reply, ok := p.Handle("A1", text)
		require.False(t, ok, text)
		require.Empty(t, reply, text)
	}
}

func TestConcurrentAdminMutations(t *testing.T) {
	_, state := newProcessor("A1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("U%d", i)
			require.NoError(t, state.AddAdmin(id))
			require.NoError(t, state.SetBroadcast(id))
			require.NoError(t, state.RemoveAdmin(id))
		}(i)
	}
	wg.Wait()

	require.Equal(t, []string{"A1"}, state.Admins())
}
