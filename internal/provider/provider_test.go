package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_CodeOfAndIs(t *testing.T) {
	err := fmt.Errorf("sign in: %w", NewError(CodeWrongPassword, "bad password"))

	assert.Equal(t, CodeWrongPassword, CodeOf(err))
	assert.True(t, errors.Is(err, NewError(CodeWrongPassword, "")))
	assert.False(t, errors.Is(err, NewError(CodeUserNotFound, "")))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "auth/internal-error", NewError(CodeInternalError, "").Error())
	assert.Equal(t, "auth/internal-error: boom", NewError(CodeInternalError, "boom").Error())

	cause := errors.New("dial tcp: refused")
	wrapped := WrapError(CodeNetworkRequestFail, "network", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestNotifier_DeliversCurrentOnSubscribe(t *testing.T) {
	var n Notifier
	n.Publish(&identity.Identity{UID: "u1"})

	var got []*identity.Identity
	unsub := n.OnAuthStateChanged(func(u *identity.Identity) { got = append(got, u) })
	defer unsub()

	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, "u1", got[0].UID)
}

func TestNotifier_OrderAndUnsubscribe(t *testing.T) {
	var n Notifier

	var a, b []string
	record := func(dst *[]string) Listener {
		return func(u *identity.Identity) {
			if u == nil {
				*dst = append(*dst, "-")
				return
			}
			*dst = append(*dst, u.UID)
		}
	}
	unsubA := n.OnAuthStateChanged(record(&a))
	unsubB := n.OnAuthStateChanged(record(&b))
	assert.Equal(t, 2, n.ListenerCount())

	n.Publish(&identity.Identity{UID: "u1"})
	n.Publish(nil)

	unsubA()
	unsubA()
	assert.Equal(t, 1, n.ListenerCount())

	n.Publish(&identity.Identity{UID: "u2"})
	unsubB()

	assert.Equal(t, []string{"-", "u1", "-"}, a)
	assert.Equal(t, []string{"-", "u1", "-", "u2"}, b)
	assert.Equal(t, 0, n.ListenerCount())
}

func TestNotifier_SetCurrentDoesNotNotify(t *testing.T) {
	var n Notifier
	calls := 0
	defer n.OnAuthStateChanged(func(*identity.Identity) { calls++ })()

	n.SetCurrent(&identity.Identity{UID: "u1", DisplayName: "new"})
	assert.Equal(t, 1, calls)
	assert.Equal(t, "new", n.CurrentUser().DisplayName)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func() (Provider, error) { return nil, errors.New("nope") })
	r.Register("a", func() (Provider, error) { return nil, nil })

	assert.Equal(t, []string{"a", "b"}, r.IDs())

	_, err := r.Open("missing")
	assert.ErrorContains(t, err, "unknown provider")

	_, err = r.Open("b")
	assert.ErrorContains(t, err, "open provider b")

	_, err = r.Open("a")
	assert.NoError(t, err)
}
