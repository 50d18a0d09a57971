package clienterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errTooPoor = New(KindPrecondition, "insufficient chips")

func TestIsMatchesKindSentinels(t *testing.T) {
	wrapped := fmt.Errorf("place bet: %w", errTooPoor)

	assert.True(t, errors.Is(wrapped, errTooPoor))
	assert.True(t, errors.Is(wrapped, ErrPrecondition))
	assert.False(t, errors.Is(wrapped, ErrActionRejected))
	assert.False(t, errors.Is(New(KindPrecondition, "other"), errTooPoor))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindConnectivity, "unable to reach the server", cause)

	assert.Equal(t, "unable to reach the server: dial tcp: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrConnectivity))

	kind, ok := KindOf(fmt.Errorf("connect: %w", err))
	assert.True(t, ok)
	assert.Equal(t, KindConnectivity, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)
}
