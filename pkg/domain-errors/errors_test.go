package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeInvalidTransition, "request already decided"))
		assert.True(t, HasCode(err, CodeInvalidTransition))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "record store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, "record store unavailable", MessageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}
