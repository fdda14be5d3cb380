package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	t.Run("Should match sentinel of the same kind", func(t *testing.T) {
		err := New(KindInvalidTransition, "booking.confirm", "booking is not pending")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NotErrorIs(t, err, ErrTerminalStateViolation)
	})

	t.Run("Should match through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("transition booking: %w", New(KindNotFound, "store.booking", "booking not found"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("Should expose the wrapped cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(KindValidation, "currency.parse", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "currency.parse: connection reset", err.Error())
	})

	t.Run("Should report empty kind for foreign errors", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	})
}
