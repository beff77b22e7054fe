package redis

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestDoWithTries(t *testing.T) {
	calls := 0
	err := doWithTries(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithTries_GivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("connection refused")
	err := doWithTries(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, 3, time.Millisecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoWithTries_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := doWithTries(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	}, 10, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
