package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spinwin/internal/models"
)

func TestPlays_DisabledWithoutDB(t *testing.T) {
	ctx := context.Background()
	for _, p := range []*Plays{nil, NewPlays(nil)} {
		assert.False(t, p.Enabled())
		require.NoError(t, p.EnsureSchema(ctx))

		id, err := p.Record(ctx, models.Play{SessionID: "s1", RewardID: "1"})
		require.NoError(t, err)
		assert.Zero(t, id)

		_, err = p.List(ctx, "", 10)
		assert.ErrorIs(t, err, ErrDisabled)
		_, err = p.Stats(ctx, time.Time{})
		assert.ErrorIs(t, err, ErrDisabled)
		_, err = p.Purge(ctx, time.Now())
		assert.ErrorIs(t, err, ErrDisabled)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxListLimit, clampLimit(MaxListLimit+1))
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	p := NewPruner(NewPlays(nil), 24*time.Hour, time.Millisecond, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not return with the play log disabled")
	}

	_, err := p.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}
