package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/store"
)

func TestTransitionFollowsFixedOrder(t *testing.T) {
	r := &run{state: Idle}
	for _, s := range []State{Normalizing, Validating, Chunking, Embedding, Finalizing, Ready} {
		require.NoError(t, r.transition(s))
	}
}

func TestTransitionRejectsSkippingAStage(t *testing.T) {
	r := &run{state: Idle}
	err := r.transition(Chunking)
	require.Error(t, err)
	assert.Equal(t, errs.Internal, errs.KindOf(err))
}

func TestTransitionToFailedIsAlwaysAllowed(t *testing.T) {
	r := &run{state: Validating}
	assert.NoError(t, r.transition(Failed))
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	b := &Builder{}
	require.True(t, b.mu.TryLock())
	defer b.mu.Unlock()

	_, err := b.Run(t.Context(), store.Workspace{ID: "ws-1"})
	require.Error(t, err)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}
