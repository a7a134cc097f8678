package peg

import (
	"context"
	"testing"
	"time"

	"github.com/p3root/StratisFullNode/internal/chain"
	"github.com/stretchr/testify/require"
)

func newTestLoop(fx *syncFixture) *Loop {
	return &Loop{
		sync:         fx.sync,
		initDelay:    time.Millisecond,
		refreshDelay: time.Hour,
		poke:         make(chan struct{}, 1),
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.blocks = []MaturedBlockDeposit{}
	loop := newTestLoop(fx)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return fx.transfers.TipSaves() >= 1
	}, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestLoopPokeCutsRefreshWaitShort(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.blocks = []MaturedBlockDeposit{}
	loop := newTestLoop(fx)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// First cycle runs after the init delay, then the loop parks on the
	// hour-long refresh wait.
	require.Eventually(t, func() bool {
		return fx.client.calls >= 1
	}, 5*time.Second, time.Millisecond)

	loop.Poke()
	require.Eventually(t, func() bool {
		return fx.client.calls >= 2
	}, 5*time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestLoopPokesCoalesce(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	loop := newTestLoop(fx)

	// Poking an idle loop repeatedly must never block.
	for i := 0; i < 10; i++ {
		loop.Poke()
	}
}
