package peg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p3root/StratisFullNode/internal/chain"
	"github.com/stretchr/testify/require"
)

var base = time.Unix(1_700_000_000, 0).UTC()

// stubClient serves a fixed matured-deposit response.
type stubClient struct {
	blocks []MaturedBlockDeposit
	err    error
	calls  int
	froms  []uint64
}

func (c *stubClient) MaturedDeposits(_ context.Context, fromHeight uint64) ([]MaturedBlockDeposit, error) {
	c.calls++
	c.froms = append(c.froms, fromHeight)
	return c.blocks, c.err
}

func depositID(b byte) DepositID {
	var id DepositID
	for i := range id {
		id[i] = b
	}
	return id
}

// testChain builds a header chain: genesis at base, then n headers ten
// minutes apart.
func testChain(n int) *chain.Memory {
	m := chain.NewMemory([32]byte{}, base)
	for i := 1; i <= n; i++ {
		m.Append([32]byte{byte(i)}, base.Add(time.Duration(i)*10*time.Minute))
	}
	return m
}

type syncFixture struct {
	client      *stubClient
	conversions *MemoryConversionStore
	transfers   *MemoryTransferStore
	sync        *Synchronizer

	recordedBlocks []uint64
}

func newSyncFixture(view chain.View, node chain.NodeState, startHeight uint64) *syncFixture {
	fx := &syncFixture{
		client:      &stubClient{},
		conversions: NewMemoryConversionStore(),
		transfers:   NewMemoryTransferStore(startHeight),
	}
	fx.sync = NewSynchronizer(fx.client, fx.conversions, fx.transfers, view, node,
		func(blockHeight uint64, conversions, standard int) {
			fx.recordedBlocks = append(fx.recordedBlocks, blockHeight)
		})
	return fx
}

func TestRunCycleGatedDuringInitialBlockDownload(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{InIBD: true, WalletHeight: 3}, 500)

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)
	require.Zero(t, fx.client.calls)
}

func TestRunCycleGatedWhenWalletBehindTip(t *testing.T) {
	// Tip at 11, wallet at 0: trails by more than the buffer.
	fx := newSyncFixture(testChain(11), chain.StaticNodeState{WalletHeight: 0}, 500)

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)
	require.Zero(t, fx.client.calls)

	// Trailing by exactly the buffer is acceptable.
	fx = newSyncFixture(testChain(11), chain.StaticNodeState{WalletHeight: 1}, 500)
	delay, err = fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay) // nothing fetched, but the gate was passed
	require.Equal(t, 1, fx.client.calls)
}

func TestRunCycleFetchesFromCheckpoint(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 742)
	fx.client.blocks = []MaturedBlockDeposit{}

	_, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{742}, fx.client.froms)
}

func TestRunCycleEmptyFetchSavesTip(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.blocks = []MaturedBlockDeposit{}

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)
	require.Equal(t, 1, fx.transfers.TipSaves())
	require.Empty(t, fx.recordedBlocks)
}

func TestRunCycleFetchFailureIsTransient(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.err = errors.New("connection refused")

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)
	require.Zero(t, fx.transfers.TipSaves())
}

func TestRunCycleNilPayloadIsTransient(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.blocks = nil

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)
	require.Zero(t, fx.transfers.TipSaves())
}

func TestRunCycleCancelledContextPropagates(t *testing.T) {
	fx := newSyncFixture(testChain(3), chain.StaticNodeState{WalletHeight: 3}, 500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fx.client.err = ctx.Err()

	_, err := fx.sync.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunCycleRecordsDeposits(t *testing.T) {
	view := testChain(3)
	fx := newSyncFixture(view, chain.StaticNodeState{WalletHeight: 3}, 500)

	// Deposit block time lands between headers 1 (+10m) and 2 (+20m), so
	// the resolved sidechain height is 2.
	fx.client.blocks = []MaturedBlockDeposit{{
		Block: BlockInfo{Height: 500, Hash: [32]byte{0xaa}, Time: base.Add(15 * time.Minute)},
		Deposits: []Deposit{
			{ID: depositID(0x0c), Amount: 9_000, TargetAddress: "CDest", TargetChain: "strax", RetrievalType: RetrievalConversionNormal},
			{ID: depositID(0x0b), Amount: 2_000, TargetAddress: "BDest", RetrievalType: RetrievalNormal},
			{ID: depositID(0x0a), Amount: 1_000, TargetAddress: "ADest", RetrievalType: RetrievalSmall},
		},
	}}

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.False(t, delay)

	reqs, err := fx.conversions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, depositID(0x0c), reqs[0].RequestID)
	require.Equal(t, RequestMint, reqs[0].RequestType)
	require.Equal(t, StatusUnprocessed, reqs[0].Status)
	require.False(t, reqs[0].Processed)
	require.Equal(t, uint64(9_000), reqs[0].Amount)
	require.Equal(t, uint64(2), reqs[0].BlockHeight)
	require.Equal(t, "CDest", reqs[0].DestinationAddress)
	require.Equal(t, "strax", reqs[0].DestinationChain)

	// Standard deposits are handed over in bytewise id order.
	recorded := fx.transfers.Recorded()
	require.Len(t, recorded, 2)
	require.Equal(t, depositID(0x0a), recorded[0].ID)
	require.Equal(t, depositID(0x0b), recorded[1].ID)

	next, err := fx.transfers.NextMatureDepositHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(501), next)

	require.Equal(t, []uint64{500}, fx.recordedBlocks)
}

func TestRunCycleDedupAcrossCycles(t *testing.T) {
	view := testChain(3)
	fx := newSyncFixture(view, chain.StaticNodeState{WalletHeight: 3}, 500)
	fx.client.blocks = []MaturedBlockDeposit{{
		Block: BlockInfo{Height: 500, Time: base.Add(15 * time.Minute)},
		Deposits: []Deposit{
			{ID: depositID(0x0c), Amount: 9_000, RetrievalType: RetrievalConversionSmall},
			{ID: depositID(0x0a), Amount: 1_000, RetrievalType: RetrievalSmall},
		},
	}}

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.False(t, delay)

	// The counter chain re-serves the same block; everything is absorbed.
	delay, err = fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)

	reqs, err := fx.conversions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Len(t, fx.transfers.Recorded(), 1)
}

func TestRunCycleUnresolvableDepositStopsConsumption(t *testing.T) {
	view := testChain(3)
	fx := newSyncFixture(view, chain.StaticNodeState{WalletHeight: 3}, 500)

	// The first block predates this chain's genesis, so its conversion
	// deposit cannot be placed yet. The following block must not be consumed
	// either.
	fx.client.blocks = []MaturedBlockDeposit{
		{
			Block: BlockInfo{Height: 500, Time: base.Add(-time.Hour)},
			Deposits: []Deposit{
				{ID: depositID(0x0c), Amount: 9_000, RetrievalType: RetrievalConversionSmall},
			},
		},
		{
			Block: BlockInfo{Height: 501, Time: base.Add(15 * time.Minute)},
			Deposits: []Deposit{
				{ID: depositID(0x0a), Amount: 1_000, RetrievalType: RetrievalSmall},
			},
		},
	}

	delay, err := fx.sync.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, delay)

	reqs, err := fx.conversions.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, reqs)
	require.Empty(t, fx.transfers.Recorded())

	next, err := fx.transfers.NextMatureDepositHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(500), next)
	require.Empty(t, fx.recordedBlocks)
}

func TestResolveDepositHeight(t *testing.T) {
	view := testChain(3)
	tip := view.Tip()

	// Between header 1 (+10m) and header 2 (+20m).
	h, ok := resolveDepositHeight(tip, base.Add(15*time.Minute))
	require.True(t, ok)
	require.Equal(t, uint64(2), h)

	// Exactly at a header time matches that header's successor boundary.
	h, ok = resolveDepositHeight(tip, base.Add(20*time.Minute))
	require.True(t, ok)
	require.Equal(t, uint64(3), h)

	// After the tip.
	h, ok = resolveDepositHeight(tip, base.Add(time.Hour))
	require.True(t, ok)
	require.Equal(t, uint64(3), h)

	// Before genesis: no placement.
	_, ok = resolveDepositHeight(tip, base.Add(-time.Minute))
	require.False(t, ok)

	// Genesis-only chain has no interval to place into.
	_, ok = resolveDepositHeight(chain.NewMemory([32]byte{}, base).Tip(), base.Add(time.Hour))
	require.False(t, ok)
}

func TestPartitionDeposits(t *testing.T) {
	deposits := []Deposit{
		{ID: depositID(1), RetrievalType: RetrievalSmall},
		{ID: depositID(2), RetrievalType: RetrievalConversionLarge},
		{ID: depositID(3), RetrievalType: RetrievalType(42)},
		{ID: depositID(4), RetrievalType: RetrievalLarge},
		{ID: depositID(5), RetrievalType: RetrievalConversionSmall},
	}

	conversions, standard := partitionDeposits(deposits)
	require.Len(t, conversions, 2)
	require.Equal(t, depositID(2), conversions[0].ID)
	require.Equal(t, depositID(5), conversions[1].ID)
	require.Len(t, standard, 2)
	require.Equal(t, depositID(1), standard[0].ID)
	require.Equal(t, depositID(4), standard[1].ID)
}
