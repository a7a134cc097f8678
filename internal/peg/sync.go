package peg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p3root/StratisFullNode/internal/chain"
)

// SyncBuffer is how far the wallet may trail the tip before deposit
// processing is gated off.
const SyncBuffer = 10

// CounterChainClient fetches matured deposits from the counter chain. A nil
// slice with a nil error is treated as a transient failure by the
// synchronizer.
type CounterChainClient interface {
	MaturedDeposits(ctx context.Context, fromHeight uint64) ([]MaturedBlockDeposit, error)
}

// RecordedHandler is notified after a matured block's deposits were
// persisted, for downstream event publication.
type RecordedHandler func(blockHeight uint64, conversions, standard int)

// Synchronizer runs one matured-deposit sync cycle at a time: gate, fetch,
// process, report. Checkpoint advancement happens only through the transfer
// store's accounting, and conversion requests are persisted before a block
// is reported consumed, so a failed block is simply retried next cycle.
type Synchronizer struct {
	client      CounterChainClient
	conversions ConversionStore
	transfers   TransferStore
	chain       chain.View
	node        chain.NodeState
	onRecorded  RecordedHandler
}

// NewSynchronizer wires a synchronizer. onRecorded may be nil.
func NewSynchronizer(client CounterChainClient, conversions ConversionStore, transfers TransferStore, view chain.View, node chain.NodeState, onRecorded RecordedHandler) *Synchronizer {
	return &Synchronizer{
		client:      client,
		conversions: conversions,
		transfers:   transfers,
		chain:       view,
		node:        node,
		onRecorded:  onRecorded,
	}
}

// RunCycle executes one sync cycle. It returns delayRequired = true when the
// loop should wait a full refresh interval before the next cycle: the node
// is gated, the counter chain was unreachable, or nothing new was recorded.
// Transient counter-chain failures are logged, never returned; returned
// errors are store failures that abort the cycle without advancing it.
func (s *Synchronizer) RunCycle(ctx context.Context) (bool, error) {
	tip := s.chain.Tip()
	if s.node.IsInitialBlockDownload() {
		slog.Debug("sync gated: initial block download")
		return true, nil
	}
	if tip == nil || s.node.WalletSyncedHeight()+SyncBuffer < tip.Height {
		slog.Debug("sync gated: wallet behind tip",
			"wallet_height", s.node.WalletSyncedHeight(),
		)
		return true, nil
	}

	from, err := s.transfers.NextMatureDepositHeight(ctx)
	if err != nil {
		return true, fmt.Errorf("read checkpoint: %w", err)
	}

	blocks, err := s.client.MaturedDeposits(ctx, from)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		slog.Warn("matured deposit fetch failed", "from_height", from, "err", err)
		return true, nil
	}
	if blocks == nil {
		slog.Warn("matured deposit fetch returned no payload", "from_height", from)
		return true, nil
	}
	if len(blocks) == 0 {
		// Caught up. Let the transfer store flush its tip.
		if err := s.transfers.SaveCurrentTip(ctx); err != nil {
			return true, fmt.Errorf("save current tip: %w", err)
		}
		return true, nil
	}

	anyRecorded := false
	for _, block := range blocks {
		recorded, ok, err := s.processBlock(ctx, tip, block)
		if err != nil {
			return true, err
		}
		if !ok {
			// A deposit in this block cannot be resolved yet. Stop here so
			// the block is retried once more headers accumulate.
			break
		}
		anyRecorded = anyRecorded || recorded
	}
	return !anyRecorded, nil
}

// processBlock handles one matured block. ok = false means the block must be
// retried on a later cycle and nothing past it may be consumed.
func (s *Synchronizer) processBlock(ctx context.Context, tip *chain.Header, block MaturedBlockDeposit) (recorded, ok bool, err error) {
	conversions, standard := partitionDeposits(block.Deposits)

	for _, d := range conversions {
		exists, err := s.conversions.Exists(ctx, d.ID)
		if err != nil {
			return false, false, fmt.Errorf("conversion lookup %s: %w", d.ID.Hex(), err)
		}
		if exists {
			slog.Debug("conversion deposit already recorded", "deposit", d.ID.Hex())
			continue
		}
		height, found := resolveDepositHeight(tip, block.Block.Time)
		if !found {
			slog.Debug("no ancestor header for deposit yet",
				"deposit", d.ID.Hex(),
				"block_time", block.Block.Time,
			)
			return false, false, nil
		}
		req := &ConversionRequest{
			RequestID:          d.ID,
			RequestType:        RequestMint,
			Status:             StatusUnprocessed,
			Processed:          false,
			Amount:             d.Amount,
			BlockHeight:        height,
			DestinationAddress: d.TargetAddress,
			DestinationChain:   d.TargetChain,
		}
		if err := s.conversions.Save(ctx, req); err != nil {
			return false, false, fmt.Errorf("save conversion request %s: %w", d.ID.Hex(), err)
		}
		slog.Info("conversion request created",
			"deposit", d.ID.Hex(),
			"amount", d.Amount,
			"block_height", height,
			"chain", d.TargetChain,
		)
	}

	SortDeposits(standard)
	blockRecorded, err := s.transfers.RecordLatestMatureDeposits(ctx, block.Block.Height, standard)
	if err != nil {
		return false, false, fmt.Errorf("record mature deposits at %d: %w", block.Block.Height, err)
	}
	if s.onRecorded != nil {
		s.onRecorded(block.Block.Height, len(conversions), len(standard))
	}
	return blockRecorded, true, nil
}

// partitionDeposits splits a block's deposits into conversion and standard
// sets, preserving arrival order within each.
func partitionDeposits(deposits []Deposit) (conversions, standard []Deposit) {
	for _, d := range deposits {
		switch d.RetrievalType {
		case RetrievalConversionSmall, RetrievalConversionNormal, RetrievalConversionLarge:
			conversions = append(conversions, d)
		case RetrievalSmall, RetrievalNormal, RetrievalLarge:
			standard = append(standard, d)
		default:
			slog.Warn("deposit with unknown retrieval type skipped",
				"deposit", d.ID.Hex(),
				"retrieval_type", uint8(d.RetrievalType),
			)
		}
	}
	return conversions, standard
}

// resolveDepositHeight walks this chain's headers backward from the tip and
// returns the height of the first header whose previous header's time is not
// after the counter-chain block time. Reaching genesis without a match means
// the deposit predates this chain's view; it is dropped for the cycle.
// The walk is linear on purpose: correctness over speed. A monotonic cursor
// over the non-decreasing block times would be a valid optimization.
func resolveDepositHeight(tip *chain.Header, blockTime time.Time) (uint64, bool) {
	for h := tip; h != nil && h.Prev != nil; h = h.Prev {
		if !h.Prev.Time.After(blockTime) {
			return h.Height, true
		}
	}
	return 0, false
}
