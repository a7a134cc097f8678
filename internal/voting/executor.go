package voting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p3root/StratisFullNode/internal/federation"
	"github.com/p3root/StratisFullNode/internal/whitelist"
)

// pubKeyLengths accepted in federation membership payloads: 32 bytes for
// ed25519, 33 for compressed secp256k1.
func validPubKeyLen(n int) bool {
	return n == 32 || n == 33
}

// ResultExecutor applies approved polls to the whitelist repository and the
// federation roster. Every effect is deterministic and idempotent.
type ResultExecutor struct {
	whitelist whitelist.Store
	roster    *federation.Roster
}

// NewResultExecutor creates the executor over its two repositories.
func NewResultExecutor(wl whitelist.Store, roster *federation.Roster) *ResultExecutor {
	return &ResultExecutor{whitelist: wl, roster: roster}
}

// Execute applies the effect of data. Unknown keys and malformed payloads
// are execution errors, surfaced to the engine so the poll is not marked
// executed.
func (x *ResultExecutor) Execute(ctx context.Context, data VotingData) error {
	switch data.Key {
	case WhitelistHash:
		h, err := hashPayload(data.Payload)
		if err != nil {
			return err
		}
		if err := x.whitelist.Add(ctx, h); err != nil {
			return fmt.Errorf("whitelist add: %w", err)
		}
		slog.Info("hash whitelisted", "hash", h.Hex())
		return nil

	case RemoveHash:
		h, err := hashPayload(data.Payload)
		if err != nil {
			return err
		}
		if err := x.whitelist.Remove(ctx, h); err != nil {
			return fmt.Errorf("whitelist remove: %w", err)
		}
		slog.Info("hash removed from whitelist", "hash", h.Hex())
		return nil

	case AddFederationMember:
		if !validPubKeyLen(len(data.Payload)) {
			return fmt.Errorf("member payload: bad pubkey length %d", len(data.Payload))
		}
		x.roster.Add(data.Payload)
		slog.Info("federation member added", "member", data.Render(), "size", x.roster.Size())
		return nil

	case KickFederationMember:
		if !validPubKeyLen(len(data.Payload)) {
			return fmt.Errorf("member payload: bad pubkey length %d", len(data.Payload))
		}
		x.roster.Remove(data.Payload)
		slog.Info("federation member kicked", "member", data.Render(), "size", x.roster.Size())
		return nil

	default:
		return fmt.Errorf("no executor for vote key %s", data.Key)
	}
}

func hashPayload(payload []byte) (whitelist.Hash, error) {
	var h whitelist.Hash
	if len(payload) != whitelist.HashSize {
		return h, fmt.Errorf("hash payload: %w", whitelist.ErrBadHashLength)
	}
	copy(h[:], payload)
	return h, nil
}
