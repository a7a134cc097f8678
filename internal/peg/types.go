// Package peg turns matured deposits observed on the counter chain into
// conversion requests and cross-chain transfer records on this chain. Every
// federation node must derive byte-identical results from the same deposit
// set, so all ordering here is deterministic.
package peg

import (
	"bytes"
	"encoding/hex"
	"sort"
	"time"
)

// DepositID is the 256-bit identifier of a counter-chain deposit.
type DepositID [32]byte

// Hex returns the canonical lowercase hex rendering.
func (id DepositID) Hex() string {
	return hex.EncodeToString(id[:])
}

// RetrievalType says how a matured deposit is to be retrieved on this chain.
type RetrievalType uint8

const (
	RetrievalSmall RetrievalType = iota + 1
	RetrievalNormal
	RetrievalLarge
	RetrievalConversionSmall
	RetrievalConversionNormal
	RetrievalConversionLarge
)

// String returns the canonical name used in logs and persistence.
func (t RetrievalType) String() string {
	switch t {
	case RetrievalSmall:
		return "small"
	case RetrievalNormal:
		return "normal"
	case RetrievalLarge:
		return "large"
	case RetrievalConversionSmall:
		return "conversion_small"
	case RetrievalConversionNormal:
		return "conversion_normal"
	case RetrievalConversionLarge:
		return "conversion_large"
	default:
		return "unknown"
	}
}

// IsConversion reports whether the deposit becomes a conversion request
// rather than a standard cross-chain transfer.
func (t RetrievalType) IsConversion() bool {
	switch t {
	case RetrievalConversionSmall, RetrievalConversionNormal, RetrievalConversionLarge:
		return true
	case RetrievalSmall, RetrievalNormal, RetrievalLarge:
		return false
	default:
		return false
	}
}

// Deposit is one observed counter-chain deposit. Immutable once observed.
type Deposit struct {
	ID            DepositID
	Amount        uint64
	TargetAddress string
	TargetChain   string
	RetrievalType RetrievalType
}

// BlockInfo identifies the counter-chain block a matured deposit came from.
type BlockInfo struct {
	Height uint64
	Hash   [32]byte
	Time   time.Time
}

// MaturedBlockDeposit is the counter-chain client's report for one matured
// block.
type MaturedBlockDeposit struct {
	Block    BlockInfo
	Deposits []Deposit
}

// RequestType distinguishes mint and burn conversion requests.
type RequestType uint8

const (
	RequestMint RequestType = iota + 1
	RequestBurn
)

func (t RequestType) String() string {
	switch t {
	case RequestMint:
		return "mint"
	case RequestBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// RequestStatus is the processing state of a conversion request. This core
// only ever creates Unprocessed requests; an external processor advances
// them.
type RequestStatus uint8

const (
	StatusUnprocessed RequestStatus = iota + 1
	StatusProcessed
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusUnprocessed:
		return "unprocessed"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConversionRequest is a pending mint/burn instruction derived from a
// matured conversion deposit. RequestID is the deposit id and is unique.
type ConversionRequest struct {
	RequestID          DepositID
	RequestType        RequestType
	Status             RequestStatus
	Processed          bool
	Amount             uint64
	BlockHeight        uint64
	DestinationAddress string
	DestinationChain   string
}

// SortDeposits orders deposits by bytewise-ascending id. This is the single
// total order shared by every federation node; the aggregate withdrawal
// transaction assembled from these deposits must be identical everywhere.
func SortDeposits(deposits []Deposit) {
	sort.Slice(deposits, func(i, j int) bool {
		return bytes.Compare(deposits[i].ID[:], deposits[j].ID[:]) < 0
	})
}
