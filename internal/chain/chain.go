package chain

import (
	"context"
	"errors"
	"math/big"
)

// Receipt is the decoded transaction receipt the mint executor needs:
// a status bit plus the event log entries.
type Receipt struct {
	Status uint64
	Logs   []Log
}

// Succeeded reports whether the transaction executed successfully.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// Log is a single event log entry with its emitting contract address
// and indexed topics (hex encoded).
type Log struct {
	Address string
	Topics  []string
}

// ErrReceiptNotFound is returned while a transaction is not yet indexed.
var ErrReceiptNotFound = errors.New("transaction receipt not available yet")

// ErrNameNotFound is returned when a human-readable name has no resolver
// or resolves to the zero address.
var ErrNameNotFound = errors.New("name does not resolve to an address")

// Reader defines the read-only chain access the admission pipeline and the
// mint executor rely on. Implementations decode responses once at the
// boundary; callers never see raw RPC payloads.
type Reader interface {
	// BalanceAt returns the native-currency balance of the address.
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	// TransactionReceipt returns the receipt for the hash, or
	// ErrReceiptNotFound while the transaction is unconfirmed.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	// TokenURI reads the metadata URI of a token from an ERC-721 contract.
	TokenURI(ctx context.Context, contract string, tokenID *big.Int) (string, error)
	// Close releases network connections held by the reader.
	Close()
}

// Resolver maps a human-readable name to an address.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}
