package relayer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient is the boundary to the chain RPC node. The relay loop treats
// any error from these calls as an opaque failure reason for the affected
// payment; retry semantics live behind the implementation.
type ChainClient interface {
	// Address returns the relaying account's address.
	Address() common.Address

	// Balance returns the relaying account's native-currency balance in wei.
	Balance(ctx context.Context) (*big.Int, error)

	// GasPrice returns the network's current fee rate in wei per gas unit.
	GasPrice(ctx context.Context) (*big.Int, error)

	// EstimateTransferGas estimates the gas units for a token transfer of
	// the given shape.
	EstimateTransferGas(ctx context.Context, token, to common.Address, amount *big.Int) (uint64, error)

	// SubmitTransfer signs and broadcasts a token transfer from the relaying
	// account, returning the pending transaction hash.
	SubmitTransfer(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error)

	// AwaitConfirmation blocks until the transaction is included, returning
	// the transaction reference, or fails when the context expires or the
	// transaction reverts.
	AwaitConfirmation(ctx context.Context, txHash common.Hash) (string, error)
}
