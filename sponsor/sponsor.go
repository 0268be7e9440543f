// Package sponsor decides whether the relaying account can afford to cover
// the network cost of a submission, and reports capacity statistics for the
// stats endpoint. All quantities are read live from the chain; nothing is
// cached between checks.
package sponsor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"
)

// DefaultTransferGas is the conservative gas estimate for an ERC-20 transfer,
// used when live estimation is unavailable.
const DefaultTransferGas = uint64(65000)

// ChainReader is the narrow slice of chain capabilities the gate needs.
type ChainReader interface {
	// Address returns the relaying account's address.
	Address() common.Address
	// Balance returns the relaying account's native-currency balance in wei.
	Balance(ctx context.Context) (*big.Int, error)
	// GasPrice returns the network's current fee rate in wei per gas unit.
	GasPrice(ctx context.Context) (*big.Int, error)
	// EstimateTransferGas estimates the gas units for a token transfer.
	EstimateTransferGas(ctx context.Context, token, to common.Address, amount *big.Int) (uint64, error)
}

// Snapshot is an ephemeral view of sponsorship capacity, recomputed on demand.
type Snapshot struct {
	RelayerAddress    string `json:"relayerAddress"`
	Balance           string `json:"balance"`
	EstimatedGasPerTx string `json:"estimatedGasPerTx"`
	MaxSubmissions    int64  `json:"maxTransactionsSupported"`
}

// Gate answers affordability questions for the relaying account.
type Gate struct {
	chain   ChainReader
	reserve *big.Int
	log     zerolog.Logger
}

// NewGate creates a gate with the given reserve buffer in wei, the minimum
// balance the relaying account must always retain. A nil reserve defaults to
// 0.1 native token.
func NewGate(chain ChainReader, reserve *big.Int, log zerolog.Logger) *Gate {
	if reserve == nil {
		reserve = new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(10))
	}
	return &Gate{
		chain:   chain,
		reserve: reserve,
		log:     log.With().Str("component", "sponsor").Logger(),
	}
}

// Balance reads the relaying account's current native balance in wei.
func (g *Gate) Balance(ctx context.Context) (*big.Int, error) {
	return g.chain.Balance(ctx)
}

// EstimateTransferGas requests a live gas estimate for a transfer of the
// given shape. On estimation failure it returns DefaultTransferGas so that
// sponsorship decisions stay available while estimation is degraded.
func (g *Gate) EstimateTransferGas(ctx context.Context, token, to common.Address, amount *big.Int) uint64 {
	units, err := g.chain.EstimateTransferGas(ctx, token, to, amount)
	if err != nil {
		g.log.Warn().Err(err).Msg("gas estimation failed, using default")
		return DefaultTransferGas
	}
	return units
}

// CanSponsor reports whether the relaying account can cover a submission of
// the given gas units at the current fee rate while retaining the reserve
// buffer. The comparison is strict: at exact parity sponsorship is refused.
// Read failures refuse sponsorship rather than guessing.
func (g *Gate) CanSponsor(ctx context.Context, gasUnits uint64) bool {
	balance, err := g.chain.Balance(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("balance read failed")
		return false
	}
	gasPrice, err := g.chain.GasPrice(ctx)
	if err != nil {
		g.log.Error().Err(err).Msg("gas price read failed")
		return false
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), gasPrice)
	needed := new(big.Int).Add(cost, g.reserve)
	return balance.Cmp(needed) > 0
}

// Snapshot computes the current sponsorship capacity: balance, cost per
// submission at the default gas estimate, and how many submissions the
// balance could cover.
func (g *Gate) Snapshot(ctx context.Context) (*Snapshot, error) {
	balance, err := g.chain.Balance(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice, err := g.chain.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	costPerTx := new(big.Int).Mul(new(big.Int).SetUint64(DefaultTransferGas), gasPrice)

	var maxTxs int64
	if costPerTx.Sign() > 0 {
		maxTxs = new(big.Int).Div(balance, costPerTx).Int64()
	}

	return &Snapshot{
		RelayerAddress:    g.chain.Address().Hex(),
		Balance:           balance.String(),
		EstimatedGasPerTx: costPerTx.String(),
		MaxSubmissions:    maxTxs,
	}, nil
}
