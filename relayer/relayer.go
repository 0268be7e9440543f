// Package relayer implements the asynchronous relay loop: on a fixed cadence
// it pulls pending payments from the registry, gates them on gas sponsorship
// affordability, submits the on-chain transfers from the relaying account and
// reports outcomes back into the registry.
package relayer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/evvm/relay/fisher"
)

const (
	// DefaultInterval is the cadence between processing passes.
	DefaultInterval = 5 * time.Second

	// DefaultConfirmTimeout bounds the wait for on-chain confirmation of a
	// single submission; expiry fails the payment.
	DefaultConfirmTimeout = 90 * time.Second

	// sponsorGasUnits is the fixed conservative per-payment gas estimate
	// used for the affordability gate.
	sponsorGasUnits = uint64(100000)
)

// insufficientGasReason is the failure reason recorded when the sponsorship
// gate refuses a payment.
const insufficientGasReason = "Insufficient gas to sponsor transaction"

// SponsorshipGate answers whether a submission of the given gas units can be
// sponsored right now.
type SponsorshipGate interface {
	CanSponsor(ctx context.Context, gasUnits uint64) bool
}

// Status is the relay loop's self-report for the stats endpoint.
type Status struct {
	Processing     bool   `json:"isProcessing"`
	RelayerAddress string `json:"relayerAddress"`
}

// Config configures a Relayer.
type Config struct {
	// Interval between ticks; zero means DefaultInterval.
	Interval time.Duration
	// ConfirmTimeout bounds confirmation waiting per payment; zero means
	// DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
	// TokenAddresses maps token symbols to their contract addresses.
	TokenAddresses map[string]string
	// Logger is the parent logger; a component field is attached.
	Logger zerolog.Logger
}

// Relayer drives the periodic processing of pending payments. Payments are
// processed one at a time; the relaying account has a single outbound
// transaction stream and sequential submission avoids nonce conflicts.
type Relayer struct {
	fisher         *fisher.Fisher
	gate           SponsorshipGate
	chain          ChainClient
	tokens         map[string]common.Address
	interval       time.Duration
	confirmTimeout time.Duration
	processing     atomic.Bool
	log            zerolog.Logger

	// OnTick, when set, observes each completed tick with its duration and
	// the number of payments processed.
	OnTick func(d time.Duration, processed int)
}

// New creates a relay loop over the given registry, gate and chain client.
func New(f *fisher.Fisher, gate SponsorshipGate, chain ChainClient, cfg Config) *Relayer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}

	tokens := make(map[string]common.Address, len(cfg.TokenAddresses))
	for symbol, addr := range cfg.TokenAddresses {
		if addr == "" {
			continue
		}
		tokens[strings.ToUpper(symbol)] = common.HexToAddress(addr)
	}

	return &Relayer{
		fisher:         f,
		gate:           gate,
		chain:          chain,
		tokens:         tokens,
		interval:       interval,
		confirmTimeout: confirmTimeout,
		log:            cfg.Logger.With().Str("component", "relayer").Logger(),
	}
}

// Run drives ticks on the configured cadence until ctx is cancelled. Each
// tick runs on its own goroutine; if one is still running when the next is
// due, the next is skipped entirely rather than queued or overlapped.
func (r *Relayer) Run(ctx context.Context) {
	r.log.Info().Str("address", r.chain.Address().Hex()).Dur("interval", r.interval).Msg("relayer started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("relayer stopped")
			return
		case <-ticker.C:
			go r.Tick(ctx)
		}
	}
}

// Tick executes one processing pass over the pending queue. It returns false
// without doing anything when another pass is still running.
func (r *Relayer) Tick(ctx context.Context) bool {
	if !r.processing.CompareAndSwap(false, true) {
		return false
	}
	defer r.processing.Store(false)

	start := time.Now()
	pending := r.fisher.ListPending()
	for _, p := range pending {
		r.processPayment(ctx, p)
	}

	if r.OnTick != nil {
		r.OnTick(time.Since(start), len(pending))
	}
	return true
}

// processPayment runs a single payment to a terminal state. Every error is
// absorbed into the payment's failed state; nothing propagates out, so one
// payment's failure never blocks the rest of the queue.
func (r *Relayer) processPayment(ctx context.Context, p *fisher.Payment) {
	r.fisher.MarkProcessing(p.ID)

	if !r.gate.CanSponsor(ctx, sponsorGasUnits) {
		r.log.Warn().Str("payment", p.ID).Msg("sponsorship refused")
		r.fisher.MarkFailed(p.ID, insufficientGasReason)
		return
	}

	txRef, err := r.submit(ctx, p)
	if err != nil {
		r.log.Error().Err(err).Str("payment", p.ID).Msg("submission failed")
		r.fisher.MarkFailed(p.ID, err.Error())
		return
	}

	r.fisher.MarkCompleted(p.ID, txRef)
}

// submit resolves the token contract, broadcasts the transfer and waits for
// confirmation under the configured timeout.
func (r *Relayer) submit(ctx context.Context, p *fisher.Payment) (string, error) {
	token, ok := r.tokens[strings.ToUpper(p.Token)]
	if !ok {
		return "", fmt.Errorf("Token %s not configured", p.Token)
	}

	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", p.Amount)
	}

	r.log.Info().Str("payment", p.ID).Str("token", p.Token).Str("amount", p.Amount).Str("to", p.To).Msg("submitting transfer")

	txHash, err := r.chain.SubmitTransfer(ctx, token, common.HexToAddress(p.To), amount)
	if err != nil {
		return "", err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, r.confirmTimeout)
	defer cancel()
	return r.chain.AwaitConfirmation(confirmCtx, txHash)
}

// Status reports whether a tick is currently running and the relaying
// account's address.
func (r *Relayer) Status() Status {
	return Status{
		Processing:     r.processing.Load(),
		RelayerAddress: r.chain.Address().Hex(),
	}
}
