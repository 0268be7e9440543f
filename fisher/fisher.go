// Package fisher implements the payment registry: it owns the set of known
// payments and their lifecycle state, exposes intake, query and transition
// operations, and publishes lifecycle events to subscribers.
package fisher

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evvm/relay/validation"
)

// ErrNotFound is returned by Get for unknown payment ids.
var ErrNotFound = errors.New("payment not found")

// Stats holds fresh per-status counts of the registry's contents.
type Stats struct {
	Total      int `json:"totalPayments"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Config configures a Fisher instance.
type Config struct {
	// SupportedTokens is the whitelist of token symbols accepted at intake.
	SupportedTokens []string
	// Store overrides the default in-memory store.
	Store Store
	// Logger is the parent logger; a component field is attached.
	Logger zerolog.Logger
}

// Fisher owns the canonical copy of every payment. All transitions are
// serialized through its mutex, so there is a single writer per payment id;
// readers receive clones and can never mutate registry state.
type Fisher struct {
	mu     sync.Mutex
	store  Store
	bus    *Bus
	tokens []string
	log    zerolog.Logger
}

// New creates a registry. A nil Store in cfg falls back to NewMemoryStore.
func New(cfg Config) *Fisher {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Fisher{
		store:  store,
		bus:    NewBus(),
		tokens: cfg.SupportedTokens,
		log:    cfg.Logger.With().Str("component", "fisher").Logger(),
	}
}

// Intake validates a payment request and registers it in status pending,
// assigning a fresh id and creation timestamp. On validation failure the
// error is returned and nothing is stored.
func (f *Fisher) Intake(req Request) (string, error) {
	if err := validation.ValidatePaymentRequest(req.From, req.To, req.Amount, req.Token, f.tokens); err != nil {
		return "", err
	}

	p := &Payment{
		ID:        uuid.NewString(),
		From:      strings.TrimSpace(req.From),
		To:        strings.TrimSpace(req.To),
		Amount:    strings.TrimSpace(req.Amount),
		Token:     strings.ToUpper(strings.TrimSpace(req.Token)),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if req.Metadata != nil {
		p.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			p.Metadata[k] = v
		}
	}

	f.mu.Lock()
	f.store.Put(p)
	snapshot := p.clone()
	f.mu.Unlock()

	f.publish(EventPaymentReceived, snapshot)
	f.log.Info().Str("payment", p.ID).Str("token", p.Token).Str("amount", p.Amount).Msg("payment received")
	return p.ID, nil
}

// Get returns a copy of the payment with the given id, or ErrNotFound.
func (f *Fisher) Get(id string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

// ListPending returns copies of all payments in status pending, in no
// guaranteed order.
func (f *Fisher) ListPending() []*Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.store.ListByStatus(StatusPending)
	out := make([]*Payment, 0, len(pending))
	for _, p := range pending {
		out = append(out, p.clone())
	}
	return out
}

// MarkProcessing moves a pending payment into processing. Calls on a payment
// not in status pending are silently ignored.
func (f *Fisher) MarkProcessing(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.store.Get(id)
	if !ok || p.Status != StatusPending {
		return
	}
	p.Status = StatusProcessing
	f.store.Put(p)
}

// MarkCompleted moves a non-terminal payment into completed, records its
// transaction reference and publishes payment_executed. Calls on a terminal
// payment are silently ignored and leave its record untouched.
func (f *Fisher) MarkCompleted(id, txHash string) {
	f.mu.Lock()
	p, ok := f.store.Get(id)
	if !ok || p.Status.Terminal() {
		f.mu.Unlock()
		return
	}
	p.Status = StatusCompleted
	p.TxHash = txHash
	f.store.Put(p)
	snapshot := p.clone()
	f.mu.Unlock()

	f.publish(EventPaymentExecuted, snapshot)
	f.log.Info().Str("payment", id).Str("tx", txHash).Msg("payment completed")
}

// MarkFailed moves a non-terminal payment into failed, records the failure
// reason and publishes payment_failed. Calls on a terminal payment are
// silently ignored and leave its record untouched.
func (f *Fisher) MarkFailed(id, reason string) {
	f.mu.Lock()
	p, ok := f.store.Get(id)
	if !ok || p.Status.Terminal() {
		f.mu.Unlock()
		return
	}
	p.Status = StatusFailed
	p.LastError = reason
	f.store.Put(p)
	snapshot := p.clone()
	f.mu.Unlock()

	f.publish(EventPaymentFailed, snapshot)
	f.log.Warn().Str("payment", id).Str("reason", reason).Msg("payment failed")
}

// Subscribe registers a callback for every lifecycle event, invoked
// synchronously in registration order. The returned handle can be passed to
// Unsubscribe.
func (f *Fisher) Subscribe(fn func(Event)) int {
	return f.bus.Subscribe(fn)
}

// Unsubscribe removes a subscriber registered with Subscribe.
func (f *Fisher) Unsubscribe(id int) {
	f.bus.Unsubscribe(id)
}

// Stats returns counts of payments by status, computed fresh from the
// registry's current contents.
func (f *Fisher) Stats() Stats {
	f.mu.Lock()
	counts := f.store.Counts()
	total := f.store.Len()
	f.mu.Unlock()

	return Stats{
		Total:      total,
		Pending:    counts[StatusPending],
		Processing: counts[StatusProcessing],
		Completed:  counts[StatusCompleted],
		Failed:     counts[StatusFailed],
	}
}

// SupportedTokens returns a copy of the configured intake whitelist.
func (f *Fisher) SupportedTokens() []string {
	out := make([]string, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// publish takes an already-cloned snapshot; callers clone under f.mu so the
// event never reads a payment another goroutine may be transitioning.
func (f *Fisher) publish(t EventType, snapshot *Payment) {
	f.bus.Publish(Event{Type: t, Payment: *snapshot, Timestamp: time.Now().UTC()})
}
