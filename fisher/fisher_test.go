package fisher

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evvm/relay/validation"
)

const (
	fromAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1111"
	toAddr   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb2222"
)

func newTestFisher() *Fisher {
	return New(Config{
		SupportedTokens: []string{"MATE", "USDC"},
		Logger:          zerolog.Nop(),
	})
}

func validRequest() Request {
	return Request{From: fromAddr, To: toAddr, Amount: "1000000", Token: "MATE"}
}

func TestIntake(t *testing.T) {
	t.Run("registers a pending payment", func(t *testing.T) {
		f := newTestFisher()

		id, err := f.Intake(validRequest())
		require.NoError(t, err)
		require.NotEmpty(t, id)

		p, err := f.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, p.Status)
		assert.Equal(t, "MATE", p.Token)
		assert.False(t, p.CreatedAt.IsZero())
		assert.Empty(t, p.TxHash)
	})

	t.Run("normalizes token case", func(t *testing.T) {
		f := newTestFisher()
		req := validRequest()
		req.Token = "mate"

		id, err := f.Intake(req)
		require.NoError(t, err)

		p, _ := f.Get(id)
		assert.Equal(t, "MATE", p.Token)
	})

	t.Run("publishes payment_received", func(t *testing.T) {
		f := newTestFisher()
		var events []Event
		f.Subscribe(func(e Event) { events = append(events, e) })

		id, err := f.Intake(validRequest())
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, EventPaymentReceived, events[0].Type)
		assert.Equal(t, id, events[0].Payment.ID)
	})

	t.Run("validation failure stores nothing", func(t *testing.T) {
		f := newTestFisher()
		req := validRequest()
		req.Amount = "10.5"

		_, err := f.Intake(req)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, validation.CodeNotAnInteger, verr.Code)
		assert.Equal(t, Stats{}, f.Stats())
	})

	t.Run("same sender and recipient rejected", func(t *testing.T) {
		f := newTestFisher()
		req := validRequest()
		req.To = req.From

		_, err := f.Intake(req)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, validation.CodeSameAddress, verr.Code)
	})

	t.Run("assigns unique ids", func(t *testing.T) {
		f := newTestFisher()
		id1, err := f.Intake(validRequest())
		require.NoError(t, err)
		id2, err := f.Intake(validRequest())
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})
}

func TestGet(t *testing.T) {
	f := newTestFisher()

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.Get("nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("returns a copy", func(t *testing.T) {
		id, err := f.Intake(validRequest())
		require.NoError(t, err)

		p, _ := f.Get(id)
		p.Status = StatusFailed
		p.Amount = "0"

		fresh, _ := f.Get(id)
		assert.Equal(t, StatusPending, fresh.Status)
		assert.Equal(t, "1000000", fresh.Amount)
	})
}

func TestTransitions(t *testing.T) {
	t.Run("happy path to completed", func(t *testing.T) {
		f := newTestFisher()
		id, _ := f.Intake(validRequest())

		f.MarkProcessing(id)
		p, _ := f.Get(id)
		assert.Equal(t, StatusProcessing, p.Status)

		f.MarkCompleted(id, "0xdeadbeef")
		p, _ = f.Get(id)
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, "0xdeadbeef", p.TxHash)
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		f := newTestFisher()
		id, _ := f.Intake(validRequest())
		f.MarkProcessing(id)
		f.MarkCompleted(id, "0xoriginal")

		f.MarkProcessing(id)
		f.MarkFailed(id, "late failure")
		f.MarkCompleted(id, "0xreplacement")

		p, _ := f.Get(id)
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, "0xoriginal", p.TxHash)
		assert.Empty(t, p.LastError)
	})

	t.Run("failed stays failed", func(t *testing.T) {
		f := newTestFisher()
		id, _ := f.Intake(validRequest())
		f.MarkProcessing(id)
		f.MarkFailed(id, "boom")

		f.MarkCompleted(id, "0xtoolate")

		p, _ := f.Get(id)
		assert.Equal(t, StatusFailed, p.Status)
		assert.Equal(t, "boom", p.LastError)
		assert.Empty(t, p.TxHash)
	})

	t.Run("mark processing requires pending", func(t *testing.T) {
		f := newTestFisher()
		f.MarkProcessing("unknown") // no panic, no effect

		id, _ := f.Intake(validRequest())
		f.MarkProcessing(id)
		f.MarkProcessing(id) // second call is a no-op

		p, _ := f.Get(id)
		assert.Equal(t, StatusProcessing, p.Status)
	})

	t.Run("terminal events published", func(t *testing.T) {
		f := newTestFisher()
		var types []EventType
		f.Subscribe(func(e Event) { types = append(types, e.Type) })

		id, _ := f.Intake(validRequest())
		f.MarkProcessing(id)
		f.MarkFailed(id, "no gas")

		assert.Equal(t, []EventType{EventPaymentReceived, EventPaymentFailed}, types)
	})
}

func TestIntakeEventsWhileTransitioning(t *testing.T) {
	// Intake publishes from a snapshot taken under the mutex, so a relay
	// pass transitioning the same payment on another goroutine never races
	// the event's read and the received event always shows pending.
	f := newTestFisher()

	var events []Event
	f.Subscribe(func(e Event) { events = append(events, e) })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, p := range f.ListPending() {
				f.MarkProcessing(p.ID)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := f.Intake(validRequest())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	require.Len(t, events, 50)
	for _, e := range events {
		assert.Equal(t, EventPaymentReceived, e.Type)
		assert.Equal(t, StatusPending, e.Payment.Status)
	}
}

func TestSupportedTokensReturnsCopy(t *testing.T) {
	f := newTestFisher()

	tokens := f.SupportedTokens()
	require.Equal(t, []string{"MATE", "USDC"}, tokens)
	tokens[0] = "DOGE"

	assert.Equal(t, []string{"MATE", "USDC"}, f.SupportedTokens())

	// The whitelist actually enforced at intake is untouched too.
	req := validRequest()
	req.Token = "DOGE"
	_, err := f.Intake(req)
	assert.Error(t, err)
	_, err = f.Intake(validRequest())
	assert.NoError(t, err)
}

func TestListPending(t *testing.T) {
	f := newTestFisher()
	id1, _ := f.Intake(validRequest())
	id2, _ := f.Intake(validRequest())

	f.MarkProcessing(id1)
	f.MarkCompleted(id1, "0x1")

	pending := f.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].ID)
}

func TestStats(t *testing.T) {
	f := newTestFisher()
	id1, _ := f.Intake(validRequest())
	id2, _ := f.Intake(validRequest())
	id3, _ := f.Intake(validRequest())

	f.MarkProcessing(id1)
	f.MarkCompleted(id1, "0x1")
	f.MarkProcessing(id2)
	f.MarkFailed(id2, "boom")
	f.MarkProcessing(id3)

	assert.Equal(t, Stats{Total: 3, Processing: 1, Completed: 1, Failed: 1}, f.Stats())
}

func TestBus(t *testing.T) {
	t.Run("delivery in registration order", func(t *testing.T) {
		bus := NewBus()
		var order []string
		bus.Subscribe(func(Event) { order = append(order, "first") })
		bus.Subscribe(func(Event) { order = append(order, "second") })

		bus.Publish(Event{Type: EventPaymentReceived})
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := NewBus()
		calls := 0
		id := bus.Subscribe(func(Event) { calls++ })

		bus.Publish(Event{})
		bus.Unsubscribe(id)
		bus.Publish(Event{})

		assert.Equal(t, 1, calls)
	})
}
