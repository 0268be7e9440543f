package fisher

// Store abstracts payment storage so the registry's state machine is
// independent of the backing container. The registry clones payments at its
// own boundary; implementations hand back their canonical records.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces a payment by id.
	Put(p *Payment)

	// Get returns the payment with the given id, if present.
	Get(id string) (*Payment, bool)

	// ListByStatus returns all payments currently in the given status,
	// in no guaranteed order.
	ListByStatus(status Status) []*Payment

	// Counts returns the number of payments per status.
	Counts() map[Status]int

	// Len returns the total number of payments.
	Len() int
}
