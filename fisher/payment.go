package fisher

import "time"

// Status is a payment's lifecycle state. Transitions are monotonic along
// pending -> processing -> {completed | failed}; terminal states never
// change again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is the immutable input to Intake.
type Request struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Amount   string            `json:"amount"`
	Token    string            `json:"token"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Payment is a registered transfer request with a lifecycle status. The
// registry owns the canonical copy; callers always receive clones.
type Payment struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Amount    string            `json:"amount"`
	Token     string            `json:"token"`
	Status    Status            `json:"status"`
	TxHash    string            `json:"txHash,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *Payment) clone() *Payment {
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
