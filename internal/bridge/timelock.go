package bridge

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TimelockRequest is one deferred privileged call. executed and canceled are
// mutually exclusive terminal states; the delay captured at schedule time is
// the one that gates execution even if the governor's delay changes later.
type TimelockRequest struct {
	ID        string
	Target    string
	Value     *big.Int
	Payload   []byte
	Delay     time.Duration
	CreatedAt time.Time

	Executed   bool
	Canceled   bool
	ExecutedAt *time.Time
	CanceledAt *time.Time
}

// ReadyAt returns the first instant at which the request may execute.
func (r *TimelockRequest) ReadyAt() time.Time {
	return r.CreatedAt.Add(r.Delay)
}

func (r *TimelockRequest) clone() *TimelockRequest {
	c := *r
	if r.Value != nil {
		c.Value = new(big.Int).Set(r.Value)
	}
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}

// Timelock schedules privileged operations behind a mandatory delay.
// Authorization is the engine's concern; the governor only owns the state
// machine Scheduled -> Executed | Canceled.
type Timelock struct {
	delay    time.Duration
	requests map[string]*TimelockRequest
	order    []string
}

func NewTimelock(delay time.Duration) *Timelock {
	return &Timelock{
		delay:    delay,
		requests: make(map[string]*TimelockRequest),
	}
}

// Delay returns the delay applied to newly scheduled requests.
func (t *Timelock) Delay() time.Duration {
	return t.delay
}

// SetDelay changes the delay for future schedules. Pending requests keep the
// delay they were scheduled with.
func (t *Timelock) SetDelay(d time.Duration) {
	t.delay = d
}

// Schedule records a deferred call and returns a copy of the stored request.
func (t *Timelock) Schedule(target string, value *big.Int, payload []byte, now time.Time) *TimelockRequest {
	req := &TimelockRequest{
		ID:        uuid.New().String(),
		Target:    target,
		Value:     new(big.Int).Set(value),
		Payload:   append([]byte(nil), payload...),
		Delay:     t.delay,
		CreatedAt: now,
	}
	t.requests[req.ID] = req
	t.order = append(t.order, req.ID)
	return req.clone()
}

// Execute runs op for a scheduled request once its delay elapsed. The
// executed flag flips before op runs, so a reentrant execute on the same id
// fails; if op itself fails the flip is rolled back and the whole call
// aborts with no state change.
func (t *Timelock) Execute(id string, now time.Time, op func(target string, value *big.Int, payload []byte) error) (*TimelockRequest, error) {
	req, ok := t.requests[id]
	if !ok {
		return nil, ErrTimelockNotFound
	}
	if req.Executed {
		return nil, ErrTimelockAlreadyExecuted
	}
	if req.Canceled {
		return nil, ErrTimelockAlreadyCanceled
	}
	if now.Before(req.ReadyAt()) {
		return nil, ErrTimelockNotReady
	}

	req.Executed = true
	if err := op(req.Target, req.Value, req.Payload); err != nil {
		req.Executed = false
		return nil, err
	}
	at := now
	req.ExecutedAt = &at
	return req.clone(), nil
}

// Cancel terminates a scheduled request before execution. Irrevocable.
func (t *Timelock) Cancel(id string, now time.Time) (*TimelockRequest, error) {
	req, ok := t.requests[id]
	if !ok {
		return nil, ErrTimelockNotFound
	}
	if req.Executed {
		return nil, ErrTimelockAlreadyExecuted
	}
	if req.Canceled {
		return nil, ErrTimelockAlreadyCanceled
	}
	req.Canceled = true
	at := now
	req.CanceledAt = &at
	return req.clone(), nil
}

// Get returns a copy of the request with the given id.
func (t *Timelock) Get(id string) (*TimelockRequest, bool) {
	req, ok := t.requests[id]
	if !ok {
		return nil, false
	}
	return req.clone(), true
}

// List returns copies of all requests in schedule order.
func (t *Timelock) List() []*TimelockRequest {
	out := make([]*TimelockRequest, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.requests[id].clone())
	}
	return out
}

// Restore re-adds a persisted request at boot, keeping its original id and
// terminal flags.
func (t *Timelock) Restore(req *TimelockRequest) {
	t.requests[req.ID] = req.clone()
	t.order = append(t.order, req.ID)
}
