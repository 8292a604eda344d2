package core

import "time"

// OpState is one of the six states an Operation can occupy.
type OpState string

const (
	StateQueued     OpState = "queued"
	StateInProgress OpState = "in_progress"
	StateCompleted  OpState = "completed"
	StateFailed     OpState = "failed"
	StateCancelled  OpState = "cancelled"
	StateRecovering OpState = "recovering"
)

func (s OpState) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Operation is one tracked unit of work inside a session (spec.md §3).
type Operation struct {
	OpID        string     `json:"op_id"`
	OpType      string     `json:"op_type"`
	State       OpState    `json:"state"`
	Args        ValueMap   `json:"args,omitempty"`
	Result      *Value     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	ParentOpID  string     `json:"parent_op_id,omitempty"`
	Metadata    ValueMap   `json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (o *Operation) clone() *Operation {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Result != nil {
		r := *o.Result
		cp.Result = &r
	}
	if o.StartedAt != nil {
		t := *o.StartedAt
		cp.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// transition validates and applies one edge of the state machine in
// spec.md §4.1, touching nothing on an invalid edge.
func (o *Operation) transition(to OpState, now time.Time) error {
	allowed := map[OpState][]OpState{
		StateQueued:     {StateInProgress, StateCancelled},
		StateRecovering: {StateInProgress, StateCancelled},
		StateInProgress: {StateCompleted, StateFailed, StateRecovering},
		StateFailed:     {StateQueued},
	}

	valid := false
	for _, s := range allowed[o.State] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return invalidTransition(string(o.State) + " -> " + string(to))
	}

	o.State = to
	o.UpdatedAt = now
	if to == StateInProgress && o.StartedAt == nil {
		o.StartedAt = &now
	}
	if to.terminal() {
		o.CompletedAt = &now
	}
	return nil
}
