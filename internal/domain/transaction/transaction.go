package transaction

import (
	"time"

	"github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/google/uuid"
)

// State is the reconciliation state of a provider transaction.
type State string

const (
	StateNew        State = "NEW"
	StateRegistered State = "REGISTERED"
	StateProcessing State = "PROCESSING"
	StateApproved   State = "APPROVED"
	StateDeclined   State = "DECLINED"
	StateCancelled  State = "CANCELLED"
	StateError      State = "ERROR"
	StateFailure    State = "FAILURE"
	StateTimedOut   State = "TIMED_OUT"
)

var transitions = map[State][]State{
	StateNew: {
		StateRegistered,
		StateProcessing,
		StateApproved,
		StateDeclined,
		StateCancelled,
		StateError,
		StateFailure,
	},
	StateRegistered: {
		StateProcessing,
		StateApproved,
		StateDeclined,
		StateCancelled,
		StateError,
		StateFailure,
	},
	StateProcessing: {
		StateRegistered,
		StateApproved,
		StateDeclined,
		StateCancelled,
		StateError,
		StateFailure,
		StateTimedOut,
	},
	StateApproved:  {},
	StateDeclined:  {},
	StateCancelled: {},
	StateError:     {},
	StateFailure:   {},
	StateTimedOut:  {},
}

// IsTerminal reports whether no further transition is allowed from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateDeclined, StateCancelled, StateError, StateFailure, StateTimedOut:
		return true
	}
	return false
}

// ParseState maps a provider payment.state value onto a State. Unknown
// values return false.
func ParseState(s string) (State, bool) {
	st := State(s)
	if _, ok := transitions[st]; ok {
		return st, true
	}
	return "", false
}

// Transaction is one purchase attempt registered with the provider.
type Transaction struct {
	ID           uuid.UUID
	MerchantTxID string
	OrderID      int64
	State        State
	CheckinCode  string
	AcquirerTxID string
	TTL          time.Duration
	PollInterval time.Duration
	ResultCode   string
	ErrorCode    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// New creates a transaction in the NEW state.
func New(merchantTxID string, orderID int64) (*Transaction, error) {
	if merchantTxID == "" {
		return nil, errors.NewValidationError("merchant_tx_id", "cannot be empty")
	}
	if orderID <= 0 {
		return nil, errors.NewValidationError("order_id", "must be greater than 0")
	}
	now := time.Now()
	return &Transaction{
		ID:           uuid.New(),
		MerchantTxID: merchantTxID,
		OrderID:      orderID,
		State:        StateNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanTransitionTo checks if the transaction can move to the given state.
func (t *Transaction) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[t.State] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the transaction to next. Terminal transactions are
// immutable.
func (t *Transaction) TransitionTo(next State) error {
	if !t.CanTransitionTo(next) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.State)+" to "+string(next),
			errors.ErrInvalidStateTransition,
		)
	}

	t.State = next
	t.UpdatedAt = time.Now()
	if next.IsTerminal() {
		now := t.UpdatedAt
		t.CompletedAt = &now
	}
	return nil
}

// MarkRegistered records a successful registration.
func (t *Transaction) MarkRegistered(checkinCode string) error {
	if err := t.TransitionTo(StateRegistered); err != nil {
		return err
	}
	t.CheckinCode = checkinCode
	return nil
}

// MarkProcessing records the polling budget handed out by the provider.
func (t *Transaction) MarkProcessing(ttl, interval time.Duration) error {
	if err := t.TransitionTo(StateProcessing); err != nil {
		return err
	}
	t.TTL = ttl
	t.PollInterval = interval
	return nil
}

// MarkApproved records the settlement identifier.
func (t *Transaction) MarkApproved(acquirerTxID string) error {
	if err := t.TransitionTo(StateApproved); err != nil {
		return err
	}
	t.AcquirerTxID = acquirerTxID
	return nil
}

// MarkFailed moves the transaction to a failing terminal state and keeps the
// provider's result and error code.
func (t *Transaction) MarkFailed(state State, result, errorCode string) error {
	if !state.IsTerminal() || state == StateApproved {
		return errors.NewValidationError("state", "must be a failing terminal state")
	}
	if err := t.TransitionTo(state); err != nil {
		return err
	}
	t.ResultCode = result
	t.ErrorCode = errorCode
	return nil
}

// ErrorCodeAbandoned is recorded on attempts closed without a provider verdict.
const ErrorCodeAbandoned = "ABANDONED"

// Abandon closes an attempt that never reached a verdict. A polling attempt
// times out; any other open attempt ends in ERROR.
func (t *Transaction) Abandon() error {
	if t.State == StateProcessing {
		if err := t.TransitionTo(StateTimedOut); err != nil {
			return err
		}
		t.ErrorCode = ErrorCodeAbandoned
		return nil
	}
	return t.MarkFailed(StateError, "", ErrorCodeAbandoned)
}

// IsTerminal checks if the transaction reached a final verdict.
func (t *Transaction) IsTerminal() bool {
	return t.State.IsTerminal()
}
