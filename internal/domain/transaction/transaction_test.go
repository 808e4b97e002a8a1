package transaction_test

import (
	"testing"
	"time"

	"github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(t *testing.T) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New("1001", 42)
	require.NoError(t, err)
	return tx
}

func TestNew_Valid(t *testing.T) {
	tx := newTx(t)
	assert.Equal(t, transaction.StateNew, tx.State)
	assert.Equal(t, "1001", tx.MerchantTxID)
	assert.Equal(t, int64(42), tx.OrderID)
	assert.Nil(t, tx.CompletedAt)
	assert.False(t, tx.IsTerminal())
}

func TestNew_Invalid(t *testing.T) {
	_, err := transaction.New("", 42)
	assert.Error(t, err)

	_, err = transaction.New("1001", 0)
	assert.Error(t, err)
}

func TestState_IsTerminal(t *testing.T) {
	terminal := []transaction.State{
		transaction.StateApproved, transaction.StateDeclined, transaction.StateCancelled,
		transaction.StateError, transaction.StateFailure, transaction.StateTimedOut,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []transaction.State{transaction.StateNew, transaction.StateRegistered, transaction.StateProcessing} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestParseState(t *testing.T) {
	s, ok := transaction.ParseState("APPROVED")
	assert.True(t, ok)
	assert.Equal(t, transaction.StateApproved, s)

	_, ok = transaction.ParseState("SOMETHING_NEW")
	assert.False(t, ok)
}

func TestMarkRegistered(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkRegistered("ABC123"))
	assert.Equal(t, transaction.StateRegistered, tx.State)
	assert.Equal(t, "ABC123", tx.CheckinCode)
}

func TestProcessingThenTimeout(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkProcessing(2*time.Second, 500*time.Millisecond))
	assert.Equal(t, 2*time.Second, tx.TTL)
	assert.Equal(t, 500*time.Millisecond, tx.PollInterval)

	require.NoError(t, tx.TransitionTo(transaction.StateTimedOut))
	assert.True(t, tx.IsTerminal())
	assert.NotNil(t, tx.CompletedAt)
}

func TestTimeoutOnlyFromProcessing(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkRegistered("ABC123"))
	err := tx.TransitionTo(transaction.StateTimedOut)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestMarkApproved(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkRegistered("ABC123"))
	require.NoError(t, tx.MarkApproved("ACQ-9"))
	assert.Equal(t, "ACQ-9", tx.AcquirerTxID)
	assert.True(t, tx.IsTerminal())
}

func TestTerminalIsImmutable(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkRegistered("ABC123"))
	require.NoError(t, tx.MarkApproved("ACQ-9"))

	for _, next := range []transaction.State{
		transaction.StateDeclined, transaction.StateCancelled, transaction.StateRegistered, transaction.StateApproved,
	} {
		err := tx.TransitionTo(next)
		assert.ErrorIs(t, err, errors.ErrInvalidStateTransition, next)
	}
	assert.Equal(t, transaction.StateApproved, tx.State)
	assert.Equal(t, "ACQ-9", tx.AcquirerTxID)
}

func TestMarkFailed(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkRegistered("ABC123"))
	require.NoError(t, tx.MarkFailed(transaction.StateDeclined, "OK", ""))
	assert.Equal(t, transaction.StateDeclined, tx.State)
	assert.Equal(t, "OK", tx.ResultCode)
}

func TestMarkFailed_RejectsNonFailingState(t *testing.T) {
	tx := newTx(t)
	assert.Error(t, tx.MarkFailed(transaction.StateApproved, "OK", ""))
	assert.Error(t, tx.MarkFailed(transaction.StateProcessing, "PROCESSING", ""))
	assert.Equal(t, transaction.StateNew, tx.State)
}

func TestAbandon(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tx *transaction.Transaction) error
		want  transaction.State
	}{
		{name: "new", setup: func(tx *transaction.Transaction) error { return nil }, want: transaction.StateError},
		{name: "registered", setup: func(tx *transaction.Transaction) error { return tx.MarkRegistered("ABC123") }, want: transaction.StateError},
		{name: "processing", setup: func(tx *transaction.Transaction) error { return tx.MarkProcessing(time.Second, time.Second) }, want: transaction.StateTimedOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newTx(t)
			require.NoError(t, tt.setup(tx))

			require.NoError(t, tx.Abandon())
			assert.Equal(t, tt.want, tx.State)
			assert.Equal(t, transaction.ErrorCodeAbandoned, tx.ErrorCode)
			assert.NotNil(t, tx.CompletedAt)
		})
	}
}

func TestAbandon_TerminalIsImmutable(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, tx.MarkApproved("ACQ-9"))

	err := tx.Abandon()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	assert.Equal(t, transaction.StateApproved, tx.State)
}
