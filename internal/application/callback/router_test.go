package callback_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/bluecode/internal/application/callback"
	"github.com/cassiomorais/bluecode/internal/application/messages"
	"github.com/cassiomorais/bluecode/internal/application/receipt"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orders *testutil.MockOrderStore
	txRepo *testutil.MockTransactionRepository
	gw     *testutil.MockGateway
	locker *testutil.MockLocker
	router *callback.Router
}

func newFixture(t *testing.T, replies ...*bluecode.StatusResult) *fixture {
	t.Helper()
	f := &fixture{
		orders: testutil.NewMockOrderStore(),
		txRepo: testutil.NewMockTransactionRepository(),
		gw:     testutil.NewMockGateway(),
		locker: testutil.NewMockLocker(),
	}
	f.orders.AddOrder(testutil.NewTestOrder(42, "25.50"))
	f.gw.StatusReplies = replies
	tx := testutil.NewTestTransaction("42", 42, transaction.StateRegistered)
	require.NoError(t, f.txRepo.Create(context.Background(), tx))

	shop := receipt.Shop{Name: "Acme", URL: "https://shop.test"}
	f.router = callback.NewRouter(f.orders, f.txRepo, f.gw, f.locker, shop, messages.New("en"), nil, zerolog.Nop())
	return f
}

func (f *fixture) txState(t *testing.T) transaction.State {
	t.Helper()
	tx, err := f.txRepo.GetByMerchantTxID(context.Background(), "42")
	require.NoError(t, err)
	return tx.State
}

func statusWithCode(state, code string) *bluecode.StatusResult {
	s := testutil.StatusOf(state, "acq-1")
	s.Payment.Code = code
	return s
}

func TestHandleRedirect_Approved(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

	v, err := f.router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)

	assert.True(t, v.Applied)
	assert.Equal(t, "APPROVED", v.State)
	assert.Empty(t, v.Notice)
	assert.Equal(t, "https://shop.test/checkout/order-received/", v.RedirectURL)

	o := f.orders.Order(42)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, "acq-1", o.TransactionID)
	assert.Equal(t, []string{"Order successfully paid with Bluecode, Transaction ID acq-1"}, f.orders.Notes(42))

	require.Len(t, f.gw.Receipts, 1)
	rc := f.gw.Receipts[0]
	assert.Equal(t, "acq-1", rc.AcquirerTxID)
	assert.Equal(t, "branch-1", rc.BranchExtID)
	assert.Equal(t, "Thank you for your purchase!", rc.Receipt.Notes)

	assert.Equal(t, transaction.StateApproved, f.txState(t))
	assert.Equal(t, 1, f.locker.Acquired())
}

func TestHandleRedirect_ReceiptFailureLeavesNote(t *testing.T) {
	tests := []struct {
		name string
		code int
		err  error
	}{
		{name: "rejected", code: 500},
		{name: "transport failure", err: domainErrors.ErrTransportFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
			f.gw.ReceiptCode = tt.code
			f.gw.ReceiptErr = tt.err

			v, err := f.router.HandleRedirect(context.Background(), 42, "success")
			require.NoError(t, err)
			assert.True(t, v.Applied)
			assert.Equal(t, order.StatusProcessing, f.orders.Order(42).Status)
			assert.Equal(t, []string{
				"Order successfully paid with Bluecode, Transaction ID acq-1",
				"Receipt could not be created, transaction ID acq-1",
			}, f.orders.Notes(42))
		})
	}
}

func TestHandleRedirect_FailedPayments(t *testing.T) {
	tests := []struct {
		name       string
		reply      *bluecode.StatusResult
		wantNotice string
		wantNote   string
		wantState  transaction.State
	}{
		{
			name:       "declined",
			reply:      testutil.StatusOf("DECLINED", "acq-1"),
			wantNotice: "Order payment via Bluecode declined",
			wantNote:   "Order payment via Bluecode declined, Transaction ID acq-1",
			wantState:  transaction.StateDeclined,
		},
		{
			name:       "cancelled",
			reply:      testutil.StatusOf("CANCELLED", "acq-1"),
			wantNotice: "Order payment via Bluecode cancelled",
			wantNote:   "Order payment via Bluecode cancelled, Transaction ID acq-1",
			wantState:  transaction.StateCancelled,
		},
		{
			name:       "error with code",
			reply:      statusWithCode("ERROR", "LIMIT_EXCEEDED"),
			wantNotice: "Order payment via Bluecode failed",
			wantNote:   "Order payment via Bluecode failed, errorcode 'LIMIT_EXCEEDED'",
			wantState:  transaction.StateError,
		},
		{
			name:       "failure without code",
			reply:      testutil.StatusOf("FAILURE", ""),
			wantNotice: "Order payment via Bluecode failed",
			wantNote:   "Order payment via Bluecode failed, errorcode 'General failure'",
			wantState:  transaction.StateFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.reply)

			v, err := f.router.HandleRedirect(context.Background(), 42, "fail")
			require.NoError(t, err)

			assert.True(t, v.Applied)
			assert.Equal(t, tt.wantNotice, v.Notice)
			assert.Equal(t, "https://shop.test/cart/", v.RedirectURL)
			assert.Equal(t, order.StatusFailed, f.orders.Order(42).Status)
			assert.Equal(t, []string{tt.wantNote}, f.orders.Notes(42))
			assert.Equal(t, tt.wantState, f.txState(t))
			assert.Empty(t, f.gw.Receipts)
		})
	}
}

func TestHandleRedirect_OpenPaymentOnlyNotes(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("REGISTERED", ""))

	v, err := f.router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)

	assert.False(t, v.Applied)
	assert.Equal(t, "https://shop.test/checkout/order-received/", v.RedirectURL)
	assert.Equal(t, order.StatusPending, f.orders.Order(42).Status)
	assert.Equal(t, []string{"Order status is REGISTERED"}, f.orders.Notes(42))
	assert.Equal(t, transaction.StateRegistered, f.txState(t))
}

func TestHandleRedirect_BuyerCancelledWhilePaymentOpen(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("REGISTERED", ""))

	v, err := f.router.HandleRedirect(context.Background(), 42, "cancel")
	require.NoError(t, err)

	assert.False(t, v.Applied)
	assert.Equal(t, "REGISTERED", v.State)
	assert.Equal(t, "Bluecode payment was cancelled by user", v.Notice)
	assert.Equal(t, "https://shop.test/cart/", v.RedirectURL)
	assert.Empty(t, f.gw.Cancelled)
	assert.Equal(t, 1, f.gw.StatusCalls)
	assert.Equal(t, order.StatusPending, f.orders.Order(42).Status)
	assert.Equal(t, []string{"Order status is REGISTERED", "Order cancelled by customer"}, f.orders.Notes(42))
	assert.Equal(t, transaction.StateRegistered, f.txState(t))
}

func TestHandleRedirect_BuyerCancelFollowsProviderStatus(t *testing.T) {
	tests := []struct {
		name       string
		reply      *bluecode.StatusResult
		wantStatus order.Status
		wantNotice string
		wantURL    string
	}{
		{
			name:       "paid anyway",
			reply:      testutil.StatusOf("APPROVED", "acq-1"),
			wantStatus: order.StatusProcessing,
			wantURL:    "https://shop.test/checkout/order-received/",
		},
		{
			name:       "cancelled at provider",
			reply:      testutil.StatusOf("CANCELLED", "acq-1"),
			wantStatus: order.StatusFailed,
			wantNotice: "Order payment via Bluecode cancelled",
			wantURL:    "https://shop.test/cart/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.reply)

			v, err := f.router.HandleRedirect(context.Background(), 42, "cancel")
			require.NoError(t, err)

			assert.True(t, v.Applied)
			assert.Equal(t, tt.wantNotice, v.Notice)
			assert.Equal(t, tt.wantURL, v.RedirectURL)
			assert.Equal(t, tt.wantStatus, f.orders.Order(42).Status)
			assert.Empty(t, f.gw.Cancelled)
		})
	}
}

func TestHandleRedirect_BuyerCancelledAfterPayment(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
	o := testutil.NewTestOrder(42, "25.50")
	o.Status = order.StatusCompleted
	f.orders.AddOrder(o)

	v, err := f.router.HandleRedirect(context.Background(), 42, "cancel")
	require.NoError(t, err)

	assert.False(t, v.Applied)
	assert.Empty(t, v.Notice)
	assert.Equal(t, "https://shop.test/checkout/order-received/", v.RedirectURL)
	assert.Empty(t, f.gw.Cancelled)
	assert.Zero(t, f.gw.StatusCalls)
	assert.Empty(t, f.orders.Notes(42))
	assert.Equal(t, order.StatusCompleted, f.orders.Order(42).Status)
}

func TestHandleRedirect_BuyerCancelStatusUnavailable(t *testing.T) {
	f := newFixture(t)
	f.gw.StatusErr = domainErrors.ErrTransportFailure

	v, err := f.router.HandleRedirect(context.Background(), 42, "cancel")
	require.NoError(t, err)

	assert.False(t, v.Applied)
	assert.Equal(t, "Bluecode payment was cancelled by user", v.Notice)
	assert.Equal(t, "https://shop.test/cart/", v.RedirectURL)
	assert.Empty(t, f.gw.Cancelled)
	assert.Equal(t, order.StatusPending, f.orders.Order(42).Status)
}

func TestHandleRedirect_StatusUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		reply *bluecode.StatusResult
		err   error
	}{
		{name: "transport failure", err: domainErrors.ErrTransportFailure},
		{name: "provider error", reply: testutil.StatusFailure("ERROR", "UNKNOWN_TX")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.reply != nil {
				f.gw.StatusReplies = []*bluecode.StatusResult{tt.reply}
			}
			f.gw.StatusErr = tt.err

			v, err := f.router.HandleRedirect(context.Background(), 42, "success")
			require.NoError(t, err)
			assert.False(t, v.Applied)
			assert.Equal(t, "Bluecode payment failed", v.Notice)
			assert.Equal(t, "https://shop.test/cart/", v.RedirectURL)
			assert.Equal(t, order.StatusPending, f.orders.Order(42).Status)
			assert.Empty(t, f.orders.Notes(42))
		})
	}
}

func TestHandleRedirect_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.HandleRedirect(context.Background(), 7, "success")
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotFound)
}

func TestHandleRedirect_LockUnavailable(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
	f.locker.AcquireErr = errors.New("redis down")

	v, err := f.router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)
	assert.True(t, v.Applied)
}

func TestHandleNotify_Approved(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

	v, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42","acquirer_tx_id":"acq-1","state":"APPROVED"}`))
	require.NoError(t, err)
	assert.True(t, v.Applied)
	assert.Empty(t, v.Notice)
	assert.Equal(t, order.StatusProcessing, f.orders.Order(42).Status)
	assert.Len(t, f.gw.Receipts, 1)
}

func TestHandleNotify_UsesBodyAcquirerIDAsFallback(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", ""))

	_, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42","acquirer_tx_id":"acq-body"}`))
	require.NoError(t, err)
	assert.Equal(t, "acq-body", f.orders.Order(42).TransactionID)
}

func TestHandleNotify_FailedPaymentsCarryNoNotice(t *testing.T) {
	tests := []struct {
		name     string
		reply    *bluecode.StatusResult
		wantNote string
	}{
		{
			name:     "cancelled",
			reply:    testutil.StatusOf("CANCELLED", "acq-1"),
			wantNote: "Order payment via Bluecode cancelled, Transaction ID acq-1",
		},
		{
			name:     "error without code",
			reply:    testutil.StatusOf("ERROR", ""),
			wantNote: "Order payment via Bluecode failed, errorcode 'GENERAL FAILURE'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.reply)

			v, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
			require.NoError(t, err)
			assert.Empty(t, v.Notice)
			assert.Equal(t, order.StatusFailed, f.orders.Order(42).Status)
			assert.Equal(t, []string{tt.wantNote}, f.orders.Notes(42))
		})
	}
}

func TestHandleNotify_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `merchant_tx_id=42`},
		{name: "empty object", body: `{}`},
		{name: "numeric id", body: `{"merchant_tx_id":42}`},
		{name: "empty id", body: `{"merchant_tx_id":""}`},
		{name: "not an order id", body: `{"merchant_tx_id":"abc"}`},
		{name: "array", body: `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

			_, err := f.router.HandleNotify(context.Background(), []byte(tt.body))
			var ve *domainErrors.ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.Zero(t, f.gw.StatusCalls)
		})
	}
}

func TestHandleNotify_StatusUnavailable(t *testing.T) {
	f := newFixture(t)
	f.gw.StatusErr = domainErrors.ErrTransportFailure

	_, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	assert.ErrorIs(t, err, domainErrors.ErrTransportFailure)
	assert.Equal(t, order.StatusPending, f.orders.Order(42).Status)
}

func TestHandleNotify_UnknownOrder(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

	_, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"99"}`))
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotFound)
}

func TestHandleNotify_CompletedOrderIsNotPaidTwice(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
	o := testutil.NewTestOrder(42, "25.50")
	o.Status = order.StatusCompleted
	o.TransactionID = "acq-1"
	f.orders.AddOrder(o)

	var markPaid int
	f.orders.MarkPaidFunc = func(ctx context.Context, id int64, acquirerTxID string) error {
		markPaid++
		return domainErrors.ErrOrderNotPending
	}

	v, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)
	assert.False(t, v.Applied)
	assert.Equal(t, 1, markPaid)
	assert.Empty(t, f.gw.Receipts)
	assert.Equal(t, order.StatusCompleted, f.orders.Order(42).Status)
}

func TestCallbacks_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

	first, err := f.router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)
	second, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)
	third, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, second.Applied)
	assert.False(t, third.Applied)
	assert.Len(t, f.gw.Receipts, 1)
	assert.Equal(t, order.StatusProcessing, f.orders.Order(42).Status)
	assert.Len(t, f.orders.Notes(42), 3)
}

func TestCallbacks_LateFailureDoesNotOverwritePaidOrder(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"), testutil.StatusOf("DECLINED", "acq-1"))

	_, err := f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)
	v, err := f.router.HandleRedirect(context.Background(), 42, "fail")
	require.NoError(t, err)

	assert.False(t, v.Applied)
	assert.Equal(t, order.StatusProcessing, f.orders.Order(42).Status)
	assert.Equal(t, transaction.StateApproved, f.txState(t))
}

func TestCallbacks_ConcurrentChannelsApplyOnce(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

	var wg sync.WaitGroup
	verdicts := make([]*callback.Verdict, 8)
	for i := range verdicts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var v *callback.Verdict
			var err error
			if i%2 == 0 {
				v, err = f.router.HandleRedirect(context.Background(), 42, "success")
			} else {
				v, err = f.router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
			}
			assert.NoError(t, err)
			verdicts[i] = v
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, v := range verdicts {
		if v != nil && v.Applied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Len(t, f.gw.Receipts, 1)
	assert.Equal(t, 8, f.locker.Acquired())
}

func TestResync(t *testing.T) {
	t.Run("open payment stays quiet", func(t *testing.T) {
		f := newFixture(t, testutil.StatusOf("REGISTERED", ""))

		v, err := f.router.Resync(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, v.Applied)
		assert.Empty(t, f.orders.Notes(42))
	})

	t.Run("approved payment is applied", func(t *testing.T) {
		f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))

		v, err := f.router.Resync(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, v.Applied)
		assert.Equal(t, order.StatusProcessing, f.orders.Order(42).Status)
		assert.Equal(t, transaction.StateApproved, f.txState(t))
	})

	t.Run("status error is returned", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.router.Resync(context.Background(), 42)
		assert.ErrorIs(t, err, domainErrors.ErrTransportFailure)
	})
}

func TestCallbacks_TerminalTransactionUntouched(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
	tx, err := f.txRepo.GetByMerchantTxID(context.Background(), "42")
	require.NoError(t, err)
	tx.State = transaction.StateTimedOut
	require.NoError(t, f.txRepo.Update(context.Background(), tx))

	v, err := f.router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)
	assert.True(t, v.Applied)
	assert.Equal(t, transaction.StateTimedOut, f.txState(t))
}

func TestCallbacks_MissingTransactionRecordIsTolerated(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("DECLINED", "acq-1"))
	f.orders.AddOrder(testutil.NewTestOrder(43, "5.00"))

	v, err := f.router.HandleRedirect(context.Background(), 43, "fail")
	require.NoError(t, err)
	assert.True(t, v.Applied)
	assert.Equal(t, order.StatusFailed, f.orders.Order(43).Status)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []callback.Event
	err    error
}

func (p *recordingPublisher) PublishVerdict(ctx context.Context, e callback.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestCallbacks_PublishesAppliedVerdictsOnly(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("APPROVED", "acq-1"))
	pub := &recordingPublisher{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	router := callback.NewRouter(f.orders, f.txRepo, f.gw, f.locker, receipt.Shop{}, messages.New("en"), nil, zerolog.Nop(),
		callback.WithEvents(pub),
		callback.WithClock(func() time.Time { return at }),
	)

	_, err := router.HandleRedirect(context.Background(), 42, "success")
	require.NoError(t, err)
	_, err = router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, callback.Event{
		OrderID:      42,
		MerchantTxID: "42",
		AcquirerTxID: "acq-1",
		State:        "APPROVED",
		Channel:      callback.ChannelRedirect,
		At:           at,
	}, pub.events[0])
}

func TestCallbacks_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, testutil.StatusOf("DECLINED", "acq-1"))
	pub := &recordingPublisher{err: errors.New("stream unavailable")}
	router := callback.NewRouter(f.orders, f.txRepo, f.gw, nil, receipt.Shop{}, messages.New("en"), nil, zerolog.Nop(), callback.WithEvents(pub))

	v, err := router.HandleNotify(context.Background(), []byte(`{"merchant_tx_id":"42"}`))
	require.NoError(t, err)
	assert.True(t, v.Applied)
	assert.Len(t, pub.events, 1)
}
