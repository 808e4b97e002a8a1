package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cassiomorais/bluecode/internal/application/gateway"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/testutil"
	"github.com/cassiomorais/bluecode/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu          sync.Mutex
	auths       []bluecode.Auth
	statusErrs  []error
	statusCalls int
	cancelCalls int
}

func (f *fakeClient) record(auth bluecode.Auth) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths = append(f.auths, auth)
}

func (f *fakeClient) Register(ctx context.Context, auth bluecode.Auth, r bluecode.RegisterRequest) (*bluecode.RegisterResult, error) {
	f.record(auth)
	return testutil.RegisterOK("checkin-" + r.MerchantTxID), nil
}

func (f *fakeClient) Status(ctx context.Context, auth bluecode.Auth, merchantTxID string) (*bluecode.StatusResult, error) {
	f.record(auth)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return testutil.StatusOf("APPROVED", "acq-1"), nil
}

func (f *fakeClient) Cancel(ctx context.Context, auth bluecode.Auth, merchantTxID string) (bool, error) {
	f.record(auth)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return false, domainErrors.ErrTransportFailure
}

func (f *fakeClient) Refund(ctx context.Context, auth bluecode.Auth, acquirerTxID string, amount int64, reason string) (*bluecode.RefundResult, error) {
	f.record(auth)
	return &bluecode.RefundResult{Envelope: bluecode.Envelope{HTTPCode: 200, Result: bluecode.ResultOK}}, nil
}

func (f *fakeClient) Receipt(ctx context.Context, auth bluecode.Auth, r *bluecode.ReceiptRequest) (int, error) {
	f.record(auth)
	return 200, nil
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) GetValidAccessToken(ctx context.Context, force bool, code string) (string, error) {
	f.calls++
	return f.token, f.err
}

func noDelay(attempts uint) retry.Config {
	return retry.Config{MaxAttempts: attempts}
}

func TestGateway_AttachesTokenAndEnvironment(t *testing.T) {
	client := &fakeClient{}
	tokens := &fakeTokens{token: "access-1"}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), tokens, client, noDelay(1), zerolog.Nop())

	reg, err := g.Register(context.Background(), bluecode.RegisterRequest{MerchantTxID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "checkin-42", reg.CheckinCode())

	code, err := g.Receipt(context.Background(), &bluecode.ReceiptRequest{})
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	require.Len(t, client.auths, 2)
	for _, a := range client.auths {
		assert.Equal(t, bluecode.Auth{Sandbox: true, AccessToken: "access-1"}, a)
	}
	assert.Equal(t, 2, tokens.calls)
}

func TestGateway_InvalidMerchantStopsBeforeToken(t *testing.T) {
	cfg := testutil.NewTestMerchant()
	cfg.BranchID = ""
	client := &fakeClient{}
	tokens := &fakeTokens{token: "access-1"}
	g := gateway.New(testutil.NewMockSettingsStore(cfg), tokens, client, noDelay(1), zerolog.Nop())

	_, err := g.Refund(context.Background(), "acq-1", 100, "")
	assert.ErrorIs(t, err, domainErrors.ErrConfigInvalid)
	assert.Zero(t, tokens.calls)
	assert.Empty(t, client.auths)
}

func TestGateway_MerchantLoadError(t *testing.T) {
	store := testutil.NewMockSettingsStore(testutil.NewTestMerchant())
	store.MerchantFunc = func(ctx context.Context) (*settings.MerchantConfig, error) {
		return nil, errors.New("db down")
	}
	g := gateway.New(store, &fakeTokens{}, &fakeClient{}, noDelay(1), zerolog.Nop())

	_, err := g.Merchant(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load merchant settings")
}

func TestGateway_AuthFailurePropagates(t *testing.T) {
	authErr := domainErrors.AuthFailure(domainErrors.ErrExchangeFailed, nil)
	client := &fakeClient{}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{err: authErr}, client, noDelay(1), zerolog.Nop())

	_, err := g.Status(context.Background(), "42")
	assert.ErrorIs(t, err, domainErrors.ErrAuthFailure)
	assert.Zero(t, client.statusCalls)
}

func TestGateway_StatusRetriesTransportFailures(t *testing.T) {
	client := &fakeClient{statusErrs: []error{
		fmt.Errorf("%w: connection reset", domainErrors.ErrTransportFailure),
		fmt.Errorf("%w: connection reset", domainErrors.ErrTransportFailure),
	}}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{token: "t"}, client, noDelay(3), zerolog.Nop())

	res, err := g.Status(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", res.PaymentState())
	assert.Equal(t, 3, client.statusCalls)
}

func TestGateway_StatusGivesUpAfterMaxAttempts(t *testing.T) {
	client := &fakeClient{statusErrs: []error{
		domainErrors.ErrTransportFailure,
		domainErrors.ErrTransportFailure,
		domainErrors.ErrTransportFailure,
	}}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{token: "t"}, client, noDelay(2), zerolog.Nop())

	_, err := g.Status(context.Background(), "42")
	assert.ErrorIs(t, err, domainErrors.ErrTransportFailure)
	assert.Equal(t, 2, client.statusCalls)
}

func TestGateway_StatusDoesNotRetryOtherErrors(t *testing.T) {
	client := &fakeClient{statusErrs: []error{errors.New("boom")}}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{token: "t"}, client, noDelay(3), zerolog.Nop())

	_, err := g.Status(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, 1, client.statusCalls)
}

func TestGateway_StatusOnceMakesOneCall(t *testing.T) {
	client := &fakeClient{statusErrs: []error{
		fmt.Errorf("%w: connection reset", domainErrors.ErrTransportFailure),
	}}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{token: "t"}, client, noDelay(3), zerolog.Nop())

	_, err := g.StatusOnce(context.Background(), "42")
	assert.ErrorIs(t, err, domainErrors.ErrTransportFailure)
	assert.Equal(t, 1, client.statusCalls)

	res, err := g.StatusOnce(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", res.PaymentState())
	assert.Equal(t, 2, client.statusCalls)
}

func TestGateway_CancelIsNotRetried(t *testing.T) {
	client := &fakeClient{}
	g := gateway.New(testutil.NewMockSettingsStore(testutil.NewTestMerchant()), &fakeTokens{token: "t"}, client, noDelay(3), zerolog.Nop())

	ok, err := g.Cancel(context.Background(), "42")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domainErrors.ErrTransportFailure)
	assert.Equal(t, 1, client.cancelCalls)
}
