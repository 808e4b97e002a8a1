package bluecode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/infrastructure/config"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	OpRegister = "register"
	OpStatus   = "status"
	OpCancel   = "cancel"
	OpRefund   = "refund"
	OpReceipt  = "receipt"
	OpToken    = "token"

	maxBodySize = 1 << 20
)

var operations = []string{OpRegister, OpStatus, OpCancel, OpRefund, OpReceipt, OpToken}

// errServerStatus marks 5xx responses so the breaker counts them as failures
// while the caller still sees the response.
var errServerStatus = errors.New("provider server error")

type rawResponse struct {
	code int
	body []byte
}

// Client maps the provider's REST operations onto Go calls. It holds no
// per-merchant state; callers pass the environment and bearer token.
//
// Only network failures, an open breaker, and unreadable bodies are returned
// as errors (wrapping ErrTransportFailure). Any HTTP response, whatever its
// status, comes back as a result for the caller to judge with OK().
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	userAgent  string
	breakers   map[string]*gobreaker.CircuitBreaker[*rawResponse]
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the provider hosts.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

func NewClient(cfg config.BluecodeConfig, logger zerolog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		endpoints: Endpoints{
			API:    cfg.APIBaseURL,
			Token:  cfg.TokenBaseURL,
			Portal: cfg.PortalBaseURL,
		},
		userAgent: cfg.UserAgent(),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*rawResponse], len(operations)),
		metrics:   metrics,
		logger:    observability.Component(logger, "bluecode-client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	threshold := cfg.CircuitBreakerThreshold
	if threshold == 0 {
		threshold = 10
	}
	for _, op := range operations {
		name := "bluecode_" + op
		c.breakers[op] = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= threshold && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		})
	}
	return c
}

// Register submits a new payment.
func (c *Client) Register(ctx context.Context, auth Auth, r RegisterRequest) (*RegisterResult, error) {
	form := url.Values{}
	form.Set("merchant_tx_id", r.MerchantTxID)
	form.Set("scheme", "blue_code")
	form.Set("slip_date_time", r.SlipDateTime.Format(time.RFC3339))
	form.Set("currency", r.Currency)
	form.Set("requested_amount", strconv.FormatInt(r.Amount, 10))
	form.Set("branch_ext_id", r.BranchID)
	form.Set("terminal", r.Terminal)
	form.Set("slip", r.Slip)
	form.Set("merchant_callback_url", r.CallbackURL)
	form.Set("return_url_success", r.ReturnURLSuccess)
	form.Set("return_url_failure", r.ReturnURLFailure)
	form.Set("return_url_cancel", r.ReturnURLCancel)
	form.Set("source", "ecommerce")

	raw, err := c.postForm(ctx, OpRegister, c.endpoints.api(auth.Sandbox, OpRegister), auth.AccessToken, form)
	if err != nil {
		return nil, err
	}
	res := &RegisterResult{}
	c.decode(OpRegister, raw, res)
	res.HTTPCode = raw.code
	return res, nil
}

// Status fetches the authoritative state of a payment.
func (c *Client) Status(ctx context.Context, auth Auth, merchantTxID string) (*StatusResult, error) {
	form := url.Values{}
	form.Set("merchant_tx_id", merchantTxID)

	raw, err := c.postForm(ctx, OpStatus, c.endpoints.api(auth.Sandbox, OpStatus), auth.AccessToken, form)
	if err != nil {
		return nil, err
	}
	res := &StatusResult{}
	c.decode(OpStatus, raw, res)
	res.HTTPCode = raw.code
	return res, nil
}

// Cancel asks the provider to abandon a payment and reports whether it
// accepted.
func (c *Client) Cancel(ctx context.Context, auth Auth, merchantTxID string) (bool, error) {
	form := url.Values{}
	form.Set("merchant_tx_id", merchantTxID)

	raw, err := c.postForm(ctx, OpCancel, c.endpoints.api(auth.Sandbox, OpCancel), auth.AccessToken, form)
	if err != nil {
		return false, err
	}
	res := &Envelope{}
	c.decode(OpCancel, raw, res)
	res.HTTPCode = raw.code
	return res.OK(), nil
}

// Refund returns amount minor units of a settled payment.
func (c *Client) Refund(ctx context.Context, auth Auth, acquirerTxID string, amount int64, reason string) (*RefundResult, error) {
	form := url.Values{}
	form.Set("acquirer_tx_id", acquirerTxID)
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("reason", reason)

	raw, err := c.postForm(ctx, OpRefund, c.endpoints.api(auth.Sandbox, OpRefund), auth.AccessToken, form)
	if err != nil {
		return nil, err
	}
	res := &RefundResult{}
	c.decode(OpRefund, raw, res)
	res.HTTPCode = raw.code
	return res, nil
}

// Receipt uploads a digital receipt and returns the HTTP status code.
func (c *Client) Receipt(ctx context.Context, auth Auth, r *ReceiptRequest) (int, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal receipt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.api(auth.Sandbox, OpReceipt), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build receipt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, auth.AccessToken)

	raw, err := c.send(OpReceipt, req)
	if err != nil {
		return 0, err
	}
	return raw.code, nil
}

// Token exchanges an authorization code or a refresh token.
func (c *Client) Token(ctx context.Context, sandbox bool, r TokenRequest) (*TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", r.GrantType())
	if r.Code != "" {
		form.Set("code", r.Code)
	} else {
		form.Set("refresh_token", r.RefreshToken)
	}
	form.Set("redirect_uri", r.RedirectURI)
	form.Set("client_id", r.ClientID)
	form.Set("client_secret", r.ClientSecret)

	raw, err := c.postForm(ctx, OpToken, c.endpoints.token(sandbox, OpToken), "", form)
	if err != nil {
		return nil, err
	}
	res := &TokenResult{}
	if raw.code == http.StatusOK {
		c.decode(OpToken, raw, res)
	}
	res.HTTPCode = raw.code
	return res, nil
}

// AuthorizeURL builds the merchant portal consent URL.
func (c *Client) AuthorizeURL(sandbox bool, clientID, redirectURI, state string) string {
	return c.endpoints.AuthorizeURL(sandbox, clientID, redirectURI, state)
}

func (c *Client) postForm(ctx context.Context, op, endpoint, token string, form url.Values) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req, token)
	return c.send(op, req)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) send(op string, req *http.Request) (*rawResponse, error) {
	start := time.Now()
	raw, err := c.breakers[op].Execute(func() (*rawResponse, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		out := &rawResponse{code: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return out, errServerStatus
		}
		return out, nil
	})
	c.metrics.ProviderDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, errServerStatus) {
		c.metrics.ProviderRequests.WithLabelValues(op, "transport_error").Inc()
		c.logger.Error().Err(err).Str("operation", op).Msg("provider request failed")
		return nil, fmt.Errorf("%s: %w: %w", op, domainErrors.ErrTransportFailure, err)
	}

	c.metrics.ProviderRequests.WithLabelValues(op, strconv.Itoa(raw.code)).Inc()
	c.logger.Debug().Str("operation", op).Int("http_code", raw.code).Dur("took", time.Since(start)).Msg("provider response")
	return raw, nil
}

// decode leaves dst zero-valued when the body is not JSON, which the OK
// predicate then treats as failure.
func (c *Client) decode(op string, raw *rawResponse, dst any) {
	if len(raw.body) == 0 {
		return
	}
	if err := json.Unmarshal(raw.body, dst); err != nil {
		c.logger.Warn().Err(err).Str("operation", op).Int("http_code", raw.code).Msg("undecodable provider response")
	}
}
