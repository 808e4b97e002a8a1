package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/shopspring/decimal"
)

// --- Order Store Mock ---

// MockOrderStore is an in-memory order.Store.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	notes  map[int64][]string

	GetFunc       func(ctx context.Context, id int64) (*order.Order, error)
	SetStatusFunc func(ctx context.Context, id int64, status order.Status) error
	MarkPaidFunc  func(ctx context.Context, id int64, acquirerTxID string) error
	AddNoteFunc   func(ctx context.Context, id int64, text string) error
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders: make(map[int64]*order.Order),
		notes:  make(map[int64][]string),
	}
}

// AddOrder seeds the store.
func (m *MockOrderStore) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

// Order returns a copy of the stored order for assertions.
func (m *MockOrderStore) Order(id int64) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// Notes returns the notes added to an order.
func (m *MockOrderStore) Notes(id int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[id]...)
}

// ListNotes returns the notes added to an order as order history entries.
func (m *MockOrderStore) ListNotes(ctx context.Context, id int64) ([]order.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]order.Note, 0, len(m.notes[id]))
	for _, text := range m.notes[id] {
		notes = append(notes, order.Note{OrderID: id, Text: text})
	}
	return notes, nil
}

func (m *MockOrderStore) get(id int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderStore) GetTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return decimal.Zero, err
	}
	return o.Total, nil
}

func (m *MockOrderStore) GetCustomerID(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return o.CustomerID, nil
}

func (m *MockOrderStore) GetItems(ctx context.Context, id int64) ([]order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return append([]order.Item(nil), o.Items...), nil
}

func (m *MockOrderStore) SetStatus(ctx context.Context, id int64, status order.Status) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return err
	}
	if o.Status != order.StatusPending {
		return domainErrors.ErrOrderNotPending
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MockOrderStore) MarkPaid(ctx context.Context, id int64, acquirerTxID string) error {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, id, acquirerTxID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return err
	}
	if o.Status != order.StatusPending {
		return domainErrors.ErrOrderNotPending
	}
	now := time.Now()
	o.Status = order.StatusProcessing
	o.TransactionID = acquirerTxID
	o.PaidAt = &now
	o.UpdatedAt = now
	return nil
}

func (m *MockOrderStore) AddNote(ctx context.Context, id int64, text string) error {
	if m.AddNoteFunc != nil {
		return m.AddNoteFunc(ctx, id, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return err
	}
	m.notes[id] = append(m.notes[id], text)
	return nil
}

func (m *MockOrderStore) GetReturnURL(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return "", err
	}
	return o.ReturnURL, nil
}

func (m *MockOrderStore) GetCancelURL(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return "", err
	}
	return o.CancelURL, nil
}

// --- Settings Store Mock ---

// MockSettingsStore is an in-memory settings.Store.
type MockSettingsStore struct {
	mu  sync.Mutex
	cfg *settings.MerchantConfig

	MerchantFunc func(ctx context.Context) (*settings.MerchantConfig, error)
}

func NewMockSettingsStore(cfg *settings.MerchantConfig) *MockSettingsStore {
	return &MockSettingsStore{cfg: cfg}
}

func (m *MockSettingsStore) Merchant(ctx context.Context) (*settings.MerchantConfig, error) {
	if m.MerchantFunc != nil {
		return m.MerchantFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return &settings.MerchantConfig{}, nil
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *MockSettingsStore) SaveMerchant(ctx context.Context, cfg *settings.MerchantConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.cfg = &cp
	return nil
}

// --- Credential Repository Mock ---

// MockCredentialRepository is an in-memory settings.CredentialRepository
// that counts saves.
type MockCredentialRepository struct {
	mu        sync.Mutex
	cred      *settings.Credential
	saveCalls int

	GetFunc  func(ctx context.Context) (*settings.Credential, error)
	SaveFunc func(ctx context.Context, c *settings.Credential) error
}

func NewMockCredentialRepository(c *settings.Credential) *MockCredentialRepository {
	return &MockCredentialRepository{cred: c}
}

func (m *MockCredentialRepository) GetCredential(ctx context.Context) (*settings.Credential, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return &cp, nil
}

func (m *MockCredentialRepository) SaveCredential(ctx context.Context, c *settings.Credential) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cred = &cp
	m.saveCalls++
	return nil
}

// Stored returns the current credential.
func (m *MockCredentialRepository) Stored() *settings.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil
	}
	cp := *m.cred
	return &cp
}

// SaveCalls returns how many times SaveCredential ran.
func (m *MockCredentialRepository) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory transaction.Repository.
type MockTransactionRepository struct {
	mu  sync.Mutex
	txs map[string]*transaction.Transaction

	CreateFunc func(ctx context.Context, tx *transaction.Transaction) error
	UpdateFunc func(ctx context.Context, tx *transaction.Transaction) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{txs: make(map[string]*transaction.Transaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.MerchantTxID]; ok {
		return domainErrors.ErrTransactionExists
	}
	cp := *tx
	m.txs[tx.MerchantTxID] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByMerchantTxID(ctx context.Context, merchantTxID string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[merchantTxID]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MockTransactionRepository) GetByOrderID(ctx context.Context, orderID int64) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *transaction.Transaction
	for _, tx := range m.txs {
		if tx.OrderID != orderID {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.MerchantTxID]; !ok {
		return domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	m.txs[tx.MerchantTxID] = &cp
	return nil
}

func (m *MockTransactionRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range m.txs {
		if tx.IsTerminal() || !tx.UpdatedAt.Before(olderThan) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTransactionRepository) Touch(ctx context.Context, merchantTxID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[merchantTxID]; ok && !tx.IsTerminal() {
		tx.UpdatedAt = at
	}
	return nil
}

// --- Gateway Mock ---

// MockGateway stands in for the configured provider facade. Status replies
// are served from StatusReplies in order; the last one repeats.
type MockGateway struct {
	mu sync.Mutex

	Config        *settings.MerchantConfig
	MerchantErr   error
	RegisterReply *bluecode.RegisterResult
	RegisterErr   error
	StatusReplies []*bluecode.StatusResult
	StatusErr     error
	CancelReply   bool
	CancelErr     error
	RefundReply   *bluecode.RefundResult
	RefundErr     error
	ReceiptCode   int
	ReceiptErr    error

	Registered      []bluecode.RegisterRequest
	StatusCalls     int
	StatusOnceCalls int
	Cancelled       []string
	Refunds         []RefundCall
	Receipts        []*bluecode.ReceiptRequest
}

// RefundCall records one Refund invocation.
type RefundCall struct {
	AcquirerTxID string
	Amount       int64
	Reason       string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Config:      NewTestMerchant(),
		CancelReply: true,
		ReceiptCode: 200,
	}
}

func (m *MockGateway) Merchant(ctx context.Context) (*settings.MerchantConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MerchantErr != nil {
		return nil, m.MerchantErr
	}
	cp := *m.Config
	return &cp, nil
}

func (m *MockGateway) Register(ctx context.Context, r bluecode.RegisterRequest) (*bluecode.RegisterResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registered = append(m.Registered, r)
	return m.RegisterReply, m.RegisterErr
}

func (m *MockGateway) Status(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status()
}

func (m *MockGateway) StatusOnce(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusOnceCalls++
	return m.status()
}

// status replays StatusReplies in order, repeating the last one.
func (m *MockGateway) status() (*bluecode.StatusResult, error) {
	m.StatusCalls++
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	if len(m.StatusReplies) == 0 {
		return nil, domainErrors.ErrTransportFailure
	}
	i := m.StatusCalls - 1
	if i >= len(m.StatusReplies) {
		i = len(m.StatusReplies) - 1
	}
	return m.StatusReplies[i], nil
}

func (m *MockGateway) Cancel(ctx context.Context, merchantTxID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, merchantTxID)
	return m.CancelReply, m.CancelErr
}

func (m *MockGateway) Refund(ctx context.Context, acquirerTxID string, amount int64, reason string) (*bluecode.RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, RefundCall{AcquirerTxID: acquirerTxID, Amount: amount, Reason: reason})
	return m.RefundReply, m.RefundErr
}

func (m *MockGateway) Receipt(ctx context.Context, r *bluecode.ReceiptRequest) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Receipts = append(m.Receipts, r)
	return m.ReceiptCode, m.ReceiptErr
}

// CancelCount returns how many cancels were issued.
func (m *MockGateway) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Cancelled)
}

// --- Token Client Mock ---

// MockTokenClient fakes the OAuth2 token endpoint.
type MockTokenClient struct {
	mu       sync.Mutex
	Requests []bluecode.TokenRequest

	TokenFunc func(ctx context.Context, sandbox bool, r bluecode.TokenRequest) (*bluecode.TokenResult, error)
}

func (m *MockTokenClient) Token(ctx context.Context, sandbox bool, r bluecode.TokenRequest) (*bluecode.TokenResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, r)
	m.mu.Unlock()
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx, sandbox, r)
	}
	return &bluecode.TokenResult{HTTPCode: 200, AccessToken: "access-new", RefreshToken: "refresh-new", ExpiresIn: 3600}, nil
}

func (m *MockTokenClient) AuthorizeURL(sandbox bool, clientID, redirectURI, state string) string {
	return "https://portal.test/oauth2/authorize?client_id=" + clientID + "&state=" + state
}

// Calls returns the number of token exchanges.
func (m *MockTokenClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// --- Locker Mock ---

// MockLocker is an in-process Locker.
type MockLocker struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	acquired int

	AcquireErr error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{locks: make(map[string]*sync.Mutex)}
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	m.mu.Lock()
	if m.AcquireErr != nil {
		m.mu.Unlock()
		return nil, m.AcquireErr
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.acquired++
	m.mu.Unlock()

	l.Lock()
	var once sync.Once
	return func(context.Context) { once.Do(l.Unlock) }, nil
}

// Acquired returns how many locks were granted.
func (m *MockLocker) Acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}

// --- State Store Mock ---

// MockStateStore keeps OAuth2 states in memory, ignoring TTLs.
type MockStateStore struct {
	mu     sync.Mutex
	states map[string]struct{}
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{states: make(map[string]struct{})}
}

func (m *MockStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state] = struct{}{}
	return nil
}

func (m *MockStateStore) Consume(ctx context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[state]
	delete(m.states, state)
	return ok, nil
}

// --- Clock ---

// FakeClock advances only when Sleep is called.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns the recorded sleep durations.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}
