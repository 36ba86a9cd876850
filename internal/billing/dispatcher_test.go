package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marzsell/internal/models"
	"marzsell/internal/panel"
)

// memWallet mirrors the repository semantics: Decrease is an atomic
// check-and-subtract that never lets the balance go negative.
type memWallet struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	failOp   string // "increase" or "decrease" to force an error
}

func newMemWallet() *memWallet {
	return &memWallet{balances: make(map[string]decimal.Decimal)}
}

func (w *memWallet) GetBalance(userID string) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *memWallet) Increase(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOp == "increase" {
		return decimal.Zero, errors.New("wallet storage down")
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	next := w.balances[userID].Add(amount)
	w.balances[userID] = next
	return next, nil
}

func (w *memWallet) Decrease(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOp == "decrease" {
		return decimal.Zero, errors.New("wallet storage down")
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	current := w.balances[userID]
	if current.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	next := current.Sub(amount)
	w.balances[userID] = next
	return next, nil
}

type memNotes struct {
	mu    sync.Mutex
	notes map[string]*models.SubscriptionNote
}

func newMemNotes() *memNotes {
	return &memNotes{notes: make(map[string]*models.SubscriptionNote)}
}

func (n *memNotes) Upsert(note *models.SubscriptionNote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := *note
	n.notes[note.Username] = &copied
	return nil
}

func (n *memNotes) FindByUsername(username string) (*models.SubscriptionNote, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	note, ok := n.notes[username]
	if !ok {
		return nil, nil
	}
	copied := *note
	return &copied, nil
}

// fakePanel records provisioning calls; failStep forces the named call to
// fail so error paths can be driven.
type fakePanel struct {
	accounts map[string]*panel.Account
	created  []panel.CreateAccountRequest
	modified map[string]panel.ModifyAccountRequest
	resets   []string
	added    map[string]int
	failStep string
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		accounts: make(map[string]*panel.Account),
		modified: make(map[string]panel.ModifyAccountRequest),
		added:    make(map[string]int),
	}
}

func (p *fakePanel) Authenticate(ctx context.Context) error { return nil }

func (p *fakePanel) GetAccount(ctx context.Context, username string) (*panel.Account, error) {
	if p.failStep == "get" {
		return nil, errors.New("panel unreachable")
	}
	acct, ok := p.accounts[username]
	if !ok {
		return nil, panel.ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

func (p *fakePanel) CreateAccount(ctx context.Context, req panel.CreateAccountRequest) (*panel.Account, error) {
	if p.failStep == "create" {
		return nil, errors.New("panel unreachable")
	}
	p.created = append(p.created, req)
	acct := &panel.Account{Username: req.Username, Status: "active", DataLimit: req.DataLimit}
	p.accounts[req.Username] = acct
	return acct, nil
}

func (p *fakePanel) ModifyAccount(ctx context.Context, username string, req panel.ModifyAccountRequest) (*panel.Account, error) {
	if p.failStep == "modify" {
		return nil, errors.New("panel unreachable")
	}
	p.modified[username] = req
	return p.accounts[username], nil
}

func (p *fakePanel) ResetTraffic(ctx context.Context, username string) error {
	if p.failStep == "reset" {
		return errors.New("panel unreachable")
	}
	p.resets = append(p.resets, username)
	return nil
}

func (p *fakePanel) AddData(ctx context.Context, username string, volumeGB int) error {
	if p.failStep == "add" {
		return errors.New("panel unreachable")
	}
	p.added[username] += volumeGB
	return nil
}

func (p *fakePanel) SubscriptionLink(ctx context.Context, username string) (string, error) {
	return "https://panel.example/sub/" + username, nil
}

func (p *fakePanel) Ping(ctx context.Context) error { return nil }

func testDispatcher() (*Dispatcher, *memWallet, *memNotes, *fakePanel) {
	wallet := newMemWallet()
	notes := newMemNotes()
	pc := newFakePanel()
	return NewDispatcher(wallet, notes, pc, zap.NewNop()), wallet, notes, pc
}

func invoiceWith(t *testing.T, details Details, price int64) *models.Invoice {
	t.Helper()
	raw, err := EncodeDetails(details)
	require.NoError(t, err)
	return &models.Invoice{
		InvoiceID:   "inv-1",
		UserID:      "42",
		PlanDetails: raw,
		Price:       price,
		Status:      models.InvoiceStatusPending,
	}
}

func TestDispatchWalletCharge(t *testing.T) {
	d, wallet, _, _ := testDispatcher()

	inv := invoiceWith(t, WalletChargeDetails{}, 50000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	balance, _ := wallet.GetBalance("42")
	assert.True(t, balance.Equal(decimal.NewFromInt(50000)))
}

func TestDispatchManualSavesNote(t *testing.T) {
	d, _, notes, pc := testDispatcher()

	inv := invoiceWith(t, ManualDetails{Username: "cust_1", VolumeGB: 20, DurationDays: 30}, 75000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	note, err := notes.FindByUsername("cust_1")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "42", note.UserID)
	assert.Equal(t, 20, note.VolumeGB)
	assert.Equal(t, int64(75000), note.Price)

	// Manual fulfillment never touches the panel.
	assert.Empty(t, pc.created)
	assert.Empty(t, pc.modified)
}

func TestDispatchLegacyTypeHandledAsManual(t *testing.T) {
	d, _, notes, _ := testDispatcher()

	inv := invoiceWith(t, LegacyDetails{RawType: "OLD_PLAN", Username: "cust_2", VolumeGB: 10}, 30000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	note, err := notes.FindByUsername("cust_2")
	require.NoError(t, err)
	require.NotNil(t, note)
}

func TestDispatchLegacyWithoutUsernameIsIncomplete(t *testing.T) {
	d, _, _, _ := testDispatcher()

	inv := invoiceWith(t, LegacyDetails{RawType: "OLD_PLAN"}, 30000)
	err := d.Dispatch(context.Background(), inv)

	var incomplete *IncompleteDetailsError
	assert.ErrorAs(t, err, &incomplete)
}

func TestDispatchTopUp(t *testing.T) {
	d, _, _, pc := testDispatcher()

	inv := invoiceWith(t, TopUpDetails{Username: "cust_3", VolumeGB: 25}, 40000)
	require.NoError(t, d.Dispatch(context.Background(), inv))
	assert.Equal(t, 25, pc.added["cust_3"])
}

func TestDispatchTopUpPanelFailure(t *testing.T) {
	d, _, _, pc := testDispatcher()
	pc.failStep = "add"

	inv := invoiceWith(t, TopUpDetails{Username: "cust_3", VolumeGB: 25}, 40000)
	err := d.Dispatch(context.Background(), inv)

	var fe *FulfillmentError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "data top-up", fe.Step)
}

func TestDispatchProvisionCreatesAccount(t *testing.T) {
	d, _, notes, pc := testDispatcher()

	inv := invoiceWith(t, NewAccountDetails{Username: "cust_4", VolumeGB: 30, DurationDays: 90, MaxIPs: 2}, 120000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	require.Len(t, pc.created, 1)
	assert.Equal(t, int64(30)*panel.BytesPerGB, pc.created[0].DataLimit)
	assert.Equal(t, 90, pc.created[0].ExpireDays)
	assert.Equal(t, "tg:42", pc.created[0].Note)

	note, _ := notes.FindByUsername("cust_4")
	require.NotNil(t, note)
}

func TestDispatchProvisionUnlimited(t *testing.T) {
	d, _, _, pc := testDispatcher()

	inv := invoiceWith(t, NewAccountDetails{Username: "cust_5", DurationDays: 30, Unlimited: true}, 200000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	require.Len(t, pc.created, 1)
	assert.Zero(t, pc.created[0].DataLimit)
}

func TestDispatchProvisionExistingAccountIsSuccess(t *testing.T) {
	d, _, notes, pc := testDispatcher()
	pc.accounts["cust_6"] = &panel.Account{Username: "cust_6", Status: "active"}

	inv := invoiceWith(t, NewAccountDetails{Username: "cust_6", VolumeGB: 10, DurationDays: 30}, 60000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	// No second creation, but the note is still written.
	assert.Empty(t, pc.created)
	note, _ := notes.FindByUsername("cust_6")
	require.NotNil(t, note)
}

func TestDispatchRenewalExtendsFutureExpiry(t *testing.T) {
	d, _, _, pc := testDispatcher()
	current := time.Now().Add(10 * 24 * time.Hour).Unix()
	pc.accounts["cust_7"] = &panel.Account{Username: "cust_7", ExpireAt: current}

	inv := invoiceWith(t, RenewalDetails{Username: "cust_7", VolumeGB: 30, DurationDays: 30}, 100000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	assert.Equal(t, []string{"cust_7"}, pc.resets)
	mod := pc.modified["cust_7"]
	assert.Equal(t, int64(30)*panel.BytesPerGB, mod.DataLimit)
	// Extension stacks on top of the remaining time.
	want := time.Unix(current, 0).Add(30 * 24 * time.Hour).Unix()
	assert.Equal(t, want, mod.ExpireAt)
}

func TestDispatchRenewalLapsedExtendsFromNow(t *testing.T) {
	d, _, _, pc := testDispatcher()
	pc.accounts["cust_8"] = &panel.Account{Username: "cust_8", ExpireAt: time.Now().Add(-72 * time.Hour).Unix()}

	before := time.Now()
	inv := invoiceWith(t, RenewalDetails{Username: "cust_8", VolumeGB: 10, DurationDays: 30}, 60000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	mod := pc.modified["cust_8"]
	earliest := before.Add(30 * 24 * time.Hour).Unix()
	assert.GreaterOrEqual(t, mod.ExpireAt, earliest)
}

func TestDispatchRenewalFallsBackToNote(t *testing.T) {
	d, _, notes, pc := testDispatcher()
	pc.accounts["cust_9"] = &panel.Account{Username: "cust_9"}
	require.NoError(t, notes.Upsert(&models.SubscriptionNote{
		Username: "cust_9", UserID: "42", VolumeGB: 40, DurationDays: 60,
	}))

	inv := invoiceWith(t, RenewalDetails{Username: "cust_9"}, 140000)
	require.NoError(t, d.Dispatch(context.Background(), inv))

	mod := pc.modified["cust_9"]
	assert.Equal(t, int64(40)*panel.BytesPerGB, mod.DataLimit)
}

func TestDispatchRenewalWithoutTermsOrNote(t *testing.T) {
	d, _, _, pc := testDispatcher()
	pc.accounts["cust_10"] = &panel.Account{Username: "cust_10"}

	inv := invoiceWith(t, RenewalDetails{Username: "cust_10"}, 50000)
	err := d.Dispatch(context.Background(), inv)

	var incomplete *IncompleteDetailsError
	require.ErrorAs(t, err, &incomplete)
	assert.ElementsMatch(t, []string{"duration", "volume"}, incomplete.Missing)

	// Nothing was touched on the panel.
	assert.Empty(t, pc.resets)
	assert.Empty(t, pc.modified)
}
