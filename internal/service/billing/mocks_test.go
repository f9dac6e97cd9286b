// internal/service/billing/mocks_test.go
package billing

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/domain/tenant"
	xerrors "mesafacil-billing/internal/pkg/errors"
	"mesafacil-billing/internal/pkg/tasks"
	stripegw "mesafacil-billing/internal/provider/stripe"
	"mesafacil-billing/internal/provider/wompi"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// stubTx satisfies pgx.Tx for code that only begins, commits and rolls
// back. Store mocks receive it and ignore it.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	lastTx *stubTx
	beginN int
}

func (db *fakeDB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	db.beginN++
	db.lastTx = &stubTx{}
	return db.lastTx, nil
}

// fakeSubs is a hand-rolled SubscriptionStore. Unset lookup funcs report
// not-found; writes are recorded.
type fakeSubs struct {
	findByID           func(ctx context.Context, id int64) (*billing.Subscription, error)
	findByExternalID   func(ctx context.Context, provider billing.Provider, externalID string) (*billing.Subscription, error)
	findLatestByTenant func(ctx context.Context, tenantID int64) (*billing.Subscription, error)
	findPendingByPlan  func(ctx context.Context, plan billing.PlanType) (*billing.Subscription, error)

	created         []*billing.Subscription
	planUpdates     []*billing.Subscription
	externalIDs     map[int64]string
	customerIDs     map[int64]string
	statusUpdates   []statusUpdate
	periodUpdates   int
	createErr       error
	setExternalErr  error
	updatePlanErr   error
	updateStatusErr error
}

type statusUpdate struct {
	id                int64
	status            billing.SubscriptionStatus
	cancelledAt       sql.NullTime
	cancelAtPeriodEnd bool
}

func (f *fakeSubs) FindByID(ctx context.Context, id int64) (*billing.Subscription, error) {
	if f.findByID == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.findByID(ctx, id)
}

func (f *fakeSubs) FindByExternalID(ctx context.Context, provider billing.Provider, externalID string) (*billing.Subscription, error) {
	if f.findByExternalID == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.findByExternalID(ctx, provider, externalID)
}

func (f *fakeSubs) FindLatestByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	if f.findLatestByTenant == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.findLatestByTenant(ctx, tenantID)
}

func (f *fakeSubs) FindPendingByPlan(ctx context.Context, plan billing.PlanType) (*billing.Subscription, error) {
	if f.findPendingByPlan == nil {
		return nil, xerrors.ErrNotFound
	}
	return f.findPendingByPlan(ctx, plan)
}

func (f *fakeSubs) Create(ctx context.Context, sub *billing.Subscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	sub.ID = int64(len(f.created) + 1000)
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubs) SetExternalID(ctx context.Context, id int64, provider billing.Provider, externalID string) error {
	if f.setExternalErr != nil {
		return f.setExternalErr
	}
	if f.externalIDs == nil {
		f.externalIDs = map[int64]string{}
	}
	f.externalIDs[id] = externalID
	return nil
}

func (f *fakeSubs) SetExternalCustomerID(ctx context.Context, id int64, externalCustomerID string) error {
	if f.customerIDs == nil {
		f.customerIDs = map[int64]string{}
	}
	f.customerIDs[id] = externalCustomerID
	return nil
}

func (f *fakeSubs) UpdatePlan(ctx context.Context, sub *billing.Subscription) error {
	if f.updatePlanErr != nil {
		return f.updatePlanErr
	}
	f.planUpdates = append(f.planUpdates, sub)
	return nil
}

func (f *fakeSubs) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status billing.SubscriptionStatus, cancelledAt sql.NullTime, cancelAtPeriodEnd bool) error {
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	f.statusUpdates = append(f.statusUpdates, statusUpdate{id, status, cancelledAt, cancelAtPeriodEnd})
	return nil
}

func (f *fakeSubs) UpdatePeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, start, end time.Time) error {
	f.periodUpdates++
	return nil
}

type fakeTenants struct {
	tenants      map[int64]*tenant.Tenant
	billingState map[int64]string
}

func (f *fakeTenants) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenants) UpdateBillingStateWithTx(ctx context.Context, tx pgx.Tx, tenantID int64, state string) error {
	if f.billingState == nil {
		f.billingState = map[int64]string{}
	}
	f.billingState[tenantID] = state
	return nil
}

type fakePayments struct {
	existing map[string]bool
	created  []*billing.Payment
	list     []billing.Payment
	total    int64

	lastLimit  int
	lastOffset int
}

func (f *fakePayments) ExistsByExternalIDWithTx(ctx context.Context, tx pgx.Tx, provider billing.Provider, externalPaymentID string) (bool, error) {
	return f.existing[externalPaymentID], nil
}

func (f *fakePayments) CreateWithTx(ctx context.Context, tx pgx.Tx, p *billing.Payment) error {
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, p)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[p.ExternalPaymentID] = true
	return nil
}

func (f *fakePayments) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]billing.Payment, int64, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.list, f.total, nil
}

type fakeStripeGateway struct {
	customerID string
	charge     *stripegw.ChargeResult
	chargeErr  error
	cancels    []string
}

func (f *fakeStripeGateway) CreateCustomer(ctx context.Context, tenantID int64, email string) (string, error) {
	if f.customerID == "" {
		f.customerID = "cus_test"
	}
	return f.customerID, nil
}

func (f *fakeStripeGateway) ChargeSubscription(ctx context.Context, customerID, token string, plan billing.PlanType, period billing.BillingPeriod) (*stripegw.ChargeResult, error) {
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return f.charge, nil
}

func (f *fakeStripeGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	f.cancels = append(f.cancels, subscriptionID)
	return nil
}

type fakeWompiGateway struct {
	token        string
	tokenizeErr  error
	transaction  *wompi.Transaction
	createErr    error
	createCalls  int
	rechecked    *wompi.Transaction
	recheckErr   error
	recheckCalls int
}

func (f *fakeWompiGateway) TokenizeCard(ctx context.Context, card wompi.CardDetails) (string, error) {
	if f.tokenizeErr != nil {
		return "", f.tokenizeErr
	}
	return f.token, nil
}

func (f *fakeWompiGateway) CreateTransaction(ctx context.Context, in wompi.CreateTransactionInput) (*wompi.Transaction, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	trx := *f.transaction
	trx.Reference = in.Reference
	trx.AmountInCents = in.AmountInCents
	trx.Currency = in.Currency
	return &trx, nil
}

func (f *fakeWompiGateway) GetTransaction(ctx context.Context, id string) (*wompi.Transaction, error) {
	f.recheckCalls++
	if f.recheckErr != nil {
		return nil, f.recheckErr
	}
	return f.rechecked, nil
}

// fakeEmail records sent messages. Notifier submits sends to the runner, so
// assertions must drain it first (runner.Close).
type fakeEmail struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeEmail) Send(to, subject, bodyHTML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeEmail) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

func testNotifier(t interface{ Cleanup(func()) }) *Notifier {
	runner := tasks.NewRunner(1, 16, time.Second, zap.NewNop())
	t.Cleanup(runner.Close)
	return NewNotifier(runner, nil, nil, zap.NewNop())
}

func testLifecycle(db *fakeDB, subs *fakeSubs, tenants *fakeTenants, payments *fakePayments) *Lifecycle {
	ledger := NewLedger(payments, zap.NewNop())
	return NewLifecycle(db, subs, tenants, ledger, zap.NewNop())
}
