package subscriptions_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"billing-app/database"
	"billing-app/internal/domain/access"
	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/subscriptions"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled second connection would see a different empty in-memory
	// database, so pin the pool to one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider is an in-memory billing.Provider. It honors idempotency
// keys the way the real provider does: a repeated create with the same
// key returns the object the first call made.
type fakeProvider struct {
	mu sync.Mutex

	customersByKey map[string]*billing.Customer
	subsByKey      map[string]*billing.Subscription
	subsByID       map[string]*billing.Subscription

	customerCreates int
	subCreates      int
	canceled        []string

	subStatus string

	createCustomerErr error
	createSubErr      error
	getSubErr         error

	// beforeCreateCustomer and beforeCreateSubscription run with the
	// mutex released, so tests can interleave competing store writes at
	// the exact point the provider call is in flight.
	beforeCreateCustomer     func()
	beforeCreateSubscription func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customersByKey: map[string]*billing.Customer{},
		subsByKey:      map[string]*billing.Subscription{},
		subsByID:       map[string]*billing.Subscription{},
		subStatus:      "active",
	}
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, params billing.CreateCustomerParams) (*billing.Customer, error) {
	if f.beforeCreateCustomer != nil {
		f.beforeCreateCustomer()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createCustomerErr != nil {
		return nil, f.createCustomerErr
	}
	if cus, ok := f.customersByKey[params.IdempotencyKey]; ok {
		return cus, nil
	}
	f.customerCreates++
	cus := &billing.Customer{
		ID:    fmt.Sprintf("cus_%d", f.customerCreates),
		Email: params.Email,
	}
	f.customersByKey[params.IdempotencyKey] = cus
	return cus, nil
}

func (f *fakeProvider) CreateSubscription(ctx context.Context, params billing.CreateSubscriptionParams) (*billing.Subscription, error) {
	if f.beforeCreateSubscription != nil {
		f.beforeCreateSubscription()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createSubErr != nil {
		return nil, f.createSubErr
	}
	if sub, ok := f.subsByKey[params.IdempotencyKey]; ok {
		return sub, nil
	}
	f.subCreates++
	now := time.Now().UTC().Truncate(time.Microsecond)
	sub := &billing.Subscription{
		ID:                 fmt.Sprintf("sub_%d", f.subCreates),
		CustomerID:         params.CustomerID,
		PriceID:            params.PriceID,
		Status:             f.subStatus,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	f.subsByKey[params.IdempotencyKey] = sub
	f.subsByID[sub.ID] = sub
	return sub, nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subsByID[subscriptionID]
	if !ok {
		return billing.ErrNotFound
	}
	sub.Status = "canceled"
	f.canceled = append(f.canceled, subscriptionID)
	return nil
}

func (f *fakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getSubErr != nil {
		return nil, f.getSubErr
	}
	sub, ok := f.subsByID[subscriptionID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return sub, nil
}

// fixture wires a full lifecycle stack over an in-memory database.
type fixture struct {
	db         *gorm.DB
	store      *subscriptions.Store
	events     *subscriptions.EventLog
	audit      *subscriptions.AuditLog
	payments   *billing.PaymentLog
	provider   *fakeProvider
	linker     *subscriptions.CustomerLinker
	engine     *subscriptions.Engine
	reconciler *subscriptions.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	provider := newFakeProvider()
	store := subscriptions.NewStore(db)
	events := subscriptions.NewEventLog(db)
	audit := subscriptions.NewAuditLog(db)
	payments := billing.NewPaymentLog(db)

	email := func(ctx context.Context, userID uint) (string, error) {
		return fmt.Sprintf("user%d@example.com", userID), nil
	}
	linker := subscriptions.NewCustomerLinker(store, provider, email)
	engine := subscriptions.NewEngine(store, linker, provider, access.NewGate(), audit, testLogger())
	reconciler := subscriptions.NewReconciler(store, events, engine, payments, testLogger())

	return &fixture{
		db:         db,
		store:      store,
		events:     events,
		audit:      audit,
		payments:   payments,
		provider:   provider,
		linker:     linker,
		engine:     engine,
		reconciler: reconciler,
	}
}
