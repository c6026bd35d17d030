package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/internal/invoices"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
)

type fakeRepo struct {
	subscriptions map[uuid.UUID]*models.Subscription
	deliveries    map[uuid.UUID]*models.DeliverySchedule
	createErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subscriptions: map[uuid.UUID]*models.Subscription{},
		deliveries:    map[uuid.UUID]*models.DeliverySchedule{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *sub
	f.subscriptions[sub.ID] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	sub, ok := f.subscriptions[id]
	if !ok || sub.ShopID != shopID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepo) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	return f.FindByID(ctx, shopID, id)
}

func (f *fakeRepo) Update(ctx context.Context, sub *models.Subscription) error {
	cp := *sub
	f.subscriptions[sub.ID] = &cp
	return nil
}

func (f *fakeRepo) ListByShop(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.ShopID != shopID {
			continue
		}
		if customerID != nil && sub.CustomerID != *customerID {
			continue
		}
		rows = append(rows, *sub)
	}
	return rows, nil
}

func (f *fakeRepo) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.Active && !sub.Paused && sub.NextDelivery != nil && !sub.NextDelivery.After(cutoff) {
			rows = append(rows, *sub)
		}
	}
	return rows, nil
}

func (f *fakeRepo) CreateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error {
	cp := *delivery
	f.deliveries[delivery.ID] = &cp
	return nil
}

func (f *fakeRepo) FindDeliveryByID(ctx context.Context, id uuid.UUID) (*models.DeliverySchedule, error) {
	delivery, ok := f.deliveries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *delivery
	return &cp, nil
}

func (f *fakeRepo) UpdateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error {
	cp := *delivery
	f.deliveries[delivery.ID] = &cp
	return nil
}

func (f *fakeRepo) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.DeliverySchedule, error) {
	var rows []models.DeliverySchedule
	for _, delivery := range f.deliveries {
		if delivery.SubscriptionID == subscriptionID {
			rows = append(rows, *delivery)
		}
	}
	return rows, nil
}

func (f *fakeRepo) DeleteScheduledFrom(ctx context.Context, subscriptionID uuid.UUID, from time.Time) error {
	for id, delivery := range f.deliveries {
		if delivery.SubscriptionID == subscriptionID &&
			delivery.Status == enums.DeliveryStatusScheduled &&
			!delivery.DeliveryDate.Before(from) {
			delete(f.deliveries, id)
		}
	}
	return nil
}

func (f *fakeRepo) MarkScheduledFailedBefore(ctx context.Context, subscriptionID uuid.UUID, cutoff time.Time) (int64, error) {
	var n int64
	for _, delivery := range f.deliveries {
		if delivery.SubscriptionID == subscriptionID &&
			delivery.Status == enums.DeliveryStatusScheduled &&
			delivery.DeliveryDate.Before(cutoff) {
			delivery.Status = enums.DeliveryStatusFailed
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) DeleteScheduled(ctx context.Context, subscriptionID uuid.UUID) error {
	for id, delivery := range f.deliveries {
		if delivery.SubscriptionID == subscriptionID && delivery.Status == enums.DeliveryStatusScheduled {
			delete(f.deliveries, id)
		}
	}
	return nil
}

func (f *fakeRepo) scheduledCount(subscriptionID uuid.UUID) int {
	var n int
	for _, delivery := range f.deliveries {
		if delivery.SubscriptionID == subscriptionID && delivery.Status == enums.DeliveryStatusScheduled {
			n++
		}
	}
	return n
}

type fakeCustomers struct {
	customer *models.Customer
	err      error
}

func (f *fakeCustomers) FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.customer, nil
}

type fakeProducts struct {
	product *models.Product
	err     error
}

func (f *fakeProducts) FindForShop(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

type fakeSettings struct {
	policy models.Policy
	err    error
}

func (f *fakeSettings) PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error) {
	return f.policy, f.err
}

type fakeInvoices struct {
	inputs []invoices.CreateInvoiceInput
	err    error
}

func (f *fakeInvoices) Create(ctx context.Context, shopID uuid.UUID, input invoices.CreateInvoiceInput) (*models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &models.Invoice{ID: uuid.New(), ShopID: shopID}, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type deps struct {
	repo      *fakeRepo
	customers *fakeCustomers
	products  *fakeProducts
	settings  *fakeSettings
	invoices  *fakeInvoices
	outbox    *fakeOutbox
}

func newDeps() (*deps, uuid.UUID) {
	shopID := uuid.New()
	customer := &models.Customer{ID: uuid.New(), ShopID: shopID, Phone: "+919812345678"}
	product := &models.Product{
		ID:     uuid.New(),
		ShopID: shopID,
		Name:   "Toned Milk 500ml",
		Unit:   "packet",
		Price:  decimal.NewFromInt(30),
		Active: true,
	}
	return &deps{
		repo:      newFakeRepo(),
		customers: &fakeCustomers{customer: customer},
		products:  &fakeProducts{product: product},
		settings:  &fakeSettings{policy: models.Policy{AllowPause: true, AllowCancel: true}},
		invoices:  &fakeInvoices{},
		outbox:    &fakeOutbox{},
	}, shopID
}

func testService(t *testing.T, d *deps, now time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              d.repo,
		Customers:         d.customers,
		Products:          d.products,
		Settings:          d.settings,
		Invoices:          d.invoices,
		Outbox:            d.outbox,
		TransactionRunner: fakeTxRunner{},
	})
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return now }
	return svc
}

func dailyInput(d *deps) CreateSubscriptionInput {
	return CreateSubscriptionInput{
		CustomerID:   d.customers.customer.ID,
		ProductID:    d.products.product.ID,
		Quantity:     2,
		Frequency:    enums.SubscriptionFrequencyDaily,
		DeliveryTime: "08:00",
	}
}

func TestCreateSnapshotsProductAndSchedulesFirstDelivery(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)

	sub, err := svc.Create(context.Background(), shopID, dailyInput(d))
	require.NoError(t, err)

	assert.Equal(t, "packet", sub.Unit)
	assert.True(t, sub.PricePerUnit.Equal(decimal.NewFromInt(30)))
	assert.True(t, sub.Active)
	require.NotNil(t, sub.NextDelivery)
	assert.Equal(t, time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC), *sub.NextDelivery)

	require.Equal(t, 1, d.repo.scheduledCount(sub.ID))
	for _, delivery := range d.repo.deliveries {
		assert.Equal(t, *sub.NextDelivery, delivery.DeliveryDate)
		assert.Equal(t, 2, delivery.Quantity)
		assert.Equal(t, "08:00", delivery.ScheduledTime)
	}

	require.Len(t, d.outbox.events, 1)
	assert.Equal(t, enums.OutboxEventTypeDeliveryScheduled, d.outbox.events[0].EventType)
	assert.Equal(t, "+919812345678", d.outbox.events[0].Recipient)
}

func TestCreateSkipsMaterializationOutsideWindow(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)

	start := testNow.AddDate(0, 2, 0)
	input := dailyInput(d)
	input.StartDate = &start

	sub, err := svc.Create(context.Background(), shopID, input)
	require.NoError(t, err)

	require.NotNil(t, sub.NextDelivery)
	assert.True(t, sub.NextDelivery.After(testNow.Add(materializeWindow)))
	assert.Equal(t, 0, d.repo.scheduledCount(sub.ID))
}

func TestCreateRejectsDuplicateTriple(t *testing.T) {
	d, shopID := newDeps()
	d.repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_subscriptions_triple"`)
	svc := testService(t, d, testNow)

	_, err := svc.Create(context.Background(), shopID, dailyInput(d))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateValidatesInput(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)

	input := dailyInput(d)
	input.Quantity = 0
	_, err := svc.Create(context.Background(), shopID, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = dailyInput(d)
	input.Frequency = enums.SubscriptionFrequency("monthly")
	_, err = svc.Create(context.Background(), shopID, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = dailyInput(d)
	input.Frequency = enums.SubscriptionFrequencyCustom
	_, err = svc.Create(context.Background(), shopID, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSchedule))
}

func TestCreateRejectsInactiveProduct(t *testing.T) {
	d, shopID := newDeps()
	d.products.product.Active = false
	svc := testService(t, d, testNow)

	_, err := svc.Create(context.Background(), shopID, dailyInput(d))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func mustCreate(t *testing.T, svc Service, d *deps, shopID uuid.UUID) (*models.Subscription, *models.DeliverySchedule) {
	t.Helper()
	sub, err := svc.Create(context.Background(), shopID, dailyInput(d))
	require.NoError(t, err)
	var first *models.DeliverySchedule
	for _, delivery := range d.repo.deliveries {
		if delivery.SubscriptionID == sub.ID {
			first = delivery
		}
	}
	require.NotNil(t, first)
	return sub, first
}

func TestCompleteDeliveryRollsScheduleForward(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, first := mustCreate(t, svc, d, shopID)
	d.outbox.events = nil

	qty := 3
	delivered, err := svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{
		ActualQuantity: &qty,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.DeliveryStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.NotNil(t, delivered.ActualQuantity)
	assert.Equal(t, 3, *delivered.ActualQuantity)

	updated := d.repo.subscriptions[sub.ID]
	require.NotNil(t, updated.NextDelivery)
	assert.Equal(t, time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC), *updated.NextDelivery)
	assert.Equal(t, 1, d.repo.scheduledCount(sub.ID))

	require.Len(t, d.outbox.events, 1)
	assert.Equal(t, enums.OutboxEventTypeDeliveryCompleted, d.outbox.events[0].EventType)
	assert.Empty(t, d.invoices.inputs)
}

func TestCompleteDeliveryAutoChargeRaisesInvoice(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)

	input := dailyInput(d)
	input.AutoCharge = true
	sub, err := svc.Create(context.Background(), shopID, input)
	require.NoError(t, err)
	var first *models.DeliverySchedule
	for _, delivery := range d.repo.deliveries {
		first = delivery
	}

	_, err = svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.NoError(t, err)

	require.Len(t, d.invoices.inputs, 1)
	charged := d.invoices.inputs[0]
	assert.Equal(t, sub.CustomerID, charged.CustomerID)
	require.NotNil(t, charged.SubscriptionID)
	assert.Equal(t, sub.ID, *charged.SubscriptionID)
	assert.True(t, charged.MarkSent)
	require.NotNil(t, charged.DueDate)
	assert.Equal(t, testNow.Add(7*24*time.Hour), *charged.DueDate)
	require.Len(t, charged.Items, 1)
	assert.Equal(t, 2, charged.Items[0].Quantity)
	assert.True(t, charged.Items[0].UnitPrice.Equal(decimal.NewFromInt(30)))

	require.NotNil(t, d.repo.subscriptions[sub.ID].LastCharged)
}

func TestCompleteDeliveryActualPriceOverridesLineTotal(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)

	input := dailyInput(d)
	input.AutoCharge = true
	_, err := svc.Create(context.Background(), shopID, input)
	require.NoError(t, err)
	var first *models.DeliverySchedule
	for _, delivery := range d.repo.deliveries {
		first = delivery
	}

	price := decimal.NewFromInt(45)
	_, err = svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{ActualPrice: &price})
	require.NoError(t, err)

	require.Len(t, d.invoices.inputs, 1)
	require.Len(t, d.invoices.inputs[0].Items, 1)
	assert.Equal(t, 1, d.invoices.inputs[0].Items[0].Quantity)
	assert.True(t, d.invoices.inputs[0].Items[0].UnitPrice.Equal(price))
}

func TestCompleteDeliverySurvivesChargeFailure(t *testing.T) {
	d, shopID := newDeps()
	d.invoices.err = errors.New("billing unavailable")
	svc := testService(t, d, testNow)

	input := dailyInput(d)
	input.AutoCharge = true
	sub, err := svc.Create(context.Background(), shopID, input)
	require.NoError(t, err)
	var first *models.DeliverySchedule
	for _, delivery := range d.repo.deliveries {
		first = delivery
	}

	delivered, err := svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusDelivered, delivered.Status)
	assert.Nil(t, d.repo.subscriptions[sub.ID].LastCharged)
}

func TestCompleteDeliveryRejectsNonScheduled(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	_, first := mustCreate(t, svc, d, shopID)

	_, err := svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.NoError(t, err)

	_, err = svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCompleteDeliveryRejectsCancelledSubscription(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, first := mustCreate(t, svc, d, shopID)

	d.repo.subscriptions[sub.ID].Active = false

	_, err := svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPauseClearsUpcomingDeliveries(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, _ := mustCreate(t, svc, d, shopID)

	paused, err := svc.Pause(context.Background(), shopID, sub.ID)
	require.NoError(t, err)

	assert.True(t, paused.Paused)
	assert.Nil(t, paused.NextDelivery)
	assert.Equal(t, 0, d.repo.scheduledCount(sub.ID))

	_, err = svc.Pause(context.Background(), shopID, sub.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPauseRespectsShopPolicy(t *testing.T) {
	d, shopID := newDeps()
	d.settings.policy.AllowPause = false
	svc := testService(t, d, testNow)
	sub, _ := mustCreate(t, svc, d, shopID)

	_, err := svc.Pause(context.Background(), shopID, sub.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))
	assert.Equal(t, 1, d.repo.scheduledCount(sub.ID))
}

func TestResumeRecomputesSchedule(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, _ := mustCreate(t, svc, d, shopID)

	_, err := svc.Resume(context.Background(), shopID, sub.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Pause(context.Background(), shopID, sub.ID)
	require.NoError(t, err)

	resumed, err := svc.Resume(context.Background(), shopID, sub.ID)
	require.NoError(t, err)

	assert.False(t, resumed.Paused)
	require.NotNil(t, resumed.NextDelivery)
	assert.Equal(t, time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC), *resumed.NextDelivery)
	assert.Equal(t, 1, d.repo.scheduledCount(sub.ID))
}

func TestCancelRetainsDeliveredHistory(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, first := mustCreate(t, svc, d, shopID)

	_, err := svc.CompleteDelivery(context.Background(), shopID, first.ID, CompleteDeliveryInput{})
	require.NoError(t, err)
	require.Equal(t, 1, d.repo.scheduledCount(sub.ID))

	cancelled, err := svc.Cancel(context.Background(), shopID, sub.ID)
	require.NoError(t, err)

	assert.False(t, cancelled.Active)
	require.NotNil(t, cancelled.EndDate)
	assert.Nil(t, cancelled.NextDelivery)
	assert.Equal(t, 0, d.repo.scheduledCount(sub.ID))

	history, err := svc.ListDeliveries(context.Background(), shopID, sub.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.DeliveryStatusDelivered, history[0].Status)

	_, err = svc.Cancel(context.Background(), shopID, sub.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelRespectsShopPolicy(t *testing.T) {
	d, shopID := newDeps()
	d.settings.policy.AllowCancel = false
	svc := testService(t, d, testNow)
	sub, _ := mustCreate(t, svc, d, shopID)

	_, err := svc.Cancel(context.Background(), shopID, sub.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))
	assert.True(t, d.repo.subscriptions[sub.ID].Active)
}

func TestCatchUpAdvancesOverdueSubscriptions(t *testing.T) {
	d, shopID := newDeps()
	svc := testService(t, d, testNow)
	sub, first := mustCreate(t, svc, d, shopID)

	// simulate downtime: the planned drop slipped three days into the past
	stale := testNow.AddDate(0, 0, -3)
	stored := d.repo.subscriptions[sub.ID]
	stored.NextDelivery = &stale
	d.repo.deliveries[first.ID].DeliveryDate = stale

	advanced, err := svc.CatchUp(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	updated := d.repo.subscriptions[sub.ID]
	require.NotNil(t, updated.NextDelivery)
	assert.True(t, updated.NextDelivery.After(testNow))
	assert.Equal(t, 1, d.repo.scheduledCount(sub.ID))
	assert.Equal(t, enums.DeliveryStatusFailed, d.repo.deliveries[first.ID].Status)
}
