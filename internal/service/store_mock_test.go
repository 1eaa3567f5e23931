package service

import (
	"context"
	"sync"
	"time"

	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/postgres"
	"github.com/arverne/softsell/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeStore is an in-memory Store for service tests. It mirrors the guard
// semantics of the real queries: conditional updates, ON CONFLICT upserts
// and the unique invoice number index.
type fakeStore struct {
	mu sync.Mutex

	sessions  map[string]repository.Session
	orders    map[string]repository.Order
	items     map[string][]repository.OrderItem
	addresses map[string]repository.Address
	methods   map[string]repository.PaymentMethod
	events    map[string]bool

	// failNext, when set, makes the next storage call fail with it.
	failNext error
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  make(map[string]repository.Session),
		orders:    make(map[string]repository.Order),
		items:     make(map[string][]repository.OrderItem),
		addresses: make(map[string]repository.Address),
		methods:   make(map[string]repository.PaymentMethod),
		events:    make(map[string]bool),
	}
}

func newPgUUID() pgtype.UUID {
	var u pgtype.UUID
	_ = u.Scan(uuid.New().String())
	return u
}

func nowTz() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

func (f *fakeStore) fail() error {
	err := f.failNext
	f.failNext = nil
	return err
}

// --- sessions ---

func (f *fakeStore) GetSession(ctx context.Context, token string) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Session{}, err
	}
	s, ok := f.sessions[token]
	if !ok {
		return repository.Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) GetLatestUserSession(ctx context.Context, userID pgtype.UUID) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Session{}, err
	}
	var latest repository.Session
	found := false
	for _, s := range f.sessions {
		if !s.UserID.Valid || s.UserID != userID {
			continue
		}
		if !s.ExpiresAt.Time.After(time.Now()) {
			continue
		}
		if !found || s.ExpiresAt.Time.After(latest.ExpiresAt.Time) {
			latest = s
			found = true
		}
	}
	if !found {
		return repository.Session{}, pgx.ErrNoRows
	}
	return latest, nil
}

func (f *fakeStore) UpsertSession(ctx context.Context, arg repository.UpsertSessionParams) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Session{}, err
	}
	if existing, ok := f.sessions[arg.Token]; ok {
		return existing, nil
	}
	s := repository.Session{
		Token:     arg.Token,
		UserID:    arg.UserID,
		CreatedAt: nowTz(),
		ExpiresAt: arg.ExpiresAt,
	}
	f.sessions[arg.Token] = s
	return s, nil
}

func (f *fakeStore) ExtendSession(ctx context.Context, arg repository.ExtendSessionParams) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Session{}, err
	}
	s, ok := f.sessions[arg.Token]
	if !ok {
		return repository.Session{}, pgx.ErrNoRows
	}
	s.ExpiresAt = arg.ExpiresAt
	f.sessions[arg.Token] = s
	return s, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, s := range f.sessions {
		if s.ExpiresAt.Time.Before(time.Now()) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

// --- orders ---

func (f *fakeStore) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createOrderLocked(arg)
}

func (f *fakeStore) createOrderLocked(arg repository.CreateOrderParams) (repository.Order, error) {
	for _, o := range f.orders {
		if o.InvoiceNumber == arg.InvoiceNumber {
			return repository.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_invoice_number_key"}
		}
	}
	o := repository.Order{
		ID:               newPgUUID(),
		InvoiceNumber:    arg.InvoiceNumber,
		OrderDate:        nowTz(),
		Status:           arg.Status,
		SubtotalCents:    arg.SubtotalCents,
		TaxCents:         arg.TaxCents,
		TotalCents:       arg.TotalCents,
		Currency:         arg.Currency,
		UserID:           arg.UserID,
		GuestID:          arg.GuestID,
		BillingAddressID: arg.BillingAddressID,
		PaymentIntentID:  arg.PaymentIntentID,
		CreatedAt:        nowTz(),
		UpdatedAt:        nowTz(),
	}
	f.orders[uuidString(o.ID)] = o
	return o, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id pgtype.UUID) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Order{}, err
	}
	o, ok := f.orders[uuidString(id)]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.InvoiceNumber == invoiceNumber {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID pgtype.Text) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentIntentID.Valid && o.PaymentIntentID.String == paymentIntentID.String {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) ListOrdersForUser(ctx context.Context, userID pgtype.UUID) ([]repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Order
	for _, o := range f.orders {
		if o.UserID.Valid && o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOrdersForGuest(ctx context.Context, guestID pgtype.Text) ([]repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Order
	for _, o := range f.orders {
		if o.GuestID.Valid && o.GuestID.String == guestID.String {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionOrderStatus(ctx context.Context, arg repository.TransitionOrderStatusParams) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[uuidString(arg.ID)]
	if !ok || o.Status != arg.FromStatus {
		return repository.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.ToStatus
	o.UpdatedAt = nowTz()
	f.orders[uuidString(arg.ID)] = o
	return o, nil
}

func (f *fakeStore) CompleteOrder(ctx context.Context, id pgtype.UUID) (repository.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeOrderLocked(id)
}

func (f *fakeStore) completeOrderLocked(id pgtype.UUID) (repository.Order, error) {
	o, ok := f.orders[uuidString(id)]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	switch o.Status {
	case domain.OrderStatusCompleted, domain.OrderStatusCancelled, domain.OrderStatusRefunded:
		return repository.Order{}, pgx.ErrNoRows
	}
	o.Status = domain.OrderStatusCompleted
	o.UpdatedAt = nowTz()
	f.orders[uuidString(id)] = o
	return o, nil
}

func (f *fakeStore) SetOrderFailureReason(ctx context.Context, arg repository.SetOrderFailureReasonParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[uuidString(arg.ID)]
	if !ok {
		return pgx.ErrNoRows
	}
	o.FailureReason = arg.FailureReason
	f.orders[uuidString(arg.ID)] = o
	return nil
}

func (f *fakeStore) SetOrderPaymentCard(ctx context.Context, arg repository.SetOrderPaymentCardParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[uuidString(arg.ID)]
	if !ok {
		return pgx.ErrNoRows
	}
	o.PaymentBrand = arg.PaymentBrand
	o.PaymentLast4 = arg.PaymentLast4
	f.orders[uuidString(arg.ID)] = o
	return nil
}

// --- order items ---

func (f *fakeStore) CreateOrderItem(ctx context.Context, arg repository.CreateOrderItemParams) (repository.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createOrderItemLocked(arg)
}

func (f *fakeStore) createOrderItemLocked(arg repository.CreateOrderItemParams) (repository.OrderItem, error) {
	i := repository.OrderItem{
		ID:                 newPgUUID(),
		OrderID:            arg.OrderID,
		ProductID:          arg.ProductID,
		ProductName:        arg.ProductName,
		Quantity:           arg.Quantity,
		BillingInterval:    arg.BillingInterval,
		SubscriptionStatus: arg.SubscriptionStatus,
		UnitPriceCents:     arg.UnitPriceCents,
		DurationMonths:     arg.DurationMonths,
		CreatedAt:          nowTz(),
	}
	key := uuidString(arg.OrderID)
	f.items[key] = append(f.items[key], i)
	return i, nil
}

func (f *fakeStore) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]repository.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.OrderItem(nil), f.items[uuidString(orderID)]...), nil
}

func (f *fakeStore) ActivateOrderItems(ctx context.Context, orderID pgtype.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activateOrderItemsLocked(orderID), nil
}

func (f *fakeStore) activateOrderItemsLocked(orderID pgtype.UUID) int64 {
	key := uuidString(orderID)
	var n int64
	for idx, item := range f.items[key] {
		if item.SubscriptionStatus == domain.SubscriptionStatusPending {
			item.SubscriptionStatus = domain.SubscriptionStatusActive
			item.RenewalDate = pgtype.Timestamptz{
				Time:  time.Now().AddDate(0, int(item.DurationMonths), 0),
				Valid: true,
			}
			f.items[key][idx] = item
			n++
		}
	}
	return n
}

// --- addresses ---

func (f *fakeStore) CreateAddress(ctx context.Context, arg repository.CreateAddressParams) (repository.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Address{}, err
	}
	a := repository.Address{
		ID:         newPgUUID(),
		Name:       arg.Name,
		Line1:      arg.Line1,
		Line2:      arg.Line2,
		City:       arg.City,
		State:      arg.State,
		PostalCode: arg.PostalCode,
		Country:    arg.Country,
		Email:      arg.Email,
		CreatedAt:  nowTz(),
	}
	f.addresses[uuidString(a.ID)] = a
	return a, nil
}

func (f *fakeStore) GetAddress(ctx context.Context, id pgtype.UUID) (repository.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[uuidString(id)]
	if !ok {
		return repository.Address{}, pgx.ErrNoRows
	}
	return a, nil
}

// --- payment methods ---

func (f *fakeStore) CreatePaymentMethod(ctx context.Context, arg repository.CreatePaymentMethodParams) (repository.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := repository.PaymentMethod{
		ID:          newPgUUID(),
		UserID:      arg.UserID,
		ProviderRef: arg.ProviderRef,
		Brand:       arg.Brand,
		Last4:       arg.Last4,
		CreatedAt:   nowTz(),
	}
	f.methods[uuidString(m.ID)] = m
	return m, nil
}

func (f *fakeStore) GetPaymentMethod(ctx context.Context, id pgtype.UUID) (repository.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.methods[uuidString(id)]
	if !ok {
		return repository.PaymentMethod{}, pgx.ErrNoRows
	}
	return m, nil
}

// --- webhook events ---

func (f *fakeStore) InsertWebhookEvent(ctx context.Context, arg repository.InsertWebhookEventParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events[arg.EventID] {
		return 0, nil
	}
	f.events[arg.EventID] = true
	return 1, nil
}

// --- transactional composites ---

func (f *fakeStore) CreateOrderWithItems(ctx context.Context, arg postgres.CreateOrderTxParams) (repository.Order, []repository.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return repository.Order{}, nil, err
	}
	order, err := f.createOrderLocked(arg.Order)
	if err != nil {
		return repository.Order{}, nil, err
	}
	items := make([]repository.OrderItem, 0, len(arg.Items))
	for _, ip := range arg.Items {
		ip.OrderID = order.ID
		item, err := f.createOrderItemLocked(ip)
		if err != nil {
			return repository.Order{}, nil, err
		}
		items = append(items, item)
	}
	return order, items, nil
}

func (f *fakeStore) FulfillOrder(ctx context.Context, eventID, eventType string, orderID pgtype.UUID) (postgres.FulfillOrderTxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res postgres.FulfillOrderTxResult
	if err := f.fail(); err != nil {
		return res, err
	}

	if f.events[eventID] {
		res.AlreadyProcessed = true
		return res, nil
	}
	f.events[eventID] = true

	order, err := f.completeOrderLocked(orderID)
	if err != nil {
		res.AlreadyProcessed = true
		res.Order = f.orders[uuidString(orderID)]
		return res, nil
	}
	res.Order = order
	res.ItemsActivated = f.activateOrderItemsLocked(orderID)
	return res, nil
}
