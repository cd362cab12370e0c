package orders

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaymx/sway-api/internal/address"
	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/logging"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/redisx"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/store/memstore"
)

type fixture struct {
	store *memstore.Store
	pub   *events.Memory
	mr    *miniredis.Miniredis
	svc   *Service
	user  int64
	a, b  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	user := s.AddUser(store.NewUser{FirstName: "Ana", PaternalSurname: "Ruiz", Email: "ana@example.com"})
	a := s.AddProduct("Peluche Tortuga Marina", decimal.RequireFromString("10.00"), 5)
	b := s.AddProduct("Taza Ballena Azul", decimal.RequireFromString("5.00"), 3)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub := &events.Memory{}
	return &fixture{
		store: s,
		pub:   pub,
		mr:    mr,
		user:  user,
		a:     a,
		b:     b,
		svc: &Service{
			Store:       s,
			Cache:       redisx.NewOrderCache(rdb, time.Minute, time.Hour),
			Publisher:   pub,
			Metrics:     metrics.Nop{},
			Log:         logging.Discard(),
			ServiceName: "sway-api",
			Now:         func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		},
	}
}

func (f *fixture) customer() principal.Principal {
	return principal.Principal{UserID: f.user, Capability: principal.Customer}
}

func (f *fixture) input() OrderInput {
	return OrderInput{
		Lines: []LineInput{
			{ProductID: f.a, Quantity: 2},
			{ProductID: f.b, Quantity: 1},
		},
		Shipping: address.Info{
			State:          "Jalisco",
			Municipality:   "Puerto Vallarta",
			Neighborhood:   "Centro",
			Street:         "Morelos",
			ExteriorNumber: "123",
			PostalCode:     "48300",
			ContactPhone:   "(322) 123-4567",
		},
		Payment: PaymentInput{
			Method:     MethodCreditCard,
			CardNumber: "4111 1111 1111 1111",
			CardExpiry: "12/29",
			CardCVV:    "123",
			CardName:   "Ana Ruiz",
		},
	}
}

func stock(t *testing.T, s *memstore.Store, id int64) int {
	t.Helper()
	p, ok := s.Product(id)
	require.True(t, ok)
	return p.Stock
}

func TestCreateTwoLines(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Create(context.Background(), f.customer(), f.input(), "")
	require.NoError(t, err)

	assert.Equal(t, "25.00", res.Total)
	assert.Equal(t, StatusPaid, res.Status)
	assert.Regexp(t, `^SW-20240601-[0-9A-F]{8}$`, res.OrderNumber)

	orders := f.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, string(StatusPaid), orders[0].Status)
	assert.True(t, decimal.RequireFromString("25").Equal(orders[0].Total))
	assert.Equal(t, "3221234567", orders[0].ContactPhone)

	lines := f.store.OrderLines(res.OrderID)
	require.Len(t, lines, 2)
	sum := decimal.Zero
	for _, l := range lines {
		assert.True(t, l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Equal(l.Subtotal))
		sum = sum.Add(l.Subtotal)
	}
	assert.True(t, sum.Equal(orders[0].Total))

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, "**** **** **** 1111", payments[0].MaskedNumber)
	assert.Equal(t, store.CardVisa, payments[0].CardTypeID)
	assert.True(t, payments[0].Amount.Equal(orders[0].Total))

	assert.Equal(t, 3, stock(t, f.store, f.a))
	assert.Equal(t, 2, stock(t, f.store, f.b))

	sent := f.pub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, events.TopicOrderPaid, sent[0].Topic)
	paid, err := events.Decode[events.OrderPaid](sent[0].Envelope)
	require.NoError(t, err)
	assert.Len(t, paid.Lines, 2)
	assert.True(t, paid.Total.Equal(orders[0].Total))

	st, err := f.svc.Status(context.Background(), f.customer(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "paid", st.Status)
}

func TestCreateCardNumberLength(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Payment.CardNumber = "4111 1111 1111 111"
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Equal(t, "payment.card_number", ae.Field)
	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Addresses())
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Lines = []LineInput{
		{ProductID: f.a, Quantity: 4},
		{ProductID: f.b, Quantity: 1},
		{ProductID: f.a, Quantity: 2},
	}
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.CodeInsufficientStock, ae.Code)
	assert.Equal(t, []apperr.StockShortage{{ProductID: f.a, Required: 6, Available: 5}}, ae.Details)

	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Addresses())
	assert.Empty(t, f.store.Places(store.LevelState))
	assert.Equal(t, 5, stock(t, f.store, f.a))
	assert.Equal(t, 3, stock(t, f.store, f.b))
	assert.Empty(t, f.pub.Sent())
}

func TestCreateQuantityOverflowRejected(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Lines = []LineInput{
		{ProductID: f.a, Quantity: math.MaxInt/2 + 1},
		{ProductID: f.a, Quantity: math.MaxInt/2 + 1},
	}
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Equal(t, "line_items[0].quantity", ae.Field)

	assert.Empty(t, f.store.Orders())
	assert.Equal(t, 5, stock(t, f.store, f.a))
	assert.Empty(t, f.pub.Sent())
}

func TestCumulativeRejectsOverflow(t *testing.T) {
	_, _, err := cumulative([]LineInput{
		{ProductID: 1, Quantity: math.MaxInt/2 + 1},
		{ProductID: 1, Quantity: math.MaxInt/2 + 1},
	})
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, "line_items.quantity", ae.Field)

	wanted, ids, err := cumulative([]LineInput{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 4}, {ProductID: 2, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, map[int64]int{1: 4, 2: 3}, wanted)
}

func TestCreateUnknownProduct(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Lines = append(in.Lines, LineInput{ProductID: 999, Quantity: 1})
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, f.store.Orders())
}

func TestCreatePostalCodeBoundary(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Shipping.PostalCode = "4830"
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "shipping_address.postal_code", ae.Field)

	in.Shipping.PostalCode = "48300"
	_, err = f.svc.Create(context.Background(), f.customer(), in, "")
	assert.NoError(t, err)
}

func TestCreatePayPal(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Payment = PaymentInput{Method: MethodPayPal}
	_, err := f.svc.Create(context.Background(), f.customer(), in, "")
	require.NoError(t, err)

	p := f.store.Payments()[0]
	assert.Equal(t, store.CardPayPal, p.CardTypeID)
	assert.Equal(t, "PAYPAL_TRANS", p.MaskedNumber)
	assert.Equal(t, "N/A", p.Expiry)
	assert.Equal(t, "PayPal User", p.HolderName)
}

func TestCreatePaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("InsertPayment", errors.New("disk full"))
	_, err := f.svc.Create(context.Background(), f.customer(), f.input(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.From(err).Code)

	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Addresses())
	assert.Equal(t, 5, stock(t, f.store, f.a))
	assert.Empty(t, f.pub.Sent())
}

func TestCreateStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.SetUnavailable(true)
	_, err := f.svc.Create(context.Background(), f.customer(), f.input(), "")
	assert.Equal(t, apperr.CodeStoreUnavailable, apperr.From(err).Code)
}

func TestCreateIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, f.customer(), f.input(), "cart-42")
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	again, err := f.svc.Create(ctx, f.customer(), f.input(), "cart-42")
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, first.OrderID, again.OrderID)
	assert.Equal(t, first.Total, again.Total)
	assert.Len(t, f.store.Orders(), 1)
	assert.Equal(t, 3, stock(t, f.store, f.a))

	_, err = f.svc.Create(ctx, f.customer(), f.input(), "cart-43")
	require.NoError(t, err)
	assert.Len(t, f.store.Orders(), 2)
}

func TestCreateRedisDownStillPlacesOrder(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()
	res, err := f.svc.Create(context.Background(), f.customer(), f.input(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, "25.00", res.Total)
	assert.Len(t, f.store.Orders(), 1)
}

func TestCreateAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, principal.Anonymous, f.input(), "")
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)

	other := f.store.AddUser(store.NewUser{FirstName: "Luis", PaternalSurname: "Gómez", Email: "luis@example.com"})
	in := f.input()
	in.UserID = other
	_, err = f.svc.Create(ctx, f.customer(), in, "")
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)

	admin := principal.Principal{UserID: 1000, Capability: principal.Collaborator}
	in.UserID = 4242
	_, err = f.svc.Create(ctx, admin, in, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, f.store.Orders())
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, f.customer(), f.input(), "")
	require.NoError(t, err)

	admin := principal.Principal{UserID: 1000, Capability: principal.Collaborator}

	err = f.svc.UpdateStatus(ctx, f.customer(), res.OrderID, StatusShipped)
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)

	require.NoError(t, f.svc.UpdateStatus(ctx, admin, res.OrderID, StatusShipped))
	st, err := f.svc.Status(ctx, f.customer(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "shipped", st.Status)

	err = f.svc.UpdateStatus(ctx, admin, res.OrderID, StatusCancelled)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "status", ae.Field)

	err = f.svc.UpdateStatus(ctx, admin, 999, StatusShipped)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCancelRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, f.customer(), f.input(), "")
	require.NoError(t, err)
	require.Equal(t, 3, stock(t, f.store, f.a))

	admin := principal.Principal{UserID: 1000, Capability: principal.Collaborator}
	require.NoError(t, f.svc.UpdateStatus(ctx, admin, res.OrderID, StatusCancelled))
	assert.Equal(t, 5, stock(t, f.store, f.a))
	assert.Equal(t, 3, stock(t, f.store, f.b))

	err = f.svc.UpdateStatus(ctx, admin, res.OrderID, StatusCancelled)
	require.Error(t, err)
	assert.Equal(t, 5, stock(t, f.store, f.a))
}

func TestStatusFallsBackToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, f.customer(), f.input(), "")
	require.NoError(t, err)

	f.mr.FlushAll()
	st, err := f.svc.Status(ctx, f.customer(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "paid", st.Status)
	assert.True(t, f.mr.Exists(fmt.Sprintf(redisx.KeyOrderStatus, res.OrderID)))
}

func TestGetAndListOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, f.customer(), f.input(), "")
	require.NoError(t, err)

	d, err := f.svc.Get(ctx, f.customer(), res.OrderID)
	require.NoError(t, err)
	assert.Len(t, d.Lines, 2)
	assert.Equal(t, "**** **** **** 1111", d.PaymentCard)
	assert.Contains(t, d.Address, "Morelos 123")

	list, err := f.svc.List(ctx, f.customer(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.OrderNumber, list[0].Number)

	stranger := principal.Principal{UserID: f.user + 1, Capability: principal.Customer}
	_, err = f.svc.Get(ctx, stranger, res.OrderID)
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)
	_, err = f.svc.List(ctx, stranger, f.user)
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)
	_, err = f.svc.Status(ctx, stranger, res.OrderID)
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, f.customer(), f.input(), "")
	require.NoError(t, err)

	lines, err := f.svc.Reorder(ctx, f.customer(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, ReorderLine{ProductID: f.a, Name: "Peluche Tortuga Marina", Price: decimal.RequireFromString("10.00"), Quantity: 2, Stock: 3}, lines[0])
	assert.Equal(t, 3, stock(t, f.store, f.a), "reorder reserves nothing")

	// b is retired and a can no longer cover two units
	f.store.SetProductActive(f.b, false)
	_, err = f.svc.Create(ctx, f.customer(), OrderInput{
		Lines:    []LineInput{{ProductID: f.a, Quantity: 2}},
		Shipping: f.input().Shipping,
		Payment:  PaymentInput{Method: MethodPayPal},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 1, stock(t, f.store, f.a))

	_, err = f.svc.Reorder(ctx, f.customer(), res.OrderID)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, apperr.CodeValidation, ae.Code)

	f.store.SetProductActive(f.b, true)
	lines, err = f.svc.Reorder(ctx, f.customer(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, f.b, lines[0].ProductID)

	stranger := principal.Principal{UserID: f.user + 1, Capability: principal.Customer}
	_, err = f.svc.Reorder(ctx, stranger, res.OrderID)
	assert.Equal(t, apperr.CodeForbidden, apperr.From(err).Code)
	_, err = f.svc.Reorder(ctx, f.customer(), 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
