// Package orders turns a cart, a shipping address and a payment into a paid order.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/swaymx/sway-api/internal/address"
	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/redisx"
	"github.com/swaymx/sway-api/internal/store"
	"github.com/swaymx/sway-api/internal/validate"
)

const (
	workflowCreate = "order_create"
	workflowStatus = "order_status_update"
)

// Cache is the Redis side of the workflow. Failures are logged, never returned.
type Cache interface {
	SetStatus(ctx context.Context, orderID int64, e redisx.StatusEntry) error
	GetStatus(ctx context.Context, orderID int64) (redisx.StatusEntry, bool, error)
	SaveIdempotent(ctx context.Context, userID int64, key string, v any) error
	LookupIdempotent(ctx context.Context, userID int64, key string, out any) (bool, error)
}

type Service struct {
	Store     store.Store
	Cache     Cache // optional
	Publisher events.Publisher
	Metrics   metrics.Recorder
	Log       *slog.Logger

	ServiceName string
	Now         func() time.Time
}

type Result struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	Status      Status `json:"status"`
	Idempotent  bool   `json:"idempotent"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewOrderNumber returns the human-facing order number.
func NewOrderNumber(t time.Time) string {
	return fmt.Sprintf("SW-%s-%s", t.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// Create places an order for the caller. idemKey may be empty; when it is
// set and a result for it exists, that result is returned unchanged.
func (s *Service) Create(ctx context.Context, p principal.Principal, in OrderInput, idemKey string) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.Metrics.RecordDuration(workflowCreate, time.Since(start))
		s.Metrics.RecordOperation(workflowCreate, outcome(err))
	}()

	if !p.AtLeast(principal.Customer) {
		return Result{}, apperr.Forbidden("placing orders requires a customer account")
	}
	userID := in.UserID
	if userID == 0 {
		userID = p.UserID
	}
	if !p.Owns(userID) {
		return Result{}, apperr.Forbidden("cannot place orders for another user")
	}

	if idemKey != "" && s.Cache != nil {
		var prev Result
		ok, err := s.Cache.LookupIdempotent(ctx, userID, idemKey, &prev)
		if err != nil {
			s.Log.Warn("idempotency lookup failed", "user_id", userID, "err", err)
		} else if ok {
			prev.Idempotent = true
			return prev, nil
		}
	}

	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	var (
		total  decimal.Decimal
		placed store.Order
		lines  []store.OrderLine
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("user", userID)
			}
			return errors.Wrap(err, "orders: load user")
		}

		streetID, err := address.Resolve(ctx, tx, in.Shipping)
		if err != nil {
			return err
		}
		addressID, err := address.CreateAddress(ctx, tx, streetID, in.Shipping)
		if err != nil {
			return err
		}

		wanted, ids, err := cumulative(in.Lines)
		if err != nil {
			return err
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "orders: lock products")
		}
		var short []apperr.StockShortage
		for _, id := range ids {
			pr, ok := products[id]
			if !ok || !pr.Active {
				return apperr.NotFound("product", id)
			}
			if wanted[id] > pr.Stock {
				short = append(short, apperr.StockShortage{ProductID: id, Required: wanted[id], Available: pr.Stock})
			}
		}
		if len(short) > 0 {
			return apperr.InsufficientStock(short)
		}

		lines = make([]store.OrderLine, 0, len(in.Lines))
		total = decimal.Zero
		for _, l := range in.Lines {
			price := products[l.ProductID].Price
			sub := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			lines = append(lines, store.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price, Subtotal: sub})
			total = total.Add(sub)
		}

		placed = store.Order{
			Number:       NewOrderNumber(s.now()),
			UserID:       userID,
			AddressID:    addressID,
			Total:        total,
			Status:       string(StatusPending),
			ContactPhone: validate.CleanPhone(in.Shipping.ContactPhone),
			CreatedAt:    s.now(),
		}
		if placed.ID, err = tx.InsertOrder(ctx, placed); err != nil {
			return errors.Wrap(err, "orders: insert order")
		}
		for i := range lines {
			lines[i].OrderID = placed.ID
			if err := tx.InsertOrderLine(ctx, lines[i]); err != nil {
				return errors.Wrap(err, "orders: insert line")
			}
		}
		if err := tx.InsertPayment(ctx, paymentRecord(placed.ID, in.Payment, total)); err != nil {
			return errors.Wrap(err, "orders: insert payment")
		}

		for _, id := range ids {
			ok, err := tx.DecrementStock(ctx, id, wanted[id])
			if err != nil {
				return errors.Wrap(err, "orders: decrement stock")
			}
			if !ok {
				return apperr.InsufficientStock([]apperr.StockShortage{
					{ProductID: id, Required: wanted[id], Available: products[id].Stock},
				})
			}
		}

		return advance(ctx, tx, placed.ID, StatusPending, StatusPaid)
	})
	if err != nil {
		return Result{}, err
	}

	res = Result{
		OrderID:     placed.ID,
		OrderNumber: placed.Number,
		Total:       total.StringFixed(2),
		Status:      StatusPaid,
	}
	s.afterCommit(ctx, userID, idemKey, res, placed, lines)
	s.Log.Info("order placed",
		"order_id", res.OrderID, "order_number", res.OrderNumber, "user_id", userID,
		"total", res.Total, "lines", len(lines))
	return res, nil
}

// cumulative sums quantities per product and returns the ids in ascending
// order, which is also the order rows are locked and decremented in.
func cumulative(lines []LineInput) (map[int64]int, []int64, error) {
	wanted := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 || wanted[l.ProductID] > math.MaxInt-l.Quantity {
			return nil, nil, apperr.Validation("line_items.quantity", "line_items.quantity is out of range")
		}
		wanted[l.ProductID] += l.Quantity
	}
	ids := make([]int64, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return wanted, ids, nil
}

func advance(ctx context.Context, tx store.Tx, orderID int64, from, to Status) error {
	if !CanTransition(from, to) {
		return apperr.Validation("status", fmt.Sprintf("cannot move an order from %s to %s", from, to))
	}
	ok, err := tx.UpdateOrderStatus(ctx, orderID, string(from), string(to))
	if err != nil {
		return errors.Wrap(err, "orders: update status")
	}
	if !ok {
		return errors.Errorf("orders: order %d is no longer %s", orderID, from)
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, userID int64, idemKey string, res Result, o store.Order, lines []store.OrderLine) {
	if s.Cache != nil {
		if err := s.Cache.SetStatus(ctx, res.OrderID, redisx.StatusEntry{Status: string(res.Status), UserID: userID}); err != nil {
			s.Log.Warn("order status not cached", "order_id", res.OrderID, "err", err)
		}
		if idemKey != "" {
			if err := s.Cache.SaveIdempotent(ctx, userID, idemKey, res); err != nil {
				s.Log.Warn("idempotency record not saved", "order_id", res.OrderID, "err", err)
			}
		}
	}

	payload := events.OrderPaid{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      userID,
		Total:       o.Total,
		Lines:       make([]events.LineQty, 0, len(lines)),
	}
	for _, l := range lines {
		payload.Lines = append(payload.Lines, events.LineQty{ProductID: l.ProductID, Quantity: l.Quantity, Subtotal: l.Subtotal})
	}
	env, err := events.New(events.TypeOrderPaid, s.ServiceName, fmt.Sprint(o.ID), "", payload)
	if err == nil {
		err = s.Publisher.Publish(ctx, events.TopicOrderPaid, events.PartitionKey(o.ID), env)
	}
	if err != nil {
		s.Metrics.RecordEvent(events.TopicOrderPaid, "dropped")
		s.Log.Warn("order event not published", "order_id", o.ID, "err", err)
		return
	}
	s.Metrics.RecordEvent(events.TopicOrderPaid, "published")
}

// UpdateStatus moves an order along the status machine. Cancelling
// returns the ordered quantities to stock.
func (s *Service) UpdateStatus(ctx context.Context, p principal.Principal, orderID int64, to Status) (err error) {
	start := time.Now()
	defer func() {
		s.Metrics.RecordDuration(workflowStatus, time.Since(start))
		s.Metrics.RecordOperation(workflowStatus, outcome(err))
	}()

	if !p.AtLeast(principal.Collaborator) {
		return apperr.Forbidden("only collaborators can change order status")
	}
	if _, ok := ParseStatus(string(to)); !ok {
		return apperr.Validation("status", "unknown order status")
	}

	var userID int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("order", orderID)
		}
		if err != nil {
			return errors.Wrap(err, "orders: lock order")
		}
		userID = o.UserID

		if to == StatusCancelled && CanTransition(Status(o.Status), to) {
			lines, err := tx.ListOrderLines(ctx, orderID)
			if err != nil {
				return errors.Wrap(err, "orders: list lines")
			}
			for _, l := range lines {
				if err := tx.IncrementStock(ctx, l.ProductID, l.Quantity); err != nil {
					return errors.Wrap(err, "orders: restock")
				}
			}
		}
		return advance(ctx, tx, orderID, Status(o.Status), to)
	})
	if err != nil {
		return err
	}

	if s.Cache != nil {
		if err := s.Cache.SetStatus(ctx, orderID, redisx.StatusEntry{Status: string(to), UserID: userID}); err != nil {
			s.Log.Warn("order status not cached", "order_id", orderID, "err", err)
		}
	}
	s.Log.Info("order status changed", "order_id", orderID, "status", to, "by", p.UserID)
	return nil
}

// Status returns the order's current status, from Redis when cached.
func (s *Service) Status(ctx context.Context, p principal.Principal, orderID int64) (redisx.StatusEntry, error) {
	if s.Cache != nil {
		e, ok, err := s.Cache.GetStatus(ctx, orderID)
		if err != nil {
			s.Log.Warn("status cache read failed", "order_id", orderID, "err", err)
		}
		if ok {
			if !p.Owns(e.UserID) {
				return redisx.StatusEntry{}, apperr.Forbidden("order belongs to another user")
			}
			return e, nil
		}
	}

	d, err := s.Get(ctx, p, orderID)
	if err != nil {
		return redisx.StatusEntry{}, err
	}
	e := redisx.StatusEntry{Status: d.Status, UserID: d.UserID, UpdatedAt: time.Now().UTC()}
	if s.Cache != nil {
		if err := s.Cache.SetStatus(ctx, orderID, e); err != nil {
			s.Log.Warn("order status not cached", "order_id", orderID, "err", err)
		}
	}
	return e, nil
}

// Get returns one order if the caller owns it.
func (s *Service) Get(ctx context.Context, p principal.Principal, orderID int64) (store.OrderDetail, error) {
	if !p.AtLeast(principal.Customer) {
		return store.OrderDetail{}, apperr.Forbidden("order history requires a customer account")
	}
	d, err := s.Store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return store.OrderDetail{}, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return store.OrderDetail{}, err
	}
	if !p.Owns(d.UserID) {
		return store.OrderDetail{}, apperr.Forbidden("order belongs to another user")
	}
	return d, nil
}

// ReorderLine is a line of an earlier order that can be placed again as is,
// priced at the product's current price.
type ReorderLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
}

// Reorder returns the lines of an order the caller owns whose products are
// still active with enough stock for the original quantity. Nothing is
// reserved; the client places a new order with the result.
func (s *Service) Reorder(ctx context.Context, p principal.Principal, orderID int64) ([]ReorderLine, error) {
	d, err := s.Get(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	products, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.Product, len(products))
	for _, pr := range products {
		byID[pr.ID] = pr
	}

	var out []ReorderLine
	for _, l := range d.Lines {
		pr, ok := byID[l.ProductID]
		if !ok || !pr.Active || pr.Stock < l.Quantity {
			continue
		}
		out = append(out, ReorderLine{ProductID: pr.ID, Name: pr.Name, Price: pr.Price, Quantity: l.Quantity, Stock: pr.Stock})
	}
	if len(out) == 0 {
		return nil, apperr.Validation("order_id", "no products from this order are available to reorder")
	}
	s.Log.Info("order reorder prepared", "order_id", orderID, "lines", len(out), "of", len(d.Lines))
	return out, nil
}

// List returns the orders of userID, or of the caller when userID is zero.
func (s *Service) List(ctx context.Context, p principal.Principal, userID int64) ([]store.OrderSummary, error) {
	if !p.AtLeast(principal.Customer) {
		return nil, apperr.Forbidden("order history requires a customer account")
	}
	if userID == 0 {
		userID = p.UserID
	}
	if !p.Owns(userID) {
		return nil, apperr.Forbidden("cannot read another user's orders")
	}
	return s.Store.ListOrdersByUser(ctx, userID)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.From(err).Code
}
