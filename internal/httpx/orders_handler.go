package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swaymx/sway-api/internal/orders"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/store"
)

type OrdersHandler struct {
	Svc *orders.Service
	Log *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/reorder", h.reorder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.OrderInput
	if err := decode(r, &in); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	res, err := h.Svc.Create(r.Context(), principal.FromContext(r.Context()), in, key)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if res.Idempotent {
		ok(w, http.StatusOK, "order already placed", res)
		return
	}
	ok(w, http.StatusCreated, "order placed", res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	list, err := h.Svc.List(r.Context(), principal.FromContext(r.Context()), userID)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []store.OrderSummary{}
	}
	ok(w, http.StatusOK, "orders", list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	d, err := h.Svc.Get(r.Context(), principal.FromContext(r.Context()), id)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "order", d)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	st, err := h.Svc.Status(r.Context(), principal.FromContext(r.Context()), id)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "order status", map[string]any{
		"order_id":   id,
		"status":     st.Status,
		"updated_at": st.UpdatedAt,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	to := orders.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.Svc.UpdateStatus(r.Context(), principal.FromContext(r.Context()), id, to); err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, "order status updated", map[string]any{"order_id": id, "status": to})
}

func (h *OrdersHandler) reorder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	lines, err := h.Svc.Reorder(r.Context(), principal.FromContext(r.Context()), id)
	if err != nil {
		fail(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, fmt.Sprintf("%d product(s) available to reorder", len(lines)), map[string]any{
		"order_id": id,
		"lines":    lines,
	})
}
