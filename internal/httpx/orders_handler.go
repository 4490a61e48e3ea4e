package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/ariefcatur/go-order-core/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Service *orders.Service
	Cache   *redisx.OrderCache
	Idem    *redisx.Idempotency
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid JSON in request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis; order tetap dibaca dari store
	key := r.Header.Get(HeaderIdempotencyKey)
	hash := requestHash(req)
	if rec, ok := h.Idem.Lookup(ctx, key); ok {
		if rec.RequestHash != hash {
			writeError(w, r, apperr.New(codeIdempotencyReused, "Idempotency-Key was already used for a different request"))
			return
		}
		if o, err := h.Service.GetOrder(ctx, rec.OrderID); err == nil {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	o, err := h.Service.CreateOrder(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Idem.Remember(ctx, key, redisx.IdemRecord{OrderID: o.ID, RequestHash: hash}); err != nil {
		logging.FromContext(ctx).Warn("store idempotency key", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Service.ListOrders(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if o, ok := h.Cache.Get(ctx, orderID); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}

	// 2) fallback store
	o, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cache.Set(ctx, o); err != nil {
		logging.FromContext(ctx).Warn("order cache set failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Validation("invalid JSON in request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// requestHash fingerprints the decoded request, so formatting differences of
// the same body hash the same.
func requestHash(in orders.CreateOrderInput) string {
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseListFilter(r *http.Request) (orders.ListFilter, error) {
	q := r.URL.Query()
	var f orders.ListFilter
	var err error
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, apperr.Validation("page must be an integer")
		}
		if f.Page < 1 {
			return f, apperr.Validation("page must be >= 1")
		}
	}
	if v := q.Get("page_size"); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil {
			return f, apperr.Validation("page_size must be an integer")
		}
		if f.PageSize < 1 {
			return f, apperr.Validation("page_size must be between 1 and %d", orders.MaxPageSize)
		}
	}
	if v := q.Get("status"); v != "" {
		if f.Status, err = orders.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("payment_status"); v != "" {
		if f.PaymentStatus, err = orders.ParsePaymentStatus(v); err != nil {
			return f, err
		}
	}
	return f, nil
}
