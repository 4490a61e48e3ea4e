package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/ariefcatur/go-order-core/internal/payments"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Processor *payments.Processor
}

type webhookResp struct {
	Message       string               `json:"message"`
	OrderID       string               `json:"order_id"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	Duplicate     bool                 `json:"duplicate"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/payment-webhook", h.paymentWebhook)
}

func (h *WebhookHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	// signature dihitung dari byte mentah, jadi body tidak boleh di-decode dulu
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, apperr.Validation("cannot read request body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Processor.HandleWebhook(ctx, body, r.Header.Get(payments.SignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Payment status updated successfully"
	if res.Duplicate {
		msg = "Payment status already recorded"
	}
	writeJSON(w, http.StatusOK, webhookResp{Message: msg, OrderID: res.OrderID, PaymentStatus: res.PaymentStatus, Duplicate: res.Duplicate})
}
