package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"go.uber.org/zap"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

const (
	codeInternal          apperr.Code = "INTERNAL_ERROR"
	codeIdempotencyReused apperr.Code = "IDEMPOTENCY_KEY_REUSED"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error code to its HTTP status.
func statusFor(c apperr.Code) int {
	switch c {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeProductNotFound, apperr.CodeOrderNotFound:
		return http.StatusNotFound
	case apperr.CodeInsufficientStock, apperr.CodeIllegalTransition:
		return http.StatusConflict
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case codeIdempotencyReused:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err. Errors without a code are logged and hidden behind
// a generic 500 body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		writeJSON(w, statusFor(e.Code), errorBody{Error: errorDetail{Code: e.Code, Message: e.Message, Details: e.Details}})
		return
	}
	logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: codeInternal, Message: "internal server error"}})
}
