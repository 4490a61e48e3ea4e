package orders

import (
	"errors"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-core/internal/orders")

// EndSpan records err on span and ends it. Business rejections (*apperr.Error)
// are recorded as events only; the span status stays unset for them.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
