package payments

import (
	"context"

	"github.com/ariefcatur/go-order-core/internal/apperr"
	kafkax "github.com/ariefcatur/go-order-core/internal/kafka"
	"github.com/ariefcatur/go-order-core/internal/logging"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationHandler applies payment notifications delivered over Kafka. The
// message value is the raw webhook body and the x-signature header carries its
// signature, so both transports share one Processor.
//
// Rejected notifications (bad signature, bad payload, unknown order, illegal
// transition) will never succeed on redelivery and are committed after
// logging. Anything else is returned and the consumer retries the message
// before moving on in that partition.
func NotificationHandler(p *Processor, log *zap.Logger) kafkax.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, m kafkago.Message) error {
		ctx = kafkax.ExtractTrace(ctx, m.Headers)
		l := log.With(
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		ctx = logging.ContextWithLogger(ctx, l)

		_, err := p.HandleWebhook(ctx, m.Value, kafkax.Header(m.Headers, kafkax.HeaderSignature))
		if err == nil {
			return nil
		}
		if code, ok := apperr.CodeOf(err); ok {
			l.Warn("payment notification rejected", zap.String("code", string(code)), zap.Error(err))
			return nil
		}
		return err
	}
}
