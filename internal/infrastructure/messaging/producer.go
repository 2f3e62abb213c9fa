package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openspec-api/internal/domain/entity"
	"openspec-api/pkg/logger"
	"openspec-api/pkg/metrics"
	pkgtracer "openspec-api/pkg/tracer"
)

var tracer = otel.Tracer("openspec/messaging")

const defaultMaxLen = 100000

// Producer 将工作流事件追加到 Redis Stream，实现 service.EventPublisher
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
	now    func() time.Time
}

// NewProducer stream 为空时使用 StreamWorkflow；maxLen 为近似裁剪上限
func NewProducer(client *redis.Client, stream Stream, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	if stream == "" {
		stream = StreamWorkflow
	}
	return &Producer{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

// Stream 目标流
func (p *Producer) Stream() Stream {
	return p.stream
}

// PublishWorkflowEvent 发布事件，请求与追踪标识随事件写入
func (p *Producer) PublishWorkflowEvent(ctx context.Context, event *entity.WorkflowEvent) error {
	env := &Envelope{
		ID:          uuid.NewString(),
		Event:       *event,
		TraceID:     pkgtracer.TraceID(ctx),
		PublishedAt: p.now().UTC(),
	}
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		env.RequestID = rid
	}

	if _, err := p.publish(ctx, env); err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return err
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

func (p *Producer) publish(ctx context.Context, env *Envelope) (string, error) {
	ctx, span := tracer.Start(ctx, "stream.XAdd",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", string(p.stream)),
			attribute.String("workflow.id", env.Event.WorkflowID),
			attribute.String("workflow.event", env.Event.Type),
		))
	defer span.End()

	values, err := env.values()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("encode workflow event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(p.stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	span.SetAttributes(attribute.String("messaging.message_id", id))
	return id, nil
}
