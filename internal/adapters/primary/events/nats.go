package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const SubjectPostCreated = "post.created"

// PostNotifier est la partie de ports.FeedService utilisée par le consumer.
type PostNotifier interface {
	NotifyPostCreated(ctx context.Context, postID int64) error
}

// PostCreatedEvent : contrat implicite avec le service qui publie les posts
type PostCreatedEvent struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type EventHandler struct {
	service PostNotifier
	timeout time.Duration
}

func NewEventHandler(service PostNotifier) *EventHandler {
	return &EventHandler{service: service, timeout: 10 * time.Second}
}

// Subscribe branche le handler sur la connexion NATS.
func (h *EventHandler) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(SubjectPostCreated, h.HandlePostCreated)
}

func (h *EventHandler) HandlePostCreated(msg *nats.Msg) {
	// Le contexte de trace vient des headers NATS
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))

	ctx, span := otel.Tracer("feed-view-service").Start(ctx, "process_post_created", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event PostCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "error", err)
		return
	}
	if event.ID <= 0 {
		slog.Error("❌ Invalid event: missing post id", "subject", msg.Subject)
		return
	}

	slog.Info("📨 Feed view received event", "post_id", event.ID, "author", event.Author)

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.service.NotifyPostCreated(ctx, event.ID); err != nil {
		span.RecordError(err)
		slog.Error("❌ Newer post notification failed", "post_id", event.ID, "error", err)
	}
}
