package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

const (
	StreamName     = "FEED_ACTIONS"
	SubjectPattern = "feed.action.>" // Tous les events feed.action.*
)

// msgPublisher est le sous-ensemble de jetstream.JetStream utilisé ici
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsPublisher struct {
	js  msgPublisher
	now func() time.Time
}

// NewNatsPublisher s'assure que le Stream existe (Idempotent)
func NewNatsPublisher(ctx context.Context, nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1, // Mettre 3 en cluster
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return newPublisher(js), nil
}

func newPublisher(js msgPublisher) *NatsPublisher {
	return &NatsPublisher{js: js, now: time.Now}
}

// ActionEvent est le contrat avec l'orchestration (navigation, partage, lecture vidéo)
type ActionEvent struct {
	Kind       string    `json:"kind"`
	PostID     int64     `json:"post_id"`
	ViewerID   string    `json:"viewer_id"`
	Content    string    `json:"content,omitempty"` // Edit + partage du Repost
	Video      string    `json:"video,omitempty"`
	Attachment string    `json:"attachment,omitempty"`
	At         time.Time `json:"at"`
}

func Subject(kind domain.ActionKind) string {
	return "feed.action." + string(kind)
}

func (p *NatsPublisher) PublishAction(ctx context.Context, viewerID string, action domain.Action, post *domain.Post) error {
	event := ActionEvent{
		Kind:     string(action.Kind),
		PostID:   action.PostID,
		ViewerID: viewerID,
		At:       p.now().UTC(),
	}
	if post != nil {
		event.Content = post.Content
		event.Video = post.Video
		event.Attachment = post.Attachment
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: Subject(action.Kind),
		Data:    data,
		Header:  nats.Header{},
	}
	// Injection du trace context dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	slog.Debug("📢 Action published", "subject", msg.Subject, "post_id", action.PostID, "seq", ack.Sequence)
	return nil
}
