package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

const handleTimeout = 30 * time.Second

// ActionHandler est implémenté par FeedService.
type ActionHandler interface {
	Handle(ctx context.Context, req domain.ActionRequest) error
}

// Dispatcher est la file d'actions émises par la liste. Chaque lecteur est
// rattaché à un worker (xxhash de son ID) : ses actions restent ordonnées.
type Dispatcher struct {
	handler ActionHandler
	shards  []chan domain.ActionRequest
}

func NewDispatcher(handler ActionHandler, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	shards := make([]chan domain.ActionRequest, workers)
	for i := range shards {
		shards[i] = make(chan domain.ActionRequest, queueSize)
	}
	return &Dispatcher{handler: handler, shards: shards}
}

// Emit ne bloque jamais : si la file du lecteur est pleine, ErrQueueFull.
func (d *Dispatcher) Emit(req domain.ActionRequest) error {
	if req.ViewerID == "" {
		return domain.ErrViewerRequired
	}
	if _, err := domain.ParseActionKind(string(req.Action.Kind)); err != nil {
		return err
	}

	shard := d.shards[xxhash.Sum64String(req.ViewerID)%uint64(len(d.shards))]
	select {
	case shard <- req:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Run démarre les workers et bloque jusqu'à l'annulation de ctx.
// Les actions encore en file à l'arrêt sont abandonnées.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, shard := range d.shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx, i, shard)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, worker int, queue <-chan domain.ActionRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			childCtx, cancel := context.WithTimeout(ctx, handleTimeout)
			if err := d.handler.Handle(childCtx, req); err != nil {
				slog.Error("❌ Action failed",
					"worker", worker,
					"viewer_id", req.ViewerID,
					"kind", req.Action.Kind,
					"post_id", req.Action.PostID,
					"error", err,
				)
			} else {
				slog.Debug("✅ Action handled", "worker", worker, "kind", req.Action.Kind, "post_id", req.Action.PostID)
			}
			cancel()
		}
	}
}
