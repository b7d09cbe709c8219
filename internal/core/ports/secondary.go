package ports

import (
	"context"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// --- DRIVEN (Ce dont le service a besoin) ---

// PostRepository est la source amont (Postgres).
type PostRepository interface {
	// Page retourne les posts les plus récents avant req.BeforeID (keyset)
	Page(ctx context.Context, req domain.PageRequest) ([]domain.Post, error)
	// Newer retourne les posts plus récents que afterID, du plus récent au plus ancien
	Newer(ctx context.Context, viewerID string, afterID int64, limit int) ([]domain.Post, error)

	Save(ctx context.Context, viewerID string, post domain.Post) (*domain.Post, error)
	ToggleLike(ctx context.Context, viewerID string, postID int64) (*domain.Post, error)
	Repost(ctx context.Context, viewerID string, postID int64) (*domain.Post, error)
	Remove(ctx context.Context, postID int64) error
}

// SnapshotCache garde la séquence affichée par lecteur + les IDs récents en attente (Redis).
type SnapshotCache interface {
	Get(ctx context.Context, viewerID string) (domain.Snapshot, error)
	Put(ctx context.Context, viewerID string, snap domain.Snapshot) error

	AddNewer(ctx context.Context, postID int64) error
	CountNewer(ctx context.Context, afterID int64) (int64, error)
	ForgetNewer(ctx context.Context, postID int64) error
}

// ActionPublisher notifie l'orchestration (navigation, partage...) via NATS.
type ActionPublisher interface {
	PublishAction(ctx context.Context, viewerID string, action domain.Action, post *domain.Post) error
}
