package ports

import (
	"context"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// --- DRIVING (Ce que le service expose) ---

// SaveCmd : ID = 0 pour créer, sinon édition du contenu.
type SaveCmd struct {
	ViewerID string
	Author   string
	PostID   int64
	Content  string
}

// CurrentFeed est l'état affiché, rendu ligne par ligne.
type CurrentFeed struct {
	Version int64
	Rows    []domain.Row
	State   domain.FeedState
}

type FeedService interface {
	// Chargement et pagination
	Load(ctx context.Context, viewerID string) (*domain.Update, error)
	Refresh(ctx context.Context, viewerID string) (*domain.Update, error)
	LoadOlder(ctx context.Context, viewerID string) (*domain.Update, error)
	ShowNewer(ctx context.Context, viewerID string) (*domain.Update, error)
	Current(ctx context.Context, viewerID string) (*CurrentFeed, error)

	// Écriture
	Save(ctx context.Context, cmd SaveCmd) (*domain.Update, error)

	// Handle est appelé par le Dispatcher pour chaque action de la liste
	Handle(ctx context.Context, req domain.ActionRequest) error

	// NotifyPostCreated est appelé quand un event "post.created" arrive
	NotifyPostCreated(ctx context.Context, postID int64) error

	// Abonnements (remplace l'observation liée au cycle de vie)
	Subscribe(viewerID string, fn func(domain.Update)) string
	Unsubscribe(token string)
}

// ActionEmitter est la file d'actions (Like, Repost, ...) vue par les adapters.
type ActionEmitter interface {
	Emit(req domain.ActionRequest) error
}
