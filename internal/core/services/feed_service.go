package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
	"github.com/Shelq27/NMedia-DZ2/internal/core/ports"
)

const (
	DefaultPageSize = 20
	NewerLimit      = 100 // Nombre max de posts révélés par ShowNewer
)

var tracer = otel.Tracer("feed-view-service")

// FeedService garde, par lecteur, la séquence affichée et la réconcilie avec
// la source amont. Les transitions d'un même lecteur sont sérialisées ; deux
// lecteurs différents ne s'attendent jamais.
type FeedService struct {
	repo     ports.PostRepository
	cache    ports.SnapshotCache
	pub      ports.ActionPublisher
	subs     *Subscriptions
	pageSize int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	statesMu sync.Mutex
	states   map[string]domain.FeedState
}

func NewFeedService(repo ports.PostRepository, cache ports.SnapshotCache, pub ports.ActionPublisher, pageSize int) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &FeedService{
		repo:     repo,
		cache:    cache,
		pub:      pub,
		subs:     NewSubscriptions(),
		pageSize: pageSize,
		locks:    make(map[string]*sync.Mutex),
		states:   make(map[string]domain.FeedState),
	}
}

// --- CHARGEMENT ---

func (s *FeedService) Load(ctx context.Context, viewerID string) (*domain.Update, error) {
	return s.transition(ctx, viewerID, "load", markLoading, s.firstPage(viewerID))
}

// Refresh : pull-to-refresh
func (s *FeedService) Refresh(ctx context.Context, viewerID string) (*domain.Update, error) {
	return s.transition(ctx, viewerID, "refresh", markRefreshing, s.firstPage(viewerID))
}

// LoadOlder ajoute la page suivante sous le dernier post affiché.
func (s *FeedService) LoadOlder(ctx context.Context, viewerID string) (*domain.Update, error) {
	return s.transition(ctx, viewerID, "load_older", markLoading, func(ctx context.Context, snap domain.Snapshot) ([]domain.Post, error) {
		page, err := s.repo.Page(ctx, domain.PageRequest{
			ViewerID: viewerID,
			BeforeID: snap.Bottom(),
			Limit:    s.pageSize,
		})
		if err != nil {
			return nil, err
		}
		return append(slices.Clone(snap.Posts), page...), nil
	})
}

// ShowNewer révèle les posts arrivés au-dessus du fil (bouton "nouveaux posts").
func (s *FeedService) ShowNewer(ctx context.Context, viewerID string) (*domain.Update, error) {
	return s.transition(ctx, viewerID, "show_newer", markLoading, func(ctx context.Context, snap domain.Snapshot) ([]domain.Post, error) {
		if len(snap.Posts) == 0 {
			return s.repo.Page(ctx, domain.PageRequest{ViewerID: viewerID, Limit: s.pageSize})
		}
		newer, err := s.repo.Newer(ctx, viewerID, snap.Top(), NewerLimit)
		if err != nil {
			return nil, err
		}
		return append(newer, snap.Posts...), nil
	})
}

// Current retourne la séquence affichée, rendue ligne par ligne.
func (s *FeedService) Current(ctx context.Context, viewerID string) (*ports.CurrentFeed, error) {
	if viewerID == "" {
		return nil, domain.ErrViewerRequired
	}

	defer s.lockViewer(viewerID)()

	snap, err := s.cache.Get(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	rows, err := RenderRows(snap.Posts)
	if err != nil {
		return nil, err
	}
	return &ports.CurrentFeed{
		Version: snap.Version,
		Rows:    rows,
		State:   s.state(viewerID),
	}, nil
}

// --- ÉCRITURE ---

// Save crée (PostID = 0) ou édite un post, puis recharge la première page.
func (s *FeedService) Save(ctx context.Context, cmd ports.SaveCmd) (*domain.Update, error) {
	if cmd.ViewerID == "" {
		return nil, domain.ErrViewerRequired
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	saved, err := s.repo.Save(ctx, cmd.ViewerID, domain.Post{
		ID:      cmd.PostID,
		Author:  cmd.Author,
		Content: content,
	})
	if err != nil {
		return nil, fmt.Errorf("save post: %w", err)
	}
	slog.Info("📝 Post saved", "post_id", saved.ID, "viewer_id", cmd.ViewerID)

	return s.transition(ctx, cmd.ViewerID, "save", markLoading, s.firstPage(cmd.ViewerID))
}

// Handle exécute une action de la liste. Like/Repost/Remove passent par la
// source de données ; les autres sont seulement publiées pour l'orchestration.
func (s *FeedService) Handle(ctx context.Context, req domain.ActionRequest) error {
	if req.ViewerID == "" {
		return domain.ErrViewerRequired
	}
	a := req.Action

	var post *domain.Post
	var err error
	switch a.Kind {
	case domain.ActionLike:
		post, err = s.repo.ToggleLike(ctx, req.ViewerID, a.PostID)
	case domain.ActionRepost:
		post, err = s.repo.Repost(ctx, req.ViewerID, a.PostID)
	case domain.ActionRemove:
		if err = s.repo.Remove(ctx, a.PostID); err == nil {
			s.forgetNewer(ctx, a.PostID)
		}
	case domain.ActionEdit, domain.ActionOpen, domain.ActionOpenFullScreen, domain.ActionPlay:
		post, err = s.displayed(ctx, req.ViewerID, a.PostID)
	default:
		return fmt.Errorf("%q: %w", a.Kind, domain.ErrUnknownAction)
	}
	if err != nil {
		return fmt.Errorf("%s post %d: %w", a.Kind, a.PostID, err)
	}

	// Publication best effort : on ne fait pas échouer l'action si le broker est down
	if err := s.pub.PublishAction(ctx, req.ViewerID, a, post); err != nil {
		slog.Warn("Failed to publish action", "kind", a.Kind, "post_id", a.PostID, "error", err)
	}

	if !a.Mutates() {
		return nil
	}

	_, err = s.transition(ctx, req.ViewerID, "action_"+string(a.Kind), nil, func(_ context.Context, snap domain.Snapshot) ([]domain.Post, error) {
		if a.Kind == domain.ActionRemove {
			return slices.DeleteFunc(slices.Clone(snap.Posts), func(p domain.Post) bool { return p.ID == a.PostID }), nil
		}
		next := slices.Clone(snap.Posts)
		for i := range next {
			if next[i].ID == post.ID {
				next[i] = *post
			}
		}
		return next, nil
	})
	return err
}

// NotifyPostCreated enregistre un post plus récent et pousse le compteur aux lecteurs abonnés.
func (s *FeedService) NotifyPostCreated(ctx context.Context, postID int64) error {
	if err := s.cache.AddNewer(ctx, postID); err != nil {
		return fmt.Errorf("record newer post: %w", err)
	}

	for _, viewerID := range s.subs.Viewers() {
		u, err := s.refreshNewerCount(ctx, viewerID)
		if err != nil {
			slog.Warn("Failed to count newer posts", "viewer_id", viewerID, "error", err)
			continue
		}
		s.subs.Publish(u)
	}
	return nil
}

func (s *FeedService) Subscribe(viewerID string, fn func(domain.Update)) string {
	return s.subs.Subscribe(viewerID, fn)
}

func (s *FeedService) Unsubscribe(token string) {
	s.subs.Unsubscribe(token)
}

// --- HELPERS ---

func markLoading(st *domain.FeedState)    { st.Loading = true }
func markRefreshing(st *domain.FeedState) { st.Refreshing = true }

// firstPage recharge au moins autant de posts que ceux déjà affichés.
func (s *FeedService) firstPage(viewerID string) func(context.Context, domain.Snapshot) ([]domain.Post, error) {
	return func(ctx context.Context, snap domain.Snapshot) ([]domain.Post, error) {
		return s.repo.Page(ctx, domain.PageRequest{
			ViewerID: viewerID,
			Limit:    max(s.pageSize, len(snap.Posts)),
		})
	}
}

func (s *FeedService) displayed(ctx context.Context, viewerID string, postID int64) (*domain.Post, error) {
	snap, err := s.cache.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(snap.Posts, func(p domain.Post) bool { return p.ID == postID })
	if i < 0 {
		return nil, domain.ErrPostNotFound
	}
	return &snap.Posts[i], nil
}

// lockViewer prend le verrou du lecteur et retourne la fonction de libération.
func (s *FeedService) lockViewer(viewerID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[viewerID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[viewerID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (s *FeedService) state(viewerID string) domain.FeedState {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	return s.states[viewerID]
}

func (s *FeedService) setState(viewerID string, state domain.FeedState) {
	s.statesMu.Lock()
	s.states[viewerID] = state
	s.statesMu.Unlock()
}

// forgetNewer retire un post supprimé du compteur "nouveaux posts".
func (s *FeedService) forgetNewer(ctx context.Context, postID int64) {
	if err := s.cache.ForgetNewer(ctx, postID); err != nil {
		slog.Warn("Failed to forget removed post", "post_id", postID, "error", err)
	}
}

func (s *FeedService) refreshNewerCount(ctx context.Context, viewerID string) (domain.Update, error) {
	defer s.lockViewer(viewerID)()

	snap, err := s.cache.Get(ctx, viewerID)
	if err != nil {
		return domain.Update{}, err
	}
	count, err := s.cache.CountNewer(ctx, snap.Top())
	if err != nil {
		return domain.Update{}, err
	}
	state := s.state(viewerID)
	state.NewerCount = count
	s.setState(viewerID, state)

	return domain.Update{ViewerID: viewerID, Version: snap.Version, State: state}, nil
}

// transition : lire le snapshot affiché, calculer le suivant, diff, persister, notifier.
// Les notifications partent après libération du verrou.
func (s *FeedService) transition(
	ctx context.Context,
	viewerID, op string,
	mark func(*domain.FeedState),
	next func(context.Context, domain.Snapshot) ([]domain.Post, error),
) (*domain.Update, error) {
	if viewerID == "" {
		return nil, domain.ErrViewerRequired
	}

	ctx, span := tracer.Start(ctx, "feed."+op, trace.WithAttributes(attribute.String("viewer_id", viewerID)))
	defer span.End()

	var pending []domain.Update
	unlock := s.lockViewer(viewerID)
	defer func() {
		unlock()
		for _, u := range pending {
			s.subs.Publish(u)
		}
	}()

	state := s.state(viewerID)
	var snap domain.Snapshot

	fail := func(err error) (*domain.Update, error) {
		state.Loading, state.Refreshing, state.Error = false, false, true
		s.setState(viewerID, state)
		pending = append(pending, domain.Update{ViewerID: viewerID, Version: snap.Version, State: state, Err: err})

		span.RecordError(err)
		slog.Error("❌ Feed update failed", "op", op, "viewer_id", viewerID, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snap, err := s.cache.Get(ctx, viewerID)
	if err != nil {
		return fail(err)
	}

	if mark != nil {
		mark(&state)
		state.Error = false
		s.setState(viewerID, state)
		pending = append(pending, domain.Update{ViewerID: viewerID, Version: snap.Version, State: state})
	}

	posts, err := next(ctx, snap)
	if err != nil {
		return fail(err)
	}
	if err := domain.ValidateSnapshot(posts); err != nil {
		return fail(err)
	}

	result := Diff(snap.Posts, posts)
	if !result.Empty() {
		snap = domain.Snapshot{Version: snap.Version + 1, Posts: posts}
		if err := s.cache.Put(ctx, viewerID, snap); err != nil {
			return fail(err)
		}
	}

	state.Loading, state.Refreshing, state.Error = false, false, false
	if count, err := s.cache.CountNewer(ctx, snap.Top()); err != nil {
		slog.Warn("Failed to count newer posts", "viewer_id", viewerID, "error", err)
	} else {
		state.NewerCount = count
	}
	s.setState(viewerID, state)

	span.SetAttributes(attribute.Int("feed.ops", len(result.Ops)), attribute.Int64("feed.version", snap.Version))
	slog.Debug("Feed reconciled", "op", op, "viewer_id", viewerID, "ops", len(result.Ops), "version", snap.Version)

	u := domain.Update{ViewerID: viewerID, Version: snap.Version, Ops: result.Ops, State: state}
	pending = append(pending, u)
	return &u, nil
}
