package domain

// FeedState reprend l'état de chargement exposé à l'écran.
type FeedState struct {
	Loading    bool
	Refreshing bool
	Error      bool
	NewerCount int64 // posts plus récents que le haut du fil, pas encore affichés
}

// Snapshot est la séquence actuellement affichée pour un lecteur.
type Snapshot struct {
	Version int64
	Posts   []Post
}

// Top retourne l'ID du post le plus haut (0 si vide).
func (s Snapshot) Top() int64 {
	if len(s.Posts) == 0 {
		return 0
	}
	return s.Posts[0].ID
}

// Bottom retourne l'ID du dernier post affiché (0 si vide).
func (s Snapshot) Bottom() int64 {
	if len(s.Posts) == 0 {
		return 0
	}
	return s.Posts[len(s.Posts)-1].ID
}

// Update est poussé aux abonnés après chaque transition.
type Update struct {
	ViewerID string
	Version  int64
	Ops      []Op
	State    FeedState
	Err      error // cause d'un échec de transition, non exposée aux clients
}

// Row est un post prêt à afficher (compteurs formatés).
type Row struct {
	ID         int64
	Author     string
	Published  string
	Content    string
	Likes      string
	Reposts    string
	LikedByMe  bool
	Video      string
	Attachment string
}

// PageRequest encapsule les critères de pagination (keyset sur l'ID).
type PageRequest struct {
	ViewerID string
	BeforeID int64 // 0 = première page
	Limit    int
}
