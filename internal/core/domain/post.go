package domain

import "fmt"

// Post est l'entité affichée dans le fil. L'ID est attribué par la source
// amont et reste stable quand les autres champs changent.
type Post struct {
	ID         int64
	Author     string
	Content    string
	Published  string
	Likes      int64
	Reposted   int64
	LikedByMe  bool
	Video      string // URL optionnelle (action Play)
	Attachment string // URL optionnelle (action OpenFullScreen)
}

// SameItem : même emplacement logique, quels que soient les autres champs.
func (p Post) SameItem(other Post) bool {
	return p.ID == other.ID
}

// SameContent compare tous les champs observables.
func (p Post) SameContent(other Post) bool {
	return p == other
}

// ValidateSnapshot rejette un snapshot mal formé (ids dupliqués, compteurs négatifs).
func ValidateSnapshot(posts []Post) error {
	seen := make(map[int64]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("post %d: %w", p.ID, ErrDuplicateID)
		}
		seen[p.ID] = struct{}{}

		if p.Likes < 0 || p.Reposted < 0 {
			return fmt.Errorf("post %d: %w", p.ID, ErrNegativeCount)
		}
	}
	return nil
}
