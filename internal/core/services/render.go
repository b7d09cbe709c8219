package services

import (
	"fmt"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// RenderRow passe les compteurs du post dans FormatCount.
func RenderRow(p domain.Post) (domain.Row, error) {
	likes, err := FormatCount(p.Likes)
	if err != nil {
		return domain.Row{}, fmt.Errorf("post %d likes: %w", p.ID, err)
	}
	reposts, err := FormatCount(p.Reposted)
	if err != nil {
		return domain.Row{}, fmt.Errorf("post %d reposts: %w", p.ID, err)
	}

	return domain.Row{
		ID:         p.ID,
		Author:     p.Author,
		Published:  p.Published,
		Content:    p.Content,
		Likes:      likes,
		Reposts:    reposts,
		LikedByMe:  p.LikedByMe,
		Video:      p.Video,
		Attachment: p.Attachment,
	}, nil
}

func RenderRows(posts []domain.Post) ([]domain.Row, error) {
	rows := make([]domain.Row, 0, len(posts))
	for _, p := range posts {
		row, err := RenderRow(p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
