package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

const (
	newerKey      = "feed:newer"
	newerCapacity = 500 // On garde max 500 IDs récents pour économiser la RAM
)

// DTO interne pour le JSON stocké, sans polluer le Domain avec des tags
type snapshotDTO struct {
	Version int64     `json:"version"`
	Posts   []postDTO `json:"posts"`
}

type postDTO struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Content    string `json:"content"`
	Published  string `json:"published"`
	Likes      int64  `json:"likes"`
	Reposted   int64  `json:"reposted"`
	LikedByMe  bool   `json:"liked_by_me"`
	Video      string `json:"video,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

type RedisSnapshotRepo struct {
	client *redis.Client
	ttl    time.Duration // Un fil non consulté expire
}

func NewRedisSnapshotRepo(client *redis.Client, ttl time.Duration) *RedisSnapshotRepo {
	if ttl <= 0 {
		ttl = 24 * 30 * time.Hour
	}
	return &RedisSnapshotRepo{client: client, ttl: ttl}
}

func snapshotKey(viewerID string) string {
	return fmt.Sprintf("feed:snapshot:%s", viewerID)
}

// Get retourne un snapshot vide si le lecteur n'a encore rien affiché.
func (r *RedisSnapshotRepo) Get(ctx context.Context, viewerID string) (domain.Snapshot, error) {
	raw, err := r.client.Get(ctx, snapshotKey(viewerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return domain.Snapshot{}, err
	}

	var dto snapshotDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.Snapshot{}, fmt.Errorf("corrupted snapshot for %s: %w", viewerID, err)
	}

	posts := make([]domain.Post, len(dto.Posts))
	for i, p := range dto.Posts {
		posts[i] = domain.Post{
			ID:         p.ID,
			Author:     p.Author,
			Content:    p.Content,
			Published:  p.Published,
			Likes:      p.Likes,
			Reposted:   p.Reposted,
			LikedByMe:  p.LikedByMe,
			Video:      p.Video,
			Attachment: p.Attachment,
		}
	}
	return domain.Snapshot{Version: dto.Version, Posts: posts}, nil
}

func (r *RedisSnapshotRepo) Put(ctx context.Context, viewerID string, snap domain.Snapshot) error {
	dto := snapshotDTO{Version: snap.Version, Posts: make([]postDTO, len(snap.Posts))}
	for i, p := range snap.Posts {
		dto.Posts[i] = postDTO{
			ID:         p.ID,
			Author:     p.Author,
			Content:    p.Content,
			Published:  p.Published,
			Likes:      p.Likes,
			Reposted:   p.Reposted,
			LikedByMe:  p.LikedByMe,
			Video:      p.Video,
			Attachment: p.Attachment,
		}
	}

	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.client.Set(ctx, snapshotKey(viewerID), data, r.ttl).Err()
}

// AddNewer ajoute l'ID au Sorted Set (score = ID) puis applique le capping.
func (r *RedisSnapshotRepo) AddNewer(ctx context.Context, postID int64) error {
	pipe := r.client.Pipeline()

	pipe.ZAdd(ctx, newerKey, redis.Z{
		Score:  float64(postID),
		Member: strconv.FormatInt(postID, 10),
	})
	pipe.ZRemRangeByRank(ctx, newerKey, 0, -(newerCapacity + 1))
	pipe.Expire(ctx, newerKey, r.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// CountNewer compte les IDs strictement supérieurs à afterID.
func (r *RedisSnapshotRepo) CountNewer(ctx context.Context, afterID int64) (int64, error) {
	return r.client.ZCount(ctx, newerKey, "("+strconv.FormatInt(afterID, 10), "+inf").Result()
}

// ForgetNewer retire un post supprimé du Sorted Set.
func (r *RedisSnapshotRepo) ForgetNewer(ctx context.Context, postID int64) error {
	return r.client.ZRem(ctx, newerKey, strconv.FormatInt(postID, 10)).Err()
}
