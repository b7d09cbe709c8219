package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// PublishedLayout est le format d'affichage de la date de publication.
const PublishedLayout = "02.01.2006 15:04"

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id         BIGSERIAL PRIMARY KEY,
		author     TEXT NOT NULL,
		content    TEXT NOT NULL,
		published  TIMESTAMPTZ NOT NULL DEFAULT now(),
		likes      BIGINT NOT NULL DEFAULT 0 CHECK (likes >= 0),
		reposted   BIGINT NOT NULL DEFAULT 0 CHECK (reposted >= 0),
		video      TEXT NOT NULL DEFAULT '',
		attachment TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS post_likes (
		post_id   BIGINT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		viewer_id TEXT NOT NULL,
		PRIMARY KEY (post_id, viewer_id)
	);
`

// $1 est toujours le lecteur (pour liked_by_me)
const selectPost = `
	SELECT p.id, p.author, p.content, p.published, p.likes, p.reposted, p.video, p.attachment,
	       EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.viewer_id = $1) AS liked_by_me
	FROM posts p
`

// querier couvre le pool et une transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema crée les tables (Idempotent)
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Page : PAGINATION KEYSET (on évite OFFSET)
func (r *PostgresRepo) Page(ctx context.Context, req domain.PageRequest) ([]domain.Post, error) {
	// Cas 1: Première page
	if req.BeforeID <= 0 {
		rows, err := r.db.Query(ctx, selectPost+` ORDER BY p.id DESC LIMIT $2`, req.ViewerID, req.Limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectPosts(rows)
	}

	// Cas 2: Page suivante (plus ancien que le curseur)
	rows, err := r.db.Query(ctx, selectPost+` WHERE p.id < $2 ORDER BY p.id DESC LIMIT $3`, req.ViewerID, req.BeforeID, req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// Newer prend les posts juste au-dessus de afterID (ordre croissant pour
// rester contigu), puis les remet du plus récent au plus ancien.
func (r *PostgresRepo) Newer(ctx context.Context, viewerID string, afterID int64, limit int) ([]domain.Post, error) {
	rows, err := r.db.Query(ctx, selectPost+` WHERE p.id > $2 ORDER BY p.id ASC LIMIT $3`, viewerID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(posts)
	return posts, nil
}

// Save : insertion si ID = 0, sinon édition du contenu
func (r *PostgresRepo) Save(ctx context.Context, viewerID string, post domain.Post) (*domain.Post, error) {
	id := post.ID
	if id == 0 {
		err := r.db.QueryRow(ctx,
			`INSERT INTO posts (author, content) VALUES ($1, $2) RETURNING id`,
			post.Author, post.Content,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert post: %w", err)
		}
	} else {
		cmdTag, err := r.db.Exec(ctx, `UPDATE posts SET content = $1 WHERE id = $2`, post.Content, id)
		if err != nil {
			return nil, fmt.Errorf("update post: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return nil, domain.ErrPostNotFound
		}
	}
	return getPost(ctx, r.db, viewerID, id)
}

// ToggleLike : like / unlike atomique (compteur + table de jointure)
func (r *PostgresRepo) ToggleLike(ctx context.Context, viewerID string, postID int64) (*domain.Post, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmdTag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND viewer_id = $2`, postID, viewerID)
	if err != nil {
		return nil, err
	}

	if cmdTag.RowsAffected() == 1 {
		// Déjà liké -> unlike
		if _, err := tx.Exec(ctx, `UPDATE posts SET likes = likes - 1 WHERE id = $1`, postID); err != nil {
			return nil, err
		}
	} else {
		cmdTag, err := tx.Exec(ctx, `UPDATE posts SET likes = likes + 1 WHERE id = $1`, postID)
		if err != nil {
			return nil, err
		}
		if cmdTag.RowsAffected() == 0 {
			return nil, domain.ErrPostNotFound
		}
		if _, err := tx.Exec(ctx, `INSERT INTO post_likes (post_id, viewer_id) VALUES ($1, $2)`, postID, viewerID); err != nil {
			return nil, err
		}
	}

	post, err := getPost(ctx, tx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostgresRepo) Repost(ctx context.Context, viewerID string, postID int64) (*domain.Post, error) {
	cmdTag, err := r.db.Exec(ctx, `UPDATE posts SET reposted = reposted + 1 WHERE id = $1`, postID)
	if err != nil {
		return nil, err
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, domain.ErrPostNotFound
	}
	return getPost(ctx, r.db, viewerID, postID)
}

func (r *PostgresRepo) Remove(ctx context.Context, postID int64) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM posts WHERE id = $1", postID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// --- Helpers pour éviter la duplication de code ---

func getPost(ctx context.Context, q querier, viewerID string, postID int64) (*domain.Post, error) {
	row := q.QueryRow(ctx, selectPost+` WHERE p.id = $2`, viewerID, postID)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	var published time.Time
	err := row.Scan(&p.ID, &p.Author, &p.Content, &published, &p.Likes, &p.Reposted, &p.Video, &p.Attachment, &p.LikedByMe)
	if err != nil {
		return domain.Post{}, err
	}
	p.Published = published.UTC().Format(PublishedLayout)
	return p, nil
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
