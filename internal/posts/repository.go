package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

// Repository handles post and comment persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a posts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const postColumns = `id, title, content, author, author_avatar, upvotes, downvotes, redacted, created_at`

const commentColumns = `id, post_id, author, author_avatar, content, upvotes, downvotes, created_at`

func scanPost(row pgx.Row, p *models.Post) error {
	return row.Scan(&p.ID, &p.Title, &p.Content, &p.Author, &p.AuthorAvatar, &p.Upvotes, &p.Downvotes, &p.Redacted, &p.Timestamp)
}

func scanComment(row pgx.Row, c *models.Comment) error {
	return row.Scan(&c.ID, &c.PostID, &c.Author, &c.AuthorAvatar, &c.Content, &c.Upvotes, &c.Downvotes, &c.Timestamp)
}

// List returns every post newest first, each with its comments oldest first.
func (r *Repository) List(ctx context.Context) ([]models.Post, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	list := []models.Post{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var p models.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Comments = []models.Comment{}
		index[p.ID] = len(list)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := r.pool.Query(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c models.Comment
		if err := scanComment(crows, &c); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if i, ok := index[c.PostID]; ok {
			list[i].Comments = append(list[i].Comments, c)
		}
	}
	return list, crows.Err()
}

// Get returns a post with its comments.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var p models.Post
	err := scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	p.Comments, err = r.listComments(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new post with zero counters.
func (r *Repository) Create(ctx context.Context, p *models.Post) error {
	const query = `INSERT INTO posts (title, content, author, author_avatar)
		VALUES ($1, $2, $3, $4)
		RETURNING id, upvotes, downvotes, created_at`
	err := r.pool.QueryRow(ctx, query, p.Title, p.Content, p.Author, p.AuthorAvatar).
		Scan(&p.ID, &p.Upvotes, &p.Downvotes, &p.Timestamp)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	p.Comments = []models.Comment{}
	return nil
}

// Redact overwrites title and content with the tombstone. Counters and votes are untouched.
func (r *Repository) Redact(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE posts SET title = $2, content = $2, redacted = TRUE WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, models.Tombstone)
	if err != nil {
		return fmt.Errorf("redact post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// CastVote locks the post row, reads the voter's ledger entry and writes the new tally in one transaction.
func (r *Repository) CastVote(ctx context.Context, postID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error) {
	return r.castVote(ctx, postVotes, ErrPostNotFound, []any{postID}, postID, voter, choice)
}

// AddComment appends a comment to an existing post.
func (r *Repository) AddComment(ctx context.Context, cm *models.Comment) error {
	const query = `INSERT INTO comments (post_id, author, author_avatar, content)
		SELECT id, $2, $3, $4 FROM posts WHERE id = $1
		RETURNING id, upvotes, downvotes, created_at`
	err := r.pool.QueryRow(ctx, query, cm.PostID, cm.Author, cm.AuthorAvatar, cm.Content).
		Scan(&cm.ID, &cm.Upvotes, &cm.Downvotes, &cm.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// ListComments returns a post's comments oldest first.
func (r *Repository) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	exists, err := r.postExists(ctx, r.pool, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPostNotFound
	}
	return r.listComments(ctx, r.pool, postID)
}

// CastCommentVote is CastVote for a comment of postID.
func (r *Repository) CastCommentVote(ctx context.Context, postID, commentID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error) {
	exists, err := r.postExists(ctx, r.pool, postID)
	if err != nil {
		return ledger.Tally{}, err
	}
	if !exists {
		return ledger.Tally{}, ErrPostNotFound
	}
	return r.castVote(ctx, commentVotes, ErrCommentNotFound, []any{commentID, postID}, commentID, voter, choice)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) postExists(ctx context.Context, q querier, id uuid.UUID) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check post: %w", err)
	}
	return exists, nil
}

func (r *Repository) listComments(ctx context.Context, q querier, postID uuid.UUID) ([]models.Comment, error) {
	rows, err := q.Query(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
