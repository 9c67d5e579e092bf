// Package posts serves board posts, their comments and the votes on both.
package posts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

var (
	// ErrPostNotFound wraps ledger.ErrNotFound for unknown posts.
	ErrPostNotFound = fmt.Errorf("post %w", ledger.ErrNotFound)
	// ErrCommentNotFound wraps ledger.ErrNotFound for unknown comments.
	ErrCommentNotFound = fmt.Errorf("comment %w", ledger.ErrNotFound)
)

// Store persists posts and comments. CastVote and CastCommentVote apply the
// ledger check and the counter update as one atomic unit per votable.
type Store interface {
	List(ctx context.Context) ([]models.Post, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Create(ctx context.Context, p *models.Post) error
	Redact(ctx context.Context, id uuid.UUID) error
	CastVote(ctx context.Context, postID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error)

	AddComment(ctx context.Context, cm *models.Comment) error
	ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	CastCommentVote(ctx context.Context, postID, commentID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error)
}
