package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/townboard/backend/internal/ledger"
)

// voteTable holds the statements for one kind of votable.
type voteTable struct {
	lock     string
	previous string
	upsert   string
	update   string
}

var postVotes = voteTable{
	lock:     `SELECT upvotes, downvotes FROM posts WHERE id = $1 FOR UPDATE`,
	previous: `SELECT choice FROM post_votes WHERE post_id = $1 AND voter_id = $2`,
	upsert: `INSERT INTO post_votes (post_id, voter_id, choice) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, voter_id) DO UPDATE SET choice = EXCLUDED.choice, updated_at = NOW()`,
	update: `UPDATE posts SET upvotes = $2, downvotes = $3 WHERE id = $1`,
}

var commentVotes = voteTable{
	lock:     `SELECT upvotes, downvotes FROM comments WHERE id = $1 AND post_id = $2 FOR UPDATE`,
	previous: `SELECT choice FROM comment_votes WHERE comment_id = $1 AND voter_id = $2`,
	upsert: `INSERT INTO comment_votes (comment_id, voter_id, choice) VALUES ($1, $2, $3)
		ON CONFLICT (comment_id, voter_id) DO UPDATE SET choice = EXCLUDED.choice, updated_at = NOW()`,
	update: `UPDATE comments SET upvotes = $2, downvotes = $3 WHERE id = $1`,
}

// castVote runs the ledger check and write under the votable's row lock.
// Concurrent votes on the same row queue behind FOR UPDATE, so a voter's
// duplicate check always sees the previous vote once it has committed.
func (r *Repository) castVote(ctx context.Context, t voteTable, notFound error, lockArgs []any, id uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error) {
	if !choice.Valid() {
		return ledger.Tally{}, ledger.ErrInvalidChoice
	}
	var next ledger.Tally
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current ledger.Tally
		err := tx.QueryRow(ctx, t.lock, lockArgs...).Scan(&current.Upvotes, &current.Downvotes)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		if err != nil {
			return fmt.Errorf("lock votable: %w", err)
		}

		previous := ledger.None
		var stored int16
		err = tx.QueryRow(ctx, t.previous, id, voter).Scan(&stored)
		switch {
		case err == nil:
			previous = ledger.Choice(stored)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("read ledger entry: %w", err)
		}

		next, err = ledger.Apply(current, previous, choice)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, t.upsert, id, voter, int16(choice)); err != nil {
			return fmt.Errorf("write ledger entry: %w", err)
		}
		if _, err := tx.Exec(ctx, t.update, id, next.Upvotes, next.Downvotes); err != nil {
			return fmt.Errorf("update tally: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.Tally{}, err
	}
	return next, nil
}
