package polls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

// Repository handles poll persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pollColumns = `id, question, redacted, created_at, expires_at`

func scanPoll(row pgx.Row, p *models.Poll) error {
	return row.Scan(&p.ID, &p.Question, &p.Redacted, &p.CreatedAt, &p.ExpiresAt)
}

// Create inserts a poll and its options in one transaction.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `INSERT INTO polls (question, created_at, expires_at) VALUES ($1, $2, $3) RETURNING id`
		if err := tx.QueryRow(ctx, query, p.Question, p.CreatedAt, p.ExpiresAt).Scan(&p.ID); err != nil {
			return fmt.Errorf("create poll: %w", err)
		}
		batch := &pgx.Batch{}
		for i := range p.Options {
			p.Options[i].Votes = 0
			batch.Queue(`INSERT INTO poll_options (poll_id, position, text) VALUES ($1, $2, $3)`, p.ID, i, p.Options[i].Text)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("create poll options: %w", err)
		}
		return nil
	})
}

// Get returns a poll with its options.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	return r.get(ctx, r.pool, id)
}

// Active returns the newest unredacted poll whose window contains now.
func (r *Repository) Active(ctx context.Context, now time.Time) (*models.Poll, error) {
	const query = `SELECT ` + pollColumns + ` FROM polls
		WHERE created_at <= $1 AND expires_at >= $1 AND NOT redacted
		ORDER BY created_at DESC LIMIT 1`
	var p models.Poll
	err := scanPoll(r.pool.QueryRow(ctx, query, now), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActivePoll
	}
	if err != nil {
		return nil, fmt.Errorf("active poll: %w", err)
	}
	if p.Options, err = r.options(ctx, r.pool, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every poll newest first, including expired and redacted ones.
func (r *Repository) List(ctx context.Context) ([]models.Poll, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	list := []models.Poll{}
	for rows.Next() {
		var p models.Poll
		if err := scanPoll(rows, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		list = append(list, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Options, err = r.options(ctx, r.pool, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Redact tombstones the question and option texts. Counts and the voters ledger are kept.
func (r *Repository) Redact(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE polls SET question = $2, redacted = TRUE WHERE id = $1`, id, models.Tombstone)
		if err != nil {
			return fmt.Errorf("redact poll: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPollNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE poll_options SET text = $2 WHERE poll_id = $1`, id, models.Tombstone); err != nil {
			return fmt.Errorf("redact poll options: %w", err)
		}
		return nil
	})
}

// CastVote locks the poll row, then checks the window, the option range and the
// voter's ledger entry before recording the vote, all in one transaction.
func (r *Repository) CastVote(ctx context.Context, pollID uuid.UUID, voter string, option int, now time.Time) (*models.Poll, error) {
	var out *models.Poll
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var p models.Poll
		err := scanPoll(tx.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1 FOR UPDATE`, pollID), &p)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPollNotFound
		}
		if err != nil {
			return fmt.Errorf("lock poll: %w", err)
		}
		if !p.OpenAt(now) {
			return ledger.ErrPollClosed
		}

		var numOptions int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM poll_options WHERE poll_id = $1`, pollID).Scan(&numOptions); err != nil {
			return fmt.Errorf("count options: %w", err)
		}
		var voted bool
		const votedQuery = `SELECT EXISTS(SELECT 1 FROM poll_votes WHERE poll_id = $1 AND voter_id = $2)`
		if err := tx.QueryRow(ctx, votedQuery, pollID, voter).Scan(&voted); err != nil {
			return fmt.Errorf("read ledger entry: %w", err)
		}
		if err := ledger.CheckPollVote(numOptions, voted, option); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `INSERT INTO poll_votes (poll_id, voter_id, option_index) VALUES ($1, $2, $3)`, pollID, voter, option); err != nil {
			return fmt.Errorf("write ledger entry: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE poll_options SET votes = votes + 1 WHERE poll_id = $1 AND position = $2`, pollID, option); err != nil {
			return fmt.Errorf("increment option: %w", err)
		}

		if p.Options, err = r.options(ctx, tx, pollID); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) get(ctx context.Context, q querier, id uuid.UUID) (*models.Poll, error) {
	var p models.Poll
	err := scanPoll(q.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	if p.Options, err = r.options(ctx, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) options(ctx context.Context, q querier, pollID uuid.UUID) ([]models.PollOption, error) {
	rows, err := q.Query(ctx, `SELECT text, votes FROM poll_options WHERE poll_id = $1 ORDER BY position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()
	opts := []models.PollOption{}
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.Text, &o.Votes); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}
