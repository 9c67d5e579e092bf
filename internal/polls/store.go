package polls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

var (
	// ErrPollNotFound wraps ledger.ErrNotFound for unknown polls.
	ErrPollNotFound = fmt.Errorf("poll %w", ledger.ErrNotFound)
	// ErrNoActivePoll means no poll's window contains the requested time.
	ErrNoActivePoll = errors.New("no active poll")
)

// Store persists polls. CastVote applies the ledger check and the count
// increment as one atomic unit per poll.
type Store interface {
	Create(ctx context.Context, p *models.Poll) error
	Get(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	// Active returns the newest open poll at now, or ErrNoActivePoll.
	Active(ctx context.Context, now time.Time) (*models.Poll, error)
	List(ctx context.Context) ([]models.Poll, error)
	Redact(ctx context.Context, id uuid.UUID) error
	CastVote(ctx context.Context, pollID uuid.UUID, voter string, option int, now time.Time) (*models.Poll, error)
}
