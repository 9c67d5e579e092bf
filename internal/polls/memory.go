package polls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

type pollRecord struct {
	poll   models.Poll
	ballot ledger.Ballot
}

// MemoryStore keeps polls in process. A single mutex serializes every vote.
type MemoryStore struct {
	mu    sync.RWMutex
	polls map[uuid.UUID]*pollRecord
}

// NewMemoryStore creates an empty in-process poll store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{polls: make(map[uuid.UUID]*pollRecord)}
}

func (m *MemoryStore) Create(_ context.Context, p *models.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	for i := range p.Options {
		p.Options[i].Votes = 0
	}
	rec := &pollRecord{poll: *p, ballot: ledger.Ballot{Counts: make([]int, len(p.Options))}}
	rec.poll.Options = append([]models.PollOption(nil), p.Options...)
	m.polls[p.ID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.polls[id]
	if !ok {
		return nil, ErrPollNotFound
	}
	p := rec.snapshot()
	return &p, nil
}

func (m *MemoryStore) Active(_ context.Context, now time.Time) (*models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *pollRecord
	for _, rec := range m.polls {
		if !rec.poll.OpenAt(now) {
			continue
		}
		if best == nil || rec.poll.CreatedAt.After(best.poll.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNoActivePoll
	}
	p := best.snapshot()
	return &p, nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Poll, 0, len(m.polls))
	for _, rec := range m.polls {
		out = append(out, rec.snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Redact(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.polls[id]
	if !ok {
		return ErrPollNotFound
	}
	rec.poll.Question = models.Tombstone
	for i := range rec.poll.Options {
		rec.poll.Options[i].Text = models.Tombstone
	}
	rec.poll.Redacted = true
	return nil
}

func (m *MemoryStore) CastVote(_ context.Context, pollID uuid.UUID, voter string, option int, now time.Time) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.polls[pollID]
	if !ok {
		return nil, ErrPollNotFound
	}
	if !rec.poll.OpenAt(now) {
		return nil, ledger.ErrPollClosed
	}
	if err := rec.ballot.Cast(voter, option); err != nil {
		return nil, err
	}
	p := rec.snapshot()
	return &p, nil
}

func (r *pollRecord) snapshot() models.Poll {
	p := r.poll
	p.Options = make([]models.PollOption, len(r.poll.Options))
	for i, o := range r.poll.Options {
		o.Votes = r.ballot.Counts[i]
		p.Options[i] = o
	}
	return p
}
