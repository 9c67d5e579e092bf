package posts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

type postRecord struct {
	post     models.Post
	votes    ledger.Votable
	comments []*commentRecord
}

type commentRecord struct {
	comment models.Comment
	votes   ledger.Votable
}

// MemoryStore keeps posts in process. A single mutex serializes every vote.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]*postRecord
	now   func() time.Time
}

// NewMemoryStore creates an empty in-process post store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[uuid.UUID]*postRecord), now: time.Now}
}

func (m *MemoryStore) List(_ context.Context) ([]models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Post, 0, len(m.posts))
	for _, rec := range m.posts {
		out = append(out, rec.snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p := rec.snapshot()
	return &p, nil
}

func (m *MemoryStore) Create(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.Timestamp = m.now().UTC()
	p.Upvotes, p.Downvotes = 0, 0
	p.Comments = []models.Comment{}
	m.posts[p.ID] = &postRecord{post: *p}
	return nil
}

func (m *MemoryStore) Redact(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	rec.post.Title = models.Tombstone
	rec.post.Content = models.Tombstone
	rec.post.Redacted = true
	return nil
}

func (m *MemoryStore) CastVote(_ context.Context, postID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.posts[postID]
	if !ok {
		return ledger.Tally{}, ErrPostNotFound
	}
	return rec.votes.Cast(voter, choice)
}

func (m *MemoryStore) AddComment(_ context.Context, cm *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.posts[cm.PostID]
	if !ok {
		return ErrPostNotFound
	}
	cm.ID = uuid.New()
	cm.Timestamp = m.now().UTC()
	cm.Upvotes, cm.Downvotes = 0, 0
	rec.comments = append(rec.comments, &commentRecord{comment: *cm})
	return nil
}

func (m *MemoryStore) ListComments(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.posts[postID]
	if !ok {
		return nil, ErrPostNotFound
	}
	return rec.snapshot().Comments, nil
}

func (m *MemoryStore) CastCommentVote(_ context.Context, postID, commentID uuid.UUID, voter string, choice ledger.Choice) (ledger.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.posts[postID]
	if !ok {
		return ledger.Tally{}, ErrPostNotFound
	}
	for _, c := range rec.comments {
		if c.comment.ID == commentID {
			return c.votes.Cast(voter, choice)
		}
	}
	return ledger.Tally{}, ErrCommentNotFound
}

func (r *postRecord) snapshot() models.Post {
	p := r.post
	p.Upvotes, p.Downvotes = r.votes.Upvotes, r.votes.Downvotes
	p.Comments = make([]models.Comment, 0, len(r.comments))
	for _, c := range r.comments {
		cm := c.comment
		cm.Upvotes, cm.Downvotes = c.votes.Upvotes, c.votes.Downvotes
		p.Comments = append(p.Comments, cm)
	}
	return p
}
