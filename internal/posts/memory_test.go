package posts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/models"
)

func newPost(t *testing.T, s *MemoryStore) *models.Post {
	t.Helper()
	p := &models.Post{Title: "Lost cat", Content: "Grey tabby near the park", Author: "ana"}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestMemoryConcurrentSameVoter(t *testing.T) {
	s := NewMemoryStore()
	p := newPost(t, s)

	var accepted, duplicates atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CastVote(context.Background(), p.ID, "10_0_0_1", ledger.Up)
			switch {
			case err == nil:
				accepted.Add(1)
			case assert.ErrorIs(t, err, ledger.ErrDuplicateVote):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(49), duplicates.Load())
	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
}

func TestMemoryConcurrentDistinctVoters(t *testing.T) {
	s := NewMemoryStore()
	p := newPost(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			choice := ledger.Up
			if i%4 == 0 {
				choice = ledger.Down
			}
			_, err := s.CastVote(context.Background(), p.ID, uuid.NewString(), choice)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Upvotes)
	assert.Equal(t, 10, got.Downvotes)
}

func TestMemoryRedactPreservesCounters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := newPost(t, s)

	_, err := s.CastVote(ctx, p.ID, "a", ledger.Up)
	require.NoError(t, err)
	_, err = s.CastVote(ctx, p.ID, "b", ledger.Down)
	require.NoError(t, err)

	require.NoError(t, s.Redact(ctx, p.ID))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Tombstone, got.Title)
	assert.Equal(t, models.Tombstone, got.Content)
	assert.True(t, got.Redacted)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)
	assert.Equal(t, ledger.Up, s.posts[p.ID].votes.Voters["a"])
	assert.Equal(t, ledger.Down, s.posts[p.ID].votes.Voters["b"])

	// The ledger still rejects a repeat after redaction.
	_, err = s.CastVote(ctx, p.ID, "a", ledger.Up)
	require.ErrorIs(t, err, ledger.ErrDuplicateVote)
}

func TestMemoryCommentVotesIndependentOfPost(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := newPost(t, s)

	cm := &models.Comment{PostID: p.ID, Author: "ben", Content: "Seen it on Elm St"}
	require.NoError(t, s.AddComment(ctx, cm))

	_, err := s.CastVote(ctx, p.ID, "a", ledger.Up)
	require.NoError(t, err)
	tally, err := s.CastCommentVote(ctx, p.ID, cm.ID, "a", ledger.Up)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tally{Upvotes: 1}, tally)

	tally, err = s.CastCommentVote(ctx, p.ID, cm.ID, "a", ledger.Down)
	require.NoError(t, err)
	assert.Equal(t, ledger.Tally{Downvotes: 1}, tally)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, 0, got.Comments[0].Upvotes)
	assert.Equal(t, 1, got.Comments[0].Downvotes)
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := newPost(t, s)

	_, err := s.CastVote(ctx, uuid.New(), "a", ledger.Up)
	require.ErrorIs(t, err, ErrPostNotFound)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = s.CastCommentVote(ctx, p.ID, uuid.New(), "a", ledger.Up)
	require.ErrorIs(t, err, ErrCommentNotFound)

	err = s.AddComment(ctx, &models.Comment{PostID: uuid.New(), Author: "x", Content: "y"})
	require.ErrorIs(t, err, ErrPostNotFound)

	require.ErrorIs(t, s.Redact(ctx, uuid.New()), ErrPostNotFound)
}

func TestMemoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := s.now()
	var tick int
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	first := newPost(t, s)
	second := newPost(t, s)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
