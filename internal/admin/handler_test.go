package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townboard/backend/internal/admin"
	"github.com/townboard/backend/internal/auth"
	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/middleware"
	"github.com/townboard/backend/internal/models"
	"github.com/townboard/backend/internal/polls"
	"github.com/townboard/backend/internal/posts"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type fixture struct {
	router *gin.Engine
	posts  *posts.MemoryStore
	polls  *polls.MemoryStore
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{posts: posts.NewMemoryStore(), polls: polls.NewMemoryStore()}
	sessions := auth.NewSessionManager("secret", time.Hour, auth.NewMemorySessions())
	token, err := sessions.Start(context.Background(), uuid.New(), "mod")
	require.NoError(t, err)
	f.token = token

	r := gin.New()
	g := r.Group("/admin", middleware.AdminSession(sessions, "board_admin"))
	admin.NewHandler(f.posts, f.polls, nil).Register(g)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, authed bool) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestRoutesRequireSession(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/posts"},
		{http.MethodGet, "/admin/polls"},
		{http.MethodDelete, "/admin/posts/" + uuid.NewString()},
		{http.MethodDelete, "/admin/polls/" + uuid.NewString()},
	} {
		code, env := f.do(t, tc.method, tc.path, false)
		assert.Equal(t, http.StatusUnauthorized, code, tc.path)
		assert.False(t, env.Success)
	}
}

func TestRedactPostKeepsVotesAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &models.Post{Title: "Buy my stuff", Content: "ads", Author: "x"}
	require.NoError(t, f.posts.Create(ctx, p))
	_, err := f.posts.CastVote(ctx, p.ID, "10_0_0_1", ledger.Up)
	require.NoError(t, err)
	_, err = f.posts.CastVote(ctx, p.ID, "10_0_0_2", ledger.Down)
	require.NoError(t, err)
	require.NoError(t, f.posts.AddComment(ctx, &models.Comment{PostID: p.ID, Author: "y", Content: "no"}))

	code, env := f.do(t, http.MethodDelete, "/admin/posts/"+p.ID.String(), true)
	require.Equal(t, http.StatusOK, code, env.Error)
	var got models.Post
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Redacted)
	assert.Equal(t, models.Tombstone, got.Title)
	assert.Equal(t, models.Tombstone, got.Content)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)
	assert.Len(t, got.Comments, 1)

	// the ledger survives; the same voter still cannot vote twice
	_, err = f.posts.CastVote(ctx, p.ID, "10_0_0_1", ledger.Up)
	assert.ErrorIs(t, err, ledger.ErrDuplicateVote)

	code, env = f.do(t, http.MethodGet, "/admin/posts", true)
	require.Equal(t, http.StatusOK, code)
	var list []models.Post
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Redacted)
}

func TestRedactPollKeepsCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	p := &models.Poll{
		Question:  "Best bakery?",
		Options:   []models.PollOption{{Text: "north"}, {Text: "south"}},
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, f.polls.Create(ctx, p))
	_, err := f.polls.CastVote(ctx, p.ID, "10_0_0_1", 1, now)
	require.NoError(t, err)

	code, env := f.do(t, http.MethodDelete, "/admin/polls/"+p.ID.String(), true)
	require.Equal(t, http.StatusOK, code, env.Error)
	var got models.Poll
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Redacted)
	assert.Equal(t, models.Tombstone, got.Question)
	assert.Equal(t, 1, got.TotalVotes())

	_, err = f.polls.Active(ctx, now)
	assert.ErrorIs(t, err, polls.ErrNoActivePoll)

	code, env = f.do(t, http.MethodGet, "/admin/polls", true)
	require.Equal(t, http.StatusOK, code)
	var list []models.Poll
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestRedactUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodDelete, "/admin/posts/"+uuid.NewString(), true)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "post not found", env.Error)

	code, env = f.do(t, http.MethodDelete, "/admin/polls/"+uuid.NewString(), true)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "poll not found", env.Error)

	code, env = f.do(t, http.MethodDelete, "/admin/posts/42", true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid post id", env.Error)
}
