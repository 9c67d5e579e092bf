package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townboard/backend/internal/events"
	"github.com/townboard/backend/internal/middleware"
	"github.com/townboard/backend/internal/models"
	"github.com/townboard/backend/internal/moderation"
)

// keywordClassifier flags any input containing "spam".
type keywordClassifier struct {
	err   error
	calls [][]string
}

func (k *keywordClassifier) Classify(_ context.Context, inputs ...string) ([]bool, error) {
	k.calls = append(k.calls, inputs)
	if k.err != nil {
		return nil, k.err
	}
	out := make([]bool, len(inputs))
	for i, in := range inputs {
		out[i] = strings.Contains(in, "spam")
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.VoteEvent
}

func (r *recordingPublisher) PublishVote(_ context.Context, e events.VoteEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	router    *gin.Engine
	store     *MemoryStore
	moderator *keywordClassifier
	events    *recordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		store:     NewMemoryStore(),
		moderator: &keywordClassifier{},
		events:    &recordingPublisher{},
	}
	h := NewHandler(ts.store, ts.moderator, ts.events, nil)

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.Use(middleware.Voter())
	h.Register(r.Group("/api/posts"))
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, ip string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ip == "" {
		ip = "10.0.0.1"
	}
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (ts *testServer) createPost(t *testing.T) models.Post {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/posts", CreateRequest{
		Title: "Farmers market", Content: "Saturday 9am", Author: "ana", AuthorAvatar: "https://img/ana.png",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var p models.Post
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

type tallyBody struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPost(t)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "Farmers market", p.Title)
	assert.Equal(t, 0, p.Upvotes)
	assert.Empty(t, p.Comments)
	require.Len(t, ts.moderator.calls, 1)
	assert.Equal(t, []string{"Farmers market", "Saturday 9am"}, ts.moderator.calls[0])
}

func TestCreatePostValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		req     CreateRequest
		status  int
		message string
	}{
		{"missing title", CreateRequest{Content: "c", Author: "a"}, http.StatusBadRequest, "title, content, and author are required"},
		{"blank author", CreateRequest{Title: "t", Content: "c", Author: "  "}, http.StatusBadRequest, "title, content, and author are required"},
		{"both flagged", CreateRequest{Title: "spam", Content: "spam", Author: "a"}, http.StatusBadRequest, "both title and content are inappropriate"},
		{"title flagged", CreateRequest{Title: "spam", Content: "ok", Author: "a"}, http.StatusBadRequest, "title is inappropriate"},
		{"content flagged", CreateRequest{Title: "ok", Content: "buy spam", Author: "a"}, http.StatusBadRequest, "content is inappropriate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.do(t, http.MethodPost, "/api/posts", tt.req, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, env.Error)
		})
	}

	list, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreatePostModerationUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.moderator.err = fmt.Errorf("%w: timeout", moderation.ErrUnavailable)

	w, env := ts.do(t, http.MethodPost, "/api/posts", CreateRequest{Title: "t", Content: "c", Author: "a"}, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "moderation service unavailable", env.Error)
}

func TestVoteFlow(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPost(t)
	base := "/api/posts/" + p.ID.String()

	w, env := ts.do(t, http.MethodPost, base+"/upvote", nil, "10.0.0.1")
	require.Equal(t, http.StatusOK, w.Code)
	var tally tallyBody
	require.NoError(t, json.Unmarshal(env.Data, &tally))
	assert.Equal(t, tallyBody{Upvotes: 1}, tally)

	w, env = ts.do(t, http.MethodPost, base+"/upvote", nil, "10.0.0.1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "you have already upvoted this post", env.Error)

	w, env = ts.do(t, http.MethodPost, base+"/downvote", nil, "10.0.0.1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &tally))
	assert.Equal(t, tallyBody{Downvotes: 1}, tally)

	w, env = ts.do(t, http.MethodPost, base+"/upvote", nil, "10.0.0.2")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &tally))
	assert.Equal(t, tallyBody{Upvotes: 1, Downvotes: 1}, tally)

	require.Len(t, ts.events.events, 3)
	last := ts.events.events[2]
	assert.Equal(t, events.KindPost, last.Kind)
	assert.Equal(t, "10_0_0_2", last.VoterID)
	assert.Equal(t, 1, last.Choice)
}

func TestVoteErrors(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/posts/not-a-uuid/upvote", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := ts.do(t, http.MethodPost, "/api/posts/"+uuid.NewString()+"/downvote", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "post not found", env.Error)
	assert.Empty(t, ts.events.events)
}

func TestCommentFlow(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createPost(t)
	base := "/api/posts/" + p.ID.String() + "/comments"

	w, env := ts.do(t, http.MethodPost, base, CommentRequest{Author: "ben", Content: "I'll bring apples"}, "")
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var cm models.Comment
	require.NoError(t, json.Unmarshal(env.Data, &cm))
	assert.Equal(t, p.ID, cm.PostID)

	w, env = ts.do(t, http.MethodPost, base, CommentRequest{Author: "ben", Content: "spam spam"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "comment content is inappropriate", env.Error)

	w, env = ts.do(t, http.MethodPost, base, CommentRequest{Content: "no author"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content and author are required", env.Error)

	w, env = ts.do(t, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Comment
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "I'll bring apples", list[0].Content)

	voteURL := base + "/" + cm.ID.String()
	w, _ = ts.do(t, http.MethodPost, voteURL+"/downvote", nil, "10.0.0.9")
	require.Equal(t, http.StatusOK, w.Code)
	w, env = ts.do(t, http.MethodPost, voteURL+"/downvote", nil, "10.0.0.9")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "you have already downvoted this comment", env.Error)

	w, env = ts.do(t, http.MethodPost, base+"/"+uuid.NewString()+"/upvote", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "comment not found", env.Error)

	require.Len(t, ts.events.events, 1)
	assert.Equal(t, events.KindComment, ts.events.events[0].Kind)
	assert.Equal(t, p.ID.String(), ts.events.events[0].ParentID)
}

func TestCommentsUnknownPost(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/posts/" + uuid.NewString() + "/comments"

	w, _ := ts.do(t, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodPost, base, CommentRequest{Author: "a", Content: "b"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPosts(t *testing.T) {
	ts := newTestServer(t)
	ts.createPost(t)

	w, env := ts.do(t, http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Post
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}
