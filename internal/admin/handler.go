// Package admin exposes the moderation surface: full listings and redaction.
package admin

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/townboard/backend/internal/middleware"
	"github.com/townboard/backend/internal/polls"
	"github.com/townboard/backend/internal/posts"
	"github.com/townboard/backend/pkg/response"
)

// Handler serves /admin routes. Every route expects middleware.AdminSession to have run.
type Handler struct {
	posts  posts.Store
	polls  polls.Store
	logger *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(postStore posts.Store, pollStore polls.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{posts: postStore, polls: pollStore, logger: logger}
}

// Register mounts the listing and redaction routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/posts", h.ListPosts)
	rg.DELETE("/posts/:postId", h.RedactPost)
	rg.GET("/polls", h.ListPolls)
	rg.DELETE("/polls/:pollId", h.RedactPoll)
}

// ListPosts handles GET /admin/posts, redacted posts included.
func (h *Handler) ListPosts(c *gin.Context) {
	list, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.logger.Error("admin list posts", zap.Error(err))
		response.Internal(c, "failed to list posts")
		return
	}
	response.OK(c, list)
}

// RedactPost handles DELETE /admin/posts/:postId. Votes and comments stay.
func (h *Handler) RedactPost(c *gin.Context) {
	id, err := uuid.Parse(c.Param("postId"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return
	}
	ctx := c.Request.Context()
	if err := h.posts.Redact(ctx, id); err != nil {
		if errors.Is(err, posts.ErrPostNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		h.logger.Error("redact post", zap.Error(err), zap.String("post_id", id.String()))
		response.Internal(c, "failed to delete post")
		return
	}
	h.logger.Info("post redacted",
		zap.String("post_id", id.String()),
		zap.String("admin", c.GetString(middleware.ContextAdminUsername)),
	)

	p, err := h.posts.Get(ctx, id)
	if err != nil {
		h.logger.Error("reload redacted post", zap.Error(err), zap.String("post_id", id.String()))
		response.Internal(c, "failed to load post")
		return
	}
	response.OK(c, p)
}

// ListPolls handles GET /admin/polls, expired and redacted polls included.
func (h *Handler) ListPolls(c *gin.Context) {
	list, err := h.polls.List(c.Request.Context())
	if err != nil {
		h.logger.Error("admin list polls", zap.Error(err))
		response.Internal(c, "failed to list polls")
		return
	}
	response.OK(c, list)
}

// RedactPoll handles DELETE /admin/polls/:pollId. The poll closes; counts and voters stay.
func (h *Handler) RedactPoll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	ctx := c.Request.Context()
	if err := h.polls.Redact(ctx, id); err != nil {
		if errors.Is(err, polls.ErrPollNotFound) {
			response.NotFound(c, "poll not found")
			return
		}
		h.logger.Error("redact poll", zap.Error(err), zap.String("poll_id", id.String()))
		response.Internal(c, "failed to delete poll")
		return
	}
	h.logger.Info("poll redacted",
		zap.String("poll_id", id.String()),
		zap.String("admin", c.GetString(middleware.ContextAdminUsername)),
	)

	p, err := h.polls.Get(ctx, id)
	if err != nil {
		h.logger.Error("reload redacted poll", zap.Error(err), zap.String("poll_id", id.String()))
		response.Internal(c, "failed to load poll")
		return
	}
	response.OK(c, p)
}
