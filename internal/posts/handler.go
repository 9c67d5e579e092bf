package posts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/townboard/backend/internal/events"
	"github.com/townboard/backend/internal/ledger"
	"github.com/townboard/backend/internal/metrics"
	"github.com/townboard/backend/internal/middleware"
	"github.com/townboard/backend/internal/models"
	"github.com/townboard/backend/internal/moderation"
	"github.com/townboard/backend/pkg/response"
)

// CreateRequest is the body for POST /api/posts.
type CreateRequest struct {
	Title        string `json:"title" binding:"required"`
	Content      string `json:"content" binding:"required"`
	Author       string `json:"author" binding:"required"`
	AuthorAvatar string `json:"author_avatar"`
}

// CommentRequest is the body for POST /api/posts/:postId/comments.
type CommentRequest struct {
	Content      string `json:"content" binding:"required"`
	Author       string `json:"author" binding:"required"`
	AuthorAvatar string `json:"author_avatar"`
}

// Handler handles post and comment HTTP endpoints.
type Handler struct {
	store     Store
	moderator moderation.Classifier
	events    events.VotePublisher
	metrics   *metrics.Votes
	logger    *zap.Logger
}

// NewHandler creates a posts handler. A nil publisher discards vote events.
func NewHandler(store Store, moderator moderation.Classifier, publisher events.VotePublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{store: store, moderator: moderator, events: publisher, logger: logger}
}

// SetMetrics enables vote instrumentation.
func (h *Handler) SetMetrics(m *metrics.Votes) {
	h.metrics = m
}

// Register mounts the public post routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/:postId/upvote", h.Vote(ledger.Up))
	rg.POST("/:postId/downvote", h.Vote(ledger.Down))
	rg.GET("/:postId/comments", h.ListComments)
	rg.POST("/:postId/comments", h.AddComment)
	rg.POST("/:postId/comments/:commentId/upvote", h.VoteComment(ledger.Up))
	rg.POST("/:postId/comments/:commentId/downvote", h.VoteComment(ledger.Down))
}

// List handles GET /api/posts.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list posts", zap.Error(err))
		response.Internal(c, "failed to list posts")
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/posts. Title and content are moderated before anything is stored.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil || blank(req.Title, req.Content, req.Author) {
		response.BadRequest(c, "title, content, and author are required")
		return
	}

	verdicts, err := h.moderator.Classify(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		h.moderationFailed(c, err)
		return
	}
	titleFlagged, contentFlagged := verdicts[0], verdicts[1]
	switch {
	case titleFlagged && contentFlagged:
		response.BadRequest(c, "both title and content are inappropriate")
		return
	case titleFlagged:
		response.BadRequest(c, "title is inappropriate")
		return
	case contentFlagged:
		response.BadRequest(c, "content is inappropriate")
		return
	}

	p := &models.Post{
		Title:        req.Title,
		Content:      req.Content,
		Author:       req.Author,
		AuthorAvatar: req.AuthorAvatar,
	}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create post", zap.Error(err))
		response.Internal(c, "failed to create post")
		return
	}
	response.Created(c, p)
}

// Vote returns the handler for POST /api/posts/:postId/upvote and /downvote.
func (h *Handler) Vote(choice ledger.Choice) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parseID(c, "postId", "invalid post id")
		if !ok {
			return
		}
		voter := middleware.VoterID(c)

		start := time.Now()
		tally, err := h.store.CastVote(c.Request.Context(), postID, voter, choice)
		h.metrics.Observe(events.KindPost, start, err)
		if err != nil {
			h.voteFailed(c, err, choice, "post")
			return
		}

		h.publish(c.Request.Context(), events.VoteEvent{
			Kind:      events.KindPost,
			TargetID:  postID.String(),
			VoterID:   voter,
			Choice:    int(choice),
			Upvotes:   tally.Upvotes,
			Downvotes: tally.Downvotes,
		})
		response.OK(c, tally)
	}
}

// AddComment handles POST /api/posts/:postId/comments.
func (h *Handler) AddComment(c *gin.Context) {
	postID, ok := parseID(c, "postId", "invalid post id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || blank(req.Content, req.Author) {
		response.BadRequest(c, "content and author are required")
		return
	}

	verdicts, err := h.moderator.Classify(c.Request.Context(), req.Content)
	if err != nil {
		h.moderationFailed(c, err)
		return
	}
	if verdicts[0] {
		response.BadRequest(c, "comment content is inappropriate")
		return
	}

	cm := &models.Comment{
		PostID:       postID,
		Author:       req.Author,
		AuthorAvatar: req.AuthorAvatar,
		Content:      req.Content,
	}
	if err := h.store.AddComment(c.Request.Context(), cm); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		h.logger.Error("add comment", zap.Error(err), zap.String("post_id", postID.String()))
		response.Internal(c, "failed to add comment")
		return
	}
	response.Created(c, cm)
}

// ListComments handles GET /api/posts/:postId/comments.
func (h *Handler) ListComments(c *gin.Context) {
	postID, ok := parseID(c, "postId", "invalid post id")
	if !ok {
		return
	}
	list, err := h.store.ListComments(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			response.NotFound(c, "post not found")
			return
		}
		h.logger.Error("list comments", zap.Error(err), zap.String("post_id", postID.String()))
		response.Internal(c, "failed to list comments")
		return
	}
	response.OK(c, list)
}

// VoteComment returns the handler for POST /api/posts/:postId/comments/:commentId/upvote and /downvote.
func (h *Handler) VoteComment(choice ledger.Choice) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parseID(c, "postId", "invalid post id")
		if !ok {
			return
		}
		commentID, ok := parseID(c, "commentId", "invalid comment id")
		if !ok {
			return
		}
		voter := middleware.VoterID(c)

		start := time.Now()
		tally, err := h.store.CastCommentVote(c.Request.Context(), postID, commentID, voter, choice)
		h.metrics.Observe(events.KindComment, start, err)
		if err != nil {
			h.voteFailed(c, err, choice, "comment")
			return
		}

		h.publish(c.Request.Context(), events.VoteEvent{
			Kind:      events.KindComment,
			TargetID:  commentID.String(),
			ParentID:  postID.String(),
			VoterID:   voter,
			Choice:    int(choice),
			Upvotes:   tally.Upvotes,
			Downvotes: tally.Downvotes,
		})
		response.OK(c, tally)
	}
}

func (h *Handler) voteFailed(c *gin.Context, err error, choice ledger.Choice, noun string) {
	switch {
	case errors.Is(err, ledger.ErrDuplicateVote):
		verb := "upvoted"
		if choice == ledger.Down {
			verb = "downvoted"
		}
		response.BadRequest(c, "you have already "+verb+" this "+noun)
	case errors.Is(err, ledger.ErrInvalidChoice):
		response.BadRequest(c, "invalid vote")
	case errors.Is(err, ErrCommentNotFound):
		response.NotFound(c, "comment not found")
	case errors.Is(err, ErrPostNotFound):
		response.NotFound(c, "post not found")
	default:
		h.logger.Error("cast vote", zap.Error(err), zap.String("votable", noun))
		response.Internal(c, "failed to record vote")
	}
}

func (h *Handler) moderationFailed(c *gin.Context, err error) {
	if errors.Is(err, moderation.ErrUnavailable) {
		h.logger.Warn("moderation unavailable", zap.Error(err))
		response.BadGateway(c, "moderation service unavailable")
		return
	}
	h.logger.Error("moderation request", zap.Error(err))
	response.Internal(c, "server error")
}

func (h *Handler) publish(ctx context.Context, e events.VoteEvent) {
	e.At = time.Now().UTC()
	if err := h.events.PublishVote(ctx, e); err != nil {
		h.logger.Warn("publish vote event", zap.Error(err), zap.String("target_id", e.TargetID))
	}
}

func parseID(c *gin.Context, param, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
