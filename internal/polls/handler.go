// Package polls serves the single active poll and records poll votes.
package polls

import (
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
	"github.com/townboard/backend/pkg/response"
)

// CreateRequest is the body for POST /admin/polls.
type CreateRequest struct {
	Question  string     `json:"question" binding:"required"`
	Options   []string   `json:"options" binding:"required,min=1"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// VoteRequest is the body for POST /api/polls/:pollId/vote.
type VoteRequest struct {
	OptionIndex *int `json:"option_index" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	store      Store
	events     events.VotePublisher
	defaultTTL time.Duration
	metrics    *metrics.Votes
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler creates a polls handler. Polls created without expires_at stay open for defaultTTL.
func NewHandler(store Store, publisher events.VotePublisher, defaultTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{store: store, events: publisher, defaultTTL: defaultTTL, now: time.Now, logger: logger}
}

// SetMetrics enables vote instrumentation.
func (h *Handler) SetMetrics(m *metrics.Votes) {
	h.metrics = m
}

// Register mounts the public poll routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.Current)
	rg.POST("/:pollId/vote", h.Vote)
}

// Current handles GET /api/polls.
func (h *Handler) Current(c *gin.Context) {
	p, err := h.store.Active(c.Request.Context(), h.now())
	if err != nil {
		if errors.Is(err, ErrNoActivePoll) {
			response.NotFound(c, "no active poll available")
			return
		}
		h.logger.Error("active poll", zap.Error(err))
		response.Internal(c, "failed to fetch poll")
		return
	}
	response.OK(c, p)
}

// Vote handles POST /api/polls/:pollId/vote.
func (h *Handler) Vote(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "option_index is required")
		return
	}
	voter := middleware.VoterID(c)

	start := time.Now()
	p, err := h.store.CastVote(c.Request.Context(), pollID, voter, *req.OptionIndex, h.now())
	h.metrics.Observe(events.KindPoll, start, err)
	if err != nil {
		switch {
		case errors.Is(err, ErrPollNotFound):
			response.NotFound(c, "poll not found")
		case errors.Is(err, ledger.ErrInvalidOption):
			response.BadRequest(c, "invalid option selected")
		case errors.Is(err, ledger.ErrDuplicateVote):
			response.BadRequest(c, "you have already voted")
		case errors.Is(err, ledger.ErrPollClosed):
			response.BadRequest(c, "poll is not open for voting")
		default:
			h.logger.Error("cast poll vote", zap.Error(err), zap.String("poll_id", pollID.String()))
			response.Internal(c, "failed to record vote")
		}
		return
	}

	option := *req.OptionIndex
	if err := h.events.PublishVote(c.Request.Context(), events.VoteEvent{
		Kind:        events.KindPoll,
		TargetID:    pollID.String(),
		VoterID:     voter,
		OptionIndex: &option,
		Upvotes:     p.Options[option].Votes,
		At:          h.now().UTC(),
	}); err != nil {
		h.logger.Warn("publish vote event", zap.Error(err), zap.String("poll_id", pollID.String()))
	}
	response.OK(c, p)
}

// Create handles POST /admin/polls. The poll opens immediately.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		response.BadRequest(c, "invalid poll data")
		return
	}
	options := make([]models.PollOption, 0, len(req.Options))
	for _, text := range req.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			response.BadRequest(c, "poll options must not be empty")
			return
		}
		options = append(options, models.PollOption{Text: text})
	}

	now := h.now().UTC()
	expires := now.Add(h.defaultTTL)
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			response.BadRequest(c, "expires_at must be in the future")
			return
		}
		expires = req.ExpiresAt.UTC()
	}

	p := &models.Poll{
		Question:  strings.TrimSpace(req.Question),
		Options:   options,
		CreatedAt: now,
		ExpiresAt: expires,
	}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}
	h.logger.Info("poll created", zap.String("poll_id", p.ID.String()), zap.Time("expires_at", p.ExpiresAt))
	response.Created(c, p)
}
