package timelines

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/playback/internal/metrics"
	"github.com/aura-webinar/playback/internal/models"
	"github.com/aura-webinar/playback/internal/padding"
	"github.com/aura-webinar/playback/pkg/queue"
	"github.com/aura-webinar/playback/pkg/response"
)

// Store persists timelines. *Repository implements it.
type Store interface {
	Create(ctx context.Context, tl *models.Timeline) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Timeline, error)
	ListByRecording(ctx context.Context, recordingID string) ([]models.Timeline, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Enqueuer schedules render jobs. *queue.Queue implements it.
type Enqueuer interface {
	EnqueueRender(ctx context.Context, payload queue.RenderPayload) (string, error)
}

// Presigner issues download URLs for rendered timelines. *storage.S3 implements it.
type Presigner interface {
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// PlanRequest is the body of POST /timelines/plan.
type PlanRequest struct {
	Namespace      string         `json:"namespace" binding:"required"`
	FirstTimestamp *int64         `json:"first_timestamp" binding:"required"`
	LastTimestamp  *int64         `json:"last_timestamp" binding:"required"`
	Events         []models.Event `json:"events"`
	// Merge coalesces overlapping or touching events before planning.
	Merge bool `json:"merge"`
}

// PlanResponse is the computed plan.
type PlanResponse struct {
	Namespace models.Namespace  `json:"namespace"`
	Paddings  []models.Padding  `json:"paddings"`
	Fragments []models.Fragment `json:"fragments"`
}

// CreateRequest is the body of POST /timelines.
type CreateRequest struct {
	PlanRequest
	RecordingID string `json:"recording_id" binding:"required"`
	AudioPath   string `json:"audio_path"`
}

// Handler handles timeline HTTP endpoints.
type Handler struct {
	store   Store
	queue   Enqueuer
	s3      Presigner // optional
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a timelines handler. s3 and m may be nil.
func NewHandler(store Store, q Enqueuer, s3 Presigner, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, queue: q, s3: s3, metrics: m, logger: logger}
}

func (h *Handler) plan(req PlanRequest) ([]models.Event, []models.Padding, error) {
	events := req.Events
	var err error
	if req.Merge {
		if events, err = padding.Merge(events); err != nil {
			h.metrics.IncInvalidPlans()
			return nil, nil, err
		}
	}
	ns := models.Namespace(strings.ToLower(req.Namespace))
	paddings, err := padding.Plan(events, *req.FirstTimestamp, *req.LastTimestamp, ns)
	if err != nil {
		h.metrics.IncInvalidPlans()
		return nil, nil, err
	}
	h.metrics.ObservePlan(string(ns), len(paddings))
	return events, paddings, nil
}

// Plan handles POST /timelines/plan. Pure computation; nothing is stored.
func (h *Handler) Plan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	events, paddings, err := h.plan(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, PlanResponse{
		Namespace: models.Namespace(strings.ToLower(req.Namespace)),
		Paddings:  paddings,
		Fragments: padding.Interleave(events, paddings),
	})
}

// Create handles POST /timelines: validates the plan, stores it and enqueues a render.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	events, paddings, err := h.plan(req.PlanRequest)
	if err != nil {
		h.fail(c, err)
		return
	}
	for i, e := range events {
		if e.Stream == "" {
			response.Fail(c, http.StatusBadRequest, "missing_stream", fmt.Sprintf("event %d has no stream", i))
			return
		}
	}

	ctx := c.Request.Context()
	tl := &models.Timeline{
		ID:             uuid.New(),
		RecordingID:    req.RecordingID,
		Namespace:      models.Namespace(strings.ToLower(req.Namespace)),
		FirstTimestamp: *req.FirstTimestamp,
		LastTimestamp:  *req.LastTimestamp,
		Events:         events,
		Paddings:       paddings,
		AudioPath:      req.AudioPath,
		Status:         models.TimelineStatusPending,
	}
	if err := h.store.Create(ctx, tl); err != nil {
		h.logger.Error("create timeline failed", zap.Error(err), zap.String("recording_id", req.RecordingID))
		response.Internal(c, "failed to create timeline")
		return
	}

	jobID, err := h.queue.EnqueueRender(ctx, queue.RenderPayload{TimelineID: tl.ID})
	if err != nil {
		h.logger.Error("enqueue render failed", zap.Error(err), zap.String("timeline_id", tl.ID.String()))
		if mErr := h.store.MarkFailed(ctx, tl.ID, "enqueue: "+err.Error()); mErr != nil {
			h.logger.Error("mark timeline failed", zap.Error(mErr), zap.String("timeline_id", tl.ID.String()))
		}
		response.ServiceUnavailable(c, "render queue unavailable")
		return
	}

	h.logger.Info("timeline queued",
		zap.String("timeline_id", tl.ID.String()),
		zap.String("job_id", jobID),
		zap.String("namespace", string(tl.Namespace)),
		zap.Int("paddings", len(paddings)),
	)
	response.Accepted(c, gin.H{"id": tl.ID, "status": tl.Status, "job_id": jobID, "paddings": paddings})
}

// Get handles GET /timelines/:id.
func (h *Handler) Get(c *gin.Context) {
	tl, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, tl)
}

// ListByRecording handles GET /recordings/:id/timelines.
func (h *Handler) ListByRecording(c *gin.Context) {
	recordingID := c.Param("id")
	list, err := h.store.ListByRecording(c.Request.Context(), recordingID)
	if err != nil {
		h.logger.Error("list timelines failed", zap.Error(err), zap.String("recording_id", recordingID))
		response.Internal(c, "failed to list timelines")
		return
	}
	response.OK(c, list)
}

// DownloadURL handles GET /timelines/:id/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	tl, ok := h.load(c)
	if !ok {
		return
	}
	if tl.Status != models.TimelineStatusCompleted || tl.S3Key == "" {
		response.Conflict(c, "timeline not ready for download")
		return
	}
	url, err := h.s3.PresignedDownloadURL(c.Request.Context(), tl.S3Key)
	if err != nil {
		h.logger.Error("presign timeline download failed", zap.Error(err), zap.String("timeline_id", tl.ID.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(h.s3.PresignExpire().Seconds())})
}

func (h *Handler) load(c *gin.Context) (*models.Timeline, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid timeline id")
		return nil, false
	}
	tl, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "timeline not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("get timeline failed", zap.Error(err), zap.String("timeline_id", id.String()))
		response.Internal(c, "failed to load timeline")
		return nil, false
	}
	return tl, true
}

// fail writes a planning error. Invalid input maps to 400 with a code
// naming the violated rule.
func (h *Handler) fail(c *gin.Context, err error) {
	if !padding.IsInvalidInput(err) {
		h.logger.Error("plan failed", zap.Error(err))
		response.Internal(c, "failed to plan timeline")
		return
	}
	response.Fail(c, http.StatusBadRequest, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, padding.ErrNoEvents):
		return "no_events"
	case errors.Is(err, padding.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, padding.ErrOverlappingEvents):
		return "overlapping_events"
	case errors.Is(err, padding.ErrInvalidBounds):
		return "invalid_bounds"
	case errors.Is(err, padding.ErrUnknownNamespace):
		return "unknown_namespace"
	case errors.Is(err, padding.ErrStreamConflict):
		return "stream_conflict"
	}
	return "invalid_input"
}
