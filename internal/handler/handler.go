package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
	"github.com/BarkinBalci/learning-analytics-service/internal/dto"
	"github.com/BarkinBalci/learning-analytics-service/internal/queue"
	"github.com/BarkinBalci/learning-analytics-service/internal/service"
)

// Handler exposes the engine to synchronous collaborators: direct event
// processing, async enqueueing, and the processing-stats snapshot.
type Handler struct {
	processor service.EventProcessor
	publisher queue.QueuePublisher
	router    *gin.Engine
	log       *zap.Logger
}

func NewHandler(processor service.EventProcessor, publisher queue.QueuePublisher, log *zap.Logger) *Handler {
	h := &Handler{
		processor: processor,
		publisher: publisher,
		router:    gin.Default(),
		log:       log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/events", h.processEvent)
	h.router.POST("/events/async", h.enqueueEvent)
	h.router.GET("/stats", h.getStats)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// processEvent handles POST /events: the synchronous ingestion path. The
// event's full effects are applied before the response.
func (h *Handler) processEvent(c *gin.Context) {
	req, ok := h.bindEvent(c)
	if !ok {
		return
	}

	event, err := toDomainEvent(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if err := h.processor.ProcessEvent(c.Request.Context(), event); err != nil {
		h.writeProcessingError(c, event, err)
		return
	}

	c.JSON(http.StatusOK, dto.ProcessEventResponse{
		EventID: event.ID,
		Status:  "processed",
	})
}

// enqueueEvent handles POST /events/async: publishes to the broker for the
// consumer pipeline to pick up.
func (h *Handler) enqueueEvent(c *gin.Context) {
	req, ok := h.bindEvent(c)
	if !ok {
		return
	}

	if err := h.publisher.PublishEvent(c.Request.Context(), req); err != nil {
		h.log.Error("Failed to publish event",
			zap.String("event_id", req.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.ProcessEventResponse{
		EventID: req.ID,
		Status:  "accepted",
	})
}

// getStats handles GET /stats
func (h *Handler) getStats(c *gin.Context) {
	snapshot := h.processor.Stats(c.Request.Context())

	resp := dto.ProcessingStatsResponse{
		EventsProcessed:       snapshot.EventsProcessed,
		AverageProcessingTime: snapshot.AverageProcessingTime,
		ErrorCount:            snapshot.ErrorCount,
		QueueLength:           snapshot.QueueLength,
	}
	if !snapshot.LastProcessedAt.IsZero() {
		resp.LastProcessedAt = snapshot.LastProcessedAt.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) bindEvent(c *gin.Context) (*dto.PublishEventRequest, bool) {
	var req dto.PublishEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return nil, false
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	return &req, true
}

func (h *Handler) writeProcessingError(c *gin.Context, event *domain.LearningEvent, err error) {
	var validationErr *domain.ValidationError
	var storeErr *domain.StoreError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})

	case errors.Is(err, domain.ErrDuplicateEvent):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "duplicate_event",
			Message: err.Error(),
		})

	case errors.As(err, &storeErr):
		h.log.Error("Store unavailable while processing event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "store_unavailable",
			Message: err.Error(),
		})

	default:
		h.log.Error("Failed to process event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

// toDomainEvent converts a wire event into the typed domain form.
func toDomainEvent(req *dto.PublishEventRequest) (*domain.LearningEvent, error) {
	eventType := domain.EventType(req.EventType)
	if !eventType.IsValid() {
		return nil, domain.NewValidationError("eventType", "has unknown value "+req.EventType)
	}

	payload, err := domain.DecodePayload(eventType, req.EventData)
	if err != nil {
		return nil, domain.NewValidationError("eventData", err.Error())
	}

	return &domain.LearningEvent{
		ID:        req.ID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Type:      eventType,
		Payload:   payload,
		RawData:   req.EventData,
		Context: domain.EventContext{
			DeviceType:     req.Context.DeviceType,
			Platform:       req.Context.Platform,
			CourseID:       req.Context.CourseID,
			OrganizationID: req.Context.OrganizationID,
		},
		Timestamp: time.Unix(req.Timestamp, 0).UTC(),
	}, nil
}
