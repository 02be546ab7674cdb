package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/postflight/internal/adapters/http/dto"
	"github.com/jsamuelsen/postflight/internal/app"
	"github.com/jsamuelsen/postflight/internal/domain"
)

// cursorFieldReceivedAt is the sort field encoded in event list cursors.
const cursorFieldReceivedAt = "received_at"

// EventsHandler handles event intake and retrieval endpoints.
type EventsHandler struct {
	service *app.EventService
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(service *app.EventService) *EventsHandler {
	return &EventsHandler{
		service: service,
	}
}

// CreateEventRequest is the HTTP request structure for event intake.
type CreateEventRequest struct {
	Type    string         `json:"type" validate:"required,notempty,max=128"`
	Source  string         `json:"source" validate:"required,notempty,max=128"`
	Payload map[string]any `json:"payload"`
}

// EventResponse is the HTTP response structure for an event.
type EventResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload,omitempty"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// toEventResponse converts a domain Event to an HTTP response.
func toEventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		Type:       e.Type,
		Source:     e.Source,
		Payload:    e.Payload,
		ReceivedAt: e.ReceivedAt,
	}
}

// CreateEvent handles POST /api/v1/events
// Accepts an event, persists it, and defers webhook fan-out and audit
// recording until the response has been written.
//
// @Summary Ingest an event
// @Description Accepts an event for processing; side effects run after the response closes
// @Tags events
// @Accept json
// @Produce json
// @Param event body CreateEventRequest true "Event to ingest"
// @Success 202 {object} EventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/events [post]
func (h *EventsHandler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindingError(c, err)
		return
	}

	event, err := h.service.Ingest(c.Request.Context(), app.IngestInput{
		Type:    req.Type,
		Source:  req.Source,
		Payload: req.Payload,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, toEventResponse(event))
}

// GetEventByID handles GET /api/v1/events/:id
// Returns a specific event by its identifier.
//
// @Summary Get an event by ID
// @Description Fetches a specific event by its identifier
// @Tags events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/events/{id} [get]
func (h *EventsHandler) GetEventByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.ErrorCodeBadRequest,
			"event ID is required",
		).WithTraceID(dto.GetTraceID(c)))
		return
	}

	event, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toEventResponse(event))
}

// ListEvents handles GET /api/v1/events
// Returns events in intake order with cursor pagination.
//
// @Summary List events
// @Description Lists ingested events with cursor pagination
// @Tags events
// @Produce json
// @Param cursor query string false "Pagination cursor"
// @Param limit query int false "Page size (1-100, default 20)"
// @Success 200 {object} dto.PaginatedResponse[EventResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/events [get]
func (h *EventsHandler) ListEvents(c *gin.Context) {
	var req dto.PaginationRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.HandleBindingError(c, err)
		return
	}

	events, err := h.service.List(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	cursor, err := req.DecodeCursor()
	if err != nil && !errors.Is(err, dto.ErrNoCursor) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.ErrorCodeBadRequest,
			"invalid pagination cursor",
		).WithTraceID(dto.GetTraceID(c)))
		return
	}

	page := pageAfterCursor(events, cursor, req.GetLimit())

	items := make([]EventResponse, 0, len(page))
	for _, event := range page {
		items = append(items, toEventResponse(event))
	}

	resp := dto.NewPaginatedResponse(items, req.GetLimit(), func(item EventResponse) *dto.CursorData {
		return dto.NewCursor(
			cursorFieldReceivedAt,
			item.ReceivedAt.UTC().Format(time.RFC3339Nano),
			item.ID,
		)
	})

	c.JSON(http.StatusOK, resp)
}

// pageAfterCursor returns up to limit+1 events following the cursor position.
// The extra item lets the response detect whether more pages exist. Events are
// already in intake order; the cursor ID anchors the position so pages stay
// stable while new events arrive at the tail.
func pageAfterCursor(events []*domain.Event, cursor *dto.CursorData, limit int) []*domain.Event {
	start := 0

	if cursor != nil {
		for i, event := range events {
			if event.ID == cursor.ID {
				start = i + 1
				break
			}
		}
	}

	if start >= len(events) {
		return nil
	}

	end := start + limit + 1
	if end > len(events) {
		end = len(events)
	}

	return events[start:end]
}

// RegisterEventRoutes registers event routes on the given router group.
func (h *EventsHandler) RegisterEventRoutes(rg *gin.RouterGroup) {
	events := rg.Group("/events")
	events.POST("", h.CreateEvent)
	events.GET("", h.ListEvents)
	events.GET("/:id", h.GetEventByID)
}
