// internal/handlers/tickets/ticket_handler.go
package tickets

import (
	"errors"
	"net/http"

	ticketdom "fleetcheck-service/internal/domain/ticket"
	"fleetcheck-service/internal/middleware"
	xerrors "fleetcheck-service/internal/pkg/errors"
	"fleetcheck-service/internal/pkg/response"
	ticketsvc "fleetcheck-service/internal/service/ticket"

	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	service *ticketsvc.Service
}

func NewTicketHandler(service *ticketsvc.Service) *TicketHandler {
	return &TicketHandler{service: service}
}

// List returns tickets matching the query filters, paginated.
func (h *TicketHandler) List(c *gin.Context) {
	var filters ticketdom.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	list, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list tickets", err)
		return
	}

	response.Success(c, http.StatusOK, "tickets retrieved", gin.H{
		"tickets":   list,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// Get returns a single ticket by ID.
func (h *TicketHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "ticket not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load ticket", err)
		return
	}

	response.Success(c, http.StatusOK, "ticket retrieved", t)
}

type updateStatusRequest struct {
	Status ticketdom.Status `json:"status" binding:"required"`
}

// UpdateStatus moves a ticket through its workflow. Invalid transitions are
// rejected; the resolver identity comes from the gateway headers.
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	t, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "ticket not found")
		case errors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, "invalid status transition", err)
		default:
			response.Error(c, http.StatusInternalServerError, "failed to update ticket", err)
		}
		return
	}

	response.Success(c, http.StatusOK, "ticket updated", t)
}
