package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// MappingHandler serves the mapping review surface.
type MappingHandler struct {
	svc *service.MappingService
}

func NewMappingHandler(svc *service.MappingService) *MappingHandler {
	return &MappingHandler{svc: svc}
}

// Review handles GET /mapping/review/:id — the current candidate per line.
func (h *MappingHandler) Review(c *gin.Context) {
	candidates, err := h.svc.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// Decide handles POST /mapping/review/:id/decide.
func (h *MappingHandler) Decide(c *gin.Context) {
	var input service.DecideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	candidate, err := h.svc.Decide(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidate)
}

// History handles GET /mapping/history/:id — every candidate generation.
func (h *MappingHandler) History(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Reresolve handles POST /mapping/resolve/:id — re-runs resolution on the
// stored BOM, superseding the current candidates.
func (h *MappingHandler) Reresolve(c *gin.Context) {
	candidates, err := h.svc.Reresolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidates)
}
