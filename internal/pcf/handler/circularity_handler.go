package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// CircularityHandler serves circularity runs.
type CircularityHandler struct {
	svc *service.CalculationService
}

func NewCircularityHandler(svc *service.CalculationService) *CircularityHandler {
	return &CircularityHandler{svc: svc}
}

// circularityRunRequest is the run payload.
type circularityRunRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	ScenarioID string `json:"scenario_id"`
}

// Run handles POST /circularity/run. Partial circularity data never fails
// the run; uncovered line items just contribute zero.
func (h *CircularityHandler) Run(c *gin.Context) {
	var req circularityRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	run, err := h.svc.RunCircularity(c.Request.Context(), req.ProductID, req.ScenarioID)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
