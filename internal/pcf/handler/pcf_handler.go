package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// PCFHandler serves the method catalog and PCF runs.
type PCFHandler struct {
	svc     *service.CalculationService
	methods *catalog.MethodRegistry
}

func NewPCFHandler(svc *service.CalculationService, methods *catalog.MethodRegistry) *PCFHandler {
	return &PCFHandler{svc: svc, methods: methods}
}

// ListMethods handles GET /pcf/methods.
func (h *PCFHandler) ListMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.methods.List()})
}

// RunRequest is the PCF run payload. Method and scenario are both optional;
// an explicit method wins over the scenario's.
type RunRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	PCFMethodID string `json:"pcf_method_id"`
	ScenarioID  string `json:"scenario_id"`
}

// Run handles POST /pcf/run. An incomplete mapping yields 422 with the
// offending line numbers and the persisted failed run, so the caller can
// route straight to the review API.
func (h *PCFHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	run, err := h.svc.RunPCF(c.Request.Context(), req.ProductID, req.PCFMethodID, req.ScenarioID)
	if err != nil {
		var incomplete *service.IncompleteMappingError
		if errors.As(err, &incomplete) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":                incomplete.Error(),
				"status":               run.Status,
				"run_id":               run.RunID,
				"offending_line_items": incomplete.LineNos,
			})
			return
		}
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
