package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
)

// ScenarioHandler serves the read-only scenario catalog.
type ScenarioHandler struct {
	scenarios *catalog.ScenarioRegistry
}

func NewScenarioHandler(scenarios *catalog.ScenarioRegistry) *ScenarioHandler {
	return &ScenarioHandler{scenarios: scenarios}
}

// List handles GET /scenarios.
func (h *ScenarioHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": h.scenarios.List()})
}
