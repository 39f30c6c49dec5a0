package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// Handlers bundles the HTTP handlers.
type Handlers struct {
	Product     *ProductHandler
	BOM         *BOMHandler
	Mapping     *MappingHandler
	PCF         *PCFHandler
	Circularity *CircularityHandler
	Scenario    *ScenarioHandler
	Run         *RunHandler
}

// NewHandlers creates the handler set.
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Product:     NewProductHandler(svc.Product),
		BOM:         NewBOMHandler(svc.BOM),
		Mapping:     NewMappingHandler(svc.Mapping),
		PCF:         NewPCFHandler(svc.Calculation, svc.Methods),
		Circularity: NewCircularityHandler(svc.Calculation),
		Scenario:    NewScenarioHandler(svc.Scenarios),
		Run:         NewRunHandler(svc.Calculation, svc.Export),
	}
}

// Error responses carry a single "error" field with the HTTP status
// preserved; the browser client surfaces both verbatim.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// RenderError maps service errors onto the wire taxonomy. Unrecognized
// errors become a 500; nothing is swallowed.
func RenderError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "not found")
	case errors.As(err, &vErr):
		if len(vErr.Lines) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "rejected": vErr.Lines})
			return
		}
		BadRequest(c, vErr.Error())
	default:
		InternalError(c, err.Error())
	}
}
