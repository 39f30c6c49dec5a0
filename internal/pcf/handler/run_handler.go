package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// RunHandler serves persisted calculation runs.
type RunHandler struct {
	calc   *service.CalculationService
	export *service.ExportService
}

func NewRunHandler(calc *service.CalculationService, export *service.ExportService) *RunHandler {
	return &RunHandler{calc: calc, export: export}
}

// Get handles GET /runs/:id.
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.calc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListByProduct handles GET /products/:id/runs, newest first.
func (h *RunHandler) ListByProduct(c *gin.Context) {
	runs, err := h.calc.ListRuns(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Latest handles GET /products/:id/runs/latest?kind=pcf|circularity.
func (h *RunHandler) Latest(c *gin.Context) {
	kind := c.DefaultQuery("kind", "pcf")
	run, err := h.calc.LatestRun(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// Export handles GET /runs/:id/export and streams the run as an xlsx
// workbook.
func (h *RunHandler) Export(c *gin.Context) {
	f, fileName, err := h.export.ExportRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		InternalError(c, "failed to render workbook")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
