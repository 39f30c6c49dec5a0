package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// BOMHandler serves BOM uploads and reads.
type BOMHandler struct {
	svc *service.BOMService
}

func NewBOMHandler(svc *service.BOMService) *BOMHandler {
	return &BOMHandler{svc: svc}
}

// uploadEnvelope is the wrapped upload form; the bare form is a raw array of
// line items carrying product_id on each row.
type uploadEnvelope struct {
	ProductID string                 `json:"product_id"`
	Items     []service.BOMItemInput `json:"items"`
}

type uploadRow struct {
	ProductID string `json:"product_id"`
	service.BOMItemInput
}

// Upload handles POST /bom/upload. The body is either a raw JSON array of
// line items or an object {product_id, items}; both shapes are accepted.
func (h *BOMHandler) Upload(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "unable to read request body")
		return
	}

	productID, inputs, parseErr := parseUpload(raw)
	if parseErr != "" {
		BadRequest(c, parseErr)
		return
	}

	result, err := h.svc.Replace(c.Request.Context(), productID, inputs)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseUpload(raw []byte) (string, []service.BOMItemInput, string) {
	var rows []uploadRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		if len(rows) == 0 {
			return "", nil, "BOM payload is empty"
		}
		productID := rows[0].ProductID
		if productID == "" {
			return "", nil, "product_id is required on BOM line items"
		}
		inputs := make([]service.BOMItemInput, len(rows))
		for i, row := range rows {
			if row.ProductID != productID {
				return "", nil, "all BOM line items must share one product_id"
			}
			inputs[i] = row.BOMItemInput
		}
		return productID, inputs, ""
	}

	var envelope uploadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil, "invalid JSON payload"
	}
	if envelope.ProductID == "" {
		return "", nil, "product_id is required"
	}
	return envelope.ProductID, envelope.Items, ""
}

// Get handles GET /bom/:id.
func (h *BOMHandler) Get(c *gin.Context) {
	items, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Import handles POST /bom/import/:id with a multipart xlsx file.
func (h *BOMHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "multipart field 'file' is required")
		return
	}
	reader, err := file.Open()
	if err != nil {
		BadRequest(c, "unable to open uploaded file")
		return
	}
	defer reader.Close()

	result, err := h.svc.ImportExcel(c.Request.Context(), c.Param("id"), reader)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
