package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
)

// ProductHandler serves the product registry.
type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// Register handles POST /products. Idempotent per (id, version).
func (h *ProductHandler) Register(c *gin.Context) {
	var input service.RegisterProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	product, err := h.svc.Register(c.Request.Context(), &input)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.svc.List(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}
