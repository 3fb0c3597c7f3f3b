package handler

import (
	"strconv"

	catalogapp "github.com/catalog/backend/internal/application/catalog"
	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ProductHandler handles product catalog API endpoints
type ProductHandler struct {
	BaseHandler
	productService *catalogapp.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService *catalogapp.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// RegisterRoutes registers product routes on the API group
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	{
		products.GET("", h.List)
		products.GET("/:id", h.Get)
		products.PUT("/:id", h.Put)
		products.DELETE("/:id", h.Delete)
	}
}

// PutProductRequest represents a request to create or replace a product
type PutProductRequest struct {
	Name  string  `json:"name" binding:"required,min=1,max=200"`
	Price float64 `json:"price"`
}

// List returns one page of products. Clients pass the returned next_cursor
// back to continue; an empty cursor means the listing is complete.
func (h *ProductHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	page, err := h.productService.List(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toProductResponses(page.Products), page.NextCursor, len(page.Products))
}

// Get returns a single product by id
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.productService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toProductResponse(product))
}

// Put creates or replaces the product at the id in the path
func (h *ProductHandler) Put(c *gin.Context) {
	var req PutProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	product, err := h.productService.Put(c.Request.Context(), catalogapp.PutProductRequest{
		ID:    c.Param("id"),
		Name:  req.Name,
		Price: decimal.NewFromFloat(req.Price),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toProductResponse(product))
}

// Delete removes a product. Deleting an unknown id still returns 204.
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.productService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func toProductResponse(p *catalog.Product) dto.ProductResponse {
	price, _ := p.Price.Float64()
	return dto.ProductResponse{
		ID:    p.ID,
		Name:  p.Name,
		Price: price,
	}
}

func toProductResponses(products []catalog.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	return out
}
