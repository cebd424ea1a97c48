package httpserver

import (
	"net/http"

	"marketplace-core/internal/domain"
	productsvc "marketplace-core/internal/service/product"

	"github.com/gin-gonic/gin"
)

type adjustInventoryRequest struct {
	VariantID string `json:"variantId,omitempty"`
	Delta     int    `json:"delta"`
}

func (h *handlers) listProducts(c *gin.Context) {
	in := productsvc.ListInput{
		StoreID:    c.Query("storeId"),
		ActiveOnly: c.Query("active") != "false",
	}
	var err error
	if in.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.Offset, err = intQuery(c, "offset"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	products, err := h.deps.ProductSvc.List(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listResponse[domain.Product]{Results: products, Count: len(products), Limit: in.Limit, Offset: in.Offset})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.ProductSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) adjustInventory(c *gin.Context) {
	var req adjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.Validationf("invalid body: %v", err))
		return
	}
	level, err := h.deps.InventorySvc.AdjustAs(c.Request.Context(), actorFrom(c), c.Param("id"), req.VariantID, req.Delta)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, level)
}
