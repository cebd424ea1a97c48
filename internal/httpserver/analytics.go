package httpserver

import (
	"net/http"

	analyticssvc "marketplace-core/internal/service/analytics"

	"github.com/gin-gonic/gin"
)

func (h *handlers) analyticsSummary(c *gin.Context) {
	q := analyticssvc.Query{StoreID: c.Query("storeId")}
	from, err := timeQuery(c, "from")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if from != nil {
		q.From = *from
	}
	if to != nil {
		q.To = *to
	}
	if q.Top, err = intQuery(c, "top"); err != nil {
		writeError(c, h.logger, err)
		return
	}

	sum, err := h.deps.AnalyticsSvc.Summary(c.Request.Context(), actorFrom(c), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
