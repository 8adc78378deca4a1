package activity

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/feed"
	"github.com/jwalitptl/attend-api/internal/handler"
)

type Handler struct {
	feed *feed.Feed
}

func NewHandler(fd *feed.Feed) *Handler {
	return &Handler{feed: fd}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activity", h.ListActivity)
}

func (h *Handler) ListActivity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.feed.Recent(limit)))
}
