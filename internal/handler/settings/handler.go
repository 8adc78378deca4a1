package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/handler"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
)

type Handler struct {
	settings *store.SettingsStore
}

func NewHandler(settings *store.SettingsStore) *Handler {
	return &Handler{settings: settings}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.settings.Snapshot()))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req model.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.settings.Update(req); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.settings.Snapshot()))
}
