package template

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/handler"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
)

type Handler struct {
	templates *store.TemplateStore
}

func NewHandler(templates *store.TemplateStore) *Handler {
	return &Handler{templates: templates}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/templates", h.ListTemplates)
	r.PUT("/templates/:kind", h.UpdateTemplate)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.templates.All()))
}

type updateTemplateRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	kind := model.NotificationKind(c.Param("kind"))
	if err := h.templates.Set(kind, req.Body); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	body, err := h.templates.Get(kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.MessageTemplate{Kind: kind, Body: body}))
}
