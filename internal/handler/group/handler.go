package group

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/handler"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/notifier"
	"github.com/jwalitptl/attend-api/internal/store"
)

type Handler struct {
	groups *store.GroupStore
	router *notifier.Router
}

func NewHandler(groups *store.GroupStore, router *notifier.Router) *Handler {
	return &Handler{groups: groups, router: router}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	groups := r.Group("/groups")
	{
		groups.POST("", h.CreateGroup)
		groups.GET("", h.ListGroups)
		groups.GET("/:id", h.GetGroup)
		groups.PUT("/:id", h.UpdateGroup)
		groups.DELETE("/:id", h.DeleteGroup)
		groups.POST("/:id/test", h.SendTestMessage)
	}
}

type groupRequest struct {
	Name          string   `json:"name" binding:"required"`
	ChatID        string   `json:"chat_id" binding:"required"`
	Members       int      `json:"members"`
	Status        string   `json:"status" binding:"omitempty,oneof=active inactive"`
	Notifications []string `json:"notifications"`
}

func (r *groupRequest) toModel() *model.Group {
	kinds := make([]model.NotificationKind, 0, len(r.Notifications))
	for _, k := range r.Notifications {
		kinds = append(kinds, model.NotificationKind(k))
	}
	return &model.Group{
		Name:          r.Name,
		ChatID:        r.ChatID,
		Members:       r.Members,
		Status:        model.GroupStatus(r.Status),
		Notifications: kinds,
	}
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	g := req.toModel()
	id, err := h.groups.Create(g)
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.groups.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.groups.List()))
}

func (h *Handler) GetGroup(c *gin.Context) {
	g, err := h.groups.Get(c.Param("id"))
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(g))
}

func (h *Handler) UpdateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	g := req.toModel()
	g.ID = c.Param("id")
	if err := h.groups.Update(g); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.groups.Get(g.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id := c.Param("id")
	if err := h.groups.Delete(id); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

func (h *Handler) SendTestMessage(c *gin.Context) {
	if err := h.router.SendTest(c.Param("id")); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{"queued": true}))
}
