package device

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/handler"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/registry"
)

// Untracker releases the poll worker of a removed device.
type Untracker interface {
	Untrack(deviceID string)
}

type Handler struct {
	registry *registry.Registry
	poller   Untracker
}

func NewHandler(reg *registry.Registry, poller Untracker) *Handler {
	return &Handler{registry: reg, poller: poller}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	devices := r.Group("/devices")
	{
		devices.POST("", h.CreateDevice)
		devices.GET("", h.ListDevices)
		devices.GET("/:id", h.GetDevice)
		devices.DELETE("/:id", h.DeleteDevice)
		devices.GET("/:id/state", h.GetDeviceState)
	}
}

type createDeviceRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" binding:"required"`
	IP       string `json:"ip" binding:"required,ip"`
	Model    string `json:"model"`
	Location string `json:"location"`
}

func (h *Handler) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	dev := &model.Device{
		ID:       req.ID,
		Name:     req.Name,
		IP:       req.IP,
		Model:    req.Model,
		Location: req.Location,
	}
	id, err := h.registry.Register(dev)
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.registry.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.registry.List()))
}

func (h *Handler) GetDevice(c *gin.Context) {
	dev, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(dev))
}

func (h *Handler) DeleteDevice(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Deregister(id); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	if h.poller != nil {
		h.poller.Untrack(id)
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

func (h *Handler) GetDeviceState(c *gin.Context) {
	dev, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"id":         dev.ID,
		"state":      dev.State,
		"last_sync":  dev.LastSync,
		"user_count": dev.UserCount,
	}))
}
