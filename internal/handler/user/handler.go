package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/attend-api/internal/handler"
	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/store"
)

type Handler struct {
	users *store.UserStore
}

func NewHandler(users *store.UserStore) *Handler {
	return &Handler{users: users}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}

type userRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"omitempty,email"`
	EmployeeID      string `json:"employee_id" binding:"required"`
	Department      string `json:"department"`
	Position        string `json:"position"`
	Status          string `json:"status" binding:"omitempty,oneof=active inactive"`
	ExpectedArrival string `json:"expected_arrival"`
}

func (r *userRequest) toModel() *model.User {
	return &model.User{
		Name:            r.Name,
		Email:           r.Email,
		EmployeeID:      r.EmployeeID,
		Department:      r.Department,
		Position:        r.Position,
		Status:          model.UserStatus(r.Status),
		ExpectedArrival: r.ExpectedArrival,
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	u := req.toModel()
	id, err := h.users.Create(u)
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.users.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.users.List()))
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Param("id"))
	if err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	u := req.toModel()
	u.ID = c.Param("id")
	if err := h.users.Update(u); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.users.Get(u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.users.Delete(id); err != nil {
		c.JSON(handler.StatusFor(err), handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}
