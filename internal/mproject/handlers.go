package mproject

import (
	"net/http"

	"github.com/gin-gonic/gin"

	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/respond"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// Routes mounts the project endpoints on an authenticated group.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("/all", h.listHandler)
	g.POST("/create", h.createHandler)
	g.PUT("/:id", h.updateHandler)
	g.DELETE("/:id", h.deleteHandler)

	g.PUT("/:id/tasks/:taskId", h.attachHandler)
	g.DELETE("/:id/tasks/:taskId", h.detachHandler)
}

func (h *Handler) listHandler(c *gin.Context) {
	items, err := h.mgr.ListAll(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", items)
}

func (h *Handler) createHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	p, err := h.mgr.Create(c.Request.Context(), id, req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusCreated, "Project created successfully", p)
}

func (h *Handler) updateHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	p, err := h.mgr.Update(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Project updated successfully", p)
}

func (h *Handler) deleteHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	if err := h.mgr.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Project deleted successfully", nil)
}

func (h *Handler) attachHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	p, err := h.mgr.AttachTask(c.Request.Context(), id, c.Param("id"), c.Param("taskId"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task linked to project", p)
}

func (h *Handler) detachHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	p, err := h.mgr.DetachTask(c.Request.Context(), id, c.Param("id"), c.Param("taskId"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task unlinked from project", p)
}
