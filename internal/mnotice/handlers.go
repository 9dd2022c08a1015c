package mnotice

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the notification endpoints on an authenticated group.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("/notifications", h.handleList)
	g.PUT("/read-noti", h.handleMarkRead)
	g.DELETE("/notifications/:id", h.handleDelete)
}

func (h *Handler) handleList(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	items, err := h.svc.ListFor(c.Request.Context(), id.UserID, unread)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", items)
}

type markReadRequest struct {
	IsReadType string `json:"isReadType" form:"isReadType" binding:"omitempty,oneof=all one"`
	ID         string `json:"id" form:"id"`
}

func (h *Handler) handleMarkRead(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req markReadRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	n, err := h.svc.MarkRead(c.Request.Context(), id.UserID, req.IsReadType, req.ID)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Done", gin.H{"updated": n})
}

func (h *Handler) handleDelete(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	n, err := h.svc.Delete(c.Request.Context(), id.UserID, c.Param("id"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Notification deleted successfully", gin.H{"deleted": n})
}
