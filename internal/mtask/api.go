package mtask

import (
	"github.com/gin-gonic/gin"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// Routes mounts the task endpoints on an authenticated group.
func (h *Handler) Routes(g *gin.RouterGroup) {
	g.POST("/create", h.handleCreate)
	g.POST("/duplicate/:id", h.handleDuplicate)
	g.POST("/activity/:id", h.handleActivity)

	g.GET("/dashboard", h.handleDashboard)
	g.GET("/", h.handleList)
	g.GET("/:id", h.handleGet)

	g.PUT("/create-subtask/:id", h.handleAddSubTask)
	g.PUT("/subtask/:id/:subId", h.handleSubTaskDone)
	g.PUT("/update/:id", h.handleUpdate)
	g.PUT("/change-stage/:id", h.handleChangeStage)
	g.PUT("/:id/team", h.handleTeam)
	g.PUT("/:id/trash", h.handleTrash)

	g.DELETE("/delete-restore/:id", h.handleDeleteRestore)
	g.DELETE("/delete-restore", h.handleDeleteRestore)
}

// AnalyticsRoutes mounts the admin reporting endpoints.
func (h *Handler) AnalyticsRoutes(g *gin.RouterGroup) {
	g.GET("/task-stats", h.handleTaskStats)
	g.GET("/user-activity", h.handleUserActivity)
}
