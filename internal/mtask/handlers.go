package mtask

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kyri56xcaesar/taskhub/internal/access"
	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/respond"
)

func identity(c *gin.Context) (access.Identity, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
	}

	return id, ok
}

func (h *Handler) handleCreate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.Create(c.Request.Context(), id, req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusCreated, "Task created successfully", task)
}

func (h *Handler) handleDuplicate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	task, err := h.mgr.Duplicate(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task duplicated successfully.", task)
}

func (h *Handler) handleActivity(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.PostActivity(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Activity added successfully", task)
}

func (h *Handler) handleDashboard(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	// bad numbers fall back to the defaults
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	dash, err := h.mgr.Dashboard(c.Request.Context(), id, DashboardQuery{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Dashboard statistics fetched successfully.", dash)
}

func (h *Handler) handleList(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	q := ListQuery{
		Stage:  c.Query("stage"),
		Search: c.Query("search"),
	}
	if raw, set := c.GetQuery("isTrashed"); set {
		trashed, err := strconv.ParseBool(raw)
		if err != nil {
			respond.BadRequest(c, "isTrashed must be true or false")
			return
		}
		q.Trashed = &trashed
	}

	tasks, err := h.mgr.List(c.Request.Context(), id, q)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Tasks fetched successfully", tasks)
}

func (h *Handler) handleGet(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	task, err := h.mgr.Get(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task fetched successfully", task)
}

func (h *Handler) handleAddSubTask(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req SubTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.AddSubTask(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "SubTask added successfully.", task)
}

func (h *Handler) handleSubTaskDone(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req SubTaskDoneRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.SetSubTaskDone(c.Request.Context(), id, c.Param("id"), c.Param("subId"), req.IsCompleted)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "SubTask updated successfully.", task)
}

func (h *Handler) handleUpdate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.Update(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task updated successfully", task)
}

func (h *Handler) handleChangeStage(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req StageRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.ChangeStage(c.Request.Context(), id, c.Param("id"), req.Stage)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task stage changed successfully.", task)
}

func (h *Handler) handleTeam(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req TeamRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	task, err := h.mgr.UpdateTeam(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	msg := "Team member added successfully"
	if req.Action == TeamRemove {
		msg = "Team member removed successfully"
	}
	respond.OK(c, http.StatusOK, msg, task)
}

func (h *Handler) handleTrash(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	if err := h.mgr.Trash(c.Request.Context(), id, c.Param("id")); err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Task trashed successfully.", nil)
}

func (h *Handler) handleDeleteRestore(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	msg, err := h.mgr.DeleteRestore(c.Request.Context(), id, c.Param("id"), c.Query("actionType"))
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, msg, nil)
}

func (h *Handler) handleTaskStats(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	stats, err := h.mgr.TaskStats(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", stats)
}

func (h *Handler) handleUserActivity(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	items, err := h.mgr.UserActivity(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", items)
}
