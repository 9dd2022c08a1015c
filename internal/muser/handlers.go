package muser

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/respond"
)

type Handler struct {
	svc          *Service
	cookieSecure bool
}

func NewHandler(svc *Service, cookieSecure bool) *Handler {
	return &Handler{svc: svc, cookieSecure: cookieSecure}
}

// PublicRoutes need no session.
func (h *Handler) PublicRoutes(g *gin.RouterGroup) {
	g.POST("/register", h.registerHandler)
	g.POST("/login", h.loginHandler)
	g.POST("/login/keycloak", h.externalLoginHandler)
	g.POST("/logout", h.logoutHandler)
}

func (h *Handler) Routes(g *gin.RouterGroup) {
	g.GET("/get-team", h.teamListHandler)
	g.GET("/get-status", h.statusHandler)
	g.GET("/profile", h.profileHandler)
	g.PUT("/profile", h.updateProfileHandler)
	g.PUT("/change-password", h.changePasswordHandler)
}

// AdminRoutes expects a group already guarded by RequireAdmin.
func (h *Handler) AdminRoutes(g *gin.RouterGroup) {
	g.PUT("/:id", h.adminUpdateHandler)
	g.DELETE("/:id", h.adminDeleteHandler)
}

func (h *Handler) registerHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	u, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusCreated, "User created successfully", u)
}

func (h *Handler) loginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	auth.SetTokenCookie(c, sess.Token, time.Until(sess.ExpiresAt), h.cookieSecure)
	respond.OK(c, http.StatusOK, "Login successful", sess)
}

func (h *Handler) externalLoginHandler(c *gin.Context) {
	var req ExternalLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	sess, err := h.svc.ExternalLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	auth.SetTokenCookie(c, sess.Token, time.Until(sess.ExpiresAt), h.cookieSecure)
	respond.OK(c, http.StatusOK, "Login successful", sess)
}

func (h *Handler) logoutHandler(c *gin.Context) {
	auth.ClearTokenCookie(c, h.cookieSecure)
	respond.OK(c, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) teamListHandler(c *gin.Context) {
	team, err := h.svc.TeamList(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", team)
}

func (h *Handler) statusHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	status, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", status)
}

func (h *Handler) profileHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	u, err := h.svc.Profile(c.Request.Context(), id)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", u)
}

func (h *Handler) updateProfileHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "User profile updated successfully", u)
}

func (h *Handler) changePasswordHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), id, req); err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) adminUpdateHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid input")
		return
	}

	u, err := h.svc.AdminUpdate(c.Request.Context(), id, c.Param("id"), req)
	if err != nil {
		respond.Fail(c, err)
		return
	}

	msg := "User disabled successfully"
	if u.IsActive {
		msg = "User activated successfully"
	}
	respond.OK(c, http.StatusOK, msg, u)
}

func (h *Handler) adminDeleteHandler(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "not authorized")
		return
	}

	if err := h.svc.AdminDelete(c.Request.Context(), id, c.Param("id")); err != nil {
		respond.Fail(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "User profile deleted successfully", nil)
}
