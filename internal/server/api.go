// Package server assembles the HTTP API and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/config"
	"kyri56xcaesar/taskhub/internal/mnotice"
	"kyri56xcaesar/taskhub/internal/mproject"
	"kyri56xcaesar/taskhub/internal/mtask"
	"kyri56xcaesar/taskhub/internal/muser"
	"kyri56xcaesar/taskhub/internal/respond"
	"kyri56xcaesar/taskhub/internal/store"
)

// New builds the engine. kc is nil when Keycloak is disabled.
func New(cfg config.Config, st store.Store, tokens *auth.Tokens, kc *auth.Service) *gin.Engine {
	setGinMode(cfg.ApiGinMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(cfg.TrustRequestID), RequestLogger())
	setCors(engine, cfg)

	var (
		kcAuth *auth.KeycloakAuth
		ext    muser.ExternalAuth
	)
	if kc != nil {
		kcAuth = kc.KCAuth
		ext = kc
	}
	authn := auth.NewAuthenticator(tokens, kcAuth, st)

	users := muser.NewHandler(muser.NewService(st, tokens, ext), cfg.CookieSecure)
	notices := mnotice.NewHandler(mnotice.NewService(st))
	tasks := mtask.NewHandler(mtask.NewManager(st, cfg.DashboardPageSize))
	projects := mproject.NewHandler(mproject.NewManager(st))

	engine.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			slog.ErrorContext(ctx, "health check failed", "error", err)
			respond.Abort(c, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		respond.OK(c, http.StatusOK, "alive", nil)
	})

	api := engine.Group("/api")
	{
		user := api.Group("/user")
		users.PublicRoutes(user)

		private := user.Group("", authn.RequireAuth())
		users.Routes(private)
		notices.Routes(private)
		users.AdminRoutes(private.Group("/admin", auth.RequireAdmin()))
	}
	tasks.Routes(api.Group("/task", authn.RequireAuth()))
	projects.Routes(api.Group("/project", authn.RequireAuth()))
	tasks.AnalyticsRoutes(api.Group("/analytics", authn.RequireAuth(), auth.RequireAdmin()))

	return engine
}

// InitAndServe runs the API until SIGINT or SIGTERM, then drains in-flight
// requests for up to five seconds.
func InitAndServe(cfg config.Config, st store.Store, tokens *auth.Tokens, kc *auth.Service) error {
	engine := New(cfg, st, tokens, kc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: time.Second * 5,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", server.Addr, "store", cfg.StoreDriver, "keycloak", kc != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	stop()
	slog.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exiting")

	return nil
}

func setCors(engine *gin.Engine, cfg config.Config) {
	corsconfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsconfig.AllowAllOrigins = true
	} else {
		corsconfig.AllowOrigins = cfg.AllowedOrigins
		corsconfig.AllowCredentials = true
	}
	corsconfig.AllowMethods = cfg.AllowedMethods
	corsconfig.AllowHeaders = cfg.AllowedHeaders
	corsconfig.ExposeHeaders = []string{requestIDHeader}
	engine.Use(cors.New(corsconfig))
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
