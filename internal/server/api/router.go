package api

import (
	"scriptshare/internal/server/auth"
	"scriptshare/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, authmw *AuthMiddleware, uploadsRoot string, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))
	e.Use(RequestLogger())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Scripts
	e.GET("/api/scripts", handler.HandleListScripts)
	e.POST("/api/scripts", handler.HandleCreateScript,
		authmw.Require(auth.ActionUpload), uploadLimiter.Middleware())
	e.PUT("/api/scripts/:id", handler.HandleUpdateScript, authmw.RequireSession())
	e.DELETE("/api/scripts/:id", handler.HandleDeleteScript, authmw.Require(auth.ActionDelete))
	e.DELETE("/api/scripts/series/:baseId", handler.HandleDeleteSeries, authmw.Require(auth.ActionDelete))
	e.GET("/api/scripts/:id/download", handler.HandleDownloadScript)

	// Users
	e.GET("/api/users", handler.HandleListUsers, authmw.Require(auth.ActionManageUsers))
	e.PUT("/api/users/:id", handler.HandleUpsertUser, authmw.Require(auth.ActionManageUsers))
	e.DELETE("/api/users/:id", handler.HandleDeleteUser, authmw.Require(auth.ActionManageUsers))
	e.POST("/api/login", handler.HandleLogin)
	e.POST("/api/register", handler.HandleRegister)

	// System configuration
	e.GET("/api/config", handler.HandleGetConfig)
	e.PUT("/api/config", handler.HandleReplaceConfig, authmw.Require(auth.ActionManageTags))
	e.POST("/api/config/tags", handler.HandleAddTag, authmw.Require(auth.ActionManageTags))
	e.DELETE("/api/config/tags/:tag", handler.HandleRemoveTag, authmw.Require(auth.ActionManageTags))

	// Uploaded assets
	e.Static("/uploads", uploadsRoot)

	return e
}
