package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"scriptshare/internal/server/auth"
	"scriptshare/internal/server/database"
	"scriptshare/internal/server/service"
)

const userContextKey = "auth.user"

// AuthMiddleware resolves session tokens to user records and enforces the
// permission policy at the server boundary. The client-side permission bag
// is advisory for rendering only; every mutating call passes through here.
type AuthMiddleware struct {
	issuer *auth.Issuer
	users  *service.UserService
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(issuer *auth.Issuer, users *service.UserService) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer, users: users}
}

// RequireSession rejects requests without a valid Bearer token and stashes
// the resolved user in the request context.
func (a *AuthMiddleware) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.resolve(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "valid session required"})
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// Require rejects requests whose caller may not perform the action.
func (a *AuthMiddleware) Require(action auth.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.resolve(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "valid session required"})
			}
			if !auth.Allowed(user, action) {
				slog.Warn("permission denied",
					"user_id", user.ID, "action", string(action), "path", c.Request().URL.Path)
				return c.JSON(http.StatusForbidden, echo.Map{"error": "permission denied"})
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func (a *AuthMiddleware) resolve(c echo.Context) (*database.User, error) {
	header := c.Request().Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return nil, auth.ErrInvalidToken
	}

	userID, err := a.issuer.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return a.users.GetByID(c.Request().Context(), userID)
}

// currentUser returns the authenticated user stashed by the middleware,
// or nil on unguarded routes.
func currentUser(c echo.Context) *database.User {
	u, _ := c.Get(userContextKey).(*database.User)
	return u
}

// visitor tracks the rate limit state for a single IP.
type visitor struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64 // tokens per second
	burst    int     // max tokens
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec) and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rps,
		burst:    burst,
	}

	// Clean up stale entries every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			rl.cleanup()
		}
	}()

	return rl
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip)
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, try again later",
				})
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	now := time.Now()

	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    float64(rl.burst) - 1,
			lastCheck: now,
		}
		return true
	}

	// Add tokens based on elapsed time
	elapsed := now.Sub(v.lastCheck).Seconds()
	v.tokens += elapsed * rl.rate
	if v.tokens > float64(rl.burst) {
		v.tokens = float64(rl.burst)
	}
	v.lastCheck = now

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, v := range rl.visitors {
		if v.lastCheck.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
