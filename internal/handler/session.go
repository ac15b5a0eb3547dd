package handler

import (
	"strings"

	"wa-blaster/internal/automation"
	"wa-blaster/internal/service"
	"wa-blaster/internal/worker"

	"github.com/labstack/echo/v4"
)

// DriverFactory builds a browser driver for a setup request that overrides headless mode.
type DriverFactory func(headless bool) automation.Driver

type SetupSessionsRequest struct {
	Platform string `json:"platform"`
	Headless *bool  `json:"headless,omitempty"`
}

type SessionDeps struct {
	Pool      *service.SessionPool
	Jobs      *worker.JobManager
	NewDriver DriverFactory
	UserPath  string
	Platform  string
}

// POST /api/sessions/setup
// Replaces the pool with one session per profile under <user path>/<platform>.
func SetupSessions(d SessionDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req SetupSessionsRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		platform := strings.TrimSpace(req.Platform)
		if platform == "" {
			platform = d.Platform
		}
		if strings.ContainsAny(platform, `/\`) || platform == ".." {
			return ErrorResponse(c, 400, "Invalid platform", "INVALID_PLATFORM", "Platform must be a single directory name")
		}

		if d.Jobs.Running() {
			return ErrorResponse(c, 409, "A blast is running", "BLAST_RUNNING", "Cancel the blast before replacing sessions")
		}

		ctx := c.Request().Context()
		var err error
		if req.Headless != nil && d.NewDriver != nil {
			err = d.Pool.SetupWith(ctx, d.NewDriver(*req.Headless), d.UserPath, platform)
		} else {
			err = d.Pool.Setup(ctx, d.UserPath, platform)
		}

		accounts := d.Pool.Accounts()
		if err != nil {
			return ServiceError(c, "Session setup failed", err)
		}
		return SuccessResponse(c, 200, "Sessions ready", map[string]interface{}{
			"platform": platform,
			"count":    len(accounts),
			"accounts": accounts,
		})
	}
}

// GET /api/sessions
func GetSessions(pool *service.SessionPool) echo.HandlerFunc {
	return func(c echo.Context) error {
		accounts := pool.Accounts()
		return SuccessResponse(c, 200, "Sessions retrieved", map[string]interface{}{
			"count":    len(accounts),
			"enabled":  pool.Enabled(),
			"accounts": accounts,
		})
	}
}

// DELETE /api/sessions
func CloseSessions(pool *service.SessionPool, jobs *worker.JobManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		if jobs.Running() {
			return ErrorResponse(c, 409, "A blast is running", "BLAST_RUNNING", "Cancel the blast before closing sessions")
		}
		if err := pool.Close(); err != nil {
			return ErrorResponse(c, 500, "Some sessions failed to close", "SESSION_CLOSE_FAILED", err.Error())
		}
		return SuccessResponse(c, 200, "Sessions closed", nil)
	}
}
