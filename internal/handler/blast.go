package handler

import (
	"errors"
	"strconv"
	"strings"

	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/worker"

	"github.com/labstack/echo/v4"
)

type StartBlastRequest struct {
	ID string `json:"id,omitempty"`
}

type BlastDeps struct {
	Campaign *service.Campaign
	Jobs     *worker.JobManager
	// Store is nil when no database is configured.
	Store *model.BlastLogStore
}

// POST /api/blasts
// Snapshots the current campaign and runs it in the background.
func StartBlast(d BlastDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req StartBlastRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}

		status, err := d.Jobs.Start(d.Campaign.Job(strings.TrimSpace(req.ID)))
		if err != nil {
			return ServiceError(c, "Failed to start blast", err)
		}
		return SuccessResponse(c, 202, "Blast started", status)
	}
}

// GET /api/blasts?limit=50
func ListBlasts(d BlastDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		data := map[string]interface{}{
			"jobs": d.Jobs.List(),
		}

		if d.Store != nil {
			limit, _ := strconv.Atoi(c.QueryParam("limit"))
			runs, err := d.Store.ListRuns(c.Request().Context(), limit)
			if err != nil {
				return ErrorResponse(c, 500, "Failed to load blast history", "DATABASE_ERROR", err.Error())
			}
			data["history"] = runs
		}

		return SuccessResponse(c, 200, "Blasts retrieved", data)
	}
}

// GET /api/blasts/:id
// Blasts of this process come from memory; older ones from the run history.
func GetBlast(d BlastDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		status, err := d.Jobs.Get(id)
		if err == nil {
			return SuccessResponse(c, 200, "Blast retrieved", status)
		}
		if !errors.Is(err, model.ErrBlastNotFound) || d.Store == nil {
			return ServiceError(c, "Blast not found", err)
		}

		ctx := c.Request().Context()
		run, err := d.Store.GetRun(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrBlastNotFound) {
				return ServiceError(c, "Blast not found", err)
			}
			return ErrorResponse(c, 500, "Failed to load blast", "DATABASE_ERROR", err.Error())
		}
		sends, err := d.Store.ListSends(ctx, id)
		if err != nil {
			return ErrorResponse(c, 500, "Failed to load blast sends", "DATABASE_ERROR", err.Error())
		}
		return SuccessResponse(c, 200, "Blast retrieved", map[string]interface{}{
			"run":   run,
			"sends": sends,
		})
	}
}

// POST /api/blasts/:id/cancel
func CancelBlast(jobs *worker.JobManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if err := jobs.Cancel(id); err != nil {
			return ServiceError(c, "Failed to cancel blast", err)
		}
		status, _ := jobs.Get(id)
		return SuccessResponse(c, 200, "Blast cancellation requested", status)
	}
}
