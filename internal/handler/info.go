package handler

import (
	"wa-blaster/config"

	"github.com/labstack/echo/v4"
)

// GET /
func ServiceInfo(cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"title":   cfg.ProjectName,
			"authors": config.Authors,
			"version": config.Version,
			"stage":   cfg.Stage,
		})
	}
}

// GET /ping
func Ping(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "Success"})
}
