package handler

import (
	"wa-blaster/config"
	customMiddleware "wa-blaster/internal/middleware"
	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/worker"
	"wa-blaster/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Deps struct {
	Config    *config.Config
	Campaign  *service.Campaign
	Pool      *service.SessionPool
	Jobs      *worker.JobManager
	Store     *model.BlastLogStore
	Hub       *ws.Hub
	NewDriver DriverFactory
	Log       zerolog.Logger
}

// RegisterRoutes mounts the public endpoints and the /api control plane on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/", ServiceInfo(d.Config))
	e.GET("/ping", Ping)

	auth := customMiddleware.APIKeyAuth(d.Config.APIKey)
	if d.Hub != nil {
		e.GET("/ws", WebSocketHandler(d.Hub, d.Log), auth)
	}

	api := e.Group("/api", auth)

	//----------------------------
	// CONTACTS
	//----------------------------
	api.POST("/contacts", UploadContacts(d.Campaign))
	api.GET("/contacts/numbers", GetContactNumbers(d.Campaign))
	api.GET("/contacts/export", ExportContacts(d.Campaign))

	//----------------------------
	// MESSAGES AND ATTACHMENTS
	//----------------------------
	api.POST("/messages", AddMessage(d.Campaign))
	api.GET("/messages", GetMessages(d.Campaign))
	api.POST("/attachments", UploadAttachments(d.Campaign, d.Config.UploadDir))
	api.GET("/attachments", GetAttachments(d.Campaign))
	api.DELETE("/campaign", ResetCampaign(d.Campaign))

	//----------------------------
	// SESSIONS
	//----------------------------
	api.POST("/sessions/setup", SetupSessions(SessionDeps{
		Pool:      d.Pool,
		Jobs:      d.Jobs,
		NewDriver: d.NewDriver,
		UserPath:  d.Config.UserPath,
		Platform:  d.Config.Platform,
	}))
	api.GET("/sessions", GetSessions(d.Pool))
	api.DELETE("/sessions", CloseSessions(d.Pool, d.Jobs))

	//----------------------------
	// BLASTS
	//----------------------------
	blasts := BlastDeps{Campaign: d.Campaign, Jobs: d.Jobs, Store: d.Store}
	api.POST("/blasts", StartBlast(blasts))
	api.GET("/blasts", ListBlasts(blasts))
	api.GET("/blasts/:id", GetBlast(blasts))
	api.POST("/blasts/:id/cancel", CancelBlast(d.Jobs))
}
