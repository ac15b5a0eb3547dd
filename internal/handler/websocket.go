package handler

import (
	"net/http"

	"wa-blaster/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams blast and session events on /ws.
func WebSocketHandler(hub *ws.Hub, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade failed")
			return err
		}

		client := ws.NewClient(hub, conn)
		if !hub.Register(client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return nil
		}

		go client.WritePump()
		go client.ReadPump()

		return nil
	}
}
