package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"
)

// Service identity reported by HealthInfo.
const (
	ServiceName    = "gym-backend"
	ServiceVersion = "0.1.0"
)

// Health is a plain liveness probe for load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HealthInfo reports the service name and version.
func HealthInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}

const websocketDocs = `WebSocket endpoint: /ws/echo

Connect with any WebSocket client, e.g.

    websocat ws://localhost:PORT/ws/echo

Every text frame sent is answered with "echo: <text>".
The connection stays open until the client closes it.
`

// WebSocketDocs describes the echo socket.
func WebSocketDocs(c echo.Context) error {
	return c.String(http.StatusOK, websocketDocs)
}

// EchoSocket answers each text frame with "echo: <text>" until the
// client disconnects.
func EchoSocket(c echo.Context) error {
	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				if !errors.Is(err, io.EOF) {
					c.Logger().Debugf("ws echo: receive: %v", err)
				}
				return
			}
			if err := websocket.Message.Send(ws, "echo: "+msg); err != nil {
				c.Logger().Debugf("ws echo: send: %v", err)
				return
			}
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}
