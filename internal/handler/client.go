package handler

import (
	"net/http"
	"strconv"

	"facewatch/internal/logger"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHub registers viewer connections for frame and alert broadcasts.
type ViewerHub interface {
	Register(conn *websocket.Conn, cameraID int)
	Unregister(conn *websocket.Conn)
}

// ViewWebsocketHandler handles viewer connections over WebSocket. An optional
// "camera" query parameter limits frames to one camera.
func ViewWebsocketHandler(hub ViewerHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID, _ := strconv.Atoi(r.URL.Query().Get("camera"))

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection, cameraID)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
