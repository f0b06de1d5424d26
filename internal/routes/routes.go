package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"facewatch/internal/handler"
	"facewatch/internal/logger"
	"facewatch/internal/middleware"
	"facewatch/internal/repository"
)

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Cameras       handler.CameraController
	Frames        handler.FrameViewer
	History       handler.AlertHistory
	Alerts        repository.AlertRepository
	Switches      handler.AlertSwitches
	Threshold     handler.ThresholdSetter
	Interval      handler.IntervalSetter
	Faces         handler.FaceManager
	Hub           handler.ViewerHub
	Logger        *logger.Logger
	Password      string
	CameraConfig  string
	ScreenshotDir string
	LogDir        string
	StaticDir     string
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static files, API endpoints, log and auth endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(d Dependencies) http.Handler {
	mux := http.NewServeMux()
	log := d.Logger

	staticDir := d.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// Cameras
	mux.HandleFunc("/api/cameras", handler.ListCamerasHandler(d.Cameras, log))
	mux.HandleFunc("/api/cameras/start", handler.StartCameraHandler(d.Cameras, log))
	mux.HandleFunc("/api/cameras/stop", handler.StopCameraHandler(d.Cameras, log))
	mux.HandleFunc("/api/cameras/start-all", handler.StartAllHandler(d.Cameras, log))
	mux.HandleFunc("/api/cameras/stop-all", handler.StopAllHandler(d.Cameras, log))
	mux.HandleFunc("/api/cameras/reload", handler.ReloadCamerasHandler(d.Cameras, d.CameraConfig, log))
	mux.HandleFunc("/api/cameras/frame", handler.LatestFrameHandler(d.Frames, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, log))

	// Alerts
	mux.HandleFunc("/api/alerts", handler.RecentAlertsHandler(d.History, log))
	mux.HandleFunc("/api/alerts/clear", handler.ClearAlertsHandler(d.History, log))
	mux.HandleFunc("/api/alerts/screenshot", handler.ScreenshotHandler(d.ScreenshotDir))
	if d.Alerts != nil {
		mux.HandleFunc("/api/alerts/log", handler.AlertLogHandler(d.Alerts, log))
		mux.HandleFunc("/api/alerts/stats", handler.AlertStatsHandler(d.Alerts, log))
		mux.HandleFunc("/api/alerts/export", handler.AlertExportHandler(d.Alerts, log))
	}

	// Settings and gallery
	mux.HandleFunc("/api/settings", handler.SettingsHandler(d.Switches, d.Threshold, d.Interval, log))
	mux.HandleFunc("/api/faces", handler.FacesHandler(d.Faces, log))

	// Log endpoints
	for route, file := range handler.LogFiles {
		mux.HandleFunc("/logs/"+route, handler.ShowLogsHandler(d.LogDir, file))
		mux.HandleFunc("/logs/"+route+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(d.Password, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler(staticDir))

	return middleware.AuthMiddleware(mux)
}
