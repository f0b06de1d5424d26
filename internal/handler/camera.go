package handler

import (
	"net/http"

	"facewatch/internal/capture"
	"facewatch/internal/config"
	"facewatch/internal/logger"
)

// CameraController is the capture supervisor as seen by the HTTP layer.
type CameraController interface {
	Statuses() []capture.Status
	StartCamera(id int) error
	StopCamera(id int) error
	StartAll() int
	StopAll()
	SetCameras(cameras []config.Camera) error
}

// FrameViewer returns the last frame shown for a camera.
type FrameViewer interface {
	LatestDisplayed(cameraID int) ([]byte, bool)
}

// ListCamerasHandler returns the status of every configured camera.
func ListCamerasHandler(cameras CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, cameras.Statuses())
	}
}

// StartCameraHandler handles POST /api/cameras/start?id=N.
func StartCameraHandler(cameras CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		id, ok := cameraID(r)
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "camera id required")
			return
		}
		if err := cameras.StartCamera(id); err != nil {
			logger.Warning("Start camera %d refused: %v", id, err)
			writeError(w, logger, statusFor(err), err.Error())
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"status": "started", "id": id})
	}
}

// StopCameraHandler handles POST /api/cameras/stop?id=N.
func StopCameraHandler(cameras CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		id, ok := cameraID(r)
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "camera id required")
			return
		}
		if err := cameras.StopCamera(id); err != nil {
			writeError(w, logger, statusFor(err), err.Error())
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"status": "stopped", "id": id})
	}
}

func StartAllHandler(cameras CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		started := cameras.StartAll()
		writeJSON(w, logger, http.StatusOK, map[string]int{"started": started})
	}
}

func StopAllHandler(cameras CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		cameras.StopAll()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReloadCamerasHandler re-reads the camera file and replaces the camera set.
// Cameras whose configuration changed are stopped and must be started again.
func ReloadCamerasHandler(cameras CameraController, path string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		list, err := config.LoadCameras(path)
		if err != nil {
			logger.Error("Camera reload failed: %v", err)
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}
		if err := cameras.SetCameras(list); err != nil {
			writeError(w, logger, statusFor(err), err.Error())
			return
		}
		writeJSON(w, logger, http.StatusOK, cameras.Statuses())
	}
}

// LatestFrameHandler serves the last displayed JPEG of a camera.
func LatestFrameHandler(frames FrameViewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "camera id required")
			return
		}
		frame, ok := frames.LatestDisplayed(id)
		if !ok {
			http.Error(w, "No frame yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(frame)
	}
}
