package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, logger *logger.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownCamera), errors.Is(err, model.ErrFaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCameraDisabled), errors.Is(err, model.ErrDuplicateFace):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoFaceFound):
		return http.StatusUnprocessableEntity
	}
	var cerr *model.ConfigurationError
	if errors.As(err, &cerr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseTime accepts RFC 3339 timestamps and HTML date inputs ("2006-01-02", local time).
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

func cameraID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	return id, err == nil && id > 0
}
