package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository"
	"facewatch/internal/service/report"
)

const defaultAlertLimit = 50

// AlertHistory is the in-memory list of recent alerts.
type AlertHistory interface {
	Recent(limit int) []model.AlertEvent
	Clear()
}

type alertLogResponse struct {
	Alerts []model.AlertEvent `json:"alerts"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// RecentAlertsHandler returns the newest alerts, newest first.
func RecentAlertsHandler(history AlertHistory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultAlertLimit)
		alerts := history.Recent(limit)
		if alerts == nil {
			alerts = []model.AlertEvent{}
		}
		writeJSON(w, logger, http.StatusOK, alerts)
	}
}

// ClearAlertsHandler empties the in-memory history. The alert log is kept.
func ClearAlertsHandler(history AlertHistory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		history.Clear()
		logger.Info("Alert history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// alertFilters reads camera, face, from, to, limit and offset query parameters.
func alertFilters(r *http.Request) *dto.AlertFilters {
	q := r.URL.Query()
	camera, _ := strconv.Atoi(q.Get("camera"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	f := &dto.AlertFilters{
		CameraID: camera,
		FaceName: q.Get("face"),
		Start:    parseTime(q.Get("from")),
		End:      parseTime(q.Get("to")),
		Limit:    atoiDefault(q.Get("limit"), defaultAlertLimit),
		Offset:   offset,
	}
	// a bare date as upper bound includes that whole day
	if to := q.Get("to"); len(to) == len("2006-01-02") && !f.End.IsZero() {
		f.End = f.End.Add(24*time.Hour - time.Nanosecond)
	}
	return f
}

// AlertLogHandler queries the persistent alert log.
func AlertLogHandler(repo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := alertFilters(r)

		alerts, err := repo.Query(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying alert log: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		total, err := repo.Count(r.Context(), filter)
		if err != nil {
			logger.Error("Error counting alerts: %v", err)
			total = len(alerts)
		}
		if alerts == nil {
			alerts = []model.AlertEvent{}
		}
		writeJSON(w, logger, http.StatusOK, alertLogResponse{
			Alerts: alerts,
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		})
	}
}

// AlertStatsHandler returns per-camera and per-name alert counts.
func AlertStatsHandler(repo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.Stats(r.Context())
		if err != nil {
			logger.Error("Error computing alert stats: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// AlertExportHandler streams the filtered alert log as an xlsx workbook.
func AlertExportHandler(repo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := alertFilters(r)
		if r.URL.Query().Get("limit") == "" {
			filter.Limit = 0
		}
		alerts, err := repo.Query(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying alert log: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		stats, err := repo.Stats(r.Context())
		if err != nil {
			logger.Warning("Alert stats unavailable for export: %v", err)
			stats = nil
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="alerts_%s.xlsx"`, time.Now().Format("20060102_150405")))
		if err := report.WriteAlerts(w, alerts, stats); err != nil {
			logger.Error("Error writing alert export: %v", err)
		}
	}
}

// ScreenshotHandler serves one screenshot named by the "name" query parameter.
func ScreenshotHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Query().Get("name"))
		if name == "" || name == "." || name == string(filepath.Separator) {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, name))
	}
}
