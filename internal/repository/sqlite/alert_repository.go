package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/model"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert log repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Append adds an alert event to the log and returns its record id.
func (r *AlertRepository) Append(ctx context.Context, event *model.AlertEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	var gender sql.NullString
	if event.Gender != nil {
		gender = sql.NullString{String: string(*event.Gender), Valid: true}
	}
	var age sql.NullInt64
	if event.Age != nil {
		age = sql.NullInt64{Int64: int64(*event.Age), Valid: true}
	}
	var screenshot sql.NullString
	if event.ScreenshotPath != "" {
		screenshot = sql.NullString{String: event.ScreenshotPath, Valid: true}
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO face_logs (event_id, timestamp, camera_id, camera_name, face_name, age, gender, confidence, screenshot_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, toUnix(event.Timestamp), event.CameraID, event.CameraName, event.FaceName, age, gender, event.Confidence, screenshot)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	return result.LastInsertId()
}

// buildWhere appends filter conditions shared by Query and Count.
func buildWhere(query string, filter *dto.AlertFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.CameraID > 0 {
		query += " AND camera_id = ?"
		args = append(args, filter.CameraID)
	}

	if filter.FaceName != "" {
		query += " AND face_name = ?"
		args = append(args, filter.FaceName)
	}

	if !filter.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, toUnix(filter.Start))
	}

	if !filter.End.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, toUnix(filter.End))
	}

	return query, args
}

// Query retrieves alert events matching the filter, newest first.
func (r *AlertRepository) Query(ctx context.Context, filter *dto.AlertFilters) ([]model.AlertEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := buildWhere(`
		SELECT id, event_id, timestamp, camera_id, camera_name, face_name, age, gender, confidence, screenshot_path
		FROM face_logs
		WHERE 1=1
	`, filter)

	query += " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var (
			e          model.AlertEvent
			ts         float64
			age        sql.NullInt64
			gender     sql.NullString
			screenshot sql.NullString
		)
		if err := rows.Scan(&e.RecordID, &e.ID, &ts, &e.CameraID, &e.CameraName, &e.FaceName, &age, &gender, &e.Confidence, &screenshot); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		e.Timestamp = fromUnix(ts)
		if age.Valid {
			a := int(age.Int64)
			e.Age = &a
		}
		if gender.Valid {
			g := model.Gender(gender.String)
			e.Gender = &g
		}
		e.ScreenshotPath = screenshot.String
		events = append(events, e)
	}

	return events, rows.Err()
}

// Count returns the number of alert events matching the filter.
func (r *AlertRepository) Count(ctx context.Context, filter *dto.AlertFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := buildWhere(`SELECT COUNT(*) FROM face_logs WHERE 1=1`, filter)

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// Stats returns totals per camera and per face.
func (r *AlertRepository) Stats(ctx context.Context) (*dto.AlertStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &dto.AlertStats{
		PerCamera: make(map[string]int),
		PerFace:   make(map[string]int),
	}

	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM face_logs`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	if err := groupCounts(ctx, r.db.Conn(), `SELECT camera_name, COUNT(*) FROM face_logs GROUP BY camera_name`, stats.PerCamera); err != nil {
		return nil, err
	}
	if err := groupCounts(ctx, r.db.Conn(), `SELECT face_name, COUNT(*) FROM face_logs GROUP BY face_name`, stats.PerFace); err != nil {
		return nil, err
	}

	return stats, nil
}

func groupCounts(ctx context.Context, conn *sql.DB, query string, into map[string]int) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan alert group: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// DeleteAll removes every alert record.
func (r *AlertRepository) DeleteAll(ctx context.Context) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM face_logs`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
