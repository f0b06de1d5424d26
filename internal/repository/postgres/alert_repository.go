package postgres

import (
	"context"
	"fmt"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertRepository implements repository.AlertRepository on PostgreSQL.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*AlertRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	r := &AlertRepository{pool: pool}
	if err := r.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *AlertRepository) initSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS face_logs (
			id BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			camera_id INTEGER NOT NULL,
			camera_name TEXT NOT NULL,
			face_name TEXT NOT NULL,
			age INTEGER,
			gender TEXT,
			confidence DOUBLE PRECISION NOT NULL,
			screenshot_path TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_face_logs_timestamp ON face_logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_face_logs_face ON face_logs(face_name);
	`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *AlertRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *AlertRepository) Append(ctx context.Context, event *model.AlertEvent) (int64, error) {
	var gender *string
	if event.Gender != nil {
		g := string(*event.Gender)
		gender = &g
	}
	var screenshot *string
	if event.ScreenshotPath != "" {
		screenshot = &event.ScreenshotPath
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO face_logs (event_id, timestamp, camera_id, camera_name, face_name, age, gender, confidence, screenshot_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, event.ID, event.Timestamp, event.CameraID, event.CameraName, event.FaceName, event.Age, gender, event.Confidence, screenshot).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return id, nil
}

// buildWhere renders filter conditions with numbered placeholders.
func buildWhere(query string, filter *dto.AlertFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}
	if filter.CameraID > 0 {
		args = append(args, filter.CameraID)
		query += fmt.Sprintf(" AND camera_id = $%d", len(args))
	}
	if filter.FaceName != "" {
		args = append(args, filter.FaceName)
		query += fmt.Sprintf(" AND face_name = $%d", len(args))
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}
	return query, args
}

func (r *AlertRepository) Query(ctx context.Context, filter *dto.AlertFilters) ([]model.AlertEvent, error) {
	query, args := buildWhere(`
		SELECT id, event_id, timestamp, camera_id, camera_name, face_name, age, gender, confidence, screenshot_path
		FROM face_logs
		WHERE 1=1
	`, filter)
	query += " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var (
			e          model.AlertEvent
			ts         time.Time
			age        *int32
			gender     *string
			screenshot *string
		)
		if err := rows.Scan(&e.RecordID, &e.ID, &ts, &e.CameraID, &e.CameraName, &e.FaceName, &age, &gender, &e.Confidence, &screenshot); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		e.Timestamp = ts
		if age != nil {
			a := int(*age)
			e.Age = &a
		}
		if gender != nil {
			g := model.Gender(*gender)
			e.Gender = &g
		}
		if screenshot != nil {
			e.ScreenshotPath = *screenshot
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *AlertRepository) Count(ctx context.Context, filter *dto.AlertFilters) (int, error) {
	query, args := buildWhere(`SELECT COUNT(*) FROM face_logs WHERE 1=1`, filter)
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func (r *AlertRepository) Stats(ctx context.Context) (*dto.AlertStats, error) {
	stats := &dto.AlertStats{
		PerCamera: make(map[string]int),
		PerFace:   make(map[string]int),
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM face_logs`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := r.groupCounts(ctx, `SELECT camera_name, COUNT(*) FROM face_logs GROUP BY camera_name`, stats.PerCamera); err != nil {
		return nil, err
	}
	if err := r.groupCounts(ctx, `SELECT face_name, COUNT(*) FROM face_logs GROUP BY face_name`, stats.PerFace); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *AlertRepository) groupCounts(ctx context.Context, query string, into map[string]int) error {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group alerts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan alert group: %w", err)
		}
		into[key] = int(count)
	}
	return rows.Err()
}

func (r *AlertRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM face_logs`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}
