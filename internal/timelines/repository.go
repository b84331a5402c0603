package timelines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/playback/internal/models"
)

// ErrNotFound is returned when no timeline has the requested id.
var ErrNotFound = errors.New("timeline not found")

const timelineColumns = `id, recording_id, namespace, first_timestamp, last_timestamp, events, paddings,
	audio_path, status, output_path, s3_url, s3_key, error, created_at, updated_at`

// Repository handles timeline persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a timelines repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new timeline. ID is generated when unset.
func (r *Repository) Create(ctx context.Context, tl *models.Timeline) error {
	if tl.ID == uuid.Nil {
		tl.ID = uuid.New()
	}
	if tl.Status == "" {
		tl.Status = models.TimelineStatusPending
	}
	events, err := json.Marshal(tl.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	paddings, err := json.Marshal(nonNil(tl.Paddings))
	if err != nil {
		return fmt.Errorf("marshal paddings: %w", err)
	}

	const q = `INSERT INTO timelines (id, recording_id, namespace, first_timestamp, last_timestamp, events, paddings, audio_path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, tl.ID, tl.RecordingID, string(tl.Namespace), tl.FirstTimestamp, tl.LastTimestamp,
		events, paddings, tl.AudioPath, tl.Status).
		Scan(&tl.CreatedAt, &tl.UpdatedAt)
}

// GetByID returns a timeline by ID or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Timeline, error) {
	q := `SELECT ` + timelineColumns + ` FROM timelines WHERE id = $1`
	tl, err := scanTimeline(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tl, err
}

// ListByRecording returns all timelines of a recording, newest first.
func (r *Repository) ListByRecording(ctx context.Context, recordingID string) ([]models.Timeline, error) {
	q := `SELECT ` + timelineColumns + ` FROM timelines WHERE recording_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Timeline{}
	for rows.Next() {
		tl, err := scanTimeline(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *tl)
	}
	return list, rows.Err()
}

// UpdateStatus sets timeline status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE timelines SET status = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, q, status, id)
}

// UpdateResult records the rendered output and marks the timeline completed.
func (r *Repository) UpdateResult(ctx context.Context, id uuid.UUID, outputPath, s3URL, s3Key string) error {
	const q = `UPDATE timelines SET output_path = $1, s3_url = $2, s3_key = $3, status = $4, error = '', updated_at = NOW()
		WHERE id = $5`
	return r.exec(ctx, q, outputPath, s3URL, s3Key, models.TimelineStatusCompleted, id)
}

// MarkFailed records a render failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE timelines SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	return r.exec(ctx, q, models.TimelineStatusFailed, reason, id)
}

func (r *Repository) exec(ctx context.Context, q string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTimeline(row pgx.Row) (*models.Timeline, error) {
	var (
		tl       models.Timeline
		ns       string
		events   []byte
		paddings []byte
	)
	err := row.Scan(&tl.ID, &tl.RecordingID, &ns, &tl.FirstTimestamp, &tl.LastTimestamp, &events, &paddings,
		&tl.AudioPath, &tl.Status, &tl.OutputPath, &tl.S3URL, &tl.S3Key, &tl.Error, &tl.CreatedAt, &tl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tl.Namespace = models.Namespace(ns)
	if err := json.Unmarshal(events, &tl.Events); err != nil {
		return nil, fmt.Errorf("decode events of %s: %w", tl.ID, err)
	}
	if err := json.Unmarshal(paddings, &tl.Paddings); err != nil {
		return nil, fmt.Errorf("decode paddings of %s: %w", tl.ID, err)
	}
	return &tl, nil
}

func nonNil(p []models.Padding) []models.Padding {
	if p == nil {
		return []models.Padding{}
	}
	return p
}
