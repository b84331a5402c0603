package models

import (
	"time"

	"github.com/google/uuid"
)

// TimelineStatus represents the render lifecycle.
const (
	TimelineStatusPending   = "pending"
	TimelineStatusRendering = "rendering"
	TimelineStatusCompleted = "completed"
	TimelineStatusFailed    = "failed"
)

// Timeline is a render job that stitches one recording track into a continuous video.
type Timeline struct {
	ID             uuid.UUID `json:"id"`
	RecordingID    string    `json:"recording_id"`
	Namespace      Namespace `json:"namespace"`
	FirstTimestamp int64     `json:"first_timestamp"`
	LastTimestamp  int64     `json:"last_timestamp"`
	Events         []Event   `json:"events"`
	Paddings       []Padding `json:"paddings"`
	AudioPath      string    `json:"audio_path,omitempty"`
	Status         string    `json:"status"`
	OutputPath     string    `json:"output_path,omitempty"`
	S3URL          string    `json:"s3_url,omitempty"`
	S3Key          string    `json:"s3_key,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
