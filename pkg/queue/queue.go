package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRenders is the Redis list key for timeline render jobs.
	QueueRenders = "worker:timeline_renders"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeTimelineRender JobType = "timeline_render"
)

// RenderPayload is the payload for timeline render jobs.
type RenderPayload struct {
	TimelineID uuid.UUID `json:"timeline_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RenderPayload decodes the payload of a render job.
func (j *Job) RenderPayload() (RenderPayload, error) {
	var p RenderPayload
	if j.Type != JobTypeTimelineRender {
		return p, fmt.Errorf("job %s: unexpected type %q", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("job %s: decode payload: %w", j.ID, err)
	}
	if p.TimelineID == uuid.Nil {
		return p, fmt.Errorf("job %s: missing timeline_id", j.ID)
	}
	return p, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func newJob(typ JobType, payload interface{}) (*Job, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job: %w", err)
	}
	return job, raw, nil
}

// EnqueueRender enqueues a timeline render job and returns its id.
func (q *Queue) EnqueueRender(ctx context.Context, payload RenderPayload) (string, error) {
	job, raw, err := newJob(JobTypeTimelineRender, payload)
	if err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, QueueRenders, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued render job", zap.String("job_id", job.ID), zap.String("timeline_id", payload.TimelineID.String()))
	return job.ID, nil
}

// Dequeue blocks up to timeout for a job. It returns a nil job when the
// timeout passes or the popped entry cannot be decoded.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueRenders).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	job, err := decodeJob([]byte(result[1]))
	if err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return job, nil
}

func decodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	if job.ID == "" || job.Type == "" {
		return nil, errors.New("job without id or type")
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
// It reports whether the job went to the DLQ.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if exhausted(job) {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.client.RPush(ctx, QueueRenders, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// Requeue puts an interrupted job back at the head of the render queue
// without counting an attempt.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, QueueRenders, raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	q.logger.Info("job requeued", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

func exhausted(job *Job) bool { return job.Attempt >= MaxRetries }

// Len returns the number of pending render jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueRenders).Result()
}
