package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/playback/internal/models"
	"github.com/aura-webinar/playback/internal/padding"
	"github.com/aura-webinar/playback/internal/renderer"
	"github.com/aura-webinar/playback/internal/timelines"
	"github.com/aura-webinar/playback/pkg/queue"
	"github.com/aura-webinar/playback/pkg/storage"
)

// Store is the persistence the processor needs. *timelines.Repository implements it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Timeline, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateResult(ctx context.Context, id uuid.UUID, outputPath, s3URL, s3Key string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Renderer renders one timeline. *renderer.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, req renderer.Request) (*renderer.Result, error)
}

// Uploader stores rendered files. *storage.S3 implements it.
type Uploader interface {
	UploadFile(ctx context.Context, key, filePath string) (string, error)
}

// JobQueue is the job source. *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
	Requeue(ctx context.Context, job *queue.Job) error
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// IsPermanent reports whether err should skip the retry queue.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// RenderProcessor processes timeline render jobs: render locally, upload to S3, update DB.
type RenderProcessor struct {
	store    Store
	renderer Renderer
	s3       Uploader // optional; nil keeps outputs on local disk
	queue    JobQueue
	logger   *zap.Logger

	outputDir    string
	pollTimeout  time.Duration
	retryBackoff time.Duration
}

// requeueTimeout bounds the push back of a job interrupted by shutdown.
const requeueTimeout = 5 * time.Second

// NewRenderProcessor creates a render processor. s3 may be nil.
func NewRenderProcessor(store Store, r Renderer, s3 Uploader, q JobQueue, outputDir string, logger *zap.Logger) *RenderProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderProcessor{
		store:        store,
		renderer:     r,
		s3:           s3,
		queue:        q,
		logger:       logger,
		outputDir:    outputDir,
		pollTimeout:  5 * time.Second,
		retryBackoff: queue.RetryBackoff,
	}
}

// Process executes one render job. Invalid plans and missing timelines are
// permanent failures; tool and storage failures are retryable.
func (p *RenderProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.RenderPayload()
	if err != nil {
		return permanent(err)
	}

	tl, err := p.store.GetByID(ctx, payload.TimelineID)
	if errors.Is(err, timelines.ErrNotFound) {
		return permanent(fmt.Errorf("timeline %s: %w", payload.TimelineID, err))
	}
	if err != nil {
		return fmt.Errorf("load timeline %s: %w", payload.TimelineID, err)
	}
	if tl.Status == models.TimelineStatusCompleted {
		p.logger.Info("timeline already completed", zap.String("timeline_id", tl.ID.String()))
		return nil
	}
	if err := p.store.UpdateStatus(ctx, tl.ID, models.TimelineStatusRendering); err != nil {
		return fmt.Errorf("mark rendering: %w", err)
	}

	log := p.logger.With(zap.String("timeline_id", tl.ID.String()), zap.String("job_id", job.ID))
	res, err := p.renderer.Render(ctx, renderer.Request{
		ID:        tl.ID.String(),
		Namespace: tl.Namespace,
		Events:    tl.Events,
		First:     tl.FirstTimestamp,
		Last:      tl.LastTimestamp,
		AudioPath: tl.AudioPath,
		Output:    p.outputPath(tl),
	})
	if p.outputDir != "" && res != nil && res.Dir != "" {
		defer os.RemoveAll(res.Dir)
	}
	if err != nil {
		if padding.IsInvalidInput(err) || errors.Is(err, renderer.ErrMissingStream) {
			return permanent(err)
		}
		var fe *renderer.FragmentError
		if errors.As(err, &fe) {
			log.Warn("fragment failed", zap.String("stream", fe.Stream), zap.Error(fe.Err))
		}
		return fmt.Errorf("render: %w", err)
	}

	var s3URL, s3Key string
	if p.s3 != nil {
		s3Key = storage.TimelineKey(tl.RecordingID, tl.ID.String(), string(tl.Namespace), filepath.Ext(res.OutputPath))
		if s3URL, err = p.s3.UploadFile(ctx, s3Key, res.OutputPath); err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
	}

	if err := p.store.UpdateResult(ctx, tl.ID, res.OutputPath, s3URL, s3Key); err != nil {
		log.Error("update timeline result failed", zap.Error(err))
		return fmt.Errorf("update db: %w", err)
	}
	log.Info("timeline render completed",
		zap.String("output", res.OutputPath),
		zap.String("s3_key", s3Key),
		zap.Int("paddings", len(res.Paddings)),
		zap.Duration("took", res.Took),
	)
	return nil
}

// outputPath places the final video outside the per-job work dir. When
// outputDir is set the work dir is removed once the job finishes.
func (p *RenderProcessor) outputPath(tl *models.Timeline) string {
	if p.outputDir == "" {
		return ""
	}
	return filepath.Join(p.outputDir, tl.RecordingID, fmt.Sprintf("%s-%s.flv", tl.Namespace, tl.ID))
}

// handle processes job and routes failures to the retry queue, the DLQ or
// straight to a failed timeline.
func (p *RenderProcessor) handle(ctx context.Context, job *queue.Job) {
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))

	if IsPermanent(err) {
		p.markFailed(ctx, job, err)
		return
	}
	if ctx.Err() != nil {
		p.requeue(ctx, job)
		return
	}
	dead, reErr := p.queue.Retry(ctx, job, err)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	if dead {
		p.markFailed(ctx, job, err)
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.retryBackoff):
	}
}

// requeue hands a job interrupted by shutdown back to the queue on a
// detached context and resets its timeline to pending.
func (p *RenderProcessor) requeue(ctx context.Context, job *queue.Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()
	if err := p.queue.Requeue(ctx, job); err != nil {
		p.logger.Error("requeue interrupted job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	payload, err := job.RenderPayload()
	if err != nil {
		return
	}
	if err := p.store.UpdateStatus(ctx, payload.TimelineID, models.TimelineStatusPending); err != nil {
		p.logger.Warn("reset timeline status failed", zap.Error(err), zap.String("timeline_id", payload.TimelineID.String()))
	}
}

func (p *RenderProcessor) markFailed(ctx context.Context, job *queue.Job, cause error) {
	payload, err := job.RenderPayload()
	if err != nil {
		return
	}
	if err := p.store.MarkFailed(ctx, payload.TimelineID, cause.Error()); err != nil {
		p.logger.Error("mark timeline failed", zap.Error(err), zap.String("timeline_id", payload.TimelineID.String()))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RenderProcessor) Run(ctx context.Context) {
	p.logger.Info("render worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("render worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(p.retryBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		p.handle(ctx, job)
	}
}
