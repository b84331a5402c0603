package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/playback/internal/models"
	"github.com/aura-webinar/playback/internal/padding"
	"github.com/aura-webinar/playback/internal/renderer"
	"github.com/aura-webinar/playback/internal/timelines"
	"github.com/aura-webinar/playback/pkg/queue"
)

type memStore struct {
	mu        sync.Mutex
	timelines map[uuid.UUID]*models.Timeline
	statuses  []string
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.timelines[id]
	if !ok {
		return nil, timelines.ErrNotFound
	}
	cp := *tl
	return &cp, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines[id].Status = status
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *memStore) UpdateResult(_ context.Context, id uuid.UUID, outputPath, s3URL, s3Key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl := s.timelines[id]
	tl.Status = models.TimelineStatusCompleted
	tl.OutputPath, tl.S3URL, tl.S3Key = outputPath, s3URL, s3Key
	s.statuses = append(s.statuses, tl.Status)
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tl := s.timelines[id]
	tl.Status = models.TimelineStatusFailed
	tl.Error = reason
	s.statuses = append(s.statuses, tl.Status)
	return nil
}

type fakeRenderer struct {
	req renderer.Request
	err error
	dir string
	// cancel, when set, is called mid-render and ctx.Err() is returned.
	cancel context.CancelFunc
}

func (r *fakeRenderer) Render(ctx context.Context, req renderer.Request) (*renderer.Result, error) {
	r.req = req
	if r.cancel != nil {
		r.cancel()
		return &renderer.Result{Dir: r.dir}, ctx.Err()
	}
	if r.err != nil {
		return &renderer.Result{Dir: r.dir}, r.err
	}
	out := req.Output
	if out == "" {
		out = "/work/timeline.flv"
	}
	return &renderer.Result{OutputPath: out, Paddings: []models.Padding{{Stream: "blank-0"}}}, nil
}

type fakeUploader struct {
	key, path string
}

func (u *fakeUploader) UploadFile(_ context.Context, key, filePath string) (string, error) {
	u.key, u.path = key, filePath
	return "https://bucket/" + key, nil
}

type fakeQueue struct {
	retried  int
	dead     bool
	requeued []*queue.Job
	// requeueCtxErr is ctx.Err() as seen by Requeue.
	requeueCtxErr error
}

func (q *fakeQueue) Requeue(ctx context.Context, job *queue.Job) error {
	q.requeueCtxErr = ctx.Err()
	if q.requeueCtxErr != nil {
		return q.requeueCtxErr
	}
	q.requeued = append(q.requeued, job)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, time.Duration) (*queue.Job, error) { return nil, nil }

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job, _ error) (bool, error) {
	q.retried++
	job.Attempt++
	return q.dead, nil
}

func setup(t *testing.T) (*memStore, *models.Timeline, *queue.Job) {
	t.Helper()
	tl := &models.Timeline{
		ID:             uuid.New(),
		RecordingID:    "rec-1",
		Namespace:      models.NamespaceVideo,
		FirstTimestamp: 0,
		LastTimestamp:  200,
		Events:         []models.Event{{StartTimestamp: 10, StopTimestamp: 50, Stream: "/rec/a.flv"}},
		AudioPath:      "/rec/audio.wav",
		Status:         models.TimelineStatusPending,
	}
	store := &memStore{timelines: map[uuid.UUID]*models.Timeline{tl.ID: tl}}

	payload, err := json.Marshal(queue.RenderPayload{TimelineID: tl.ID})
	require.NoError(t, err)
	job := &queue.Job{ID: "job-1", Type: queue.JobTypeTimelineRender, Payload: payload}
	return store, tl, job
}

func TestProcessUploadsAndCompletes(t *testing.T) {
	store, tl, job := setup(t)
	r := &fakeRenderer{}
	up := &fakeUploader{}
	out := t.TempDir()
	p := NewRenderProcessor(store, r, up, &fakeQueue{}, out, nil)

	require.NoError(t, p.Process(context.Background(), job))

	require.Equal(t, tl.ID.String(), r.req.ID)
	require.Equal(t, "/rec/audio.wav", r.req.AudioPath)
	require.Equal(t, filepath.Join(out, "rec-1", "video-"+tl.ID.String()+".flv"), r.req.Output)

	require.Equal(t, "timelines/rec-1/video/"+tl.ID.String()+".flv", up.key)
	require.Equal(t, r.req.Output, up.path)

	got := store.timelines[tl.ID]
	require.Equal(t, models.TimelineStatusCompleted, got.Status)
	require.Equal(t, "https://bucket/"+up.key, got.S3URL)
	require.Equal(t, []string{models.TimelineStatusRendering, models.TimelineStatusCompleted}, store.statuses)
}

func TestProcessWithoutStorage(t *testing.T) {
	store, tl, job := setup(t)
	p := NewRenderProcessor(store, &fakeRenderer{}, nil, &fakeQueue{}, "", nil)

	require.NoError(t, p.Process(context.Background(), job))
	got := store.timelines[tl.ID]
	require.Equal(t, "/work/timeline.flv", got.OutputPath)
	require.Empty(t, got.S3Key)
}

func TestProcessSkipsCompleted(t *testing.T) {
	store, tl, job := setup(t)
	tl.Status = models.TimelineStatusCompleted
	r := &fakeRenderer{}
	p := NewRenderProcessor(store, r, nil, &fakeQueue{}, "", nil)

	require.NoError(t, p.Process(context.Background(), job))
	require.Empty(t, r.req.ID)
	require.Empty(t, store.statuses)
}

func TestProcessInvalidPlanIsPermanent(t *testing.T) {
	store, tl, job := setup(t)
	r := &fakeRenderer{err: &padding.InvalidInputError{Err: padding.ErrOverlappingEvents}}
	q := &fakeQueue{}
	p := NewRenderProcessor(store, r, nil, q, "", nil)

	err := p.Process(context.Background(), job)
	require.True(t, IsPermanent(err))

	p.handle(context.Background(), job)
	require.Zero(t, q.retried)
	require.Equal(t, models.TimelineStatusFailed, store.timelines[tl.ID].Status)
}

func TestProcessUnknownTimelineIsPermanent(t *testing.T) {
	store, _, _ := setup(t)
	payload, err := json.Marshal(queue.RenderPayload{TimelineID: uuid.New()})
	require.NoError(t, err)
	p := NewRenderProcessor(store, &fakeRenderer{}, nil, &fakeQueue{}, "", nil)

	err = p.Process(context.Background(), &queue.Job{ID: "j", Type: queue.JobTypeTimelineRender, Payload: payload})
	require.True(t, IsPermanent(err))
}

func TestFragmentFailureIsRetried(t *testing.T) {
	store, tl, job := setup(t)
	r := &fakeRenderer{err: &renderer.FragmentError{Stream: "blank-0", Err: errors.New("exit status 1")}}
	q := &fakeQueue{}
	p := NewRenderProcessor(store, r, nil, q, "", nil)
	p.retryBackoff = time.Millisecond

	err := p.Process(context.Background(), job)
	require.False(t, IsPermanent(err))
	var fe *renderer.FragmentError
	require.ErrorAs(t, err, &fe)

	p.handle(context.Background(), job)
	require.Equal(t, 1, q.retried)
	require.Equal(t, models.TimelineStatusRendering, store.timelines[tl.ID].Status)

	q.dead = true
	p.handle(context.Background(), job)
	require.Equal(t, 2, q.retried)
	require.Equal(t, models.TimelineStatusFailed, store.timelines[tl.ID].Status)
	require.Contains(t, store.timelines[tl.ID].Error, "blank-0")
}

func TestInterruptedRenderIsRequeued(t *testing.T) {
	store, tl, job := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeRenderer{cancel: cancel}
	q := &fakeQueue{}
	p := NewRenderProcessor(store, r, nil, q, "", nil)

	p.handle(ctx, job)

	require.NoError(t, q.requeueCtxErr)
	require.Equal(t, []*queue.Job{job}, q.requeued)
	require.Zero(t, job.Attempt)
	require.Zero(t, q.retried)
	require.Equal(t, models.TimelineStatusPending, store.timelines[tl.ID].Status)
	require.Empty(t, store.timelines[tl.ID].Error)
}

func TestFailedRenderRemovesWorkDir(t *testing.T) {
	store, _, job := setup(t)
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank-0.flv"), []byte("x"), 0o644))
	r := &fakeRenderer{err: &renderer.FragmentError{Stream: "blank-0", Err: errors.New("exit status 1")}, dir: dir}
	p := NewRenderProcessor(store, r, nil, &fakeQueue{}, t.TempDir(), nil)

	require.Error(t, p.Process(context.Background(), job))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestRunStopsOnCancel(t *testing.T) {
	store, _, _ := setup(t)
	p := NewRenderProcessor(store, &fakeRenderer{}, nil, &fakeQueue{}, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
