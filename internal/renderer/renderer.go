// Package renderer turns a padding plan into one continuous video: blank
// fillers and audio-free event videos are produced in parallel, then
// concatenated in timestamp order and optionally multiplexed with audio.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/playback/internal/media"
	"github.com/aura-webinar/playback/internal/metrics"
	"github.com/aura-webinar/playback/internal/models"
	"github.com/aura-webinar/playback/internal/padding"
)

// ErrMissingStream is returned when an event has no video file to render.
var ErrMissingStream = errors.New("event has no stream")

// Tools is the set of media operations the renderer drives.
// *media.Toolkit implements it.
type Tools interface {
	BlankCanvas(ctx context.Context, width, height int, color, out string) error
	BlankVideo(ctx context.Context, req media.BlankVideoRequest) error
	StripAudio(ctx context.Context, in, out string) error
	Concat(ctx context.Context, inputs []string, out string) error
	Multiplex(ctx context.Context, audio, video, out string) error
	Probe(ctx context.Context, path string) (*media.Metadata, error)
}

// Options configures rendering.
type Options struct {
	WorkDir        string
	FrameRate      float64
	CanvasColor    string
	Concurrency    int
	FillerExt      string
	DeskshareCodec string
	Retry          media.RetryPolicy
}

func (o *Options) setDefaults() {
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 15
	}
	if o.CanvasColor == "" {
		o.CanvasColor = "white"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.FillerExt == "" {
		o.FillerExt = ".flv"
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = media.DefaultRetryPolicy()
	}
}

// Request describes one timeline to render.
type Request struct {
	ID        string // names the working subdirectory
	Namespace models.Namespace
	Events    []models.Event
	First     int64
	Last      int64
	Width     int // probed from the first event when zero
	Height    int
	AudioPath string // multiplexed into the output when set
	Output    string // defaults to <dir>/timeline<ext>
}

// Result is what a render produced. Paddings is set even when a later
// stage fails.
type Result struct {
	Paddings   []models.Padding
	Fragments  []models.Fragment
	Dir        string
	OutputPath string
	Took       time.Duration
}

// FragmentError reports the fragment whose generation failed.
type FragmentError struct {
	Stream string
	Err    error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment %s: %v", e.Stream, e.Err)
}

func (e *FragmentError) Unwrap() error { return e.Err }

// Renderer renders timelines with a set of media tools.
type Renderer struct {
	tools   Tools
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a renderer. m may be nil.
func New(tools Tools, opts Options, logger *zap.Logger, m *metrics.Metrics) *Renderer {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{tools: tools, opts: opts, logger: logger, metrics: m}
}

// Plan computes the paddings for req without running any tool.
func (r *Renderer) Plan(req Request) ([]models.Padding, error) {
	paddings, err := padding.Plan(req.Events, req.First, req.Last, req.Namespace)
	if err != nil {
		r.metrics.IncInvalidPlans()
		return nil, err
	}
	r.metrics.ObservePlan(string(req.Namespace), len(paddings))
	return paddings, nil
}

// Render plans, generates and concatenates the fragments of req.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := r.render(ctx, req)
	if res != nil {
		res.Took = time.Since(start)
	}

	log := r.logger.With(zap.String("timeline", req.ID), zap.String("namespace", string(req.Namespace)))
	if err != nil {
		r.metrics.ObserveRender(models.TimelineStatusFailed, time.Since(start).Seconds())
		log.Error("render failed", zap.Error(err))
		return res, err
	}
	r.metrics.ObserveRender(models.TimelineStatusCompleted, time.Since(start).Seconds())
	log.Info("render finished",
		zap.Int("paddings", len(res.Paddings)),
		zap.Int("fragments", len(res.Fragments)),
		zap.String("output", res.OutputPath),
		zap.Duration("took", res.Took),
	)
	return res, nil
}

func (r *Renderer) render(ctx context.Context, req Request) (*Result, error) {
	paddings, err := r.Plan(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Paddings: paddings}

	events := padding.SortByStart(req.Events)
	for i, e := range events {
		if e.Stream == "" {
			return res, fmt.Errorf("event %d at %d: %w", i, e.StartTimestamp, ErrMissingStream)
		}
	}

	dir := r.opts.WorkDir
	if req.ID != "" {
		dir = filepath.Join(dir, req.ID)
	}
	dir = filepath.Join(dir, string(req.Namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create work dir: %w", err)
	}
	res.Dir = dir

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		meta, err := r.tools.Probe(ctx, events[0].Stream)
		if err != nil {
			r.metrics.IncToolFailures("probe")
			return res, fmt.Errorf("probe %s: %w", events[0].Stream, err)
		}
		width, height = meta.Width, meta.Height
	}

	canvas := filepath.Join(dir, "canvas.png")
	if err := r.retry(ctx, "canvas", func(ctx context.Context) error {
		return r.tools.BlankCanvas(ctx, width, height, r.opts.CanvasColor, canvas)
	}); err != nil {
		return res, fmt.Errorf("blank canvas: %w", err)
	}
	r.metrics.IncFragments("canvas")

	files, err := r.fill(ctx, req.Namespace, dir, canvas, events, paddings)
	if err != nil {
		return res, err
	}

	res.Fragments = padding.Interleave(events, paddings)
	inputs := make([]string, len(res.Fragments))
	for i, f := range res.Fragments {
		inputs[i] = files[f.StartTimestamp]
	}

	out := req.Output
	if out == "" {
		out = filepath.Join(dir, "timeline"+r.opts.FillerExt)
	} else if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	video := out
	if req.AudioPath != "" {
		video = filepath.Join(dir, "video-noaudio"+r.opts.FillerExt)
	}

	if err := r.retry(ctx, "concat", func(ctx context.Context) error {
		return r.tools.Concat(ctx, inputs, video)
	}); err != nil {
		return res, fmt.Errorf("concatenate: %w", err)
	}

	if req.AudioPath != "" {
		if err := r.retry(ctx, "multiplex", func(ctx context.Context) error {
			return r.tools.Multiplex(ctx, req.AudioPath, video, out)
		}); err != nil {
			return res, fmt.Errorf("multiplex: %w", err)
		}
	}

	res.OutputPath = out
	return res, nil
}

// fill produces every blank filler and audio-free event video. It returns
// the file of each fragment keyed by start timestamp.
func (r *Renderer) fill(ctx context.Context, ns models.Namespace, dir, canvas string,
	events []models.Event, paddings []models.Padding) (map[int64]string, error) {

	files := make(map[int64]string, len(events)+len(paddings))

	codec := ""
	if ns == models.NamespaceDeskshare {
		codec = r.opts.DeskshareCodec
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, p := range paddings {
		req := media.BlankVideoRequest{
			Duration:  float64(p.DurationMillis()) / 1000,
			FrameRate: r.opts.FrameRate,
			Canvas:    canvas,
			Codec:     codec,
			Output:    filepath.Join(dir, p.Stream+r.opts.FillerExt),
		}
		files[p.StartTimestamp] = req.Output
		g.Go(func() error {
			if err := r.retry(gctx, "blank", func(ctx context.Context) error {
				return r.tools.BlankVideo(ctx, req)
			}); err != nil {
				return &FragmentError{Stream: p.Stream, Err: err}
			}
			r.metrics.IncFragments("blank")
			return nil
		})
	}

	for i, e := range events {
		out := filepath.Join(dir, fmt.Sprintf("event-%d%s", i, r.opts.FillerExt))
		files[e.StartTimestamp] = out
		g.Go(func() error {
			if err := r.retry(gctx, "strip_audio", func(ctx context.Context) error {
				return r.tools.StripAudio(ctx, e.Stream, out)
			}); err != nil {
				return &FragmentError{Stream: e.Stream, Err: err}
			}
			r.metrics.IncFragments("stripped")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *Renderer) retry(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	policy := r.opts.Retry
	policy.OnRetry = func(attempt int, err error) {
		r.metrics.IncToolRetries()
		r.logger.Warn("retrying tool", zap.String("stage", stage), zap.Int("attempt", attempt), zap.Error(err))
	}
	err := media.Retry(ctx, policy, fn)
	if err != nil {
		r.metrics.IncToolFailures(stage)
	}
	return err
}
