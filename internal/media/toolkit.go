package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Options locates the external binaries.
type Options struct {
	FFmpegPath     string // default "ffmpeg"
	FFprobePath    string // default "ffprobe"
	ConvertPath    string // default "convert" (ImageMagick)
	DeskshareCodec string // codec for deskshare fillers; default "flashsv"
}

func (o *Options) setDefaults() {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.ConvertPath == "" {
		o.ConvertPath = "convert"
	}
	if o.DeskshareCodec == "" {
		o.DeskshareCodec = "flashsv"
	}
}

// Toolkit exposes the media operations the renderer needs. Every method
// blocks until the underlying process exits and fails with a *ToolError
// when it exits non-zero or leaves no output file.
type Toolkit struct {
	opts   Options
	runner Runner
	logger *zap.Logger
}

// NewToolkit creates a toolkit. A nil runner uses ExecRunner.
func NewToolkit(opts Options, runner Runner, logger *zap.Logger) *Toolkit {
	opts.setDefaults()
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolkit{opts: opts, runner: runner, logger: logger}
}

// DeskshareCodec returns the codec used for deskshare blank fillers.
func (t *Toolkit) DeskshareCodec() string { return t.opts.DeskshareCodec }

// Check verifies that every binary can be resolved.
func (t *Toolkit) Check() error {
	for _, bin := range []string{t.opts.FFmpegPath, t.opts.FFprobePath, t.opts.ConvertPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// BlankVideo generates a blank filler video.
func (t *Toolkit) BlankVideo(ctx context.Context, req BlankVideoRequest) error {
	if req.Duration <= 0 {
		return fmt.Errorf("blank video %s: non-positive duration %.3f", req.Output, req.Duration)
	}
	return t.produce(ctx, t.opts.FFmpegPath, BlankVideoArgs(req), req.Output)
}

// BlankCanvas creates a solid color image of the given size.
func (t *Toolkit) BlankCanvas(ctx context.Context, width, height int, color, out string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("blank canvas %s: invalid size %dx%d", out, width, height)
	}
	return t.produce(ctx, t.opts.ConvertPath, CanvasArgs(width, height, color, out), out)
}

// StripAudio writes the video stream of in to out without audio.
func (t *Toolkit) StripAudio(ctx context.Context, in, out string) error {
	return t.produce(ctx, t.opts.FFmpegPath, StripAudioArgs(in, out), out)
}

// Multiplex combines audio with an audio-free video into out.
func (t *Toolkit) Multiplex(ctx context.Context, audio, video, out string) error {
	return t.produce(ctx, t.opts.FFmpegPath, MultiplexArgs(audio, video, out), out)
}

// Concat concatenates inputs, in the given order, into out. The concat
// list is written next to out and removed afterwards.
func (t *Toolkit) Concat(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat %s: no inputs", out)
	}
	abs := make([]string, len(inputs))
	for i, in := range inputs {
		a, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("concat %s: %w", out, err)
		}
		abs[i] = a
	}

	list := out + ".concat.txt"
	if err := os.WriteFile(list, []byte(ConcatList(abs)), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(list)

	return t.produce(ctx, t.opts.FFmpegPath, ConcatArgs(list, out), out)
}

// Probe reports the metadata of the video at path.
func (t *Toolkit) Probe(ctx context.Context, path string) (*Metadata, error) {
	out, err := t.runner.Run(ctx, t.opts.FFprobePath, ProbeArgs(path)...)
	if err != nil {
		return nil, fmt.Errorf("probe %q: %w", path, err)
	}
	return ParseProbeJSON(out)
}

// produce runs a tool expected to create out.
func (t *Toolkit) produce(ctx context.Context, bin string, args []string, out string) error {
	start := time.Now()
	if _, err := t.runner.Run(ctx, bin, args...); err != nil {
		t.logger.Warn("tool failed", zap.String("tool", bin), zap.String("output", out), zap.Error(err))
		return err
	}
	if fi, err := os.Stat(out); err != nil || fi.Size() == 0 {
		return &ToolError{Tool: bin, Args: args, Err: ErrNoOutput}
	}
	t.logger.Debug("tool finished",
		zap.String("tool", bin),
		zap.String("output", out),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
