package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and writes the last argument as the
// output file unless told otherwise.
type fakeRunner struct {
	mu       sync.Mutex
	calls    [][]string
	stdout   []byte
	fail     error
	noOutput bool
	lists    []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	for i, a := range args {
		if a == "concat" && i+4 < len(args) {
			b, _ := os.ReadFile(args[i+4])
			f.lists = append(f.lists, string(b))
		}
	}
	if f.fail != nil {
		return nil, f.fail
	}
	if !f.noOutput && len(args) > 0 {
		_ = os.WriteFile(args[len(args)-1], []byte("data"), 0o600)
	}
	return f.stdout, nil
}

func TestToolkitDefaults(t *testing.T) {
	tk := NewToolkit(Options{}, nil, nil)
	require.Equal(t, "ffmpeg", tk.opts.FFmpegPath)
	require.Equal(t, "ffprobe", tk.opts.FFprobePath)
	require.Equal(t, "convert", tk.opts.ConvertPath)
	require.Equal(t, "flashsv", tk.DeskshareCodec())
}

func TestToolkitBlankVideo(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{}
	tk := NewToolkit(Options{FFmpegPath: "/opt/ffmpeg"}, fr, nil)

	out := filepath.Join(dir, "blank-0.flv")
	err := tk.BlankVideo(context.Background(), BlankVideoRequest{Duration: 2, FrameRate: 24, Canvas: "c.jpg", Output: out})
	require.NoError(t, err)
	require.Len(t, fr.calls, 1)
	require.Equal(t, "/opt/ffmpeg", fr.calls[0][0])
	require.Equal(t, out, fr.calls[0][len(fr.calls[0])-1])

	err = tk.BlankVideo(context.Background(), BlankVideoRequest{Duration: 0, Output: out})
	require.Error(t, err)
	require.Len(t, fr.calls, 1)
}

func TestToolkitNoOutput(t *testing.T) {
	dir := t.TempDir()
	tk := NewToolkit(Options{}, &fakeRunner{noOutput: true}, nil)

	err := tk.StripAudio(context.Background(), "in.flv", filepath.Join(dir, "out.flv"))
	require.ErrorIs(t, err, ErrNoOutput)
	require.True(t, IsTransient(err))
}

func TestToolkitRunnerFailure(t *testing.T) {
	dir := t.TempDir()
	boom := &ToolError{Tool: "convert", Stderr: "unable to open image", Err: errors.New("exit status 1")}
	tk := NewToolkit(Options{}, &fakeRunner{fail: boom}, nil)

	err := tk.BlankCanvas(context.Background(), 640, 480, "white", filepath.Join(dir, "canvas.jpg"))
	require.ErrorIs(t, err, boom)

	err = tk.BlankCanvas(context.Background(), 0, 480, "white", filepath.Join(dir, "canvas.jpg"))
	require.Error(t, err)
}

func TestToolkitConcat(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{}
	tk := NewToolkit(Options{}, fr, nil)

	a := filepath.Join(dir, "a.flv")
	b := filepath.Join(dir, "blank-0.flv")
	out := filepath.Join(dir, "out.flv")
	require.NoError(t, tk.Concat(context.Background(), []string{a, b}, out))

	require.Len(t, fr.lists, 1)
	require.Equal(t, "file '"+a+"'\nfile '"+b+"'\n", fr.lists[0])

	_, err := os.Stat(out + ".concat.txt")
	require.True(t, os.IsNotExist(err), "concat list should be removed")

	require.Error(t, tk.Concat(context.Background(), nil, out))
}

func TestToolkitMultiplex(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{}
	tk := NewToolkit(Options{}, fr, nil)

	out := filepath.Join(dir, "final.flv")
	require.NoError(t, tk.Multiplex(context.Background(), "audio.wav", "video.flv", out))
	require.Contains(t, strings.Join(fr.calls[0], " "), "-map 1:0 -map 0:0 -ar 22050")
}

func TestToolkitProbe(t *testing.T) {
	fr := &fakeRunner{stdout: []byte(sampleWebcam), noOutput: true}
	tk := NewToolkit(Options{FFprobePath: "ffprobe"}, fr, nil)

	md, err := tk.Probe(context.Background(), "webcam.flv")
	require.NoError(t, err)
	require.Equal(t, 320, md.Width)
	require.Equal(t, []string{"ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "webcam.flv"}, fr.calls[0])

	tk = NewToolkit(Options{}, &fakeRunner{fail: &ToolError{Tool: "ffprobe", Err: errors.New("exit status 1")}}, nil)
	_, err = tk.Probe(context.Background(), "missing.flv")
	require.Error(t, err)
}
