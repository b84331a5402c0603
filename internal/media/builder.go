package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Multiplexed audio is resampled to the rate the playback client expects.
const muxAudioSampleRate = 22050

// preamble is shared by every ffmpeg invocation: overwrite outputs, never
// read stdin, and keep stderr limited to errors for classification.
func preamble() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

// BlankVideoRequest describes one blank filler video.
type BlankVideoRequest struct {
	Duration  float64 // seconds
	FrameRate float64
	Canvas    string // still image used for every frame
	Codec     string // optional, e.g. flashsv for deskshare fillers
	Output    string
}

// BlankVideoArgs builds the ffmpeg arguments that loop req.Canvas for
// req.Duration seconds.
func BlankVideoArgs(req BlankVideoRequest) []string {
	args := preamble()
	args = append(args,
		"-loop", "1",
		"-t", formatSeconds(req.Duration),
		"-i", req.Canvas,
		"-r", formatFloat(req.FrameRate),
	)
	if req.Codec != "" {
		args = append(args, "-vcodec", req.Codec)
	}
	return append(args, req.Output)
}

// StripAudioArgs copies the video stream of in to out without audio.
func StripAudioArgs(in, out string) []string {
	return append(preamble(), "-i", in, "-an", "-vcodec", "copy", out)
}

// MultiplexArgs combines audio with an audio-free video.
func MultiplexArgs(audio, video, out string) []string {
	return append(preamble(),
		"-i", audio,
		"-i", video,
		"-map", "1:0",
		"-map", "0:0",
		"-ar", strconv.Itoa(muxAudioSampleRate),
		out,
	)
}

// ConcatArgs concatenates the files listed in listFile with the concat
// demuxer, copying streams.
func ConcatArgs(listFile, out string) []string {
	return append(preamble(),
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	)
}

// ConcatList renders the concat demuxer list for inputs, in order.
func ConcatList(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(in, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// CanvasArgs builds the ImageMagick arguments for a solid color image.
func CanvasArgs(width, height int, color, out string) []string {
	return []string{"-size", fmt.Sprintf("%dx%d", width, height), "xc:" + color, out}
}

// ProbeArgs builds the ffprobe arguments for a single JSON report.
func ProbeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
