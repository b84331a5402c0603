package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata holds the scalar properties of a video file used to size and
// pace blank fillers.
type Metadata struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Duration  float64 `json:"duration"`   // seconds
	BitRate   int64   `json:"bit_rate"`   // bits/sec
	FrameRate float64 `json:"frame_rate"` // frames/sec
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	BitRate      string         `json:"bit_rate"`
	Duration     string         `json:"duration"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseProbeJSON converts ffprobe JSON output into Metadata. The first
// video stream that is not an attached picture is used; container values
// fill in whatever the stream leaves out.
func ParseProbeJSON(data []byte) (*Metadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	md := &Metadata{
		Duration: parseFloat(raw.Format.Duration),
		BitRate:  parseInt64(raw.Format.BitRate),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" || s.Disposition["attached_pic"] == 1 {
			continue
		}
		md.Width = s.Width
		md.Height = s.Height
		if br := parseInt64(s.BitRate); br > 0 {
			md.BitRate = br
		}
		if md.Duration == 0 {
			md.Duration = parseFloat(s.Duration)
		}
		md.FrameRate = parseRational(s.AvgFrameRate)
		if md.FrameRate == 0 {
			md.FrameRate = parseRational(s.RFrameRate)
		}
		return md, nil
	}
	return nil, fmt.Errorf("parse ffprobe JSON: no video stream")
}

// parseRational parses ffprobe rates such as "30000/1001" or "25".
func parseRational(s string) float64 {
	s = strings.TrimSpace(s)
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

// ffprobe reports numbers as strings; unparsable values read as zero.

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
