package models

// Namespace selects the recording track a timeline belongs to.
type Namespace string

const (
	NamespaceVideo     Namespace = "video"
	NamespaceDeskshare Namespace = "deskshare"
)

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	return n == NamespaceVideo || n == NamespaceDeskshare
}

// Event is one recorded segment. Timestamps are inclusive milliseconds.
type Event struct {
	StartTimestamp int64  `json:"start_timestamp"`
	StopTimestamp  int64  `json:"stop_timestamp"`
	Stream         string `json:"stream,omitempty"` // path of the segment's video file
}

// Padding is a gap in the timeline that must be filled with a blank video.
type Padding struct {
	StartTimestamp int64  `json:"start_timestamp"`
	StopTimestamp  int64  `json:"stop_timestamp"`
	Gap            bool   `json:"gap"`
	Stream         string `json:"stream"` // filler stream id, e.g. blank-0 or ds-blank-end
}

// DurationMillis returns the number of milliseconds the padding covers.
func (p Padding) DurationMillis() int64 {
	return p.StopTimestamp - p.StartTimestamp + 1
}

// Fragment is one entry of the ordered list handed to concatenation.
type Fragment struct {
	StartTimestamp int64  `json:"start_timestamp"`
	StopTimestamp  int64  `json:"stop_timestamp"`
	Stream         string `json:"stream"`
	Padding        bool   `json:"padding"`
}
