// Package padding computes which parts of a recording timeline are not
// covered by any captured segment and names the blank filler stream that
// must be generated for each of them.
package padding

import (
	"sort"
	"strconv"

	"github.com/aura-webinar/playback/internal/models"
)

const (
	deskshareIDPrefix = "ds-"
	blankIDPrefix     = "blank-"

	slotBeginning = "beginning"
	slotEnd       = "end"
)

// FillerStreamID returns the filler stream id for a gap slot. slot is
// "beginning", "end" or the zero-based index of the event preceding an
// interior gap.
func FillerStreamID(slot string, ns models.Namespace) string {
	id := blankIDPrefix + slot
	if ns == models.NamespaceDeskshare {
		return deskshareIDPrefix + id
	}
	return id
}

// InteriorStreamID is FillerStreamID for the gap following event i.
func InteriorStreamID(i int, ns models.Namespace) string {
	return FillerStreamID(strconv.Itoa(i), ns)
}

// Plan returns the paddings needed around events, in chronological order.
// Events and paddings together cover [first, last-1]: last itself is the end
// of the recording and is never covered by a padding. events is not
// modified. Invalid input is rejected with an *InvalidInputError before any
// interval is computed.
func Plan(events []models.Event, first, last int64, ns models.Namespace) ([]models.Padding, error) {
	sorted, err := prepare(events, first, last, ns)
	if err != nil {
		return nil, err
	}

	paddings := make([]models.Padding, 0, len(sorted)+1)

	head := sorted[0]
	if head.StartTimestamp > first {
		paddings = append(paddings, gap(first, head.StartTimestamp-1, FillerStreamID(slotBeginning, ns)))
	}

	for i := 0; i < len(sorted)-1; i++ {
		prev, next := sorted[i], sorted[i+1]
		start, stop := prev.StopTimestamp+1, next.StartTimestamp-1
		if stop >= start {
			paddings = append(paddings, gap(start, stop, InteriorStreamID(i, ns)))
		}
	}

	// The trailing gap stops one short of last: last marks the end of the
	// recording, not a covered millisecond.
	tail := sorted[len(sorted)-1]
	if tail.StopTimestamp < last && tail.StopTimestamp+1 < last {
		paddings = append(paddings, gap(tail.StopTimestamp+1, last-1, FillerStreamID(slotEnd, ns)))
	}

	return paddings, nil
}

func gap(start, stop int64, stream string) models.Padding {
	return models.Padding{StartTimestamp: start, StopTimestamp: stop, Gap: true, Stream: stream}
}

// prepare validates the input and returns a start-ordered copy of events.
func prepare(events []models.Event, first, last int64, ns models.Namespace) ([]models.Event, error) {
	if !ns.Valid() {
		return nil, invalid(ErrUnknownNamespace, "%q", ns)
	}
	if len(events) == 0 {
		return nil, &InvalidInputError{Err: ErrNoEvents}
	}
	if first > last {
		return nil, invalid(ErrInvalidBounds, "first %d after last %d", first, last)
	}

	sorted := SortByStart(events)
	for i, e := range sorted {
		if e.StopTimestamp < e.StartTimestamp {
			return nil, invalid(ErrInvalidEvent, "event %d: [%d, %d]", i, e.StartTimestamp, e.StopTimestamp)
		}
		if i > 0 && e.StartTimestamp <= sorted[i-1].StopTimestamp {
			return nil, invalid(ErrOverlappingEvents, "event %d starts at %d before event %d stops at %d",
				i, e.StartTimestamp, i-1, sorted[i-1].StopTimestamp)
		}
	}

	if head := sorted[0]; first > head.StartTimestamp {
		return nil, invalid(ErrInvalidBounds, "first %d after first event start %d", first, head.StartTimestamp)
	}
	if tail := sorted[len(sorted)-1]; last < tail.StopTimestamp {
		return nil, invalid(ErrInvalidBounds, "last %d before last event stop %d", last, tail.StopTimestamp)
	}
	return sorted, nil
}

// SortByStart returns a copy of events ordered by start timestamp. Events
// sharing a start timestamp keep their input order.
func SortByStart(events []models.Event) []models.Event {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTimestamp < sorted[j].StartTimestamp
	})
	return sorted
}
