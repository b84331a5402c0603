package padding

import (
	"sort"

	"github.com/aura-webinar/playback/internal/models"
)

// Interleave merges events and paddings into one list ordered by start
// timestamp, ready for concatenation.
func Interleave(events []models.Event, paddings []models.Padding) []models.Fragment {
	out := make([]models.Fragment, 0, len(events)+len(paddings))
	for _, e := range events {
		out = append(out, models.Fragment{
			StartTimestamp: e.StartTimestamp,
			StopTimestamp:  e.StopTimestamp,
			Stream:         e.Stream,
		})
	}
	for _, p := range paddings {
		out = append(out, models.Fragment{
			StartTimestamp: p.StartTimestamp,
			StopTimestamp:  p.StopTimestamp,
			Stream:         p.Stream,
			Padding:        true,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTimestamp < out[j].StartTimestamp
	})
	return out
}

// Merge coalesces overlapping or touching events into single events. Events
// are only joined when they share a Stream; an inverted event or a join
// across different streams is rejected with an *InvalidInputError.
func Merge(events []models.Event) ([]models.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	sorted := SortByStart(events)
	for i, e := range sorted {
		if e.StopTimestamp < e.StartTimestamp {
			return nil, invalid(ErrInvalidEvent, "event %d: [%d, %d]", i, e.StartTimestamp, e.StopTimestamp)
		}
	}
	out := []models.Event{sorted[0]}
	for _, e := range sorted[1:] {
		cur := &out[len(out)-1]
		if e.StartTimestamp <= cur.StopTimestamp || e.StartTimestamp == cur.StopTimestamp+1 {
			if e.Stream != cur.Stream {
				return nil, invalid(ErrStreamConflict, "%q [%d, %d] meets %q [%d, %d]",
					cur.Stream, cur.StartTimestamp, cur.StopTimestamp, e.Stream, e.StartTimestamp, e.StopTimestamp)
			}
			if e.StopTimestamp > cur.StopTimestamp {
				cur.StopTimestamp = e.StopTimestamp
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Coverage returns the number of milliseconds covered by fragments and
// whether they are contiguous and non-overlapping.
func Coverage(fragments []models.Fragment) (total int64, contiguous bool) {
	contiguous = true
	for i, f := range fragments {
		total += f.StopTimestamp - f.StartTimestamp + 1
		if i > 0 && f.StartTimestamp != fragments[i-1].StopTimestamp+1 {
			contiguous = false
		}
	}
	return total, contiguous
}
