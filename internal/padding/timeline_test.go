package padding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/playback/internal/models"
)

func TestInterleave(t *testing.T) {
	events := []models.Event{
		{StartTimestamp: 80, StopTimestamp: 120, Stream: "b.flv"},
		{StartTimestamp: 10, StopTimestamp: 50, Stream: "a.flv"},
	}
	paddings, err := Plan(events, 0, 200, models.NamespaceVideo)
	require.NoError(t, err)

	frags := Interleave(events, paddings)
	streams := make([]string, len(frags))
	for i, f := range frags {
		streams[i] = f.Stream
	}
	require.Equal(t, []string{"blank-beginning", "a.flv", "blank-0", "b.flv", "blank-end"}, streams)
	require.True(t, frags[0].Padding)
	require.False(t, frags[1].Padding)

	total, contiguous := Coverage(frags)
	require.True(t, contiguous)
	require.Equal(t, int64(200), total)
}

func TestMerge(t *testing.T) {
	for _, ca := range []struct {
		name string
		in   []models.Event
		want []models.Event
	}{
		{"empty", nil, nil},
		{"disjoint", []models.Event{ev(20, 30), ev(0, 10)}, []models.Event{ev(0, 10), ev(20, 30)}},
		{"overlapping", []models.Event{ev(0, 10), ev(5, 15)}, []models.Event{ev(0, 15)}},
		{"touching", []models.Event{ev(0, 10), ev(11, 15)}, []models.Event{ev(0, 15)}},
		{"contained", []models.Event{ev(0, 100), ev(10, 20), ev(150, 160)}, []models.Event{ev(0, 100), ev(150, 160)}},
	} {
		t.Run(ca.name, func(t *testing.T) {
			got, err := Merge(ca.in)
			require.NoError(t, err)
			require.Equal(t, ca.want, got)
		})
	}
}

func TestMergeSameStream(t *testing.T) {
	got, err := Merge([]models.Event{
		{StartTimestamp: 0, StopTimestamp: 100, Stream: "a.flv"},
		{StartTimestamp: 50, StopTimestamp: 300, Stream: "a.flv"},
	})
	require.NoError(t, err)
	require.Equal(t, []models.Event{{StartTimestamp: 0, StopTimestamp: 300, Stream: "a.flv"}}, got)
}

func TestMergeRejects(t *testing.T) {
	for _, ca := range []struct {
		name string
		in   []models.Event
		want error
	}{
		{"different streams", []models.Event{
			{StartTimestamp: 0, StopTimestamp: 100, Stream: "a.flv"},
			{StartTimestamp: 50, StopTimestamp: 300, Stream: "b.flv"},
		}, ErrStreamConflict},
		{"touching different streams", []models.Event{
			{StartTimestamp: 0, StopTimestamp: 100, Stream: "a.flv"},
			{StartTimestamp: 101, StopTimestamp: 300, Stream: "b.flv"},
		}, ErrStreamConflict},
		{"inverted", []models.Event{
			{StartTimestamp: 0, StopTimestamp: 100, Stream: "a.flv"},
			{StartTimestamp: 40, StopTimestamp: 20, Stream: "a.flv"},
		}, ErrInvalidEvent},
	} {
		t.Run(ca.name, func(t *testing.T) {
			got, err := Merge(ca.in)
			require.Nil(t, got)
			require.ErrorIs(t, err, ca.want)
			require.True(t, IsInvalidInput(err))
		})
	}
}

func TestMergeThenPlan(t *testing.T) {
	merged, err := Merge([]models.Event{ev(10, 40), ev(30, 50), ev(80, 120)})
	require.NoError(t, err)
	got, err := Plan(merged, 0, 200, models.NamespaceVideo)
	require.NoError(t, err)
	require.Equal(t, []models.Padding{pad(0, 9, "blank-beginning"), pad(51, 79, "blank-0"), pad(121, 199, "blank-end")}, got)
}
