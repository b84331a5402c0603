package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRenderJobRoundTrip(t *testing.T) {
	id := uuid.New()
	job, raw, err := newJob(JobTypeTimelineRender, RenderPayload{TimelineID: id})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Zero(t, job.Attempt)

	decoded, err := decodeJob(raw)
	require.NoError(t, err)
	require.Equal(t, job.ID, decoded.ID)

	p, err := decoded.RenderPayload()
	require.NoError(t, err)
	require.Equal(t, id, p.TimelineID)
}

func TestRenderPayloadRejects(t *testing.T) {
	job, _, err := newJob("email", RenderPayload{TimelineID: uuid.New()})
	require.NoError(t, err)
	_, err = job.RenderPayload()
	require.ErrorContains(t, err, "unexpected type")

	job, _, err = newJob(JobTypeTimelineRender, RenderPayload{})
	require.NoError(t, err)
	_, err = job.RenderPayload()
	require.ErrorContains(t, err, "missing timeline_id")
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	_, err := decodeJob([]byte("not json"))
	require.Error(t, err)
	_, err = decodeJob([]byte(`{"payload":{}}`))
	require.Error(t, err)
}

func TestExhausted(t *testing.T) {
	job := &Job{}
	for i := 1; i < MaxRetries; i++ {
		job.Attempt = i
		require.False(t, exhausted(job))
	}
	job.Attempt = MaxRetries
	require.True(t, exhausted(job))
}
