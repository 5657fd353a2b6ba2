package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	id1, err := p.Publish(ctx, "scrape-events", []byte(`{"job_id":"a"}`))
	require.NoError(t, err)
	id2, err := p.Publish(ctx, "scrape-events", []byte(`{"job_id":"b"}`))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "scrape-events", msgs[0].Topic)
	require.JSONEq(t, `{"job_id":"a"}`, string(msgs[0].Payload))
}
