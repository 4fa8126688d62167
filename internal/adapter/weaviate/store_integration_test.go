package weaviate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/adapter/weaviate"
	"pdfrag/internal/rag"
	"pdfrag/internal/testutils"
	"pdfrag/internal/vector"
)

func TestWeaviateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	ctx := context.Background()
	spec := vector.IndexSpec{Name: "PdfChunkIT", Dimension: 3, Metric: "cosine"}

	created, err := vector.EnsureIndex(ctx, vector.NewWeaviateClientAdapter(s.Weaviate), spec, vector.ReadyWait{Timeout: 30 * time.Second, Interval: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, created)

	store := weaviate.NewStore(s.Weaviate, spec.Name, spec.Dimension)
	records := []rag.IndexRecord{
		{ID: "chunk_0", Vector: []float32{1, 0, 0}, Payload: rag.Payload{Text: "Postgres is a database", Filename: "db.pdf"}},
		{ID: "chunk_1", Vector: []float32{0, 1, 0}, Payload: rag.Payload{Text: "NSQ is a queue", Filename: "db.pdf"}},
	}
	require.NoError(t, store.Upsert(ctx, records))

	// Same id overwrites.
	records[0].Payload.Text = "Postgres is a relational database"
	require.NoError(t, store.Upsert(ctx, records[:1]))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err := store.Query(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chunk_0", matches[0].ID)
	assert.Equal(t, "Postgres is a relational database", matches[0].Text)

	// Second ensure is a no-op.
	created, err = vector.EnsureIndex(ctx, vector.NewWeaviateClientAdapter(s.Weaviate), spec, vector.ReadyWait{Timeout: time.Second})
	require.NoError(t, err)
	assert.False(t, created)
}
