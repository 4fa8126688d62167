package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "pdfrag/internal/adapter/weaviate"
	"pdfrag/internal/rag"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestStore_Upsert(t *testing.T) {
	var objects []map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body struct {
			Objects []map[string]interface{} `json:"objects"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		objects = body.Objects

		resp := make([]map[string]interface{}, len(body.Objects))
		for i, o := range body.Objects {
			resp[i] = map[string]interface{}{"id": o["id"], "class": o["class"], "result": map[string]interface{}{}}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, "PdfChunk", 3)
	err := store.Upsert(context.Background(), []rag.IndexRecord{
		{ID: "chunk_0", Vector: []float32{0.1, 0.2, 0.3}, Payload: rag.Payload{Text: "first", Filename: "a.pdf"}},
		{ID: "chunk_1", Vector: []float32{0.4, 0.5, 0.6}, Payload: rag.Payload{Text: "second", Filename: "a.pdf"}},
	})
	require.NoError(t, err)
	require.Len(t, objects, 2)

	props := objects[0]["properties"].(map[string]interface{})
	assert.Equal(t, "chunk_0", props["chunkId"])
	assert.Equal(t, "first", props["text"])
	assert.Equal(t, "a.pdf", props["filename"])
	assert.Equal(t, string(adapter.ObjectID("PdfChunk", "chunk_0")), objects[0]["id"])
	assert.Len(t, objects[0]["vector"], 3)
}

func TestStore_Upsert_ObjectError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"result": map[string]interface{}{"errors": map[string]interface{}{
				"error": []map[string]interface{}{{"message": "vector lengths don't match"}},
			}}},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, "PdfChunk", 1)
	err := store.Upsert(context.Background(), []rag.IndexRecord{{ID: "chunk_0", Vector: []float32{1}}})
	assert.ErrorIs(t, err, rag.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "vector lengths don't match")
}

func TestStore_Upsert_DimensionMismatch(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	defer ts.Close()

	store := adapter.NewStore(client, "PdfChunk", 384)
	err := store.Upsert(context.Background(), []rag.IndexRecord{{ID: "chunk_0", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, rag.ErrConfiguration)
}

func TestObjectID_Stable(t *testing.T) {
	assert.Equal(t, adapter.ObjectID("PdfChunk", "chunk_0"), adapter.ObjectID("PdfChunk", "chunk_0"))
	assert.NotEqual(t, adapter.ObjectID("PdfChunk", "chunk_0"), adapter.ObjectID("PdfChunk", "chunk_1"))
	assert.NotEqual(t, adapter.ObjectID("PdfChunk", "a.pdf/chunk_0"), adapter.ObjectID("PdfChunk", "b.pdf/chunk_0"))
}

func TestStore_Query(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query, _ := body["query"].(string)
		assert.Contains(t, query, "nearVector")
		assert.Contains(t, query, "limit")

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"PdfChunk": []interface{}{
						map[string]interface{}{
							"chunkId":     "chunk_4",
							"text":        "closest",
							"_additional": map[string]interface{}{"distance": 0.1},
						},
						map[string]interface{}{
							"chunkId":     "chunk_9",
							"text":        "further",
							"_additional": map[string]interface{}{"distance": 0.4},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, "PdfChunk", 2)
	matches, err := store.Query(context.Background(), []float32{0.1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "chunk_4", matches[0].ID)
	assert.Equal(t, "closest", matches[0].Text)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-6)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_Query_Errors(t *testing.T) {
	t.Run("GraphQL Error", func(t *testing.T) {
		client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]interface{}{{"message": "class PdfChunk not found"}},
			})
		})
		defer ts.Close()

		_, err := adapter.NewStore(client, "PdfChunk", 2).Query(context.Background(), []float32{1, 0}, 3)
		assert.ErrorIs(t, err, rag.ErrIndexUnavailable)
	})

	t.Run("Server Down", func(t *testing.T) {
		client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		defer ts.Close()

		_, err := adapter.NewStore(client, "PdfChunk", 2).Query(context.Background(), []float32{1, 0}, 3)
		assert.ErrorIs(t, err, rag.ErrIndexUnavailable)
	})

	t.Run("Invalid K", func(t *testing.T) {
		client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {})
		defer ts.Close()

		_, err := adapter.NewStore(client, "PdfChunk", 2).Query(context.Background(), []float32{1, 0}, 0)
		assert.ErrorIs(t, err, rag.ErrConfiguration)
	})
}

func TestStore_Count(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"PdfChunk": []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 42}},
					},
				},
			},
		})
	})
	defer ts.Close()

	count, err := adapter.NewStore(client, "PdfChunk", 2).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
