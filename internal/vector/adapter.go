package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

type WeaviateClientAdapter struct {
	Client *weaviate.Client
}

func NewWeaviateClientAdapter(client *weaviate.Client) *WeaviateClientAdapter {
	return &WeaviateClientAdapter{Client: client}
}

func (a *WeaviateClientAdapter) IndexExists(ctx context.Context, name string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(name).Do(ctx)
}

func (a *WeaviateClientAdapter) CreateIndex(ctx context.Context, spec IndexSpec) error {
	return a.Client.Schema().ClassCreator().WithClass(ChunkClass(spec)).Do(ctx)
}

// IndexReady reports whether the node is ready and the class is visible in the schema.
func (a *WeaviateClientAdapter) IndexReady(ctx context.Context, name string) (bool, error) {
	ready, err := a.Client.Misc().ReadyChecker().Do(ctx)
	if err != nil || !ready {
		return false, err
	}
	_, err = a.Client.Schema().ClassGetter().WithClassName(name).Do(ctx)
	return err == nil, err
}

// ChunkClass is the Weaviate class holding chunk vectors. Vectors are supplied by the caller.
func ChunkClass(spec IndexSpec) *models.Class {
	return &models.Class{
		Class:       spec.Name,
		Description: "A chunk of an ingested PDF document",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": spec.Metric,
		},
		Properties: []*models.Property{
			{
				Name:     "chunkId",
				DataType: []string{"text"},
			},
			{
				Name:     "text",
				DataType: []string{"text"},
			},
			{
				Name:     "filename",
				DataType: []string{"text"},
			},
		},
	}
}
