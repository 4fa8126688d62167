package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"pdfrag/internal/rag"
)

type Store struct {
	client    *weaviate.Client
	class     string
	dimension int
}

func NewStore(client *weaviate.Client, class string, dimension int) *Store {
	return &Store{client: client, class: class, dimension: dimension}
}

// ObjectID maps a chunk id onto a stable Weaviate UUID so re-upserting the same id replaces the object.
func ObjectID(class, chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("pdfrag:"+class+"/"+chunkID)).String())
}

func (s *Store) Upsert(ctx context.Context, records []rag.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has dimension %d, index %s expects %d", rag.ErrConfiguration, r.ID, len(r.Vector), s.class, s.dimension)
		}
		objects = append(objects, &models.Object{
			Class: s.class,
			ID:    ObjectID(s.class, r.ID),
			Properties: map[string]interface{}{
				"chunkId":  r.ID,
				"text":     r.Payload.Text,
				"filename": r.Payload.Filename,
			},
			Vector: models.C11yVector(r.Vector),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch upsert: %v", rag.ErrIndexUnavailable, err)
	}
	for _, o := range resp {
		if o.Result != nil && o.Result.Errors != nil && len(o.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: object %s: %s", rag.ErrIndexUnavailable, o.ID, o.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Query returns up to k nearest chunks. Score is 1 - distance, so results stay similarity-descending.
func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]rag.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrConfiguration, k)
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "text"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: near vector query: %v", rag.ErrIndexUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %s", rag.ErrIndexUnavailable, res.Errors[0].Message)
	}

	matches := []rag.Match{}
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches, nil
	}
	objects, ok := data[s.class].([]interface{})
	if !ok {
		return matches, nil
	}

	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		m := rag.Match{}
		if id, ok := props["chunkId"].(string); ok {
			m.ID = id
		}
		if text, ok := props["text"].(string); ok {
			m.Text = text
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				m.Score = float32(1 - d)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the number of vectors in the class.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: aggregate: %v", rag.ErrIndexUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: graphql error: %s", rag.ErrIndexUnavailable, res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	groups, ok := agg[s.class].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}
