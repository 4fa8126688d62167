package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCounter struct{ mock.Mock }

func (m *MockCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(chunks, jobs, index *MockCounter)
		wantStatus int
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(c, j, i *MockCounter) {
				c.On("Count", mock.Anything).Return(12, nil)
				j.On("Count", mock.Anything).Return(2, nil)
				i.On("Count", mock.Anything).Return(6, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 12, data["chunk_rows"])
				assert.EqualValues(t, 6, data["indexed_vectors"])
				assert.EqualValues(t, 2, data["failed_jobs"])
			},
		},
		{
			name: "Index Unreachable",
			setupMocks: func(c, j, i *MockCounter) {
				c.On("Count", mock.Anything).Return(12, nil)
				j.On("Count", mock.Anything).Return(0, nil)
				i.On("Count", mock.Anything).Return(0, errors.New("connection refused"))
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Nil(t, data["indexed_vectors"])
			},
		},
		{
			name: "Chunk Count Error",
			setupMocks: func(c, j, i *MockCounter) {
				c.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]interface{})["code"])
			},
		},
		{
			name: "Job Count Error",
			setupMocks: func(c, j, i *MockCounter) {
				c.On("Count", mock.Anything).Return(1, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, jobs, index := new(MockCounter), new(MockCounter), new(MockCounter)
			tt.setupMocks(chunks, jobs, index)

			w := httptest.NewRecorder()
			NewHandler(chunks, jobs, index).GetStats(w, httptest.NewRequest("GET", "/stats", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.checkBody != nil {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				tt.checkBody(t, body)
			}
		})
	}
}

func TestHandler_GetStats_NoIndexCounter(t *testing.T) {
	chunks, jobs := new(MockCounter), new(MockCounter)
	chunks.On("Count", mock.Anything).Return(3, nil)
	jobs.On("Count", mock.Anything).Return(0, nil)

	w := httptest.NewRecorder()
	NewHandler(chunks, jobs, nil).GetStats(w, httptest.NewRequest("GET", "/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
