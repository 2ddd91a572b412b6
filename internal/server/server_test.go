package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/zoo/internal/config"
	"github.com/born-ml/zoo/internal/zoo"
)

func newTestServer(t *testing.T, preload ...string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 1
	cfg.Preload = preload
	s, err := New(cfg, "test")
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestModels(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var models []ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models, len(zoo.Names()))

	byName := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}
	lenet := byName["cifar10_lenet5"]
	assert.Equal(t, "cifar10-32", lenet.Dataset)
	assert.Equal(t, []int{64, 3, 32, 32}, []int(lenet.InputShape))
	assert.Equal(t, 62006, lenet.Parameters)
	assert.Equal(t, "cifar10-224", byName["alexnet"].Dataset)
}

func TestModel(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/models/mnist_aby3")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Name       string `json:"name"`
		Dataset    string `json:"dataset"`
		Output     []int  `json:"output_shape"`
		Total      int    `json:"total_parameters"`
		Trainable  int    `json:"trainable_parameters"`
		LayerCount []any  `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mnist_aby3", body.Name)
	assert.Equal(t, "mnist", body.Dataset)
	assert.Equal(t, []int{32, 10}, body.Output)
	assert.Equal(t, 118282, body.Total)
	assert.Equal(t, body.Total, body.Trainable)
	assert.NotEmpty(t, body.LayerCount)
}

func TestModel_Unknown(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/models/vgg16")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModel_Cached(t *testing.T) {
	s := newTestServer(t, "cifar10_lenet5")
	s.mu.Lock()
	first := s.summaries["cifar10_lenet5"]
	s.mu.Unlock()
	require.NotNil(t, first)

	again, err := s.summary("cifar10_lenet5")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestNew_PreloadUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Preload = []string{"vgg16"}
	_, err := New(cfg, "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, zoo.ErrUnknownModel)
}

func TestDataset(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		path  string
		name  string
		shape []int
	}{
		{"/datasets/mnist", "mnist", []int{32, 1, 28, 28}},
		{"/datasets/cifar10-32", "cifar10-32", []int{64, 3, 32, 32}},
		{"/datasets/resnet50_classifier", "cifar10-224", []int{64, 3, 224, 224}},
		{"/datasets/alexnet", "cifar10-224", []int{64, 3, 224, 224}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			var info DatasetInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, tt.shape, []int(info.Shape))
			assert.Equal(t, 10, info.Classes)
		})
	}

	assert.Equal(t, http.StatusNotFound, get(t, s, "/datasets/imagenet").Code)
}

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/info")
	require.Equal(t, http.StatusOK, rec.Code)

	var info Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, "CPU", info.Backend)
	assert.Equal(t, 1, info.Workers)
	assert.NotNil(t, info.Features.Flags)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/models", nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
