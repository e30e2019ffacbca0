package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/pipeline"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (fakeSource) Stats() pipeline.Stats {
	return pipeline.Stats{Cycles: 12, Detections: 5, Enqueued: 4, Dropped: 1, Cached: 1}
}

func (fakeSource) Snapshot() []types.Annotation {
	return []types.Annotation{{Box: types.BoundingBox{X: 1, Y: 2, W: 3, H: 4}, Verdict: types.NotRecognized}}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := get(t, Router(fakeSource{}, nil), "/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestFaces(t *testing.T) {
	w := get(t, Router(fakeSource{}, nil), "/api/faces")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"x":1,"y":2,"w":3,"h":4,"verdict":"Not Recognized"}]}`, w.Body.String())
}

func TestStats(t *testing.T) {
	w := get(t, Router(fakeSource{}, nil), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data pipeline.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, fakeSource{}.Stats(), body.Data)
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.Frames.Add(3)

	w := get(t, Router(fakeSource{}, m), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "facegate_frames_total 3"))

	w = get(t, Router(fakeSource{}, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
