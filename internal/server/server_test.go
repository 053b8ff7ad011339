package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shelfscan/internal/app"
	"shelfscan/internal/output"
	"shelfscan/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out       *output.Map
	release   chan struct{}
	reprocess chan bool
}

func (f *fakeRunner) ProcessAll(_ context.Context, reprocess bool) (pipeline.Summary, error) {
	f.reprocess <- reprocess
	<-f.release
	f.out.Set("Shelf 1.png", []int{7})
	return pipeline.Summary{Processed: 1}, nil
}

func (f *fakeRunner) Output() *output.Map { return f.out }

func performRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) (*gin.Engine, *fakeRunner, *app.Scheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	runner := &fakeRunner{
		out:       output.New(),
		release:   make(chan struct{}),
		reprocess: make(chan bool, 1),
	}
	sched := app.NewScheduler()
	return New(runner, sched).Router(), runner, sched
}

func TestStatusIdle(t *testing.T) {
	r, _, _ := setupTestServer(t)
	resp := performRequest(r, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, false, body["running"])
	assert.Equal(t, float64(0), body["entries"])
}

func TestProcessLifecycle(t *testing.T) {
	r, runner, sched := setupTestServer(t)

	resp := performRequest(r, http.MethodPost, "/process?reprocess=true")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.True(t, <-runner.reprocess)

	resp = performRequest(r, http.MethodPost, "/process")
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = performRequest(r, http.MethodGet, "/status")
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, "process", body["job"])

	close(runner.release)
	require.NoError(t, sched.Current().Wait())

	resp = performRequest(r, http.MethodGet, "/output")
	require.Equal(t, http.StatusOK, resp.Code)
	var out map[string][]int
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, map[string][]int{"Shelf 1.png": {7}}, out)
}

func TestProcessRejectsBadFlag(t *testing.T) {
	r, _, _ := setupTestServer(t)
	resp := performRequest(r, http.MethodPost, "/process?reprocess=maybe")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListenAndServeStops(t *testing.T) {
	_, runner, sched := setupTestServer(t)
	s := New(runner, sched)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
