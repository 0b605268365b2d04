package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{Workers: 2})
	require.NoError(t, err)
	return s
}

func postSimulate(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/api/simulate", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	r := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestMetricsEndpointAnswers(t *testing.T) {
	s := newTestServer(t)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// Unlabeled collectors are present before any request.
	assert.Contains(t, w.Body.String(), "blochsim_locations_simulated_total")
	assert.Contains(t, w.Body.String(), "blochsim_simulation_duration_seconds")
}

func TestSimulateHandler_DemoDefaults(t *testing.T) {
	// GIVEN no sequence or phantom in the request
	s := newTestServer(t)

	// WHEN simulating
	w := postSimulate(t, s, `{}`)

	// THEN the demo pair runs: 3x3x1 locations, 100-sample FID each
	assert.Equal(t, http.StatusOK, w.Code)
	var resp SimulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "demo-fid", resp.Sequence)
	assert.Equal(t, "default", resp.Variant)
	assert.Equal(t, 9, resp.Locations)
	assert.Equal(t, 100, resp.Samples)
	require.Len(t, resp.Signals, 9)

	// Relaxation is disabled and the field is uniform, so every sample of
	// every location has unit magnitude after the 90 degree pulse.
	for _, row := range resp.Signals {
		require.Len(t, row.Re, 100)
		require.Len(t, row.Im, 100)
		for i := range row.Re {
			mag := math.Hypot(row.Re[i], row.Im[i])
			assert.InDelta(t, 1.0, mag, 1e-9)
		}
	}
}

func TestSimulateHandler_InlineSequence(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"sequence": "name: fid\nrf_raster: 1e-6\ngrad_raster: 1e-5\nblocks:\n  - adc:\n      samples: 5\n      dwell: 1e-5\n",
		"phantom": "name: single\nnx: 1\nny: 1\nnz: 1\nfov: [0.1, 0.1, 0.1]\ntissue:\n  pd: 2\n  t1: 0\n  t2: 0\n"
	}`
	w := postSimulate(t, s, body)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SimulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fid", resp.Sequence)
	assert.Equal(t, 1, resp.Locations)
	assert.Equal(t, 5, resp.Samples)

	// No pulse was played, so the readout sees equilibrium: zero signal.
	require.Len(t, resp.Signals, 1)
	for i := range resp.Signals[0].Re {
		assert.InDelta(t, 0.0, resp.Signals[0].Re[i], 1e-12)
		assert.InDelta(t, 0.0, resp.Signals[0].Im[i], 1e-12)
	}
}

func TestSimulateHandler_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{
			name:     "malformed JSON",
			body:     `{"sequence":`,
			contains: "decoding request",
		},
		{
			name:     "unknown JSON field",
			body:     `{"sequnce": "x"}`,
			contains: "decoding request",
		},
		{
			name:     "inline and path sequence together",
			body:     `{"sequence": "name: a\n", "sequence_path": "/tmp/seq.yaml"}`,
			contains: "mutually exclusive",
		},
		{
			name:     "invalid sequence YAML",
			body:     `{"sequence": "blocks: ["}`,
			contains: "loading sequence",
		},
		{
			name:     "bad variant",
			body:     `{"variant": "warp"}`,
			contains: "unknown spin variant",
		},
		{
			name:     "bad field mode",
			body:     `{"field_mode": "cubic"}`,
			contains: "unknown field mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := postSimulate(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestSimulateHandler_RecordsMetrics(t *testing.T) {
	s := newTestServer(t)

	postSimulate(t, s, `{}`)
	postSimulate(t, s, `{"variant": "warp"}`)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	body := w.Body.String()
	assert.Contains(t, body, `blochsim_simulations_total{outcome="completed"} 1`)
	assert.Contains(t, body, `blochsim_simulations_total{outcome="rejected"} 1`)
	assert.Contains(t, body, "blochsim_locations_simulated_total 9")
	assert.Contains(t, body, `blochsim_http_requests_total{code="200",method="POST"} 1`)
	assert.Contains(t, body, `blochsim_http_requests_total{code="400",method="POST"} 1`)
}

func TestProgressHandler_UnknownJob(t *testing.T) {
	s := newTestServer(t)

	r := httptest.NewRequest("GET", "/api/jobs/nope/progress", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgressHandler_RequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	s.jobs.Open("j1")

	// A plain GET cannot upgrade; the upgrader answers 400.
	r := httptest.NewRequest("GET", "/api/jobs/j1/progress", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialProgress(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/jobs/" + id + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestProgressHandler_StreamsFrames(t *testing.T) {
	s := newTestServer(t)
	job := s.jobs.Open("j1")

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn := dialProgress(t, ts, "j1")
	defer conn.Close()

	job.Update(3, 9)
	job.Finish(nil)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// Depending on when the watcher attached it sees the intermediate frame,
	// the final frame, or both; the final frame always carries the counts.
	var p Progress
	for !p.Final {
		require.NoError(t, conn.ReadJSON(&p))
		assert.Equal(t, 3, p.Done)
		assert.Equal(t, 9, p.Total)
	}
	assert.Empty(t, p.Error)
}

func TestProgressHandler_FinishedJobStillAnswers(t *testing.T) {
	s := newTestServer(t)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	// Run to completion first, then watch.
	resp, err := http.Post(ts.URL+"/api/simulate", "application/json",
		strings.NewReader(`{"job_id": "e2e"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn := dialProgress(t, ts, "e2e")
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var p Progress
	require.NoError(t, conn.ReadJSON(&p))
	assert.True(t, p.Final)
	assert.Equal(t, 9, p.Done)
	assert.Equal(t, 9, p.Total)
	assert.Empty(t, p.Error)
}

func TestJobWatch(t *testing.T) {
	t.Run("updates reach the watcher in order", func(t *testing.T) {
		j := newJob()
		ch, cancel := j.Watch()
		defer cancel()

		j.Update(1, 2)
		j.Update(2, 2)

		p := <-ch
		assert.Equal(t, Progress{Done: 1, Total: 2}, p)
		p = <-ch
		assert.Equal(t, Progress{Done: 2, Total: 2}, p)
	})

	t.Run("finish closes the channel after the final frame", func(t *testing.T) {
		j := newJob()
		ch, cancel := j.Watch()
		defer cancel()

		j.Update(5, 5)
		j.Finish(nil)

		var frames []Progress
		for p := range ch {
			frames = append(frames, p)
		}
		require.NotEmpty(t, frames)
		assert.True(t, frames[len(frames)-1].Final)
	})

	t.Run("late watcher gets the final frame", func(t *testing.T) {
		j := newJob()
		j.Update(4, 4)
		j.Finish(assert.AnError)

		ch, cancel := j.Watch()
		defer cancel()

		p, open := <-ch
		assert.True(t, open)
		assert.True(t, p.Final)
		assert.Equal(t, 4, p.Done)
		assert.NotEmpty(t, p.Error)

		_, open = <-ch
		assert.False(t, open)
	})

	t.Run("cancel detaches without blocking later updates", func(t *testing.T) {
		j := newJob()
		ch, cancel := j.Watch()
		cancel()
		cancel() // idempotent

		j.Update(1, 3)
		j.Finish(nil)

		_, open := <-ch
		assert.False(t, open)
	})

	t.Run("mid-run watcher catches up on the last frame", func(t *testing.T) {
		j := newJob()
		j.Update(7, 10)

		ch, cancel := j.Watch()
		defer cancel()

		p := <-ch
		assert.Equal(t, Progress{Done: 7, Total: 10}, p)
	})
}

func TestJobsRegistry(t *testing.T) {
	js, err := NewJobs(2)
	require.NoError(t, err)

	a := js.Open("a")
	assert.Same(t, a, js.Open("a"))

	_, ok := js.Get("missing")
	assert.False(t, ok)

	// Capacity 2: opening a third evicts the oldest.
	js.Open("b")
	js.Open("c")
	_, ok = js.Get("a")
	assert.False(t, ok)
}

func TestStatsHandlerExposition(t *testing.T) {
	stats := NewStats()
	stats.RecSimulation("completed")
	stats.RecLocations(27)
	stats.RecDuration(0.25)
	stats.RecWWW("200", "POST")

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	stats.Handler().ServeHTTP(w, r)

	body := w.Body.String()
	assert.Contains(t, body, `blochsim_simulations_total{outcome="completed"} 1`)
	assert.Contains(t, body, "blochsim_locations_simulated_total 27")
	assert.Contains(t, body, "blochsim_simulation_duration_seconds_count 1")
	assert.Contains(t, body, `blochsim_http_requests_total{code="200",method="POST"} 1`)
}
