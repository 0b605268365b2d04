package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blochsim/blochsim/sim"
	"github.com/blochsim/blochsim/sim/phantom"
	"github.com/blochsim/blochsim/sim/sequence"
)

// SimulateRequest is the POST /api/simulate body. Sequence and phantom come
// either inline as YAML documents or as server-side file paths; both absent
// means the built-in demo pair. job_id makes the run watchable on the
// progress websocket.
type SimulateRequest struct {
	JobID        string `json:"job_id,omitempty"`
	Sequence     string `json:"sequence,omitempty"`
	SequencePath string `json:"sequence_path,omitempty"`
	Phantom      string `json:"phantom,omitempty"`
	PhantomPath  string `json:"phantom_path,omitempty"`

	Variant   string  `json:"variant,omitempty"`
	SubSteps  int     `json:"sub_steps,omitempty"`
	Diffusion float64 `json:"diffusion,omitempty"`
	BValue    float64 `json:"b_value,omitempty"`
	T2Star    float64 `json:"t2_star,omitempty"`
	Ensemble  int     `json:"ensemble,omitempty"`
	Seed      int64   `json:"seed,omitempty"`

	FieldMode  string  `json:"field_mode,omitempty"`
	FieldScale float64 `json:"field_scale,omitempty"`

	Workers int `json:"workers,omitempty"`
}

// SimulateResponse is the POST /api/simulate reply, one signal row per
// phantom location.
type SimulateResponse struct {
	Job       string      `json:"job,omitempty"`
	Sequence  string      `json:"sequence"`
	Variant   string      `json:"variant"`
	Locations int         `json:"locations"`
	Samples   int         `json:"samples_per_location"`
	ElapsedMs float64     `json:"elapsed_ms"`
	Signals   []SignalRow `json:"signals"`
}

// SignalRow is the complex signal of one location, split into real and
// imaginary parts for JSON.
type SignalRow struct {
	Location int       `json:"location"`
	Re       []float64 `json:"re"`
	Im       []float64 `json:"im"`
}

func (req *SimulateRequest) sequence() (*sequence.Sequence, error) {
	switch {
	case req.Sequence != "" && req.SequencePath != "":
		return nil, errors.New("sequence and sequence_path are mutually exclusive")
	case req.Sequence != "":
		return sequence.Parse([]byte(req.Sequence))
	case req.SequencePath != "":
		return sequence.Load(req.SequencePath)
	}
	return sequence.Demo(), nil
}

func (req *SimulateRequest) phantom() (phantom.Phantom, error) {
	switch {
	case req.Phantom != "" && req.PhantomPath != "":
		return nil, errors.New("phantom and phantom_path are mutually exclusive")
	case req.Phantom != "":
		return phantom.Parse([]byte(req.Phantom))
	case req.PhantomPath != "":
		return phantom.Load(req.PhantomPath)
	}
	return phantom.Demo(), nil
}

func (req *SimulateRequest) spin() sim.SpinConfig {
	return sim.SpinConfig{
		Variant:   req.Variant,
		SubSteps:  req.SubSteps,
		Diffusion: req.Diffusion,
		BValue:    req.BValue,
		T2Star:    req.T2Star,
		Ensemble:  req.Ensemble,
		Seed:      req.Seed,
	}
}

// SimulateHandler parses the request, compiles the sequence through the
// program cache, runs the engine, and replies with the per-location signals.
func (s *Server) SimulateHandler(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.reject(w, fmt.Sprintf("decoding request: %v", err))
		return
	}

	seq, err := req.sequence()
	if err != nil {
		s.reject(w, fmt.Sprintf("loading sequence: %v", err))
		return
	}
	ph, err := req.phantom()
	if err != nil {
		s.reject(w, fmt.Sprintf("loading phantom: %v", err))
		return
	}
	spin := req.spin()
	if err := spin.Validate(); err != nil {
		s.reject(w, err.Error())
		return
	}
	fieldCfg := sim.FieldConfig{Mode: req.FieldMode, Scale: req.FieldScale}
	if err := fieldCfg.Validate(); err != nil {
		s.reject(w, err.Error())
		return
	}

	prog, err := s.cache.Get(seq)
	if err != nil {
		s.reject(w, fmt.Sprintf("compiling sequence: %v", err))
		return
	}

	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}
	opts := sim.RunOptions{Workers: workers, Spin: spin}

	var job *Job
	if req.JobID != "" {
		job = s.jobs.Open(req.JobID)
		opts.Progress = job.Update
	}

	start := time.Now()
	ds, err := sim.SimulatePhantom(r.Context(), ph, prog, fieldCfg.Build(), opts)
	if job != nil {
		job.Finish(err)
	}
	if err != nil {
		s.stats.RecSimulation("failed")
		http.Error(w, fmt.Sprintf("simulation failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.stats.RecSimulation("completed")
	s.stats.RecLocations(ds.Locations)
	s.stats.RecDuration(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSimulateResponse(req.JobID, ds))
}

func (s *Server) reject(w http.ResponseWriter, msg string) {
	s.stats.RecSimulation("rejected")
	http.Error(w, msg, http.StatusBadRequest)
}

func newSimulateResponse(jobID string, ds *sim.Dataset) SimulateResponse {
	resp := SimulateResponse{
		Job:       jobID,
		Sequence:  ds.SequenceName,
		Variant:   ds.Variant,
		Locations: ds.Locations,
		Samples:   ds.SamplesPerLocation,
		ElapsedMs: float64(ds.Elapsed) / float64(time.Millisecond),
		Signals:   make([]SignalRow, len(ds.Signals)),
	}
	for idx, row := range ds.Signals {
		sr := SignalRow{
			Location: idx,
			Re:       make([]float64, len(row)),
			Im:       make([]float64, len(row)),
		}
		for i, v := range row {
			sr.Re[i] = real(v)
			sr.Im[i] = imag(v)
		}
		resp.Signals[idx] = sr
	}
	return resp
}
