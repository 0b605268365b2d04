package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// pingPeriod is how often idle progress connections are pinged.
	pingPeriod = 30 * time.Second
)

// Progress is one progress frame for a running job. The final frame has
// Final set, and Error when the run failed.
type Progress struct {
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Final bool   `json:"final,omitempty"`
	Error string `json:"error,omitempty"`
}

// Job tracks the progress of one simulation request and fans updates out to
// any number of websocket watchers.
type Job struct {
	mu       sync.Mutex
	last     Progress
	finished bool
	watchers map[chan Progress]struct{}
}

func newJob() *Job {
	return &Job{watchers: make(map[chan Progress]struct{})}
}

// Update records a progress point and forwards it to every watcher. A slow
// watcher drops intermediate frames rather than stall the engine.
func (j *Job) Update(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	j.last = Progress{Done: done, Total: total}
	for ch := range j.watchers {
		select {
		case ch <- j.last:
		default:
		}
	}
}

// Finish marks the job complete, emits the final frame, and closes every
// watcher channel. Later Update calls are ignored.
func (j *Job) Finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	j.finished = true
	j.last.Final = true
	if err != nil {
		j.last.Error = err.Error()
	}
	for ch := range j.watchers {
		select {
		case ch <- j.last:
		default:
		}
		close(ch)
	}
	j.watchers = nil
}

// Watch subscribes to progress frames. The channel is closed once the job
// finishes; cancel detaches early and is safe to call more than once. A
// watcher attaching after the job finished still receives the final frame.
func (j *Job) Watch() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)
	j.mu.Lock()
	if j.finished {
		last := j.last
		j.mu.Unlock()
		ch <- last
		close(ch)
		return ch, func() {}
	}
	if j.last.Total > 0 {
		ch <- j.last
	}
	j.watchers[ch] = struct{}{}
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		if _, ok := j.watchers[ch]; ok {
			delete(j.watchers, ch)
			close(ch)
		}
		j.mu.Unlock()
	}
	return ch, cancel
}

// Jobs is a bounded registry of recent jobs keyed by client-chosen ID.
// Finished jobs stay around for late watchers and fall out LRU-wise, so
// abandoned IDs cannot accumulate.
type Jobs struct {
	cache *lru.Cache[string, *Job]
}

// NewJobs creates a registry holding up to size jobs.
func NewJobs(size int) (*Jobs, error) {
	c, err := lru.New[string, *Job](size)
	if err != nil {
		return nil, fmt.Errorf("creating job registry: %w", err)
	}
	return &Jobs{cache: c}, nil
}

// Open returns the job with the given ID, creating it if new.
func (js *Jobs) Open(id string) *Job {
	if j, ok := js.cache.Get(id); ok {
		return j
	}
	j := newJob()
	if prev, ok, _ := js.cache.PeekOrAdd(id, j); ok {
		return prev
	}
	return j
}

// Get returns the job with the given ID if the registry still holds it.
func (js *Jobs) Get(id string) (*Job, bool) {
	return js.cache.Get(id)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressHandler upgrades to a websocket and streams progress frames for
// one job until the run completes or the client disconnects.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobs.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown job %q", id), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := job.Watch()
	defer cancel()

	// The read side only services close frames from the client.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case p, open := <-updates:
			if !open {
				deadline := time.Now().Add(writeWait)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
