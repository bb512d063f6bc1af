// Package dashboard serves the operator-facing HTTP surface: the
// single-page UI, the JSON state snapshot it polls, a health check, an
// action endpoint for job signals, a proxy onto worker file servers,
// and the Prometheus metrics endpoint.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/benchlab/fleetsched/pkg/log"
	"github.com/benchlab/fleetsched/pkg/metrics"
	"github.com/benchlab/fleetsched/pkg/types"
)

// fileProxyTimeout bounds how long the /files proxy waits on a worker.
const fileProxyTimeout = 10 * time.Second

// fileProxyChunkSize is the buffer size used when streaming a proxied
// file back to the browser.
const fileProxyChunkSize = 8 * 1024

// StateProvider is the scheduler capability the dashboard depends on.
// Defined locally so this package never imports pkg/scheduler.
type StateProvider interface {
	State() types.DashboardState
	EnqueueSignal(sig types.DashboardSignal)
}

// Dashboard holds the HTTP handlers and the scheduler they read from.
type Dashboard struct {
	title  string
	sched  StateProvider
	client *http.Client
}

// New constructs a Dashboard backed by sched.
func New(title string, sched StateProvider) *Dashboard {
	return &Dashboard{
		title:  title,
		sched:  sched,
		client: &http.Client{Timeout: fileProxyTimeout},
	}
}

// Handler builds the dashboard's http.Handler, wrapped with request
// metrics for every route.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", instrument("index", d.index))
	mux.HandleFunc("/api/state", instrument("state", d.state))
	mux.HandleFunc("/health", instrument("health", d.health))
	mux.HandleFunc("/api/job_action", instrument("job_action", d.jobAction))
	mux.HandleFunc("/files", instrument("files", d.proxyFiles))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				log.WithComponent("dashboard").Error().Interface("panic", p).Str("route", route).Msg("handler panic")
				rec.Header().Set("Content-Type", "application/json")
				rec.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(rec).Encode(map[string]any{"ok": false, "error": "internal server error"})
			}
			timer.ObserveDurationVec(metrics.DashboardRequestDuration, route)
			metrics.DashboardRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}()
		h(rec, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (d *Dashboard) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, d.title, d.title)
}

func (d *Dashboard) state(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.sched.State()); err != nil {
		log.WithComponent("dashboard").Error().Err(err).Msg("failed to encode state")
	}
}

func (d *Dashboard) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "title": d.title})
}

// jobActionRequest is the POST /api/job_action body, mirroring a
// DashboardSignal one-to-one.
type jobActionRequest struct {
	Experiment string `json:"experiment"`
	JobID      string `json:"job_id"`
	Host       string `json:"host"`
	PID        *int   `json:"pid"`
	Signal     string `json:"signal"`
}

func (d *Dashboard) jobAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jobActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if !types.ValidJobSignal(req.Signal) {
		http.Error(w, fmt.Sprintf("unrecognized signal %q", req.Signal), http.StatusBadRequest)
		return
	}
	if req.Experiment == "" || req.JobID == "" || req.Host == "" || req.PID == nil {
		http.Error(w, "experiment, job_id, host and pid are required", http.StatusBadRequest)
		return
	}

	d.sched.EnqueueSignal(types.DashboardSignal{
		Experiment: req.Experiment,
		JobID:      req.JobID,
		Host:       req.Host,
		PID:        *req.PID,
		Signal:     types.JobSignal(req.Signal),
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "received": req, "server_epoch": types.Now()})
}

// proxyFiles streams a file from the named worker's file server,
// mirroring its status and content type.
func (d *Dashboard) proxyFiles(w http.ResponseWriter, r *http.Request) {
	hostDomain := r.URL.Query().Get("host")
	path := r.URL.Query().Get("path")
	if hostDomain == "" || path == "" || path[0] != '/' {
		http.Error(w, "missing host or absolute path", http.StatusBadRequest)
		return
	}

	workerURL := fmt.Sprintf("http://%s/files?path=%s", hostDomain, url.QueryEscape(path))
	ctx, cancel := context.WithTimeout(r.Context(), fileProxyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, workerURL, nil)
	if err != nil {
		http.Error(w, "bad upstream request", http.StatusInternalServerError)
		return
	}

	resp, err := d.client.Do(req)
	if err != nil {
		http.Error(w, "upstream worker unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)

	buf := make([]byte, fileProxyChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return
			}
			metrics.FileProxyBytesTotal.Add(float64(n))
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			log.WithComponent("dashboard").Warn().Err(readErr).Str("url", workerURL).Msg("file proxy stream interrupted")
			return
		}
	}
}

const indexPage = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>%s</title>
</head>
<body>
  <h1 id="title">%s</h1>
  <table id="jobs"></table>
  <script>
    async function refresh() {
      const resp = await fetch('/api/state');
      const state = await resp.json();
      const table = document.getElementById('jobs');
      table.innerHTML = '';
      for (const job of state.jobs) {
        const row = table.insertRow();
        row.style.color = job.status_color;
        row.insertCell().innerText = job.id;
        row.insertCell().innerText = job.experiment;
        row.insertCell().innerText = job.host;
        row.insertCell().innerText = job.status;
      }
    }
    setInterval(refresh, 2000);
    refresh();
  </script>
</body>
</html>
`
