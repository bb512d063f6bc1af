package worker

import (
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/benchlab/fleetsched/pkg/log"
)

// AllowList is an append-only set of absolute paths a worker is
// willing to serve over HTTP. Paths are added as jobs launch; nothing
// ever removes one, since a finished job's stdout/stderr must stay
// readable for as long as the worker process lives.
type AllowList struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewAllowList constructs an empty allow-list.
func NewAllowList() *AllowList {
	return &AllowList{paths: make(map[string]struct{})}
}

// Add appends each path to the allow-list.
func (a *AllowList) Add(paths ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range paths {
		a.paths[p] = struct{}{}
	}
}

// Allowed reports whether path is on the allow-list.
func (a *AllowList) Allowed(path string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.paths[path]
	return ok
}

// FileHandler serves GET /files?path=<abs> for every allow-listed
// path, recovering any handler panic into a 500 rather than crashing
// the worker process.
func FileHandler(allowList *AllowList) http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" || !isAbs(path) {
			http.Error(w, "path must be an absolute query parameter", http.StatusBadRequest)
			return
		}
		if !allowList.Allowed(path) {
			http.Error(w, "path not allowed", http.StatusForbidden)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := io.Copy(w, f); err != nil {
			log.WithComponent("worker").Warn().Err(err).Str("path", path).Msg("file stream interrupted")
		}
	})

	return recoverMiddleware(handler)
}

func isAbs(path string) bool {
	return len(path) > 0 && path[0] == '/'
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithComponent("worker").Error().Interface("panic", rec).Msg("file handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
