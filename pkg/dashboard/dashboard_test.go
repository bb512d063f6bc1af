package dashboard

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benchlab/fleetsched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	state   types.DashboardState
	signals []types.DashboardSignal
}

func (f *fakeProvider) State() types.DashboardState { return f.state }
func (f *fakeProvider) EnqueueSignal(sig types.DashboardSignal) {
	f.signals = append(f.signals, sig)
}

func TestIndexServesHTML(t *testing.T) {
	d := New("fleet", &fakeProvider{})
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleet")
}

func TestStateServesJSON(t *testing.T) {
	provider := &fakeProvider{state: types.DashboardState{Title: "fleet", Hosts: []string{"worker-1"}}}
	d := New("fleet", provider)

	req := httptest.NewRequest("GET", "/api/state", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "worker-1")
}

func TestHealthReportsOK(t *testing.T) {
	d := New("fleet", &fakeProvider{})
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobActionRejectsNonPost(t *testing.T) {
	d := New("fleet", &fakeProvider{})
	req := httptest.NewRequest("GET", "/api/job_action", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobActionRejectsUnknownSignal(t *testing.T) {
	d := New("fleet", &fakeProvider{})
	body := bytes.NewBufferString(`{"experiment":"e","job_id":"j","signal":"BOGUS"}`)
	req := httptest.NewRequest("POST", "/api/job_action", body)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobActionEnqueuesSignal(t *testing.T) {
	provider := &fakeProvider{}
	d := New("fleet", provider)

	body := bytes.NewBufferString(`{"experiment":"e","job_id":"j","host":"h","pid":7,"signal":"TERM"}`)
	req := httptest.NewRequest("POST", "/api/job_action", body)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, provider.signals, 1)
	assert.Equal(t, types.JobSignalTerm, provider.signals[0].Signal)
}

func TestProxyFilesMissingParams(t *testing.T) {
	d := New("fleet", &fakeProvider{})
	req := httptest.NewRequest("GET", "/files", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyFilesStreamsFromWorker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("hello from worker"))
	}))
	defer upstream.Close()

	d := New("fleet", &fakeProvider{})
	req := httptest.NewRequest("GET", "/files?host="+upstream.Listener.Addr().String()+"&path=/tmp/stdout", nil)
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello from worker", rec.Body.String())
}
