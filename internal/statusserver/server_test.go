package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

type statusFakeAdapter struct{ state models.JobState }

func (f *statusFakeAdapter) Submit(context.Context, models.BundleRef, models.JobSpec) (string, string, error) {
	return "backend-1", "/remote/work/backend-1", nil
}
func (f *statusFakeAdapter) Probe(context.Context, string) (models.JobState, error) {
	return f.state, nil
}
func (f *statusFakeAdapter) Cancel(context.Context, string) error { return nil }
func (f *statusFakeAdapter) StreamErrorContext(context.Context, string) (backend.StreamTail, error) {
	return backend.StreamTail{}, nil
}
func (f *statusFakeAdapter) ResultLocations(context.Context, string, string) (backend.ResultLocations, error) {
	return backend.ResultLocations{}, nil
}
func (f *statusFakeAdapter) FetchResultFile(context.Context, string, string) ([]byte, error) {
	return nil, nil
}
func (f *statusFakeAdapter) Cleanup(context.Context, string) error { return nil }
func (f *statusFakeAdapter) PreferredPollInterval() (time.Duration, bool) {
	return time.Second, true
}

var _ backend.Adapter = (*statusFakeAdapter)(nil)

type statusFakeHarvester struct{}

func (statusFakeHarvester) Harvest(context.Context, models.Job, backend.Adapter) (models.ResultArtifact, error) {
	return models.ResultArtifact{Success: &models.SuccessResult{Value: []byte("0"), FormatTag: "json-v1"}}, nil
}

func newTestServer(t *testing.T, state models.JobState) (*Server, *executor.Executor) {
	t.Helper()
	adapter := &statusFakeAdapter{state: state}
	exec := executor.New(executor.DefaultConfig(), map[models.BackendTag]backend.Adapter{
		models.BackendSSH: adapter,
	}, statusFakeHarvester{})
	t.Cleanup(exec.Stop)
	return New(exec), exec
}

func submitJob(t *testing.T, exec *executor.Executor) string {
	t.Helper()
	jobID, err := exec.Submit(context.Background(), models.JobSpec{
		Target: models.ClusterTarget{Kind: models.KindSSH, Host: "cluster.example.com", RemoteWorkDir: "/remote/work"},
	})
	require.NoError(t, err)
	return jobID
}

func TestHandleHealth_AlwaysOK(t *testing.T) {
	s, _ := newTestServer(t, models.StateRunning)
	e := NewEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetJob_ReportsTrackedJobState(t *testing.T) {
	s, exec := newTestServer(t, models.StateRunning)
	jobID := submitJob(t, exec)
	e := NewEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body jobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, jobID, body.JobID)
	assert.Equal(t, models.StateRunning, body.State)
}

func TestHandleGetJob_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t, models.StateRunning)
	e := NewEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetWorkerStats_ReflectsTrackedJobs(t *testing.T) {
	s, exec := newTestServer(t, models.StateRunning)
	submitJob(t, exec)
	e := NewEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/v1/workers/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body workerStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(16), body.WorkerPoolCapacity)
	assert.Equal(t, 1, body.TrackedJobs)
	assert.Equal(t, 1, body.RunningJobs)
	assert.Equal(t, 0, body.TerminalJobs)
}
