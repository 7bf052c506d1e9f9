package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/db"
	"github.com/benjamin-macmichael/RobocopyManager/internal/engine"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/benjamin-macmichael/RobocopyManager/internal/notify"
	"github.com/benjamin-macmichael/RobocopyManager/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProc struct {
	once   sync.Once
	exitCh chan int
}

func (p *stubProc) Wait() (int, error) { return <-p.exitCh, nil }

func (p *stubProc) Kill() error {
	p.once.Do(func() { p.exitCh <- 1 })
	return nil
}

type stubRunner struct {
	mu    sync.Mutex
	procs []*stubProc
}

func (r *stubRunner) Start(name string, args []string) (engine.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	proc := &stubProc{exitCh: make(chan int, 2)}
	r.procs = append(r.procs, proc)
	return proc, nil
}

func newTestServer(t *testing.T) (*Server, *stubRunner, *engine.Coordinator) {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))

	runner := &stubRunner{}
	coord := engine.NewCoordinator("robocopy", runner, notify.NewBus())
	return NewServer(coord, 0), runner, coord
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestAddAndListJobs(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs", `{"name":"docs","src":"/data/src","dst":"/data/dst","threads":16}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "docs", job.Name)
	assert.True(t, job.Enabled)
	assert.Equal(t, model.JobStatusNeverRun, job.LastStatus)

	rec = do(s, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Jobs []model.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Jobs, 1)
}

func TestAddJobPersistsDisabled(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs", `{"name":"off","src":"/data/src","dst":"/data/dst","enabled":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	got, err := repository.NewJobRepository().GetByID(job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestUpdateJobScheduleToMidnight(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs",
		`{"name":"mv","src":"/data/src","dst":"/data/dst","schedule_on":true,"schedule_hour":14,"schedule_min":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// 00:00 is a valid schedule even when schedule_on is not resent.
	rec = do(s, http.MethodPut, "/jobs/1", `{"schedule_hour":0,"schedule_min":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, 0, job.ScheduleHour)
	assert.Equal(t, 0, job.ScheduleMin)
	assert.True(t, job.ScheduleOn)
}

func TestUpdateJobClearsExclusions(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs",
		`{"name":"ex","src":"/data/src","dst":"/data/dst","exclusions":"tmp;cache"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, http.MethodPut, "/jobs/1", `{"exclusions":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Empty(t, job.Exclusions)

	// An update that omits the field leaves it alone.
	rec = do(s, http.MethodPut, "/jobs/1", `{"exclusions":"logs"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(s, http.MethodPut, "/jobs/1", `{"name":"renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "logs", job.Exclusions)
}

func TestUpdateJobRejectsInvalidSchedule(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs", `{"name":"bad","src":"/data/src","dst":"/data/dst"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, http.MethodPut, "/jobs/1", `{"schedule_hour":24}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPut, "/jobs/1", `{"schedule_min":60}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddJobRejectsMissingPaths(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/jobs", `{"name":"broken","src":"","dst":"/data/dst"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunConflictWhileRunning(t *testing.T) {
	s, runner, coord := newTestServer(t)

	job, err := repository.NewJobRepository().Add(model.Job{
		Name: "run", SrcPath: t.TempDir(), DstPath: t.TempDir(),
		Threads: 4, Enabled: true, LastStatus: model.JobStatusNeverRun,
	})
	require.NoError(t, err)

	rec := do(s, http.MethodPost, "/jobs/1/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.procs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(s, http.MethodPost, "/jobs/1/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodPost, "/jobs/1/cancel", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	coord.Wait()

	got, err := repository.NewJobRepository().GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, got.LastStatus)
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var settings model.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, model.ModeCopy, settings.Mode)

	rec = do(s, http.MethodPut, "/settings",
		`{"Mode":"MIRROR","RetryCount":5,"RetryWaitSec":10,"Versioning":true,"RetentionDays":30,"MaxVersions":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/settings", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, model.ModeMirror, settings.Mode)
	assert.Equal(t, 30, settings.RetentionDays)
}

func TestSettingsRejectsInvalidMode(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPut, "/settings", `{"Mode":"SIDEWAYS"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	s, runner, coord := newTestServer(t)

	_, err := repository.NewJobRepository().Add(model.Job{
		Name: "hist", SrcPath: t.TempDir(), DstPath: t.TempDir(),
		Threads: 4, Enabled: true, LastStatus: model.JobStatusNeverRun,
	})
	require.NoError(t, err)

	rec := do(s, http.MethodPost, "/jobs/1/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.procs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	runner.mu.Lock()
	runner.procs[0].exitCh <- 0
	runner.mu.Unlock()
	coord.Wait()

	rec = do(s, http.MethodGet, "/history?n=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.RunHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobStatusSuccess, runs[0].Status)
}

func TestRunAllEndpoint(t *testing.T) {
	s, _, coord := newTestServer(t)

	repo := repository.NewJobRepository()
	for i := 0; i < 2; i++ {
		_, err := repo.Add(model.Job{
			Name: "all", SrcPath: t.TempDir(), DstPath: t.TempDir(),
			Threads: 4, Enabled: true, LastStatus: model.JobStatusNeverRun,
		})
		require.NoError(t, err)
	}

	rec := do(s, http.MethodPost, "/jobs/run-all", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result struct {
		Started int `json:"started"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Started)

	rec = do(s, http.MethodPost, "/jobs/cancel-all", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	coord.Wait()
	assert.Empty(t, coord.Snapshots())
}
