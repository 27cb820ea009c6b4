package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/diagnose"
	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/run"
	"github.com/probelab/webpilot/internal/types"
)

// instantDiagnoser keeps server tests fast: one canned finding, no waiting.
type instantDiagnoser struct{}

func (instantDiagnoser) TestType() string { return "Login" }
func (instantDiagnoser) Steps() []string  { return []string{"Scan"} }
func (instantDiagnoser) Diagnose(context.Context, page.Page) (types.TestTypeDiagnosis, error) {
	return types.TestTypeDiagnosis{CanTest: []types.CheckItem{{Name: "Login surface"}}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *run.Manager) {
	t.Helper()
	m := run.NewManager()
	e := run.NewExecutor(m)
	e.Diagnosers = []diagnose.Diagnoser{instantDiagnoser{}}
	factory := func(context.Context, types.DeviceProfile) (page.Page, error) {
		return page.NewFake().Add("#go", "button", 1), nil
	}
	srv := httptest.NewServer(New(m, e, factory, types.RunOptions{
		Approval: types.ApprovalPolicy{Mode: types.ApprovalManual},
	}, t.Logf))
	t.Cleanup(srv.Close)
	return srv, m
}

func submitRun(t *testing.T, srv *httptest.Server, body createRunRequest) types.TestRun {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var rec types.TestRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	require.NotEmpty(t, rec.ID)
	return rec
}

func fetchRun(t *testing.T, srv *httptest.Server, id string) types.TestRun {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/runs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec types.TestRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	return rec
}

func postCommand(t *testing.T, srv *httptest.Server, id, cmd string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs/"+id+"/"+cmd, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func waitForStatus(t *testing.T, srv *httptest.Server, id string, want types.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fetchRun(t, srv, id).Status == want
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSubmitRunToCompletion(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Options:  &types.RunOptions{Approval: types.ApprovalPolicy{Mode: types.ApprovalAuto}},
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})

	waitForStatus(t, srv, rec.ID, types.StatusCompleted)

	final := fetchRun(t, srv, rec.ID)
	require.NotNil(t, final.Diagnosis)
	require.Len(t, final.Steps, 1)
	require.True(t, final.Steps[0].Success)

	// The recorded step is addressable on its own.
	resp, err := http.Get(srv.URL + "/api/runs/" + rec.ID + "/steps/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var step types.Step
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&step))
	require.Equal(t, "#go", step.Target)

	// Diagnosis progress reached the end.
	resp, err = http.Get(srv.URL + "/api/runs/" + rec.ID + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prog types.DiagnosisProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prog))
	require.InDelta(t, 100.0, prog.Percent, 0.001)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Options:  &types.RunOptions{Approval: types.ApprovalPolicy{Mode: types.ApprovalAuto}},
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})
	waitForStatus(t, srv, rec.ID, types.StatusCompleted)

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []types.TestRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	require.Equal(t, rec.ID, runs[0].ID)
}

func TestSubmitRunValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/runs", "application/json", bytes.NewReader([]byte(`{bad`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRunIs404(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.Equal(t, http.StatusNotFound, postCommand(t, srv, "nope", "pause").StatusCode)
}

func TestManualGateApproveOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})

	waitForStatus(t, srv, rec.ID, types.StatusWaitingApproval)
	require.Equal(t, http.StatusOK, postCommand(t, srv, rec.ID, "approve").StatusCode)
	waitForStatus(t, srv, rec.ID, types.StatusCompleted)

	// The gate does not reopen on a finished run.
	require.Equal(t, http.StatusConflict, postCommand(t, srv, rec.ID, "approve").StatusCode)
}

func TestCancelOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})

	waitForStatus(t, srv, rec.ID, types.StatusWaitingApproval)
	require.Equal(t, http.StatusOK, postCommand(t, srv, rec.ID, "cancel").StatusCode)
	waitForStatus(t, srv, rec.ID, types.StatusCancelled)
	require.Empty(t, fetchRun(t, srv, rec.ID).Steps)

	// Pause after the end is a conflict, not a crash.
	require.Equal(t, http.StatusConflict, postCommand(t, srv, rec.ID, "pause").StatusCode)
}

func TestInjectActionOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})
	waitForStatus(t, srv, rec.ID, types.StatusWaitingApproval)

	body := bytes.NewReader([]byte(`{"type":"click","selector":"#go"}`))
	resp, err := http.Post(srv.URL+"/api/runs/"+rec.ID+"/actions", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/runs/"+rec.ID+"/actions", "application/json", bytes.NewReader([]byte(`{oops`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApproveBaselineOverHTTP(t *testing.T) {
	t.Parallel()

	srv, m := newTestServer(t)
	rec := submitRun(t, srv, createRunRequest{
		URL:      "https://example.com",
		Options:  &types.RunOptions{Approval: types.ApprovalPolicy{Mode: types.ApprovalAuto}},
		Scripted: []brain.Action{{Type: "click", Selector: "#go"}},
	})
	waitForStatus(t, srv, rec.ID, types.StatusCompleted)

	require.Equal(t, http.StatusOK,
		postCommand(t, srv, rec.ID, "baselines/1/approve").StatusCode)
	_, ok := m.Baselines.Get(rec.ID, 1)
	require.True(t, ok)

	require.Equal(t, http.StatusNotFound,
		postCommand(t, srv, rec.ID, "baselines/99/approve").StatusCode)
	require.Equal(t, http.StatusBadRequest,
		postCommand(t, srv, rec.ID, "baselines/zero/approve").StatusCode)
}
