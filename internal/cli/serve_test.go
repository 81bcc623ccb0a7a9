package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowtrim/pkg/buildinfo"
	"github.com/matzehuels/flowtrim/pkg/config"
	"github.com/matzehuels/flowtrim/pkg/errors"
	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/observability"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

const testSegmentsJSON = `[
	{"COMID": 1, "toCOMID": 2, "LENGTHKM": 0.5, "TotDASqKM": 1},
	{"COMID": 2, "toCOMID": 3, "LENGTHKM": 5, "TotDASqKM": 2},
	{"COMID": 3, "LENGTHKM": 5, "TotDASqKM": 3}
]`

func newTestServer(t *testing.T, defaults config.Collapse) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := log.New(io.Discard)
	srv := newServer(pipeline.NewRunner(nil, nil, logger), logger, defaults, reg)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, reg
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServeCollapse(t *testing.T) {
	ts, _ := newTestServer(t, config.Collapse{})

	resp := post(t, ts.URL+"/v1/collapse", `{"options":{"thresh":1,"add_category":true},"segments":`+testSegmentsJSON+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body collapseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	_, err := uuid.Parse(body.RunID)
	assert.NoError(t, err)
	assert.Equal(t, body.RunID, resp.Header.Get("X-Run-ID"))
	assert.NotEmpty(t, body.TableHash)
	assert.Equal(t, 1, body.Stats.Removed)
	assert.Equal(t, 1, body.Stats.Headwaters)
	require.Len(t, body.Members, 1)
	assert.Equal(t, []int64{2, 1}, body.Members[0].Members)

	require.Len(t, body.Segments, 3)
	assert.Equal(t, int64(2), body.Segments[0].JoinedToCOMID)
	assert.Equal(t, network.CategoryHeadwater, body.Segments[0].Category)
}

func TestServeCollapseDefaults(t *testing.T) {
	// Without options the server threshold applies.
	ts, _ := newTestServer(t, config.Collapse{Thresh: 0.1})

	resp := post(t, ts.URL+"/v1/collapse", `{"segments":`+testSegmentsJSON+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body collapseResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body.Stats.Removed)
}

func TestServeCollapseErrors(t *testing.T) {
	ts, _ := newTestServer(t, config.Collapse{})

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{"malformed json", `{"segments":`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"unknown field", `{"rows":[]}`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"empty table", `{"segments":[]}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"negative thresh", `{"options":{"thresh":-1},"segments":` + testSegmentsJSON + `}`, http.StatusBadRequest, errors.ErrCodeInvalidThreshold},
		{
			"conflicting duplicate",
			`{"segments":[{"COMID":1,"LENGTHKM":1},{"COMID":1,"LENGTHKM":2}]}`,
			http.StatusBadRequest, errors.ErrCodeDuplicateSegment,
		},
		{"self loop", `{"segments":[{"COMID":1,"toCOMID":1,"LENGTHKM":1}]}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/collapse", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
			assert.Equal(t, resp.Header.Get("X-Run-ID"), body.Error.RunID)
		})
	}
}

func TestServeRender(t *testing.T) {
	ts, _ := newTestServer(t, config.Collapse{})

	resp := post(t, ts.URL+"/v1/render?format=dot", `{"segments":`+testSegmentsJSON+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/vnd.graphviz", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2" -> "3";`)

	resp = post(t, ts.URL+"/v1/render?format=gif", `{"segments":`+testSegmentsJSON+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeHealthAndMetrics(t *testing.T) {
	ts, reg := newTestServer(t, config.Collapse{})
	observability.Register(observability.NewPrometheus(reg))
	t.Cleanup(observability.Reset)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, buildinfo.Version, health.Build.Version)

	post(t, ts.URL+"/v1/collapse", `{"options":{"thresh":1},"segments":`+testSegmentsJSON+`}`)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `flowtrim_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
	assert.Contains(t, text, `route="/v1/collapse"`)
	assert.Contains(t, text, `flowtrim_collapse_runs_total{status="ok"} 1`)
}
