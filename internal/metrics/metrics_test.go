package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastythames/ssh-transfer/internal/cache"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("sshtransfer", reg)

	m.RunStarted("nightly")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsActive.WithLabelValues("nightly")))

	m.RunFinished("nightly", StatusOK, 3*time.Second)
	m.RunFinished("nightly", StatusConnectionFailure, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsActive.WithLabelValues("nightly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("nightly", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("nightly", StatusConnectionFailure)))

	m.Transfer("upload_files", "done", 2)
	m.Transfer("upload_files", "skipped", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("upload_files")))

	m.ConnectAttempt("sftp", errors.New("refused"))
	m.ConnectAttempt("sftp", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectAttempts.WithLabelValues("sftp", "error")))
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("sshtransfer", reg)
	m.Transfer("download_files", "done", 1)

	c := cache.NewMemCache()
	c.Set("b-job", cache.Result{Status: StatusOK, Files: 3})
	c.Set("a-job", cache.Result{Status: StatusTransferFailure, Err: "reset"})

	srv := httptest.NewServer(NewRouter(reg, c))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "a-job", got[0]["job"])
	assert.Equal(t, "reset", got[0]["error"])
	assert.Equal(t, float64(3), got[1]["files"])
}
