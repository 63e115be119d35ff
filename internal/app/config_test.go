package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/specialistvlad/amlpipe/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		SubscriptionID:    "sub",
		ResourceGroup:     "rg",
		WorkspaceName:     "ws",
		ClusterName:       "cpu-cluster",
		MaxInstances:      4,
		EnvironmentName:   "env",
		EnvBaseImage:      "image",
		ExperimentName:    "exp",
		DeployEnvironment: "dev",
		ModelName:         "model",
		DataConfigPath:    "config.json",
		ComponentsPath:    "components",
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("Success: Valid config is copied", func(t *testing.T) {
		t.Parallel()
		in := validConfig()

		cfg, err := NewConfig(in)
		require.NoError(t, err)

		in.ModelName = "changed"
		assert.Equal(t, "model", cfg.ModelName)
	})

	t.Run("Failure: Every missing field is reported", func(t *testing.T) {
		t.Parallel()
		in := validConfig()
		in.DataConfigPath = ""
		in.WorkspaceName = ""

		_, err := NewConfig(in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_config_path")
		assert.Contains(t, err.Error(), "workspace_name")
	})

	t.Run("Failure: Inverted scale range", func(t *testing.T) {
		t.Parallel()
		in := validConfig()
		in.MinInstances = 3
		in.MaxInstances = 1

		_, err := NewConfig(in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_instances")
	})

	t.Run("Failure: Negative idle time", func(t *testing.T) {
		t.Parallel()
		in := validConfig()
		in.IdleTimeBeforeScaleDown = -1

		_, err := NewConfig(in)
		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("JSON format honours level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := newLogger("warn", "json", &buf)

		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "shown", line["msg"])
		assert.Equal(t, "v", line["k"])
	})

	t.Run("Unknown level falls back to info", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := newLogger("loud", "text", &buf)

		logger.Debug("hidden")
		logger.Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func TestNewApp_UsesAccessToken(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.AccessToken = "token"

	a, err := NewApp(&bytes.Buffer{}, &cfg)
	require.NoError(t, err)

	client, ok := a.client.(*platform.RESTClient)
	require.True(t, ok)
	assert.Equal(t, "ws", client.Workspace().Name)
}

func TestHandler_StatusBeforeSubmission(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.AccessToken = "token"
	a, err := NewApp(&bytes.Buffer{}, &cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"job_name":"","status":""}`, rec.Body.String())
}

func TestPollerObserverUpdatesStatus(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.AccessToken = "token"
	var seen []monitor.Status
	p := monitor.New()
	p.Observer = func(_ string, s monitor.Status) { seen = append(seen, s) }

	a, err := NewApp(&bytes.Buffer{}, &cfg, WithPoller(p))
	require.NoError(t, err)

	a.poller.Observer("job-9", monitor.StatusRunning)

	name, status, _ := a.status.get()
	assert.Equal(t, "job-9", name)
	assert.Equal(t, monitor.StatusRunning, status)
	assert.Equal(t, []monitor.Status{monitor.StatusRunning}, seen, "caller's observer is still called")
}
