package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/amlpipe/internal/component"
	"github.com/specialistvlad/amlpipe/internal/dataconfig"
	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/specialistvlad/amlpipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SubmitWithoutWaiting(t *testing.T) {
	t.Parallel()

	// Arrange
	h := testutil.NewHarness(t, nil)
	outFile := filepath.Join(h.Dir, "job.txt")
	h.Config.OutputFile = outFile

	// Act
	result := h.Run(t)

	// Assert
	require.NoError(t, result.Err)
	testutil.AssertLogged(t, result, "Environment: taxi-train-env, version: 1")
	testutil.AssertLogged(t, result, "has been submitted!")
	testutil.AssertNotLogged(t, result, "job completed")

	assert.True(t, h.Service.HasCompute("cpu-cluster"), "missing cluster should be created")
	assert.Len(t, h.Service.Components(), 6)

	jobs := h.Service.Jobs()
	require.Len(t, jobs, 1)
	var name string
	for n := range jobs {
		name = n
	}
	_, err := uuid.Parse(name)
	require.NoError(t, err)

	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, name, string(written), "output file holds only the job name")

	assert.Zero(t, h.Service.CountRequests(http.MethodGet, "/jobs/"), "no polling without wait")
}

func TestRun_JobPayloadUsesResolvedResources(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, nil)
	h.Service.AddCompute("cpu-cluster")
	h.Service.AddEnvironmentVersion("taxi-train-env", testutil.EnvironmentVersion{
		Version: "2",
		Image:   h.Config.EnvBaseImage,
		Conda:   testutil.DefaultConda,
	})

	result := h.Run(t)
	require.NoError(t, result.Err)

	testutil.AssertLogged(t, result, "Environment: taxi-train-env, version: 2")
	assert.Zero(t, h.Service.CountRequests(http.MethodPut, "/computes/"))
	assert.Zero(t, h.Service.CountRequests(http.MethodPut, "/environments/"))

	for key, raw := range h.Service.Components() {
		var body struct {
			Properties struct {
				ComponentSpec struct {
					Environment string `json:"environment"`
				} `json:"componentSpec"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "azureml:taxi-train-env:2", body.Properties.ComponentSpec.Environment, key)
	}

	for _, raw := range h.Service.Jobs() {
		var body struct {
			Properties struct {
				Tags   map[string]string `json:"tags"`
				Inputs map[string]struct {
					URI string `json:"uri"`
				} `json:"inputs"`
			} `json:"properties"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.True(t, strings.HasSuffix(body.Properties.Inputs["pipeline_job_input"].URI, "/data/taxi-dev/versions/2"))
		assert.Equal(t, map[string]string{"environment": "dev", "build_reference": "build-1"}, body.Properties.Tags)
	}
}

func TestRun_DatasetFollowsDeployEnvironment(t *testing.T) {
	t.Parallel()

	h := testutil.NewHarness(t, nil)
	h.Config.DeployEnvironment = "prod"

	result := h.Run(t)
	require.NoError(t, result.Err)

	for _, raw := range h.Service.Jobs() {
		assert.Contains(t, string(raw), "/data/taxi-prod/versions/5")
	}
}

func TestRun_WaitForCompletion(t *testing.T) {
	t.Parallel()

	t.Run("Success: Completed job", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.WaitForCompletion = true
		h.Service.SetJobStatuses("Queued", "Running", "Completed")

		result := h.Run(t)

		require.NoError(t, result.Err)
		testutil.AssertLogged(t, result, "job completed")
		assert.Len(t, h.Sleeper.Pauses(), 3)
		assert.Equal(t, 3, h.Service.CountRequests(http.MethodGet, "/jobs/"))
	})

	t.Run("Failure: Failed job", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.WaitForCompletion = true
		h.Service.SetJobStatuses("Running", "Failed")

		result := h.Run(t)

		require.Error(t, result.Err)
		assert.True(t, errors.Is(result.Err, monitor.ErrJobUnsuccessful))
		var jobErr *monitor.JobError
		require.True(t, errors.As(result.Err, &jobErr))
		assert.Equal(t, monitor.KindFailed, jobErr.Kind)
		testutil.AssertNotLogged(t, result, "job completed")
	})

	t.Run("Failure: Job never finishes", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.WaitForCompletion = true
		h.Service.SetJobStatuses("Running")

		result := h.Run(t)

		var jobErr *monitor.JobError
		require.True(t, errors.As(result.Err, &jobErr))
		assert.Equal(t, monitor.KindTimedOut, jobErr.Kind)
		assert.Len(t, h.Sleeper.Pauses(), 241)
		assert.Equal(t, 3615*time.Second, jobErr.Elapsed)
	})

	t.Run("Failure: Context cancelled", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.WaitForCompletion = true
		h.Service.SetJobStatuses("Running")
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		cancel()

		result := h.RunWithContext(ctx, t)

		require.Error(t, result.Err)
		assert.False(t, errors.Is(result.Err, monitor.ErrJobUnsuccessful))
	})
}

func TestRun_SetupErrors(t *testing.T) {
	t.Parallel()

	t.Run("Failure: Unknown deploy environment", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.DeployEnvironment = "staging"

		result := h.Run(t)

		require.ErrorIs(t, result.Err, dataconfig.ErrDatasetNotFound)
		assert.Empty(t, h.Service.Jobs())
	})

	t.Run("Failure: Matching dataset entry has no name", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, map[string]string{
			"data-config.json": `{"datasets": [{"DATA_PURPOSE": "training", "ENV_NAME": "dev"}]}`,
		})

		result := h.Run(t)

		require.ErrorIs(t, result.Err, dataconfig.ErrMissingDatasetName)
		assert.Zero(t, h.Service.CountRequests(http.MethodGet, "/data/"))
		assert.Empty(t, h.Service.Jobs())
	})

	t.Run("Failure: Rejected credentials", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.AccessToken = "expired"

		result := h.Run(t)

		require.Error(t, result.Err)
		testutil.AssertLogged(t, result, "Invalid credentials or error while creating ML environment.")
		assert.Empty(t, h.Service.Jobs())
	})

	t.Run("Failure: Submission rejected", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Service.FailNext("/jobs/", 1)

		result := h.Run(t)

		require.Error(t, result.Err)
		testutil.AssertLogged(t, result, "Invalid credentials or error while creating ML environment.")
	})

	t.Run("Failure: Missing stage definition", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, map[string]string{"components/score.yml": ""})

		result := h.Run(t)

		require.ErrorIs(t, result.Err, component.ErrMissingStage)
	})

	t.Run("Failure: Missing conda file", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.CondaPath = filepath.Join(h.Dir, "nope.yml")

		result := h.Run(t)

		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "failed to read conda file")
	})

	t.Run("Failure: Invalid config", func(t *testing.T) {
		t.Parallel()
		h := testutil.NewHarness(t, nil)
		h.Config.ModelName = ""

		result := h.Run(t)

		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), "model_name")
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	// Arrange
	h := testutil.NewHarness(t, nil)
	h.Config.WaitForCompletion = true
	h.Service.SetJobStatuses("Running", "Completed")
	result := h.Run(t)
	require.NoError(t, result.Err)

	srv := httptest.NewServer(result.App.Handler())
	t.Cleanup(srv.Close)

	// Act
	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		JobName   string `json:"job_name"`
		Status    string `json:"status"`
		StudioURL string `json:"studio_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Completed", body.Status)
	_, ok := h.Service.Jobs()[body.JobName]
	assert.True(t, ok)
	assert.Contains(t, body.StudioURL, body.JobName)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	text, err := io.ReadAll(health.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", string(text))
}
