package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/amlpipe/internal/app"
	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Harness is a prepared integration run: a fake service, a temp directory
// holding the data config, conda file and stage definitions, and a config
// pointing at all of them. Tests adjust any of these before calling Run.
type Harness struct {
	Service *FakeService
	Dir     string
	Config  app.Config
	Sleeper *Sleeper
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// NewHarness prepares an integration run. files are written on top of the
// defaults, relative to the temp directory; an empty value deletes a default.
func NewHarness(t *testing.T, files map[string]string) *Harness {
	t.Helper()

	dir := t.TempDir()
	all := map[string]string{
		"data-config.json": DefaultDataConfig,
		"conda.yml":        DefaultConda,
	}
	for name, content := range StageFiles {
		all[filepath.Join("components", name)] = content
	}
	for name, content := range files {
		all[filepath.FromSlash(name)] = content
	}
	for name, content := range all {
		if content == "" {
			continue
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	svc := NewFakeService(t)
	svc.AddData("taxi-dev", "1", "2")
	svc.AddData("taxi-prod", "5")

	return &Harness{
		Service: svc,
		Dir:     dir,
		Sleeper: &Sleeper{},
		Config: app.Config{
			SubscriptionID:          "sub-1",
			ResourceGroup:           "rg-1",
			WorkspaceName:           "ws-1",
			ClusterName:             "cpu-cluster",
			ClusterSize:             "STANDARD_DS3_V2",
			ClusterRegion:           "eastus",
			MaxInstances:            4,
			IdleTimeBeforeScaleDown: 1800,
			EnvironmentName:         "taxi-train-env",
			EnvBaseImage:            "mcr.microsoft.com/azureml/openmpi4.1.0-ubuntu20.04",
			CondaPath:               filepath.Join(dir, "conda.yml"),
			EnvDescription:          "Environment created using Conda.",
			ExperimentName:          "taxi-experiment",
			DisplayName:             "taxi-run",
			DeployEnvironment:       "dev",
			BuildReference:          "build-1",
			ModelName:               "taxi-model",
			DataConfigPath:          filepath.Join(dir, "data-config.json"),
			ComponentsPath:          filepath.Join(dir, "components"),
			Endpoint:                svc.URL(),
			AccessToken:             FakeToken,
			LogFormat:               "text",
			LogLevel:                "debug",
		},
	}
}

// Run builds the app from the harness config and runs it with a background
// context.
func (h *Harness) Run(t *testing.T) *HarnessResult {
	t.Helper()
	return h.RunWithContext(context.Background(), t)
}

// RunWithContext builds the app and runs it with ctx. The poller uses the
// default interval, step and budget but never actually sleeps.
func (h *Harness) RunWithContext(ctx context.Context, t *testing.T) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	poller := &monitor.Poller{
		Interval: monitor.DefaultInterval,
		Step:     monitor.DefaultStep,
		Budget:   monitor.DefaultBudget,
		Sleep:    h.Sleeper.Sleep,
	}

	cfg, err := app.NewConfig(h.Config)
	if err != nil {
		return &HarnessResult{Err: err}
	}

	testApp, err := app.NewApp(logBuffer, cfg, app.WithPoller(poller))
	if err == nil {
		err = testApp.Run(ctx)
	}

	if os.Getenv("AMLPIPE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       err,
		App:       testApp,
	}
}
