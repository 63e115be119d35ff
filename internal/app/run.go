package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/amlpipe/internal/component"
	"github.com/specialistvlad/amlpipe/internal/ctxlog"
	"github.com/specialistvlad/amlpipe/internal/dataconfig"
	"github.com/specialistvlad/amlpipe/internal/fsutil"
	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/specialistvlad/amlpipe/internal/pipeline"
	"github.com/specialistvlad/amlpipe/internal/platform"
)

// setupFailureMessage is logged for every failed call to the service before
// the job is running.
const setupFailureMessage = "Invalid credentials or error while creating ML environment."

// Run provisions the cluster and environment, submits the job graph and, if
// configured, waits for it to finish.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	cfg := a.config

	compute, err := a.client.EnsureCompute(ctx, platform.ComputeSpec{
		Name:                       cfg.ClusterName,
		Size:                       cfg.ClusterSize,
		Region:                     cfg.ClusterRegion,
		MinInstances:               cfg.MinInstances,
		MaxInstances:               cfg.MaxInstances,
		IdleSecondsBeforeScaleDown: cfg.IdleTimeBeforeScaleDown,
	})
	if err != nil {
		return a.setupError(fmt.Errorf("failed to prepare compute cluster: %w", err))
	}

	conda, err := a.readConda()
	if err != nil {
		return err
	}
	env, err := a.client.EnsureEnvironment(ctx, platform.EnvironmentSpec{
		Name:        cfg.EnvironmentName,
		Image:       cfg.EnvBaseImage,
		CondaFile:   conda,
		Description: cfg.EnvDescription,
	})
	if err != nil {
		return a.setupError(fmt.Errorf("failed to prepare environment: %w", err))
	}
	a.logger.Info(fmt.Sprintf("Environment: %s, version: %s", env.Name, env.Version))

	datasetName, found, err := dataconfig.Resolve(cfg.DataConfigPath, cfg.DeployEnvironment)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no dataset for environment '%s' in %s", dataconfig.ErrDatasetNotFound, cfg.DeployEnvironment, cfg.DataConfigPath)
	}
	asset, err := a.client.GetLatestData(ctx, datasetName)
	if err != nil {
		return a.setupError(err)
	}

	set, err := component.LoadSet(ctx, cfg.ComponentsPath)
	if err != nil {
		return err
	}
	job, err := pipeline.Build(ctx, pipeline.Params{
		ClusterName:       compute.Name,
		EnvironmentRef:    env.Reference(),
		DisplayName:       cfg.DisplayName,
		DeployEnvironment: cfg.DeployEnvironment,
		BuildReference:    cfg.BuildReference,
		ModelName:         cfg.ModelName,
		DataAssetID:       asset.ID,
	}, set)
	if err != nil {
		return fmt.Errorf("failed to assemble job graph: %w", err)
	}
	if order, err := job.Order(); err == nil {
		a.logger.Debug("Job graph ready.", "order", order)
	}

	ids, err := a.registerComponents(ctx, job)
	if err != nil {
		return a.setupError(err)
	}

	info, err := a.client.SubmitJob(ctx, platform.JobRequest{
		Experiment:   cfg.ExperimentName,
		Job:          job,
		ComponentIDs: ids,
	})
	if err != nil {
		return a.setupError(err)
	}
	a.status.set(info.Name, info.Status)
	a.status.setStudioURL(info.StudioURL)
	a.logger.Info(fmt.Sprintf("The job %s has been submitted!", info.Name), "studio_url", info.StudioURL)

	if cfg.OutputFile != "" {
		if err := fsutil.WriteFileAtomic(cfg.OutputFile, []byte(info.Name)); err != nil {
			return fmt.Errorf("failed to write job name: %w", err)
		}
		a.logger.Debug("Job name written.", "path", cfg.OutputFile)
	}

	if !cfg.WaitForCompletion {
		a.logger.Debug("App.Run method finished without waiting.")
		return nil
	}

	fetch := func(ctx context.Context) (monitor.Status, error) {
		current, err := a.client.GetJob(ctx, info.Name)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}
	if err := a.poller.Wait(ctx, info.Name, info.Status, fetch); err != nil {
		return err
	}

	a.logger.Info("job completed")
	a.logger.Debug("App.Run method finished.")
	return nil
}

// registerComponents registers each distinct step definition once and
// returns the component IDs keyed by step name.
func (a *App) registerComponents(ctx context.Context, job *pipeline.Job) (map[string]string, error) {
	byDefinition := make(map[string]string)
	ids := make(map[string]string, len(job.Steps))
	for _, step := range job.Steps {
		key := step.Component.Name + ":" + step.Component.Version
		id, ok := byDefinition[key]
		if !ok {
			var err error
			id, err = a.client.RegisterComponent(ctx, step.Component)
			if err != nil {
				return nil, err
			}
			byDefinition[key] = id
		}
		ids[step.Name] = id
	}
	a.logger.Debug("Components registered.", "count", len(byDefinition))
	return ids, nil
}

// readConda returns the conda specification, or "" when no path is set.
func (a *App) readConda() (string, error) {
	if a.config.CondaPath == "" {
		return "", nil
	}
	b, err := os.ReadFile(a.config.CondaPath)
	if err != nil {
		return "", fmt.Errorf("failed to read conda file: %w", err)
	}
	return string(b), nil
}

func (a *App) setupError(err error) error {
	a.logger.Error(setupFailureMessage, "error", err)
	return err
}
