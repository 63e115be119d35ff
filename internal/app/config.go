package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Workspace.
	SubscriptionID string
	ResourceGroup  string
	WorkspaceName  string

	// Compute cluster, created when missing.
	ClusterName             string
	ClusterSize             string
	ClusterRegion           string
	MinInstances            int
	MaxInstances            int
	IdleTimeBeforeScaleDown int // seconds

	// Execution environment.
	EnvironmentName string
	EnvBaseImage    string
	CondaPath       string
	EnvDescription  string

	// Job.
	ExperimentName    string
	DisplayName       string
	DeployEnvironment string
	BuildReference    string
	ModelName         string
	DataConfigPath    string
	ComponentsPath    string
	OutputFile        string
	WaitForCompletion bool

	// Service access. An empty AccessToken selects the default credential chain.
	Endpoint    string
	AccessToken string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	required := []struct {
		name  string
		value string
	}{
		{"data_config_path", cfg.DataConfigPath},
		{"subscription_id", cfg.SubscriptionID},
		{"resource_group_name", cfg.ResourceGroup},
		{"workspace_name", cfg.WorkspaceName},
		{"cluster_name", cfg.ClusterName},
		{"environment_name", cfg.EnvironmentName},
		{"env_base_image_name", cfg.EnvBaseImage},
		{"experiment_name", cfg.ExperimentName},
		{"deploy_environment", cfg.DeployEnvironment},
		{"model_name", cfg.ModelName},
		{"components_path", cfg.ComponentsPath},
	}

	var errs []error
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is a required configuration field and cannot be empty", r.name))
		}
	}
	if cfg.MinInstances < 0 {
		errs = append(errs, fmt.Errorf("min_instances must not be negative, got %d", cfg.MinInstances))
	}
	if cfg.MaxInstances < cfg.MinInstances {
		errs = append(errs, fmt.Errorf("max_instances (%d) must not be less than min_instances (%d)", cfg.MaxInstances, cfg.MinInstances))
	}
	if cfg.IdleTimeBeforeScaleDown < 0 {
		errs = append(errs, fmt.Errorf("idle_time_before_scale_down must not be negative, got %d", cfg.IdleTimeBeforeScaleDown))
	}
	if cfg.HealthcheckPort < 0 {
		errs = append(errs, errors.New("healthcheck-port must not be negative"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}
