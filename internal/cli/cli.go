package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/specialistvlad/amlpipe/internal/app"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that stand in for flags,
// e.g. AMLPIPE_SUBSCRIPTION_ID for --subscription_id.
const EnvPrefix = "AMLPIPE"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// A flag that is not given on the command line is taken from its environment
// variable, then from the file named by --config, then from its default.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("amlpipe", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
amlpipe - Assemble and submit the taxi-fare training pipeline to Azure Machine Learning.

Usage:
  amlpipe --data_config_path PATH [options]

Every option can also be set through an environment variable named
AMLPIPE_<OPTION> (upper case, dashes as underscores) or in the YAML file
given with --config.

Options:
`)
		flagSet.PrintDefaults()
	}

	subscriptionID := flagSet.String("subscription_id", "", "Azure subscription id.")
	resourceGroup := flagSet.String("resource_group_name", "", "Azure Machine Learning resource group.")
	workspace := flagSet.String("workspace_name", "", "Azure Machine Learning workspace name.")
	clusterName := flagSet.String("cluster_name", "", "Compute cluster name.")
	clusterSize := flagSet.String("cluster_size", "", "Compute cluster VM size, used when the cluster is created.")
	clusterRegion := flagSet.String("cluster_region", "", "Compute cluster region, used when the cluster is created.")
	minInstances := flagSet.Int("min_instances", 0, "Minimum number of cluster nodes.")
	maxInstances := flagSet.Int("max_instances", 4, "Maximum number of cluster nodes.")
	idleTime := flagSet.Int("idle_time_before_scale_down", 1800, "Seconds an idle node is kept before scale down.")
	buildReference := flagSet.String("build_reference", "", "Unique identifier of the CI run.")
	deployEnvironment := flagSet.String("deploy_environment", "", "Execution and deployment environment, e.g. dev, test, prod.")
	experimentName := flagSet.String("experiment_name", "", "Experiment the job is submitted under.")
	displayName := flagSet.String("display_name", "", "Display name of the job.")
	waitFlag := flagSet.String("wait_for_completion", "False", "Wait for the job to finish: True or False.")
	environmentName := flagSet.String("environment_name", "", "Execution environment name.")
	baseImage := flagSet.String("env_base_image_name", "", "Base image of the execution environment.")
	condaPath := flagSet.String("conda_path", "", "Path to the conda specification of the execution environment.")
	envDescription := flagSet.String("env_description", "Environment created using Conda.", "Description of a newly created environment version.")
	modelName := flagSet.String("model_name", "", "Name the trained model is registered under (required; there is no placeholder default).")
	outputFile := flagSet.String("output_file", "", "File to write the submitted job name to.")
	dataConfigPath := flagSet.String("data_config_path", "", "Path to the JSON data config (required).")
	componentsPath := flagSet.String("components_path", "mlops/nyc_taxi/components", "Directory with the six step definition files.")
	endpoint := flagSet.String("endpoint", "", "Resource manager endpoint. Defaults to the public cloud.")
	accessToken := flagSet.String("access_token", "", "Pre-acquired bearer token. Defaults to the Azure credential chain.")
	healthPort := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and status server. 0 is disabled.")
	logFormat := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	configPath := flagSet.String("config", "", "Optional YAML file with option values.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	if flagSet.NArg() > 0 {
		return nil, false, usageError("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}
	slog.Debug("Arguments parsed successfully.")

	if err := applyFallbacks(flagSet, *configPath); err != nil {
		return nil, false, err
	}

	wait, err := parseBool(*waitFlag)
	if err != nil {
		return nil, false, usageError("invalid wait_for_completion %q: must be True or False", *waitFlag)
	}

	format := strings.ToLower(*logFormat)
	if format != "text" && format != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	level := strings.ToLower(*logLevel)
	switch level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		SubscriptionID:          *subscriptionID,
		ResourceGroup:           *resourceGroup,
		WorkspaceName:           *workspace,
		ClusterName:             *clusterName,
		ClusterSize:             *clusterSize,
		ClusterRegion:           *clusterRegion,
		MinInstances:            *minInstances,
		MaxInstances:            *maxInstances,
		IdleTimeBeforeScaleDown: *idleTime,
		EnvironmentName:         *environmentName,
		EnvBaseImage:            *baseImage,
		CondaPath:               *condaPath,
		EnvDescription:          *envDescription,
		ExperimentName:          *experimentName,
		DisplayName:             *displayName,
		DeployEnvironment:       *deployEnvironment,
		BuildReference:          *buildReference,
		ModelName:               *modelName,
		DataConfigPath:          *dataConfigPath,
		ComponentsPath:          *componentsPath,
		OutputFile:              *outputFile,
		WaitForCompletion:       wait,
		Endpoint:                *endpoint,
		AccessToken:             *accessToken,
		LogFormat:               format,
		LogLevel:                level,
		HealthcheckPort:         *healthPort,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}

// applyFallbacks fills every flag not given on the command line from the
// environment or the config file.
func applyFallbacks(flagSet *flag.FlagSet, configPath string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = v.GetString("config")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return usageError("failed to read config file %s: %v", configPath, err)
		}
		slog.Debug("Config file loaded.", "path", configPath)
	}

	given := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { given[f.Name] = true })

	var errs []error
	flagSet.VisitAll(func(f *flag.Flag) {
		if given[f.Name] || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		if err := flagSet.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})
	if len(errs) > 0 {
		return usageError("%s", errors.Join(errs...).Error())
	}
	return nil
}

// parseBool accepts the usual boolean spellings. Empty means false.
func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
