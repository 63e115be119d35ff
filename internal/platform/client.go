package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/amlpipe/internal/component"
	"resty.dev/v3"
)

const (
	DefaultEndpoint   = "https://management.azure.com"
	DefaultAPIVersion = "2024-04-01"
)

// workspacePath is the resource path of the workspace, relative to the
// endpoint. Path parameters are filled per request.
const workspacePath = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroup}" +
	"/providers/Microsoft.MachineLearningServices/workspaces/{workspace}"

// Client is the set of service operations the tool needs.
type Client interface {
	EnsureCompute(ctx context.Context, spec ComputeSpec) (*Compute, error)
	EnsureEnvironment(ctx context.Context, spec EnvironmentSpec) (*Environment, error)
	GetLatestData(ctx context.Context, name string) (*DataAsset, error)
	RegisterComponent(ctx context.Context, def *component.Definition) (string, error)
	SubmitJob(ctx context.Context, req JobRequest) (*JobInfo, error)
	GetJob(ctx context.Context, name string) (*JobInfo, error)
}

// Workspace identifies the target workspace.
type Workspace struct {
	SubscriptionID string
	ResourceGroup  string
	Name           string
}

// ResourceID returns the resource-manager ID of the workspace.
func (w Workspace) ResourceID() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s",
		w.SubscriptionID, w.ResourceGroup, w.Name)
}

func (w Workspace) validate() error {
	if w.SubscriptionID == "" || w.ResourceGroup == "" || w.Name == "" {
		return errors.New("subscription, resource group and workspace name are required")
	}
	return nil
}

// Options configures a RESTClient.
type Options struct {
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	// APIVersion defaults to DefaultAPIVersion.
	APIVersion string
	Timeout    time.Duration
	Tokens     TokenSource
}

// RESTClient implements Client over the REST API.
type RESTClient struct {
	http       *resty.Client
	workspace  Workspace
	apiVersion string
	tokens     TokenSource
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient creates a client bound to one workspace.
func NewRESTClient(ws Workspace, opts Options) (*RESTClient, error) {
	if err := ws.validate(); err != nil {
		return nil, err
	}
	if opts.Tokens == nil {
		return nil, errors.New("a token source is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Minute
	}

	hc := resty.New().
		SetBaseURL(opts.Endpoint).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &RESTClient{
		http:       hc,
		workspace:  ws,
		apiVersion: opts.APIVersion,
		tokens:     opts.Tokens,
	}, nil
}

// Workspace returns the workspace the client is bound to.
func (c *RESTClient) Workspace() Workspace {
	return c.workspace
}

// request prepares an authenticated request with the workspace path
// parameters and API version set.
func (c *RESTClient) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(map[string]string{
			"subscriptionId": c.workspace.SubscriptionID,
			"resourceGroup":  c.workspace.ResourceGroup,
			"workspace":      c.workspace.Name,
		}).
		SetQueryParam("api-version", c.apiVersion), nil
}

// versionList is the paged list shape shared by versioned assets.
type versionList[T any] struct {
	Value []T `json:"value"`
}

// latestQuery asks for the newest version only.
func latestQuery(r *resty.Request) *resty.Request {
	return r.SetQueryParam("$orderBy", "createdtime desc").SetQueryParam("$top", "1")
}
