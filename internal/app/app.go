package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/specialistvlad/amlpipe/internal/platform"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	client     platform.Client
	poller     *monitor.Poller
	httpServer *http.Server
	status     jobState
}

// jobState is the last observed state of the submitted job.
type jobState struct {
	mu        sync.RWMutex
	name      string
	status    monitor.Status
	studioURL string
}

func (s *jobState) set(name string, status monitor.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.status = status
}

func (s *jobState) setStudioURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studioURL = url
}

func (s *jobState) get() (name string, status monitor.Status, studioURL string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.status, s.studioURL
}

// Option customizes an App.
type Option func(*App)

// WithClient replaces the service client. Used by tests and for custom
// transports.
func WithClient(c platform.Client) Option {
	return func(a *App) { a.client = c }
}

// WithPoller replaces the completion poller.
func WithPoller(p *monitor.Poller) Option {
	return func(a *App) { a.poller = p }
}

// NewApp is the constructor for the main application. Unless a client is
// supplied, it builds a REST client authenticated with the configured access
// token or, when none is set, the default credential chain.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		ctx:    context.Background(),
		outW:   outW,
		logger: logger,
		config: cfg,
		poller: monitor.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		client, err := newRESTClient(cfg)
		if err != nil {
			logger.Error(setupFailureMessage, "error", err)
			return nil, err
		}
		a.client = client
	}

	observer := a.poller.Observer
	a.poller.Observer = func(job string, status monitor.Status) {
		a.status.set(job, status)
		if observer != nil {
			observer(job, status)
		}
	}

	return a, nil
}

func newRESTClient(cfg *Config) (*platform.RESTClient, error) {
	var tokens platform.TokenSource
	if cfg.AccessToken != "" {
		tokens = platform.StaticToken(cfg.AccessToken)
	} else {
		cred, err := platform.NewDefaultCredential()
		if err != nil {
			return nil, err
		}
		tokens = cred
	}

	return platform.NewRESTClient(platform.Workspace{
		SubscriptionID: cfg.SubscriptionID,
		ResourceGroup:  cfg.ResourceGroup,
		Name:           cfg.WorkspaceName,
	}, platform.Options{
		Endpoint: cfg.Endpoint,
		Tokens:   tokens,
	})
}
