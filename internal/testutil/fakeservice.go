package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeToken is the bearer token FakeService accepts.
const FakeToken = "test-token"

const workspaceRoute = "/subscriptions/{sub}/resourceGroups/{rg}/providers/Microsoft.MachineLearningServices/workspaces/{ws}"

// RecordedRequest is a request the fake service received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// EnvironmentVersion is a stored environment version.
type EnvironmentVersion struct {
	Version string
	Image   string
	Conda   string
}

// FakeService is an in-memory stand-in for the ML service REST API. It keeps
// just enough state to serve the ensure/register/submit/poll round trip.
type FakeService struct {
	Server *httptest.Server

	mu           sync.Mutex
	requests     []RecordedRequest
	computes     map[string]bool
	environments map[string][]EnvironmentVersion
	data         map[string][]string
	components   map[string]json.RawMessage
	jobs         map[string]json.RawMessage
	statuses     []string
	polls        int
	failures     map[string]int
}

// NewFakeService starts a fake service that is shut down when the test ends.
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()

	f := &FakeService{
		computes:     make(map[string]bool),
		environments: make(map[string][]EnvironmentVersion),
		data:         make(map[string][]string),
		components:   make(map[string]json.RawMessage),
		jobs:         make(map[string]json.RawMessage),
		statuses:     []string{"Completed"},
		failures:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.record, f.authorize)
	r.Route(workspaceRoute, func(r chi.Router) {
		r.Get("/computes/{name}", f.getCompute)
		r.Put("/computes/{name}", f.putCompute)
		r.Get("/environments/{name}/versions", f.listEnvironment)
		r.Put("/environments/{name}/versions/{version}", f.putEnvironment)
		r.Get("/data/{name}/versions", f.listData)
		r.Put("/components/{name}/versions/{version}", f.putComponent)
		r.Put("/jobs/{name}", f.putJob)
		r.Get("/jobs/{name}", f.getJob)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL of the fake service.
func (f *FakeService) URL() string {
	return f.Server.URL
}

// AddCompute registers an existing cluster.
func (f *FakeService) AddCompute(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computes[name] = true
}

// HasCompute reports whether the cluster exists.
func (f *FakeService) HasCompute(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computes[name]
}

// AddEnvironmentVersion registers an environment version. Later calls are
// newer versions.
func (f *FakeService) AddEnvironmentVersion(name string, v EnvironmentVersion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.environments[name] = append(f.environments[name], v)
}

// EnvironmentVersions returns the stored versions of name, oldest first.
func (f *FakeService) EnvironmentVersions(name string) []EnvironmentVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EnvironmentVersion(nil), f.environments[name]...)
}

// AddData registers versions of a data asset, oldest first.
func (f *FakeService) AddData(name string, versions ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[name] = append(f.data[name], versions...)
}

// SetJobStatuses sets the statuses served by successive job reads. The last
// one repeats.
func (f *FakeService) SetJobStatuses(statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
	f.polls = 0
}

// FailNext makes the next n requests whose path contains fragment fail with
// a 500.
func (f *FakeService) FailNext(fragment string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[fragment] = n
}

// Components returns the registered component bodies keyed by "name:version".
func (f *FakeService) Components() map[string]json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]json.RawMessage, len(f.components))
	for k, v := range f.components {
		out[k] = v
	}
	return out
}

// Jobs returns the submitted job bodies keyed by job name.
func (f *FakeService) Jobs() map[string]json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]json.RawMessage, len(f.jobs))
	for k, v := range f.jobs {
		out[k] = v
	}
	return out
}

// Requests returns every request received so far.
func (f *FakeService) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// CountRequests counts requests with the given method whose path contains
// fragment.
func (f *FakeService) CountRequests(method, fragment string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.Contains(r.Path, fragment) {
			n++
		}
	}
	return n
}

func (f *FakeService) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		for fragment, n := range f.failures {
			if n > 0 && strings.Contains(r.URL.Path, fragment) {
				f.failures[fragment] = n - 1
				f.mu.Unlock()
				writeError(w, http.StatusInternalServerError, "InternalError", "injected failure")
				return
			}
		}
		f.mu.Unlock()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next.ServeHTTP(w, r)
	})
}

func (f *FakeService) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+FakeToken {
			writeError(w, http.StatusUnauthorized, "AuthenticationFailed", "missing or invalid token")
			return
		}
		if r.URL.Query().Get("api-version") == "" {
			writeError(w, http.StatusBadRequest, "MissingApiVersionParameter", "api-version is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeService) getCompute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !f.HasCompute(name) {
		writeError(w, http.StatusNotFound, "ResourceNotFound", fmt.Sprintf("compute %s not found", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":   r.URL.Path,
		"name": name,
		"properties": map[string]any{
			"computeType":       "AmlCompute",
			"provisioningState": "Succeeded",
		},
	})
}

func (f *FakeService) putCompute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.AddCompute(name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   r.URL.Path,
		"name": name,
		"properties": map[string]any{
			"computeType":       "AmlCompute",
			"provisioningState": "Creating",
		},
	})
}

func (f *FakeService) listEnvironment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	versions := f.EnvironmentVersions(name)
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "UserError", fmt.Sprintf("environment %s not found", name))
		return
	}
	latest := versions[len(versions)-1]
	writeJSON(w, http.StatusOK, map[string]any{
		"value": []any{map[string]any{
			"id":   r.URL.Path + "/" + latest.Version,
			"name": latest.Version,
			"properties": map[string]any{
				"image":     latest.Image,
				"condaFile": latest.Conda,
			},
		}},
	})
}

func (f *FakeService) putEnvironment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Properties struct {
			Image     string `json:"image"`
			CondaFile string `json:"condaFile"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	name, version := chi.URLParam(r, "name"), chi.URLParam(r, "version")
	f.AddEnvironmentVersion(name, EnvironmentVersion{Version: version, Image: body.Properties.Image, Conda: body.Properties.CondaFile})
	writeJSON(w, http.StatusCreated, map[string]any{"id": r.URL.Path, "name": version})
}

func (f *FakeService) listData(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	versions := append([]string(nil), f.data[name]...)
	f.mu.Unlock()
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "UserError", fmt.Sprintf("data %s not found", name))
		return
	}
	latest := versions[len(versions)-1]
	writeJSON(w, http.StatusOK, map[string]any{
		"value": []any{map[string]any{"id": r.URL.Path + "/" + latest, "name": latest}},
	})
}

func (f *FakeService) putComponent(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	name, version := chi.URLParam(r, "name"), chi.URLParam(r, "version")
	f.mu.Lock()
	f.components[name+":"+version] = body
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": r.URL.Path})
}

func (f *FakeService) putJob(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	f.jobs[name] = body
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, jobBody(r.URL.Path, name, "NotStarted"))
}

func (f *FakeService) getJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	_, known := f.jobs[name]
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	status := f.statuses[i]
	f.polls++
	f.mu.Unlock()

	if !known {
		writeError(w, http.StatusNotFound, "UserError", fmt.Sprintf("job %s not found", name))
		return
	}
	writeJSON(w, http.StatusOK, jobBody(r.URL.Path, name, status))
}

func jobBody(id, name, status string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": name,
		"properties": map[string]any{
			"jobType": "Pipeline",
			"status":  status,
			"services": map[string]any{
				"Studio": map[string]any{"endpoint": "https://ml.azure.com/runs/" + name},
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}
