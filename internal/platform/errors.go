package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	// Code and Message come from the service's error envelope when present.
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.URL = resp.Request.URL
	}

	body := resp.String()
	var env errorEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = body
	}
	return apiErr
}

// check turns a transport error or an error status into an error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return newAPIError(resp)
	}
	return nil
}
