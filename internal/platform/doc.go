// Package platform talks to the managed machine-learning service.
//
// Everything the tool needs from the service goes through the Client
// interface: provisioning a compute cluster, resolving or creating the
// execution environment, finding the latest version of a data asset,
// registering step definitions, and submitting and reading jobs. RESTClient
// implements it on top of the service's resource-manager REST API. Requests
// are authenticated with a bearer token from a TokenSource.
package platform
