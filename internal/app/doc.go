// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the submission lifecycle: provisioning the
// cluster and environment, resolving the dataset, assembling and submitting
// the job graph, and optionally waiting for it to finish. It is decoupled
// from any specific entrypoint like a CLI.
package app
