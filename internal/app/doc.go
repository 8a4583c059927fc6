// Package app wires the environment-switch machinery into a runnable
// application. It builds the execution context with its long-lived
// collaborators, discovers modules on disk, drives the switch operations and
// reports the resulting registries, decoupled from any specific entrypoint
// like a CLI or server.
package app
