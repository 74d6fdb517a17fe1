// Package app contains the core application logic. It wires the engine to
// its executors, observers and project files, and owns the run lifecycle,
// decoupled from any specific entrypoint like a CLI or server.
package app
