// Package cli is responsible for the command-line interface of the
// application. It turns arguments, a settings file and the environment into
// a validated app.Config and dispatches to the run, validate and refs
// commands, decoupling the main application logic from the CLI's
// implementation details.
package cli
