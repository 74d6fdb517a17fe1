// Package inmemorystore provides a thread-safe, in-memory implementation
// of the resultstore.Store interface. It is suitable for the editor, the CLI
// and tests, where results only need to live as long as the process.
package inmemorystore
