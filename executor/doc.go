// Package executor provides concrete futurelite.Executor backends and
// a registry to select them by name.
//
//   - Pool: a fixed set of workers with one queue and one executor
//     context each.
//   - Inline: runs work synchronously on the scheduling goroutine.
//   - FileIO: a futurelite.IOExecutor for positional file I/O (unix).
//   - Registry: explicit name to factory registration.
package executor
