// Package internal contains the implementation packages of the venok CLI.
//
// # Package Organization
//
//   - actions: the build command, from configuration to driver dispatch
//   - assets: copying and watching non-compiled files into the output
//   - compiler: tsc and swc drivers, watch sessions, the forked type checker
//   - compiler/pathalias: rewriting tsconfig path aliases in emitted code
//   - config: venok-cli.json loading, project resolution and plugin entries
//   - errors: typed errors and compiler diagnostic parsing
//   - logging: slog-backed structured logging
//   - metrics: prometheus build metrics
//   - plugins: resolving and loading compiler plugins
//   - proc: child process groups and process-tree termination
//   - toolchain: locating tsc and swc, tsconfig parsing, in-process emit
//   - ui: console output with builder prefixes
//   - watcher: fsnotify watching with quiet-period debouncing
//   - workspace: output directory housekeeping
//
// The cmd package wires these together; drivers report completion through
// callbacks rather than depending on the command layer.
package internal
