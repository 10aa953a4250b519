// Package workspace manages workspace directories for pipeline runs, supporting
// both ephemeral (timestamped) and persistent (fixed-path) modes.
//
// Ephemeral mode creates timestamped directories (e.g., docpages-20260824-122336)
// suitable for one-shot runs, cleaning up completely after use.
//
// Persistent mode uses a fixed directory path that persists across runs,
// enabling incremental fetches of the source repository.
package workspace
