// Package gitrepo implements the fetch side of the pipeline: producing a local
// checkout of the configured repository at the pushed commit, with typed error
// classification and retry for transient network failures.
package gitrepo
