// Package fetch materializes remote git repositories as local clones.
//
// Fetcher clones a source into its clone directory, or pulls the existing clone,
// and remembers the local path in an injectable RepositoryCache. Concurrent
// requests for the same repository share a single clone or pull.
package fetch
