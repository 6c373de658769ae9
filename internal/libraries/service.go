package libraries

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/gitlibs/internal/fetch"
	"github.com/temirov/gitlibs/internal/repository"
	pathutils "github.com/temirov/gitlibs/internal/utils/path"
)

const (
	fetchingSourcesMessageConstant = "fetching remote library sources"
	logFieldSourceCountConstant    = "source_count"
	logFieldCloneDirectoryConstant = "clone_directory"
)

// IndexBuilder turns configuration and positional candidates into a ready repository index.
type IndexBuilder struct {
	Logger          *zap.Logger
	Normalizer      *pathutils.CandidatePathNormalizer
	RepositoryCache fetch.RepositoryCache
	FileSystem      repository.FileSystem
}

// Build resolves the candidate list, fetches remote sources and constructs the index.
// Positional candidates replace the configured paths; fetched sources are appended.
func (builder IndexBuilder) Build(executionContext context.Context, positionalCandidates []string, configuration RepositoriesConfiguration) (*repository.Index, error) {
	logger := builder.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	normalizer := builder.Normalizer
	if normalizer == nil {
		normalizer = pathutils.NewCandidatePathNormalizer()
	}

	rawCandidates := configuration.Paths
	if len(positionalCandidates) > 0 {
		rawCandidates = positionalCandidates
	}
	candidatePaths := append([]string{}, rawCandidates...)

	if len(configuration.Fetch.Sources) > 0 {
		fetchedPaths, fetchError := builder.fetchSources(executionContext, logger, normalizer, configuration.Fetch)
		if fetchError != nil {
			return nil, fetchError
		}
		candidatePaths = append(candidatePaths, fetchedPaths...)
	}

	prober := repository.NewProber(repository.ProberOptions{
		FileSystem: builder.FileSystem,
		Logger:     logger,
		Timeout:    configuration.ProbeTimeout,
	})

	return repository.NewIndex(executionContext, normalizer.Normalize(candidatePaths), repository.IndexOptions{
		Prober:       prober,
		Logger:       logger,
		BranchSource: repository.BranchSource(configuration.BranchSource),
		Parallelism:  configuration.ProbeParallelism,
	})
}

func (builder IndexBuilder) fetchSources(executionContext context.Context, logger *zap.Logger, normalizer *pathutils.CandidatePathNormalizer, configuration FetchConfiguration) ([]string, error) {
	cloneDirectory := normalizer.ExpandHome(configuration.CloneDirectory)
	fetcher, fetcherError := fetch.NewFetcher(fetch.Options{
		CloneDirectory: cloneDirectory,
		Cache:          builder.RepositoryCache,
		Logger:         logger,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}

	logger.Info(
		fetchingSourcesMessageConstant,
		zap.Int(logFieldSourceCountConstant, len(configuration.Sources)),
		zap.String(logFieldCloneDirectoryConstant, cloneDirectory),
	)
	return fetcher.FetchAll(executionContext, configuration.Sources), nil
}
