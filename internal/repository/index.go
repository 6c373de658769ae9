package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultProbeParallelism limits concurrent probes when IndexOptions.Parallelism is unset.
	DefaultProbeParallelism = 4

	indexingStartedMessageConstant   = "indexing candidate repositories"
	indexingCompletedMessageConstant = "repository index ready"
	indexingEmptyMessageConstant     = "no valid git repositories found in any of the provided paths"
	logFieldCandidateCountConstant   = "candidate_count"
	logFieldRepositoryCountConstant  = "repository_count"
	logFieldBranchSourceConstant     = "branch_source"
	logFieldParallelismConstant      = "parallelism"
	logFieldIndexDurationConstant    = "duration"
)

type indexState int

const (
	indexStateConstructing indexState = iota
	indexStateReady
)

// IndexOptions configures index construction. Zero values select defaults.
type IndexOptions struct {
	Prober       *Prober
	Logger       *zap.Logger
	BranchSource BranchSource
	Parallelism  int
}

// Index holds the repositories retained from a single probe pass.
// It is written once during NewIndex and read-only afterwards.
type Index struct {
	state        indexState
	branchSource BranchSource
	handles      []RepositoryHandle
}

// NewIndex probes every candidate path once and keeps the present results in input order.
// It returns an EmptyIndexError when no candidate is a valid repository.
func NewIndex(executionContext context.Context, candidatePaths []string, options IndexOptions) (*Index, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prober := options.Prober
	if prober == nil {
		prober = NewProber(ProberOptions{Logger: logger})
	}

	branchSource, branchSourceError := ParseBranchSource(string(options.BranchSource))
	if branchSourceError != nil {
		return nil, branchSourceError
	}

	parallelism := options.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultProbeParallelism
	}

	index := &Index{state: indexStateConstructing, branchSource: branchSource}

	startTime := time.Now()
	logger.Info(
		indexingStartedMessageConstant,
		zap.Int(logFieldCandidateCountConstant, len(candidatePaths)),
		zap.String(logFieldBranchSourceConstant, string(branchSource)),
		zap.Int(logFieldParallelismConstant, parallelism),
	)

	probeResults := make([]ProbeResult, len(candidatePaths))
	var probeGroup errgroup.Group
	probeGroup.SetLimit(parallelism)
	for candidateIndex, candidatePath := range candidatePaths {
		probeGroup.Go(func() error {
			probeResults[candidateIndex] = prober.Probe(executionContext, candidatePath)
			return nil
		})
	}
	_ = probeGroup.Wait()

	retainedHandles := make([]RepositoryHandle, 0, len(probeResults))
	for _, probeResult := range probeResults {
		handle, present := probeResult.Handle()
		if !present {
			continue
		}
		retainedHandles = append(retainedHandles, handle)
	}

	if len(retainedHandles) == 0 {
		logger.Warn(indexingEmptyMessageConstant, zap.Int(logFieldCandidateCountConstant, len(candidatePaths)))
		return nil, EmptyIndexError{CandidateCount: len(candidatePaths)}
	}

	index.handles = retainedHandles
	index.state = indexStateReady

	logger.Info(
		indexingCompletedMessageConstant,
		zap.Int(logFieldCandidateCountConstant, len(candidatePaths)),
		zap.Int(logFieldRepositoryCountConstant, len(retainedHandles)),
		zap.Duration(logFieldIndexDurationConstant, time.Since(startTime)),
	)

	return index, nil
}

// ListLibraries returns a fresh copy of the library records in index order.
func (index *Index) ListLibraries() ([]LibraryRecord, error) {
	if !index.ready() {
		return nil, ErrNotInitialized
	}

	records := make([]LibraryRecord, 0, len(index.handles))
	for _, handle := range index.handles {
		records = append(records, handle.Record(index.branchSource))
	}
	return records, nil
}

// Handles returns a copy of the retained repository handles in index order.
func (index *Index) Handles() ([]RepositoryHandle, error) {
	if !index.ready() {
		return nil, ErrNotInitialized
	}

	handles := make([]RepositoryHandle, 0, len(index.handles))
	for _, handle := range index.handles {
		handles = append(handles, handle.clone())
	}
	return handles, nil
}

// Len reports the number of retained repositories; zero for an index that is not ready.
func (index *Index) Len() int {
	if !index.ready() {
		return 0
	}
	return len(index.handles)
}

// BranchSource reports the branch projection applied by ListLibraries.
func (index *Index) BranchSource() BranchSource {
	if index == nil {
		return BranchSourceLocal
	}
	return index.branchSource
}

func (index *Index) ready() bool {
	return index != nil && index.state == indexStateReady
}
