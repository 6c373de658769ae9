package repository

import (
	"errors"
	"fmt"
)

const (
	emptyIndexMessageConstant        = "no valid git repositories found in the provided paths"
	emptyIndexDetailTemplateConstant = "%s (%d candidate paths probed)"
	notInitializedMessageConstant    = "repository index is not initialized"
)

// ErrEmptyIndex reports that index construction retained no repositories.
var ErrEmptyIndex = errors.New(emptyIndexMessageConstant)

// ErrNotInitialized reports a query against an index that was never successfully constructed.
var ErrNotInitialized = errors.New(notInitializedMessageConstant)

// EmptyIndexError carries the number of candidates probed when none were valid.
type EmptyIndexError struct {
	CandidateCount int
}

// Error describes the empty index condition.
func (emptyIndexError EmptyIndexError) Error() string {
	return fmt.Sprintf(emptyIndexDetailTemplateConstant, emptyIndexMessageConstant, emptyIndexError.CandidateCount)
}

// Is matches ErrEmptyIndex.
func (emptyIndexError EmptyIndexError) Is(target error) bool {
	return target == ErrEmptyIndex
}
