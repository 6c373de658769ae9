// Package pathutils normalizes operator-supplied repository paths before they are probed.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// CandidatePathNormalizer expands a leading tilde and drops exact repeats.
// Surrounding whitespace is part of a path; blank candidates collapse to "" and are kept so they are reported as invalid.
type CandidatePathNormalizer struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewCandidatePathNormalizer constructs a normalizer using the operating system home lookup.
func NewCandidatePathNormalizer() *CandidatePathNormalizer {
	return NewCandidatePathNormalizerWithProvider(os.UserHomeDir)
}

// NewCandidatePathNormalizerWithProvider constructs a normalizer with a custom home lookup.
func NewCandidatePathNormalizerWithProvider(provider HomeDirectoryProvider) *CandidatePathNormalizer {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &CandidatePathNormalizer{homeDirectoryProvider: provider}
}

// Normalize returns the candidates in their original order with repeats removed.
func (normalizer *CandidatePathNormalizer) Normalize(candidatePaths []string) []string {
	if normalizer == nil {
		normalizer = NewCandidatePathNormalizer()
	}

	normalizedPaths := make([]string, 0, len(candidatePaths))
	seenPaths := make(map[string]struct{}, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		normalizedPath := normalizer.normalizeCandidate(candidatePath)
		if _, seen := seenPaths[normalizedPath]; seen {
			continue
		}
		seenPaths[normalizedPath] = struct{}{}
		normalizedPaths = append(normalizedPaths, normalizedPath)
	}
	return normalizedPaths
}

func (normalizer *CandidatePathNormalizer) normalizeCandidate(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return ""
	}
	if strings.HasPrefix(trimmedPath, tildeSymbolConstant) {
		return normalizer.ExpandHome(trimmedPath)
	}
	return candidatePath
}

// ExpandHome resolves a leading "~" or "~/" to the user's home directory.
// Other forms such as "~user" are returned unchanged.
func (normalizer *CandidatePathNormalizer) ExpandHome(candidatePath string) string {
	if !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	homeDirectory := normalizer.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return candidatePath
	}

	if candidatePath == tildeSymbolConstant {
		return homeDirectory
	}

	for _, tildePrefix := range []string{tildeForwardSlashPrefixConstant, tildeSymbolConstant + string(os.PathSeparator)} {
		if strings.HasPrefix(candidatePath, tildePrefix) {
			return filepath.Join(homeDirectory, strings.TrimPrefix(candidatePath, tildePrefix))
		}
	}
	return candidatePath
}

func (normalizer *CandidatePathNormalizer) resolveHomeDirectory() string {
	normalizer.initializationGuard.Do(func() {
		normalizer.homeDirectory, normalizer.homeDirectoryError = normalizer.homeDirectoryProvider()
	})
	if normalizer.homeDirectoryError != nil {
		return ""
	}
	return normalizer.homeDirectory
}
