package repository

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	branchSourceLocalStringConstant          = "local"
	branchSourceRemoteStringConstant         = "remote"
	unsupportedBranchSourceTemplateConstant  = "unsupported branch source: %s"
	absenceReasonInvalidPathStringConstant   = "invalid_path"
	absenceReasonMissingStringConstant       = "missing"
	absenceReasonNotDirectoryStringConstant  = "not_directory"
	absenceReasonNotRepositoryStringConstant = "not_repository"
	absenceReasonUnreadableStringConstant    = "unreadable"
	absenceReasonTimeoutStringConstant       = "timeout"
)

// BranchSource selects which branch names a LibraryRecord exposes.
type BranchSource string

// Supported branch sources.
const (
	BranchSourceLocal  BranchSource = BranchSource(branchSourceLocalStringConstant)
	BranchSourceRemote BranchSource = BranchSource(branchSourceRemoteStringConstant)
)

// BranchSourceChoices lists the accepted branch source values in display order.
func BranchSourceChoices() []string {
	return []string{branchSourceLocalStringConstant, branchSourceRemoteStringConstant}
}

// ParseBranchSource converts user input into a BranchSource. Empty input selects BranchSourceLocal.
func ParseBranchSource(value string) (BranchSource, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	switch normalizedValue {
	case "", branchSourceLocalStringConstant:
		return BranchSourceLocal, nil
	case branchSourceRemoteStringConstant:
		return BranchSourceRemote, nil
	default:
		return "", fmt.Errorf(unsupportedBranchSourceTemplateConstant, value)
	}
}

// AbsenceReason classifies why a candidate path produced no repository handle.
type AbsenceReason string

// Absence reasons reported by Prober. They are diagnostic only.
const (
	AbsenceReasonInvalidPath   AbsenceReason = AbsenceReason(absenceReasonInvalidPathStringConstant)
	AbsenceReasonMissing       AbsenceReason = AbsenceReason(absenceReasonMissingStringConstant)
	AbsenceReasonNotDirectory  AbsenceReason = AbsenceReason(absenceReasonNotDirectoryStringConstant)
	AbsenceReasonNotRepository AbsenceReason = AbsenceReason(absenceReasonNotRepositoryStringConstant)
	AbsenceReasonUnreadable    AbsenceReason = AbsenceReason(absenceReasonUnreadableStringConstant)
	AbsenceReasonTimeout       AbsenceReason = AbsenceReason(absenceReasonTimeoutStringConstant)
)

// RepositoryHandle describes a repository that passed probing.
type RepositoryHandle struct {
	CanonicalPath     string
	IsBare            bool
	BranchNames       []string
	RemoteNames       []string
	RemoteBranchNames []string
}

// Name returns the last path segment of the canonical path.
func (handle RepositoryHandle) Name() string {
	return filepath.Base(handle.CanonicalPath)
}

// Record projects the handle into a LibraryRecord using the requested branch source.
// BranchSourceRemote falls back to local branch names when no remote-tracking branches exist.
func (handle RepositoryHandle) Record(branchSource BranchSource) LibraryRecord {
	branchNames := handle.BranchNames
	if branchSource == BranchSourceRemote && len(handle.RemoteBranchNames) > 0 {
		branchNames = handle.RemoteBranchNames
	}

	return LibraryRecord{
		Name:     handle.Name(),
		Path:     handle.CanonicalPath,
		Branches: duplicateStrings(branchNames),
	}
}

func (handle RepositoryHandle) clone() RepositoryHandle {
	duplicated := handle
	duplicated.BranchNames = duplicateStrings(handle.BranchNames)
	duplicated.RemoteNames = duplicateStrings(handle.RemoteNames)
	duplicated.RemoteBranchNames = duplicateStrings(handle.RemoteBranchNames)
	return duplicated
}

// LibraryRecord is the externally visible projection of a RepositoryHandle.
type LibraryRecord struct {
	Name     string   `json:"name" yaml:"name"`
	Path     string   `json:"path" yaml:"path"`
	Branches []string `json:"branches" yaml:"branches"`
}

// ProbeResult is either present, holding a RepositoryHandle, or absent, holding the reason.
type ProbeResult struct {
	candidatePath string
	handle        RepositoryHandle
	present       bool
	absenceReason AbsenceReason
	cause         error
}

func presentProbeResult(candidatePath string, handle RepositoryHandle) ProbeResult {
	return ProbeResult{candidatePath: candidatePath, handle: handle, present: true}
}

func absentProbeResult(candidatePath string, absenceReason AbsenceReason, cause error) ProbeResult {
	return ProbeResult{candidatePath: candidatePath, absenceReason: absenceReason, cause: cause}
}

// Handle returns the repository handle and true when the result is present.
func (result ProbeResult) Handle() (RepositoryHandle, bool) {
	if !result.present {
		return RepositoryHandle{}, false
	}
	return result.handle.clone(), true
}

// Present reports whether the probe produced a repository handle.
func (result ProbeResult) Present() bool {
	return result.present
}

// CandidatePath returns the path exactly as it was supplied to the probe.
func (result ProbeResult) CandidatePath() string {
	return result.candidatePath
}

// AbsenceReason returns the diagnostic reason for an absent result and an empty value otherwise.
func (result ProbeResult) AbsenceReason() AbsenceReason {
	return result.absenceReason
}

// Cause returns the underlying error of an absent result, when one exists.
func (result ProbeResult) Cause() error {
	return result.cause
}

func duplicateStrings(values []string) []string {
	duplicated := make([]string, len(values))
	copy(duplicated, values)
	return duplicated
}
