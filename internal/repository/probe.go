package repository

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/temirov/gitlibs/internal/repos/filesystem"
)

const (
	// DefaultProbeTimeout bounds a single probe when ProberOptions.Timeout is unset.
	DefaultProbeTimeout = 10 * time.Second

	nullCharacterConstant               = "\x00"
	gitMetadataDirectoryNameConstant    = ".git"
	gitMetadataDirectoryMessageConstant = "candidate path is the metadata directory of a repository without a working tree"
	remoteReferencePrefixConstant       = "refs/remotes/"
	remoteReferenceSeparatorConstant    = "/"
	headReferenceShortNameConstant      = "HEAD"
	probeSucceededMessageConstant       = "repository probe succeeded"
	probeExcludedMessageConstant        = "candidate path excluded from index"
	logFieldCandidatePathConstant       = "candidate_path"
	logFieldCanonicalPathConstant       = "canonical_path"
	logFieldAbsenceReasonConstant       = "reason"
	logFieldBareConstant                = "bare"
	logFieldBranchCountConstant         = "branch_count"
	logFieldRemoteCountConstant         = "remote_count"
	logFieldProbeDurationConstant       = "duration"
	invalidCandidatePathMessageConstant = "candidate path is empty or malformed"
	notDirectoryMessageConstant         = "candidate path is not a directory"
)

var (
	errInvalidCandidatePath = errors.New(invalidCandidatePathMessageConstant)
	errNotDirectory         = errors.New(notDirectoryMessageConstant)
	errDetachedGitDirectory = errors.New(gitMetadataDirectoryMessageConstant)
)

// FileSystem exposes the read-only filesystem operations used while probing candidates.
type FileSystem interface {
	Abs(path string) (string, error)
	EvalSymlinks(path string) (string, error)
	Stat(path string) (fs.FileInfo, error)
}

// ProberOptions configures a Prober. Zero values select defaults.
type ProberOptions struct {
	FileSystem FileSystem
	Logger     *zap.Logger
	// Timeout bounds each probe; a negative value disables the bound.
	Timeout time.Duration
}

// Prober validates candidate paths as git repositories.
type Prober struct {
	fileSystem FileSystem
	logger     *zap.Logger
	timeout    time.Duration
}

// NewProber constructs a Prober from the provided options.
func NewProber(options ProberOptions) *Prober {
	fileSystem := options.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}

	return &Prober{
		fileSystem: fileSystem,
		logger:     logger,
		timeout:    timeout,
	}
}

// Probe inspects a single candidate path. Every failure collapses into an absent result;
// the reason is logged and exposed on the result for diagnostics only.
func (prober *Prober) Probe(executionContext context.Context, candidatePath string) ProbeResult {
	startTime := time.Now()
	result := prober.probeWithinDeadline(executionContext, candidatePath)

	handle, present := result.Handle()
	if !present {
		prober.logger.Warn(
			probeExcludedMessageConstant,
			zap.String(logFieldCandidatePathConstant, candidatePath),
			zap.String(logFieldAbsenceReasonConstant, string(result.AbsenceReason())),
			zap.Error(result.Cause()),
		)
		return result
	}

	prober.logger.Debug(
		probeSucceededMessageConstant,
		zap.String(logFieldCandidatePathConstant, candidatePath),
		zap.String(logFieldCanonicalPathConstant, handle.CanonicalPath),
		zap.Bool(logFieldBareConstant, handle.IsBare),
		zap.Int(logFieldBranchCountConstant, len(handle.BranchNames)),
		zap.Int(logFieldRemoteCountConstant, len(handle.RemoteNames)),
		zap.Duration(logFieldProbeDurationConstant, time.Since(startTime)),
	)
	return result
}

func (prober *Prober) probeWithinDeadline(executionContext context.Context, candidatePath string) ProbeResult {
	if executionContext == nil {
		executionContext = context.Background()
	}
	if contextError := executionContext.Err(); contextError != nil {
		return absentProbeResult(candidatePath, AbsenceReasonTimeout, contextError)
	}
	if prober.timeout < 0 {
		return prober.inspect(candidatePath)
	}

	probeContext, cancelProbe := context.WithTimeout(executionContext, prober.timeout)
	defer cancelProbe()

	// The inspection goroutine is abandoned on expiry; it only reads and finishes on its own.
	resultChannel := make(chan ProbeResult, 1)
	go func() {
		resultChannel <- prober.inspect(candidatePath)
	}()

	select {
	case result := <-resultChannel:
		return result
	case <-probeContext.Done():
		return absentProbeResult(candidatePath, AbsenceReasonTimeout, probeContext.Err())
	}
}

func (prober *Prober) inspect(candidatePath string) ProbeResult {
	if len(strings.TrimSpace(candidatePath)) == 0 || strings.Contains(candidatePath, nullCharacterConstant) {
		return absentProbeResult(candidatePath, AbsenceReasonInvalidPath, errInvalidCandidatePath)
	}

	absolutePath, absoluteError := prober.fileSystem.Abs(candidatePath)
	if absoluteError != nil {
		return absentProbeResult(candidatePath, AbsenceReasonInvalidPath, absoluteError)
	}

	canonicalPath, resolveError := prober.fileSystem.EvalSymlinks(absolutePath)
	if resolveError != nil {
		return absentProbeResult(candidatePath, classifyFilesystemError(resolveError), resolveError)
	}

	fileInfo, statError := prober.fileSystem.Stat(canonicalPath)
	if statError != nil {
		return absentProbeResult(candidatePath, classifyFilesystemError(statError), statError)
	}

	if !fileInfo.IsDir() {
		return absentProbeResult(candidatePath, AbsenceReasonNotDirectory, errNotDirectory)
	}

	if filepath.Base(canonicalPath) == gitMetadataDirectoryNameConstant {
		return prober.inspectMetadataDirectory(candidatePath, canonicalPath)
	}

	openedRepository, openError := openRepository(canonicalPath)
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			return absentProbeResult(candidatePath, AbsenceReasonNotRepository, openError)
		}
		return absentProbeResult(candidatePath, AbsenceReasonUnreadable, openError)
	}

	handle, describeError := describeRepository(canonicalPath, openedRepository)
	if describeError != nil {
		return absentProbeResult(candidatePath, AbsenceReasonUnreadable, describeError)
	}

	return presentProbeResult(candidatePath, handle)
}

// inspectMetadataDirectory describes the working tree owning a ".git" directory so the
// repository is reported once, under its working tree root. A ".git" directory whose
// parent is not a working tree is not a library.
func (prober *Prober) inspectMetadataDirectory(candidatePath string, metadataPath string) ProbeResult {
	workingTreePath := filepath.Dir(metadataPath)

	openedRepository, openError := openRepository(workingTreePath)
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			return absentProbeResult(candidatePath, AbsenceReasonNotRepository, openError)
		}
		return absentProbeResult(candidatePath, AbsenceReasonUnreadable, openError)
	}

	handle, describeError := describeRepository(workingTreePath, openedRepository)
	if describeError != nil {
		return absentProbeResult(candidatePath, AbsenceReasonUnreadable, describeError)
	}
	if handle.IsBare {
		return absentProbeResult(candidatePath, AbsenceReasonNotRepository, errDetachedGitDirectory)
	}

	return presentProbeResult(candidatePath, handle)
}

func openRepository(repositoryPath string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(repositoryPath, &git.PlainOpenOptions{
		DetectDotGit:          false,
		EnableDotGitCommonDir: true,
	})
}

func classifyFilesystemError(filesystemError error) AbsenceReason {
	if errors.Is(filesystemError, fs.ErrNotExist) {
		return AbsenceReasonMissing
	}
	return AbsenceReasonUnreadable
}

func describeRepository(canonicalPath string, openedRepository *git.Repository) (RepositoryHandle, error) {
	_, worktreeError := openedRepository.Worktree()
	isBare := errors.Is(worktreeError, git.ErrIsBareRepository)

	branchNames, branchError := localBranchNames(openedRepository)
	if branchError != nil {
		return RepositoryHandle{}, branchError
	}

	remoteNames, remoteError := configuredRemoteNames(openedRepository)
	if remoteError != nil {
		return RepositoryHandle{}, remoteError
	}

	remoteBranchNames, remoteBranchError := remoteTrackingBranchNames(openedRepository, remoteNames)
	if remoteBranchError != nil {
		return RepositoryHandle{}, remoteBranchError
	}

	return RepositoryHandle{
		CanonicalPath:     canonicalPath,
		IsBare:            isBare,
		BranchNames:       branchNames,
		RemoteNames:       remoteNames,
		RemoteBranchNames: remoteBranchNames,
	}, nil
}

// localBranchNames lists branch heads sorted by name. A repository without commits
// reports the unborn branch HEAD points at.
func localBranchNames(openedRepository *git.Repository) ([]string, error) {
	branchIterator, iteratorError := openedRepository.Branches()
	if iteratorError != nil {
		return nil, iteratorError
	}
	defer branchIterator.Close()

	branchNames := []string{}
	iterationError := branchIterator.ForEach(func(reference *plumbing.Reference) error {
		branchNames = append(branchNames, reference.Name().Short())
		return nil
	})
	if iterationError != nil {
		return nil, iterationError
	}

	sort.Strings(branchNames)
	if len(branchNames) == 0 {
		if unbornBranch := unbornBranchName(openedRepository); len(unbornBranch) > 0 {
			branchNames = append(branchNames, unbornBranch)
		}
	}

	return branchNames, nil
}

func unbornBranchName(openedRepository *git.Repository) string {
	headReference, headError := openedRepository.Storer.Reference(plumbing.HEAD)
	if headError != nil {
		return ""
	}
	if headReference.Type() != plumbing.SymbolicReference {
		return ""
	}
	if !headReference.Target().IsBranch() {
		return ""
	}
	return headReference.Target().Short()
}

func configuredRemoteNames(openedRepository *git.Repository) ([]string, error) {
	remotes, remotesError := openedRepository.Remotes()
	if remotesError != nil {
		return nil, remotesError
	}

	remoteNames := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		remoteNames = append(remoteNames, remote.Config().Name)
	}
	sort.Strings(remoteNames)
	return remoteNames, nil
}

// remoteTrackingBranchNames lists remote-tracking branches sorted by name with the remote prefix
// stripped, skipping symbolic HEAD entries and names already seen under another remote.
func remoteTrackingBranchNames(openedRepository *git.Repository, remoteNames []string) ([]string, error) {
	referenceIterator, iteratorError := openedRepository.References()
	if iteratorError != nil {
		return nil, iteratorError
	}
	defer referenceIterator.Close()

	seenBranches := make(map[string]struct{})
	branchNames := []string{}
	iterationError := referenceIterator.ForEach(func(reference *plumbing.Reference) error {
		if !reference.Name().IsRemote() {
			return nil
		}

		branchName := stripRemotePrefix(strings.TrimPrefix(reference.Name().String(), remoteReferencePrefixConstant), remoteNames)
		if len(branchName) == 0 || branchName == headReferenceShortNameConstant {
			return nil
		}
		if _, alreadySeen := seenBranches[branchName]; alreadySeen {
			return nil
		}

		seenBranches[branchName] = struct{}{}
		branchNames = append(branchNames, branchName)
		return nil
	})
	if iterationError != nil {
		return nil, iterationError
	}

	sort.Strings(branchNames)
	return branchNames, nil
}

func stripRemotePrefix(remoteQualifiedName string, remoteNames []string) string {
	longestMatch := ""
	for _, remoteName := range remoteNames {
		remotePrefix := remoteName + remoteReferenceSeparatorConstant
		if strings.HasPrefix(remoteQualifiedName, remotePrefix) && len(remoteName) > len(longestMatch) {
			longestMatch = remoteName
		}
	}
	if len(longestMatch) > 0 {
		return strings.TrimPrefix(remoteQualifiedName, longestMatch+remoteReferenceSeparatorConstant)
	}

	separatorIndex := strings.Index(remoteQualifiedName, remoteReferenceSeparatorConstant)
	if separatorIndex < 0 {
		return ""
	}
	return remoteQualifiedName[separatorIndex+1:]
}
