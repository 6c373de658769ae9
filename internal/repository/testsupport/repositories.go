// Package testsupport creates real git repositories for tests using go-git.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

const (
	// DefaultBranchName is the branch fixtures check out unless told otherwise.
	DefaultBranchName = "main"

	commitAuthorNameConstant    = "gitlibs fixture"
	commitAuthorEmailConstant   = "fixture@gitlibs.invalid"
	fixtureFilePermissions      = 0o644
	fixtureDirectoryPermissions = 0o755
)

// InitRepository initializes an empty working-tree repository whose HEAD points at defaultBranch.
func InitRepository(testInstance testing.TB, repositoryPath string, defaultBranch string) *git.Repository {
	testInstance.Helper()
	return initRepository(testInstance, repositoryPath, defaultBranch, false)
}

// InitBareRepository initializes an empty bare repository whose HEAD points at defaultBranch.
func InitBareRepository(testInstance testing.TB, repositoryPath string, defaultBranch string) *git.Repository {
	testInstance.Helper()
	return initRepository(testInstance, repositoryPath, defaultBranch, true)
}

func initRepository(testInstance testing.TB, repositoryPath string, defaultBranch string, bare bool) *git.Repository {
	testInstance.Helper()

	require.NoError(testInstance, os.MkdirAll(repositoryPath, fixtureDirectoryPermissions))

	initializedRepository, initError := git.PlainInitWithOptions(repositoryPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch)},
		Bare:        bare,
	})
	require.NoError(testInstance, initError)
	return initializedRepository
}

// CommitFile writes fileName inside the working tree and commits it on the current branch.
func CommitFile(testInstance testing.TB, repository *git.Repository, fileName string, content string) plumbing.Hash {
	testInstance.Helper()

	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)

	filePath := filepath.Join(worktree.Filesystem.Root(), fileName)
	require.NoError(testInstance, os.WriteFile(filePath, []byte(content), fixtureFilePermissions))

	_, addError := worktree.Add(fileName)
	require.NoError(testInstance, addError)

	commitHash, commitError := worktree.Commit(fileName, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorNameConstant,
			Email: commitAuthorEmailConstant,
			When:  time.Now(),
		},
	})
	require.NoError(testInstance, commitError)
	return commitHash
}

// CreateBranch points a new local branch at the provided commit.
func CreateBranch(testInstance testing.TB, repository *git.Repository, branchName string, commitHash plumbing.Hash) {
	testInstance.Helper()

	branchReference := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), commitHash)
	require.NoError(testInstance, repository.Storer.SetReference(branchReference))
}

// AddRemote configures a remote without contacting it.
func AddRemote(testInstance testing.TB, repository *git.Repository, remoteName string, remoteURL string) {
	testInstance.Helper()

	_, remoteError := repository.CreateRemote(&config.RemoteConfig{Name: remoteName, URLs: []string{remoteURL}})
	require.NoError(testInstance, remoteError)
}

// CreateRemoteTrackingBranch records a remote-tracking branch as a fetch would.
func CreateRemoteTrackingBranch(testInstance testing.TB, repository *git.Repository, remoteName string, branchName string, commitHash plumbing.Hash) {
	testInstance.Helper()

	trackingReference := plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remoteName, branchName), commitHash)
	require.NoError(testInstance, repository.Storer.SetReference(trackingReference))
}

// ResolvedPath returns the path with every symbolic link resolved, as the prober reports it.
func ResolvedPath(testInstance testing.TB, path string) string {
	testInstance.Helper()

	resolvedPath, resolveError := filepath.EvalSymlinks(path)
	require.NoError(testInstance, resolveError)
	return resolvedPath
}
