package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/gitlibs/internal/repos/filesystem"
)

const (
	originRemoteNameConstant              = "origin"
	gitSuffixConstant                     = ".git"
	urlPathSeparatorConstant              = "/"
	scpPathSeparatorConstant              = ":"
	cloneDirectoryPermissions             = 0o755
	cloneDirectoryRequiredMessageConstant = "clone directory is required"
	repositoryKeyTemplateConstant         = "unable to derive repository name from source %q"
	cloneErrorTemplateConstant            = "clone %s: %w"
	pullErrorTemplateConstant             = "pull %s: %w"
	inspectErrorTemplateConstant          = "inspect %s: %w"
	prepareErrorTemplateConstant          = "prepare clone directory %s: %w"
	unexpectedResultTemplateConstant      = "unexpected fetch result for %s"
	cacheHitMessageConstant               = "repository served from cache"
	cloneStartedMessageConstant           = "cloning repository"
	pullStartedMessageConstant            = "pulling repository"
	fetchCompletedMessageConstant         = "repository fetched"
	fetchFailedMessageConstant            = "repository fetch failed; source skipped"
	logFieldSourceConstant                = "source"
	logFieldRepositoryKeyConstant         = "repository"
	logFieldLocalPathConstant             = "local_path"
)

// ErrCloneDirectoryRequired reports a Fetcher constructed without a clone directory.
var ErrCloneDirectoryRequired = errors.New(cloneDirectoryRequiredMessageConstant)

// FileSystem exposes the filesystem operations required by Fetcher.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	MkdirAll(path string, permissions fs.FileMode) error
}

// Options configures a Fetcher.
type Options struct {
	CloneDirectory string
	Cache          RepositoryCache
	FileSystem     FileSystem
	Logger         *zap.Logger
}

// Fetcher clones or updates remote repositories into a local directory.
type Fetcher struct {
	cloneDirectory string
	cache          RepositoryCache
	fileSystem     FileSystem
	logger         *zap.Logger
	requestGroup   singleflight.Group
}

// NewFetcher validates the options and constructs a Fetcher.
func NewFetcher(options Options) (*Fetcher, error) {
	cloneDirectory := strings.TrimSpace(options.CloneDirectory)
	if len(cloneDirectory) == 0 {
		return nil, ErrCloneDirectoryRequired
	}

	cache := options.Cache
	if cache == nil {
		cache = NewMemoryRepositoryCache()
	}

	fileSystem := options.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		cloneDirectory: filepath.Clean(cloneDirectory),
		cache:          cache,
		fileSystem:     fileSystem,
		logger:         logger,
	}, nil
}

// RepositoryKey derives the cache key and clone directory name from a source URL.
func RepositoryKey(sourceURL string) (string, error) {
	trimmedSource := strings.TrimRight(strings.TrimSpace(sourceURL), urlPathSeparatorConstant)
	lastSeparatorIndex := strings.LastIndexAny(trimmedSource, urlPathSeparatorConstant+scpPathSeparatorConstant+string(filepath.Separator))
	repositoryKey := strings.TrimSuffix(trimmedSource[lastSeparatorIndex+1:], gitSuffixConstant)
	if len(repositoryKey) == 0 || repositoryKey == "." || repositoryKey == ".." {
		return "", fmt.Errorf(repositoryKeyTemplateConstant, sourceURL)
	}
	return repositoryKey, nil
}

// FetchOrUpdate returns the local path of the source repository. A cached key is returned as is;
// an existing clone directory is pulled from origin; anything else is cloned.
func (fetcher *Fetcher) FetchOrUpdate(executionContext context.Context, sourceURL string) (string, error) {
	repositoryKey, keyError := RepositoryKey(sourceURL)
	if keyError != nil {
		return "", keyError
	}

	if cachedPath, cached := fetcher.cache.Lookup(repositoryKey); cached {
		fetcher.logger.Debug(cacheHitMessageConstant, zap.String(logFieldRepositoryKeyConstant, repositoryKey), zap.String(logFieldLocalPathConstant, cachedPath))
		return cachedPath, nil
	}

	fetchResult, fetchError, _ := fetcher.requestGroup.Do(repositoryKey, func() (any, error) {
		return fetcher.materialize(executionContext, repositoryKey, strings.TrimSpace(sourceURL))
	})
	if fetchError != nil {
		return "", fetchError
	}

	localPath, isString := fetchResult.(string)
	if !isString {
		return "", fmt.Errorf(unexpectedResultTemplateConstant, repositoryKey)
	}
	return localPath, nil
}

// FetchAll fetches every source in order and returns the local paths that succeeded.
// Failures are logged and skipped.
func (fetcher *Fetcher) FetchAll(executionContext context.Context, sourceURLs []string) []string {
	localPaths := make([]string, 0, len(sourceURLs))
	for _, sourceURL := range sourceURLs {
		localPath, fetchError := fetcher.FetchOrUpdate(executionContext, sourceURL)
		if fetchError != nil {
			fetcher.logger.Warn(fetchFailedMessageConstant, zap.String(logFieldSourceConstant, sourceURL), zap.Error(fetchError))
			continue
		}
		localPaths = append(localPaths, localPath)
	}
	return localPaths
}

func (fetcher *Fetcher) materialize(executionContext context.Context, repositoryKey string, sourceURL string) (string, error) {
	if cachedPath, cached := fetcher.cache.Lookup(repositoryKey); cached {
		return cachedPath, nil
	}

	localPath := filepath.Join(fetcher.cloneDirectory, repositoryKey)

	_, statError := fetcher.fileSystem.Stat(localPath)
	switch {
	case statError == nil:
		if pullError := fetcher.pull(executionContext, localPath); pullError != nil {
			return "", pullError
		}
	case errors.Is(statError, fs.ErrNotExist):
		if cloneError := fetcher.clone(executionContext, sourceURL, localPath); cloneError != nil {
			return "", cloneError
		}
	default:
		return "", fmt.Errorf(inspectErrorTemplateConstant, localPath, statError)
	}

	fetcher.cache.Store(repositoryKey, localPath)
	fetcher.logger.Info(
		fetchCompletedMessageConstant,
		zap.String(logFieldSourceConstant, sourceURL),
		zap.String(logFieldRepositoryKeyConstant, repositoryKey),
		zap.String(logFieldLocalPathConstant, localPath),
	)
	return localPath, nil
}

func (fetcher *Fetcher) clone(executionContext context.Context, sourceURL string, localPath string) error {
	if mkdirError := fetcher.fileSystem.MkdirAll(fetcher.cloneDirectory, cloneDirectoryPermissions); mkdirError != nil {
		return fmt.Errorf(prepareErrorTemplateConstant, fetcher.cloneDirectory, mkdirError)
	}

	fetcher.logger.Info(cloneStartedMessageConstant, zap.String(logFieldSourceConstant, sourceURL), zap.String(logFieldLocalPathConstant, localPath))
	_, cloneError := git.PlainCloneContext(executionContext, localPath, false, &git.CloneOptions{
		URL:        sourceURL,
		RemoteName: originRemoteNameConstant,
	})
	if cloneError != nil {
		return fmt.Errorf(cloneErrorTemplateConstant, sourceURL, cloneError)
	}
	return nil
}

func (fetcher *Fetcher) pull(executionContext context.Context, localPath string) error {
	fetcher.logger.Info(pullStartedMessageConstant, zap.String(logFieldLocalPathConstant, localPath))

	existingRepository, openError := git.PlainOpen(localPath)
	if openError != nil {
		return fmt.Errorf(pullErrorTemplateConstant, localPath, openError)
	}

	worktree, worktreeError := existingRepository.Worktree()
	if worktreeError != nil {
		return fmt.Errorf(pullErrorTemplateConstant, localPath, worktreeError)
	}

	pullError := worktree.PullContext(executionContext, &git.PullOptions{RemoteName: originRemoteNameConstant})
	if pullError != nil && !errors.Is(pullError, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf(pullErrorTemplateConstant, localPath, pullError)
	}
	return nil
}
