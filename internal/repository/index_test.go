package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitlibs/internal/repository"
	"github.com/temirov/gitlibs/internal/repository/testsupport"
)

const (
	indexFirstRepositoryNameConstant       = "repoA"
	indexSecondRepositoryNameConstant      = "repoC"
	indexPlainDirectoryNameConstant        = "not-a-repo"
	indexNonexistentPathConstant           = "/definitely/does/not/exist"
	indexFeatureBranchNameConstant         = "feature-x"
	indexRemoteOnlyBranchNameConstant      = "remote-only"
	indexOriginRemoteNameConstant          = "origin"
	indexOriginRemoteURLConstant           = "https://example.com/acme/repoA.git"
	indexFixtureFileNameConstant           = "README.md"
	indexFixtureFileContentConstant        = "fixture\n"
	indexUnsupportedBranchSourceConstant   = "tags"
	indexEmptyCandidatesCaseNameConstant   = "empty_candidate_list"
	indexInvalidCandidatesCaseNameConstant = "only_invalid_candidates"
)

func TestNewIndexBuildsRecordForEmptyRepository(testInstance *testing.T) {
	repositoryPath := filepath.Join(testInstance.TempDir(), indexFirstRepositoryNameConstant)
	testsupport.InitRepository(testInstance, repositoryPath, testsupport.DefaultBranchName)

	index, indexError := repository.NewIndex(context.Background(), []string{repositoryPath}, repository.IndexOptions{})
	require.NoError(testInstance, indexError)

	records, listError := index.ListLibraries()
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []repository.LibraryRecord{
		{
			Name:     indexFirstRepositoryNameConstant,
			Path:     testsupport.ResolvedPath(testInstance, repositoryPath),
			Branches: []string{testsupport.DefaultBranchName},
		},
	}, records)
}

func TestNewIndexDropsInvalidCandidatesAndPreservesOrder(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()

	firstRepositoryPath := filepath.Join(temporaryDirectory, indexFirstRepositoryNameConstant)
	testsupport.InitRepository(testInstance, firstRepositoryPath, testsupport.DefaultBranchName)

	plainDirectoryPath := filepath.Join(temporaryDirectory, indexPlainDirectoryNameConstant)
	require.NoError(testInstance, os.MkdirAll(plainDirectoryPath, 0o755))

	secondRepositoryPath := filepath.Join(temporaryDirectory, indexSecondRepositoryNameConstant)
	testsupport.InitRepository(testInstance, secondRepositoryPath, testsupport.DefaultBranchName)

	candidatePaths := []string{secondRepositoryPath, plainDirectoryPath, indexNonexistentPathConstant, firstRepositoryPath}
	index, indexError := repository.NewIndex(context.Background(), candidatePaths, repository.IndexOptions{Parallelism: 3})
	require.NoError(testInstance, indexError)
	require.Equal(testInstance, 2, index.Len())

	records, listError := index.ListLibraries()
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 2)
	require.Equal(testInstance, indexSecondRepositoryNameConstant, records[0].Name)
	require.Equal(testInstance, indexFirstRepositoryNameConstant, records[1].Name)
}

func TestNewIndexReportsBothBranches(testInstance *testing.T) {
	repositoryPath := filepath.Join(testInstance.TempDir(), indexFirstRepositoryNameConstant)
	fixtureRepository := testsupport.InitRepository(testInstance, repositoryPath, testsupport.DefaultBranchName)
	commitHash := testsupport.CommitFile(testInstance, fixtureRepository, indexFixtureFileNameConstant, indexFixtureFileContentConstant)
	testsupport.CreateBranch(testInstance, fixtureRepository, indexFeatureBranchNameConstant, commitHash)

	index, indexError := repository.NewIndex(context.Background(), []string{repositoryPath}, repository.IndexOptions{})
	require.NoError(testInstance, indexError)

	records, listError := index.ListLibraries()
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 1)
	require.Equal(testInstance, []string{indexFeatureBranchNameConstant, testsupport.DefaultBranchName}, records[0].Branches)

	handles, handlesError := index.Handles()
	require.NoError(testInstance, handlesError)
	require.Equal(testInstance, handles[0].BranchNames, records[0].Branches)
}

func TestNewIndexFailsWhenNothingIsValid(testInstance *testing.T) {
	plainDirectoryPath := filepath.Join(testInstance.TempDir(), indexPlainDirectoryNameConstant)
	require.NoError(testInstance, os.MkdirAll(plainDirectoryPath, 0o755))

	testCases := []struct {
		name           string
		candidatePaths []string
	}{
		{name: indexEmptyCandidatesCaseNameConstant, candidatePaths: nil},
		{name: indexInvalidCandidatesCaseNameConstant, candidatePaths: []string{indexNonexistentPathConstant, plainDirectoryPath, ""}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			index, indexError := repository.NewIndex(context.Background(), testCase.candidatePaths, repository.IndexOptions{})
			require.Nil(subTest, index)
			require.Error(subTest, indexError)
			require.True(subTest, errors.Is(indexError, repository.ErrEmptyIndex))

			var emptyIndexError repository.EmptyIndexError
			require.True(subTest, errors.As(indexError, &emptyIndexError))
			require.Equal(subTest, len(testCase.candidatePaths), emptyIndexError.CandidateCount)
		})
	}
}

func TestNewIndexRejectsUnsupportedBranchSource(testInstance *testing.T) {
	_, indexError := repository.NewIndex(context.Background(), []string{indexNonexistentPathConstant}, repository.IndexOptions{
		BranchSource: repository.BranchSource(indexUnsupportedBranchSourceConstant),
	})
	require.Error(testInstance, indexError)
	require.False(testInstance, errors.Is(indexError, repository.ErrEmptyIndex))
}

func TestListLibrariesIsIdempotentAndReturnsCopies(testInstance *testing.T) {
	repositoryPath := filepath.Join(testInstance.TempDir(), indexFirstRepositoryNameConstant)
	testsupport.InitRepository(testInstance, repositoryPath, testsupport.DefaultBranchName)

	index, indexError := repository.NewIndex(context.Background(), []string{repositoryPath}, repository.IndexOptions{})
	require.NoError(testInstance, indexError)

	firstRecords, firstError := index.ListLibraries()
	require.NoError(testInstance, firstError)

	firstRecords[0].Name = indexSecondRepositoryNameConstant
	firstRecords[0].Branches[0] = indexFeatureBranchNameConstant

	secondRecords, secondError := index.ListLibraries()
	require.NoError(testInstance, secondError)
	thirdRecords, thirdError := index.ListLibraries()
	require.NoError(testInstance, thirdError)

	require.Equal(testInstance, secondRecords, thirdRecords)
	require.Equal(testInstance, indexFirstRepositoryNameConstant, secondRecords[0].Name)
	require.Equal(testInstance, []string{testsupport.DefaultBranchName}, secondRecords[0].Branches)
}

func TestListLibrariesRequiresConstructedIndex(testInstance *testing.T) {
	var missingIndex *repository.Index
	_, missingError := missingIndex.ListLibraries()
	require.ErrorIs(testInstance, missingError, repository.ErrNotInitialized)

	zeroIndex := &repository.Index{}
	_, zeroError := zeroIndex.ListLibraries()
	require.ErrorIs(testInstance, zeroError, repository.ErrNotInitialized)
	require.Zero(testInstance, zeroIndex.Len())

	_, handlesError := zeroIndex.Handles()
	require.ErrorIs(testInstance, handlesError, repository.ErrNotInitialized)
}

func TestRemoteBranchSourceStripsPrefixesAndFallsBack(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()

	trackingRepositoryPath := filepath.Join(temporaryDirectory, indexFirstRepositoryNameConstant)
	trackingRepository := testsupport.InitRepository(testInstance, trackingRepositoryPath, testsupport.DefaultBranchName)
	commitHash := testsupport.CommitFile(testInstance, trackingRepository, indexFixtureFileNameConstant, indexFixtureFileContentConstant)
	testsupport.AddRemote(testInstance, trackingRepository, indexOriginRemoteNameConstant, indexOriginRemoteURLConstant)
	testsupport.CreateRemoteTrackingBranch(testInstance, trackingRepository, indexOriginRemoteNameConstant, indexRemoteOnlyBranchNameConstant, commitHash)

	localOnlyRepositoryPath := filepath.Join(temporaryDirectory, indexSecondRepositoryNameConstant)
	testsupport.InitRepository(testInstance, localOnlyRepositoryPath, testsupport.DefaultBranchName)

	index, indexError := repository.NewIndex(
		context.Background(),
		[]string{trackingRepositoryPath, localOnlyRepositoryPath},
		repository.IndexOptions{BranchSource: repository.BranchSourceRemote},
	)
	require.NoError(testInstance, indexError)
	require.Equal(testInstance, repository.BranchSourceRemote, index.BranchSource())

	records, listError := index.ListLibraries()
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 2)
	require.Equal(testInstance, []string{indexRemoteOnlyBranchNameConstant}, records[0].Branches)
	require.Equal(testInstance, []string{testsupport.DefaultBranchName}, records[1].Branches)
}

func TestParseBranchSource(testInstance *testing.T) {
	testCases := []struct {
		input       string
		expected    repository.BranchSource
		expectError bool
	}{
		{input: "", expected: repository.BranchSourceLocal},
		{input: " Local ", expected: repository.BranchSourceLocal},
		{input: "REMOTE", expected: repository.BranchSourceRemote},
		{input: indexUnsupportedBranchSourceConstant, expectError: true},
	}

	for _, testCase := range testCases {
		branchSource, parseError := repository.ParseBranchSource(testCase.input)
		if testCase.expectError {
			require.Error(testInstance, parseError)
			continue
		}
		require.NoError(testInstance, parseError)
		require.Equal(testInstance, testCase.expected, branchSource)
	}
}
