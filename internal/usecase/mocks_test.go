package usecase

import (
	"context"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockSemverEngine struct {
	mock.Mock
}

func (m *mockSemverEngine) Parse(version string) (*domain.Version, error) {
	args := m.Called(version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Version), args.Error(1)
}

func (m *mockSemverEngine) IsValid(version string) bool {
	return m.Called(version).Bool(0)
}

func (m *mockSemverEngine) Prerelease(version string) []string {
	args := m.Called(version)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *mockSemverEngine) Increment(version string, releaseType domain.ReleaseType, id string) (string, error) {
	args := m.Called(version, releaseType, id)
	return args.String(0), args.Error(1)
}

type mockGitRepository struct {
	mock.Mock
}

func (m *mockGitRepository) LatestVersionTag(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockGitRepository) CreateTag(ctx context.Context, tag, msg string) error {
	return m.Called(ctx, tag, msg).Error(0)
}

func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) PushTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) GetCurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) PushBranch(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockGitRepository) AddFiles(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}

func (m *mockGitRepository) Commit(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

func (m *mockGitRepository) GetHeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) ResetHard(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockGitRepository) CommitMessagesSince(ctx context.Context, tag string) ([]string, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGitRepository) StagedFiles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGitRepository) GetConfigValue(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) SetConfigValue(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockGitRepository) HooksDir(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) Root() string {
	return m.Called().String(0)
}
