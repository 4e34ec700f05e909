package orchestrator

import (
	"context"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockStateRepository is a mock implementation of StateRepository
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) Save(ctx context.Context, state *domain.RollbackState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *MockStateRepository) Load(ctx context.Context, sessionID string) (*domain.RollbackState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RollbackState), args.Error(1)
}

func (m *MockStateRepository) LoadLatest(ctx context.Context) (*domain.RollbackState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RollbackState), args.Error(1)
}

func (m *MockStateRepository) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockStateRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
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

type mockGithubRepository struct {
	mock.Mock
}

func (m *mockGithubRepository) CreateRelease(ctx context.Context, release *domain.Release) (int64, error) {
	args := m.Called(ctx, release)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockGithubRepository) GetReleaseByTag(ctx context.Context, tag string) (int64, error) {
	args := m.Called(ctx, tag)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockGithubRepository) DeleteRelease(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockPackageManagerService struct {
	mock.Mock
}

func (m *mockPackageManagerService) Detect(dir string, manifest *domain.Manifest, override string) (service.PackageManager, error) {
	args := m.Called(dir, manifest, override)
	return args.Get(0).(service.PackageManager), args.Error(1)
}

func (m *mockPackageManagerService) Install(ctx context.Context, pm service.PackageManager, dir string, frozen bool) error {
	return m.Called(ctx, pm, dir, frozen).Error(0)
}

func (m *mockPackageManagerService) Publish(ctx context.Context, pm service.PackageManager, opts service.PublishOptions) error {
	return m.Called(ctx, pm, opts).Error(0)
}

func (m *mockPackageManagerService) AddDistTag(ctx context.Context, dir, spec, tag, registry string) error {
	return m.Called(ctx, dir, spec, tag, registry).Error(0)
}

type mockToolService struct {
	mock.Mock
}

func (m *mockToolService) Run(ctx context.Context, inv service.ToolInvocation) (*service.ToolResult, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ToolResult), args.Error(1)
}

func (m *mockToolService) Shell(ctx context.Context, dir, script string) (*service.ToolResult, error) {
	args := m.Called(ctx, dir, script)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ToolResult), args.Error(1)
}
