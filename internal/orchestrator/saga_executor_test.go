package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSaga(repo *MockStateRepository, enableRollback bool) (*SagaExecutor, *bytes.Buffer) {
	var out bytes.Buffer
	return NewSagaExecutor(repo, enableRollback, zap.NewNop(), &out), &out
}

func TestSagaExecutor_Execute(t *testing.T) {
	t.Run("Should execute all steps successfully", func(t *testing.T) {
		// Arrange
		mockRepo := new(MockStateRepository)
		saga, _ := newTestSaga(mockRepo, false)
		var executed []string
		for _, opType := range []domain.OperationType{domain.OperationTypeUpdateManifest, domain.OperationTypeCommit} {
			saga.AddStep(SagaStep{
				Name: string(opType),
				Type: opType,
				Execute: func(_ context.Context) (map[string]any, error) {
					executed = append(executed, string(opType))
					return map[string]any{"result": string(opType)}, nil
				},
			})
		}

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"update_manifest", "commit"}, executed)
		assert.Equal(t, domain.WorkflowStatusCompleted, saga.GetState().Status)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Should compensate completed steps in reverse order", func(t *testing.T) {
		// Arrange
		mockRepo := new(MockStateRepository)
		mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		saga, out := newTestSaga(mockRepo, true)
		var compensated []string
		addStep := func(opType domain.OperationType, fail bool) {
			saga.AddStep(SagaStep{
				Name: string(opType),
				Type: opType,
				Execute: func(_ context.Context) (map[string]any, error) {
					if fail {
						return nil, errors.New(string(opType) + " failed")
					}
					return map[string]any{"step": string(opType)}, nil
				},
				Compensate: func(_ context.Context, data map[string]any) error {
					compensated = append(compensated, data["step"].(string))
					return nil
				},
			})
		}
		addStep(domain.OperationTypeUpdateManifest, false)
		addStep(domain.OperationTypeCommit, false)
		addStep(domain.OperationTypeTag, true)

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tag failed")
		assert.Contains(t, err.Error(), "rolled back")
		assert.Equal(t, []string{"commit", "update_manifest"}, compensated)
		assert.Equal(t, domain.WorkflowStatusRolledBack, saga.GetState().Status)
		assert.Contains(t, out.String(), "Rollback completed")
		for _, op := range saga.GetState().Operations[:2] {
			assert.Equal(t, domain.OperationStatusRolledBack, op.Status)
		}
		assert.Equal(t, domain.OperationStatusFailed, saga.GetState().Operations[2].Status)
	})

	t.Run("Should not compensate when rollback is disabled", func(t *testing.T) {
		// Arrange
		saga, _ := newTestSaga(new(MockStateRepository), false)
		compensated := false
		saga.AddStep(SagaStep{
			Name:       "manifest",
			Type:       domain.OperationTypeUpdateManifest,
			Execute:    func(_ context.Context) (map[string]any, error) { return nil, nil },
			Compensate: func(_ context.Context, _ map[string]any) error { compensated = true; return nil },
		})
		saga.AddStep(SagaStep{
			Name:    "commit",
			Type:    domain.OperationTypeCommit,
			Execute: func(_ context.Context) (map[string]any, error) { return nil, errors.New("nothing to commit") },
		})

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.Error(t, err)
		assert.False(t, compensated)
		assert.Equal(t, domain.WorkflowStatusFailed, saga.GetState().Status)
	})

	t.Run("Should report compensation errors", func(t *testing.T) {
		// Arrange
		mockRepo := new(MockStateRepository)
		mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		saga, _ := newTestSaga(mockRepo, true)
		saga.AddStep(SagaStep{
			Name:       "manifest",
			Type:       domain.OperationTypeUpdateManifest,
			Execute:    func(_ context.Context) (map[string]any, error) { return nil, nil },
			Compensate: func(_ context.Context, _ map[string]any) error { return errors.New("compensate failed") },
		})
		saga.AddStep(SagaStep{
			Name:    "commit",
			Type:    domain.OperationTypeCommit,
			Execute: func(_ context.Context) (map[string]any, error) { return nil, errors.New("commit failed") },
		})

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit failed")
		assert.Contains(t, err.Error(), "rollback also failed")
	})

	t.Run("Should retry failing steps", func(t *testing.T) {
		// Arrange
		saga, _ := newTestSaga(new(MockStateRepository), false)
		attempts := 0
		saga.AddStep(SagaStep{
			Name: "push",
			Type: domain.OperationTypePush,
			Execute: func(_ context.Context) (map[string]any, error) {
				attempts++
				if attempts == 1 {
					return nil, errors.New("connection reset")
				}
				return nil, nil
			},
		})

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("Should persist state when enabled", func(t *testing.T) {
		// Arrange
		mockRepo := new(MockStateRepository)
		saga, _ := newTestSaga(mockRepo, true)
		// 1 initial + 2 for the step + 1 final
		mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Times(4)
		saga.AddStep(SagaStep{
			Name:    "manifest",
			Type:    domain.OperationTypeUpdateManifest,
			Execute: func(_ context.Context) (map[string]any, error) { return nil, nil },
		})

		// Act
		err := saga.Execute(context.Background())

		// Assert
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Should keep going when state cannot be saved", func(t *testing.T) {
		mockRepo := new(MockStateRepository)
		mockRepo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		saga, _ := newTestSaga(mockRepo, true)
		saga.AddStep(SagaStep{
			Name:    "manifest",
			Type:    domain.OperationTypeUpdateManifest,
			Execute: func(_ context.Context) (map[string]any, error) { return nil, nil },
		})
		assert.NoError(t, saga.Execute(context.Background()))
	})
}

func TestLoadExistingSaga(t *testing.T) {
	t.Run("Should roll back a persisted session with registered compensations", func(t *testing.T) {
		// Arrange
		state := domain.NewRollbackState("session-1")
		state.AddOperation(domain.OperationTypeUpdateManifest)
		state.MarkOperationStarted(domain.OperationTypeUpdateManifest)
		state.MarkOperationCompleted(domain.OperationTypeUpdateManifest, map[string]any{"old_version": "1.0.0"})
		state.AddOperation(domain.OperationTypeCommit)
		state.MarkOperationStarted(domain.OperationTypeCommit)
		state.MarkOperationFailed(domain.OperationTypeCommit, errors.New("boom"))
		mockRepo := new(MockStateRepository)
		mockRepo.On("Load", mock.Anything, "session-1").Return(state, nil)
		mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		var out bytes.Buffer
		saga, err := LoadExistingSaga(context.Background(), mockRepo, "session-1", zap.NewNop(), &out)
		require.NoError(t, err)
		var restored string
		saga.RegisterCompensation(domain.OperationTypeUpdateManifest, "manifest", func(_ context.Context, data map[string]any) error {
			restored = data["old_version"].(string)
			return nil
		})

		// Act
		err = saga.Rollback(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", restored)
		assert.Len(t, saga.GetState().Operations, 2)
		assert.Equal(t, domain.WorkflowStatusRolledBack, saga.GetState().Status)
	})

	t.Run("Should wrap load failures", func(t *testing.T) {
		mockRepo := new(MockStateRepository)
		mockRepo.On("Load", mock.Anything, "missing").Return(nil, errors.New("not found"))
		_, err := LoadExistingSaga(context.Background(), mockRepo, "missing", zap.NewNop(), &bytes.Buffer{})
		assert.ErrorContains(t, err, "failed to load saga state")
	})
}
