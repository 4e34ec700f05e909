package orchestrator

import (
	"context"
	"fmt"
	"io"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/repository"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// SagaStep represents a single step in the saga workflow
type SagaStep struct {
	Name       string
	Type       domain.OperationType
	Execute    func(ctx context.Context) (rollbackData map[string]any, err error)
	Compensate func(ctx context.Context, rollbackData map[string]any) error
}

// SagaExecutor runs the version steps in order and compensates the completed
// ones, most recent first, when a later step fails.
type SagaExecutor struct {
	sessionID      string
	stateRepo      repository.StateRepository
	state          *domain.RollbackState
	steps          []SagaStep
	enableRollback bool
	logger         *zap.Logger
	out            io.Writer
}

// NewSagaExecutor creates a saga with a fresh session id. State is persisted
// and failures compensated only when enableRollback is set.
func NewSagaExecutor(
	stateRepo repository.StateRepository,
	enableRollback bool,
	logger *zap.Logger,
	out io.Writer,
) *SagaExecutor {
	sessionID := uuid.New().String()
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          domain.NewRollbackState(sessionID),
		enableRollback: enableRollback,
		logger:         logger,
		out:            out,
	}
}

// LoadExistingSaga restores a persisted session so it can be rolled back.
func LoadExistingSaga(
	ctx context.Context,
	stateRepo repository.StateRepository,
	sessionID string,
	logger *zap.Logger,
	out io.Writer,
) (*SagaExecutor, error) {
	state, err := stateRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga state: %w", err)
	}
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          state,
		enableRollback: true,
		logger:         logger,
		out:            out,
	}, nil
}

// AddStep adds a step to the saga
func (s *SagaExecutor) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
	s.state.AddOperation(step.Type)
}

// RegisterCompensation attaches a compensating action to an operation type
// already recorded in a loaded state, without adding a new operation.
func (s *SagaExecutor) RegisterCompensation(
	opType domain.OperationType,
	name string,
	compensate func(ctx context.Context, rollbackData map[string]any) error,
) {
	s.steps = append(s.steps, SagaStep{Name: name, Type: opType, Compensate: compensate})
}

// Execute runs the saga workflow with automatic rollback on failure
func (s *SagaExecutor) Execute(ctx context.Context) error {
	s.state.Status = domain.WorkflowStatusRunning
	s.saveState(ctx, "initial")
	for _, step := range s.steps {
		if err := s.executeStep(ctx, step); err != nil {
			s.state.MarkOperationFailed(step.Type, err)
			s.saveState(ctx, "failure")
			if !s.enableRollback {
				return fmt.Errorf("step '%s' failed: %w", step.Name, err)
			}
			rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RollbackTimeout)
			rollbackErr := s.rollback(rollbackCtx)
			cancel()
			if rollbackErr != nil {
				return fmt.Errorf("step '%s' failed: %w, rollback also failed: %v", step.Name, err, rollbackErr)
			}
			return fmt.Errorf("step '%s' failed and was rolled back: %w", step.Name, err)
		}
	}
	s.state.Status = domain.WorkflowStatusCompleted
	s.saveState(ctx, "final")
	return nil
}

// executeStep executes a single saga step with retry logic
func (s *SagaExecutor) executeStep(ctx context.Context, step SagaStep) error {
	s.state.MarkOperationStarted(step.Type)
	s.saveState(ctx, "step started")
	s.logger.Debug("saga step started", zap.String("step", step.Name), zap.String("session", s.sessionID))
	var rollbackData map[string]any
	backoff := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	err := retry.Do(ctx, backoff, func(retryCtx context.Context) error {
		if err := retryCtx.Err(); err != nil {
			return err
		}
		data, execErr := step.Execute(retryCtx)
		if execErr != nil {
			s.logger.Debug("saga step attempt failed", zap.String("step", step.Name), zap.Error(execErr))
			return retry.RetryableError(execErr)
		}
		rollbackData = data
		return nil
	})
	if err != nil {
		return err
	}
	s.state.MarkOperationCompleted(step.Type, rollbackData)
	s.saveState(ctx, "step completed")
	return nil
}

// Rollback executes compensating actions for completed operations
func (s *SagaExecutor) Rollback(ctx context.Context) error {
	return s.rollback(ctx)
}

func (s *SagaExecutor) rollback(ctx context.Context) error {
	completedOps := s.state.GetCompletedOperations()
	if len(completedOps) == 0 {
		fmt.Fprintln(s.out, "No operations to roll back")
		s.state.Status = domain.WorkflowStatusRolledBack
		s.saveState(ctx, "rollback")
		return nil
	}
	fmt.Fprintln(s.out, "🔄 Rolling back version session", s.sessionID)
	for _, op := range completedOps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rollback canceled: %w", err)
		}
		step := s.findStepByType(op.Type)
		if step == nil || step.Compensate == nil {
			continue
		}
		fmt.Fprintf(s.out, "Rolling back: %s\n", step.Name)
		if err := s.executeCompensation(ctx, step, op.RollbackData); err != nil {
			return fmt.Errorf("rollback failed for %s: %w", step.Name, err)
		}
		s.state.MarkOperationRolledBack(op.ID)
		s.saveState(ctx, "rollback step")
	}
	s.state.Status = domain.WorkflowStatusRolledBack
	s.saveState(ctx, "rollback")
	fmt.Fprintln(s.out, "✅ Rollback completed")
	return nil
}

func (s *SagaExecutor) executeCompensation(ctx context.Context, step *SagaStep, rollbackData map[string]any) error {
	backoff := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	return retry.Do(ctx, backoff, func(retryCtx context.Context) error {
		if err := retryCtx.Err(); err != nil {
			return err
		}
		if err := step.Compensate(retryCtx, rollbackData); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *SagaExecutor) findStepByType(opType domain.OperationType) *SagaStep {
	for i := range s.steps {
		if s.steps[i].Type == opType {
			return &s.steps[i]
		}
	}
	return nil
}

// saveState persists the state when rollback is enabled. Failures are logged only.
func (s *SagaExecutor) saveState(ctx context.Context, phase string) {
	if !s.enableRollback {
		return
	}
	if err := s.stateRepo.Save(ctx, s.state); err != nil {
		s.logger.Warn("failed to save session state", zap.String("phase", phase), zap.Error(err))
	}
}

// GetState returns the current saga state
func (s *SagaExecutor) GetState() *domain.RollbackState {
	return s.state
}

// SessionID returns the id under which the session is persisted.
func (s *SagaExecutor) SessionID() string {
	return s.sessionID
}
