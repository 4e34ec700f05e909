package domain

import (
	"time"
)

// WorkflowStatus is the overall status of a version workflow session.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusRunning    WorkflowStatus = "running"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusRolledBack WorkflowStatus = "rolled_back"
)

// OperationStatus is the status of a single saga step.
type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusRunning    OperationStatus = "running"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
	OperationStatusRolledBack OperationStatus = "rolled_back"
)

// OperationType identifies the type of operation
type OperationType string

const (
	OperationTypeUpdateManifest OperationType = "update_manifest"
	OperationTypeCommit         OperationType = "commit"
	OperationTypeTag            OperationType = "tag"
	OperationTypePush           OperationType = "push"
	OperationTypeGithubRelease  OperationType = "github_release"
)

// RollbackState is the persisted record of a version session, enough to
// compensate the steps that completed before a failure.
type RollbackState struct {
	SessionID    string            `json:"session_id"`
	StartedAt    time.Time         `json:"started_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	OldVersion   string            `json:"old_version"`
	Version      string            `json:"version"`
	TagName      string            `json:"tag_name,omitempty"`
	Branch       string            `json:"branch,omitempty"`
	ManifestPath string            `json:"manifest_path"`
	Operations   []OperationRecord `json:"operations"`
	Status       WorkflowStatus    `json:"status"`
	Error        string            `json:"error,omitempty"`
}

// OperationRecord is a single step of the session
type OperationRecord struct {
	ID           string          `json:"id"`
	Type         OperationType   `json:"type"`
	Status       OperationStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	RollbackData map[string]any  `json:"rollback_data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func NewRollbackState(sessionID string) *RollbackState {
	now := time.Now()
	return &RollbackState{
		SessionID:  sessionID,
		StartedAt:  now,
		UpdatedAt:  now,
		Operations: []OperationRecord{},
		Status:     WorkflowStatusPending,
	}
}

// AddOperation appends a pending record for opType.
func (rs *RollbackState) AddOperation(opType OperationType) *OperationRecord {
	now := time.Now()
	rs.Operations = append(rs.Operations, OperationRecord{
		ID:        string(opType) + "_" + now.Format("20060102150405.000"),
		Type:      opType,
		Status:    OperationStatusPending,
		StartedAt: now,
	})
	rs.UpdatedAt = now
	return &rs.Operations[len(rs.Operations)-1]
}

// GetCompletedOperations returns the completed operations, most recent first.
// Steps run one at a time, so this is reverse completion order.
func (rs *RollbackState) GetCompletedOperations() []OperationRecord {
	var completed []OperationRecord
	for i := len(rs.Operations) - 1; i >= 0; i-- {
		if rs.Operations[i].Status == OperationStatusCompleted {
			completed = append(completed, rs.Operations[i])
		}
	}
	return completed
}

// transition moves the first opType record in status from to status to and
// returns it, or nil when no record matches.
func (rs *RollbackState) transition(opType OperationType, from, to OperationStatus) *OperationRecord {
	for i := range rs.Operations {
		op := &rs.Operations[i]
		if op.Type == opType && op.Status == from {
			op.Status = to
			rs.UpdatedAt = time.Now()
			return op
		}
	}
	return nil
}

func (rs *RollbackState) MarkOperationStarted(opType OperationType) {
	if op := rs.transition(opType, OperationStatusPending, OperationStatusRunning); op != nil {
		op.StartedAt = rs.UpdatedAt
	}
}

// MarkOperationCompleted stores the data a compensation needs to undo the step.
func (rs *RollbackState) MarkOperationCompleted(opType OperationType, rollbackData map[string]any) {
	if op := rs.transition(opType, OperationStatusRunning, OperationStatusCompleted); op != nil {
		finished := rs.UpdatedAt
		op.CompletedAt = &finished
		op.RollbackData = rollbackData
	}
}

func (rs *RollbackState) MarkOperationFailed(opType OperationType, err error) {
	if op := rs.transition(opType, OperationStatusRunning, OperationStatusFailed); op != nil {
		finished := rs.UpdatedAt
		op.CompletedAt = &finished
		op.Error = err.Error()
	}
	rs.Status = WorkflowStatusFailed
	rs.Error = err.Error()
}

// MarkOperationRolledBack flags the record with the given id as compensated.
func (rs *RollbackState) MarkOperationRolledBack(id string) {
	for i := range rs.Operations {
		if rs.Operations[i].ID == id {
			rs.Operations[i].Status = OperationStatusRolledBack
			rs.UpdatedAt = time.Now()
			return
		}
	}
}

// Interrupted reports whether the session stopped before finishing, which is
// the normal case for a rollback.
func (rs *RollbackState) Interrupted() bool {
	return rs.Status == WorkflowStatusFailed || rs.Status == WorkflowStatusRunning
}
