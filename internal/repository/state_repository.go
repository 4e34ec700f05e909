package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultStateDir      = ".nodekit-state"
	StateSchemaVersion   = "1.0.0"
	StateFilePermissions = 0o600
	StateDirPermissions  = 0o700
	LockTimeout          = 30 * time.Second
	LockRetryInterval    = 100 * time.Millisecond
)

// ErrStateNotFound is returned when no persisted session matches.
var ErrStateNotFound = errors.New("rollback state not found")

// StateRepository persists version sessions so they can be rolled back later.
type StateRepository interface {
	Save(ctx context.Context, state *domain.RollbackState) error
	Load(ctx context.Context, sessionID string) (*domain.RollbackState, error)
	LoadLatest(ctx context.Context) (*domain.RollbackState, error)
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type stateMetadata struct {
	SchemaVersion string    `json:"schema_version"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type stateEnvelope struct {
	Metadata stateMetadata         `json:"metadata"`
	State    *domain.RollbackState `json:"state"`
}

// JSONStateRepository stores one checksummed JSON document per session.
// Documents go through afero; the advisory locks always live on the OS
// filesystem because flock needs a real file descriptor.
type JSONStateRepository struct {
	fs       afero.Fs
	stateDir string
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewJSONStateRepository creates a JSON-backed state repository.
func NewJSONStateRepository(fs afero.Fs, stateDir string, logger *zap.Logger) *JSONStateRepository {
	if stateDir == "" {
		stateDir = DefaultStateDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStateRepository{fs: fs, stateDir: stateDir, logger: logger}
}

// Save writes state atomically through a temp file and updates the latest pointer.
func (r *JSONStateRepository) Save(ctx context.Context, state *domain.RollbackState) error {
	if err := r.fs.MkdirAll(r.stateDir, StateDirPermissions); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}
	unlock, err := r.lock(ctx, state.SessionID, false)
	if err != nil {
		return err
	}
	defer unlock()
	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	envelope := stateEnvelope{
		Metadata: stateMetadata{
			SchemaVersion: StateSchemaVersion,
			Checksum:      checksum(stateData),
			CreatedAt:     state.StartedAt,
			UpdatedAt:     time.Now(),
		},
		State: state,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state envelope: %w", err)
	}
	filename := r.stateFile(state.SessionID)
	if err := r.writeAtomic(filename, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeAtomic(r.latestFile(), []byte(filename)); err != nil {
		return fmt.Errorf("failed to update latest link: %w", err)
	}
	return nil
}

// Load reads and verifies the state of one session.
func (r *JSONStateRepository) Load(ctx context.Context, sessionID string) (*domain.RollbackState, error) {
	unlock, err := r.lock(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	defer unlock()
	data, err := afero.ReadFile(r.fs, r.stateFile(sessionID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: session %s", ErrStateNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var envelope stateEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if envelope.Metadata.SchemaVersion != StateSchemaVersion {
		return nil, fmt.Errorf("incompatible schema version: expected %s, got %s",
			StateSchemaVersion, envelope.Metadata.SchemaVersion)
	}
	stateData, err := json.Marshal(envelope.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state for checksum validation: %w", err)
	}
	if envelope.Metadata.Checksum != checksum(stateData) {
		return nil, fmt.Errorf("state checksum mismatch: data may be corrupted")
	}
	return envelope.State, nil
}

// LoadLatest loads the most recently saved session.
func (r *JSONStateRepository) LoadLatest(ctx context.Context) (*domain.RollbackState, error) {
	r.mu.RLock()
	data, err := afero.ReadFile(r.fs, r.latestFile())
	r.mu.RUnlock()
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no sessions recorded", ErrStateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest link: %w", err)
	}
	sessionID := sessionIDFromFile(string(data))
	if sessionID == "" {
		return nil, fmt.Errorf("invalid latest link target: %s", data)
	}
	return r.Load(ctx, sessionID)
}

// Delete removes a session and its lock file.
func (r *JSONStateRepository) Delete(ctx context.Context, sessionID string) error {
	unlock, err := r.lock(ctx, sessionID, false)
	if err != nil {
		return err
	}
	if err := r.fs.Remove(r.stateFile(sessionID)); err != nil && !os.IsNotExist(err) {
		unlock()
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	unlock()
	if err := os.Remove(r.lockFile(sessionID)); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove lock file", zap.String("session", sessionID), zap.Error(err))
	}
	return nil
}

// Exists reports whether a session has been saved.
func (r *JSONStateRepository) Exists(_ context.Context, sessionID string) (bool, error) {
	_, err := r.fs.Stat(r.stateFile(sessionID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check state file: %w", err)
	}
	return true, nil
}

// lock takes the per-session flock, polling until ctx or LockTimeout expires.
func (r *JSONStateRepository) lock(ctx context.Context, sessionID string, shared bool) (func(), error) {
	if err := os.MkdirAll(r.stateDir, StateDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure lock directory: %w", err)
	}
	fl := flock.New(r.lockFile(sessionID))
	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()
	try := fl.TryLock
	if shared {
		try = fl.TryRLock
	}
	ticker := time.NewTicker(LockRetryInterval)
	defer ticker.Stop()
	for {
		locked, err := try()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return func() {
				if err := fl.Unlock(); err != nil {
					r.logger.Warn("failed to unlock state file", zap.String("session", sessionID), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("could not acquire lock for session %s: %w", sessionID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *JSONStateRepository) writeAtomic(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, StateFilePermissions); err != nil {
		return err
	}
	if err := r.fs.Rename(tmp, filename); err != nil {
		if removeErr := r.fs.Remove(tmp); removeErr != nil {
			r.logger.Warn("failed to remove temp file", zap.String("file", tmp), zap.Error(removeErr))
		}
		return err
	}
	return nil
}

func (r *JSONStateRepository) stateFile(sessionID string) string {
	return filepath.Join(r.stateDir, "state-"+sessionID+".json")
}

func (r *JSONStateRepository) lockFile(sessionID string) string {
	return filepath.Join(r.stateDir, ".state-"+sessionID+".lock")
}

func (r *JSONStateRepository) latestFile() string {
	return filepath.Join(r.stateDir, "latest.txt")
}

func sessionIDFromFile(filename string) string {
	base := filepath.Base(filename)
	if !strings.HasPrefix(base, "state-") || !strings.HasSuffix(base, ".json") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, "state-"), ".json")
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
