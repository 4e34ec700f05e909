package orchestrator

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Timeouts and retry policy, overridable through NODEKIT_* environment variables.
var (
	// DefaultWorkflowTimeout bounds publish, lint and check workflows
	DefaultWorkflowTimeout = getTimeoutOrDefault("NODEKIT_WORKFLOW_TIMEOUT", 30*time.Minute, 5*time.Second)
	// VersionWorkflowTimeout bounds the version saga including pushes and the GitHub release
	VersionWorkflowTimeout = getTimeoutOrDefault("NODEKIT_VERSION_TIMEOUT", 60*time.Minute, 10*time.Second)
	// RollbackTimeout is the timeout for rollback operations
	RollbackTimeout = getTimeoutOrDefault("NODEKIT_ROLLBACK_TIMEOUT", 10*time.Minute, 100*time.Millisecond)
	// DefaultRetryCount is the number of retries for saga steps and dist-tag assignment
	DefaultRetryCount = uint64(getRetryCountOrDefault("NODEKIT_RETRY_COUNT", 3, 1))
	// DefaultRetryDelay is the initial delay for exponential backoff
	DefaultRetryDelay = getTimeoutOrDefault("NODEKIT_RETRY_DELAY", 1*time.Second, 10*time.Millisecond)
)

// isTestEnvironment detects if we're running under go test
func isTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return os.Getenv("NODEKIT_TEST_MODE") == "true"
}

func getTimeoutOrDefault(envVar string, prodDefault, testDefault time.Duration) time.Duration {
	if env := os.Getenv(envVar); env != "" {
		if duration, err := time.ParseDuration(env); err == nil {
			return duration
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}

func getRetryCountOrDefault(envVar string, prodDefault, testDefault int) int {
	if env := os.Getenv(envVar); env != "" {
		if count, err := strconv.Atoi(env); err == nil && count >= 0 {
			return count
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}
