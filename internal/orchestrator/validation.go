package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

var branchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// branchRules are the git check-ref-format restrictions that the character
// class above does not already cover.
var branchRules = []struct {
	bad  func(string) bool
	desc string
}{
	{func(b string) bool { return strings.HasPrefix(b, "/") || strings.HasSuffix(b, "/") }, "start or end with a slash"},
	{func(b string) bool { return strings.Contains(b, "//") }, "contain consecutive slashes"},
	{func(b string) bool { return strings.Contains(b, "..") }, "contain consecutive dots"},
	{func(b string) bool { return strings.HasSuffix(b, ".lock") || strings.HasSuffix(b, ".") }, "end with .lock or a dot"},
	{func(b string) bool {
		return strings.HasPrefix(b, "-") || strings.HasPrefix(b, ".") || strings.Contains(b, "/-") || strings.Contains(b, "/.")
	}, "start a component with - or ."},
}

// ValidateBranchName rejects branch names git would refuse to push.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty (detached HEAD?)")
	}
	if len(branch) > 255 {
		return fmt.Errorf("branch name too long: %d characters (max: 255)", len(branch))
	}
	if !branchNameRegex.MatchString(branch) {
		return fmt.Errorf("invalid branch name format: %s", branch)
	}
	for _, rule := range branchRules {
		if rule.bad(branch) {
			return fmt.Errorf("branch name cannot %s: %s", rule.desc, branch)
		}
	}
	return nil
}
