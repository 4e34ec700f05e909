package usecase

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// LintTask is one command to run against the staged files matching Pattern.
type LintTask struct {
	Pattern string
	Command string
	Files   []string
}

// LintStagedUseCase maps staged files to the commands configured for them.
type LintStagedUseCase struct{}

// Plan returns the tasks for staged, with patterns visited in sorted order.
// Patterns without a slash are matched against the file's base name.
func (uc *LintStagedUseCase) Plan(staged []string, rules map[string][]string) ([]LintTask, error) {
	patterns := make([]string, 0, len(rules))
	for pattern := range rules {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid lint_staged pattern %q", pattern)
		}
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	var tasks []LintTask
	for _, pattern := range patterns {
		files := matchFiles(pattern, staged)
		if len(files) == 0 {
			continue
		}
		for _, command := range rules[pattern] {
			if strings.TrimSpace(command) == "" {
				continue
			}
			tasks = append(tasks, LintTask{Pattern: pattern, Command: command, Files: files})
		}
	}
	return tasks, nil
}

func matchFiles(pattern string, files []string) []string {
	matchBase := !strings.Contains(pattern, "/")
	var matched []string
	for _, file := range files {
		subject := file
		if matchBase {
			subject = path.Base(file)
		}
		// ValidatePattern already ran, so Match cannot fail here.
		if ok, _ := doublestar.Match(pattern, subject); ok {
			matched = append(matched, file)
		}
	}
	return matched
}
