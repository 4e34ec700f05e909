package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/repository"
)

// PrepareReleaseNotesUseCase renders the GitHub release body for a version tag.
type PrepareReleaseNotesUseCase struct {
	GitRepo repository.GitRepository
}

// sanitizeLine escapes HTML so commit subjects cannot inject markup into the
// release page. Quotes and ampersands are restored since markdown renders them as text.
func (uc *PrepareReleaseNotesUseCase) sanitizeLine(line string) string {
	escaped := html.EscapeString(strings.TrimSpace(line))
	replacer := strings.NewReplacer("&#34;", "\"", "&#39;", "'", "&amp;", "&")
	return replacer.Replace(escaped)
}

// Execute collects the commit subjects since previousTag and renders the notes.
// An empty previousTag means the whole history.
func (uc *PrepareReleaseNotesUseCase) Execute(
	ctx context.Context,
	release *domain.Release,
	previousTag string,
) (string, error) {
	if release == nil {
		return "", fmt.Errorf("release cannot be nil")
	}
	if release.Version == "" {
		return "", fmt.Errorf("release version cannot be empty")
	}
	messages, err := uc.GitRepo.CommitMessagesSince(ctx, previousTag)
	if err != nil {
		return "", fmt.Errorf("failed to read commits since %q: %w", previousTag, err)
	}
	changes := make([]string, 0, len(messages))
	for _, msg := range messages {
		subject, _, _ := strings.Cut(msg, "\n")
		subject = uc.sanitizeLine(subject)
		if subject == "" || strings.HasPrefix(subject, "chore(release)") {
			continue
		}
		changes = append(changes, subject)
	}
	data := struct {
		Version     string
		PreviousTag string
		Prerelease  bool
		Changes     []string
	}{
		Version:     html.EscapeString(release.Version),
		PreviousTag: html.EscapeString(previousTag),
		Prerelease:  release.Prerelease,
		Changes:     changes,
	}
	tmpl, err := template.New("release-notes").Option("missingkey=error").Parse(releaseNotesTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse release notes template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute release notes template: %w", err)
	}
	output := buf.String()
	if strings.Contains(strings.ToLower(output), "<script") {
		return "", fmt.Errorf("potential injection detected in release notes")
	}
	return output, nil
}

const releaseNotesTemplate = `## {{.Version}}
{{if .Prerelease}}
> This is a prerelease build.
{{end}}
### Changes{{if .PreviousTag}} since {{.PreviousTag}}{{end}}

{{range .Changes}}- {{.}}
{{else}}- No notable changes
{{end}}`
