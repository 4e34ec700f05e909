package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	formatcfg "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	xsemver "golang.org/x/mod/semver"
)

const (
	defaultSignatureName  = "nodekit"
	defaultSignatureEmail = "nodekit@users.noreply.github.com"
)

type gitRepository struct {
	repo *git.Repository
	root string
}

// NewGitRepository opens the repository containing path, walking up to find .git.
func NewGitRepository(path string) (GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotGitRepository, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	root := path
	if w, err := repo.Worktree(); err == nil {
		root = w.Filesystem.Root()
	}
	return &gitRepository{repo: repo, root: root}, nil
}

// LatestVersionTag returns the highest tag "<prefix><semver>", or "" when none exists.
func (r *gitRepository) LatestVersionTag(_ context.Context, prefix string) (string, error) {
	if remote, err := r.repo.Remote("origin"); err == nil {
		//nolint:errcheck // local tags are sufficient when the fetch fails
		_ = remote.Fetch(&git.FetchOptions{
			RefSpecs: []config.RefSpec{config.RefSpec("+refs/tags/*:refs/tags/*")},
			Auth:     r.getAuth(),
		})
	}
	tagRefs, err := r.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("failed to get tags: %w", err)
	}
	var latestTag, latestCanonical string
	err = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			return nil
		}
		candidate := "v" + strings.TrimPrefix(rest, "v")
		if !xsemver.IsValid(candidate) || strings.Count(candidate, ".") < 2 {
			return nil
		}
		if latestTag == "" || xsemver.Compare(candidate, latestCanonical) > 0 {
			latestTag, latestCanonical = name, candidate
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to iterate tags: %w", err)
	}
	return latestTag, nil
}

// TagExists checks if a tag exists.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// signature uses the configured git identity, falling back to a bot identity in CI.
func (r *gitRepository) signature() *object.Signature {
	sig := &object.Signature{Name: defaultSignatureName, Email: defaultSignatureEmail, When: time.Now()}
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// CreateTag creates an annotated tag on HEAD.
func (r *gitRepository) CreateTag(_ context.Context, tag, msg string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	_, err = r.repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{
		Message: msg,
		Tagger:  r.signature(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tag %s: %w", tag, err)
	}
	return nil
}

// DeleteTag removes a local tag.
func (r *gitRepository) DeleteTag(_ context.Context, tag string) error {
	if err := r.repo.DeleteTag(tag); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

func (r *gitRepository) getAuth() *http.BasicAuth {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("NODEKIT_GITHUB_TOKEN")
	}
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

func (r *gitRepository) push(ctx context.Context, refSpec string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(refSpec)},
		Auth:       r.getAuth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// PushTag pushes a tag to origin.
func (r *gitRepository) PushTag(ctx context.Context, tag string) error {
	if err := r.push(ctx, fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag)); err != nil {
		return fmt.Errorf("failed to push tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRemoteTag removes a tag from origin.
func (r *gitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	if err := r.push(ctx, ":refs/tags/"+tag); err != nil {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	return nil
}

// PushBranch pushes a branch to origin.
func (r *gitRepository) PushBranch(ctx context.Context, name string) error {
	if err := r.push(ctx, fmt.Sprintf("refs/heads/%s:refs/heads/%s", name, name)); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", name, err)
	}
	return nil
}

// GetCurrentBranch returns the name of the current branch.
func (r *gitRepository) GetCurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:7])
	}
	return head.Name().Short(), nil
}

func (r *gitRepository) Root() string {
	return r.root
}

// relToRoot turns a path relative to the working directory into one relative
// to the work tree root. Paths outside the work tree are returned unchanged.
func (r *gitRepository) relToRoot(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// AddFiles stages files matching the pattern. An existing path is staged
// literally, so names such as pages/[id].tsx are not read as globs. A pattern
// matching nothing is not an error.
func (r *gitRepository) AddFiles(_ context.Context, pattern string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	rel := r.relToRoot(pattern)
	if _, statErr := w.Filesystem.Lstat(rel); statErr == nil {
		if _, err := w.Add(rel); err != nil {
			return fmt.Errorf("failed to add %s: %w", pattern, err)
		}
		return nil
	}
	err = w.AddGlob(rel)
	if err != nil && !errors.Is(err, git.ErrGlobNoMatches) {
		return fmt.Errorf("failed to add files with pattern %s: %w", pattern, err)
	}
	return nil
}

// Commit records the staged changes.
func (r *gitRepository) Commit(_ context.Context, message string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	sig := r.signature()
	if _, err := w.Commit(message, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}
	return nil
}

// GetHeadCommit returns the SHA of the current HEAD commit.
func (r *gitRepository) GetHeadCommit(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// ResetHard performs a hard reset to the specified reference.
func (r *gitRepository) ResetHard(_ context.Context, ref string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("failed to resolve revision %s: %w", ref, err)
	}
	if err := w.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

func (r *gitRepository) resolveTagCommit(tag string) (plumbing.Hash, error) {
	ref, err := r.repo.Tag(tag)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to find tag %s: %w", tag, err)
	}
	if commit, err := r.repo.CommitObject(ref.Hash()); err == nil {
		return commit.Hash, nil
	}
	tagObj, err := r.repo.TagObject(ref.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve tag %s: %w", tag, err)
	}
	return tagObj.Target, nil
}

// CommitMessagesSince returns the messages of the commits reachable from HEAD
// and not from tag, newest first. An empty tag walks the whole history.
func (r *gitRepository) CommitMessagesSince(_ context.Context, tag string) ([]string, error) {
	stop := plumbing.ZeroHash
	if tag != "" {
		hash, err := r.resolveTagCommit(tag)
		if err != nil {
			return nil, err
		}
		stop = hash
	}
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}
	var messages []string
	err = commits.ForEach(func(c *object.Commit) error {
		if c.Hash == stop {
			return storer.ErrStop
		}
		messages = append(messages, strings.TrimSpace(c.Message))
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return messages, nil
}

// StagedFiles returns the added, modified, renamed and copied paths in the index.
func (r *gitRepository) StagedFiles(_ context.Context) ([]string, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	var files []string
	for path, st := range status {
		switch st.Staging {
		case git.Added, git.Modified, git.Renamed, git.Copied:
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// splitConfigKey splits "section.key" or "section.sub.section.key".
func splitConfigKey(key string) (section, subsection, name string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("invalid git config key %q", key)
	}
	section, name = key[:first], key[last+1:]
	if first != last {
		subsection = key[first+1 : last]
	}
	return section, subsection, name, nil
}

// GetConfigValue reads a key from the repository-local config.
func (r *gitRepository) GetConfigValue(_ context.Context, key string) (string, error) {
	section, subsection, name, err := splitConfigKey(key)
	if err != nil {
		return "", err
	}
	cfg, err := r.repo.Config()
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}
	s := cfg.Raw.Section(section)
	if subsection != "" {
		return s.Subsection(subsection).Option(name), nil
	}
	return s.Option(name), nil
}

// SetConfigValue writes a key to the repository-local config.
func (r *gitRepository) SetConfigValue(_ context.Context, key, value string) error {
	section, subsection, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	s := cfg.Raw.Section(section)
	if subsection != "" {
		s.Subsection(subsection).SetOption(name, value)
	} else {
		s.SetOption(name, value)
	}
	// Re-read the raw config so typed fields (user, core, remotes) do not
	// overwrite the new value when the config is marshaled.
	var buf bytes.Buffer
	if err := formatcfg.NewEncoder(&buf).Encode(cfg.Raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	updated := config.NewConfig()
	if err := updated.Unmarshal(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if err := r.repo.Storer.SetConfig(updated); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// HooksDir honors core.hooksPath and defaults to .git/hooks under the work tree.
func (r *gitRepository) HooksDir(ctx context.Context) (string, error) {
	custom, err := r.GetConfigValue(ctx, "core.hooksPath")
	if err != nil {
		return "", err
	}
	if custom != "" {
		if filepath.IsAbs(custom) {
			return custom, nil
		}
		return filepath.Join(r.root, custom), nil
	}
	return filepath.Join(r.root, git.GitDirName, "hooks"), nil
}
