package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/viper"
)

const (
	configName = ".nodekit"
	envPrefix  = "NODEKIT"
	// keyDelimiter keeps dotted map keys such as "*.ts" or "pull.rebase" intact.
	keyDelimiter = "::"
)

type VersionConfig struct {
	PrereleaseID   string `mapstructure:"prerelease_id"   yaml:"prerelease_id"`
	TagPrefix      string `mapstructure:"tag_prefix"      yaml:"tag_prefix"`
	CommitMessage  string `mapstructure:"commit_message"  yaml:"commit_message"`
	GitCommit      bool   `mapstructure:"git_commit"      yaml:"git_commit"`
	GitTag         bool   `mapstructure:"git_tag"         yaml:"git_tag"`
	GitPush        bool   `mapstructure:"git_push"        yaml:"git_push"`
	GithubRelease  bool   `mapstructure:"github_release"  yaml:"github_release"`
	EnableRollback bool   `mapstructure:"enable_rollback" yaml:"enable_rollback"`
}

type PublishConfig struct {
	DefaultTag string `mapstructure:"default_tag" yaml:"default_tag"`
	StableTag  string `mapstructure:"stable_tag"  yaml:"stable_tag"`
	Access     string `mapstructure:"access"      yaml:"access"`
	Registry   string `mapstructure:"registry"    yaml:"registry"`
}

type InstallConfig struct {
	PackageManager string `mapstructure:"package_manager" yaml:"package_manager"`
	FrozenLockfile bool   `mapstructure:"frozen_lockfile" yaml:"frozen_lockfile"`
}

type LintConfig struct {
	Command string   `mapstructure:"command"  yaml:"command"`
	Args    []string `mapstructure:"args"     yaml:"args"`
	FixFlag string   `mapstructure:"fix_flag" yaml:"fix_flag"`
}

type FormatConfig struct {
	Command   string   `mapstructure:"command"    yaml:"command"`
	Args      []string `mapstructure:"args"       yaml:"args"`
	WriteFlag string   `mapstructure:"write_flag" yaml:"write_flag"`
	CheckFlag string   `mapstructure:"check_flag" yaml:"check_flag"`
}

// CheckCommand is an extra shell command run by `nodekit check`.
type CheckCommand struct {
	Name string `mapstructure:"name" yaml:"name"`
	Run  string `mapstructure:"run"  yaml:"run"`
}

type CheckConfig struct {
	Commands      []CheckCommand `mapstructure:"commands"       yaml:"commands"`
	RequiredFiles []string       `mapstructure:"required_files" yaml:"required_files"`
	SkipLint      bool           `mapstructure:"skip_lint"      yaml:"skip_lint"`
	SkipFormat    bool           `mapstructure:"skip_format"    yaml:"skip_format"`
}

type GitConfig struct {
	Config map[string]string `mapstructure:"config" yaml:"config"`
}

type Config struct {
	LogLevel    string              `mapstructure:"log_level"    yaml:"log_level"`
	Manifest    string              `mapstructure:"manifest"     yaml:"manifest"`
	Version     VersionConfig       `mapstructure:"version"      yaml:"version"`
	Publish     PublishConfig       `mapstructure:"publish"      yaml:"publish"`
	Install     InstallConfig       `mapstructure:"install"      yaml:"install"`
	Lint        LintConfig          `mapstructure:"lint"         yaml:"lint"`
	Format      FormatConfig        `mapstructure:"format"       yaml:"format"`
	LintStaged  map[string][]string `mapstructure:"lint_staged"  yaml:"lint_staged"`
	Check       CheckConfig         `mapstructure:"check"        yaml:"check"`
	Hooks       map[string]string   `mapstructure:"hooks"        yaml:"hooks"`
	Git         GitConfig           `mapstructure:"git"          yaml:"git"`
	GithubToken string              `mapstructure:"github_token" yaml:"github_token"`
	GithubOwner string              `mapstructure:"github_owner" yaml:"github_owner"`
	GithubRepo  string              `mapstructure:"github_repo"  yaml:"github_repo"`
	NpmToken    string              `mapstructure:"npm_token"    yaml:"npm_token"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Manifest: "package.json",
		Version: VersionConfig{
			TagPrefix:     "v",
			CommitMessage: "chore(release): %s",
			GitCommit:     true,
			GitTag:        true,
		},
		Publish: PublishConfig{
			DefaultTag: domain.DefaultDistTag,
			StableTag:  domain.StableDistTag,
		},
		Lint: LintConfig{
			Command: "eslint",
			Args:    []string{"."},
			FixFlag: "--fix",
		},
		Format: FormatConfig{
			Command:   "prettier",
			Args:      []string{"."},
			WriteFlag: "--write",
			CheckFlag: "--check",
		},
		Check: CheckConfig{
			RequiredFiles: []string{"package.json"},
		},
	}
}

// VersionDefaults returns the fallbacks used when resolving versions.
func (c *Config) VersionDefaults() domain.VersionDefaults {
	return domain.VersionDefaults{PrereleaseID: c.Version.PrereleaseID, TagPrefix: c.Version.TagPrefix}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	clone := *c
	if clone.GithubToken != "" {
		clone.GithubToken = "***"
	}
	if clone.NpmToken != "" {
		clone.NpmToken = "***"
	}
	return &clone
}

var (
	validPackageManagers = map[string]bool{"": true, "npm": true, "pnpm": true, "yarn": true, "bun": true}
	validAccess          = map[string]bool{"": true, "public": true, "restricted": true}
	validLogLevels       = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	if c.Manifest == "" {
		errs = append(errs, fmt.Errorf("manifest cannot be empty"))
	} else if strings.Contains(c.Manifest, "..") {
		errs = append(errs, fmt.Errorf("manifest contains invalid path traversal"))
	}
	if strings.ContainsAny(c.Version.TagPrefix, " \t\n") {
		errs = append(errs, fmt.Errorf("version.tag_prefix cannot contain whitespace"))
	}
	if !strings.Contains(c.Version.CommitMessage, "%s") {
		errs = append(errs, fmt.Errorf("version.commit_message must contain %%s"))
	}
	if !validAccess[c.Publish.Access] {
		errs = append(errs, fmt.Errorf("invalid publish.access %q", c.Publish.Access))
	}
	if !validPackageManagers[c.Install.PackageManager] {
		errs = append(errs, fmt.Errorf("unsupported install.package_manager %q", c.Install.PackageManager))
	}
	for name := range c.Hooks {
		if !domain.KnownHooks[name] {
			errs = append(errs, fmt.Errorf("unknown git hook %q", name))
		}
	}
	seen := map[string]bool{}
	for i, cmd := range c.Check.Commands {
		if cmd.Name == "" || cmd.Run == "" {
			errs = append(errs, fmt.Errorf("check.commands[%d] needs a name and a run command", i))
		}
		if seen[cmd.Name] {
			errs = append(errs, fmt.Errorf("duplicate check command %q", cmd.Name))
		}
		seen[cmd.Name] = true
	}
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			errs = append(errs, fmt.Errorf("invalid github_token: %w", err))
		}
	}
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			errs = append(errs, fmt.Errorf("invalid github configuration: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ValidateForGitHubOperations validates that GitHub token is present for operations that require it
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub operations")
	}
	if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
		return fmt.Errorf("invalid github configuration: %w", err)
	}
	return nil
}

var (
	classicPAT     = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	fineGrainedPAT = regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{82}$`)
	appToken       = regexp.MustCompile(`^ghs_[a-zA-Z0-9]{36}$`)
	oauthToken     = regexp.MustCompile(`^gho_[a-zA-Z0-9]{36}$`)
	personalToken  = regexp.MustCompile(`^ghp_[a-zA-Z0-9]{36}$`)
	validRepoName  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
	scpLikeRemote  = regexp.MustCompile(`^[^@/]+@[^:/]+:(.+)$`)
)

// ValidateGitHubToken validates GitHub token format (exported for reuse)
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) < 40 {
		return fmt.Errorf("token too short: expected at least 40 characters")
	}
	for _, pattern := range []*regexp.Regexp{classicPAT, fineGrainedPAT, appToken, oauthToken, personalToken} {
		if pattern.MatchString(token) {
			return nil
		}
	}
	return fmt.Errorf("invalid token format")
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names (exported for reuse)
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	if !validRepoName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validRepoName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

// populateRepositoryDefaults fills owner/repo from GITHUB_REPOSITORY, then
// from the origin remote of the repository containing dir.
func populateRepositoryDefaults(cfg *Config, dir string) error {
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		owner, repo, ok := strings.Cut(slug, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("invalid GITHUB_REPOSITORY %q", slug)
		}
		setRepositoryDefaults(cfg, owner, repo)
		return nil
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil
	}
	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return nil
	}
	owner, name, err := parseGitRemoteURL(remote.Config().URLs[0])
	if err != nil {
		return nil
	}
	setRepositoryDefaults(cfg, owner, name)
	return nil
}

func setRepositoryDefaults(cfg *Config, owner, repo string) {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = owner
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = repo
	}
}

// parseGitRemoteURL extracts owner and repository from https, ssh, scp-like
// and local path remotes.
func parseGitRemoteURL(remote string) (string, string, error) {
	path := remote
	switch {
	case strings.Contains(remote, "://"):
		u, err := url.Parse(remote)
		if err != nil {
			return "", "", fmt.Errorf("invalid remote url %q: %w", remote, err)
		}
		path = u.Path
	case scpLikeRemote.MatchString(remote):
		path = scpLikeRemote.FindStringSubmatch(remote)[1]
	}
	path = strings.TrimSuffix(strings.Trim(filepath.ToSlash(path), "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("cannot derive owner/repo from remote %q", remote)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

func newViper(dir string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	// BindEnv checks the variables in order
	bindings := map[string][]string{
		"github_token": {"NODEKIT_GITHUB_TOKEN", "GITHUB_TOKEN"},
		"github_owner": {"NODEKIT_GITHUB_OWNER", "GITHUB_OWNER"},
		"github_repo":  {"NODEKIT_GITHUB_REPO", "GITHUB_REPO"},
		"npm_token":    {"NODEKIT_NPM_TOKEN", "NPM_TOKEN"},
		"log_level":    {"NODEKIT_LOG_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	d := DefaultConfig()
	defaults := map[string]any{
		"log_level":                d.LogLevel,
		"manifest":                 d.Manifest,
		"version::prerelease_id":   d.Version.PrereleaseID,
		"version::tag_prefix":      d.Version.TagPrefix,
		"version::commit_message":  d.Version.CommitMessage,
		"version::git_commit":      d.Version.GitCommit,
		"version::git_tag":         d.Version.GitTag,
		"version::git_push":        d.Version.GitPush,
		"version::github_release":  d.Version.GithubRelease,
		"version::enable_rollback": d.Version.EnableRollback,
		"publish::default_tag":     d.Publish.DefaultTag,
		"publish::stable_tag":      d.Publish.StableTag,
		"publish::access":          d.Publish.Access,
		"publish::registry":        d.Publish.Registry,
		"install::package_manager": d.Install.PackageManager,
		"install::frozen_lockfile": d.Install.FrozenLockfile,
		"lint::command":            d.Lint.Command,
		"lint::args":               d.Lint.Args,
		"lint::fix_flag":           d.Lint.FixFlag,
		"format::command":          d.Format.Command,
		"format::args":             d.Format.Args,
		"format::write_flag":       d.Format.WriteFlag,
		"format::check_flag":       d.Format.CheckFlag,
		"check::required_files":    d.Check.RequiredFiles,
		"check::skip_lint":         d.Check.SkipLint,
		"check::skip_format":       d.Check.SkipFormat,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v, nil
}

// Load reads .nodekit.yaml from dir (optional), overlays the environment and validates.
func Load(dir string) (*Config, error) {
	v, err := newViper(dir)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := populateRepositoryDefaults(&cfg, dir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads the configuration from the working directory.
func LoadConfig() (*Config, error) {
	return Load(".")
}
