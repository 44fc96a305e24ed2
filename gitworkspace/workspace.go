// Package gitworkspace manages local working copies of project repositories
// (spec.md §4.2). Every git invocation shells out via os/exec with an
// explicit cwd, the same approach the teacher's tools/git executor uses.
package gitworkspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Credentials configures how the workspace authenticates to the remote.
type Credentials struct {
	SSHKeyPath      string
	Username        string
	Password        string
	Token           string
	CredentialsPath string // file written with 0600 when injecting a URL secret
}

// Workspace manages repository checkouts under BaseDir.
type Workspace struct {
	BaseDir               string
	Creds                 Credentials
	UserName              string
	UserEmail             string
	AllowWorkspaceMutation bool
	ProcessCWD            string
	logger                *slog.Logger
}

// New builds a Workspace rooted at baseDir.
func New(baseDir string, creds Credentials, userName, userEmail string, allowWorkspaceMutation bool, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	cwd, _ := os.Getwd()
	return &Workspace{
		BaseDir:                baseDir,
		Creds:                  creds,
		UserName:               userName,
		UserEmail:              userEmail,
		AllowWorkspaceMutation: allowWorkspaceMutation,
		ProcessCWD:             cwd,
		logger:                 logger,
	}
}

// Resolve returns the absolute repo directory for a project, preferring
// projectHint over the remote URL's last path segment (spec.md §4.2).
func (w *Workspace) Resolve(projectHint, remoteURL string) string {
	return filepath.Join(w.BaseDir, RepoDirName(projectHint, remoteURL))
}

// guard rejects mutating operations against the process's own working
// directory unless explicitly allowed (spec.md §4.2 "Workspace guard").
func (w *Workspace) guard(repoRoot string) error {
	if w.AllowWorkspaceMutation {
		return nil
	}
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil
	}
	if w.ProcessCWD != "" && absRoot == w.ProcessCWD {
		return newErr("guard", KindWorkspaceGuarded, fmt.Errorf("refusing to mutate process working directory %s", absRoot))
	}
	return nil
}

// Ensure makes sure repoRoot exists and is a usable git clone of remoteURL,
// cloning on demand (spec.md §4.2 "Ensure").
func (w *Workspace) Ensure(ctx context.Context, repoRoot, remoteURL string) error {
	if err := w.guard(repoRoot); err != nil {
		return err
	}
	if err := ValidateRemoteURL(remoteURL); err != nil {
		return newErr("ensure", KindCloneFailed, err)
	}
	if err := ValidateRepoPath(w.BaseDir, repoRoot); err != nil {
		return newErr("ensure", KindCloneFailed, err)
	}

	info, err := os.Stat(repoRoot)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(repoRoot), 0o755); mkErr != nil {
			return newErr("ensure", KindCloneFailed, mkErr)
		}
		cloneURL := w.authenticatedURL(remoteURL)
		if err := w.setupCredentialStore(); err != nil {
			return newErr("ensure", KindCloneFailed, err)
		}
		if _, err := w.run(ctx, w.BaseDir, "clone", cloneURL, repoRoot); err != nil {
			return newErr("ensure", KindCloneFailed, err)
		}
		return nil
	}
	if err != nil {
		return newErr("ensure", KindCloneFailed, err)
	}
	if !info.IsDir() {
		return newErr("ensure", KindCloneFailed, fmt.Errorf("%s exists and is not a directory", repoRoot))
	}
	if !w.isGitRepo(repoRoot) {
		return newErr("ensure", KindRepoReusable, fmt.Errorf("%s exists but is not a git repository", repoRoot))
	}

	originURL := w.authenticatedURL(remoteURL)
	if _, err := w.run(ctx, repoRoot, "remote", "set-url", "origin", originURL); err != nil {
		return newErr("ensure", KindCloneFailed, err)
	}
	if _, err := w.run(ctx, repoRoot, "fetch", "--all", "--tags"); err != nil {
		return newErr("ensure", KindCloneFailed, err)
	}
	return nil
}

// authenticatedURL rewrites remoteURL to use ssh when a key is configured,
// otherwise injects username/token into the URL (spec.md §4.2 "Credentials").
func (w *Workspace) authenticatedURL(remoteURL string) string {
	if w.Creds.SSHKeyPath != "" {
		return toSSHURL(remoteURL)
	}
	if w.Creds.Token == "" && w.Creds.Password == "" {
		return remoteURL
	}
	secret := w.Creds.Token
	if secret == "" {
		secret = w.Creds.Password
	}
	user := w.Creds.Username
	if user == "" {
		user = "x-access-token"
	}
	if idx := strings.Index(remoteURL, "://"); idx != -1 {
		scheme := remoteURL[:idx+3]
		rest := remoteURL[idx+3:]
		return fmt.Sprintf("%s%s:%s@%s", scheme, user, secret, rest)
	}
	return remoteURL
}

var sshShorthand = regexp.MustCompile(`^(?:https?://)?([^/@]+)/(.+)$`)

func toSSHURL(remoteURL string) string {
	if strings.HasPrefix(remoteURL, "git@") {
		return remoteURL
	}
	m := sshShorthand.FindStringSubmatch(remoteURL)
	if m == nil {
		return remoteURL
	}
	host, path := m[1], strings.TrimPrefix(m[2], "/")
	return fmt.Sprintf("git@%s:%s", host, path)
}

// setupCredentialStore writes a 0600 credential-store file when the
// workspace injects a secret into the URL instead of using ssh.
func (w *Workspace) setupCredentialStore() error {
	if w.Creds.SSHKeyPath != "" || w.Creds.CredentialsPath == "" {
		return nil
	}
	if w.Creds.Token == "" && w.Creds.Password == "" {
		return nil
	}
	return os.WriteFile(w.Creds.CredentialsPath, []byte(""), 0o600)
}

func (w *Workspace) isGitRepo(repoRoot string) bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// run executes a git subcommand with an explicit working directory (never
// the process cwd) and returns combined stdout/stderr.
func (w *Workspace) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

func (w *Workspace) branchExistsLocal(ctx context.Context, repoRoot, branch string) bool {
	_, err := w.run(ctx, repoRoot, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func (w *Workspace) branchExistsRemote(ctx context.Context, repoRoot, branch string) bool {
	_, err := w.run(ctx, repoRoot, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return err == nil
}
