// Package mirror maintains local bare repository mirrors. Each target is
// created on first encounter with git init --bare and refreshed on every
// run with a forced, pruning, tag-inclusive fetch, making repeated runs
// idempotent. Git itself is an opaque external tool invoked through two
// fixed command forms.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// dirMode is the permission mode for created mirror directories.
const dirMode = 0o770

// MirrorError reports a failed step while mirroring one repository. It
// carries the repository identity and, for git failures, the masked
// command output.
type MirrorError struct {
	Owner  string
	Name   string
	Step   string
	Output string
	Err    error
}

// Error implements the error interface.
func (e *MirrorError) Error() string {
	id := e.Name
	if e.Owner != "" {
		id = e.Owner + "/" + e.Name
	}
	msg := fmt.Sprintf("mirror %s: %s: %v", id, e.Step, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MirrorError) Unwrap() error {
	return e.Err
}

// commandRunner executes an external command in dir and returns its
// combined output. Injectable so tests never shell out.
type commandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Syncer mirrors remote repositories into local bare repositories.
type Syncer struct {
	// Git is the version-control binary to invoke.
	Git string
	Log *slog.Logger

	run commandRunner
}

// NewSyncer returns a Syncer invoking the git binary from PATH.
func NewSyncer(log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{Git: "git", Log: log, run: runCommand}
}

// Mirror syncs one repository into destRoot/name. The steps run strictly
// in order: ensure the directory, initialize a bare repository unless one
// already exists, then fetch all branch refs and tags from the
// credentialed clone URL, pruning refs gone upstream. It returns the owner
// login parsed from the clone URL path. Any failing step aborts with a
// *MirrorError; the caller decides whether that ends the whole run.
func (s *Syncer) Mirror(ctx context.Context, destRoot, name, cloneURL, username, token string) (string, error) {
	owner, err := ownerFromCloneURL(cloneURL)
	if err != nil {
		return "", &MirrorError{Name: name, Step: "parse clone URL", Err: err}
	}

	repoPath := filepath.Join(destRoot, name)
	if err := os.MkdirAll(repoPath, dirMode); err != nil {
		return "", &MirrorError{Owner: owner, Name: name, Step: "create directory", Err: err}
	}

	if !isBareRepo(repoPath) {
		s.Log.Debug("initializing bare repository", "path", repoPath)
		out, err := s.run(ctx, repoPath, s.Git, "init", "--bare", "--quiet")
		if err != nil {
			return "", &MirrorError{
				Owner:  owner,
				Name:   name,
				Step:   "init bare repository",
				Output: maskSecrets(string(out), token),
				Err:    err,
			}
		}
	}

	authURL, err := PrepareRepoURL(cloneURL, username, token)
	if err != nil {
		return "", &MirrorError{Owner: owner, Name: name, Step: "prepare clone URL", Err: err}
	}

	out, err := s.run(ctx, repoPath, s.Git,
		"fetch", "--force", "--prune", "--tags", authURL, "refs/heads/*:refs/heads/*")
	if err != nil {
		return "", &MirrorError{
			Owner:  owner,
			Name:   name,
			Step:   "fetch",
			Output: maskSecrets(string(out), token),
			Err:    err,
		}
	}

	return owner, nil
}

// PrepareRepoURL embeds username:token credentials into the authority
// component of a clone URL, preserving scheme, path, and query. Kept
// isolated so credential-helper based authentication could replace it
// without touching the mirror steps.
func PrepareRepoURL(cloneURL, username, token string) (string, error) {
	u, err := url.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("parsing clone URL: %w", err)
	}
	u.User = url.UserPassword(username, token)
	return u.String(), nil
}

// ownerFromCloneURL extracts the owner login from the second-to-last path
// segment of a clone URL.
func ownerFromCloneURL(cloneURL string) (string, error) {
	u, err := url.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("parsing clone URL: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("clone URL %q has no owner path segment", cloneURL)
	}
	return segments[len(segments)-2], nil
}

// isBareRepo reports whether path already holds bare repository metadata.
// Git config files are INI; a freshly initialized bare repository writes
// core.bare = true there. Re-running init on such a path is skipped so
// repeated runs never touch existing history.
func isBareRepo(path string) bool {
	cfg, err := ini.Load(filepath.Join(path, "config"))
	if err != nil {
		return false
	}
	return cfg.Section("core").Key("bare").MustBool(false)
}

// maskSecrets hides secrets in command output before it reaches logs or
// error messages.
func maskSecrets(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "###")
		}
	}
	return s
}
