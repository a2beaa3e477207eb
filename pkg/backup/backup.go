// Package backup orchestrates a full backup run: it resolves the
// destination root, pages through the authenticated user's repository
// listing, and mirrors each admitted repository strictly one at a time, in
// API listing order. Sequential processing is what enforces the
// at-most-one-writer invariant per mirror target.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ghmirror/pkg/config"
	"ghmirror/pkg/github"
)

// dirMode is the permission mode for created destination directories.
const dirMode = 0o770

// Mirrorer syncs one repository into destRoot/name and returns the owner
// login parsed from the clone URL.
type Mirrorer interface {
	Mirror(ctx context.Context, destRoot, name, cloneURL, username, token string) (string, error)
}

// Summary is the bookkeeping result of a run.
type Summary struct {
	Mirrored int
	Skipped  int
}

// Runner drives one backup run.
type Runner struct {
	Config *config.Config
	Client *github.Client
	Syncer Mirrorer
	Log    *slog.Logger

	// DryRun logs decisions without touching the filesystem.
	DryRun bool
}

// Run executes the backup. Name validation failures and mirror failures
// abort the run; a truncated listing (in non-strict mode) ends it as if
// the listing were exhausted.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	root := r.Config.Directory
	if !r.DryRun {
		created, err := ensureDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to create destination root: %w", err)
		}
		if created {
			log.Info("created destination directory", "path", root)
		}
	}

	user, err := r.Client.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}
	log.Info("authenticated", "login", user.Login)

	sum := &Summary{}
	pager := r.Client.Repos()
	for pager.Next(ctx) {
		for _, repo := range pager.Page() {
			name, err := github.CheckName(repo.Name)
			if err != nil {
				return sum, err
			}
			owner, err := github.CheckName(repo.Owner)
			if err != nil {
				return sum, err
			}

			if !r.Config.OwnerAllowed(owner) {
				log.Debug("skipping repository, owner not in allowlist",
					"owner", owner, "name", name)
				sum.Skipped++
				continue
			}

			if r.DryRun {
				log.Info("would mirror", "owner", owner, "name", name)
				sum.Mirrored++
				continue
			}

			ownerPath := filepath.Join(root, owner)
			if err := os.MkdirAll(ownerPath, dirMode); err != nil {
				return sum, fmt.Errorf("failed to create owner directory %s: %w", ownerPath, err)
			}

			log.Info("mirroring", "owner", owner, "name", name)
			if _, err := r.Syncer.Mirror(ctx, ownerPath, name, repo.CloneURL, user.Login, r.Config.Token); err != nil {
				return sum, err
			}
			sum.Mirrored++
		}
	}
	if err := pager.Err(); err != nil {
		return sum, err
	}

	return sum, nil
}

// ensureDir creates dir with all missing ancestors and reports whether it
// was newly created.
func ensureDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return false, err
	}
	return true, nil
}
