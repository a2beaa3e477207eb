package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ghmirror/pkg/backup"
	"ghmirror/pkg/config"
	"ghmirror/pkg/github"
	"ghmirror/pkg/mirror"
)

var (
	backupStrict bool
	backupDryRun bool
)

var backupCmd = &cobra.Command{
	Use:   "backup [config-file]",
	Short: "Mirror all repositories visible to the configured account",
	Long: `Mirror all repositories visible to the configured GitHub account into
local bare repositories under the configured destination directory, one
subtree per owner/name pair.

The configuration file is JSON (or YAML by extension):

  {"token": "...", "directory": "~/backup", "owners": ["alice"]}

The token may instead come from the GITHUB_TOKEN environment variable or,
when running interactively, a terminal prompt. When the config file
argument is omitted, ~/.ghmirror/config.json is used.

Examples:
  ghmirror backup
  ghmirror backup backup.json
  ghmirror backup --dry-run
  ghmirror backup --strict`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupStrict, "strict", false,
		"Fail the run when the repository listing is truncated by a client or transport error")
	backupCmd.Flags().BoolVar(&backupDryRun, "dry-run", false,
		"List what would be mirrored without touching the filesystem")
}

func runBackup(_ *cobra.Command, args []string) error {
	configPath := ""
	if len(args) == 1 {
		configPath = args[0]
	} else {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token, err := resolveToken(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		return err
	}
	cfg.Token = token

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client := github.NewClient(cfg.Token).WithConfig(&github.PagerConfig{
		Strict: backupStrict,
		Logger: log,
	})

	runner := &backup.Runner{
		Config: cfg,
		Client: client,
		Syncer: mirror.NewSyncer(log),
		Log:    log,
		DryRun: backupDryRun,
	}

	sum, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	if backupDryRun {
		fmt.Printf("✓ Would mirror %d repositories (%d skipped)\n", sum.Mirrored, sum.Skipped)
		return nil
	}
	fmt.Printf("✓ Mirrored %d repositories (%d skipped)\n", sum.Mirrored, sum.Skipped)
	return nil
}

// resolveToken picks the GitHub token from the environment, then the
// config file, then an interactive prompt when stdin is a terminal.
func resolveToken(cfg *config.Config) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return strings.TrimSpace(token), nil
	}
	if cfg.Token != "" {
		return strings.TrimSpace(cfg.Token), nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no GitHub token found: set GITHUB_TOKEN or the token field in the config file")
	}

	fmt.Fprint(os.Stderr, "GitHub token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("no GitHub token entered")
	}
	return token, nil
}
