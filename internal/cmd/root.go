package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghmirror",
	Short: "Back up GitHub repositories into local bare mirrors",
	Long: `Ghmirror backs up every repository visible to a GitHub account by
mirroring each one into a local bare repository. Mirrors are created on
first encounter and re-synced on every run, so repeated runs are safe and
pick up new branches, tags, and deletions.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(initCmd)
}
