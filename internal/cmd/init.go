package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ghmirror/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ghmirror configuration",
	Long:  "Create a default configuration file for ghmirror",
	RunE:  runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("A configuration file already exists at %s\n", configPath)
		fmt.Print("Overwrite it? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Keeping the existing configuration.")
			return nil
		}
	}

	defaultConfig := &config.Config{
		Directory: "~/github-backup",
	}

	if err := defaultConfig.SaveToPath(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("✓ Wrote %s\n", configPath)
	fmt.Println("Edit it to set your GitHub token and backup directory.")

	return nil
}
