package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the working folders and a default config",
	Long: `Prepare the current directory for trace.

This command:
  - Creates the corpus folders and the output folder
  - Creates the folders holding the sync state and the knowledge store
  - Writes a default config file if it doesn't exist

Running it again is safe; existing files are left alone.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dirs := append([]string{}, cfg.Corpus.Roots...)
	dirs = append(dirs,
		cfg.Output.Dir,
		filepath.Dir(cfg.Sync.StateFile),
		filepath.Dir(cfg.Store.Path),
	)
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		fmt.Printf("✓ %s\n", dir)
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	created, err := writeDefaultConfig(path)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("✓ Created default config: %s\n", path)
	} else {
		fmt.Printf("Config already exists: %s\n", path)
	}

	fmt.Println("\n✓ trace initialized successfully!")
	fmt.Println("  Put your documents in the corpus folders, then run: trace sync")
	return nil
}

// writeDefaultConfig encodes the built-in defaults to path unless a file is
// already there
func writeDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config.Default()); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
