package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/dray/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize creates the dray configuration in packageRoot.
// If force is true, it will remove an existing dray.yml first.
func Initialize(packageRoot string, force bool) error {
	// Handle --force flag
	if force {
		if err := handleForce(packageRoot); err != nil {
			return err
		}
	}

	// Write dray.yml from the template
	if err := writeConfig(packageRoot); err != nil {
		return err
	}

	// Keep the vendor tree out of version control
	if err := ensureGitignore(packageRoot); err != nil {
		return err
	}

	// Validate the created file
	if err := validateCreatedConfig(packageRoot); err != nil {
		return err
	}

	return nil
}

// handleForce removes the existing configuration if --force was specified
func handleForce(packageRoot string) error {
	configPath := filepath.Join(packageRoot, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", config.FileName)
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", config.FileName, err)
		}
	}

	return nil
}

// writeConfig writes dray.yml from the embedded template
func writeConfig(packageRoot string) error {
	content, err := templatesFS.ReadFile("templates/dray.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read dray.yml template: %w", err)
	}

	configPath := filepath.Join(packageRoot, config.FileName)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	return nil
}

// ensureGitignore adds vendor/ to the package's .gitignore, creating the
// file if needed. An existing vendor/ entry is left alone.
func ensureGitignore(packageRoot string) error {
	gitignorePath := filepath.Join(packageRoot, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read .gitignore: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "vendor/" {
			return nil
		}
	}

	updated := string(content)
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += "vendor/\n"

	if err := os.WriteFile(gitignorePath, []byte(updated), 0644); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}

	return nil
}

// validateCreatedConfig validates that the created dray.yml loads cleanly
func validateCreatedConfig(packageRoot string) error {
	configPath := filepath.Join(packageRoot, config.FileName)
	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("created %s is not valid: %w", config.FileName, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(packageRoot string) {
	fmt.Println("\n✅ Successfully initialized dray!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", filepath.Join(packageRoot, config.FileName))
	fmt.Printf("  ✓ %s (vendor/ ignored)\n", filepath.Join(packageRoot, ".gitignore"))
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Review %s and point it at your repository\n", config.FileName)
	fmt.Println("  2. Run 'dray vendor' to pull native binaries into vendor/")
	fmt.Println("  3. Run 'dray release --release-version <version>' to stage and pack")
}
