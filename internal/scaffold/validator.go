package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/dray/internal/config"
)

// CheckExisting checks if packageRoot already has a dray.yml.
// Returns an error if it does, nil otherwise
func CheckExisting(packageRoot string) error {
	configPath := filepath.Join(packageRoot, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		errMsg := fmt.Sprintf("already initialized\n\nFound existing: %s", configPath)
		errMsg += "\n\nUse 'dray init --force' to reinitialize (this will overwrite existing configuration)"

		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
