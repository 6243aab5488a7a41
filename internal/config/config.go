package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileName is the well-known config file looked up in the package root
const FileName = "dray.yml"

// Config represents the dray.yml release coordinates
type Config struct {
	Repo         string `yaml:"repo"`          // GitHub owner/name that builds the native binaries
	Workflow     string `yaml:"workflow"`      // workflow whose runs carry the native artifacts
	BranchPrefix string `yaml:"branch_prefix"` // release branches are named <prefix><version>
	PackageRoot  string `yaml:"package_root"`  // directory holding package.json and bin/
}

// Default returns the configuration used when no dray.yml is present
func Default() *Config {
	return &Config{
		Repo:         "dyluth/cub",
		Workflow:     "native-release",
		BranchPrefix: "release-v",
		PackageRoot:  ".",
	}
}

// ReleaseBranch returns the branch that carries the given version
func (c *Config) ReleaseBranch(version string) string {
	return c.BranchPrefix + version
}

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*/[A-Za-z0-9._-]+$`)

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	// Required: repo in owner/name form
	if c.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if !repoPattern.MatchString(c.Repo) {
		return fmt.Errorf("invalid repo: %s (expected owner/name)", c.Repo)
	}

	// Required: workflow
	if c.Workflow == "" {
		return fmt.Errorf("workflow is required")
	}

	// Required: branch prefix
	if c.BranchPrefix == "" {
		return fmt.Errorf("branch_prefix is required")
	}

	// Required: package root
	if c.PackageRoot == "" {
		return fmt.Errorf("package_root is required")
	}

	return nil
}

// Load reads and validates dray.yml from the specified path.
// A missing file is not an error: defaults apply, and fields left unset
// in the file keep their default values.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
