package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is the name of the environment file looked up next to the
// config file and in the working directory.
const DotEnvFile = ".env"

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Load reads, expands, validates and defaults the manifest at filename.
// Variables already present in the environment win over .env files.
func Load(filename string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(filename), DotEnvFile), DotEnvFile); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		dir = filepath.Dir(filename)
	}
	cfg.ConfigDir = dir
	if !filepath.IsAbs(cfg.Storage.Local.BaseDir) {
		cfg.Storage.Local.BaseDir = filepath.Join(dir, cfg.Storage.Local.BaseDir)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it. Relative
// paths are left as they are.
func Parse(data []byte) (*Config, error) {
	data = ExpandEnv(data)

	// Step 1: JSON Schema validation (structure, types, enums)
	if err := ValidateServerConfig(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &manifest.Spec
	cfg.Name = manifest.Metadata.Name
	cfg.applyDefaults()

	// Step 2: rules the schema cannot express
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces ${VAR} and ${VAR:-default} with values from the
// environment. Unset variables without a default expand to "".
func ExpandEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		if v, ok := os.LookupEnv(string(groups[1])); ok && v != "" {
			return []byte(v)
		}
		return groups[3]
	})
}

// loadDotEnv loads each existing file into the environment without
// overriding variables that are already set.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
