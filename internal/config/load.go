package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPublishTokenEnv is the environment variable consulted for the publish
// credential when the config does not name one.
const DefaultPublishTokenEnv = "PUBLISH_TOKEN"

// Load loads configuration from the specified file.
//
// A .env / .env.local file next to the working directory is loaded first (never
// overriding variables already present in the process environment), then the
// YAML is read with ${VAR} expansion, defaults applied, and the result validated.
func Load(configPath string) (*Config, error) {
	// Best effort: absence of a .env file is normal.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse unmarshals raw YAML config bytes, expands environment variables,
// applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PublishToken resolves the publish credential from the configured environment
// variable. An empty result means no credential is available.
func (c *Config) PublishToken() string {
	env := c.Publish.TokenEnv
	if env == "" {
		env = DefaultPublishTokenEnv
	}
	return os.Getenv(env)
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Repository: Repository{
			URL:    "https://github.com/example/project.git",
			Name:   "project",
			Branch: "main",
		},
		Trigger: TriggerConfig{Branches: []string{"main"}},
		Toolchain: ToolchainConfig{
			Installer: "rustup",
			Version:   "stable",
			Profile:   ProfileMinimal,
			Override:  true,
		},
		DocGen: DocGenConfig{
			Command:   "cargo",
			Args:      []string{"doc", "--no-deps"},
			OutputDir: "target/doc",
		},
		Publish: PublishConfig{
			Branch:   "gh-pages",
			TokenEnv: DefaultPublishTokenEnv,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
