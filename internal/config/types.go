package config

import "time"

// Repository identifies the Git repository whose documentation is built and published.
type Repository struct {
	URL    string      `yaml:"url"`
	Name   string      `yaml:"name"`
	Branch string      `yaml:"branch,omitempty"`
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthType enumerates supported authentication methods (stringly for YAML compatibility).
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // ssh|token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// ToolchainProfile selects the component set installed with the toolchain.
type ToolchainProfile string

const (
	ProfileMinimal ToolchainProfile = "minimal"
	ProfileFull    ToolchainProfile = "full"
)

// ToolchainConfig describes the toolchain installed before documentation generation.
type ToolchainConfig struct {
	Installer string           `yaml:"installer,omitempty"` // installer binary, e.g. rustup
	Version   string           `yaml:"version"`             // toolchain identifier, e.g. stable or 1.84.0
	Profile   ToolchainProfile `yaml:"profile,omitempty"`   // minimal|full
	Override  bool             `yaml:"override,omitempty"`  // set as the default toolchain for the workspace
}

// DocGenConfig describes how documentation is generated from the checkout.
type DocGenConfig struct {
	Command     string        `yaml:"command,omitempty"`      // doc command binary, e.g. cargo
	Args        []string      `yaml:"args,omitempty"`         // arguments, e.g. [doc, --no-deps]
	OutputDir   string        `yaml:"output_dir,omitempty"`   // relative to the checkout, e.g. target/doc
	ReadmeIndex bool          `yaml:"readme_index,omitempty"` // render README into index.html when missing
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// PublishConfig describes the pages-branch publish destination.
type PublishConfig struct {
	Branch      string `yaml:"branch,omitempty"` // destination branch, default gh-pages
	Remote      string `yaml:"remote,omitempty"` // defaults to repository.url
	KeepFiles   bool   `yaml:"keep_files,omitempty"`
	TokenEnv    string `yaml:"token_env,omitempty"` // env var holding the publish credential
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// RetryBackoffMode enumerates backoff growth strategies for transient failures.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig holds retry/backoff tuning for the fetch and publish stages.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// BuildConfig holds pipeline tuning knobs. All zero values trigger sensible defaults.
type BuildConfig struct {
	ShallowDepth int    `yaml:"shallow_depth,omitempty"` // 0 = full clone
	Workspace    string `yaml:"workspace,omitempty"`     // base dir for run workspaces
	// WorkspacePersistent keeps the workspace directory between runs instead of
	// using per-run timestamped directories that are removed afterwards.
	WorkspacePersistent bool        `yaml:"workspace_persistent,omitempty"`
	Retry               RetryConfig `yaml:"retry,omitempty"`
}

// TriggerConfig gates which push events start a pipeline run.
type TriggerConfig struct {
	Branches []string `yaml:"branches,omitempty"` // allow-list, default [main]
}

// NATSConfig enables publication of run events to a NATS subject.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures the long-running webhook/scheduler mode.
type DaemonConfig struct {
	Listen           string        `yaml:"listen,omitempty"`
	WebhookPath      string        `yaml:"webhook_path,omitempty"`
	WebhookSecret    string        `yaml:"webhook_secret,omitempty"`
	QueueSize        int           `yaml:"queue_size,omitempty"`
	Workers          int           `yaml:"workers,omitempty"`
	ScheduleInterval time.Duration `yaml:"schedule_interval,omitempty"` // 0 disables periodic rebuilds
	HistoryDB        string        `yaml:"history_db,omitempty"`
	MetricsEnabled   bool          `yaml:"metrics_enabled,omitempty"`
	NATS             NATSConfig    `yaml:"nats,omitempty"`
}

// Config is the root configuration for docpages.
type Config struct {
	Repository Repository      `yaml:"repository"`
	Trigger    TriggerConfig   `yaml:"trigger,omitempty"`
	Toolchain  ToolchainConfig `yaml:"toolchain,omitempty"`
	DocGen     DocGenConfig    `yaml:"docgen,omitempty"`
	Publish    PublishConfig   `yaml:"publish,omitempty"`
	Build      BuildConfig     `yaml:"build,omitempty"`
	Daemon     DaemonConfig    `yaml:"daemon,omitempty"`
}
