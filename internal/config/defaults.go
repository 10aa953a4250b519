package config

import "time"

// ApplyDefaults fills in zero-valued fields with sensible defaults.
// It is idempotent and safe to call on already-normalized configs.
func (c *Config) ApplyDefaults() {
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if len(c.Trigger.Branches) == 0 {
		c.Trigger.Branches = []string{c.Repository.Branch}
	}

	if c.Toolchain.Installer == "" {
		c.Toolchain.Installer = "rustup"
	}
	if c.Toolchain.Version == "" {
		c.Toolchain.Version = "stable"
	}
	if c.Toolchain.Profile == "" {
		c.Toolchain.Profile = ProfileMinimal
	}

	if c.DocGen.Command == "" {
		c.DocGen.Command = "cargo"
	}
	if len(c.DocGen.Args) == 0 {
		c.DocGen.Args = []string{"doc", "--no-deps"}
	}
	if c.DocGen.OutputDir == "" {
		c.DocGen.OutputDir = "target/doc"
	}
	if c.DocGen.Timeout <= 0 {
		c.DocGen.Timeout = 15 * time.Minute
	}

	if c.Publish.Branch == "" {
		c.Publish.Branch = "gh-pages"
	}
	if c.Publish.Remote == "" {
		c.Publish.Remote = c.Repository.URL
	}
	if c.Publish.TokenEnv == "" {
		c.Publish.TokenEnv = DefaultPublishTokenEnv
	}
	if c.Publish.AuthorName == "" {
		c.Publish.AuthorName = "docpages"
	}
	if c.Publish.AuthorEmail == "" {
		c.Publish.AuthorEmail = "docpages@localhost"
	}

	if c.Build.ShallowDepth < 0 {
		c.Build.ShallowDepth = 0
	}
	if c.Build.Retry.Mode == "" {
		c.Build.Retry.Mode = RetryBackoffLinear
	}
	if c.Build.Retry.Initial <= 0 {
		c.Build.Retry.Initial = time.Second
	}
	if c.Build.Retry.Max <= 0 {
		c.Build.Retry.Max = 30 * time.Second
	}
	if c.Build.Retry.MaxRetries < 0 {
		c.Build.Retry.MaxRetries = 0
	}

	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8080"
	}
	if c.Daemon.WebhookPath == "" {
		c.Daemon.WebhookPath = "/webhook"
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = 100
	}
	if c.Daemon.Workers <= 0 {
		c.Daemon.Workers = 1
	}
	if c.Daemon.HistoryDB == "" {
		c.Daemon.HistoryDB = "docpages.db"
	}
	if c.Daemon.NATS.Enabled && c.Daemon.NATS.Subject == "" {
		c.Daemon.NATS.Subject = "docpages.runs"
	}
}
