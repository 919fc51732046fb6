package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// Flags binds the command-line overrides onto a pflag.FlagSet.
type Flags struct {
	fs *pflag.FlagSet

	file          string
	envFile       string
	repositoryURL string
	webhookURL    string
	tracker       string
	stateBackend  string
	statePath     string
	maxItems      int
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVarP(&f.file, "config", "c", "", "YAML or INI config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file read before the environment")
	fs.StringVar(&f.repositoryURL, "repository-url", "", "Member Node base URL (overrides MN_BASE_URL)")
	fs.StringVar(&f.webhookURL, "webhook-url", "", "chat webhook URL (overrides SLACK_WEBHOOK_URL)")
	fs.StringVar(&f.tracker, "tracker", "", "ticket tracker backend: rt or jira")
	fs.StringVar(&f.stateBackend, "state-backend", "", "last-run marker backend: file or bolt")
	fs.StringVar(&f.statePath, "state", "", "last-run marker path (overrides LASTFILE_PATH)")
	fs.IntVar(&f.maxItems, "max-items", 0, "maximum tickets listed per chat message (0 = all)")

	return f
}

// Options returns LoadOptions carrying these flags.
func (f *Flags) Options() LoadOptions {
	return LoadOptions{
		File:    f.file,
		EnvFile: f.envFile,
		Flags:   f,
	}
}

func (f *Flags) apply(cfg *Config) {
	set := func(name, value string, dst *string) {
		if f.fs.Changed(name) && value != "" {
			*dst = value
		}
	}

	set("repository-url", strings.TrimSuffix(f.repositoryURL, "/"), &cfg.Repository.BaseURL)
	set("webhook-url", f.webhookURL, &cfg.Chat.WebhookURL)
	set("tracker", strings.ToLower(f.tracker), &cfg.Tracker.Kind)
	set("state-backend", f.stateBackend, &cfg.State.Backend)
	set("state", f.statePath, &cfg.State.Path)

	if f.fs.Changed("max-items") {
		cfg.Chat.MaxItems = f.maxItems
	}
}
