package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// File is an optional YAML or INI config file.
	File string

	// EnvFile is an optional dotenv file. Values in it never override the
	// real environment. Missing files are ignored.
	EnvFile string

	// Flags holds command-line overrides; nil means none.
	Flags *Flags

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, the config file, the dotenv file,
// the environment and flags, in that order of increasing precedence. The
// bearer token is read last from Repository.TokenPath.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := loadFile(cfg, opts.File); err != nil {
			return nil, err
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", opts.EnvFile, err)
		}

		lookup = layered(lookup, dotenv)
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		kind := cfg.Tracker.Kind
		opts.Flags.apply(cfg)

		// Credentials follow the backend chosen on the command line.
		if cfg.Tracker.Kind != kind {
			applyTrackerEnv(cfg, lookup)
		}
	}

	token, err := ReadToken(cfg.Repository.TokenPath)
	if err != nil {
		return nil, err
	}

	cfg.Repository.Token = token

	return cfg, nil
}

// ReadToken reads a bearer token file. An empty path or a missing file
// yields an empty token.
func ReadToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".ini", ".conf", ".cfg":
		file, err := ini.Load(path)
		if err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}

		sections := []struct {
			name string
			dst  any
		}{
			{"repository", &cfg.Repository},
			{"tracker", &cfg.Tracker},
			{"chat", &cfg.Chat},
			{"state", &cfg.State},
			{"links", &cfg.Links},
		}

		for _, s := range sections {
			if err := file.Section(s.name).MapTo(s.dst); err != nil {
				return fmt.Errorf("failed to map [%s]: %w", s.name, err)
			}
		}
	default:
		return fmt.Errorf("unsupported config file type %q (want .yaml, .yml, .ini or .conf)", filepath.Ext(path))
	}

	return nil
}

func layered(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}

		v, ok := fallback[key]

		return v, ok
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SUBBOT_TRACKER", &cfg.Tracker.Kind)
	cfg.Tracker.Kind = strings.ToLower(cfg.Tracker.Kind)

	str("MN_BASE_URL", &cfg.Repository.BaseURL)
	str("TOKEN_PATH", &cfg.Repository.TokenPath)
	str("SLACK_WEBHOOK_URL", &cfg.Chat.WebhookURL)
	str("LASTFILE_PATH", &cfg.State.Path)
	str("SUBBOT_STATE_BACKEND", &cfg.State.Backend)
	str("SUBBOT_QUEUE", &cfg.Tracker.Queue)
	str("SUBBOT_TIMEZONE", &cfg.Tracker.TimeZone)
	str("SUBBOT_RECIPIENT", &cfg.Chat.Recipient)
	str("ORCID_BASE_URL", &cfg.Links.OrcidURL)
	str("CATALOG_URL", &cfg.Links.CatalogURL)

	applyTrackerEnv(cfg, lookup)

	if v, ok := lookup("SUBBOT_MAX_ITEMS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUBBOT_MAX_ITEMS: %w", err)
		}

		cfg.Chat.MaxItems = n
	}

	cfg.Repository.BaseURL = strings.TrimSuffix(cfg.Repository.BaseURL, "/")

	return nil
}

func applyTrackerEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	switch cfg.Tracker.Kind {
	case TrackerJira:
		str("JIRA_URL", &cfg.Tracker.URL)
		str("JIRA_EMAIL", &cfg.Tracker.User)
		str("JIRA_API_TOKEN", &cfg.Tracker.Password)
	default:
		str("RT_URL", &cfg.Tracker.URL)
		str("RT_USER", &cfg.Tracker.User)
		str("RT_PASS", &cfg.Tracker.Password)
	}

	cfg.Tracker.URL = strings.TrimSuffix(cfg.Tracker.URL, "/")
}
