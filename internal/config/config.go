// Package config builds the single configuration value that every subbot
// component receives at construction time.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // tracker zones resolve on hosts without a zoneinfo database

	"github.com/inovacc/subbot/internal/application"
)

// Fixed filter values. EML 2.1.1 is the only metadata schema the bot
// tracks, and only pids minted by the registry or the autogen service are
// ticketed.
const (
	EMLFormatID = "eml://ecoinformatics.org/eml-2.1.1"

	PIDPrefix    = "arctic-data."
	PIDPrefixAlt = "autogen."
)

// Tracker backends.
const (
	TrackerRT   = "rt"
	TrackerJira = "jira"
)

// State backends.
const (
	StateFile = "file"
	StateBolt = "bolt"
)

// ErrInvalid is returned (wrapped) by Validate.
var ErrInvalid = errors.New("invalid configuration")

// RepositoryConfig describes the Member Node being polled.
type RepositoryConfig struct {
	BaseURL     string `yaml:"base_url" ini:"base_url"`
	TokenPath   string `yaml:"token_path" ini:"token_path"`
	TitleLength int    `yaml:"title_length" ini:"title_length"`

	// Token is read from TokenPath, never from a config file.
	Token string `yaml:"-" ini:"-"`
}

// TrackerConfig describes the ticketing system.
type TrackerConfig struct {
	Kind     string `yaml:"kind" ini:"kind"`
	URL      string `yaml:"url" ini:"url"`
	User     string `yaml:"user" ini:"user"`
	Password string `yaml:"password" ini:"password"`
	Queue    string `yaml:"queue" ini:"queue"`

	// TimeZone is the zone the tracker's search API interprets naive
	// timestamps in.
	TimeZone string `yaml:"time_zone" ini:"time_zone"`
}

// ChatConfig describes the chat webhook and message shape.
type ChatConfig struct {
	WebhookURL string `yaml:"webhook_url" ini:"webhook_url"`
	MaxItems   int    `yaml:"max_items" ini:"max_items"`
	Recipient  string `yaml:"recipient" ini:"recipient"`
}

// StateConfig selects where the last-run marker lives.
type StateConfig struct {
	Backend string `yaml:"backend" ini:"backend"`
	Path    string `yaml:"path" ini:"path"`
}

// LinksConfig holds the URLs embedded in ticket bodies and comments.
type LinksConfig struct {
	CatalogURL     string `yaml:"catalog_url" ini:"catalog_url"`
	HandlingDocURL string `yaml:"handling_doc_url" ini:"handling_doc_url"`
	ReadmeURL      string `yaml:"readme_url" ini:"readme_url"`
	OrcidURL       string `yaml:"orcid_url" ini:"orcid_url"`
}

// Config is the complete runtime configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository" ini:"repository"`
	Tracker    TrackerConfig    `yaml:"tracker" ini:"tracker"`
	Chat       ChatConfig       `yaml:"chat" ini:"chat"`
	State      StateConfig      `yaml:"state" ini:"state"`
	Links      LinksConfig      `yaml:"links" ini:"links"`

	FormatID string   `yaml:"-" ini:"-"`
	Prefixes []string `yaml:"-" ini:"-"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Repository: RepositoryConfig{
			TitleLength: 50,
		},
		Tracker: TrackerConfig{
			Kind:     TrackerRT,
			Queue:    "arcticdata",
			TimeZone: "America/Los_Angeles",
		},
		State: StateConfig{
			Backend: StateFile,
			Path:    application.DefaultPath("lastrun"),
		},
		Links: LinksConfig{
			CatalogURL:     "https://arcticdata.io/catalog/#view/",
			HandlingDocURL: "https://github.nceas.ucsb.edu/KNB/arctic-data/blob/master/docs/handling-submissions.md",
			ReadmeURL:      "https://github.nceas.ucsb.edu/KNB/submissions-bot",
			OrcidURL:       "https://pub.orcid.org",
		},
		FormatID: EMLFormatID,
		Prefixes: []string{PIDPrefix, PIDPrefixAlt},
	}
}

// Location resolves the tracker search time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Tracker.TimeZone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(c.Tracker.TimeZone)
}

// ValidateChat checks only what test mode needs.
func (c *Config) ValidateChat() error {
	if c.Chat.WebhookURL == "" {
		return fmt.Errorf("%w:\n  * chat webhook URL is required (SLACK_WEBHOOK_URL)", ErrInvalid)
	}

	return nil
}

// Validate checks everything a full run needs.
func (c *Config) Validate() error {
	var problems []string

	if c.Repository.BaseURL == "" {
		problems = append(problems, "repository base URL is required (MN_BASE_URL)")
	}

	if c.Repository.TitleLength <= 0 {
		problems = append(problems, "repository title length must be positive")
	}

	if c.Chat.WebhookURL == "" {
		problems = append(problems, "chat webhook URL is required (SLACK_WEBHOOK_URL)")
	}

	if c.Chat.MaxItems < 0 {
		problems = append(problems, "chat max items must not be negative")
	}

	if c.Tracker.URL == "" {
		problems = append(problems, "tracker URL is required (RT_URL or JIRA_URL)")
	}

	if c.Tracker.Queue == "" {
		problems = append(problems, "tracker queue is required")
	}

	switch c.Tracker.Kind {
	case TrackerRT:
		if c.Tracker.User == "" || c.Tracker.Password == "" {
			problems = append(problems, "rt tracker needs a user and password (RT_USER, RT_PASS)")
		}
	case TrackerJira:
		if c.Tracker.User == "" || c.Tracker.Password == "" {
			problems = append(problems, "jira tracker needs an email and API token (JIRA_EMAIL, JIRA_API_TOKEN)")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown tracker %q (want %s or %s)", c.Tracker.Kind, TrackerRT, TrackerJira))
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("unknown tracker time zone %q", c.Tracker.TimeZone))
	}

	switch c.State.Backend {
	case StateFile, StateBolt:
	default:
		problems = append(problems, fmt.Sprintf("unknown state backend %q (want %s or %s)", c.State.Backend, StateFile, StateBolt))
	}

	if c.State.Path == "" {
		problems = append(problems, "state path is required (LASTFILE_PATH)")
	}

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("%w:\n  * %s", ErrInvalid, strings.Join(problems, "\n  * "))
}
