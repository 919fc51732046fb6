package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.Repository.BaseURL = "https://arcticdata.io/metacat/d1/mn/v2"
	cfg.Chat.WebhookURL = "https://hooks.slack.com/services/T/B/X"
	cfg.Tracker.URL = "https://rt.example.org"
	cfg.Tracker.User = "bot"
	cfg.Tracker.Password = "secret"
	cfg.State.Path = "/tmp/lastrun"

	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, EMLFormatID, cfg.FormatID)
	assert.Equal(t, []string{"arctic-data.", "autogen."}, cfg.Prefixes)
	assert.Equal(t, TrackerRT, cfg.Tracker.Kind)
	assert.Equal(t, "arcticdata", cfg.Tracker.Queue)
	assert.Equal(t, StateFile, cfg.State.Backend)
	assert.Equal(t, 50, cfg.Repository.TitleLength)
}

func TestLoad_Environment(t *testing.T) {
	tokenPath := writeFile(t, "token", "abc123\n")

	cfg, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		"MN_BASE_URL":       "https://mn.example.org/d1/mn/v2/",
		"SLACK_WEBHOOK_URL": "https://hooks.example.org/x",
		"RT_URL":            "https://rt.example.org/",
		"RT_USER":           "bot",
		"RT_PASS":           "pw",
		"LASTFILE_PATH":     "/var/lib/subbot/lastrun",
		"TOKEN_PATH":        tokenPath,
		"SUBBOT_MAX_ITEMS":  "5",
		"SUBBOT_RECIPIENT":  "@arctic",
	})})
	require.NoError(t, err)

	assert.Equal(t, "https://mn.example.org/d1/mn/v2", cfg.Repository.BaseURL)
	assert.Equal(t, "https://rt.example.org", cfg.Tracker.URL)
	assert.Equal(t, "bot", cfg.Tracker.User)
	assert.Equal(t, "pw", cfg.Tracker.Password)
	assert.Equal(t, "/var/lib/subbot/lastrun", cfg.State.Path)
	assert.Equal(t, "abc123", cfg.Repository.Token)
	assert.Equal(t, 5, cfg.Chat.MaxItems)
	assert.Equal(t, "@arctic", cfg.Chat.Recipient)
	require.NoError(t, cfg.Validate())
}

func TestLoad_JiraCredentials(t *testing.T) {
	cfg, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		"SUBBOT_TRACKER": "JIRA",
		"RT_URL":         "https://rt.example.org",
		"JIRA_URL":       "https://example.atlassian.net/",
		"JIRA_EMAIL":     "bot@example.org",
		"JIRA_API_TOKEN": "tok",
	})})
	require.NoError(t, err)

	assert.Equal(t, TrackerJira, cfg.Tracker.Kind)
	assert.Equal(t, "https://example.atlassian.net", cfg.Tracker.URL)
	assert.Equal(t, "bot@example.org", cfg.Tracker.User)
	assert.Equal(t, "tok", cfg.Tracker.Password)
}

func TestLoad_InvalidMaxItems(t *testing.T) {
	_, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{"SUBBOT_MAX_ITEMS": "lots"})})
	require.Error(t, err)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "subbot.yaml", `
repository:
  base_url: https://yaml.example.org/mn
  title_length: 40
tracker:
  queue: testqueue
  time_zone: UTC
chat:
  webhook_url: https://hooks.example.org/yaml
  max_items: 3
state:
  backend: bolt
  path: /tmp/subbot.db
`)

	cfg, err := Load(LoadOptions{File: path, LookupEnv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "https://yaml.example.org/mn", cfg.Repository.BaseURL)
	assert.Equal(t, 40, cfg.Repository.TitleLength)
	assert.Equal(t, "testqueue", cfg.Tracker.Queue)
	assert.Equal(t, "UTC", cfg.Tracker.TimeZone)
	assert.Equal(t, 3, cfg.Chat.MaxItems)
	assert.Equal(t, StateBolt, cfg.State.Backend)

	// Untouched keys keep their defaults.
	assert.Equal(t, TrackerRT, cfg.Tracker.Kind)
	assert.Equal(t, EMLFormatID, cfg.FormatID)
}

func TestLoad_INIFile(t *testing.T) {
	path := writeFile(t, "subbot.ini", `
[repository]
base_url = https://ini.example.org/mn

[tracker]
url = https://rt.ini.example.org
queue = iniqueue

[chat]
webhook_url = https://hooks.example.org/ini
recipient = @team
`)

	cfg, err := Load(LoadOptions{File: path, LookupEnv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "https://ini.example.org/mn", cfg.Repository.BaseURL)
	assert.Equal(t, "https://rt.ini.example.org", cfg.Tracker.URL)
	assert.Equal(t, "iniqueue", cfg.Tracker.Queue)
	assert.Equal(t, "@team", cfg.Chat.Recipient)
	assert.Equal(t, 50, cfg.Repository.TitleLength)
}

func TestLoad_UnsupportedFile(t *testing.T) {
	path := writeFile(t, "subbot.toml", "x = 1\n")

	_, err := Load(LoadOptions{File: path, LookupEnv: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file type")
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	envFile := writeFile(t, ".env", "MN_BASE_URL=https://dotenv.example.org\nRT_USER=dotenv-user\n")

	cfg, err := Load(LoadOptions{
		EnvFile:   envFile,
		LookupEnv: envMap(map[string]string{"MN_BASE_URL": "https://env.example.org"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.org", cfg.Repository.BaseURL)
	assert.Equal(t, "dotenv-user", cfg.Tracker.User)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(LoadOptions{
		EnvFile:   filepath.Join(t.TempDir(), "missing.env"),
		LookupEnv: envMap(nil),
	})
	require.NoError(t, err)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--repository-url", "https://flag.example.org/",
		"--tracker", "jira",
		"--max-items", "2",
	}))

	opts := flags.Options()
	opts.EnvFile = ""
	opts.LookupEnv = envMap(map[string]string{
		"MN_BASE_URL":    "https://env.example.org",
		"JIRA_URL":       "https://example.atlassian.net",
		"JIRA_EMAIL":     "bot@example.org",
		"JIRA_API_TOKEN": "tok",
	})

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.org", cfg.Repository.BaseURL)
	assert.Equal(t, TrackerJira, cfg.Tracker.Kind)
	assert.Equal(t, "https://example.atlassian.net", cfg.Tracker.URL)
	assert.Equal(t, 2, cfg.Chat.MaxItems)
}

func TestReadToken(t *testing.T) {
	token, err := ReadToken("")
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = ReadToken(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = ReadToken(writeFile(t, "token", "  tok  \n"))
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing repository",
			mutate:  func(c *Config) { c.Repository.BaseURL = "" },
			wantErr: "MN_BASE_URL",
		},
		{
			name:    "missing webhook",
			mutate:  func(c *Config) { c.Chat.WebhookURL = "" },
			wantErr: "SLACK_WEBHOOK_URL",
		},
		{
			name:    "missing rt credentials",
			mutate:  func(c *Config) { c.Tracker.Password = "" },
			wantErr: "RT_PASS",
		},
		{
			name:    "unknown tracker",
			mutate:  func(c *Config) { c.Tracker.Kind = "bugzilla" },
			wantErr: "unknown tracker",
		},
		{
			name:    "unknown state backend",
			mutate:  func(c *Config) { c.State.Backend = "redis" },
			wantErr: "unknown state backend",
		},
		{
			name:    "bad time zone",
			mutate:  func(c *Config) { c.Tracker.TimeZone = "Mars/Olympus" },
			wantErr: "time zone",
		},
		{
			name:    "negative max items",
			mutate:  func(c *Config) { c.Chat.MaxItems = -1 },
			wantErr: "max items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateChat(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, cfg.ValidateChat(), ErrInvalid)

	cfg.Chat.WebhookURL = "https://hooks.example.org/x"
	require.NoError(t, cfg.ValidateChat())
}
