package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finna-data/mcpchat/agent"
)

const (
	defaultMCPURL     = "http://localhost:8787/mcp"
	defaultCatalogURL = "https://api.openai.com/v1/models"

	defaultHistoryPath = "~/.finna_mcp_history"
	defaultPrefsPath   = "~/.finna_mcp_prefs"
	defaultCachePath   = "~/.finna_mcp_models"
)

const defaultSystemPrompt = `You are a data assistant for Finna via MCP.
Use the available MCP tools to search records and fetch metadata.
Prefer returning records with actionable resources (images, attachments, online URLs).
When filters are needed, use the structured filter helper.
Do not ask the user for more information unless absolutely required.`

// Config holds initialization parameters for the session and its subsystems.
type Config struct {
	Agent            agent.Config `json:"agent"`
	MCPURL           string       `json:"mcp_url"`
	MCPAuthToken     string       `json:"mcp_auth_token,omitempty"`
	CatalogURL       string       `json:"catalog_url"`
	HistoryPath      string       `json:"history_path"`
	PrefsPath        string       `json:"prefs_path"`
	CatalogCachePath string       `json:"catalog_cache_path"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	agentCfg := agent.DefaultConfig()
	agentCfg.SystemPrompt = defaultSystemPrompt

	return Config{
		Agent:            agentCfg,
		MCPURL:           defaultMCPURL,
		CatalogURL:       defaultCatalogURL,
		HistoryPath:      expandPath(defaultHistoryPath),
		PrefsPath:        expandPath(defaultPrefsPath),
		CatalogCachePath: expandPath(defaultCachePath),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)

	if source.MCPURL != "" {
		c.MCPURL = source.MCPURL
	}
	if source.MCPAuthToken != "" {
		c.MCPAuthToken = source.MCPAuthToken
	}
	if source.CatalogURL != "" {
		c.CatalogURL = source.CatalogURL
	}
	if source.HistoryPath != "" {
		c.HistoryPath = source.HistoryPath
	}
	if source.PrefsPath != "" {
		c.PrefsPath = source.PrefsPath
	}
	if source.CatalogCachePath != "" {
		c.CatalogCachePath = source.CatalogCachePath
	}
}

// FromEnv returns a Config carrying only the environment overrides. MODEL
// wins over MODEL_ID when both are set.
func FromEnv() Config {
	var cfg Config

	if model := os.Getenv("MODEL_ID"); model != "" {
		cfg.Agent.Model = model
	}
	if model := os.Getenv("MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	cfg.Agent.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Agent.BaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.MCPURL = os.Getenv("MCP_URL")
	cfg.HistoryPath = expandPath(os.Getenv("FINNA_MCP_HISTORY"))
	cfg.PrefsPath = expandPath(os.Getenv("FINNA_MCP_PREFS"))
	cfg.CatalogCachePath = expandPath(os.Getenv("FINNA_MCP_MODEL_CACHE"))

	return cfg
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// expandPath resolves a leading "~/" against the user's home directory.
// When the home directory cannot be determined the path is kept as given.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
