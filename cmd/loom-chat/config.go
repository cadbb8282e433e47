// ABOUTME: YAML configuration for loom-chat: model selection, sampling, and MCP servers.
// ABOUTME: Missing provider falls back to whichever API key is present in the environment.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// agentConfig is the on-disk configuration for a loom-chat run.
type agentConfig struct {
	Name         string   `yaml:"name"`
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	APIKeyEnv    string   `yaml:"api_key_env"`
	SystemPrompt string   `yaml:"system_prompt"`
	MaxTurns     int      `yaml:"max_turns"`
	Temperature  *float64 `yaml:"temperature"`

	MCPServers []mcpServerConfig `yaml:"mcp_servers"`
}

// mcpServerConfig describes one MCP server connection. Either a command
// (stdio transport) or a URL (Streamable HTTP transport) must be set.
type mcpServerConfig struct {
	Command          string   `yaml:"command"`
	Args             []string `yaml:"args"`
	URL              string   `yaml:"url"`
	AuthorizationEnv string   `yaml:"authorization_env"`
}

// loadConfig reads and validates the YAML config file. A missing file is
// fine: the defaults plus environment detection still yield a usable setup.
func loadConfig(path string) (*agentConfig, error) {
	cfg := &agentConfig{Name: "loom-chat"}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Name == "" {
		cfg.Name = "loom-chat"
	}
	for i, server := range cfg.MCPServers {
		if server.Command == "" && server.URL == "" {
			return nil, fmt.Errorf("mcp_servers[%d]: either command or url is required", i)
		}
		if server.Command != "" && server.URL != "" {
			return nil, fmt.Errorf("mcp_servers[%d]: command and url are mutually exclusive", i)
		}
	}
	return cfg, nil
}
