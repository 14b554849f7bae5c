package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Confirm modes for the apply phase.
const (
	ConfirmPrompt      = "prompt"      // one-key confirmation per file
	ConfirmAuto        = "auto"        // apply everything without asking
	ConfirmInteractive = "interactive" // full-screen review
)

type Config struct {
	Workspace struct {
		Root        string `yaml:"root"`
		HistoryKeep int    `yaml:"history_keep"` // undo runs retained, oldest pruned first
	} `yaml:"workspace"`

	LLM struct {
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		APIKeyEnv      string  `yaml:"api_key_env"`
		Model          string  `yaml:"model"`
		Temperature    float32 `yaml:"temperature"`
		MaxTokens      int     `yaml:"max_output_tokens"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Apply struct {
		Parallel     int     `yaml:"parallel"`       // max files patched concurrently
		Confirm      string  `yaml:"confirm"`        // "prompt", "auto", or "interactive"
		ContextLines int     `yaml:"context_lines"`  // unified diff context
		MinHintRatio float64 `yaml:"min_hint_ratio"` // similarity floor for near-match hints
	} `yaml:"apply"`

	Log struct {
		Path        string `yaml:"path"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Load reads a YAML config from path, applies environment overrides and
// defaults, and resolves the workspace root to an absolute path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath returns the conventional config location, preferring a
// blockpatch.yaml in the current directory over the user config dir.
func DefaultPath() string {
	if _, err := os.Stat("blockpatch.yaml"); err == nil {
		return "blockpatch.yaml"
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "blockpatch", "config.yaml")
	}
	return ""
}

func (c *Config) finalize() error {
	// Apply environment overrides
	if c.LLM.APIKeyEnv != "" {
		if key := os.Getenv(c.LLM.APIKeyEnv); key != "" {
			c.LLM.APIKey = key
		}
	}

	// Convert workspace root to absolute path
	if c.Workspace.Root == "" {
		c.Workspace.Root = "."
	}
	absRoot, err := filepath.Abs(c.Workspace.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	c.Workspace.Root = absRoot

	if c.Workspace.HistoryKeep == 0 {
		c.Workspace.HistoryKeep = 10
	}
	if c.Apply.Parallel == 0 {
		c.Apply.Parallel = 4
	}
	if c.Apply.Confirm == "" {
		c.Apply.Confirm = ConfirmPrompt
	}
	switch c.Apply.Confirm {
	case ConfirmPrompt, ConfirmAuto, ConfirmInteractive:
	default:
		return fmt.Errorf("invalid apply.confirm mode %q", c.Apply.Confirm)
	}
	if c.Apply.ContextLines == 0 {
		c.Apply.ContextLines = 3
	}
	if c.Apply.MinHintRatio == 0 {
		c.Apply.MinHintRatio = 0.4
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 8192
	}

	return nil
}

// LLMEnabled reports whether an LLM endpoint is configured. Assist features
// (target identification, diff regeneration) are skipped without one.
func (c *Config) LLMEnabled() bool {
	return c.LLM.BaseURL != ""
}
