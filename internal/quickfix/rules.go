package quickfix

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/termfix/termfix/internal/storage"
)

const rulesConfigName = "quickfix-rules.v1.json"

// RuleConfig is the versioned on-disk failure-pattern configuration.
// A completed command that matches an enabled rule becomes a pending
// quick-fix match.
type RuleConfig struct {
	Version int              `json:"version"`
	Rules   []RuleDefinition `json:"rules"`
}

type RuleDefinition struct {
	ID string `json:"id"`
	// Enabled rules are evaluated in order; the first match wins.
	Enabled bool `json:"enabled"`
	// CommandPattern matches against the command line.
	CommandPattern string `json:"command_pattern"`
	// OutputPattern, when set, must also match the command output.
	OutputPattern string `json:"output_pattern,omitempty"`
}

type CompiledRule struct {
	ID      string
	Enabled bool
	Command *regexp.Regexp
	Output  *regexp.Regexp
}

func DefaultRulesPath() string {
	return RulesPathIn(storage.DefaultBaseDir())
}

// RulesPathIn returns the rule config location under a base directory.
func RulesPathIn(baseDir string) string {
	return filepath.Join(baseDir, "rules", rulesConfigName)
}

// DefaultRuleConfig matches any failing command, with a couple of sharper
// rules ahead of the catch-all so their output captures are available to
// the fix prompt.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		Version: 1,
		Rules: []RuleDefinition{
			{
				ID:             "command-not-found",
				Enabled:        true,
				CommandPattern: `^(\S+)`,
				OutputPattern:  `(?m)^.*(command not found|not recognized as an internal or external command).*$`,
			},
			{
				ID:             "missing-file",
				Enabled:        true,
				CommandPattern: `^(\S+)`,
				OutputPattern:  `(?m)^.*(No such file or directory|ENOENT).*$`,
			},
			{
				ID:             "any-failure",
				Enabled:        true,
				CommandPattern: `^(\S+)`,
			},
		},
	}
}

// LoadRuleConfig reads the config at path. A missing file returns
// (nil, nil) so callers can fall back to defaults.
func LoadRuleConfig(path string) (*RuleConfig, error) {
	if path == "" {
		path = DefaultRulesPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rules config: %w", err)
	}
	var cfg RuleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveRuleConfig(path string, cfg *RuleConfig) error {
	if path == "" {
		path = DefaultRulesPath()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rules config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write rules config: %w", err)
	}
	return nil
}

func (c *RuleConfig) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported rules config version %d", c.Version)
	}
	seen := make(map[string]struct{}, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("rule %q: duplicate id", rule.ID)
		}
		seen[rule.ID] = struct{}{}
		if rule.CommandPattern == "" {
			return fmt.Errorf("rule %q: command_pattern is required", rule.ID)
		}
		if _, err := regexp.Compile(rule.CommandPattern); err != nil {
			return fmt.Errorf("rule %q: invalid command_pattern: %w", rule.ID, err)
		}
		if rule.OutputPattern != "" {
			if _, err := regexp.Compile(rule.OutputPattern); err != nil {
				return fmt.Errorf("rule %q: invalid output_pattern: %w", rule.ID, err)
			}
		}
	}
	return nil
}

func (c *RuleConfig) Compile() ([]CompiledRule, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	compiled := make([]CompiledRule, 0, len(c.Rules))
	for _, rule := range c.Rules {
		cr := CompiledRule{
			ID:      rule.ID,
			Enabled: rule.Enabled,
			Command: regexp.MustCompile(rule.CommandPattern),
		}
		if rule.OutputPattern != "" {
			cr.Output = regexp.MustCompile(rule.OutputPattern)
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}
