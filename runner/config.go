package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Schedule defines an automatic run for one instance, either at a fixed
// time of day or on an interval.
type Schedule struct {
	Instance int    `yaml:"instance" json:"instance"`
	At       string `yaml:"at,omitempty" json:"at,omitempty"`       // "HH:MM"
	Every    string `yaml:"every,omitempty" json:"every,omitempty"` // "1h", "30m", "1h30m"
}

// Config is the deploy configuration loaded from deploy.yml. It is passed
// explicitly into every stage; there is no ambient global state.
type Config struct {
	BaseDir       string     `yaml:"base_dir" json:"base_dir"`
	ProjectPrefix string     `yaml:"project_prefix" json:"project_prefix"`
	Template      string     `yaml:"template" json:"template"`
	Requirements  string     `yaml:"requirements" json:"requirements"`
	Entrypoint    string     `yaml:"entrypoint" json:"entrypoint"`
	Python        string     `yaml:"python" json:"python"`
	MaxInstance   int        `yaml:"max_instance" json:"max_instance"`
	Schedules     []Schedule `yaml:"schedules,omitempty" json:"schedules,omitempty"`

	// RootDir is the invocation root: the directory of the config file.
	// Template, requirements and entrypoint paths resolve against it.
	RootDir string `yaml:"-" json:"-"`
}

// LoadConfig reads and parses a deploy.yml, applying defaults for any
// omitted field.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deploy config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse deploy config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg.RootDir = filepath.Dir(abs)
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "deployments"
	}
	if c.ProjectPrefix == "" {
		c.ProjectPrefix = "Project"
	}
	if c.Template == "" {
		c.Template = "settings.template.json"
	}
	if c.Requirements == "" {
		c.Requirements = "requirements.txt"
	}
	if c.Entrypoint == "" {
		c.Entrypoint = "main.py"
	}
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.MaxInstance == 0 {
		c.MaxInstance = 10
	}
}

// Validate checks that the invocation-root artifacts the engine depends on
// are present before any run starts.
func (c *Config) Validate() error {
	templatePath := c.resolve(c.Template)
	if _, err := os.Stat(templatePath); err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
	}
	entrypoint := c.resolve(c.Entrypoint)
	if _, err := os.Stat(entrypoint); err != nil {
		return fmt.Errorf("%w: entry script %s", ErrMissingInvocationInput, entrypoint)
	}
	return nil
}

// resolve makes a path absolute against the invocation root.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.RootDir, path)
}
