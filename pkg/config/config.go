// Package config provides configuration loading for the chatback services.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatback/chatback/pkg/models"
)

// AppConfig is the optional YAML configuration shared by the chatback
// binaries. Connection URLs and credentials stay on flags and environment
// variables; this file carries the tunables that rarely change per
// deployment.
type AppConfig struct {
	Interview InterviewConfig      `yaml:"interview"`
	Workflow  WorkflowConfig       `yaml:"workflow"`
	Flags     models.WorkflowFlags `yaml:"flags"`
	Retention RetentionConfig      `yaml:"retention"`
}

// InterviewConfig tunes the interview stage.
type InterviewConfig struct {
	// ScriptPath points at a question script overriding the embedded one.
	ScriptPath string `yaml:"script_path"`
}

// WorkflowConfig tunes the post-interview run.
type WorkflowConfig struct {
	PhaseTimeout Duration `yaml:"phase_timeout"`
	RunTTL       Duration `yaml:"run_ttl"`
}

// RetentionConfig tunes the deleted-session purge.
type RetentionConfig struct {
	Window   Duration `yaml:"window"`
	Schedule string   `yaml:"schedule"`
}

// Duration decodes Go duration strings such as "3m" or "48h" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string

	err := value.Decode(&raw)
	if err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std converts back to the standard duration type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads the YAML configuration file. An empty path returns the
// defaults unchanged.
func Load(path string) (*AppConfig, error) {
	config := &AppConfig{}

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return config, nil
}
