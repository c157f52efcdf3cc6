// Package interview implements the structured stakeholder interview: a fixed
// ordered script of sections and questions, and the state machine that walks
// a session through it one answer at a time.
package interview

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultScriptYAML []byte

// scriptSchema validates loaded scripts before they drive an interview. A
// malformed script fails loudly at startup, not mid-session.
const scriptSchema = `{
	"type": "object",
	"required": ["sections"],
	"properties": {
		"sections": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "questions"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"questions": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}
}`

// Section is one named group of ordered questions.
type Section struct {
	Name      string   `yaml:"name"      json:"name"`
	Questions []string `yaml:"questions" json:"questions"`
}

// Script is the fixed interview plan. Sections are 1-based and questions
// within a section are 0-based, matching the persisted position tuple.
type Script struct {
	Sections []Section `yaml:"sections" json:"sections"`

	total int
}

// DefaultScript loads the embedded interview script.
func DefaultScript() (*Script, error) {
	return LoadScript(defaultScriptYAML)
}

// LoadScript parses and validates a YAML interview script.
func LoadScript(data []byte) (*Script, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interview script: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(scriptSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate interview script: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("invalid interview script: %s", strings.Join(details, "; "))
	}

	var script Script

	err = yaml.Unmarshal(data, &script)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interview script: %w", err)
	}

	for _, section := range script.Sections {
		script.total += len(section.Questions)
	}

	return &script, nil
}

// TotalQuestions returns the number of questions across all sections.
func (s *Script) TotalQuestions() int {
	return s.total
}

// SectionCount returns the number of sections.
func (s *Script) SectionCount() int {
	return len(s.Sections)
}

// SectionName returns the name of the 1-based section.
func (s *Script) SectionName(section int) string {
	if section < 1 || section > len(s.Sections) {
		return ""
	}

	return s.Sections[section-1].Name
}

// Question returns the question at the 1-based section and 0-based index.
func (s *Script) Question(section, index int) (string, error) {
	if section < 1 || section > len(s.Sections) {
		return "", fmt.Errorf("section %d out of range", section)
	}

	questions := s.Sections[section-1].Questions
	if index < 0 || index >= len(questions) {
		return "", fmt.Errorf("question index %d out of range for section %d", index, section)
	}

	return questions[index], nil
}

// MarshalJSON keeps the derived total out of serialized form.
func (s *Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sections []Section `json:"sections"`
	}{Sections: s.Sections})
}
