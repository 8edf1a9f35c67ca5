// Package help serves the static FAQ and quick guides.
package help

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var content []byte

type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

type Guide struct {
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Steps       []string `yaml:"steps" json:"steps"`
}

type Center struct {
	FAQ    []FAQ   `yaml:"faq" json:"faq"`
	Guides []Guide `yaml:"guides" json:"guides"`
}

// Load parses the embedded help content.
func Load() (*Center, error) {
	return Parse(content)
}

func Parse(b []byte) (*Center, error) {
	var c Center
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("help content: %w", err)
	}
	return &c, nil
}

// Search returns FAQ entries whose question or answer contains q, ignoring
// case. An empty query returns everything.
func (c *Center) Search(q string) []FAQ {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]FAQ, 0, len(c.FAQ))
	for _, f := range c.FAQ {
		if q == "" || strings.Contains(strings.ToLower(f.Question), q) || strings.Contains(strings.ToLower(f.Answer), q) {
			out = append(out, f)
		}
	}
	return out
}
