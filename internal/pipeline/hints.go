package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Hints are optional per-site overrides supplied by an operator when a
// careers portal defeats the generic heuristics.
type Hints struct {
	// NextSelectors are tried before the built-in pagination discovery.
	NextSelectors []string `yaml:"next_selectors"`
	// MaxPages overrides the configured page cap for this site.
	MaxPages int `yaml:"max_pages"`
	// ExpectedPrograms are programme names the operator knows this firm runs.
	// They are offered to the suggestion step alongside the stored programmes.
	ExpectedPrograms []string `yaml:"expected_programs"`
}

// LoadHints reads a hints file. An empty path returns nil hints.
func LoadHints(path string) (*Hints, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read hints %s", path)
	}
	var h Hints
	if err := yaml.Unmarshal(raw, &h); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse hints %s", path)
	}
	return &h, nil
}
