// Package scenario holds the catalogue of expected sorter behaviours and checks a live scene
// against them.
package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/legosorter/internal/stages"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownScenario = errors.New("scenario: unknown scenario")
	ErrInvalidCheck    = errors.New("scenario: invalid check")
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Scenario is one catalogue entry.
type Scenario struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Setup       []string `yaml:"setup" json:"setup"`
	Frames      int      `yaml:"frames" json:"frames"`
	Checks      []Check  `yaml:"checks" json:"checks"`
	Notes       []string `yaml:"notes" json:"notes"`
}

// Check compares one metric against a threshold.
type Check struct {
	Metric string  `yaml:"metric" json:"metric"`
	Op     string  `yaml:"op" json:"op"`
	Value  float64 `yaml:"value" json:"value"`
}

func (c Check) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Op, c.Value)
}

var (
	loadOnce  sync.Once
	catalogue []Scenario
	loadErr   error
)

// Parse decodes and validates a YAML catalogue.
func Parse(raw []byte) ([]Scenario, error) {
	var out []Scenario
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("scenario: decode catalogue: %w", err)
	}
	seen := make(map[string]struct{}, len(out))
	registry := stages.DefaultRegistry()
	for _, s := range out {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("scenario: entry without a name")
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario: duplicate %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Frames < 1 {
			return nil, fmt.Errorf("scenario %s: frames must be >= 1", s.Name)
		}
		if _, err := registry.ResolveAll(s.Setup); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		for _, c := range s.Checks {
			if _, ok := comparators[c.Op]; !ok {
				return nil, fmt.Errorf("%w: %s: op %q", ErrInvalidCheck, s.Name, c.Op)
			}
			if _, ok := metricNames[c.Metric]; !ok {
				return nil, fmt.Errorf("%w: %s: metric %q", ErrInvalidCheck, s.Name, c.Metric)
			}
		}
	}
	return out, nil
}

func load() ([]Scenario, error) {
	loadOnce.Do(func() {
		catalogue, loadErr = Parse(catalogueYAML)
	})
	return catalogue, loadErr
}

// List returns the built-in catalogue in file order.
func List() []Scenario {
	all, err := load()
	if err != nil {
		panic(err)
	}
	return append([]Scenario(nil), all...)
}

// Get looks up a built-in scenario by name.
func Get(name string) (Scenario, error) {
	for _, s := range List() {
		if s.Name == strings.TrimSpace(name) {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Summary renders a scenario for the terminal.
func Summary(name string) string {
	s, err := Get(name)
	if err != nil {
		return fmt.Sprintf("Unknown scenario: %s", name)
	}
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nScenario: %s\n%s\n", rule, s.Name, rule)
	fmt.Fprintf(&b, "\nDescription:\n  %s\n", s.Description)
	b.WriteString("\nSetup Steps:\n")
	for i, step := range s.Setup {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "\nSimulation Frames: %d\n", s.Frames)
	b.WriteString("\nExpected Outcomes:\n")
	for _, c := range s.Checks {
		fmt.Fprintf(&b, "  - %s\n", c)
	}
	if len(s.Notes) > 0 {
		b.WriteString("\nValidation Notes:\n")
		for _, n := range s.Notes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	b.WriteString(rule + "\n")
	return b.String()
}

// NeedsTracks reports whether any check reads sampled part motion.
func (s Scenario) NeedsTracks() bool {
	for _, c := range s.Checks {
		if trackMetrics[c.Metric] {
			return true
		}
	}
	return false
}
