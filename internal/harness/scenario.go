package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storesync/internal/twin"
)

// Scenario is a scripted run of the engine.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 wall time the manual clock starts at.
	// Defaults to 2026-03-02T09:00:00Z.
	Start string `yaml:"start,omitempty"`

	// Picks scripts the discount wheel's random choices.
	Picks []int `yaml:"picks,omitempty"`

	// VerifiedUser is the user the checkout collaborator verifies for the
	// session. Empty rejects every session.
	VerifiedUser string `yaml:"verified_user,omitempty"`

	// Remote seeds the fake remote tier. Field names follow the twin seed
	// format.
	Remote map[string]any `yaml:"remote,omitempty"`

	// Local seeds slices in the local tier before the engine starts.
	Local []LocalSeed `yaml:"local,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// LocalSeed is locally persisted state for one identity.
type LocalSeed struct {
	Identity  string      `yaml:"identity"`
	Favorites []string    `yaml:"favorites,omitempty"`
	Cart      []LocalLine `yaml:"cart,omitempty"`
	Discount  int         `yaml:"discount,omitempty"`
	SpinUsed  bool        `yaml:"spin_used,omitempty"`
}

// LocalLine is a seeded cart line.
type LocalLine struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
	Price    int64  `yaml:"price,omitempty"`
}

// Step is one scripted action.
type Step struct {
	// Action names the operation; see the action table in harness.go.
	Action string `yaml:"action"`

	// Args are the action's arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect optionally validates the step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect validates a step.
type Expect struct {
	// Error is the expected error code (VALIDATION, SESSION_EXPIRED,
	// REMOTE_WRITE, ...). Empty expects success.
	Error string `yaml:"error,omitempty"`

	// State is matched against the engine snapshot after the step. Maps
	// match as subsets; lists must have the same length and match
	// element-wise.
	State map[string]any `yaml:"state,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// seed converts the remote section into a twin seed.
func (s *Scenario) seed() (*twin.Seed, error) {
	if len(s.Remote) == 0 {
		return &twin.Seed{}, nil
	}
	// JSON is valid YAML.
	data, err := json.Marshal(s.Remote)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	return twin.ParseSeed(data)
}

func (s *Scenario) startTime() (time.Time, error) {
	if s.Start == "" {
		return DefaultStart, nil
	}
	return time.Parse(time.RFC3339, s.Start)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if _, err := s.startTime(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if _, err := s.seed(); err != nil {
		return err
	}

	for i, l := range s.Local {
		if l.Identity == "" {
			return fmt.Errorf("local[%d]: identity is required", i)
		}
	}

	for i, step := range s.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
	}

	return nil
}
