package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prevalence/internal/journal"
)

// Scenario defines a repository test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model selects the sample model (see Models).
	Model string `yaml:"model"`

	// Driver selects the journal medium: "file" (default) or "sqlite".
	Driver string `yaml:"driver,omitempty"`

	// Setup contains commands executed before the main flow.
	// Setup commands must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the main test flow with optional expectations.
	Flow []Step `yaml:"flow"`

	// Assertions validate the journal and final state.
	Assertions []Assertion `yaml:"assertions"`

	// ReplayError, when set, expects the restart to fail with an error
	// containing this text. Otherwise the restarted model must equal the
	// model at the end of the flow.
	ReplayError string `yaml:"replay_error,omitempty"`
}

// Step is either a command execution or a named query.
type Step struct {
	// Execute is the command name.
	Execute string `yaml:"execute,omitempty"`

	// Query is the name of a query registered for the model.
	Query string `yaml:"query,omitempty"`

	// Arg is the command argument.
	Arg any `yaml:"arg,omitempty"`

	// Expect validates the step outcome. If nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Result is matched against the returned value. Maps match as subsets,
	// lists element by element.
	Result any `yaml:"result,omitempty"`

	// Error expects a failure whose message contains this text.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the journal or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Command is the command name (journal_contains, journal_count).
	Command string `yaml:"command,omitempty"`

	// Arg is matched as a subset against the journaled argument
	// (journal_contains).
	Arg any `yaml:"arg,omitempty"`

	// Commands is the expected order (journal_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of records (journal_count).
	Count int `yaml:"count,omitempty"`

	// Expect is matched as a subset against the model (final_state).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertJournalContains = "journal_contains"
	AssertJournalOrder    = "journal_order"
	AssertJournalCount    = "journal_count"
	AssertFinalState      = "final_state"
)

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
	// Strict field validation catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, ok := Models[s.Model]; !ok {
		return fmt.Errorf("unknown model %q", s.Model)
	}

	switch s.Driver {
	case "", journal.DriverFile, journal.DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q (want file or sqlite)", s.Driver)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Execute == "" {
			return fmt.Errorf("setup[%d]: execute is required", i)
		}
		if step.Query != "" || step.Expect != nil {
			return fmt.Errorf("setup[%d]: only execute and arg are allowed", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Execute == "" && step.Query == "":
		return fmt.Errorf("flow[%d]: one of execute or query is required", index)
	case step.Execute != "" && step.Query != "":
		return fmt.Errorf("flow[%d]: execute and query are mutually exclusive", index)
	case step.Query != "" && step.Arg != nil:
		return fmt.Errorf("flow[%d]: queries take no arg", index)
	}

	if e := step.Expect; e != nil && e.Error != "" && e.Result != nil {
		return fmt.Errorf("flow[%d].expect: result and error are mutually exclusive", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertJournalContains:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for journal_contains", index)
		}
	case AssertJournalOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for journal_order", index)
		}
	case AssertJournalCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
