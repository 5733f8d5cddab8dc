package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/session"
)

// Scenario is one conformance test: accounts, seeded rows, a sequence of
// sync requests with expected responses, and final assertions.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// PageSize is the per-table row bound. Zero uses the server default.
	PageSize int `yaml:"page_size,omitempty"`

	Users      []User      `yaml:"users"`
	Seed       []Seed      `yaml:"seed,omitempty"`
	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// User is provisioned before the first step. The account is created on
// first mention.
type User struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Account  string `yaml:"account"`
}

// Seed inserts rows for an account without change-log entries.
type Seed struct {
	Account string           `yaml:"account"`
	Table   string           `yaml:"table"`
	Rows    []map[string]any `yaml:"rows"`
}

// Step posts one sync request.
type Step struct {
	Name string `yaml:"name"`

	// User selects the credentials. Empty sends no Authorization header.
	User string `yaml:"user,omitempty"`

	// Password overrides the user's password.
	Password string `yaml:"password,omitempty"`

	// Request is the request document. Ignored when Body is set.
	Request map[string]any `yaml:"request,omitempty"`

	// Body is sent verbatim.
	Body string `yaml:"body,omitempty"`

	ContentType string  `yaml:"content_type,omitempty"`
	Expect      *Expect `yaml:"expect,omitempty"`
}

// Expect describes the response a step must produce. Unset fields are not
// checked.
type Expect struct {
	// Status defaults to 200.
	Status int `yaml:"status,omitempty"`

	EOF *bool `yaml:"eof,omitempty"`

	// ActionOK requires a null actionResult.
	ActionOK bool `yaml:"action_ok,omitempty"`

	// ActionResult is a required prefix of actionResult.
	ActionResult string `yaml:"action_result,omitempty"`

	// Message is a required substring of message.
	Message string `yaml:"message,omitempty"`

	Tables map[string]TableExpect `yaml:"tables,omitempty"`

	// Absent lists tables that must not appear in the response.
	Absent []string `yaml:"absent,omitempty"`
}

// TableExpect describes one table payload.
type TableExpect struct {
	// Rows are the expected row ids in order. An empty list requires an
	// empty page.
	Rows      []int64  `yaml:"rows"`
	Columns   []string `yaml:"columns,omitempty"`
	LastLogID *int64   `yaml:"last_log_id,omitempty"`
}

// Assertion checks state after all steps ran.
type Assertion struct {
	Type string `yaml:"type"`

	// row_count, final_state
	Account string `yaml:"account,omitempty"`
	Table   string `yaml:"table,omitempty"`

	// row_count, trace_count
	Count int `yaml:"count,omitempty"`

	// final_state
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// state_sequence
	Step   string   `yaml:"step,omitempty"`
	States []string `yaml:"states,omitempty"`

	// trace_count
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount      = "row_count"
	AssertFinalState    = "final_state"
	AssertStateSequence = "state_sequence"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
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

	users := make(map[string]bool, len(s.Users))
	accounts := make(map[string]bool)
	for i, u := range s.Users {
		if u.Name == "" || u.Account == "" {
			return fmt.Errorf("users[%d]: name and account are required", i)
		}
		if users[u.Name] {
			return fmt.Errorf("users[%d]: duplicate user %q", i, u.Name)
		}
		users[u.Name] = true
		accounts[u.Account] = true
	}

	for i, seed := range s.Seed {
		if !accounts[seed.Account] {
			return fmt.Errorf("seed[%d]: unknown account %q", i, seed.Account)
		}
		if _, ok := registry.Default().Lookup(seed.Table); !ok {
			return fmt.Errorf("seed[%d]: unknown table %q", i, seed.Table)
		}
	}

	steps := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if steps[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		steps[step.Name] = true
		if step.User != "" && !users[step.User] {
			return fmt.Errorf("steps[%d]: unknown user %q", i, step.User)
		}
		if step.Request == nil && step.Body == "" {
			return fmt.Errorf("steps[%d]: request or body is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, accounts, steps); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, accounts, steps map[string]bool) error {
	switch a.Type {
	case AssertRowCount:
		if !accounts[a.Account] {
			return fmt.Errorf("assertions[%d]: unknown account %q", index, a.Account)
		}
		if _, ok := registry.Default().Lookup(a.Table); !ok {
			return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFinalState:
		if _, ok := registry.Default().Lookup(a.Table); !ok {
			return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStateSequence:
		if !steps[a.Step] {
			return fmt.Errorf("assertions[%d]: unknown step %q", index, a.Step)
		}
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for state_sequence", index)
		}
		for _, st := range a.States {
			if !knownState(st) {
				return fmt.Errorf("assertions[%d]: unknown state %q", index, st)
			}
		}
	case AssertTraceCount:
		if !knownState(a.State) {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

var sessionStates = []session.State{
	session.StateReceived,
	session.StateAuthenticated,
	session.StateMutated,
	session.StateResolved,
	session.StateResponded,
	session.StateRejected,
}

func knownState(name string) bool {
	for _, st := range sessionStates {
		if st.String() == name {
			return true
		}
	}
	return false
}
