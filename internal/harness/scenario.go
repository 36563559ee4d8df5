package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/instruction"
)

// DefaultStart is the unix time a scenario clock starts at unless the
// scenario sets one.
const DefaultStart int64 = 1_700_000_000

// DefaultAirdropSupply is the airdrop vault balance at genesis, in coins.
const DefaultAirdropSupply = "10000"

// Scenario is one scripted run of the lending program.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock reading. Zero means DefaultStart.
	Start int64 `yaml:"start,omitempty"`

	// AirdropSupply is the airdrop vault balance at genesis in coins.
	// Empty means DefaultAirdropSupply.
	AirdropSupply string `yaml:"airdrop_supply,omitempty"`

	// Setup writes accounts directly before the flow. Setup steps are not
	// traced.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow contains the program calls with their expected outcomes.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// SetupStep writes accounts without a program call.
type SetupStep struct {
	// Action is one of the Setup* constants.
	Action string `yaml:"action"`

	// Args holds the action arguments.
	Args map[string]interface{} `yaml:"args"`
}

// Setup actions.
const (
	SetupWallet        = "wallet"
	SetupUser          = "user"
	SetupAccount       = "account"
	SetupAirdropRecord = "airdrop_record"
)

// FlowStep is one program call.
type FlowStep struct {
	// Invoke is the operation name (e.g. "lend", "pay_emi").
	Invoke string `yaml:"invoke"`

	// Args contains the operation arguments.
	Args map[string]interface{} `yaml:"args"`

	// AdvanceDays and AdvanceSeconds move the clock before the call.
	AdvanceDays    int64 `yaml:"advance_days,omitempty"`
	AdvanceSeconds int64 `yaml:"advance_seconds,omitempty"`

	// Expect specifies the expected outcome. If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a call.
type ExpectClause struct {
	// Case is "Success" or an error code name (e.g. "LoanAmountExceeded").
	Case string `yaml:"case"`
}

// Assertion validates final state or the journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Account names the user, vault, loan or borrower storage account.
	Account string `yaml:"account,omitempty"`

	// ID is the lender slot (lender_slot).
	ID uint32 `yaml:"id,omitempty"`

	// Amount is the expected balance in coins (balance).
	Amount string `yaml:"amount,omitempty"`

	// Expect contains expected field values (lender_slot, loan, borrower).
	// Subset match: only the listed fields are compared.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Op and Outcome select journaled calls; Count is how many are expected
	// (call_count).
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertBalance    = "balance"
	AssertLenderSlot = "lender_slot"
	AssertLoan       = "loan"
	AssertBorrower   = "borrower"
	AssertCallCount  = "call_count"
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

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		switch step.Action {
		case SetupWallet, SetupUser, SetupAccount, SetupAirdropRecord:
		case "":
			return fmt.Errorf("setup[%d]: action is required", i)
		default:
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required", i)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if _, err := instruction.ParseOpcode(step.Invoke); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required", i)
		}
		if step.AdvanceDays < 0 || step.AdvanceSeconds < 0 {
			return fmt.Errorf("flow[%d]: the clock only moves forward", i)
		}
		if step.Expect != nil {
			if err := validateOutcome(step.Expect.Case); err != nil {
				return fmt.Errorf("flow[%d].expect: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateOutcome(outcome string) error {
	if outcome == "" {
		return fmt.Errorf("case is required")
	}
	if outcome == OutcomeSuccess {
		return nil
	}
	if _, ok := errcode.Parse(outcome); !ok {
		return fmt.Errorf("unknown outcome %q", outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBalance:
		if a.Account == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: account and amount are required for balance", index)
		}
	case AssertLenderSlot:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for lender_slot", index)
		}
	case AssertLoan, AssertBorrower:
		if a.Account == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: account and expect are required for %s", index, a.Type)
		}
	case AssertCallCount:
		if _, err := instruction.ParseOpcode(a.Op); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
		if a.Outcome != "" {
			if err := validateOutcome(a.Outcome); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// convertArgs renders YAML-parsed values as text operation arguments.
func convertArgs(args map[string]interface{}) (deploy.Args, error) {
	out := make(deploy.Args, len(args))
	for key, val := range args {
		s, err := convertValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = s
	}
	return out, nil
}

func convertValue(val interface{}) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", fmt.Errorf("null values are not allowed")
	case string:
		return v, nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case float64:
		// Fractional coin amounts must be quoted so no precision is lost.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), nil
		}
		return "", fmt.Errorf("unquoted fractional number %v: quote decimal amounts", v)
	default:
		return "", fmt.Errorf("unsupported type %T", val)
	}
}
