package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// OutcomeSuccess is the outcome of a call that committed.
const OutcomeSuccess = "Success"

// TraceEvent is one entry of a scenario trace: a flow step invocation or
// its completion.
type TraceEvent struct {
	Type    string            `json:"type"`
	Action  string            `json:"action,omitempty"`
	Args    map[string]string `json:"args,omitempty"`
	Now     int64             `json:"now,omitempty"`
	Outcome string            `json:"outcome,omitempty"`
	Seq     int64             `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the flow invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes every failed expectation.
	Errors []string `json:"errors,omitempty"`

	// Balances are the final token balances of the scenario's users and
	// both vaults, in whole coins.
	Balances map[string]string `json:"balances,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Balances: make(map[string]string),
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends a flow step invocation.
func (r *Result) AddInvocationTrace(action string, args map[string]string, now, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Args:   args,
		Now:    now,
		Seq:    seq,
	})
}

// AddCompletionTrace appends the completion of the preceding invocation.
func (r *Result) AddCompletionTrace(outcome string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventCompletion,
		Outcome: outcome,
		Seq:     seq,
	})
}
