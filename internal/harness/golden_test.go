package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"fund_and_repay", "airdrop_cap"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestCanonicalSnapshotDeterminism(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "determinism_test",
		Trace: []TraceEvent{
			{Type: EventInvocation, Action: "lend", Args: map[string]string{"lender": "alice", "amount": "10"}, Now: 5, Seq: 1},
			{Type: EventCompletion, Outcome: OutcomeSuccess, Seq: 2},
		},
		Balances: map[string]string{"vault": "10", "alice": "0"},
	}

	first, err := snapshot.Marshal()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := snapshot.Marshal()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t,
		`{"balances":{"alice":"0","vault":"10"},"scenario":"determinism_test","trace":[`+
			`{"action":"lend","args":{"amount":"10","lender":"alice"},"now":5,"seq":1,"type":"invocation"},`+
			`{"outcome":"Success","seq":2,"type":"completion"}]}`,
		string(first))
}

func TestRun_SameScenarioSameSnapshot(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "fund_and_repay.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Balances, second.Balances)
}
