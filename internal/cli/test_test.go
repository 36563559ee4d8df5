package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

const failingScenario = `
name: wrong_balance
description: "Asserts a vault balance the flow never produces"
flow:
  - invoke: init_ledger
    args: { payer: admin }
    expect: { case: LendersStorageDataAlreadyInitialized }
assertions:
  - type: balance
    account: vault
    amount: "1"
`

// copyScenario copies one harness scenario into dir.
func copyScenario(t *testing.T, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessScenarios, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runCLI(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runCLI(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runCLI(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runCLI(t, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var res TestResult
	resp := decodeData(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runCLI(t, "test", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ fund_and_repay")
	assert.Contains(t, out, "✓ airdrop_cap")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runCLI(t, "test", harnessScenarios, "--golden", harnessGolden, "--filter", "fund*", "--format", "json")
	require.NoError(t, err, out)

	var res TestResult
	decodeData(t, out, &res)
	require.Equal(t, 2, res.Total)
	assert.Equal(t, "fund_and_repay", res.Scenarios[0].Name)
	assert.Equal(t, "fundraising_expired", res.Scenarios[1].Name)
	assert.Equal(t, "450", res.Scenarios[0].Balances["alice"])
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := runCLI(t, "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "airdrop_cap")
	goldenPath := filepath.Join(dir, "golden", "airdrop_cap.golden")

	out, err := runCLI(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ airdrop_cap (golden updated)")

	written, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessGolden, "airdrop_cap.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// The golden directory is not scanned for scenarios.
	out, err = runCLI(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0o644))
	out, err = runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_balance.yaml"), []byte(failingScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	out, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "✗ wrong_balance")
	assert.Contains(t, out, "Expected: 1")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")

	out, err = runCLI(t, "test", dir, "--format", "json")
	require.Error(t, err)
	var res TestResult
	resp := decodeData(t, out, &res)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, res.Failed)
}
