package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/store"
	"github.com/roach88/dassi/internal/testutil"
	"github.com/roach88/dassi/internal/token"
)

// Admin signs the deployment calls every scenario starts with.
const Admin = "admin"

// Harness is the execution state of one scenario run.
type Harness struct {
	store  *store.Store
	rt     *host.Runtime
	d      *deploy.Deployment
	clock  *testutil.DeterministicClock
	logger *slog.Logger

	// users are the token owners created in setup, in creation order.
	users []string
	seq   int64
}

// Run executes a scenario with the default deployment configuration.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}
	return RunWithConfig(scenario, cfg)
}

// RunWithConfig executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and deploy the program
// 2. Execute setup steps
// 3. Execute flow steps, comparing outcomes with expect clauses
// 4. Evaluate assertions and record final balances
func RunWithConfig(scenario *Scenario, cfg config.Config) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := deploy.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	start := scenario.Start
	if start == 0 {
		start = DefaultStart
	}
	clock := testutil.NewDeterministicClock(start)
	rt := host.NewRuntime(st,
		host.WithClock(clock),
		host.WithIDGenerator(testutil.NewSequenceGenerator(scenario.Name)),
		host.WithJournal(st),
		host.WithRent(cfg.HostRent()),
		host.WithLogger(logger),
	)
	d.Register(rt)

	h := &Harness{store: st, rt: rt, d: d, clock: clock, logger: logger}
	ctx := context.Background()

	if err := h.bootstrap(ctx, scenario.AirdropSupply); err != nil {
		return nil, fmt.Errorf("failed to deploy: %w", err)
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Deployment: d, Now: clock.Now()}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if err := h.recordBalances(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// bootstrap writes genesis accounts and runs the deployment calls.
func (h *Harness) bootstrap(ctx context.Context, supply string) error {
	if supply == "" {
		supply = DefaultAirdropSupply
	}
	units, err := amount.Parse(supply)
	if err != nil {
		return fmt.Errorf("airdrop_supply: %w", err)
	}
	admin := config.ResolveKey(Admin)
	if err := h.d.Wallet(ctx, h.rt, admin, 1_000_000_000); err != nil {
		return err
	}
	if err := h.d.Genesis(ctx, h.rt, admin, units); err != nil {
		return err
	}
	for _, call := range []host.Call{
		h.d.TransferVaultOwnership(admin),
		h.d.TransferAirdropVaultOwnership(admin),
		h.d.InitLedger(admin),
	} {
		if _, err := h.rt.Execute(ctx, call); err != nil {
			return err
		}
	}
	return nil
}

// executeSetup runs all setup steps.
func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if err := h.setupStep(ctx, step.Action, args); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

func (h *Harness) setupStep(ctx context.Context, action string, args deploy.Args) error {
	switch action {
	case SetupWallet:
		key, err := args.Key("name")
		if err != nil {
			return err
		}
		lamports := uint64(1_000_000_000)
		if _, ok := args["lamports"]; ok {
			if lamports, err = args.Uint("lamports", 64); err != nil {
				return err
			}
		}
		return h.d.Wallet(ctx, h.rt, key, lamports)

	case SetupUser:
		key, err := args.Key("name")
		if err != nil {
			return err
		}
		balance := uint64(0)
		if _, ok := args["balance"]; ok {
			if balance, err = args.Amount("balance"); err != nil {
				return err
			}
		}
		if err := h.d.Wallet(ctx, h.rt, key, 1_000_000_000); err != nil {
			return err
		}
		if _, err := h.d.TokenAccount(ctx, h.rt, key, balance); err != nil {
			return err
		}
		h.users = append(h.users, args["name"])
		return nil

	case SetupAccount:
		key, err := args.Key("name")
		if err != nil {
			return err
		}
		size, ok := deploy.AccountKinds[args["kind"]]
		if !ok {
			return fmt.Errorf("unknown account kind %q", args["kind"])
		}
		return h.d.ProgramAccount(ctx, h.rt, key, size)

	case SetupAirdropRecord:
		user, err := args.Key("user")
		if err != nil {
			return err
		}
		_, err = h.d.AirdropAccount(ctx, h.rt, user)
		return err
	}
	return fmt.Errorf("unknown setup action %q", action)
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Advances the clock
// 2. Builds the call from the operation name and args
// 3. Executes it on the runtime, which journals it either way
// 4. Compares the outcome with the expect clause
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		call, err := h.d.BuildCall(step.Invoke, args)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		h.clock.Advance(step.AdvanceDays*86_400 + step.AdvanceSeconds)
		h.seq++
		result.AddInvocationTrace(step.Invoke, args, h.clock.Now(), h.seq)

		_, execErr := h.rt.Execute(ctx, call)
		outcome, err := outcomeOf(execErr)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		h.seq++
		result.AddCompletionTrace(outcome, h.seq)

		expected := OutcomeSuccess
		if step.Expect != nil {
			expected = step.Expect.Case
		}
		if outcome != expected {
			msg := fmt.Sprintf("flow[%d] %s: expected %s, got %s", i, step.Invoke, expected, outcome)
			if execErr != nil {
				msg += ": " + execErr.Error()
			}
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"expected", expected,
			"outcome", outcome,
		)
	}
	return nil
}

// outcomeOf names the result of a call. Errors without a code are harness
// failures rather than program outcomes.
func outcomeOf(err error) (string, error) {
	if err == nil {
		return OutcomeSuccess, nil
	}
	code, ok := errcode.CodeOf(err)
	if !ok {
		return "", err
	}
	return code.String(), nil
}

// recordBalances fills result.Balances for every setup user and both vaults.
func (h *Harness) recordBalances(ctx context.Context, result *Result) error {
	for _, name := range append([]string{"vault", "airdrop_vault"}, h.users...) {
		key, err := tokenAccountOf(h.d, name)
		if err != nil {
			return err
		}
		v, err := balanceOf(ctx, h.store, key)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", name, err)
		}
		result.Balances[name] = amount.Format(v)
	}
	return nil
}

// tokenAccountOf maps a user name, "vault" or "airdrop_vault" to a token
// account.
func tokenAccountOf(d *deploy.Deployment, name string) (pubkey.Pubkey, error) {
	switch name {
	case "vault":
		return d.Vault, nil
	case "airdrop_vault":
		return d.AirdropVault, nil
	}
	return d.TokenAddress(config.ResolveKey(name))
}

func balanceOf(ctx context.Context, st host.AccountStore, key pubkey.Pubkey) (uint64, error) {
	acct, err := st.GetAccount(ctx, key)
	if err != nil {
		return 0, err
	}
	return token.BalanceOf(acct)
}
