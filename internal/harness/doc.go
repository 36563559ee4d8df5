// Package harness runs YAML lending scenarios against a real deployment.
//
// Each scenario executes on a fresh in-memory SQLite store with a
// deterministic clock and call-id generator, so two runs of the same
// scenario produce identical traces, journals and golden snapshots.
//
// # Scenario Format
//
//	name: fund_and_repay
//	description: "Two lenders fund a loan that is then repaid"
//	setup:
//	  - action: user
//	    args: { name: alice, balance: 1000 }
//	  - action: account
//	    args: { name: loan-1, kind: loan }
//	flow:
//	  - invoke: lend
//	    args: { lender: alice, loan: loan-1, amount: 800, id: 1 }
//	  - invoke: pay_emi
//	    advance_days: 30
//	    args: { borrower: bob, storage: bob/storage, loan: loan-1, amount: 500 }
//	    expect: { case: Success }
//	assertions:
//	  - type: balance
//	    account: alice
//	    amount: "200"
//	  - type: loan
//	    account: loan-1
//	    expect: { state: funded, lent: "2000" }
//
// Before setup runs, the harness deploys the program: genesis accounts, both
// vault ownership transfers and the lenders ledger initialization, all signed
// by "admin".
//
// # Setup Actions
//
//   - wallet: a system-owned signer account (args: name, lamports)
//   - user: a wallet plus its token account (args: name, balance)
//   - account: a zeroed program-owned buffer (args: name, kind)
//   - airdrop_record: the airdrop record buffer of a user (args: user)
//
// # Assertion Types
//
//   - balance: token balance of a user, "vault" or "airdrop_vault"
//   - lender_slot: fields of a lenders ledger slot
//   - loan: derived state and totals of a loan
//   - borrower: fields of a borrower record
//   - call_count: journaled calls of one operation, optionally by outcome
//
// Identities are names resolved through config.ResolveKey, amounts are whole
// coins and outcomes are "Success" or an error code name.
package harness
