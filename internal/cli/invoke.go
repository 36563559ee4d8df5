package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args map[string]string
}

// InvokeResult describes a call the program accepted.
type InvokeResult struct {
	Operation string   `json:"operation"`
	Call      string   `json:"call"`
	Now       int64    `json:"now"`
	Outcome   string   `json:"outcome"`
	Changed   []string `json:"changed"`
}

// WriteText renders the receipt.
func (r InvokeResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s: %s\n", r.Operation, r.Outcome)
	fmt.Fprintf(w, "  Call: %s\n", r.Call)
	fmt.Fprintf(w, "  Time: %d\n", r.Now)
	for _, k := range r.Changed {
		fmt.Fprintf(w, "  Changed: %s\n", k)
	}
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <operation>",
		Short: "Send one call to the lending program",
		Long: `Send one call to the lending program.

Arguments are passed as --arg name=value pairs. Identities accept a base58
key or a name; amounts are whole coins such as 12.5. Every call is journaled,
refused calls included.

Operations:
  ` + strings.Join(operationUsage(), "\n  ") + `

Exit codes:
  0 - Call succeeded
  1 - Call refused by the program
  2 - Command error (unknown operation, missing argument, etc.)

Examples:
  dassi invoke lend --arg lender=alice --arg loan=loan1 --arg amount=250 --arg id=1
  dassi invoke pay_emi -a borrower=bob -a storage=bob-storage -a loan=loan1 -a amount=500`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeOperation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringToStringVarP(&opts.Args, "arg", "a", nil, "operation argument as name=value (repeatable)")

	return cmd
}

// operationUsage lists every operation with its required arguments.
func operationUsage() []string {
	var lines []string
	for _, op := range deploy.Operations() {
		names, _ := deploy.OperationArgs(op)
		lines = append(lines, fmt.Sprintf("%-24s %s", op, strings.Join(names, " ")))
	}
	return lines
}

func invokeOperation(opts *InvokeOptions, op string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	required, err := deploy.OperationArgs(op)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	call, err := e.d.BuildCall(op, deploy.Args(opts.Args))
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s needs %s", op, strings.Join(required, ", ")), err)
	}

	f := newFormatter(opts.RootOptions, cmd)
	rec, err := e.rt.Execute(ctx, call)
	if err != nil {
		return reportCallError(f, op, rec, err)
	}

	changed := make([]string, len(rec.Changed))
	for i, k := range rec.Changed {
		changed[i] = k.String()
	}
	return f.Success(InvokeResult{
		Operation: op,
		Call:      rec.ID,
		Now:       rec.Now,
		Outcome:   "Success",
		Changed:   changed,
	})
}

// reportCallError prints a refused call and maps it to an exit code. Errors
// without a program code are runtime or storage failures.
func reportCallError(f *OutputFormatter, op string, rec host.Receipt, err error) error {
	code, ok := errcode.CodeOf(err)
	if !ok {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", op), err)
	}
	details := map[string]string{"operation": op, "call": rec.ID}
	if outErr := f.Error(code.String(), err.Error(), details); outErr != nil {
		return outErr
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s refused: %s", op, code))
}
