package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	disbursementservice "tokendrip/contexts/treasury/disbursement-service"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"

	"github.com/spf13/cobra"
)

// App is a built module plus the resources behind it.
type App interface {
	Module() disbursementservice.Module
	// LedgerOnline reports whether a real ledger client is wired.
	LedgerOnline() bool
	Close() error
}

// Opener builds the App for one command invocation.
type Opener func(ctx context.Context) (App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	Open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// NewRootCommand creates the dripctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "dripctl",
		Short: "Operate the token disbursement engine",
		Long: `dripctl runs one engine operation against the configured store and exits.

Configuration is read from the environment (and an optional .env file) exactly
as the api and worker processes read it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")

	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewSettleCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewPoolCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// withModule opens the app, runs fn and reports a failure of fn through the
// formatter before returning it as an ExitError.
func withModule(
	cmd *cobra.Command,
	opts *RootOptions,
	fn func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error,
) error {
	ctx, app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(cmd, app)
	return runModule(ctx, cmd, opts, app, fn)
}

func openApp(cmd *cobra.Command, opts *RootOptions) (context.Context, App, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Open == nil {
		return nil, nil, NewExitError(ExitCommandError, "no application opener configured")
	}
	app, err := opts.Open(ctx)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build application", err)
	}
	return ctx, app, nil
}

func closeApp(cmd *cobra.Command, app App) {
	if err := app.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "close failed: %v\n", err)
	}
}

func runModule(
	ctx context.Context,
	cmd *cobra.Command,
	opts *RootOptions,
	app App,
	fn func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error,
) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := fn(ctx, app.Module(), out); err != nil {
		_ = out.Error(errorCode(err), err.Error())
		return WrapExitError(ExitFailure, cmd.Name()+" failed", err)
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidSettings):
		return "invalid_settings"
	case errors.Is(err, domainerrors.ErrIdentityNotFound),
		errors.Is(err, domainerrors.ErrDisbursementNotFound):
		return "not_found"
	case errors.Is(err, domainerrors.ErrIdentityAlreadyClaimed),
		errors.Is(err, domainerrors.ErrInvalidStateTransition):
		return "conflict"
	case domainerrors.IsLedgerError(err):
		return "ledger_error"
	default:
		return "internal_error"
	}
}
