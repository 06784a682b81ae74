package cli

import (
	"context"
	"fmt"
	"io"

	disbursementservice "tokendrip/contexts/treasury/disbursement-service"
	httptransport "tokendrip/contexts/treasury/disbursement-service/transport/http"

	"github.com/spf13/cobra"
)

// NewScheduleCommand runs one scheduler cycle with the current settings.
func NewScheduleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run one scheduling cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				resp, err := module.Handler.RunScheduleHandler(ctx)
				if err != nil {
					return err
				}
				return out.Success(resp, func(w io.Writer) {
					fmt.Fprintf(w, "scheduled: %d\n", resp.ScheduledCount)
					if resp.Reason != "" {
						fmt.Fprintf(w, "reason:    %s\n", resp.Reason)
					}
				})
			})
		},
	}
}

// NewSettleCommand runs one settlement tick: submission then confirmation.
func NewSettleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Run one settlement tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)
			// Without a ledger every submission fails and retires its identity.
			if !app.LedgerOnline() {
				return NewExitError(ExitCommandError, "settle requires LEDGER_RPC_URL; no ledger is configured")
			}
			return runModule(ctx, cmd, opts, app, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				resp, err := module.Handler.RunSettlementHandler(ctx)
				if err != nil {
					return err
				}
				return out.Success(resp, func(w io.Writer) {
					writeSweep(w, "submission", resp.Submission)
					writeSweep(w, "confirmation", resp.Confirmation)
				})
			})
		},
	}
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show disbursement counts and the next due transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				resp, err := module.Handler.StatusHandler(ctx)
				if err != nil {
					return err
				}
				return out.Success(resp, func(w io.Writer) {
					next := resp.NextPendingAt
					if next == "" {
						next = "-"
					}
					fmt.Fprintf(w, "next pending:    %s\n", next)
					fmt.Fprintf(w, "pending:         %d\n", resp.PendingCount)
					fmt.Fprintf(w, "submitted:       %d\n", resp.SubmittedCount)
					fmt.Fprintf(w, "confirmed:       %d\n", resp.ConfirmedCount)
					fmt.Fprintf(w, "failed:          %d\n", resp.FailedCount)
					fmt.Fprintf(w, "idle identities: %d\n", resp.IdleIdentities)
				})
			})
		},
	}
}

type poolReplenishOutput struct {
	Created    int    `json:"created"`
	Idle       int    `json:"idle"`
	ExportPath string `json:"export_path,omitempty"`
}

// NewPoolCommand groups recipient pool operations.
func NewPoolCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage the recipient identity pool",
	}

	var target int
	replenish := &cobra.Command{
		Use:   "replenish",
		Short: "Top the idle pool up to its target size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target < 0 {
				return NewExitError(ExitCommandError, "--target must not be negative")
			}
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				want := module.PoolJob.Target
				if cmd.Flags().Changed("target") {
					want = target
				}
				result, err := module.Pool.Run(ctx, module.PoolJob.Chain, want)
				if err != nil {
					return err
				}
				resp := poolReplenishOutput{
					Created:    result.Created,
					Idle:       result.Idle,
					ExportPath: result.ExportPath,
				}
				return out.Success(resp, func(w io.Writer) {
					fmt.Fprintf(w, "created: %d\n", resp.Created)
					fmt.Fprintf(w, "idle:    %d\n", resp.Idle)
					if resp.ExportPath != "" {
						fmt.Fprintf(w, "export:  %s\n", resp.ExportPath)
					}
				})
			})
		},
	}
	replenish.Flags().IntVar(&target, "target", 0, "idle pool size to reach (defaults to WALLET_POOL_TARGET)")

	cmd.AddCommand(replenish)
	return cmd
}

// NewSettingsCommand groups the settings show and set subcommands.
func NewSettingsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change disbursement settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the current settings with the credential masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				resp, err := module.Handler.GetSettingsHandler(ctx)
				if err != nil {
					return err
				}
				return out.Success(resp, func(w io.Writer) { writeSettings(w, resp) })
			})
		},
	}

	var req httptransport.UpdateSettingsRequest
	var daily, lifetime int
	set := &cobra.Command{
		Use:   "set",
		Short: "Update settings; omitted flags keep their stored value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("daily-target") {
				req.DailyTarget = &daily
			}
			if cmd.Flags().Changed("lifetime-target") {
				req.LifetimeTarget = &lifetime
			}
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				resp, err := module.Handler.UpdateSettingsHandler(ctx, req)
				if err != nil {
					return err
				}
				return out.Success(resp, func(w io.Writer) { writeSettings(w, resp) })
			})
		},
	}
	set.Flags().StringVar(&req.TokenRef, "token", "", "token contract reference")
	set.Flags().StringVar(&req.AmountCeiling, "amount", "", "per-disbursement amount ceiling")
	set.Flags().StringVar(&req.TreasuryCredential, "credential", "", "treasury signing credential")
	set.Flags().IntVar(&daily, "daily-target", 0, "disbursements per rolling 24h window")
	set.Flags().IntVar(&lifetime, "lifetime-target", 0, "lifetime disbursement cap (0 disables)")

	cmd.AddCommand(show, set)
	return cmd
}

type resetOutput struct {
	Created    int  `json:"created"`
	WasRunning bool `json:"was_running"`
}

// NewResetCommand purges all identities and disbursements and regenerates the pool.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every identity and disbursement, then rebuild the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return NewExitError(ExitCommandError, "reset deletes all data; pass --yes to confirm")
			}
			return withModule(cmd, opts, func(ctx context.Context, module disbursementservice.Module, out *OutputFormatter) error {
				result, err := module.Reset.Run(ctx)
				if err != nil {
					return err
				}
				resp := resetOutput{Created: result.Created, WasRunning: result.WasRunning}
				return out.Success(resp, func(w io.Writer) {
					fmt.Fprintf(w, "reset complete, %d identities created\n", resp.Created)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the destructive reset")
	return cmd
}

func writeSweep(w io.Writer, name string, sweep httptransport.SweepDTO) {
	fmt.Fprintf(w, "%s: processed=%d submitted=%d confirmed=%d failed=%d deferred=%d\n",
		name, sweep.Processed, sweep.Submitted, sweep.Confirmed, sweep.Failed, sweep.Deferred)
}

func writeSettings(w io.Writer, resp httptransport.SettingsResponse) {
	fmt.Fprintf(w, "token:           %s\n", resp.TokenRef)
	fmt.Fprintf(w, "amount ceiling:  %s\n", resp.AmountCeiling)
	fmt.Fprintf(w, "credential:      %s\n", resp.TreasuryCredential)
	fmt.Fprintf(w, "daily target:    %d\n", resp.DailyTarget)
	fmt.Fprintf(w, "lifetime target: %d\n", resp.LifetimeTarget)
}
