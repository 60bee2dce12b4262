package cmd

import (
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show how many conversions are left in the current window",
	Args:  cobra.NoArgs,
	RunE:  runQuota,
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored conversion history",
	Args:  cobra.NoArgs,
	RunE:  runQuotaReset,
}

func init() {
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}

func runQuota(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	lim, closeStore, err := newLimiter(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	remaining, err := lim.Remaining(ctx)
	if err != nil {
		return err
	}
	resetAt, err := lim.ResetAt(ctx)
	if err != nil {
		return err
	}

	printer.Header("Conversion quota")
	printer.Print("  Store:      %s", cfg.RateLimit.Store)
	printer.Print("  Window:     %s", lim.Window())
	printer.Print("  Used:       %d", lim.Max()-remaining)
	printer.Print("  Remaining:  %s of %d", printer.Bold(strconv.Itoa(remaining)), lim.Max())
	if !resetAt.IsZero() {
		mins := max(int(math.Ceil(time.Until(resetAt).Minutes())), 1)
		printer.Print("  Next slot:  in %d minute(s) (%s)", mins, resetAt.Local().Format(time.Kitchen))
	}
	printer.Print("")

	if remaining == 0 {
		printer.Warning("Rate limit reached")
	}
	return nil
}

func runQuotaReset(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	lim, closeStore, err := newLimiter(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := lim.Reset(ctx); err != nil {
		return err
	}
	printer.Success("Conversion history cleared (%d available)", lim.Max())
	return nil
}
