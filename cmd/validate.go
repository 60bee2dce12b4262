package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AnyUserName/pixconv/internal/report"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir_or_report>",
	Short: "Validate a report and check the outputs it lists",
	Long: `Checks that every output listed in the report exists with the recorded size
and content hash, and that the report totals match its entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	path, err := reportPath(args[0])
	if err != nil {
		return err
	}
	r, err := report.ReadJSON(path)
	if err != nil {
		return err
	}

	errs := report.Validate(r, filepath.Dir(path))
	if len(errs) == 0 {
		printer.Success("Report is valid")
		printer.Success("%d entries, %d outputs, all files present", r.Stats.TotalEntries, r.Stats.Converted)
		return nil
	}

	printer.Error("Report has %d error(s):", len(errs))
	for _, e := range errs {
		printer.Print("  • %s", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}
