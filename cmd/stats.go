package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnyUserName/pixconv/internal/output"
	"github.com/AnyUserName/pixconv/internal/report"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_report>",
	Short: "Display statistics for a convert run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// reportPath accepts a report file or the directory holding one.
func reportPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, report.FileName), nil
	}
	return path, nil
}

func runStats(_ *cobra.Command, args []string) error {
	path, err := reportPath(args[0])
	if err != nil {
		return err
	}
	r, err := report.ReadJSON(path)
	if err != nil {
		return err
	}
	printStats(r)
	return nil
}

func printStats(r *report.Report) {
	printer.Header("pixconv report")
	printer.Print("  Report version: %d", r.Version)
	printer.Print("  Generated:      %s", r.GeneratedAt)
	printer.Print("  Preset:         %s", r.Preset)
	printer.Print("")

	s := r.Stats
	printer.Print("  Entries:        %d", s.TotalEntries)
	printer.Print("  Converted:      %d", s.Converted)
	printer.Print("  Failed:         %d", s.Failed)
	printer.Print("  Not converted:  %d", s.Skipped)
	printer.Print("  Input size:     %s", output.Bytes(s.TotalInputBytes))
	printer.Print("  Output size:    %s", output.SizeDelta(s.ConvertedInput, s.TotalOutputBytes))
	if q := r.Quota; q != nil {
		printer.Print("  Quota at end:   %d of %d left", q.Remaining, q.Max)
	}
	printer.Print("")

	// Per-format breakdown.
	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	for _, e := range r.Entries {
		if e.Output == nil {
			continue
		}
		fs := formatStats[e.Output.Format]
		fs.count++
		fs.bytes += e.Output.Size
		formatStats[e.Output.Format] = fs
	}
	if len(formatStats) > 0 {
		table := output.NewTable(printer.Out(), []string{"Format", "Files", "Size"})
		for _, f := range []string{"png", "jpeg", "webp"} {
			if fs, ok := formatStats[f]; ok {
				table.AddRow(f, fmt.Sprintf("%d", fs.count), output.Bytes(fs.bytes))
			}
		}
		if err := table.Render(); err != nil {
			log.WithError(err).Warn("render table")
		}
		printer.Print("")
	}

	// Largest savings first.
	type saving struct {
		key     string
		in, out int64
	}
	var savings []saving
	for key, e := range r.Entries {
		if e.Output != nil {
			savings = append(savings, saving{key, e.Source.Size, e.Output.Size})
		}
	}
	sort.Slice(savings, func(i, j int) bool {
		return savings[i].in-savings[i].out > savings[j].in-savings[j].out
	})
	if n := min(len(savings), 10); n > 0 {
		printer.Print("  Top %d by bytes saved:", n)
		for _, sv := range savings[:n] {
			printer.Print("    %-40s %10s -> %s", truncKey(sv.key, 40), output.Bytes(sv.in), output.SizeDelta(sv.in, sv.out))
		}
		printer.Print("")
	}

	// Warnings.
	var keys []string
	for key, e := range r.Entries {
		if e.Error != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		printer.Warning("%s: %s", key, r.Entries[key].Error)
	}
	if q := r.Quota; q != nil && q.Limited {
		printer.Warning("run stopped at the rate limit (retry after %d minute(s))", q.RetryAfterMinutes)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
