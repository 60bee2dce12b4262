package cmd

import (
	"context"
	"fmt"

	"github.com/AnyUserName/pixconv/internal/intake"
	"github.com/AnyUserName/pixconv/internal/output"
	"github.com/AnyUserName/pixconv/internal/preset"
	"github.com/AnyUserName/pixconv/internal/ratelimit"
	"github.com/AnyUserName/pixconv/internal/session"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file_or_dir>...",
	Short: "Show image dimensions and the default output format",
	Long: `Decodes each image once to read its dimensions. Does not convert anything
and does not touch the rate limit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

// noLimit rejects every conversion; probe never converts.
type noLimit struct{}

func (noLimit) TryConsume(context.Context) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, nil
}

func (noLimit) Remaining(context.Context) (int, error) { return 0, nil }

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	sources, err := intake.Scan(args)
	if err != nil {
		return err
	}

	pipe, err := newPipeline()
	if err != nil {
		return err
	}
	sess := session.New(pipe, noLimit{}, session.Options{ProbeWorkers: cfg.Probe.Workers, Logger: log})
	defer sess.Close()

	table := output.NewTable(printer.Out(), []string{"Source", "Type", "Dimensions", "Size", "Default", "Status"})
	for _, src := range sources {
		f, err := intake.Read(src)
		if err != nil {
			return err
		}
		if _, err := sess.Add(src.RelPath, f.Data, f.MIME); err != nil {
			table.AddRow(src.RelPath, f.MIME, "-", output.Bytes(src.Size), "-", printer.StateBadge("error"))
			logVerbose("%s: %v", src.RelPath, err)
		}
	}

	if err := sess.Probe(ctx); err != nil {
		return err
	}

	for _, it := range sess.Snapshot().Items {
		dims, status := "-", printer.StateBadge(string(it.State))
		if it.Meta != nil {
			dims = fmt.Sprintf("%dx%d", it.Meta.Width, it.Meta.Height)
		} else if it.LastError != "" {
			status = printer.StateBadge(string(it.State)) + " " + printer.Dim(it.LastError)
		}
		table.AddRow(it.Name, it.DeclaredMime, dims, output.Bytes(int64(len(it.Source))),
			string(preset.DefaultFormat(it.DeclaredMime)), status)
	}

	if table.Len() == 0 {
		printer.Info("No images found")
		return nil
	}
	return table.Render()
}
