package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/hasher"
	"github.com/AnyUserName/pixconv/internal/intake"
	"github.com/AnyUserName/pixconv/internal/output"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/preset"
	"github.com/AnyUserName/pixconv/internal/ratelimit"
	"github.com/AnyUserName/pixconv/internal/report"
	"github.com/AnyUserName/pixconv/internal/resize"
	"github.com/AnyUserName/pixconv/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	outDir       string
	preset       string
	format       string
	quality      float64
	width        int
	height       int
	noLockAspect bool
}

var convertOpts convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert <file_or_dir>...",
	Short: "Convert images and write a report",
	Long: `Reads the given files and directories (png, jpg, jpeg, webp, gif), converts
each image and writes the outputs plus pixconv.report.json into the output
directory.

The output format defaults to one different from the input: png->jpeg,
jpeg->webp, webp->jpeg, gif->png. With a locked aspect ratio and both
--width and --height given, the width wins and the height is recomputed.

Every converted image spends one slot of the rate limit. When the limit is
reached the remaining images are left unconverted and listed in the report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.outDir, "out", "o", "./pixconv_out", "output directory")
	f.StringVarP(&convertOpts.preset, "preset", "p", "default", "settings preset ("+strings.Join(preset.Names(), ", ")+")")
	f.StringVarP(&convertOpts.format, "format", "f", "", "output format: png, jpeg, webp (default per input type)")
	f.Float64Var(&convertOpts.quality, "quality", 0, "quality 0-1 for jpeg/webp (default from preset)")
	f.IntVar(&convertOpts.width, "width", 0, "target width in pixels")
	f.IntVar(&convertOpts.height, "height", 0, "target height in pixels")
	f.BoolVar(&convertOpts.noLockAspect, "no-lock-aspect", false, "resize each axis independently")
	rootCmd.AddCommand(convertCmd)
}

// settingsFor applies the preset and then the explicit flags to an item's
// default settings.
func (o convertOptions) settingsFor(p preset.Preset, base pipeline.Settings, changed func(string) bool) (pipeline.Settings, error) {
	s := p.Apply(base)

	if o.format != "" {
		f, err := encoder.ParseFormat(o.format)
		if err != nil {
			return s, err
		}
		s.Format = f
	}
	if changed("quality") {
		if o.quality < 0 || o.quality > 1 || math.IsNaN(o.quality) {
			return s, fmt.Errorf("quality %v out of range 0-1", o.quality)
		}
		q := o.quality
		s.Quality = &q
	}
	if changed("width") || changed("height") || changed("no-lock-aspect") {
		r := resize.Spec{LockAspect: true}
		if s.Resize != nil {
			r = *s.Resize
		}
		if changed("width") {
			r.Width = o.width
		}
		if changed("height") {
			r.Height = o.height
		}
		if changed("no-lock-aspect") {
			r.LockAspect = !o.noLockAspect
		}
		s.Resize = &r
	}
	return s, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	start := time.Now()

	absOutput, err := filepath.Abs(convertOpts.outDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if convertOpts.format != "" {
		if _, err := encoder.ParseFormat(convertOpts.format); err != nil {
			return err
		}
	}
	pre, err := preset.Get(convertOpts.preset)
	if err != nil {
		return err
	}

	sources, err := intake.Scan(args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no images found")
	}
	logVerbose("found %d source(s), output %s, preset %s", len(sources), absOutput, convertOpts.preset)

	pipe, err := newPipeline()
	if err != nil {
		return err
	}
	lim, closeStore, err := newLimiter(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sess := session.New(pipe, lim, session.Options{ProbeWorkers: cfg.Probe.Workers, Logger: log})
	defer sess.Close()

	rep := report.New(pre.Name)
	byID := map[string]intake.Source{}

	for _, src := range sources {
		f, err := intake.Read(src)
		if err != nil {
			return err
		}
		it, err := sess.Add(src.RelPath, f.Data, f.MIME)
		if errors.Is(err, session.ErrUnsupportedInput) {
			printer.Warning("skipping %s: unsupported type %s", src.RelPath, f.MIME)
			rep.Entries[src.RelPath] = report.Entry{
				Source: report.SourceInfo{Mime: f.MIME, Size: src.Size},
				Status: "skipped",
				Error:  err.Error(),
			}
			continue
		}
		if err != nil {
			return err
		}
		byID[it.ID] = src
	}

	if err := sess.Probe(ctx); err != nil {
		return err
	}

	for _, it := range sess.Snapshot().Items {
		s, err := convertOpts.settingsFor(pre, it.Settings, cmd.Flags().Changed)
		if err != nil {
			return err
		}
		if err := sess.UpdateSettings(it.ID, s); err != nil {
			return err
		}
	}

	batch, err := sess.ConvertAll(ctx)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	if err := os.MkdirAll(absOutput, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	snap := sess.Snapshot()
	used := map[string]bool{}
	for _, it := range snap.Items {
		src := byID[it.ID]
		entry := report.Entry{
			Source: report.SourceInfo{Mime: it.DeclaredMime, Size: src.Size},
			Status: string(it.State),
			Error:  it.LastError,
		}
		if it.Meta != nil {
			entry.Source.Width = it.Meta.Width
			entry.Source.Height = it.Meta.Height
		}
		if it.Result != nil {
			rel := uniquePath(outputRelPath(it.Name, it.Result.Format), used)
			if err := writeOutput(filepath.Join(absOutput, rel), it.Result.Data); err != nil {
				return err
			}
			entry.Output = &report.OutputInfo{
				Path:   rel,
				Format: string(it.Result.Format),
				Width:  it.Result.Width,
				Height: it.Result.Height,
				Size:   it.Result.Size,
				Hash:   hasher.Sum(it.Result.Data, hasher.DefaultLen),
			}
			log.WithFields(logrus.Fields{"source": it.Name, "output": rel}).Debug("wrote output")
		}
		rep.Entries[it.Name] = entry
	}

	remaining, err := lim.Remaining(ctx)
	if err != nil {
		return err
	}
	rep.Quota = &report.Quota{
		Max:               lim.Max(),
		Remaining:         remaining,
		Limited:           batch.Limited,
		RetryAfterMinutes: batch.RetryAfterMinutes,
	}
	if batch.Limited && rep.Quota.RetryAfterMinutes == 0 {
		rep.Quota.RetryAfterMinutes = retryAfterMinutes(ctx, lim)
	}

	reportPath := filepath.Join(absOutput, report.FileName)
	if err := report.WriteJSON(rep, reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printConvertReport(rep, snap, time.Since(start))
	if batch.Unavailable > 0 {
		printer.Warning("%d image(s) not converted: output encoder unavailable (webp needs cwebp), no quota spent",
			batch.Unavailable)
	}
	return nil
}

// outputRelPath keeps the source's directory and swaps the extension.
func outputRelPath(name string, f encoder.Format) string {
	dir := filepath.Dir(filepath.FromSlash(name))
	out := pipeline.OutputName(name, f)
	if dir == "." {
		return out
	}
	return filepath.ToSlash(filepath.Join(dir, out))
}

// uniquePath appends -1, -2... before the extension until rel is unused.
func uniquePath(rel string, used map[string]bool) string {
	candidate := rel
	ext := filepath.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	for n := 1; used[candidate]; n++ {
		candidate = stem + "-" + strconv.Itoa(n) + ext
	}
	used[candidate] = true
	return candidate
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// retryAfterMinutes reports when the next slot frees up, for batches that
// never started.
func retryAfterMinutes(ctx context.Context, lim *ratelimit.Limiter) int {
	at, err := lim.ResetAt(ctx)
	if err != nil || at.IsZero() {
		return 0
	}
	return max(int(math.Ceil(time.Until(at).Minutes())), 1)
}

func printConvertReport(rep *report.Report, snap session.Snapshot, elapsed time.Duration) {
	printer.Header("pixconv convert")

	table := output.NewTable(printer.Out(), []string{"Source", "Dimensions", "State", "Output", "Size"})
	for _, it := range snap.Items {
		e := rep.Entries[it.Name]
		dims := "-"
		if it.Meta != nil {
			dims = fmt.Sprintf("%dx%d", it.Meta.Width, it.Meta.Height)
		}
		out, size := "-", output.Bytes(e.Source.Size)
		if e.Output != nil {
			out = fmt.Sprintf("%s %dx%d", e.Output.Path, e.Output.Width, e.Output.Height)
			size = output.SizeDelta(e.Source.Size, e.Output.Size)
		} else if e.Error != "" {
			out = printer.Dim(e.Error)
		}
		table.AddRow(it.Name, dims, printer.StateBadge(string(it.State)), out, size)
	}
	if !printer.IsQuiet() && table.Len() > 0 {
		if err := table.Render(); err != nil {
			log.WithError(err).Warn("render table")
		}
	}

	s := rep.Stats
	printer.Print("")
	printer.Print("  Converted:   %d / %d", s.Converted, s.TotalEntries)
	if s.Failed > 0 {
		printer.Print("  Failed:      %d", s.Failed)
	}
	printer.Print("  Input size:  %s", output.Bytes(s.ConvertedInput))
	printer.Print("  Output size: %s", output.SizeDelta(s.ConvertedInput, s.TotalOutputBytes))
	printer.Print("  Time:        %s", elapsed.Round(time.Millisecond))
	if q := rep.Quota; q != nil {
		printer.Print("  Quota:       %d of %d left", q.Remaining, q.Max)
	}
	printer.Print("  Report:      %s", report.FileName)
	printer.Print("")

	if q := rep.Quota; q != nil && q.Limited {
		printer.Warning("Rate limit reached: %d image(s) left unconverted, try again in %d minute(s)",
			s.Skipped, q.RetryAfterMinutes)
	}
}
