// Package cmd contains the pixconv CLI commands
package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/AnyUserName/pixconv/internal/config"
	"github.com/AnyUserName/pixconv/internal/decoder"
	"github.com/AnyUserName/pixconv/internal/output"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
	verbose bool
	quiet   bool
	noColor bool

	cfg     *config.Config
	log     = logrus.New()
	printer *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "pixconv",
	Short: "Convert images between PNG, JPEG and WebP",
	Long: `pixconv converts raster images (png, jpeg, webp, gif) to PNG, JPEG or WebP,
optionally resizing them, and writes a report of what it produced.

Conversions are rate limited with a sliding window (20 per hour by default)
that persists across runs.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pixconv.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pixconv %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func initConfig(cmd *cobra.Command) error {
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	printer = output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(),
		output.ResolveColors(cfg.Output.Colors, noColor), quiet)

	logVerbose("ratelimit: store=%s window=%s max=%d", cfg.RateLimit.Store, cfg.RateLimit.Window, cfg.RateLimit.Max)
	return nil
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	log.Debugf(format, args...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newPipeline builds the conversion pipeline from the loaded config.
func newPipeline() (*pipeline.Pipeline, error) {
	strategy, err := decoder.ParseStrategy(cfg.Decoder.Strategy)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Strategy:  strategy,
		CWebPPath: cfg.Encoder.CWebPPath,
		MaxPixels: cfg.Encoder.MaxPixels,
		Logger:    log,
	}), nil
}

// newLimiter opens the configured history store. The returned func closes
// any connection the store holds.
func newLimiter(ctx context.Context) (*ratelimit.Limiter, func(), error) {
	rl := cfg.RateLimit
	var (
		store   ratelimit.Store
		cleanup = func() {}
	)

	switch rl.Store {
	case config.StoreRedis:
		client, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect rate limit store: %w", err)
		}
		store = ratelimit.NewRedisStore(client, rl.Key, rl.Window)
		cleanup = func() { client.Close() }
		logVerbose("rate history in redis %s key %s", cfg.Redis.Addr, rl.Key)
	case config.StoreMemory:
		store = ratelimit.NewMemoryStore()
	default:
		fs := ratelimit.NewFileStore(rl.Dir, rl.Key)
		store = fs
		logVerbose("rate history in %s", fs.Path())
	}

	lim := ratelimit.New(store, ratelimit.Config{Window: rl.Window, Max: rl.Max}, ratelimit.WithLogger(log))
	return lim, cleanup, nil
}
