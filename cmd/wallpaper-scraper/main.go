package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/app"
	"github.com/GaseousIce/wallpaper-scraper/internal/config"
	"github.com/GaseousIce/wallpaper-scraper/internal/container"
	"github.com/GaseousIce/wallpaper-scraper/internal/logger"
	apperrors "github.com/GaseousIce/wallpaper-scraper/pkg/errors"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return app.ExitOK
		}
		return app.ExitSetup
	}

	cfg := config.Default()
	if err := config.NewManager(opts.configFile).Load(cfg, opts.overrides); err != nil {
		return fail(err)
	}
	if err := applyAPIKey(cfg, opts.apiKey); err != nil {
		return fail(err)
	}

	log, err := logger.New(config.ServiceName, cfg.Log.Environment, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fail(apperrors.Wrap(apperrors.ErrorTypeConfig, "create logger", err))
	}
	defer log.Sync()

	log.Debug("configuration loaded",
		zap.String("source", cfg.Source),
		zap.String("output_dir", cfg.OutputDir),
		zap.Float64("rate_limit", cfg.RateLimit),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// restore default handling so a second signal terminates immediately
			stop()
			fmt.Fprintln(os.Stderr, "\n[wallpaper] Received interrupt, finishing in-flight downloads...")
		case <-done:
		}
	}()

	application, cleanup, err := container.InitializeApp(cfg, log)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	summary, err := application.Run(ctx)
	if err != nil {
		fail(err)
	}
	return app.ExitCode(summary, err)
}

// fail prints a setup error and returns its exit code
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
	return app.ExitCode(nil, err)
}

type cliOptions struct {
	configFile string
	apiKey     string
	overrides  map[string]any
}

// flagKeys maps every flag, aliases included, to its configuration key
var flagKeys = map[string]string{
	"source": "source", "s": "source",
	"query": "query", "q": "query",
	"limit": "limit", "l": "limit",
	"output": "output_dir", "o": "output_dir",
	"category": "category", "c": "category",
	"rate-limit": "rate_limit", "r": "rate_limit",
	"max-concurrent": "max_concurrent", "m": "max_concurrent",
	"verbose": "verbose", "v": "verbose",
	"orientation":  "orientation",
	"resolution":   "resolution",
	"force":        "force",
	"max-attempts": "max_attempts",
	"timeout":      "timeout",
	"run-timeout":  "run_timeout",
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet(config.ServiceName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &cliOptions{overrides: make(map[string]any)}

	var (
		source, query, output, category, orientation, resolution string
		limit, maxConcurrent, maxAttempts                        int
		rateLimit                                                float64
		verbose, force                                           bool
	)

	fs.StringVar(&opts.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&source, "source", "wallhaven", "Wallpaper source: unsplash, wallhaven, pixabay or all")
	fs.StringVar(&source, "s", "wallhaven", "Shorthand for -source")
	fs.StringVar(&query, "query", "", "Search query")
	fs.StringVar(&query, "q", "", "Shorthand for -query")
	fs.IntVar(&limit, "limit", 10, "Maximum number of wallpapers per query and source")
	fs.IntVar(&limit, "l", 10, "Shorthand for -limit")
	fs.StringVar(&output, "output", "./wallpapers", "Directory to save wallpapers")
	fs.StringVar(&output, "o", "./wallpapers", "Shorthand for -output")
	fs.StringVar(&category, "category", "", "Category filter, for example anime")
	fs.StringVar(&category, "c", "", "Shorthand for -category")
	fs.Float64Var(&rateLimit, "rate-limit", 1.0, "Seconds between requests to one source")
	fs.Float64Var(&rateLimit, "r", 1.0, "Shorthand for -rate-limit")
	fs.IntVar(&maxConcurrent, "max-concurrent", 3, "Maximum concurrent downloads")
	fs.IntVar(&maxConcurrent, "m", 3, "Shorthand for -max-concurrent")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key for the selected source")
	fs.StringVar(&opts.apiKey, "k", "", "Shorthand for -api-key")
	fs.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&verbose, "v", false, "Shorthand for -verbose")
	fs.StringVar(&orientation, "orientation", config.OrientationLandscape, "Image orientation: landscape, portrait, squarish or any")
	fs.StringVar(&resolution, "resolution", "", "Minimum resolution, for example 1920x1080")
	fs.BoolVar(&force, "force", false, "Download even when a matching file exists")
	fs.IntVar(&maxAttempts, "max-attempts", 3, "Attempts per wallpaper")
	fs.Duration("timeout", 0, "Timeout of one HTTP request (default 60s)")
	fs.Duration("run-timeout", 0, "Timeout of the whole run, 0 for none")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: %s [options]

Download wallpapers from Unsplash, Wallhaven and Pixabay while respecting
each provider's rate limits. API keys are read from -api-key, the config
file, UNSPLASH_API_KEY, WALLHAVEN_API_KEY, PIXABAY_API_KEY or
WALLPAPER_API_KEYS__<SOURCE>.

Options:
`, config.ServiceName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments")
	}

	// only flags given on the command line override other sources
	fs.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		opts.overrides[key] = f.Value.(flag.Getter).Get()
	})

	return opts, nil
}

// applyAPIKey assigns -api-key to the single selected source
func applyAPIKey(cfg *config.Config, key string) error {
	if key == "" {
		return nil
	}
	providers := cfg.Providers()
	if len(providers) != 1 {
		return apperrors.Config("-api-key needs a single -source; use api_keys in the config file for all")
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = make(map[string]string)
	}
	cfg.APIKeys[string(providers[0])] = key
	return nil
}
