package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/logging"
	"github.com/blackwell-systems/romctl/internal/util"
)

var (
	cfg    *config.Config
	logger *slog.Logger
	store  *catalog.Store

	appVersion = "dev"

	flagNoColor   bool
	flagVerbose   bool
	flagConfig    string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "romctl",
	Short: "Catalog and download ROMs from a listing site",
	Long: `romctl scrapes a ROM listing site into a local SQLite catalog, resolves the
short-lived CDN link behind each entry's download page with a headless
browser, and downloads the files with retry and progress reporting.

Typical flow:
  romctl scrape https://www.romsfun.com/roms/nes/
  romctl download --category nes`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetVersion records the build version for the version command.
func SetVersion(v string) {
	appVersion = v
}

// Execute is the entry point called from main.
// Interrupts cancel the command context so a batch stops between entries.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = closeStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/romctl/config.yml)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		util.InitColor(flagNoColor)

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagVerbose {
			cfg.Log.Level = "debug"
		}
		if flagLogFormat != "" {
			cfg.Log.Format = flagLogFormat
		}
		logger = logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Color:  !flagNoColor && util.IsStderrTTY(),
		})
		slog.SetDefault(logger)
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return closeStore()
	}

	rootCmd.AddCommand(
		newScrapeCmd(),
		newResolveCmd(),
		newGetCmd(),
		newDownloadCmd(),
		newListCmd(),
		newStatusCmd(),
		newExportCmd(),
		newImportCmd(),
		newIndexCmd(),
		newAchievementsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
}

// openStore opens the catalog database named in the config. It is closed
// after the command finishes.
func openStore(ctx context.Context) (*catalog.Store, error) {
	if store != nil {
		return store, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s, err := catalog.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", cfg.Database.Path, err)
	}
	logger.Debug("catalog opened", "path", cfg.Database.Path)
	store = s
	return store, nil
}

func closeStore() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// ok prints a green success line.
func ok(format string, a ...interface{}) {
	fmt.Println(color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(format string, a ...interface{}) {
	fmt.Fprintln(os.Stderr, color.YellowString("!"), fmt.Sprintf(format, a...))
}

// failed prints a red failure line without exiting.
func failed(format string, a ...interface{}) {
	fmt.Fprintln(os.Stderr, color.RedString("✗"), fmt.Sprintf(format, a...))
}

// header prints a cyan section heading.
func header(format string, a ...interface{}) {
	fmt.Println(color.CyanString(fmt.Sprintf(format, a...)))
}
