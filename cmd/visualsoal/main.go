package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visualsoal/internal/config"
	"visualsoal/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	timeout time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "visualsoal",
	Short: "Visual Soal - sociology question visualizer",
	Long: `Visual Soal turns a short sociology stimulus into an analysis, an English
image prompt and a generated illustration, keeping the last results as a
local history.

The pipeline runs in two stages against the Gemini API:
  1. Analyze: stimulus -> sociology analysis + visual prompt
  2. Render:  visual prompt -> image (saved to history on success)

Run without arguments to start the interactive terminal interface.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the terminal interface
		return runTUI(cmd, args)
	},
}

// rootPersistentPreRunE is assigned in init to avoid an initialization cycle
// through isInteractive.
func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	// The terminal interface owns the screen; keep zap quiet there.
	if isInteractive(cmd) {
		logger = zap.NewNop()
		return nil
	}

	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = rootPersistentPreRunE

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default: ~/.visualsoal/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-stage generation timeout (default: gemini.timeout)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isInteractive(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == tuiCmd
}

// configPath resolves --config against the default location.
func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and starts category logging.
func loadConfig() error {
	loaded, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath(), err)
	}
	cfg = loaded

	if err := logging.Initialize(config.DataDir(), cfg.LoggingSettings()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	logging.Boot("Config loaded from %s (backend=%s locale=%s)", configPath(), cfg.History.Backend, cfg.Locale)
	return nil
}

// stageTimeout returns --timeout when set, otherwise gemini.timeout.
func stageTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	return cfg.GetTimeout()
}

// stageContext bounds one generation stage.
func stageContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), stageTimeout())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
