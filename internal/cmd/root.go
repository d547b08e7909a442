package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vjranagit/electrode-tester/internal/config"
	"github.com/vjranagit/electrode-tester/internal/logging"
	"github.com/vjranagit/electrode-tester/pkg/storage"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "electrode-tester",
	Short: "Measure and analyse electrode impedance",
	Long: `electrode-tester drives a generator/oscilloscope through repeated
measurement rounds, stores the raw signals as experiments on disk and derives
electrode resistance and resistivity with propagated uncertainty.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = false

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: electrode-tester.yaml in . or ./configs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// setup loads the configuration and builds the logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.SetOutput(cmd.ErrOrStderr())
	return cfg, logger, nil
}

func newStore(cfg *config.Config, logger *logrus.Logger) (*storage.Store, error) {
	sc := cfg.ToStoreConfig()
	sc.Logger = logrus.NewEntry(logger)
	return storage.NewStore(sc)
}
