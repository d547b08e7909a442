package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vjranagit/electrode-tester/pkg/acquisition"
	"github.com/vjranagit/electrode-tester/pkg/device"
	"github.com/vjranagit/electrode-tester/pkg/storage"
)

var (
	runTries    int
	runSaveName string
	runResults  string
	runSeed     int64
	runComment  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new experiment and take measurements",
	Long: `Create a new experiment from the configuration and take measurement
rounds until the configured number of tries is reached (0 = until
interrupted). Ctrl-C stops the current round or delay; measurements already
taken stay on disk.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runTries, "tries", "n", 0, "Number of measurements (overrides config, 0 = until interrupted)")
	runCmd.Flags().StringVar(&runSaveName, "name", "", "Experiment file name (default: creation time)")
	runCmd.Flags().StringVarP(&runResults, "results", "o", "", "Results directory (overrides config)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "Noise seed of the simulated device")
	runCmd.Flags().StringVar(&runComment, "comment", "", "Free-form experiment comment")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("tries") {
		cfg.Acquisition.Tries = runTries
	}
	if runSaveName != "" {
		cfg.Acquisition.SaveName = runSaveName
	}
	if runResults != "" {
		cfg.Storage.ResultsPath = runResults
	}
	if runComment != "" {
		cfg.Acquisition.Comment = runComment
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	expCfg, err := cfg.ToExperimentConfig()
	if err != nil {
		return err
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	exp, err := store.NewExperiment(device.NewSimulated(runSeed), expCfg)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	runner := &acquisition.Runner{Logger: logrus.NewEntry(logger)}
	if cfg.Storage.CatalogPath != "" {
		catalog, err := storage.OpenCatalog(cfg.Storage.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer catalog.Close()
		runner.Catalog = catalog
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experiment: %s\n", exp.SavePath())
	fmt.Fprintf(out, "Frequencies: %d, tries: %d\n", len(exp.Frequencies()), exp.Tries())

	runner.OnMeasurement = func(round int, m *storage.Measurement) {
		if exp.Tries() > 0 {
			fmt.Fprintf(out, "  [%d/%d] %s\n", round, exp.Tries(), m.Date())
		} else {
			fmt.Fprintf(out, "  [%d] %s\n", round, m.Date())
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, finished, err := runner.Run(ctx, exp)
	if err != nil {
		return err
	}
	if err := exp.Close(); err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}

	if finished {
		fmt.Fprintf(out, "Done: %d measurements saved to %s\n", exp.Len(), path)
	} else {
		fmt.Fprintf(out, "Interrupted: %d measurements saved to %s\n", exp.Len(), path)
	}
	return nil
}
