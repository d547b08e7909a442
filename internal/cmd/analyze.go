package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vjranagit/electrode-tester/pkg/analysis"
	"github.com/vjranagit/electrode-tester/pkg/estimator"
	"github.com/vjranagit/electrode-tester/pkg/export"
	"github.com/vjranagit/electrode-tester/pkg/types"
)

var (
	analyzeEstimator  string
	analyzeTimeLimit  time.Duration
	analyzeNoLimit    bool
	analyzeQuantities []string
	analyzeDuckDB     string
	analyzeTable      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <experiment.exp>",
	Short: "Compute resistance and resistivity time series of an experiment",
	Long: `Fit both bridge-arm voltages of every measurement taken within the time
limit after the first one, and print per-frequency resistance and resistivity
with their uncertainties. Results can be appended to a DuckDB table.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeEstimator, "estimator", "e", "", fmt.Sprintf("Estimator %v (overrides config)", estimator.Names()))
	analyzeCmd.Flags().DurationVar(&analyzeTimeLimit, "time-limit", 0, "Only use measurements up to this long after the first (overrides config)")
	analyzeCmd.Flags().BoolVar(&analyzeNoLimit, "all", false, "Use every measurement regardless of time")
	analyzeCmd.Flags().StringSliceVarP(&analyzeQuantities, "quantity", "q", nil, "Quantities to compute: resistance, resistivity (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeDuckDB, "duckdb", "", "Append results to this DuckDB database file")
	analyzeCmd.Flags().StringVar(&analyzeTable, "table", "impedance", "DuckDB table name")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if analyzeEstimator != "" {
		cfg.Analysis.Estimator = analyzeEstimator
	}
	if cmd.Flags().Changed("time-limit") {
		cfg.Analysis.TimeLimit = analyzeTimeLimit
	}
	if len(analyzeQuantities) > 0 {
		cfg.Analysis.Quantities = analyzeQuantities
	}

	est, err := estimator.ByName(cfg.Analysis.Estimator)
	if err != nil {
		return err
	}
	quantities, err := cfg.AnalysisQuantities()
	if err != nil {
		return err
	}
	limit := cfg.Analysis.TimeLimit
	if analyzeNoLimit {
		limit = analysis.NoTimeLimit
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	exp, err := store.LoadExperiment(args[0])
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}

	ea := &analysis.ExperimentAnalysis{
		MeasurementAnalysis: analysis.MeasurementAnalysis{
			Estimator:  est,
			Quantities: quantities,
			Logger:     logrus.NewEntry(logger),
		},
		TimeLimit: limit,
	}
	result, err := ea.Analyze(exp)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experiment %s: %d of %d measurements analysed with %s\n",
		exp.Name(), len(result.Elapsed), exp.Len(), est.Name())
	printResult(out, result)

	if analyzeDuckDB != "" {
		n, err := export.WriteDuckDB(cmd.Context(), analyzeDuckDB, analyzeTable, result)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		fmt.Fprintf(out, "Wrote %d rows to %s (table %s)\n", n, analyzeDuckDB, analyzeTable)
	}
	return nil
}

func printResult(w io.Writer, result *types.ExperimentResult) {
	for _, set := range result.Sets() {
		fmt.Fprintf(w, "\n%s\n", set.Quantity)
		fmt.Fprintf(w, "%12s %12s %16s %14s\n", "frequency", "elapsed", "value", "error")
		for _, series := range set.All() {
			for _, s := range series.Samples {
				fmt.Fprintf(w, "%12g %12s %16.6g %14.4g\n", series.Frequency, s.Elapsed.Round(time.Second), s.Value, s.Error)
			}
		}
	}
}
