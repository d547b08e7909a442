package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vjranagit/electrode-tester/pkg/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Describe an experiment, measurement or signal container file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	path := args[0]
	out := cmd.OutOrStdout()

	switch filepath.Ext(path) {
	case storage.ExperimentExt:
		exp, err := store.LoadExperiment(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, exp)
		for i, name := range exp.MeasurementNames() {
			fmt.Fprintf(out, "  %3d  %s\n", i, name)
		}
	case storage.MeasurementExt:
		m, err := store.LoadMeasurement(path, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, m)
		for i, name := range m.ContainerNames() {
			fmt.Fprintf(out, "  %3d  %s\n", i, name)
		}
	case storage.ContainerExt:
		c, err := store.LoadContainer(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, c)
	default:
		return fmt.Errorf("%w: %q is not a %s, %s or %s file", storage.ErrWrongExtension,
			path, storage.ExperimentExt, storage.MeasurementExt, storage.ContainerExt)
	}
	return nil
}
