package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vjranagit/electrode-tester/pkg/storage"
)

var (
	listCatalog  string
	listSelector string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued experiments",
	Long: `List experiments recorded in the catalog, oldest first. A selector such as
electrode=vileda,salt="tap solution" keeps only matching experiments.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listCatalog, "catalog", "", "Catalog directory (overrides config)")
	listCmd.Flags().StringVarP(&listSelector, "selector", "l", "", "Label selector, e.g. electrode=vileda,name=run")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	dir := cfg.Storage.CatalogPath
	if listCatalog != "" {
		dir = listCatalog
	}
	if dir == "" {
		return fmt.Errorf("no catalog configured, set storage.catalog_path or pass --catalog")
	}

	catalog, err := storage.OpenCatalog(dir)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	var entries []storage.ExperimentEntry
	if listSelector != "" {
		entries, err = catalog.Find(storage.ParseSelectors(listSelector))
	} else {
		entries, err = catalog.List()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No experiments found")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %-20s %-24s %s\n",
			e.Created.Format("2006-01-02 15:04:05"), e.UUID,
			e.Labels[storage.LabelElectrode], e.Labels[storage.LabelSalt], e.Path)
	}
	return nil
}
