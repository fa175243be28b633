package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"logisticsassist/api/catalog"
	"logisticsassist/api/config"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Print the complaint scenario catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cat, err := loadCatalog(cfg.ScenariosFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, s := range cat.All() {
			fmt.Fprintf(out, "%s\n  %s\n", s.Name, s.Description)
			for i, step := range s.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, step)
			}
			fmt.Fprintf(out, "  MOCA: %s\n%s\n", s.MocaTemplate, strings.Repeat("-", 40))
		}
		return nil
	},
}

// loadCatalog reads path when set, otherwise the built-in scenarios.
func loadCatalog(path string) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}
	return cat, nil
}
