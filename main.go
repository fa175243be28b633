package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "logistics-assist",
	Short: "Agent-assist tool for logistics transport complaints",
	Long: `Logistics Assist serves guided complaint checklists to support agents
and records one access event per visitor session, with an optional
Telegram alert for each new visit.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "logistics-assist.yml", "config file path")
	rootCmd.AddCommand(serveCmd, migrateCmd, scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
