package main

import (
	"os"

	"sjsage522/pricewatcher/config"
	"sjsage522/pricewatcher/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricewatcher",
	Short: "Tracks product prices on e-commerce sites and alerts on changes",
	Long:  "Periodically scrapes tracked Amazon, Flipkart and Vijay Sales product pages, keeps a price history and sends an alert whenever a price changes.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		return cfg.Validate()
	},
	SilenceUsage: true,
	RunE:         runWorker,
}

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	rootCmd.AddCommand(runCmd, scrapeCmd, trackCmd, untrackCmd, listCmd, onceCmd, alertCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Default.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
