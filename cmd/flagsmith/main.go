package main

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultLocalServerAPI = "http://localhost:8080"

var logger *log.Logger

func init() {
	logger = log.New()
	logger.SetFormatter(&log.JSONFormatter{})

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(migrationCmd)
	rootCmd.AddCommand(webhookCmd)
}

var rootCmd = &cobra.Command{
	Use:   "flagsmith",
	Short: "Flagsmith identity migration server and client.",
	// SilenceErrors allows us to explicitly log the error returned from
	// rootCmd below.
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "    ")
	return encoder.Encode(data)
}
