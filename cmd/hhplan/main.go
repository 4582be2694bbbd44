package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/braunma/hedgehog-topology-planner/pkg/store"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

const fallbackCasesDir = "testdata/cases"

var (
	statePath   string
	casesDir    string
	verbose     bool
	metricsFile string

	// registry collects the metrics written by --metrics-file
	registry *prometheus.Registry
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		utils.NewLogger(false).Error("hhplan failed", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	registry = prometheus.NewRegistry()

	rootCmd := &cobra.Command{
		Use:           "hhplan",
		Short:         "Hedgehog topology planner",
		Long:          `Ingests declarative YAML test cases into topology plans, generates devices, interfaces and cables, and pushes them to NetBox`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&statePath, "state", "hhplan-state.yaml", "Planner state snapshot file")
	rootCmd.PersistentFlags().StringVar(&casesDir, "cases-dir", "cases", "Directory holding YAML test cases")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")

	rootCmd.AddCommand(
		newCasesCmd(),
		newGenerateCmd(),
		newPlansCmd(),
		newPushCmd(),
	)

	return rootCmd
}

// execute runs cmd and writes the metrics file whether or not the command failed
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if mErr := writeMetrics(); mErr != nil && err == nil {
		err = mErr
	}
	return err
}

func newLogger(dryRun bool) *utils.Logger {
	logger := utils.NewLogger(dryRun)
	logger.SetVerbose(verbose)
	return logger
}

func openStore(logger *utils.Logger) (*store.Store, error) {
	s, err := store.Open(statePath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Using state file: %s", statePath)
	return s, nil
}

func saveStore(s *store.Store, logger *utils.Logger) error {
	if err := s.Save(statePath); err != nil {
		return err
	}
	logger.Debug("State saved to %s", statePath)
	return nil
}

// resolveCasesDir falls back to the bundled test cases when --cases-dir does not exist
func resolveCasesDir(dir string, logger *utils.Logger) (string, error) {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		logger.Debug("Using cases directory: %s", dir)
		return dir, nil
	}

	if info, err := os.Stat(fallbackCasesDir); err == nil && info.IsDir() {
		logger.Warning("%s not found, falling back to '%s'", dir, fallbackCasesDir)
		return fallbackCasesDir, nil
	}

	return "", fmt.Errorf("no cases directory found: checked '%s' and '%s'", dir, fallbackCasesDir)
}

func writeMetrics() error {
	if metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", metricsFile, err)
	}
	return nil
}
