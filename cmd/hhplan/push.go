package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/braunma/hedgehog-topology-planner/pkg/client"
	"github.com/braunma/hedgehog-topology-planner/pkg/reconciler"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

type pushFlags struct {
	planName string
	dryRun   bool
	insecure bool
	timeout  time.Duration
	envFile  string
}

func newPushCmd() *cobra.Command {
	var f pushFlags

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the generated inventory of a plan to NetBox",
		Long: `Creates or updates the devices, interfaces and cables of a plan in NetBox and deletes
objects that carry the plan's tag but are no longer generated.

NETBOX_URL and NETBOX_TOKEN must be set in the environment or in --env-file.
Variables already present in the environment take precedence over the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.planName, "plan", "", "Name of the plan to push")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Simulate changes without applying them")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Timeout of a single NetBox request")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Environment file with NETBOX_URL and NETBOX_TOKEN, loaded when present")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runPush(ctx context.Context, f pushFlags) error {
	logger := newLogger(f.dryRun)

	if err := loadEnvFile(f.envFile, logger); err != nil {
		return err
	}

	netboxURL := os.Getenv("NETBOX_URL")
	netboxToken := os.Getenv("NETBOX_TOKEN")
	if netboxURL == "" || netboxToken == "" {
		return fmt.Errorf("NETBOX_URL and NETBOX_TOKEN environment variables must be set")
	}

	s, err := openStore(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Initializing NetBox client...")
	c, err := client.NewClient(ctx, client.Config{
		URL:                netboxURL,
		Token:              netboxToken,
		DryRun:             f.dryRun,
		InsecureSkipVerify: f.insecure,
		Timeout:            f.timeout,
	}, logger)
	if err != nil {
		return err
	}

	summary, err := reconciler.NewInventoryReconciler(c, s).Push(ctx, f.planName)
	if err != nil {
		return err
	}

	renderTable([]string{"Plan", "Devices", "Interfaces", "Cables", "Deleted"}, [][]string{{
		summary.Plan,
		fmt.Sprint(summary.Devices),
		fmt.Sprint(summary.Interfaces),
		fmt.Sprint(summary.Cables),
		fmt.Sprint(summary.Deleted),
	}})

	if f.dryRun {
		logger.Warning("DRY RUN COMPLETE: no changes were made to NetBox")
	}
	return nil
}

func loadEnvFile(path string, logger *utils.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("No environment file at %s", path)
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load environment file %s: %w", path, err)
	}
	logger.Debug("Loaded environment from %s", path)
	return nil
}
