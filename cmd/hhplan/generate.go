package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/braunma/hedgehog-topology-planner/pkg/generator"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

func newGenerateCmd() *cobra.Command {
	var planName string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate devices, interfaces and cables for a plan",
		Long:  `Replaces the generated inventory of one plan. Inventory of other plans is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(planName)
		},
	}

	cmd.Flags().StringVar(&planName, "plan", "", "Name of the plan to generate")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runGenerate(planName string) error {
	logger := newLogger(false)

	s, err := openStore(logger)
	if err != nil {
		return err
	}

	gen := generator.New(s, logger, generator.Options{Registerer: registry})
	summary, err := gen.GenerateByName(planName)
	if err != nil {
		return err
	}

	printSummary(summary)
	return saveStore(s, logger)
}

func printSummary(summary *generator.Summary) {
	rows := make([][]string, 0, len(summary.Switches)+len(summary.Servers))
	for _, id := range utils.SortedKeys(summary.Switches) {
		rows = append(rows, []string{"switch", id, strconv.Itoa(summary.Switches[id])})
	}
	for _, id := range utils.SortedKeys(summary.Servers) {
		rows = append(rows, []string{"server", id, strconv.Itoa(summary.Servers[id])})
	}
	renderTable([]string{"Kind", "Class", "Instances"}, rows)
}
