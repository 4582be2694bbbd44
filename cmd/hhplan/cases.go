package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/ingest"
	"github.com/braunma/hedgehog-topology-planner/pkg/loader"
	"github.com/braunma/hedgehog-topology-planner/pkg/models"
	"github.com/braunma/hedgehog-topology-planner/pkg/store"
)

type casesFlags struct {
	caseID           string
	all              bool
	list             bool
	clean            bool
	prune            bool
	dryRun           bool
	requireReference bool
}

func newCasesCmd() *cobra.Command {
	var f casesFlags

	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List or apply YAML test cases",
		Long:  `Validates YAML test cases and applies them to the planner state as plans`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(f)
		},
	}

	cmd.Flags().StringVar(&f.caseID, "case", "", "Apply the case with this case_id")
	cmd.Flags().BoolVar(&f.all, "all", false, "Apply every case in the cases directory")
	cmd.Flags().BoolVar(&f.list, "list", false, "List available cases")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "Delete plans owned by the case before applying")
	cmd.Flags().BoolVar(&f.prune, "prune", false, "Delete classes, zones and connections absent from the case")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Validate and apply without saving the state")
	cmd.Flags().BoolVar(&f.requireReference, "require-reference", false, "Fail on missing reference data instead of creating it")
	cmd.MarkFlagsMutuallyExclusive("case", "all", "list")
	cmd.MarkFlagsOneRequired("case", "all", "list")

	return cmd
}

func (f casesFlags) options() ingest.Options {
	opts := ingest.Options{
		Clean:  f.clean,
		Prune:  f.prune,
		DryRun: f.dryRun,
	}
	if f.requireReference {
		opts.ReferenceMode = constants.ReferenceModeRequire
	}
	return opts
}

func runCases(f casesFlags) error {
	logger := newLogger(f.dryRun)

	dir, err := resolveCasesDir(casesDir, logger)
	if err != nil {
		return err
	}

	s, err := openStore(logger)
	if err != nil {
		return err
	}

	if f.list {
		return listCases(loader.NewDataLoader(dir, logger), s)
	}

	engine := ingest.NewEngine(s, logger)
	var results []ingest.Result

	if f.all {
		results, err = engine.ApplyAllCases(dir, f.options())
	} else {
		var plan *models.Plan
		plan, err = engine.ApplyCaseID(dir, f.caseID, f.options())
		if plan != nil {
			results = append(results, ingest.Result{CaseID: f.caseID, Plan: plan})
		}
	}

	for _, r := range results {
		logger.Success("%s → plan %q (id %d, %s)", r.CaseID, r.Plan.Name, r.Plan.ID, r.Plan.Status)
	}

	var validationErr *ingest.TestCaseValidationError
	if errors.As(err, &validationErr) {
		printIssues(validationErr)
	}
	if err != nil {
		if len(results) > 0 && !f.dryRun {
			logger.Warning("Saving the %d case(s) applied before the failure", len(results))
			if saveErr := saveStore(s, logger); saveErr != nil {
				logger.Error("Failed to save state", saveErr)
			}
		}
		return err
	}

	if f.dryRun {
		logger.Warning("DRY RUN COMPLETE: state not saved")
		return nil
	}
	return saveStore(s, logger)
}

func listCases(dl *loader.DataLoader, s *store.Store) error {
	ids, err := dl.ListCaseIDs()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(ids))
	err = s.View(func(tx *store.Tx) error {
		for _, id := range ids {
			plan, status := "-", "not applied"
			if owned := tx.OwnedPlans(id); len(owned) > 0 {
				plan, status = owned[0].Name, owned[0].Status
			}
			rows = append(rows, []string{id, plan, status})
		}
		return nil
	})
	if err != nil {
		return err
	}

	renderTable([]string{"Case", "Plan", "Status"}, rows)
	return nil
}

func printIssues(err *ingest.TestCaseValidationError) {
	rows := make([][]string, len(err.Issues))
	for i, issue := range err.Issues {
		rows[i] = []string{issue.Code, issue.Path, issue.Message, issue.Hint}
	}
	fmt.Printf("Case %s failed validation with %d issue(s):\n", err.CaseID, len(err.Issues))
	renderTable([]string{"Code", "Path", "Message", "Hint"}, rows)
}
