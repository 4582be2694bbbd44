package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/braunma/hedgehog-topology-planner/pkg/store"
)

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List plans in the planner state",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(false)
			s, err := openStore(logger)
			if err != nil {
				return err
			}
			return listPlans(s)
		},
	}
}

func listPlans(s *store.Store) error {
	var rows [][]string
	err := s.View(func(tx *store.Tx) error {
		for _, p := range tx.Plans() {
			caseID := p.YAMLCaseID
			if caseID == "" {
				caseID = "-"
			}

			devices, cables, generated := "-", "-", "never"
			if state := tx.GenerationState(p.ID); state != nil {
				devices = strconv.Itoa(state.DeviceCount)
				cables = strconv.Itoa(state.CableCount)
				generated = state.GeneratedAt.Format(time.RFC3339)
			}

			rows = append(rows, []string{
				p.Name,
				p.Status,
				caseID,
				strconv.Itoa(len(tx.SwitchClasses(p.ID))),
				strconv.Itoa(len(tx.ServerClasses(p.ID))),
				devices,
				cables,
				generated,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	renderTable([]string{"Plan", "Status", "Case", "Switch\nClasses", "Server\nClasses", "Devices", "Cables", "Last\nGenerated"}, rows)
	return nil
}
